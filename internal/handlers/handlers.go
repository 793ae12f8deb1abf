// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the HTTP handlers for the Piskovna blog admin.
// Handlers are grouped by concern (JSON API, admin pages, auth, uploads,
// preview) and receive their dependencies through the handler struct.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"piskovna/internal/blog"
	"piskovna/internal/imagestore"
	"piskovna/internal/middleware"
	"piskovna/internal/models"
	"piskovna/internal/session"
)

// Sessions is the part of session.Store the handlers use.
type Sessions interface {
	Create(ctx context.Context, w http.ResponseWriter, data *session.Data) (string, error)
	SaveListPrefs(ctx context.Context, r *http.Request, data *session.Data, f models.PostFilter) error
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// Users looks up admin accounts. *store.UserStore satisfies it.
type Users interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	CheckPassword(user *models.User, password string) bool
}

// Resolver reads stored images back. *imagestore.Store satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, key string) (*imagestore.Object, error)
}

// PageCache caches rendered preview pages. *cache.PageCache satisfies it.
type PageCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, html []byte)
}

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode json response failed", "error", err)
	}
}

// writeError maps a post service error to a status and a JSON body.
// Upstream failures are logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error, action string) {
	body := map[string]any{"message": blog.ErrorMessage(err)}

	var verr *blog.ValidationError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, blog.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		body["error"] = verr.Fields
	case blog.IsUserError(err):
		status = http.StatusBadRequest
		body["error"] = err.Error()
	default:
		slog.Error(action+" failed", "error", err, "request_id", middleware.GetRequestID(r.Context()))
		body["message"] = "Error " + action
	}
	writeJSON(w, status, body)
}
