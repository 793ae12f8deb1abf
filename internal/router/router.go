// Package router sets up all HTTP routes and middleware chains for the
// Piskovna admin. Routes are grouped into the JSON API, the admin pages
// and the post preview, each with its own middleware stack.
package router

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"piskovna/internal/handlers"
	"piskovna/internal/middleware"
	"piskovna/web"
)

// Deps holds everything the router wires into routes.
type Deps struct {
	Sessions middleware.SessionLoader

	API     *handlers.API
	Admin   *handlers.Admin
	Auth    *handlers.Auth
	Preview *handlers.Preview
	Uploads *handlers.Uploads

	// LoginLimiter throttles both login endpoints. Nil disables it.
	LoginLimiter *middleware.RateLimiter
	// SecureCookies marks the CSRF cookie Secure (production).
	SecureCookies bool
	// MaxBody caps request bodies on routes that accept posts. Image
	// payloads travel inline, so it must leave room for them.
	MaxBody int64
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Metrics)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.LoadSession(d.Sessions))

	r.Get("/health", healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	static, err := fs.Sub(web.StaticFS, "static")
	if err != nil {
		panic(err)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	csrf := middleware.NewCSRF(d.SecureCookies)
	limit := func(next http.Handler) http.Handler { return next }
	if d.LoginLimiter != nil {
		limit = d.LoginLimiter.Middleware
	}

	r.Route("/api", func(r chi.Router) {
		// JSON login carries no cookie yet, so it is CSRF exempt.
		r.With(limit, middleware.MaxBody(1<<20)).Post("/login", d.Auth.APILogin)

		// Stored images are public, like the site that embeds them.
		r.Get("/uploads/*", d.Uploads.Serve)
		r.Head("/uploads/*", d.Uploads.Serve)

		r.Route("/blog", func(r chi.Router) {
			r.Use(middleware.RequireAPIAuth)
			r.Use(middleware.MaxBody(d.MaxBody))
			r.Use(csrf)
			r.Get("/", d.API.List)
			r.Post("/", d.API.Create)
			r.Get("/{idOrSlug}", d.API.Get)
			r.Put("/{idOrSlug}", d.API.Update)
			r.Delete("/{idOrSlug}", d.API.Delete)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		// The body limit runs first: CSRF reads the form, which parses
		// multipart uploads.
		r.Use(middleware.MaxBody(d.MaxBody))
		r.Use(csrf)

		r.Get("/login", d.Auth.LoginPage)
		r.With(limit).Post("/login", d.Auth.LoginSubmit)
		r.Post("/logout", d.Auth.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Get("/", redirect("/admin/blog"))
			r.Get("/blog", d.Admin.BlogList)
			r.Get("/blog/new", d.Admin.BlogNew)
			r.Post("/blog/new", d.Admin.BlogCreate)
			r.Get("/blog/{id}/edit", d.Admin.BlogEdit)
			r.Post("/blog/{id}/edit", d.Admin.BlogUpdate)
			r.Post("/blog/{id}/delete", d.Admin.BlogDelete)
			r.Get("/cookiesbots", d.Admin.Cookiesbots)
		})
	})

	r.With(middleware.RequireAuth).Get("/preview/blog/{idOrSlug}", d.Preview.Post)

	r.Get("/", redirect("/admin/blog"))

	return r
}

func redirect(to string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, to, http.StatusSeeOther)
	}
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
