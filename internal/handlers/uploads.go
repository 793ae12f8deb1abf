package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"piskovna/internal/imagestore"
)

// Uploads serves stored post images at /api/uploads/<key>.
type Uploads struct {
	images Resolver
}

// NewUploads creates the uploads read-back handler.
func NewUploads(images Resolver) *Uploads {
	return &Uploads{images: images}
}

// Serve writes the object stored under the wildcard key. Keys carry a
// timestamp and random suffix and are never rewritten, so responses are
// cacheable forever.
func (u *Uploads) Serve(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	obj, err := u.images.Resolve(r.Context(), key)
	if err != nil {
		if errors.Is(err, imagestore.ErrNotFound) || errors.Is(err, imagestore.ErrInvalidKey) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		slog.Error("serve upload failed", "key", key, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(obj.Data)
	}
}
