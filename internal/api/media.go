package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/erazemk/posoja/internal/media"
)

// MediaHandler serves stored photos and videos.
type MediaHandler struct {
	Media MediaOpener
}

// Get handles GET /api/media/{name}. Names are random, so the content is
// served without a session and cached aggressively.
func (h *MediaHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Media == nil {
		jsonError(w, http.StatusNotFound, "not found")
		return
	}

	name := r.PathValue("name")
	f, mime, err := h.Media.Open(name)
	if errors.Is(err, media.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		serviceError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, name, time.Time{}, f)
}
