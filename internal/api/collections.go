package api

import (
	"net/http"

	"github.com/erazemk/posoja/internal/lending"
	"github.com/erazemk/posoja/internal/model"
)

// CollectionsHandler handles collection endpoints.
type CollectionsHandler struct {
	Lending *lending.Service
}

type createCollectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// List handles GET /api/collections.
func (h *CollectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	collections, err := h.Lending.ListCollections(r.Context())
	if err != nil {
		serviceError(w, r, err)
		return
	}
	if collections == nil {
		collections = []model.Collection{}
	}
	jsonResponse(w, http.StatusOK, collections)
}

// Create handles POST /api/collections.
func (h *CollectionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.Lending.CreateCollection(r.Context(), actor(r), req.Name, req.Description)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, c)
}

// Get handles GET /api/collections/{id}.
func (h *CollectionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	c, err := h.Lending.GetCollection(r.Context(), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// Delete handles DELETE /api/collections/{id}.
func (h *CollectionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.Lending.DeleteCollection(r.Context(), actor(r), id); err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "collection deleted"})
}
