package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/erazemk/posoja/internal/lending"
	"github.com/erazemk/posoja/internal/model"
	"github.com/erazemk/posoja/internal/store"
)

// ItemsHandler handles item endpoints.
type ItemsHandler struct {
	Lending   *lending.Service
	MaxUpload int64
}

type activateItemRequest struct {
	CollectionIDs []int64 `json:"collection_ids"`
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, err := queryID(r, "owner")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid owner")
		return
	}
	collection, err := queryID(r, "collection")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid collection")
		return
	}
	available, _ := strconv.ParseBool(r.URL.Query().Get("available"))

	items, err := h.Lending.ListItems(r.Context(), store.ItemFilter{
		OwnerID:       owner,
		CollectionID:  collection,
		AvailableOnly: available,
		Search:        r.URL.Query().Get("q"),
	})
	if err != nil {
		serviceError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items. The caller becomes the owner.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req lending.ItemInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Lending.CreateItem(r.Context(), actor(r).UserID, req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	item, err := h.Lending.GetItem(r.Context(), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req lending.ItemInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Lending.UpdateItem(r.Context(), actor(r), id, req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Activate handles POST /api/items/{id}/activate.
func (h *ItemsHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req activateItemRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	item, err := h.Lending.ActivateItem(r.Context(), actor(r), id, req.CollectionIDs)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	up, err := readUpload(w, r, "image", h.MaxUpload)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if up == nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}

	item, err := h.Lending.SetItemImage(r.Context(), actor(r), id, *up)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// GetHistory handles GET /api/items/{id}/history.
func (h *ItemsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	history, err := h.Lending.ItemHistory(r.Context(), actor(r), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	if history == nil {
		history = []model.BorrowRequest{}
	}
	jsonResponse(w, http.StatusOK, history)
}

// readUpload parses a multipart form and returns the named file, or nil
// when the form has no such field.
func readUpload(w http.ResponseWriter, r *http.Request, field string, limit int64) (*lending.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, errors.New("file too large or invalid multipart form")
	}

	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New("invalid " + field + " file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.New("failed to read " + field + " file")
	}
	return &lending.Upload{Data: data, Filename: header.Filename}, nil
}
