package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/posoja/internal/lending"
	"github.com/erazemk/posoja/internal/model"
	"github.com/erazemk/posoja/internal/store"
)

// BorrowsHandler handles borrow request endpoints, including the public
// response links.
type BorrowsHandler struct {
	Lending   *lending.Service
	MaxUpload int64
}

type createBorrowRequest struct {
	PromiseText      string    `json:"promise_text"`
	PromisedReturnBy time.Time `json:"promised_return_by"`
}

type respondRequest struct {
	Decision string `json:"decision"`
	Response string `json:"response"`
}

// Create handles POST /api/items/{id}/borrow. It accepts JSON, or a
// multipart form with an optional "video" file holding a recorded promise.
func (h *BorrowsHandler) Create(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var in lending.BorrowInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		video, err := readUpload(w, r, "video", h.MaxUpload)
		if err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		in.Video = video
		in.PromiseText = r.FormValue("promise_text")
		if v := r.FormValue("promised_return_by"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				jsonError(w, http.StatusBadRequest, "promised_return_by must be an RFC 3339 timestamp")
				return
			}
			in.PromisedReturnBy = t
		}
	} else {
		var req createBorrowRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		in.PromiseText = req.PromiseText
		in.PromisedReturnBy = req.PromisedReturnBy
	}

	b, err := h.Lending.CreateBorrowRequest(r.Context(), actor(r).UserID, itemID, in)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, b)
}

// List handles GET /api/borrows. Filters: item, role=borrower|lender and
// status, which may repeat or hold a comma-separated list.
func (h *BorrowsHandler) List(w http.ResponseWriter, r *http.Request) {
	itemID, err := queryID(r, "item")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item")
		return
	}

	f := store.BorrowFilter{ItemID: itemID}
	switch r.URL.Query().Get("role") {
	case "":
	case "borrower":
		f.BorrowerID = actor(r).UserID
	case "lender":
		f.LenderID = actor(r).UserID
	default:
		jsonError(w, http.StatusBadRequest, "role must be borrower or lender")
		return
	}
	for _, v := range r.URL.Query()["status"] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.Statuses = append(f.Statuses, model.BorrowStatus(strings.ToUpper(s)))
			}
		}
	}

	list, err := h.Lending.ListBorrowRequests(r.Context(), actor(r), f)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	if list == nil {
		list = []model.BorrowRequest{}
	}
	jsonResponse(w, http.StatusOK, list)
}

// Get handles GET /api/borrows/{id}.
func (h *BorrowsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	b, err := h.Lending.GetBorrowRequest(r.Context(), actor(r), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, b)
}

// Respond handles POST /api/borrows/{id}/respond.
func (h *BorrowsHandler) Respond(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req respondRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b, err := h.Lending.RespondAsLender(r.Context(), actor(r), id, lending.Decision(req.Decision), req.Response)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, b)
}

// Activate handles POST /api/borrows/{id}/activate.
func (h *BorrowsHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Lending.ActivateLoan)
}

// Return handles POST /api/borrows/{id}/return.
func (h *BorrowsHandler) Return(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Lending.ReturnItem)
}

// Cancel handles POST /api/borrows/{id}/cancel.
func (h *BorrowsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Lending.CancelBorrowRequest)
}

func (h *BorrowsHandler) transition(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, lending.Actor, int64) (*model.BorrowRequest, error)) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	b, err := fn(r.Context(), actor(r), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, b)
}

// ViewByToken handles GET /api/respond/{token}. No session is needed; the
// link stops working once the request has been answered.
func (h *BorrowsHandler) ViewByToken(w http.ResponseWriter, r *http.Request) {
	b, err := h.Lending.GetBorrowRequestByToken(r.Context(), r.PathValue("token"))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, b)
}

// RespondByToken handles POST /api/respond/{token}.
func (h *BorrowsHandler) RespondByToken(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b, err := h.Lending.RespondWithToken(r.Context(), r.PathValue("token"), lending.Decision(req.Decision), req.Response)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, b)
}
