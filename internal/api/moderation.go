package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/posoja/internal/lending"
	"github.com/erazemk/posoja/internal/model"
)

// ModerationHandler handles disputes and admin actions.
type ModerationHandler struct {
	Lending *lending.Service
}

type adminActionRequest struct {
	Type       string `json:"type"`
	Reason     string `json:"reason"`
	Duration   string `json:"duration"`
	TrustDelta int    `json:"trust_delta"`
}

type openDisputeRequest struct {
	Reason string `json:"reason"`
}

type resolveDisputeRequest struct {
	Outcome    string `json:"outcome"`
	Resolution string `json:"resolution"`
}

// ApplyAction handles POST /api/users/{id}/actions.
func (h *ModerationHandler) ApplyAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req adminActionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var d time.Duration
	if req.Duration != "" {
		var err error
		if d, err = time.ParseDuration(req.Duration); err != nil {
			jsonError(w, http.StatusBadRequest, "duration must look like 72h or 30m")
			return
		}
	}

	action, err := h.Lending.ApplyAdminAction(r.Context(), actor(r), lending.AdminActionInput{
		Type:         strings.ToLower(req.Type),
		TargetUserID: id,
		Reason:       req.Reason,
		Duration:     d,
		TrustDelta:   req.TrustDelta,
	})
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, action)
}

// ListActions handles GET /api/users/{id}/actions.
func (h *ModerationHandler) ListActions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.listActions(w, r, id)
}

// ListAllActions handles GET /api/admin/actions.
func (h *ModerationHandler) ListAllActions(w http.ResponseWriter, r *http.Request) {
	h.listActions(w, r, 0)
}

func (h *ModerationHandler) listActions(w http.ResponseWriter, r *http.Request, target int64) {
	actions, err := h.Lending.ListAdminActions(r.Context(), actor(r), target)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	if actions == nil {
		actions = []model.AdminAction{}
	}
	jsonResponse(w, http.StatusOK, actions)
}

// OpenDispute handles POST /api/borrows/{id}/disputes.
func (h *ModerationHandler) OpenDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req openDisputeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d, err := h.Lending.OpenDispute(r.Context(), actor(r), id, req.Reason)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, d)
}

// ListDisputes handles GET /api/disputes.
func (h *ModerationHandler) ListDisputes(w http.ResponseWriter, r *http.Request) {
	disputes, err := h.Lending.ListDisputes(r.Context(), actor(r), strings.ToUpper(r.URL.Query().Get("status")))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	if disputes == nil {
		disputes = []model.Dispute{}
	}
	jsonResponse(w, http.StatusOK, disputes)
}

// GetDispute handles GET /api/disputes/{id}.
func (h *ModerationHandler) GetDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	d, err := h.Lending.GetDispute(r.Context(), actor(r), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, d)
}

// ResolveDispute handles POST /api/disputes/{id}/resolve.
func (h *ModerationHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req resolveDisputeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d, err := h.Lending.ResolveDispute(r.Context(), actor(r), id, strings.ToLower(req.Outcome), req.Resolution)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, d)
}
