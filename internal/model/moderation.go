package model

import "time"

// Dispute statuses.
const (
	DisputeOpen     = "OPEN"
	DisputeResolved = "RESOLVED"
)

// Dispute outcomes pick the terminal status forced onto the borrow request.
const (
	OutcomeResolved  = "resolved"
	OutcomeCancelled = "cancelled"
)

// Dispute escalates a borrow request for administrative resolution.
type Dispute struct {
	ID              int64      `json:"id"`
	BorrowRequestID int64      `json:"borrow_request_id"`
	ItemID          int64      `json:"item_id"`
	PartyAID        int64      `json:"party_a_id"`
	PartyBID        int64      `json:"party_b_id"`
	OpenedBy        int64      `json:"opened_by"`
	Reason          string     `json:"reason"`
	Status          string     `json:"status"`
	Outcome         string     `json:"outcome,omitempty"`
	Resolution      string     `json:"resolution,omitempty"`
	ResolvedBy      *int64     `json:"resolved_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// Admin action types.
const (
	ActionWarning         = "warning"
	ActionSuspension      = "suspension"
	ActionLiftSuspension  = "lift_suspension"
	ActionTrustAdjustment = "trust_adjustment"
)

// ValidActionType reports whether t is a known admin action type.
func ValidActionType(t string) bool {
	switch t {
	case ActionWarning, ActionSuspension, ActionLiftSuspension, ActionTrustAdjustment:
		return true
	}
	return false
}

// AdminAction records a moderation action taken against a user.
type AdminAction struct {
	ID           int64          `json:"id"`
	Type         string         `json:"type"`
	TargetUserID int64          `json:"target_user_id"`
	AdminID      int64          `json:"admin_id"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}
