package model

import "time"

// BorrowStatus is the lifecycle state of a borrow request.
type BorrowStatus string

// Borrow request statuses.
//
//	PENDING -> APPROVED -> ACTIVE -> RETURNED
//	PENDING -> DECLINED
//	PENDING | APPROVED -> CANCELLED
//	any non-terminal -> DISPUTED -> RESOLVED | CANCELLED
const (
	BorrowPending   BorrowStatus = "PENDING"
	BorrowApproved  BorrowStatus = "APPROVED"
	BorrowActive    BorrowStatus = "ACTIVE"
	BorrowDeclined  BorrowStatus = "DECLINED"
	BorrowReturned  BorrowStatus = "RETURNED"
	BorrowCancelled BorrowStatus = "CANCELLED"
	BorrowDisputed  BorrowStatus = "DISPUTED"
	BorrowResolved  BorrowStatus = "RESOLVED"
)

// NonTerminalStatuses lists every status a request can still leave.
var NonTerminalStatuses = []BorrowStatus{
	BorrowPending,
	BorrowApproved,
	BorrowActive,
	BorrowDisputed,
}

// IsTerminal reports whether no further transition is allowed.
func (s BorrowStatus) IsTerminal() bool {
	switch s {
	case BorrowDeclined, BorrowReturned, BorrowCancelled, BorrowResolved:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s BorrowStatus) Valid() bool {
	switch s {
	case BorrowPending, BorrowApproved, BorrowActive, BorrowDeclined,
		BorrowReturned, BorrowCancelled, BorrowDisputed, BorrowResolved:
		return true
	}
	return false
}

// BorrowRequest is one borrower's request for, and eventual use of, an item.
type BorrowRequest struct {
	ID               int64        `json:"id"`
	ItemID           int64        `json:"item_id"`
	BorrowerID       int64        `json:"borrower_id"`
	LenderID         int64        `json:"lender_id"`
	Status           BorrowStatus `json:"status"`
	PromiseText      string       `json:"promise_text"`
	PromisedReturnBy time.Time    `json:"promised_return_by"`
	ResponseToken    string       `json:"-"`
	VideoURL         string       `json:"video_url,omitempty"`
	LenderResponse   string       `json:"lender_response,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	RespondedAt      *time.Time   `json:"responded_at,omitempty"`
	ApprovedAt       *time.Time   `json:"approved_at,omitempty"`
	BorrowedAt       *time.Time   `json:"borrowed_at,omitempty"`
	ReturnedAt       *time.Time   `json:"returned_at,omitempty"`
	ClosedAt         *time.Time   `json:"closed_at,omitempty"`

	// Joined fields (not always populated).
	ItemName     string `json:"item_name,omitempty"`
	BorrowerName string `json:"borrower_name,omitempty"`
	LenderName   string `json:"lender_name,omitempty"`
}

// Involves reports whether the user is the borrower or the lender.
func (b *BorrowRequest) Involves(userID int64) bool {
	return b.BorrowerID == userID || b.LenderID == userID
}

// Counterparty returns the other participant of the request.
func (b *BorrowRequest) Counterparty(userID int64) int64 {
	if userID == b.BorrowerID {
		return b.LenderID
	}
	return b.BorrowerID
}
