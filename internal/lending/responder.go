package lending

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/erazemk/posoja/internal/db"
	"github.com/erazemk/posoja/internal/model"
	"github.com/erazemk/posoja/internal/notify"
	"github.com/erazemk/posoja/internal/store"
)

// Decision is a lender's answer to a pending request.
type Decision string

// Decisions.
const (
	DecisionApprove Decision = "approve"
	DecisionDecline Decision = "decline"
)

var pendingOnly = []model.BorrowStatus{model.BorrowPending}

// RespondAsLender answers a request from an authenticated lender session.
func (s *Service) RespondAsLender(ctx context.Context, actor Actor, requestID int64, decision Decision, text string) (*model.BorrowRequest, error) {
	b, err := s.loadBorrow(ctx, s.db, requestID)
	if err != nil {
		return nil, err
	}
	if b.LenderID != actor.UserID {
		return nil, ErrNotLender
	}
	return s.respond(ctx, b, decision, text)
}

// RespondWithToken answers a request through its response link. The token
// is not consumed; once the request leaves PENDING the status guard rejects
// every further use.
func (s *Service) RespondWithToken(ctx context.Context, token string, decision Decision, text string) (*model.BorrowRequest, error) {
	b, err := s.borrowByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, b, decision, text)
}

func (s *Service) respond(ctx context.Context, b *model.BorrowRequest, decision Decision, text string) (*model.BorrowRequest, error) {
	text = strings.TrimSpace(text)
	now := s.clock()

	var event notify.Event
	err := db.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		switch decision {
		case DecisionApprove:
			event = notify.EventBorrowApproved
			return s.approve(ctx, tx, b, text)
		case DecisionDecline:
			event = notify.EventBorrowDeclined
			ok, err := store.TransitionBorrow(ctx, tx, b.ID, pendingOnly, model.BorrowDeclined, map[string]any{
				"responded_at":    now,
				"lender_response": text,
				"closed_at":       now,
			})
			if err != nil {
				return err
			}
			if !ok {
				return ErrAlreadyResponded
			}
			return nil
		default:
			return invalid("decision must be approve or decline")
		}
	})
	if err != nil {
		if errors.Is(err, ErrConcurrentApproval) {
			s.log.InfoContext(ctx, "approval lost the race for the item", "request_id", b.ID, "item_id", b.ItemID)
		}
		return nil, err
	}

	updated, err := s.loadBorrow(ctx, s.db, b.ID)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "borrow request answered", "request_id", b.ID, "decision", string(decision))

	payload := borrowPayload(updated)
	if text != "" {
		payload["lender_response"] = text
	}
	s.dispatch(ctx, event, payload, updated.BorrowerID)
	return updated, nil
}

// approve takes the item lock and moves the request to APPROVED in one
// transaction. Losing the lock leaves the request PENDING.
func (s *Service) approve(ctx context.Context, tx *sql.Tx, b *model.BorrowRequest, text string) error {
	current, err := s.loadBorrow(ctx, tx, b.ID)
	if err != nil {
		return err
	}
	if current.Status != model.BorrowPending {
		return ErrAlreadyResponded
	}

	locked, err := store.AcquireItemLock(ctx, tx, current.ItemID, current.ID)
	if err != nil {
		return err
	}
	if !locked {
		return ErrConcurrentApproval
	}

	now := s.clock()
	ok, err := store.TransitionBorrow(ctx, tx, current.ID, pendingOnly, model.BorrowApproved, map[string]any{
		"responded_at":    now,
		"approved_at":     now,
		"lender_response": text,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyResponded
	}
	return nil
}

// ActivateLoan records the hand-over of an approved item to the borrower.
func (s *Service) ActivateLoan(ctx context.Context, actor Actor, requestID int64) (*model.BorrowRequest, error) {
	b, err := s.loadBorrow(ctx, s.db, requestID)
	if err != nil {
		return nil, err
	}
	if b.LenderID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrNotLender
	}

	ok, err := store.TransitionBorrow(ctx, s.db, requestID,
		[]model.BorrowStatus{model.BorrowApproved}, model.BorrowActive,
		map[string]any{"borrowed_at": s.clock()})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidState
	}

	updated, err := s.loadBorrow(ctx, s.db, requestID)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "loan started", "request_id", requestID, "item_id", updated.ItemID)
	s.dispatch(ctx, notify.EventLoanStarted, borrowPayload(updated), updated.BorrowerID)
	return updated, nil
}

// ReturnItem closes an ACTIVE loan, releases the item and credits the
// borrower's trust score. Returning twice fails with ErrInvalidState.
func (s *Service) ReturnItem(ctx context.Context, actor Actor, requestID int64) (*model.BorrowRequest, error) {
	b, err := s.loadBorrow(ctx, s.db, requestID)
	if err != nil {
		return nil, err
	}
	if !b.Involves(actor.UserID) && !actor.IsAdmin() {
		return nil, ErrNotParticipant
	}

	now := s.clock()
	err = db.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		ok, err := store.TerminateBorrow(ctx, tx, requestID,
			[]model.BorrowStatus{model.BorrowActive}, model.BorrowReturned, now,
			map[string]any{"returned_at": now})
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}
		if s.opts.ReturnTrustBonus > 0 {
			if _, err := store.AdjustTrustScore(ctx, tx, b.BorrowerID, s.opts.ReturnTrustBonus); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.loadBorrow(ctx, s.db, requestID)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "item returned", "request_id", requestID, "item_id", updated.ItemID)
	s.dispatch(ctx, notify.EventItemReturned, borrowPayload(updated), updated.LenderID, updated.BorrowerID)
	return updated, nil
}

// CancelBorrowRequest withdraws a request before the loan starts. Either
// party or an admin may cancel; an approved request gives its lock back.
func (s *Service) CancelBorrowRequest(ctx context.Context, actor Actor, requestID int64) (*model.BorrowRequest, error) {
	b, err := s.loadBorrow(ctx, s.db, requestID)
	if err != nil {
		return nil, err
	}
	if !b.Involves(actor.UserID) && !actor.IsAdmin() {
		return nil, ErrNotParticipant
	}

	err = db.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		ok, err := store.TerminateBorrow(ctx, tx, requestID,
			[]model.BorrowStatus{model.BorrowPending, model.BorrowApproved}, model.BorrowCancelled,
			s.clock(), nil)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.loadBorrow(ctx, s.db, requestID)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "borrow request cancelled", "request_id", requestID, "by", actor.UserID)
	recipients := []int64{updated.Counterparty(actor.UserID)}
	if !updated.Involves(actor.UserID) {
		recipients = []int64{updated.BorrowerID, updated.LenderID}
	}
	s.dispatch(ctx, notify.EventBorrowCancelled, borrowPayload(updated), recipients...)
	return updated, nil
}
