package lending

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/posoja/internal/db"
	"github.com/erazemk/posoja/internal/model"
	"github.com/erazemk/posoja/internal/notify"
	"github.com/erazemk/posoja/internal/store"
)

// AdminActionInput describes a moderation action. Duration applies to
// suspensions, TrustDelta to trust adjustments.
type AdminActionInput struct {
	Type         string
	TargetUserID int64
	Reason       string
	Duration     time.Duration
	TrustDelta   int
}

// ApplyAdminAction records the action and mutates the target user in one
// transaction. It never touches borrow requests: a suspension only affects
// future eligibility, not loans already running.
func (s *Service) ApplyAdminAction(ctx context.Context, actor Actor, in AdminActionInput) (*model.AdminAction, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAdmin
	}
	if !model.ValidActionType(in.Type) {
		return nil, invalid("unknown action type %q", in.Type)
	}

	now := s.clock()
	metadata := map[string]any{}
	if r := strings.TrimSpace(in.Reason); r != "" {
		metadata["reason"] = r
	}

	var mutate func(tx *sql.Tx) (bool, error)
	switch in.Type {
	case model.ActionWarning:
		mutate = func(tx *sql.Tx) (bool, error) { return store.IncrementWarnings(ctx, tx, in.TargetUserID) }
	case model.ActionSuspension:
		if in.Duration <= 0 {
			return nil, invalid("suspension needs a positive duration")
		}
		until := now.Add(in.Duration)
		metadata["duration"] = in.Duration.String()
		metadata["until"] = until.Format(time.RFC3339)
		mutate = func(tx *sql.Tx) (bool, error) { return store.SetSuspendedUntil(ctx, tx, in.TargetUserID, &until) }
	case model.ActionLiftSuspension:
		mutate = func(tx *sql.Tx) (bool, error) { return store.SetSuspendedUntil(ctx, tx, in.TargetUserID, nil) }
	case model.ActionTrustAdjustment:
		if in.TrustDelta == 0 {
			return nil, invalid("trust adjustment needs a non-zero delta")
		}
		metadata["delta"] = in.TrustDelta
		mutate = func(tx *sql.Tx) (bool, error) { return store.AdjustTrustScore(ctx, tx, in.TargetUserID, in.TrustDelta) }
	}

	var action *model.AdminAction
	err := db.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		ok, err := mutate(tx)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUserNotFound
		}
		action, err = store.CreateAdminAction(ctx, tx, in.Type, in.TargetUserID, actor.UserID, metadata, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "admin action applied",
		"action_id", action.ID, "type", in.Type, "target_user_id", in.TargetUserID, "admin_id", actor.UserID)

	payload := map[string]string{"action": in.Type}
	for k, v := range metadata {
		payload[k] = toString(v)
	}
	s.dispatch(ctx, notify.EventAccountAction, payload, in.TargetUserID)
	return action, nil
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

// ListAdminActions returns actions against a user. Users may read their own
// record; admins may read anyone's, or everything with a zero target.
func (s *Service) ListAdminActions(ctx context.Context, actor Actor, targetUserID int64) ([]model.AdminAction, error) {
	if !actor.IsAdmin() && targetUserID != actor.UserID {
		return nil, ErrNotAdmin
	}
	return store.ListAdminActions(ctx, s.db, targetUserID)
}

// OpenDispute escalates a request. A non-terminal request moves to DISPUTED
// and keeps its item lock until the dispute is resolved; a terminal request
// keeps its status and only gains the dispute record.
func (s *Service) OpenDispute(ctx context.Context, actor Actor, requestID int64, reason string) (*model.Dispute, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("reason is required")
	}

	b, err := s.loadBorrow(ctx, s.db, requestID)
	if err != nil {
		return nil, err
	}
	if !b.Involves(actor.UserID) && !actor.IsAdmin() {
		return nil, ErrNotParticipant
	}

	now := s.clock()
	var dispute *model.Dispute
	err = db.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		open, err := store.GetOpenDispute(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if open != nil {
			return ErrDisputeExists
		}

		current, err := s.loadBorrow(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if dispute, err = store.CreateDispute(ctx, tx, current, actor.UserID, reason, now); err != nil {
			return err
		}

		if !current.Status.IsTerminal() && current.Status != model.BorrowDisputed {
			if _, err := store.TransitionBorrow(ctx, tx, requestID,
				[]model.BorrowStatus{current.Status}, model.BorrowDisputed, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "dispute opened", "dispute_id", dispute.ID, "request_id", requestID, "by", actor.UserID)

	payload := borrowPayload(b)
	payload["dispute_id"] = strconv.FormatInt(dispute.ID, 10)
	payload["reason"] = reason
	s.dispatch(ctx, notify.EventDisputeOpened, payload, b.BorrowerID, b.LenderID)
	return dispute, nil
}

// ResolveDispute closes an open dispute and forces its request into RESOLVED
// or CANCELLED, whatever its current non-terminal status, releasing the item
// lock if the request holds it. Resolving twice fails with
// ErrAlreadyResolved and has no further effect.
func (s *Service) ResolveDispute(ctx context.Context, actor Actor, disputeID int64, outcome, resolution string) (*model.Dispute, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAdmin
	}

	var terminal model.BorrowStatus
	switch outcome {
	case model.OutcomeResolved, "":
		outcome, terminal = model.OutcomeResolved, model.BorrowResolved
	case model.OutcomeCancelled:
		terminal = model.BorrowCancelled
	default:
		return nil, invalid("outcome must be resolved or cancelled")
	}

	now := s.clock()
	var d *model.Dispute
	err := db.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		d, err = store.GetDispute(ctx, tx, disputeID)
		if err != nil {
			return err
		}
		if d == nil {
			return ErrDisputeNotFound
		}

		ok, err := store.ResolveDispute(ctx, tx, disputeID, actor.UserID, outcome, strings.TrimSpace(resolution), now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyResolved
		}

		_, err = store.TerminateBorrow(ctx, tx, d.BorrowRequestID, nil, terminal, now, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	resolved, err := store.GetDispute(ctx, s.db, disputeID)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "dispute resolved",
		"dispute_id", disputeID, "request_id", d.BorrowRequestID, "outcome", outcome, "admin_id", actor.UserID)

	s.dispatch(ctx, notify.EventDisputeResolved, map[string]string{
		"dispute_id": strconv.FormatInt(disputeID, 10),
		"request_id": strconv.FormatInt(d.BorrowRequestID, 10),
		"outcome":    outcome,
		"resolution": resolved.Resolution,
	}, d.PartyAID, d.PartyBID)
	return resolved, nil
}

// GetDispute returns a dispute to an admin or one of its parties.
func (s *Service) GetDispute(ctx context.Context, actor Actor, id int64) (*model.Dispute, error) {
	d, err := store.GetDispute(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrDisputeNotFound
	}
	if !actor.IsAdmin() && actor.UserID != d.PartyAID && actor.UserID != d.PartyBID {
		return nil, ErrNotParticipant
	}
	return d, nil
}

// ListDisputes returns disputes, optionally filtered by status. Admin only.
func (s *Service) ListDisputes(ctx context.Context, actor Actor, status string) ([]model.Dispute, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAdmin
	}
	if status != "" && status != model.DisputeOpen && status != model.DisputeResolved {
		return nil, invalid("status must be OPEN or RESOLVED")
	}
	return store.ListDisputes(ctx, s.db, status)
}
