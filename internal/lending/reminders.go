package lending

import (
	"context"
	"time"

	"github.com/erazemk/posoja/internal/notify"
	"github.com/erazemk/posoja/internal/store"
)

// SendOverdueReminders notifies borrowers whose ACTIVE loans are past the
// promised return time. A loan is reminded again only after ReminderRepeat
// has passed. It changes no loan state; the lock stays until the item is
// returned or a dispute is resolved.
func (s *Service) SendOverdueReminders(ctx context.Context) (int, error) {
	now := s.clock()
	var remindedBefore time.Time
	if s.opts.ReminderRepeat > 0 {
		remindedBefore = now.Add(-s.opts.ReminderRepeat)
	}

	overdue, err := store.ListOverdueBorrows(ctx, s.db, now, remindedBefore)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range overdue {
		b := &overdue[i]
		if err := store.MarkBorrowReminded(ctx, s.db, b.ID, now); err != nil {
			s.log.ErrorContext(ctx, "marking overdue reminder", "borrow_id", b.ID, "error", err)
			continue
		}
		payload := borrowPayload(b)
		payload["overdue_by"] = now.Sub(b.PromisedReturnBy).Truncate(time.Minute).String()
		s.dispatch(ctx, notify.EventLoanOverdue, payload, b.BorrowerID)
		sent++
	}

	if sent > 0 {
		s.log.InfoContext(ctx, "overdue reminders sent", "count", sent)
	}
	return sent, nil
}

// RunReminders calls SendOverdueReminders every interval until ctx ends.
func (s *Service) RunReminders(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SendOverdueReminders(ctx); err != nil {
				s.log.ErrorContext(ctx, "overdue reminders failed", "error", err)
			}
		}
	}
}
