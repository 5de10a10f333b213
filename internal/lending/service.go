// Package lending implements the borrow-request lifecycle: item
// registration, requests, lender responses, hand-over and return, and the
// moderation paths that can force a request to a terminal state.
//
// All cross-request coordination happens through conditional updates in
// the store. The item lock (items.lock_holder_id) is only ever set while a
// request is approved and cleared by store.TerminateBorrow.
package lending

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"time"

	"github.com/erazemk/posoja/internal/media"
	"github.com/erazemk/posoja/internal/model"
	"github.com/erazemk/posoja/internal/notify"
	"github.com/erazemk/posoja/internal/store"
)

// Options holds lending policy. ReminderRepeat spaces overdue reminders for
// one loan; zero sends a single reminder. ResponseLink builds the public URL
// for a response token.
type Options struct {
	DefaultTrustScore int
	MinTrustScore     int
	ReturnTrustBonus  int
	ReminderRepeat    time.Duration
	ResponseLink      func(token string) string
}

// Actor is the authenticated principal performing an operation.
type Actor struct {
	UserID int64
	Role   string
}

// IsAdmin reports whether the actor has the admin role.
func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// Service runs lending operations against the database.
type Service struct {
	db     *sql.DB
	log    *slog.Logger
	notify notify.Notifier
	media  media.Store
	opts   Options
	now    func() time.Time
}

// New returns a Service. A nil notifier discards notifications.
func New(database *sql.DB, log *slog.Logger, n notify.Notifier, m media.Store, opts Options) *Service {
	if n == nil {
		n = notify.Discard{}
	}
	if opts.ResponseLink == nil {
		opts.ResponseLink = func(token string) string { return "/api/respond/" + token }
	}
	return &Service{
		db:     database,
		log:    log,
		notify: n,
		media:  m,
		opts:   opts,
		now:    time.Now,
	}
}

func (s *Service) clock() time.Time { return s.now().UTC() }

// dispatch hands a message to the notifier for every recipient. It runs
// after commit and never fails the calling operation.
func (s *Service) dispatch(ctx context.Context, event notify.Event, payload map[string]string, userIDs ...int64) {
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorContext(ctx, "notification dispatch panicked", "event", string(event), "panic", r)
		}
	}()

	for _, id := range userIDs {
		u, err := store.GetUser(ctx, s.db, id)
		if err != nil || u == nil {
			s.log.WarnContext(ctx, "notification recipient not found", "event", string(event), "user_id", id, "error", err)
			continue
		}
		s.notify.Notify(notify.Message{
			Event:   event,
			To:      notify.Contact{UserID: u.ID, Username: u.Username, Email: u.Email, Phone: u.Phone},
			Payload: payload,
		})
	}
}

func borrowPayload(b *model.BorrowRequest) map[string]string {
	return map[string]string{
		"request_id":         strconv.FormatInt(b.ID, 10),
		"item":               b.ItemName,
		"borrower":           b.BorrowerName,
		"lender":             b.LenderName,
		"status":             string(b.Status),
		"promised_return_by": b.PromisedReturnBy.Format(time.RFC3339),
	}
}
