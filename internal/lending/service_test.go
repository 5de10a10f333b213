package lending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/erazemk/posoja/internal/db"
	"github.com/erazemk/posoja/internal/media"
	"github.com/erazemk/posoja/internal/model"
	"github.com/erazemk/posoja/internal/notify"
	"github.com/erazemk/posoja/internal/store"
)

type recorder struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recorder) Notify(m notify.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func (r *recorder) events(userID int64) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, m := range r.msgs {
		if m.To.UserID == userID {
			out = append(out, m.Event)
		}
	}
	return out
}

func (r *recorder) last(event notify.Event) *notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if r.msgs[i].Event == event {
			return &r.msgs[i]
		}
	}
	return nil
}

type panicNotifier struct{}

func (panicNotifier) Notify(notify.Message) { panic("gateway exploded") }

type fakeMedia struct {
	err   error
	calls int
}

func (f *fakeMedia) Store(_ context.Context, _ []byte, filename string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "/api/media/" + filename, nil
}

type fixture struct {
	svc      *Service
	db       *sql.DB
	rec      *recorder
	media    *fakeMedia
	admin    *model.User
	owner    *model.User
	borrower *model.User
	item     *model.Item
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{db: db.NewTestDB(t), rec: &recorder{}, media: &fakeMedia{}}
	f.svc = New(f.db, slog.New(slog.DiscardHandler), f.rec, f.media, Options{
		DefaultTrustScore: 100,
		ReturnTrustBonus:  1,
		ReminderRepeat:    24 * time.Hour,
	})

	f.admin = f.user(t, "admin", model.RoleAdmin)
	f.owner = f.user(t, "owner", model.RoleUser)
	f.borrower = f.user(t, "borrower", model.RoleUser)

	item, err := f.svc.CreateItem(ctx, f.owner.ID, ItemInput{Name: "Ladder", Condition: model.ConditionGood})
	require.NoError(t, err)
	f.item, err = f.svc.ActivateItem(ctx, actorOf(f.owner), item.ID, nil)
	require.NoError(t, err)
	return f
}

func (f *fixture) user(t *testing.T, name, role string) *model.User {
	t.Helper()
	u, err := f.svc.RegisterUser(context.Background(), UserInput{
		Username: name,
		Password: "correct-horse",
		Role:     role,
		Email:    name + "@example.org",
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) request(t *testing.T, borrower *model.User) *model.BorrowRequest {
	t.Helper()
	b, err := f.svc.CreateBorrowRequest(context.Background(), borrower.ID, f.item.ID, BorrowInput{
		PromiseText:      "Back by the weekend",
		PromisedReturnBy: time.Now().Add(48 * time.Hour),
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) approved(t *testing.T) *model.BorrowRequest {
	t.Helper()
	b := f.request(t, f.borrower)
	b, err := f.svc.RespondAsLender(context.Background(), actorOf(f.owner), b.ID, DecisionApprove, "")
	require.NoError(t, err)
	return b
}

func (f *fixture) available(t *testing.T) bool {
	t.Helper()
	ok, err := f.svc.IsAvailable(context.Background(), f.item.ID)
	require.NoError(t, err)
	return ok
}

func actorOf(u *model.User) Actor { return Actor{UserID: u.ID, Role: u.Role} }

func TestCreateBorrowRequest(t *testing.T) {
	f := newFixture(t)

	b := f.request(t, f.borrower)
	assert.Equal(t, model.BorrowPending, b.Status)
	assert.Equal(t, f.owner.ID, b.LenderID)
	assert.Len(t, b.ResponseToken, 64)
	assert.True(t, f.available(t), "a pending request must not lock the item")

	msg := f.rec.last(notify.EventBorrowRequested)
	require.NotNil(t, msg)
	assert.Equal(t, f.owner.ID, msg.To.UserID)
	assert.Equal(t, "/api/respond/"+b.ResponseToken, msg.Payload["response_link"])
}

func TestCreateBorrowRequestRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	future := time.Now().Add(24 * time.Hour)

	_, err := f.svc.CreateBorrowRequest(ctx, f.borrower.ID, f.item.ID, BorrowInput{PromisedReturnBy: future})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CreateBorrowRequest(ctx, f.borrower.ID, f.item.ID, BorrowInput{
		PromiseText:      "soon",
		PromisedReturnBy: time.Now().Add(-time.Hour),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CreateBorrowRequest(ctx, f.borrower.ID, 9999, BorrowInput{PromiseText: "soon", PromisedReturnBy: future})
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = f.svc.CreateBorrowRequest(ctx, f.owner.ID, f.item.ID, BorrowInput{PromiseText: "mine", PromisedReturnBy: future})
	assert.ErrorIs(t, err, ErrSelfBorrow)

	nocontact, err := f.svc.RegisterUser(ctx, UserInput{Username: "ghost", Password: "correct-horse"})
	require.NoError(t, err)
	_, err = f.svc.CreateBorrowRequest(ctx, nocontact.ID, f.item.ID, BorrowInput{PromiseText: "hi", PromisedReturnBy: future})
	assert.ErrorIs(t, err, ErrMissingContactInfo)

	all, err := store.ListBorrows(ctx, f.db, store.BorrowFilter{})
	require.NoError(t, err)
	assert.Empty(t, all, "rejected requests must not write rows")
}

func TestCreateBorrowRequestInactiveItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	inactive, err := f.svc.CreateItem(ctx, f.owner.ID, ItemInput{Name: "Tent"})
	require.NoError(t, err)
	_, err = f.svc.CreateBorrowRequest(ctx, f.borrower.ID, inactive.ID, BorrowInput{
		PromiseText:      "camping",
		PromisedReturnBy: time.Now().Add(time.Hour),
	})
	assert.ErrorIs(t, err, ErrItemUnavailable)
}

func TestBorrowerEligibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := actorOf(f.admin)
	in := BorrowInput{PromiseText: "promise", PromisedReturnBy: time.Now().Add(time.Hour)}

	_, err := f.svc.ApplyAdminAction(ctx, admin, AdminActionInput{
		Type: model.ActionSuspension, TargetUserID: f.borrower.ID, Duration: 24 * time.Hour,
	})
	require.NoError(t, err)
	_, err = f.svc.CreateBorrowRequest(ctx, f.borrower.ID, f.item.ID, in)
	assert.ErrorIs(t, err, ErrBorrowerSuspended)

	_, err = f.svc.ApplyAdminAction(ctx, admin, AdminActionInput{Type: model.ActionLiftSuspension, TargetUserID: f.borrower.ID})
	require.NoError(t, err)

	f.svc.opts.MinTrustScore = 50
	_, err = f.svc.ApplyAdminAction(ctx, admin, AdminActionInput{
		Type: model.ActionTrustAdjustment, TargetUserID: f.borrower.ID, TrustDelta: -60,
	})
	require.NoError(t, err)
	_, err = f.svc.CreateBorrowRequest(ctx, f.borrower.ID, f.item.ID, in)
	assert.ErrorIs(t, err, ErrInsufficientTrust)
}

func TestConcurrentApprovals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const n = 6
	requests := make([]*model.BorrowRequest, n)
	for i := range requests {
		requests[i] = f.request(t, f.user(t, fmt.Sprintf("borrower%d", i), model.RoleUser))
	}

	errs := make([]error, n)
	var g errgroup.Group
	for i, b := range requests {
		g.Go(func() error {
			_, errs[i] = f.svc.RespondAsLender(ctx, actorOf(f.owner), b.ID, DecisionApprove, "ok")
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var winner int64
	for i, err := range errs {
		if err == nil {
			require.Zero(t, winner, "more than one approval succeeded")
			winner = requests[i].ID
			continue
		}
		assert.ErrorIs(t, err, ErrConcurrentApproval)
	}
	require.NotZero(t, winner)

	item, err := f.svc.GetItem(ctx, f.item.ID)
	require.NoError(t, err)
	require.NotNil(t, item.LockHolderID)
	assert.Equal(t, winner, *item.LockHolderID)

	for _, b := range requests {
		got, err := f.svc.GetBorrowRequest(ctx, actorOf(f.admin), b.ID)
		require.NoError(t, err)
		if b.ID == winner {
			assert.Equal(t, model.BorrowApproved, got.Status)
		} else {
			assert.Equal(t, model.BorrowPending, got.Status, "losers stay pending")
		}
	}
}

func TestRespondTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lender := actorOf(f.owner)

	b := f.approved(t)
	assert.Equal(t, model.BorrowApproved, b.Status)
	assert.NotNil(t, b.ApprovedAt)

	_, err := f.svc.RespondAsLender(ctx, lender, b.ID, DecisionApprove, "")
	assert.ErrorIs(t, err, ErrAlreadyResponded)
	_, err = f.svc.RespondAsLender(ctx, lender, b.ID, DecisionDecline, "")
	assert.ErrorIs(t, err, ErrAlreadyResponded)

	_, err = f.svc.RespondAsLender(ctx, actorOf(f.borrower), b.ID, DecisionApprove, "")
	assert.ErrorIs(t, err, ErrNotLender)
}

func TestConcurrentTokenResponses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for round := range 10 {
		b := f.request(t, f.user(t, fmt.Sprintf("racer%d", round), model.RoleUser))

		decisions := []Decision{DecisionApprove, DecisionDecline}
		errs := make([]error, len(decisions))
		var g errgroup.Group
		for i, d := range decisions {
			g.Go(func() error {
				_, errs[i] = f.svc.RespondWithToken(ctx, b.ResponseToken, d, "")
				return nil
			})
		}
		require.NoError(t, g.Wait())

		winner := -1
		for i, err := range errs {
			if err == nil {
				require.Equal(t, -1, winner, "both responses succeeded")
				winner = i
				continue
			}
			assert.ErrorIs(t, err, ErrAlreadyResponded)
		}
		require.NotEqual(t, -1, winner, "no response succeeded")

		got, err := f.svc.GetBorrowRequest(ctx, actorOf(f.admin), b.ID)
		require.NoError(t, err)
		if decisions[winner] == DecisionApprove {
			assert.Equal(t, model.BorrowApproved, got.Status)
			_, err = f.svc.CancelBorrowRequest(ctx, actorOf(f.owner), b.ID)
			require.NoError(t, err)
		} else {
			assert.Equal(t, model.BorrowDeclined, got.Status)
		}
		require.True(t, f.available(t))
	}
}

func TestItemHistoryVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.approved(t)
	stranger := f.user(t, "stranger", model.RoleUser)

	history, err := f.svc.ItemHistory(ctx, actorOf(stranger), f.item.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	for _, u := range []*model.User{f.owner, f.admin, f.borrower} {
		history, err = f.svc.ItemHistory(ctx, actorOf(u), f.item.ID)
		require.NoError(t, err)
		require.Len(t, history, 1, u.Username)
		assert.Equal(t, "Back by the weekend", history[0].PromiseText)
	}

	_, err = f.svc.ItemHistory(ctx, actorOf(stranger), 9999)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestUnavailableAfterApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.approved(t)
	assert.False(t, f.available(t))

	other := f.user(t, "latecomer", model.RoleUser)
	_, err := f.svc.CreateBorrowRequest(ctx, other.ID, f.item.ID, BorrowInput{
		PromiseText:      "please",
		PromisedReturnBy: time.Now().Add(time.Hour),
	})
	assert.ErrorIs(t, err, ErrItemUnavailable)
}

func TestResponseToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b := f.request(t, f.borrower)

	viewed, err := f.svc.GetBorrowRequestByToken(ctx, b.ResponseToken)
	require.NoError(t, err)
	assert.Equal(t, b.ID, viewed.ID)

	declined, err := f.svc.RespondWithToken(ctx, b.ResponseToken, DecisionDecline, "not this week")
	require.NoError(t, err)
	assert.Equal(t, model.BorrowDeclined, declined.Status)
	assert.Equal(t, "not this week", declined.LenderResponse)
	assert.NotNil(t, declined.ClosedAt)
	assert.True(t, f.available(t), "declining never touches the lock")

	_, err = f.svc.GetBorrowRequestByToken(ctx, b.ResponseToken)
	assert.ErrorIs(t, err, ErrResponseLinkExpired)
	_, err = f.svc.RespondWithToken(ctx, b.ResponseToken, DecisionApprove, "")
	assert.ErrorIs(t, err, ErrAlreadyResponded)

	_, err = f.svc.RespondWithToken(ctx, "short", DecisionApprove, "")
	assert.ErrorIs(t, err, ErrInvalidResponseToken)

	assert.Contains(t, f.rec.events(f.borrower.ID), notify.EventBorrowDeclined)
}

func TestLoanLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lender := actorOf(f.owner)

	b := f.approved(t)

	active, err := f.svc.ActivateLoan(ctx, lender, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BorrowActive, active.Status)
	assert.NotNil(t, active.BorrowedAt)

	_, err = f.svc.ActivateLoan(ctx, lender, b.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	returned, err := f.svc.ReturnItem(ctx, actorOf(f.borrower), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BorrowReturned, returned.Status)
	assert.NotNil(t, returned.ReturnedAt)
	assert.True(t, f.available(t))

	_, err = f.svc.ReturnItem(ctx, actorOf(f.borrower), b.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	u, err := f.svc.GetUser(ctx, actorOf(f.borrower), f.borrower.ID)
	require.NoError(t, err)
	assert.Equal(t, 101, u.TrustScore, "trust bonus is credited once")

	assert.Equal(t, []notify.Event{
		notify.EventBorrowApproved,
		notify.EventLoanStarted,
		notify.EventItemReturned,
	}, f.rec.events(f.borrower.ID))
}

func TestReturnRequiresActive(t *testing.T) {
	f := newFixture(t)

	b := f.approved(t)
	_, err := f.svc.ReturnItem(context.Background(), actorOf(f.owner), b.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.False(t, f.available(t))
}

func TestCancelReleasesLock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b := f.approved(t)
	stranger := f.user(t, "stranger", model.RoleUser)
	_, err := f.svc.CancelBorrowRequest(ctx, actorOf(stranger), b.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)

	cancelled, err := f.svc.CancelBorrowRequest(ctx, actorOf(f.borrower), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BorrowCancelled, cancelled.Status)
	assert.True(t, f.available(t))
	assert.Contains(t, f.rec.events(f.owner.ID), notify.EventBorrowCancelled)

	_, err = f.svc.CancelBorrowRequest(ctx, actorOf(f.borrower), b.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestDisputeResolutionReleasesLock(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, f *fixture) *model.BorrowRequest
		outcome string
		want    model.BorrowStatus
	}{
		{
			name:    "pending",
			setup:   func(t *testing.T, f *fixture) *model.BorrowRequest { return f.request(t, f.borrower) },
			outcome: model.OutcomeCancelled,
			want:    model.BorrowCancelled,
		},
		{
			name:    "approved",
			setup:   func(t *testing.T, f *fixture) *model.BorrowRequest { return f.approved(t) },
			outcome: model.OutcomeResolved,
			want:    model.BorrowResolved,
		},
		{
			name: "active",
			setup: func(t *testing.T, f *fixture) *model.BorrowRequest {
				b := f.approved(t)
				b, err := f.svc.ActivateLoan(context.Background(), actorOf(f.owner), b.ID)
				require.NoError(t, err)
				return b
			},
			outcome: model.OutcomeResolved,
			want:    model.BorrowResolved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			b := tt.setup(t, f)
			locked := !f.available(t)

			d, err := f.svc.OpenDispute(ctx, actorOf(f.borrower), b.ID, "it came back broken")
			require.NoError(t, err)
			assert.Equal(t, model.DisputeOpen, d.Status)

			disputed, err := f.svc.GetBorrowRequest(ctx, actorOf(f.borrower), b.ID)
			require.NoError(t, err)
			assert.Equal(t, model.BorrowDisputed, disputed.Status)
			assert.Equal(t, locked, !f.available(t), "opening a dispute keeps the lock as it was")

			_, err = f.svc.OpenDispute(ctx, actorOf(f.owner), b.ID, "again")
			assert.ErrorIs(t, err, ErrDisputeExists)

			_, err = f.svc.ResolveDispute(ctx, actorOf(f.owner), d.ID, tt.outcome, "")
			assert.ErrorIs(t, err, ErrNotAdmin)

			resolved, err := f.svc.ResolveDispute(ctx, actorOf(f.admin), d.ID, tt.outcome, "settled")
			require.NoError(t, err)
			assert.Equal(t, model.DisputeResolved, resolved.Status)
			assert.Equal(t, "settled", resolved.Resolution)

			final, err := f.svc.GetBorrowRequest(ctx, actorOf(f.admin), b.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, final.Status)
			assert.NotNil(t, final.ClosedAt)
			assert.True(t, f.available(t))

			_, err = f.svc.ResolveDispute(ctx, actorOf(f.admin), d.ID, tt.outcome, "twice")
			assert.ErrorIs(t, err, ErrAlreadyResolved)

			assert.Contains(t, f.rec.events(f.owner.ID), notify.EventDisputeResolved)
			assert.Contains(t, f.rec.events(f.borrower.ID), notify.EventDisputeResolved)
		})
	}
}

func TestDisputeOnTerminalRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b := f.request(t, f.borrower)
	_, err := f.svc.RespondAsLender(ctx, actorOf(f.owner), b.ID, DecisionDecline, "")
	require.NoError(t, err)

	d, err := f.svc.OpenDispute(ctx, actorOf(f.borrower), b.ID, "unfair")
	require.NoError(t, err)
	_, err = f.svc.ResolveDispute(ctx, actorOf(f.admin), d.ID, model.OutcomeResolved, "")
	require.NoError(t, err)

	got, err := f.svc.GetBorrowRequest(ctx, actorOf(f.borrower), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BorrowDeclined, got.Status, "terminal requests keep their status")
}

func TestNotifierFailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.notify = panicNotifier{}

	b := f.request(t, f.borrower)
	approved, err := f.svc.RespondAsLender(ctx, actorOf(f.owner), b.ID, DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, model.BorrowApproved, approved.Status)
}

func TestMediaStorageFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	in := BorrowInput{
		PromiseText:      "on video",
		PromisedReturnBy: time.Now().Add(time.Hour),
		Video:            &Upload{Data: []byte("not really a video"), Filename: "promise.mp4"},
	}

	f.media.err = errors.New("disk full")
	_, err := f.svc.CreateBorrowRequest(ctx, f.borrower.ID, f.item.ID, in)
	assert.ErrorIs(t, err, ErrMediaStorage)

	f.media.err = media.ErrUnsupported
	_, err = f.svc.CreateBorrowRequest(ctx, f.borrower.ID, f.item.ID, in)
	assert.ErrorIs(t, err, ErrValidation)

	all, err := store.ListBorrows(ctx, f.db, store.BorrowFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)

	f.media.err = nil
	b, err := f.svc.CreateBorrowRequest(ctx, f.borrower.ID, f.item.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "/api/media/promise.mp4", b.VideoURL)
	assert.Equal(t, 3, f.media.calls)
}

func TestApplyAdminAction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := actorOf(f.admin)
	target := f.borrower.ID

	_, err := f.svc.ApplyAdminAction(ctx, actorOf(f.owner), AdminActionInput{Type: model.ActionWarning, TargetUserID: target})
	assert.ErrorIs(t, err, ErrNotAdmin)
	_, err = f.svc.ApplyAdminAction(ctx, admin, AdminActionInput{Type: "ban_forever", TargetUserID: target})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.ApplyAdminAction(ctx, admin, AdminActionInput{Type: model.ActionSuspension, TargetUserID: target})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.ApplyAdminAction(ctx, admin, AdminActionInput{Type: model.ActionWarning, TargetUserID: 9999})
	assert.ErrorIs(t, err, ErrUserNotFound)

	action, err := f.svc.ApplyAdminAction(ctx, admin, AdminActionInput{
		Type: model.ActionWarning, TargetUserID: target, Reason: "late twice",
	})
	require.NoError(t, err)
	assert.Equal(t, "late twice", action.Metadata["reason"])

	_, err = f.svc.ApplyAdminAction(ctx, admin, AdminActionInput{
		Type: model.ActionTrustAdjustment, TargetUserID: target, TrustDelta: -10,
	})
	require.NoError(t, err)

	u, err := f.svc.GetUser(ctx, admin, target)
	require.NoError(t, err)
	assert.Equal(t, 1, u.WarningCount)
	assert.Equal(t, 90, u.TrustScore)

	actions, err := f.svc.ListAdminActions(ctx, actorOf(f.borrower), target)
	require.NoError(t, err)
	assert.Len(t, actions, 2, "failed actions leave no record")

	_, err = f.svc.ListAdminActions(ctx, actorOf(f.owner), target)
	assert.ErrorIs(t, err, ErrNotAdmin)

	assert.Equal(t, []notify.Event{notify.EventAccountAction, notify.EventAccountAction}, f.rec.events(target))
}

func TestSuspensionKeepsRunningLoans(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b := f.approved(t)
	_, err := f.svc.ApplyAdminAction(ctx, actorOf(f.admin), AdminActionInput{
		Type: model.ActionSuspension, TargetUserID: f.borrower.ID, Duration: time.Hour,
	})
	require.NoError(t, err)

	got, err := f.svc.GetBorrowRequest(ctx, actorOf(f.borrower), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BorrowApproved, got.Status)
	assert.False(t, f.available(t))
}

func TestActivateItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.ActivateItem(ctx, actorOf(f.owner), f.item.ID, nil)
	assert.ErrorIs(t, err, ErrItemAlreadyActive)

	item, err := f.svc.CreateItem(ctx, f.owner.ID, ItemInput{Name: "Saw"})
	require.NoError(t, err)
	assert.False(t, item.Active)
	assert.Nil(t, item.LockHolderID)

	_, err = f.svc.ActivateItem(ctx, actorOf(f.borrower), item.ID, nil)
	assert.ErrorIs(t, err, ErrNotItemOwner)
	_, err = f.svc.ActivateItem(ctx, actorOf(f.owner), item.ID, []int64{42})
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	c, err := f.svc.CreateCollection(ctx, actorOf(f.owner), "Garage", "")
	require.NoError(t, err)
	activated, err := f.svc.ActivateItem(ctx, actorOf(f.owner), item.ID, []int64{c.ID})
	require.NoError(t, err)
	assert.True(t, activated.Active)

	ids, err := store.ListItemCollectionIDs(ctx, f.db, item.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID}, ids)
}

func TestSendOverdueReminders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b := f.approved(t)
	_, err := f.svc.ActivateLoan(ctx, actorOf(f.owner), b.ID)
	require.NoError(t, err)

	n, err := f.svc.SendOverdueReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	late := time.Now().Add(72 * time.Hour)
	f.svc.now = func() time.Time { return late }
	n, err = f.svc.SendOverdueReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, f.rec.events(f.borrower.ID), notify.EventLoanOverdue)

	n, err = f.svc.SendOverdueReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "one reminder per repeat window")

	f.svc.now = func() time.Time { return late.Add(25 * time.Hour) }
	n, err = f.svc.SendOverdueReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.GetBorrowRequest(ctx, actorOf(f.borrower), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BorrowActive, got.Status, "reminders change nothing")
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u, err := f.svc.Authenticate(ctx, "owner", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, f.owner.ID, u.ID)

	_, err = f.svc.Authenticate(ctx, "owner", "wrong-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Authenticate(ctx, "nobody", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.RegisterUser(ctx, UserInput{Username: "owner", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}
