package lending

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/erazemk/posoja/internal/auth"
	"github.com/erazemk/posoja/internal/db"
	"github.com/erazemk/posoja/internal/model"
	"github.com/erazemk/posoja/internal/notify"
	"github.com/erazemk/posoja/internal/store"
)

// BorrowInput is what a borrower submits to request an item.
type BorrowInput struct {
	PromiseText      string
	PromisedReturnBy time.Time
	// Video is an optional recorded promise. It is stored before the
	// request is written; a storage failure aborts the request.
	Video *Upload
}

// CreateBorrowRequest records a PENDING request for an item and notifies the
// lender. The item lock is not taken here; several requests for the same
// item may be pending at once and only approval locks the item.
func (s *Service) CreateBorrowRequest(ctx context.Context, borrowerID, itemID int64, in BorrowInput) (*model.BorrowRequest, error) {
	now := s.clock()

	in.PromiseText = strings.TrimSpace(in.PromiseText)
	if in.PromiseText == "" {
		return nil, invalid("promise text is required")
	}
	if in.PromisedReturnBy.IsZero() || !in.PromisedReturnBy.After(now) {
		return nil, invalid("promised return date must be in the future")
	}

	item, err := store.GetItem(ctx, s.db, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	if !item.Available() {
		return nil, ErrItemUnavailable
	}
	if item.OwnerID == borrowerID {
		return nil, ErrSelfBorrow
	}

	borrower, err := s.activeUser(ctx, borrowerID)
	if err != nil {
		return nil, err
	}
	if borrower.SuspendedAt(now) {
		return nil, ErrBorrowerSuspended
	}
	if borrower.TrustScore < s.opts.MinTrustScore {
		return nil, ErrInsufficientTrust
	}
	lender, err := s.activeUser(ctx, item.OwnerID)
	if err != nil {
		return nil, err
	}
	if !borrower.HasContact() || !lender.HasContact() {
		return nil, ErrMissingContactInfo
	}

	var videoURL string
	if in.Video != nil && len(in.Video.Data) > 0 {
		if videoURL, err = s.storeMedia(ctx, *in.Video); err != nil {
			return nil, err
		}
	}

	token, err := auth.NewResponseToken()
	if err != nil {
		return nil, err
	}

	var created *model.BorrowRequest
	err = db.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		// The item may have been locked or deactivated since the first read.
		current, err := store.GetItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if current == nil || !current.Available() {
			return ErrItemUnavailable
		}

		created, err = store.CreateBorrow(ctx, tx, store.NewBorrow{
			ItemID:           itemID,
			BorrowerID:       borrowerID,
			LenderID:         current.OwnerID,
			PromiseText:      in.PromiseText,
			PromisedReturnBy: in.PromisedReturnBy,
			ResponseToken:    token,
			VideoURL:         videoURL,
			CreatedAt:        now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "borrow request created",
		"request_id", created.ID, "item_id", itemID, "borrower_id", borrowerID, "lender_id", created.LenderID)

	payload := borrowPayload(created)
	payload["promise"] = created.PromiseText
	payload["response_link"] = s.opts.ResponseLink(token)
	if videoURL != "" {
		payload["video_url"] = videoURL
	}
	s.dispatch(ctx, notify.EventBorrowRequested, payload, created.LenderID)

	return created, nil
}

func (s *Service) activeUser(ctx context.Context, id int64) (*model.User, error) {
	u, err := store.GetUser(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if u == nil || u.DeletedAt != nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *Service) loadBorrow(ctx context.Context, q db.DBTX, id int64) (*model.BorrowRequest, error) {
	b, err := store.GetBorrow(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrRequestNotFound
	}
	return b, nil
}

// GetBorrowRequest returns a request visible to the actor.
func (s *Service) GetBorrowRequest(ctx context.Context, actor Actor, id int64) (*model.BorrowRequest, error) {
	b, err := s.loadBorrow(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !b.Involves(actor.UserID) && !actor.IsAdmin() {
		return nil, ErrNotParticipant
	}
	return b, nil
}

// ListBorrowRequests returns requests matching the filter. Non-admins only
// ever see requests they take part in.
func (s *Service) ListBorrowRequests(ctx context.Context, actor Actor, f store.BorrowFilter) ([]model.BorrowRequest, error) {
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, invalid("unknown status %q", st)
		}
	}
	if !actor.IsAdmin() {
		f.ParticipantID = actor.UserID
	}
	return store.ListBorrows(ctx, s.db, f)
}

// GetBorrowRequestByToken returns the request a response link points to. The
// link expires as soon as the request leaves PENDING.
func (s *Service) GetBorrowRequestByToken(ctx context.Context, token string) (*model.BorrowRequest, error) {
	b, err := s.borrowByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if b.Status != model.BorrowPending {
		return nil, ErrResponseLinkExpired
	}
	return b, nil
}

func (s *Service) borrowByToken(ctx context.Context, token string) (*model.BorrowRequest, error) {
	if len(token) != 2*auth.ResponseTokenBytes {
		return nil, ErrInvalidResponseToken
	}
	b, err := store.GetBorrowByToken(ctx, s.db, token)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrInvalidResponseToken
	}
	return b, nil
}
