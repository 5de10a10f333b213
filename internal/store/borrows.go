package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/erazemk/posoja/internal/db"
	"github.com/erazemk/posoja/internal/model"
)

// NewBorrow holds the fields of a freshly submitted borrow request.
type NewBorrow struct {
	ItemID           int64
	BorrowerID       int64
	LenderID         int64
	PromiseText      string
	PromisedReturnBy time.Time
	ResponseToken    string
	VideoURL         string
	CreatedAt        time.Time
}

// BorrowFilter narrows ListBorrows. Zero values do not filter.
type BorrowFilter struct {
	ItemID     int64
	BorrowerID int64
	LenderID   int64
	// ParticipantID matches requests where the user is borrower or lender.
	ParticipantID int64
	Statuses      []model.BorrowStatus
}

func selectBorrows() sq.SelectBuilder {
	return psql.Select(
		"b.id", "b.item_id", "b.borrower_id", "b.lender_id", "b.status",
		"b.promise_text", "b.promised_return_by", "b.response_token", "b.video_url",
		"b.lender_response", "b.created_at", "b.responded_at", "b.approved_at",
		"b.borrowed_at", "b.returned_at", "b.closed_at",
		"i.name", "bu.username", "lu.username",
	).From("borrow_requests b").
		Join("items i ON i.id = b.item_id").
		Join("users bu ON bu.id = b.borrower_id").
		Join("users lu ON lu.id = b.lender_id")
}

func scanBorrow(s scanner) (*model.BorrowRequest, error) {
	b := &model.BorrowRequest{}
	err := s.Scan(&b.ID, &b.ItemID, &b.BorrowerID, &b.LenderID, &b.Status,
		&b.PromiseText, &b.PromisedReturnBy, &b.ResponseToken, &b.VideoURL,
		&b.LenderResponse, &b.CreatedAt, &b.RespondedAt, &b.ApprovedAt,
		&b.BorrowedAt, &b.ReturnedAt, &b.ClosedAt,
		&b.ItemName, &b.BorrowerName, &b.LenderName)
	return b, err
}

// CreateBorrow inserts a PENDING borrow request.
func CreateBorrow(ctx context.Context, q db.DBTX, nb NewBorrow) (*model.BorrowRequest, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO borrow_requests
		     (item_id, borrower_id, lender_id, status, promise_text, promised_return_by,
		      response_token, video_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nb.ItemID, nb.BorrowerID, nb.LenderID, model.BorrowPending, nb.PromiseText,
		nb.PromisedReturnBy.UTC(), nb.ResponseToken, nb.VideoURL, nb.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating borrow request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting borrow request id: %w", err)
	}

	return GetBorrow(ctx, q, id)
}

func getBorrowWhere(ctx context.Context, q db.DBTX, where sq.Eq) (*model.BorrowRequest, error) {
	row, err := queryRow(ctx, q, selectBorrows().Where(where))
	if err != nil {
		return nil, err
	}
	b, err := scanBorrow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// GetBorrow returns a borrow request by ID, or nil.
func GetBorrow(ctx context.Context, q db.DBTX, id int64) (*model.BorrowRequest, error) {
	b, err := getBorrowWhere(ctx, q, sq.Eq{"b.id": id})
	if err != nil {
		return nil, fmt.Errorf("getting borrow request: %w", err)
	}
	return b, nil
}

// GetBorrowByToken returns the borrow request a response token belongs to.
func GetBorrowByToken(ctx context.Context, q db.DBTX, token string) (*model.BorrowRequest, error) {
	b, err := getBorrowWhere(ctx, q, sq.Eq{"b.response_token": token})
	if err != nil {
		return nil, fmt.Errorf("getting borrow request by token: %w", err)
	}
	return b, nil
}

// ListBorrows returns borrow requests matching the filter, newest first.
func ListBorrows(ctx context.Context, q db.DBTX, f BorrowFilter) ([]model.BorrowRequest, error) {
	b := selectBorrows().OrderBy("b.created_at DESC", "b.id DESC")
	if f.ItemID > 0 {
		b = b.Where(sq.Eq{"b.item_id": f.ItemID})
	}
	if f.BorrowerID > 0 {
		b = b.Where(sq.Eq{"b.borrower_id": f.BorrowerID})
	}
	if f.LenderID > 0 {
		b = b.Where(sq.Eq{"b.lender_id": f.LenderID})
	}
	if f.ParticipantID > 0 {
		b = b.Where(sq.Or{sq.Eq{"b.borrower_id": f.ParticipantID}, sq.Eq{"b.lender_id": f.ParticipantID}})
	}
	if len(f.Statuses) > 0 {
		b = b.Where(sq.Eq{"b.status": f.Statuses})
	}

	borrows, err := listBorrows(ctx, q, b)
	if err != nil {
		return nil, fmt.Errorf("listing borrow requests: %w", err)
	}
	return borrows, nil
}

func listBorrows(ctx context.Context, q db.DBTX, b sq.SelectBuilder) ([]model.BorrowRequest, error) {
	rows, err := queryRows(ctx, q, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var borrows []model.BorrowRequest
	for rows.Next() {
		br, err := scanBorrow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning borrow request: %w", err)
		}
		borrows = append(borrows, *br)
	}
	return borrows, rows.Err()
}

// ListOverdueBorrows returns ACTIVE loans whose promised return time is
// before now and that have not been reminded since remindedBefore. A zero
// remindedBefore matches only loans never reminded.
func ListOverdueBorrows(ctx context.Context, q db.DBTX, now, remindedBefore time.Time) ([]model.BorrowRequest, error) {
	b := selectBorrows().
		Where(sq.Eq{"b.status": model.BorrowActive}).
		Where(sq.Lt{"b.promised_return_by": now.UTC()}).
		OrderBy("b.promised_return_by", "b.id")
	if remindedBefore.IsZero() {
		b = b.Where(sq.Eq{"b.reminded_at": nil})
	} else {
		b = b.Where(sq.Or{sq.Eq{"b.reminded_at": nil}, sq.Lt{"b.reminded_at": remindedBefore.UTC()}})
	}

	borrows, err := listBorrows(ctx, q, b)
	if err != nil {
		return nil, fmt.Errorf("listing overdue borrow requests: %w", err)
	}
	return borrows, nil
}

// MarkBorrowReminded stamps the last overdue reminder time of an ACTIVE loan.
func MarkBorrowReminded(ctx context.Context, q db.DBTX, id int64, at time.Time) error {
	_, err := execAffected(ctx, q, psql.Update("borrow_requests").
		Set("reminded_at", at.UTC()).
		Where(sq.Eq{"id": id, "status": model.BorrowActive}))
	if err != nil {
		return fmt.Errorf("marking borrow request reminded: %w", err)
	}
	return nil
}

// TransitionBorrow moves a request to status to, but only while its current
// status is one of from. Extra columns in set are written in the same
// statement. It reports false when the guard did not match.
func TransitionBorrow(ctx context.Context, q db.DBTX, id int64, from []model.BorrowStatus, to model.BorrowStatus, set map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for k, v := range set {
		values[k] = v
	}
	n, err := execAffected(ctx, q, psql.Update("borrow_requests").SetMap(values).
		Where(sq.Eq{"id": id, "status": from}))
	if err != nil {
		return false, fmt.Errorf("transitioning borrow request to %s: %w", to, err)
	}
	return n == 1, nil
}

// TerminateBorrow forces a request whose status is one of from into the
// terminal status to, stamps closed_at and releases the item lock if the
// request holds it. A nil from means any non-terminal status. It reports
// false, changing nothing, when the guard did not match.
func TerminateBorrow(ctx context.Context, q db.DBTX, id int64, from []model.BorrowStatus, to model.BorrowStatus, at time.Time, set map[string]any) (bool, error) {
	if !to.IsTerminal() {
		return false, fmt.Errorf("terminating borrow request: %s is not a terminal status", to)
	}

	var itemID int64
	err := q.QueryRowContext(ctx, `SELECT item_id FROM borrow_requests WHERE id = ?`, id).Scan(&itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("terminating borrow request: %w", err)
	}

	values := map[string]any{"closed_at": at.UTC()}
	for k, v := range set {
		values[k] = v
	}
	if from == nil {
		from = model.NonTerminalStatuses
	}
	ok, err := TransitionBorrow(ctx, q, id, from, to, values)
	if err != nil || !ok {
		return false, err
	}

	if err := ReleaseItemLock(ctx, q, itemID, id); err != nil {
		return false, err
	}
	return true, nil
}
