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

var disputeColumns = []string{
	"id", "borrow_request_id", "item_id", "party_a_id", "party_b_id", "opened_by",
	"reason", "status", "outcome", "resolution", "resolved_by", "created_at", "resolved_at",
}

func scanDispute(s scanner) (*model.Dispute, error) {
	d := &model.Dispute{}
	err := s.Scan(&d.ID, &d.BorrowRequestID, &d.ItemID, &d.PartyAID, &d.PartyBID, &d.OpenedBy,
		&d.Reason, &d.Status, &d.Outcome, &d.Resolution, &d.ResolvedBy, &d.CreatedAt, &d.ResolvedAt)
	return d, err
}

// CreateDispute opens a dispute over a borrow request. The parties are the
// request's borrower and lender.
func CreateDispute(ctx context.Context, q db.DBTX, b *model.BorrowRequest, openedBy int64, reason string, at time.Time) (*model.Dispute, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO disputes
		     (borrow_request_id, item_id, party_a_id, party_b_id, opened_by, reason, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ItemID, b.BorrowerID, b.LenderID, openedBy, reason, model.DisputeOpen, at.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dispute: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting dispute id: %w", err)
	}

	return GetDispute(ctx, q, id)
}

func getDisputeWhere(ctx context.Context, q db.DBTX, where sq.Eq) (*model.Dispute, error) {
	row, err := queryRow(ctx, q, psql.Select(disputeColumns...).From("disputes").Where(where))
	if err != nil {
		return nil, err
	}
	d, err := scanDispute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

// GetDispute returns a dispute by ID, or nil.
func GetDispute(ctx context.Context, q db.DBTX, id int64) (*model.Dispute, error) {
	d, err := getDisputeWhere(ctx, q, sq.Eq{"id": id})
	if err != nil {
		return nil, fmt.Errorf("getting dispute: %w", err)
	}
	return d, nil
}

// GetOpenDispute returns the open dispute for a borrow request, or nil.
func GetOpenDispute(ctx context.Context, q db.DBTX, borrowID int64) (*model.Dispute, error) {
	d, err := getDisputeWhere(ctx, q, sq.Eq{"borrow_request_id": borrowID, "status": model.DisputeOpen})
	if err != nil {
		return nil, fmt.Errorf("getting open dispute: %w", err)
	}
	return d, nil
}

// ListDisputes returns disputes, optionally only those with the given status.
func ListDisputes(ctx context.Context, q db.DBTX, status string) ([]model.Dispute, error) {
	b := psql.Select(disputeColumns...).From("disputes").OrderBy("created_at DESC", "id DESC")
	if status != "" {
		b = b.Where(sq.Eq{"status": status})
	}

	rows, err := queryRows(ctx, q, b)
	if err != nil {
		return nil, fmt.Errorf("listing disputes: %w", err)
	}
	defer rows.Close()

	var disputes []model.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning dispute: %w", err)
		}
		disputes = append(disputes, *d)
	}
	return disputes, rows.Err()
}

// ResolveDispute closes an OPEN dispute. It reports false when the dispute
// was already resolved.
func ResolveDispute(ctx context.Context, q db.DBTX, id, adminID int64, outcome, resolution string, at time.Time) (bool, error) {
	n, err := execAffected(ctx, q, psql.Update("disputes").SetMap(map[string]any{
		"status":      model.DisputeResolved,
		"outcome":     outcome,
		"resolution":  resolution,
		"resolved_by": adminID,
		"resolved_at": at.UTC(),
	}).Where(sq.Eq{"id": id, "status": model.DisputeOpen}))
	if err != nil {
		return false, fmt.Errorf("resolving dispute: %w", err)
	}
	return n == 1, nil
}
