package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/erazemk/posoja/internal/db"
	"github.com/erazemk/posoja/internal/model"
)

// ItemFilter narrows ListItems. Zero values do not filter.
type ItemFilter struct {
	OwnerID       int64
	CollectionID  int64
	AvailableOnly bool
	Search        string
}

func selectItems() sq.SelectBuilder {
	return psql.Select(
		"i.id", "i.owner_id", "i.name", "i.description", "i.condition", "i.active",
		"i.lock_holder_id", "i.image_url", "i.created_at", "i.updated_at", "u.username",
	).From("items i").Join("users u ON u.id = i.owner_id")
}

func scanItem(s scanner) (*model.Item, error) {
	item := &model.Item{}
	err := s.Scan(&item.ID, &item.OwnerID, &item.Name, &item.Description, &item.Condition,
		&item.Active, &item.LockHolderID, &item.ImageURL, &item.CreatedAt, &item.UpdatedAt,
		&item.OwnerName)
	return item, err
}

// CreateItem creates a new, inactive item.
func CreateItem(ctx context.Context, q db.DBTX, ownerID int64, name, description, condition string) (*model.Item, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO items (owner_id, name, description, condition) VALUES (?, ?, ?, ?)`,
		ownerID, name, description, condition,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, q, id)
}

// GetItem returns an item by ID, or nil if there is none.
func GetItem(ctx context.Context, q db.DBTX, id int64) (*model.Item, error) {
	row, err := queryRow(ctx, q, selectItems().Where(sq.Eq{"i.id": id}))
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns items matching the filter, ordered by name.
func ListItems(ctx context.Context, q db.DBTX, f ItemFilter) ([]model.Item, error) {
	b := selectItems().OrderBy("i.name", "i.id")
	if f.OwnerID > 0 {
		b = b.Where(sq.Eq{"i.owner_id": f.OwnerID})
	}
	if f.CollectionID > 0 {
		b = b.Join("item_collections ic ON ic.item_id = i.id").
			Where(sq.Eq{"ic.collection_id": f.CollectionID})
	}
	if f.AvailableOnly {
		b = b.Where(sq.Eq{"i.active": 1, "i.lock_holder_id": nil})
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		b = b.Where(sq.Or{sq.Like{"i.name": pattern}, sq.Like{"i.description": pattern}})
	}

	rows, err := queryRows(ctx, q, b)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateItem updates an item's descriptive fields.
func UpdateItem(ctx context.Context, q db.DBTX, id int64, name, description, condition string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, condition = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		name, description, condition, id,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return nil
}

// ActivateItem marks an inactive item active. It reports false when the item
// was already active or does not exist.
func ActivateItem(ctx context.Context, q db.DBTX, id int64) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE items SET active = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND active = 0`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("activating item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("activating item: %w", err)
	}
	return n == 1, nil
}

// SetItemImage stores the public URL of the item's image.
func SetItemImage(ctx context.Context, q db.DBTX, id int64, url string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET image_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		url, id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return nil
}

// AcquireItemLock makes requestID the lock holder of an unlocked item. It
// reports false, without error, when the item is already locked.
func AcquireItemLock(ctx context.Context, q db.DBTX, itemID, requestID int64) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE items SET lock_holder_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND lock_holder_id IS NULL`,
		requestID, itemID,
	)
	if err != nil {
		return false, fmt.Errorf("acquiring item lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquiring item lock: %w", err)
	}
	return n == 1, nil
}

// ReleaseItemLock clears the lock only if requestID holds it. Releasing a
// lock that is absent or held by another request is a no-op.
func ReleaseItemLock(ctx context.Context, q db.DBTX, itemID, requestID int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET lock_holder_id = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND lock_holder_id = ?`,
		itemID, requestID,
	)
	if err != nil {
		return fmt.Errorf("releasing item lock: %w", err)
	}
	return nil
}

// GetItemHistory returns every borrow request made for an item, newest first.
func GetItemHistory(ctx context.Context, q db.DBTX, itemID int64) ([]model.BorrowRequest, error) {
	return ListBorrows(ctx, q, BorrowFilter{ItemID: itemID})
}
