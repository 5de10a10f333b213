package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/erazemk/posoja/internal/db"
	"github.com/erazemk/posoja/internal/model"
)

// CreateCollection creates a new collection.
func CreateCollection(ctx context.Context, q db.DBTX, name, description string, createdBy *int64) (*model.Collection, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO collections (name, description, created_by) VALUES (?, ?, ?)`,
		name, description, createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting collection id: %w", err)
	}

	return GetCollection(ctx, q, id)
}

func selectCollections() sq.SelectBuilder {
	return psql.Select(
		"c.id", "c.name", "c.description", "c.created_by", "c.created_at", "c.deleted_at",
		"(SELECT COUNT(*) FROM item_collections ic WHERE ic.collection_id = c.id)",
	).From("collections c")
}

func scanCollection(s scanner) (*model.Collection, error) {
	c := &model.Collection{}
	err := s.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedBy, &c.CreatedAt, &c.DeletedAt, &c.ItemCount)
	return c, err
}

// GetCollection returns a non-deleted collection by ID, or nil.
func GetCollection(ctx context.Context, q db.DBTX, id int64) (*model.Collection, error) {
	row, err := queryRow(ctx, q, selectCollections().Where(sq.Eq{"c.id": id, "c.deleted_at": nil}))
	if err != nil {
		return nil, fmt.Errorf("getting collection: %w", err)
	}
	c, err := scanCollection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting collection: %w", err)
	}
	return c, nil
}

// ListCollections returns all non-deleted collections.
func ListCollections(ctx context.Context, q db.DBTX) ([]model.Collection, error) {
	rows, err := queryRows(ctx, q, selectCollections().Where(sq.Eq{"c.deleted_at": nil}).OrderBy("c.name"))
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var collections []model.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning collection: %w", err)
		}
		collections = append(collections, *c)
	}
	return collections, rows.Err()
}

// DeleteCollection soft-deletes a collection. Item links are kept so the
// history of which community an item was shared in survives.
func DeleteCollection(ctx context.Context, q db.DBTX, id int64) (bool, error) {
	n, err := execAffected(ctx, q, psql.Update("collections").
		Set("deleted_at", sq.Expr("CURRENT_TIMESTAMP")).
		Where(sq.Eq{"id": id, "deleted_at": nil}))
	if err != nil {
		return false, fmt.Errorf("deleting collection: %w", err)
	}
	return n > 0, nil
}

// LinkItemCollection adds an item to a collection. Linking twice is a no-op.
func LinkItemCollection(ctx context.Context, q db.DBTX, itemID, collectionID int64) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO item_collections (item_id, collection_id) VALUES (?, ?)
		 ON CONFLICT (item_id, collection_id) DO NOTHING`,
		itemID, collectionID,
	)
	if err != nil {
		return fmt.Errorf("linking item to collection: %w", err)
	}
	return nil
}

// ListItemCollectionIDs returns the IDs of the collections an item is in.
func ListItemCollectionIDs(ctx context.Context, q db.DBTX, itemID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT collection_id FROM item_collections WHERE item_id = ? ORDER BY collection_id`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing item collections: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning collection id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
