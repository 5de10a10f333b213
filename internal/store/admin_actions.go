package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erazemk/posoja/internal/db"
	"github.com/erazemk/posoja/internal/model"
)

// CreateAdminAction records a moderation action. Metadata is stored as JSON.
func CreateAdminAction(ctx context.Context, q db.DBTX, actionType string, targetUserID, adminID int64, metadata map[string]any, at time.Time) (*model.AdminAction, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encoding admin action metadata: %w", err)
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO admin_actions (type, target_user_id, admin_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		actionType, targetUserID, adminID, string(raw), at.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating admin action: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting admin action id: %w", err)
	}

	return &model.AdminAction{
		ID:           id,
		Type:         actionType,
		TargetUserID: targetUserID,
		AdminID:      adminID,
		Metadata:     metadata,
		CreatedAt:    at.UTC(),
	}, nil
}

// ListAdminActions returns actions taken against a user, newest first. A
// zero targetUserID lists all actions.
func ListAdminActions(ctx context.Context, q db.DBTX, targetUserID int64) ([]model.AdminAction, error) {
	b := psql.Select("id", "type", "target_user_id", "admin_id", "metadata", "created_at").
		From("admin_actions").OrderBy("created_at DESC", "id DESC")
	if targetUserID > 0 {
		b = b.Where("target_user_id = ?", targetUserID)
	}

	rows, err := queryRows(ctx, q, b)
	if err != nil {
		return nil, fmt.Errorf("listing admin actions: %w", err)
	}
	defer rows.Close()

	var actions []model.AdminAction
	for rows.Next() {
		var a model.AdminAction
		var raw string
		if err := rows.Scan(&a.ID, &a.Type, &a.TargetUserID, &a.AdminID, &raw, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning admin action: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &a.Metadata); err != nil {
			return nil, fmt.Errorf("decoding admin action metadata: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
