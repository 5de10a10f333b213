package lending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/erazemk/posoja/internal/db"
	"github.com/erazemk/posoja/internal/imaging"
	"github.com/erazemk/posoja/internal/media"
	"github.com/erazemk/posoja/internal/model"
	"github.com/erazemk/posoja/internal/store"
)

// ItemInput holds the editable fields of an item.
type ItemInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Condition   string `json:"condition"`
}

func (in *ItemInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return invalid("name is required")
	}
	if in.Condition == "" {
		in.Condition = model.ConditionGood
	}
	if !model.ValidCondition(in.Condition) {
		return invalid("condition must be one of new, good, fair, worn, damaged")
	}
	return nil
}

// Upload is a media attachment received from a client.
type Upload struct {
	Data     []byte
	Filename string
}

// CreateItem registers a new item for ownerID. The item starts inactive and
// unlocked.
func (s *Service) CreateItem(ctx context.Context, ownerID int64, in ItemInput) (*model.Item, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	owner, err := store.GetUser(ctx, s.db, ownerID)
	if err != nil {
		return nil, err
	}
	if owner == nil || owner.DeletedAt != nil {
		return nil, ErrUserNotFound
	}

	item, err := store.CreateItem(ctx, s.db, ownerID, in.Name, in.Description, in.Condition)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "item created", "item_id", item.ID, "owner_id", ownerID)
	return item, nil
}

// GetItem returns an item.
func (s *Service) GetItem(ctx context.Context, itemID int64) (*model.Item, error) {
	item, err := store.GetItem(ctx, s.db, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	return item, nil
}

// ListItems returns items matching the filter.
func (s *Service) ListItems(ctx context.Context, f store.ItemFilter) ([]model.Item, error) {
	return store.ListItems(ctx, s.db, f)
}

// IsAvailable reports whether the item is active and not locked.
func (s *Service) IsAvailable(ctx context.Context, itemID int64) (bool, error) {
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return false, err
	}
	return item.Available(), nil
}

func (s *Service) ownedItem(ctx context.Context, q db.DBTX, actor Actor, itemID int64) (*model.Item, error) {
	item, err := store.GetItem(ctx, q, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	if item.OwnerID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrNotItemOwner
	}
	return item, nil
}

// ActivateItem makes an item borrowable and adds it to the given
// collections. Activating an active item fails with ErrItemAlreadyActive and
// changes nothing.
func (s *Service) ActivateItem(ctx context.Context, actor Actor, itemID int64, collectionIDs []int64) (*model.Item, error) {
	err := db.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		item, err := s.ownedItem(ctx, tx, actor, itemID)
		if err != nil {
			return err
		}
		if item.Active {
			return ErrItemAlreadyActive
		}

		for _, cid := range collectionIDs {
			c, err := store.GetCollection(ctx, tx, cid)
			if err != nil {
				return err
			}
			if c == nil {
				return ErrCollectionNotFound.with(fmt.Errorf("collection %d", cid))
			}
		}

		ok, err := store.ActivateItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrItemAlreadyActive
		}

		for _, cid := range collectionIDs {
			if err := store.LinkItemCollection(ctx, tx, itemID, cid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "item activated", "item_id", itemID, "collections", len(collectionIDs))
	return s.GetItem(ctx, itemID)
}

// UpdateItem changes an item's descriptive fields. Only the owner or an
// admin may do this.
func (s *Service) UpdateItem(ctx context.Context, actor Actor, itemID int64, in ItemInput) (*model.Item, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if _, err := s.ownedItem(ctx, s.db, actor, itemID); err != nil {
		return nil, err
	}
	if err := store.UpdateItem(ctx, s.db, itemID, in.Name, in.Description, in.Condition); err != nil {
		return nil, err
	}
	return s.GetItem(ctx, itemID)
}

// SetItemImage stores a photo for the item through media intake.
func (s *Service) SetItemImage(ctx context.Context, actor Actor, itemID int64, up Upload) (*model.Item, error) {
	if _, err := s.ownedItem(ctx, s.db, actor, itemID); err != nil {
		return nil, err
	}
	if !imaging.IsImage(up.Data) {
		return nil, invalid("item image must be a JPEG or PNG")
	}
	url, err := s.storeMedia(ctx, up)
	if err != nil {
		return nil, err
	}
	if err := store.SetItemImage(ctx, s.db, itemID, url); err != nil {
		return nil, err
	}
	return s.GetItem(ctx, itemID)
}

// ItemHistory returns the borrow requests made for the item. The owner and
// admins see all of them; anyone else only the requests they take part in.
func (s *Service) ItemHistory(ctx context.Context, actor Actor, itemID int64) ([]model.BorrowRequest, error) {
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.OwnerID == actor.UserID || actor.IsAdmin() {
		return store.GetItemHistory(ctx, s.db, itemID)
	}
	return store.ListBorrows(ctx, s.db, store.BorrowFilter{ItemID: itemID, ParticipantID: actor.UserID})
}

// storeMedia runs an upload through media intake. Content the store rejects
// is a validation error; anything else is a storage failure.
func (s *Service) storeMedia(ctx context.Context, up Upload) (string, error) {
	if s.media == nil {
		return "", ErrMediaStorage.with(errors.New("media storage is not configured"))
	}
	url, err := s.media.Store(ctx, up.Data, up.Filename)
	switch {
	case err == nil:
		return url, nil
	case errors.Is(err, media.ErrUnsupported), errors.Is(err, imaging.ErrUnsupported):
		return "", invalid("unsupported attachment type")
	case errors.Is(err, media.ErrTooLarge):
		return "", invalid("attachment is too large")
	default:
		s.log.ErrorContext(ctx, "media storage failed", "filename", up.Filename, "error", err)
		return "", ErrMediaStorage.with(err)
	}
}

// CreateCollection creates a collection owned by the actor.
func (s *Service) CreateCollection(ctx context.Context, actor Actor, name, description string) (*model.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name is required")
	}
	return store.CreateCollection(ctx, s.db, name, strings.TrimSpace(description), &actor.UserID)
}

// GetCollection returns a collection.
func (s *Service) GetCollection(ctx context.Context, id int64) (*model.Collection, error) {
	c, err := store.GetCollection(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCollectionNotFound
	}
	return c, nil
}

// ListCollections returns all collections.
func (s *Service) ListCollections(ctx context.Context) ([]model.Collection, error) {
	return store.ListCollections(ctx, s.db)
}

// DeleteCollection soft-deletes a collection. Only its creator or an admin
// may do this.
func (s *Service) DeleteCollection(ctx context.Context, actor Actor, id int64) error {
	c, err := s.GetCollection(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && (c.CreatedBy == nil || *c.CreatedBy != actor.UserID) {
		return ErrNotAdmin
	}
	ok, err := store.DeleteCollection(ctx, s.db, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCollectionNotFound
	}
	return nil
}
