package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/posoja/internal/db"
	"github.com/erazemk/posoja/internal/model"
)

func TestCreateItemIsInactive(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	owner := newUser(t, database, "owner")
	item, err := CreateItem(ctx, database, owner.ID, "Drill", "18V cordless", model.ConditionGood)
	require.NoError(t, err)

	assert.Equal(t, "Drill", item.Name)
	assert.Equal(t, "owner", item.OwnerName)
	assert.False(t, item.Active)
	assert.Nil(t, item.LockHolderID)
	assert.False(t, item.Available())
}

func TestActivateItemOnce(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	owner := newUser(t, database, "owner")
	item, err := CreateItem(ctx, database, owner.ID, "Ladder", "", model.ConditionFair)
	require.NoError(t, err)

	ok, err := ActivateItem(ctx, database, item.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ActivateItem(ctx, database, item.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second activation must not match")

	got, err := GetItem(ctx, database, item.ID)
	require.NoError(t, err)
	assert.True(t, got.Available())
}

func TestListItemsFilters(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	alice := newUser(t, database, "alice")
	bob := newUser(t, database, "bob")

	drill, _ := CreateItem(ctx, database, alice.ID, "Drill", "", model.ConditionGood)
	CreateItem(ctx, database, alice.ID, "Saw", "hand saw", model.ConditionWorn)
	tent, _ := CreateItem(ctx, database, bob.ID, "Tent", "", model.ConditionNew)
	ActivateItem(ctx, database, drill.ID)
	ActivateItem(ctx, database, tent.ID)

	col, err := CreateCollection(ctx, database, "Street 12", "", &alice.ID)
	require.NoError(t, err)
	require.NoError(t, LinkItemCollection(ctx, database, tent.ID, col.ID))
	require.NoError(t, LinkItemCollection(ctx, database, tent.ID, col.ID))

	items, err := ListItems(ctx, database, ItemFilter{OwnerID: alice.ID})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = ListItems(ctx, database, ItemFilter{AvailableOnly: true})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = ListItems(ctx, database, ItemFilter{CollectionID: col.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Tent", items[0].Name)

	items, err = ListItems(ctx, database, ItemFilter{Search: "hand"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Saw", items[0].Name)

	ids, err := ListItemCollectionIDs(ctx, database, tent.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{col.ID}, ids)
}

func TestItemLock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, first := newBorrowFixture(t, database)
	second := newBorrowFor(t, database, item, "third")

	ok, err := AcquireItemLock(ctx, database, item.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = AcquireItemLock(ctx, database, item.ID, second.ID)
	require.NoError(t, err)
	assert.False(t, ok, "lock is already held")

	// Releasing on behalf of a non-holder changes nothing.
	require.NoError(t, ReleaseItemLock(ctx, database, item.ID, second.ID))
	got, _ := GetItem(ctx, database, item.ID)
	require.NotNil(t, got.LockHolderID)
	assert.Equal(t, first.ID, *got.LockHolderID)

	require.NoError(t, ReleaseItemLock(ctx, database, item.ID, first.ID))
	got, _ = GetItem(ctx, database, item.ID)
	assert.Nil(t, got.LockHolderID)

	// Releasing an absent lock is not an error.
	require.NoError(t, ReleaseItemLock(ctx, database, item.ID, first.ID))
}

func TestUpdateItemAndImage(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	owner := newUser(t, database, "owner")
	item, _ := CreateItem(ctx, database, owner.ID, "Bike", "", model.ConditionGood)

	require.NoError(t, UpdateItem(ctx, database, item.ID, "City bike", "blue", model.ConditionWorn))
	require.NoError(t, SetItemImage(ctx, database, item.ID, "/api/media/abc.jpg"))

	got, err := GetItem(ctx, database, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "City bike", got.Name)
	assert.Equal(t, model.ConditionWorn, got.Condition)
	assert.Equal(t, "/api/media/abc.jpg", got.ImageURL)

	_, err = CreateItem(ctx, database, owner.ID, "Bad", "", "broken")
	assert.Error(t, err, "unknown condition violates the CHECK constraint")
}
