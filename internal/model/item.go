package model

import "time"

// Item is a single physical object offered for lending by its owner.
type Item struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"owner_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Condition    string    `json:"condition"`
	Active       bool      `json:"active"`
	LockHolderID *int64    `json:"lock_holder_id,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	OwnerName string `json:"owner_name,omitempty"`
}

// Item conditions.
const (
	ConditionNew     = "new"
	ConditionGood    = "good"
	ConditionFair    = "fair"
	ConditionWorn    = "worn"
	ConditionDamaged = "damaged"
)

// ValidCondition reports whether c is a known item condition.
func ValidCondition(c string) bool {
	switch c {
	case ConditionNew, ConditionGood, ConditionFair, ConditionWorn, ConditionDamaged:
		return true
	}
	return false
}

// Available reports whether the item can receive new borrow requests.
func (i *Item) Available() bool {
	return i.Active && i.LockHolderID == nil
}
