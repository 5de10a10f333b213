package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBorrowStatusIsTerminal(t *testing.T) {
	terminal := []BorrowStatus{BorrowDeclined, BorrowReturned, BorrowCancelled, BorrowResolved}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range NonTerminalStatuses {
		assert.False(t, s.IsTerminal(), s)
	}
	assert.False(t, BorrowStatus("bogus").Valid())
}

func TestItemAvailable(t *testing.T) {
	holder := int64(7)

	assert.False(t, (&Item{}).Available(), "inactive item")
	assert.True(t, (&Item{Active: true}).Available())
	assert.False(t, (&Item{Active: true, LockHolderID: &holder}).Available(), "locked item")
}

func TestBorrowRequestCounterparty(t *testing.T) {
	b := &BorrowRequest{BorrowerID: 1, LenderID: 2}
	assert.Equal(t, int64(2), b.Counterparty(1))
	assert.Equal(t, int64(1), b.Counterparty(2))
	assert.True(t, b.Involves(1))
	assert.False(t, b.Involves(3))
}
