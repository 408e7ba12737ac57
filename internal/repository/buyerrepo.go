package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/model"
)

// BuyerRepository provides transactional access to buyers and their history.
type BuyerRepository interface {
	// InTx runs fn in a single read-write transaction. Any error from fn rolls back
	// every write made through tx, including history entries.
	InTx(ctx context.Context, fn func(tx BuyerTx) error) error

	// Get returns a buyer by id.
	Get(ctx context.Context, id uuid.UUID) (*model.Buyer, error)

	// List returns one page ordered by updatedAt desc and the total count of matches,
	// both read from the same snapshot.
	List(ctx context.Context, f model.BuyerFilter, offset, limit int) ([]model.Buyer, int, error)

	// ListAll returns every match ordered by updatedAt desc.
	ListAll(ctx context.Context, f model.BuyerFilter) ([]model.Buyer, error)

	// History returns entries for a buyer id, newest first. limit <= 0 means all.
	History(ctx context.Context, buyerID uuid.UUID, limit int) ([]model.HistoryEntry, error)
}

// BuyerTx is the write surface available inside a transaction.
type BuyerTx interface {
	// Get reads a buyer within the transaction.
	Get(ctx context.Context, id uuid.UUID) (*model.Buyer, error)
	// Insert stores a new buyer.
	Insert(ctx context.Context, b model.Buyer) error
	// Update overwrites b only if its stored updatedAt still equals expected.
	Update(ctx context.Context, b model.Buyer, expected time.Time) error
	// Delete removes a buyer only if its stored updatedAt still equals expected.
	Delete(ctx context.Context, id uuid.UUID, expected time.Time) error
	// AppendHistory appends an immutable history entry.
	AppendHistory(ctx context.Context, h model.HistoryEntry) error
}
