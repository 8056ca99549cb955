// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/group-2-odp-bni/be-capstone-project/internal/models"
)

var (
	// ErrNotFound is returned when the addressed document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned by UpdateBill when the persisted version no
	// longer matches the version the update was computed from. Callers
	// re-read and retry.
	ErrConflict = errors.New("version conflict")
)

// ListFilter narrows and pages history queries. Bills are returned newest
// first; Cursor is the CreatedAt of the last bill of the previous page
// (zero means start from the top).
type ListFilter struct {
	// Status filters by bill status (owned view) or by the viewer's own
	// member status (assigned view). Empty or "ALL" means no filter.
	Status string
	// Query is a case-insensitive title substring match (owned view only).
	Query  string
	Limit  int
	Cursor int64
}

// Store defines the document-store seam the core depends on: per-key find,
// insert and conditional update over bills (members embedded), tokens and
// the processed-events set. This abstraction allows swapping backends
// (SQLite for single-node, MongoDB for the deployed system) without
// changing the service layer.
type Store interface {
	// CreateBill persists a new bill. The bill must already carry its ID.
	CreateBill(ctx context.Context, bill *models.Bill) error

	// GetBill retrieves a bill by ID, or ErrNotFound.
	GetBill(ctx context.Context, billID string) (*models.Bill, error)

	// UpdateBill replaces the bill document if the persisted version still
	// equals expectedVersion, bumping bill.Version to expectedVersion+1.
	// Returns ErrConflict when another writer got there first and
	// ErrNotFound when the bill does not exist.
	UpdateBill(ctx context.Context, bill *models.Bill, expectedVersion int64) error

	// ListOwned returns bills created by the user, newest first.
	ListOwned(ctx context.Context, creatorUserID string, f ListFilter) ([]*models.Bill, error)

	// ListAssigned returns bills where the user appears as a member,
	// newest first.
	ListAssigned(ctx context.Context, userID string, f ListFilter) ([]*models.Bill, error)

	// InsertTokens bulk-inserts token records, unordered: a duplicate key
	// on one record must not prevent the others from being stored.
	InsertTokens(ctx context.Context, tokens []*models.Token) error

	// GetToken retrieves a token record by its token string, or ErrNotFound.
	GetToken(ctx context.Context, token string) (*models.Token, error)

	// MarkEventProcessed records a transaction id in the processed-events
	// set. It reports true when this call inserted the id (first sighting)
	// and false when the id was already present.
	MarkEventProcessed(ctx context.Context, transactionID, note string) (bool, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
