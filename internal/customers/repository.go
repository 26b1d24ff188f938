package customers

import (
	"context"
	"errors"

	"github.com/kylevidrine/portal/internal/models"
)

// ErrNotFound is returned by partial updates when no customer has the given id.
var ErrNotFound = errors.New("customer not found")

// StorageError wraps a backend failure with the repository operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "customer store " + e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// Repository is the persistence boundary for customers. Implementations do not
// validate token values. Every mutation stamps UpdatedAt and is a single atomic
// write: readers never observe a partially written credential bundle.
type Repository interface {
	// Upsert inserts or replaces the customer keyed by ID.
	Upsert(ctx context.Context, c *models.Customer) error
	// GetByID returns (nil, nil) when no customer has the id.
	GetByID(ctx context.Context, id string) (*models.Customer, error)
	// List returns all customers, newest CreatedAt first.
	List(ctx context.Context) ([]*models.Customer, error)
	// FindByCompanyID returns the newest customer whose accounting bundle has the
	// company id, or (nil, nil).
	FindByCompanyID(ctx context.Context, companyID string) (*models.Customer, error)
	// UpdateAccounting replaces the whole accounting bundle; nil clears it.
	UpdateAccounting(ctx context.Context, id string, creds *models.AccountingCredentials) error
	// ClearWorkspace nulls the whole workspace bundle.
	ClearWorkspace(ctx context.Context, id string) error
	// Delete hard-deletes the customer and returns the number of rows removed.
	Delete(ctx context.Context, id string) (int64, error)
}
