// Package storage defines the persistence interface for users and purchase
// requests.
package storage

import (
	"context"
	"errors"

	"github.com/openprocure/procflow/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// RequestFilter narrows ListRequests. Zero values mean "no constraint".
type RequestFilter struct {
	Status         string
	CreatedBy      int64
	Level1Approved *bool
}

// Storage defines user and purchase-request persistence operations.
type Storage interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// Purchase request operations
	CreateRequest(ctx context.Context, req *models.PurchaseRequest) error
	GetRequest(ctx context.Context, id int64) (*models.PurchaseRequest, error)
	UpdateRequest(ctx context.Context, req *models.PurchaseRequest) error
	ListRequests(ctx context.Context, filter RequestFilter) ([]*models.PurchaseRequest, error)

	// MutateRequest loads the request row inside a write transaction, applies
	// fn, and persists the result. Approval transitions use this so that only
	// one transition commits per request at a time.
	MutateRequest(ctx context.Context, id int64, fn func(*models.PurchaseRequest) error) (*models.PurchaseRequest, error)

	Close() error
}
