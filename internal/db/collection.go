package db

import (
	"context"
	"errors"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

var (
	// ErrNotFound is returned when no document matches the lookup.
	ErrNotFound = errors.New("document not found")
	// ErrVersionConflict is returned by SaveRequest when the stored version
	// no longer matches the version the caller loaded.
	ErrVersionConflict = errors.New("request version conflict")
)

// RequestFilter narrows FindRequests. Zero fields match everything.
type RequestFilter struct {
	Status      models.RequestStatus
	Stage       models.Stage
	VehicleID   string
	RequesterID string
	Limit       int64
}

// RequestCollection defines the interface for maintenance request storage.
// A request is stored as one document including its deliberation.
type RequestCollection interface {
	InsertRequest(ctx context.Context, req *models.MaintenanceRequest) error
	FindRequestByID(ctx context.Context, id string) (*models.MaintenanceRequest, error)
	// SaveRequest replaces the stored request if its version still equals
	// req.Version, then increments req.Version.
	SaveRequest(ctx context.Context, req *models.MaintenanceRequest) error
	FindRequests(ctx context.Context, filter RequestFilter) ([]models.MaintenanceRequest, error)
}

// MechanicCollection defines the interface for the mechanic directory.
type MechanicCollection interface {
	InsertMechanic(ctx context.Context, mechanic models.Mechanic) error
	FindMechanicByID(ctx context.Context, id string) (*models.Mechanic, error)
	FindMechanics(ctx context.Context, activeOnly bool) ([]models.Mechanic, error)
}

// UserFilter narrows FindUsers.
type UserFilter struct {
	Role       models.Role
	ActiveOnly bool
}

// UserCollection defines the interface for user database operations
type UserCollection interface {
	InsertUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUsers(ctx context.Context, filter UserFilter) ([]models.User, error)
}

// Store is the persistence surface of the maintenance service.
type Store interface {
	RequestCollection
	MechanicCollection
	UserCollection
	Close() error
}
