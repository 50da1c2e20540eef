package core

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Store when a dashboard does not exist.
var ErrNotFound = errors.New("dashboard not found")

// Store defines the persistence operations for dashboards.
//
// UpdateDashboard returns the representation the store actually persisted;
// callers feed that echo back into shared state rather than their own copy.
type Store interface {
	CreateDashboard(ctx context.Context, d *Dashboard) error
	GetDashboard(ctx context.Context, id string) (*Dashboard, error)
	ListDashboards(ctx context.Context) ([]*Dashboard, error)
	UpdateDashboard(ctx context.Context, d *Dashboard) (*Dashboard, error)
	DeleteDashboard(ctx context.Context, id string) error
}
