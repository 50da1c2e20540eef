package query

import (
	"context"
	"time"
)

// DashboardByID is the key scope for single-dashboard fetches.
const DashboardByID = "DASHBOARD_BY_ID"

// Key identifies one cached query.
type Key struct {
	Scope string
	ID    string
}

func (k Key) String() string {
	return k.Scope + "/" + k.ID
}

// QueryFunc performs the fetch for a key.
type QueryFunc[T any] func(ctx context.Context) (T, error)

// Status is the lifecycle state of a query result.
type Status int

// Query statuses.
const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is a snapshot of a query. On error Data still holds the last
// successfully fetched value, if any.
type Result[T any] struct {
	Data      T
	Err       error
	Status    Status
	UpdatedAt time.Time
	// Fetched is true when this call executed or joined a fetch.
	Fetched bool
	// Superseded is true when the observed key changed while this call
	// waited. The result then describes the key the call asked for, not the
	// key the observer now watches.
	Superseded bool

	version uint64
}

// IsIdle reports whether the query is disabled or has not run.
func (r Result[T]) IsIdle() bool { return r.Status == StatusIdle }

// IsLoading reports whether a fetch is in flight with no data to show yet.
func (r Result[T]) IsLoading() bool { return r.Status == StatusLoading }

// IsSuccess reports whether the last fetch succeeded.
func (r Result[T]) IsSuccess() bool { return r.Status == StatusSuccess }

// IsError reports whether the last fetch failed.
func (r Result[T]) IsError() bool { return r.Status == StatusError }

// HasData reports whether Data holds a fetched value.
func (r Result[T]) HasData() bool { return r.version != 0 }
