// Package wall implements the message-wall synchronization core: the Entry
// Store abstraction, the Reconciler that owns the in-memory list, the Composer
// that validates and submits entries, and the Presenter projection.
package wall

import (
	"context"
	"errors"

	"memorialwall/internal/model"
)

var (
	// ErrConnectivity is returned when the backend cannot be reached during
	// load or subscribe.
	ErrConnectivity = errors.New("store unreachable")
	// ErrWrite is returned when an insert is rejected or cannot be delivered.
	ErrWrite = errors.New("write failed")
	// ErrValidation is returned for empty author or body after trimming.
	ErrValidation = errors.New("validation failed")
	// ErrParse marks corrupt local data. Load recovers from it silently.
	ErrParse = errors.New("corrupt persisted data")
	// ErrClearUnavailable is returned by Clear when the store is remote.
	ErrClearUnavailable = errors.New("clear is only available for the local store")
)

// Store is a message-wall data source bound to one backend.
type Store interface {
	// Load returns the entries of scope in stored order.
	Load(ctx context.Context, scope string) ([]model.Entry, error)
	// Insert writes one entry. The store assigns id and created_at.
	Insert(ctx context.Context, scope, author, body string) (model.Entry, error)
	// Subscribe delivers change events for scope until the returned
	// Subscription is closed or ctx is cancelled.
	Subscribe(ctx context.Context, scope string, onChange func(model.Event)) (Subscription, error)
	// Live reports whether the change stream echoes writes made by this process.
	Live() bool
}

// Clearer is implemented by stores that support device-scoped bulk clear.
type Clearer interface {
	Clear(ctx context.Context, scope string) error
}

// Subscription is a handle to an active change stream.
type Subscription interface {
	Close() error
}
