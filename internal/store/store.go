// Package store defines the uniform document-store surface the services
// run against, with two concrete backends: a device-local mock store over
// the kv layer and a remote document database reached through its REST
// data API. The backend is chosen once at construction from configuration.
package store

import (
	"context"
	"errors"

	"github.com/campuslink/api/internal/domain"
)

// ErrNotFound indicates no document matched the lookup.
var ErrNotFound = errors.New("store: not found")

// Store is the backend-neutral contract for the users and posts
// collections. Update operations apply a shallow field merge; array
// fields are wholesale-replaced by callers, never appended here.
type Store interface {
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindUserByID(ctx context.Context, id string) (*domain.User, error)
	FindUserByCredentials(ctx context.Context, email, passwordHash string) (*domain.User, error)
	InsertUser(ctx context.Context, user *domain.User) error
	UpdateUser(ctx context.Context, id string, fields map[string]any) (*domain.User, error)
	UpdateUserByEmail(ctx context.Context, email string, fields map[string]any) error

	ListPosts(ctx context.Context) ([]domain.Post, error)
	FindPostByID(ctx context.Context, id string) (*domain.Post, error)
	InsertPost(ctx context.Context, post *domain.Post) error
	UpdatePost(ctx context.Context, id string, fields map[string]any) error

	// Remote reports whether the backend is the remote document store.
	// Consumers use it as a "connected" capability flag.
	Remote() bool
	Ping(ctx context.Context) error
}
