package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/campuslink/api/internal/domain"
	"github.com/campuslink/api/internal/kv"
)

// Collection keys in the kv layer. They double as notifier topics.
const (
	usersKey = "users"
	postsKey = "posts"
)

// Local persists the users and posts collections as JSON arrays in the
// kv layer. It is the fallback backend when no remote document store is
// configured. Single logical writer; writes broadcast through the kv
// layer's change signal.
type Local struct {
	kv     kv.Store
	logger *slog.Logger
}

// NewLocal constructs the device-local backend.
func NewLocal(store kv.Store, logger *slog.Logger) *Local {
	return &Local{kv: store, logger: logger}
}

// Remote reports false: this is the device-local backend.
func (l *Local) Remote() bool { return false }

// Ping verifies the underlying kv store when it supports health checks.
func (l *Local) Ping(ctx context.Context) error {
	type pinger interface {
		Ping(context.Context) error
	}
	if p, ok := l.kv.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// readUsers loads the users collection. Malformed stored data yields an
// empty collection; this fail-open is scoped to reads only.
func (l *Local) readUsers(ctx context.Context) ([]domain.User, error) {
	return readCollection[domain.User](ctx, l, usersKey)
}

func (l *Local) readPosts(ctx context.Context) ([]domain.Post, error) {
	return readCollection[domain.Post](ctx, l, postsKey)
}

func readCollection[T any](ctx context.Context, l *Local, key string) ([]T, error) {
	raw, err := l.kv.Get(ctx, key)
	if errors.Is(err, kv.ErrNoKey) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var docs []T
	if err := json.Unmarshal(raw, &docs); err != nil {
		l.logger.Warn("malformed collection, treating as empty", "key", key, "error", err)
		return nil, nil
	}
	return docs, nil
}

func (l *Local) writeUsers(ctx context.Context, users []domain.User) error {
	raw, err := json.Marshal(users)
	if err != nil {
		return err
	}
	return l.kv.Set(ctx, usersKey, raw)
}

func (l *Local) writePosts(ctx context.Context, posts []domain.Post) error {
	raw, err := json.Marshal(posts)
	if err != nil {
		return err
	}
	return l.kv.Set(ctx, postsKey, raw)
}

// FindUserByEmail returns the user owning the normalized email.
func (l *Local) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	users, err := l.readUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return &users[i], nil
		}
	}
	return nil, ErrNotFound
}

// FindUserByID returns the user with the given id.
func (l *Local) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	users, err := l.readUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			return &users[i], nil
		}
	}
	return nil, ErrNotFound
}

// FindUserByCredentials matches email and password digest exactly.
func (l *Local) FindUserByCredentials(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	users, err := l.readUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Email == email && users[i].PasswordHash == passwordHash {
			return &users[i], nil
		}
	}
	return nil, ErrNotFound
}

// InsertUser appends the user document to the collection.
func (l *Local) InsertUser(ctx context.Context, user *domain.User) error {
	users, err := l.readUsers(ctx)
	if err != nil {
		return err
	}
	users = append(users, *user)
	return l.writeUsers(ctx, users)
}

// UpdateUser shallow-merges fields into the user document and returns the
// updated document.
func (l *Local) UpdateUser(ctx context.Context, id string, fields map[string]any) (*domain.User, error) {
	users, err := l.readUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID != id {
			continue
		}
		var updated domain.User
		if err := mergeDocument(users[i], fields, &updated); err != nil {
			return nil, err
		}
		users[i] = updated
		if err := l.writeUsers(ctx, users); err != nil {
			return nil, err
		}
		return &updated, nil
	}
	return nil, ErrNotFound
}

// UpdateUserByEmail shallow-merges fields into the user document found by
// email. Used by password reset.
func (l *Local) UpdateUserByEmail(ctx context.Context, email string, fields map[string]any) error {
	users, err := l.readUsers(ctx)
	if err != nil {
		return err
	}
	for i := range users {
		if users[i].Email != email {
			continue
		}
		var updated domain.User
		if err := mergeDocument(users[i], fields, &updated); err != nil {
			return err
		}
		users[i] = updated
		return l.writeUsers(ctx, users)
	}
	return ErrNotFound
}

// ListPosts returns non-deleted posts newest first. Ties on created_at
// keep storage order, which is most-recently-inserted first.
func (l *Local) ListPosts(ctx context.Context) ([]domain.Post, error) {
	posts, err := l.readPosts(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]domain.Post, 0, len(posts))
	for _, p := range posts {
		if !p.Deleted {
			visible = append(visible, p)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].CreatedAt.After(visible[j].CreatedAt)
	})
	return visible, nil
}

// FindPostByID returns the post regardless of its deleted flag.
func (l *Local) FindPostByID(ctx context.Context, id string) (*domain.Post, error) {
	posts, err := l.readPosts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		if posts[i].ID == id {
			return &posts[i], nil
		}
	}
	return nil, ErrNotFound
}

// InsertPost prepends the post so storage order stays newest first.
func (l *Local) InsertPost(ctx context.Context, post *domain.Post) error {
	posts, err := l.readPosts(ctx)
	if err != nil {
		return err
	}
	posts = append([]domain.Post{*post}, posts...)
	return l.writePosts(ctx, posts)
}

// UpdatePost shallow-merges fields into the post document. A missing id
// is a silent no-op.
func (l *Local) UpdatePost(ctx context.Context, id string, fields map[string]any) error {
	posts, err := l.readPosts(ctx)
	if err != nil {
		return err
	}
	for i := range posts {
		if posts[i].ID != id {
			continue
		}
		var updated domain.Post
		if err := mergeDocument(posts[i], fields, &updated); err != nil {
			return err
		}
		posts[i] = updated
		return l.writePosts(ctx, posts)
	}
	return nil
}
