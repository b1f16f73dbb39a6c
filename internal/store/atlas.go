package store

import (
	"context"
	"log/slog"

	"github.com/campuslink/api/internal/domain"
	"github.com/campuslink/api/internal/notify"
)

// Atlas is the remote-backed Store. Reads and writes translate directly
// into data API actions; successful writes publish a change event so the
// notifier fires even though the remote store has no push channel.
type Atlas struct {
	client *Client
	hub    *notify.Hub
	logger *slog.Logger
}

// NewAtlas constructs the remote backend over an existing client.
func NewAtlas(client *Client, hub *notify.Hub, logger *slog.Logger) *Atlas {
	return &Atlas{client: client, hub: hub, logger: logger}
}

// Remote reports true: operations reach the configured document store.
func (a *Atlas) Remote() bool { return true }

// Ping issues a cheap findOne to verify connectivity and credentials.
func (a *Atlas) Ping(ctx context.Context) error {
	var discard struct{}
	_, err := a.client.FindOne(ctx, usersKey, map[string]any{}, &discard)
	return err
}

func (a *Atlas) publish(topic string) {
	if a.hub != nil {
		a.hub.Publish(topic, nil)
	}
}

// FindUserByEmail returns the user owning the normalized email.
func (a *Atlas) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	found, err := a.client.FindOne(ctx, usersKey, map[string]any{"email": email}, &user)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &user, nil
}

// FindUserByID returns the user with the given id.
func (a *Atlas) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	found, err := a.client.FindOne(ctx, usersKey, map[string]any{"id": id}, &user)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &user, nil
}

// FindUserByCredentials matches email and password digest in one filter.
func (a *Atlas) FindUserByCredentials(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	filter := map[string]any{"email": email, "passwordHash": passwordHash}
	var user domain.User
	found, err := a.client.FindOne(ctx, usersKey, filter, &user)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &user, nil
}

// InsertUser stores a new user document.
func (a *Atlas) InsertUser(ctx context.Context, user *domain.User) error {
	if err := a.client.InsertOne(ctx, usersKey, user); err != nil {
		return err
	}
	a.publish(notify.TopicUsers)
	return nil
}

// UpdateUser applies a $set merge and re-reads the updated document.
func (a *Atlas) UpdateUser(ctx context.Context, id string, fields map[string]any) (*domain.User, error) {
	set, err := normalizeFields(fields)
	if err != nil {
		return nil, err
	}
	matched, err := a.client.UpdateOne(ctx, usersKey, map[string]any{"id": id}, set)
	if err != nil {
		return nil, err
	}
	if matched == 0 {
		return nil, ErrNotFound
	}
	a.publish(notify.TopicUsers)
	return a.FindUserByID(ctx, id)
}

// UpdateUserByEmail applies a $set merge to the user found by email.
func (a *Atlas) UpdateUserByEmail(ctx context.Context, email string, fields map[string]any) error {
	set, err := normalizeFields(fields)
	if err != nil {
		return err
	}
	matched, err := a.client.UpdateOne(ctx, usersKey, map[string]any{"email": email}, set)
	if err != nil {
		return err
	}
	if matched == 0 {
		return ErrNotFound
	}
	a.publish(notify.TopicUsers)
	return nil
}

// ListPosts returns non-deleted posts newest first.
func (a *Atlas) ListPosts(ctx context.Context) ([]domain.Post, error) {
	filter := map[string]any{"deleted": map[string]any{"$ne": true}}
	sort := map[string]any{"created_at": -1}
	var posts []domain.Post
	if err := a.client.Find(ctx, postsKey, filter, sort, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// FindPostByID returns the post regardless of its deleted flag.
func (a *Atlas) FindPostByID(ctx context.Context, id string) (*domain.Post, error) {
	var post domain.Post
	found, err := a.client.FindOne(ctx, postsKey, map[string]any{"id": id}, &post)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &post, nil
}

// InsertPost stores a new post document.
func (a *Atlas) InsertPost(ctx context.Context, post *domain.Post) error {
	if err := a.client.InsertOne(ctx, postsKey, post); err != nil {
		return err
	}
	a.publish(notify.TopicPosts)
	return nil
}

// UpdatePost applies a $set merge. A missing id is a silent no-op.
func (a *Atlas) UpdatePost(ctx context.Context, id string, fields map[string]any) error {
	set, err := normalizeFields(fields)
	if err != nil {
		return err
	}
	matched, err := a.client.UpdateOne(ctx, postsKey, map[string]any{"id": id}, set)
	if err != nil {
		return err
	}
	if matched > 0 {
		a.publish(notify.TopicPosts)
	}
	return nil
}
