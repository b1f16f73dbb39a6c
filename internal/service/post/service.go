// Package post implements post publication and the interactions composed
// on top of the store's merge-update primitive.
package post

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campuslink/api/internal/domain"
	"github.com/campuslink/api/internal/kv"
	"github.com/campuslink/api/internal/store"
)

var (
	ErrMissingContent  = errors.New("post: content is required")
	ErrMissingUser     = errors.New("post: user id is required")
	ErrOwnPostReport   = errors.New("post: cannot report your own post")
	ErrAlreadyReported = errors.New("post: already reported")
)

// DefaultCategory is applied when a post is created without one.
const DefaultCategory = "Project"

// Service handles post operations against the selected backend. Likes,
// comments, reports and soft deletes are compositions over Update: read
// the current document, compute the replacement array, merge it back.
type Service struct {
	store  store.Store
	kv     kv.Store
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Service. The kv store holds per-user bookmark sets.
func New(st store.Store, kvs kv.Store, logger *slog.Logger) Service {
	return Service{store: st, kv: kvs, logger: logger, now: time.Now}
}

// List returns all visible posts, newest first. Soft-deleted posts never
// appear even though their documents remain in storage.
func (s Service) List(ctx context.Context) ([]domain.Post, error) {
	return s.store.ListPosts(ctx)
}

// Get returns a single post by id.
func (s Service) Get(ctx context.Context, postID string) (*domain.Post, error) {
	return s.store.FindPostByID(ctx, postID)
}

// CreateInput carries the caller-supplied post fields.
type CreateInput struct {
	UserID   string   `json:"user_id"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

// Create persists a new post with empty interaction sets.
func (s Service) Create(ctx context.Context, in CreateInput) (*domain.Post, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, ErrMissingUser
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, ErrMissingContent
	}
	category := in.Category
	if category == "" {
		category = DefaultCategory
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	post := domain.Post{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Content:   in.Content,
		Category:  category,
		Tags:      tags,
		Likes:     []string{},
		Comments:  []domain.Comment{},
		Reports:   []domain.Report{},
		Deleted:   false,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertPost(ctx, &post); err != nil {
		return nil, err
	}
	s.logger.Info("post created", "post_id", post.ID, "user_id", post.UserID)
	return &post, nil
}

// Update shallow-merges fields into the post document. Array fields are
// wholesale-replaced, never appended. A missing id is a silent no-op.
func (s Service) Update(ctx context.Context, postID string, fields map[string]any) error {
	return s.store.UpdatePost(ctx, postID, fields)
}

// ToggleLike adds the user to the like set, or removes them when already
// present. Applying it twice restores the original set.
func (s Service) ToggleLike(ctx context.Context, postID, userID string) (*domain.Post, error) {
	post, err := s.store.FindPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	likes := make([]string, 0, len(post.Likes)+1)
	if post.LikedBy(userID) {
		for _, id := range post.Likes {
			if id != userID {
				likes = append(likes, id)
			}
		}
	} else {
		likes = append(likes, post.Likes...)
		likes = append(likes, userID)
	}
	if err := s.store.UpdatePost(ctx, postID, map[string]any{"likes": likes}); err != nil {
		return nil, err
	}
	post.Likes = likes
	return post, nil
}

// AddComment appends to the ordered comment sequence.
func (s Service) AddComment(ctx context.Context, postID, userID, text string) (*domain.Post, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrMissingContent
	}
	post, err := s.store.FindPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	comments := append(append([]domain.Comment{}, post.Comments...), domain.Comment{
		UserID:    userID,
		Text:      trimmed,
		CreatedAt: s.now().UTC(),
	})
	if err := s.store.UpdatePost(ctx, postID, map[string]any{"comments": comments}); err != nil {
		return nil, err
	}
	post.Comments = comments
	return post, nil
}

// Report flags a post. A post owner may not report their own post, and a
// user may report a given post at most once.
func (s Service) Report(ctx context.Context, postID, userID, reason string) (*domain.Post, error) {
	post, err := s.store.FindPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.UserID == userID {
		return nil, ErrOwnPostReport
	}
	if post.ReportedBy(userID) {
		return nil, ErrAlreadyReported
	}
	reports := append(append([]domain.Report{}, post.Reports...), domain.Report{
		UserID:    userID,
		Reason:    reason,
		CreatedAt: s.now().UTC(),
	})
	if err := s.store.UpdatePost(ctx, postID, map[string]any{"reports": reports}); err != nil {
		return nil, err
	}
	post.Reports = reports
	s.logger.Info("post reported", "post_id", postID, "by", userID)
	return post, nil
}

// SoftDelete flips the deleted flag; the document stays in storage.
func (s Service) SoftDelete(ctx context.Context, postID string) error {
	return s.store.UpdatePost(ctx, postID, map[string]any{"deleted": true})
}

// EditContent replaces the post body.
func (s Service) EditContent(ctx context.Context, postID, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrMissingContent
	}
	return s.store.UpdatePost(ctx, postID, map[string]any{"content": content})
}
