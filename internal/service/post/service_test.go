package post

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/campuslink/api/internal/domain"
	"github.com/campuslink/api/internal/kv"
	"github.com/campuslink/api/internal/store"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T) Service {
	t.Helper()
	kvs := kv.NewMemory(nil)
	return New(store.NewLocal(kvs, newTestLogger()), kvs, newTestLogger())
}

func mustCreate(t *testing.T, svc Service, userID, content string) *domain.Post {
	t.Helper()
	created, err := svc.Create(context.Background(), CreateInput{UserID: userID, Content: content})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return created
}

func TestCreateAppliesDefaults(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateInput{UserID: "u1"}); !errors.Is(err, ErrMissingContent) {
		t.Fatalf("expected ErrMissingContent, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateInput{Content: "hi"}); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}

	created := mustCreate(t, svc, "u1", "hello world")
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}
	if created.Category != DefaultCategory {
		t.Fatalf("expected default category, got %q", created.Category)
	}
	if created.Likes == nil || created.Comments == nil || created.Reports == nil {
		t.Fatalf("interaction sets must start empty, not nil: %+v", created)
	}
	if created.Deleted {
		t.Fatalf("new posts are visible")
	}
}

func TestToggleLikeIsAnInvolution(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	created := mustCreate(t, svc, "u1", "likeable")

	liked, err := svc.ToggleLike(ctx, created.ID, "u2")
	if err != nil {
		t.Fatalf("like: %v", err)
	}
	if len(liked.Likes) != 1 || liked.Likes[0] != "u2" {
		t.Fatalf("expected single like, got %+v", liked.Likes)
	}

	unliked, err := svc.ToggleLike(ctx, created.ID, "u2")
	if err != nil {
		t.Fatalf("unlike: %v", err)
	}
	if len(unliked.Likes) != 0 {
		t.Fatalf("expected like removed, got %+v", unliked.Likes)
	}

	if _, err := svc.ToggleLike(ctx, "missing", "u2"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddCommentAppendsInOrder(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	created := mustCreate(t, svc, "u1", "discuss")

	if _, err := svc.AddComment(ctx, created.ID, "u2", "   "); !errors.Is(err, ErrMissingContent) {
		t.Fatalf("expected ErrMissingContent for blank comment, got %v", err)
	}
	if _, err := svc.AddComment(ctx, created.ID, "u2", "first"); err != nil {
		t.Fatalf("comment: %v", err)
	}
	updated, err := svc.AddComment(ctx, created.ID, "u3", "second")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if len(updated.Comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(updated.Comments))
	}
	if updated.Comments[0].Text != "first" || updated.Comments[1].Text != "second" {
		t.Fatalf("comment order broken: %+v", updated.Comments)
	}
}

func TestReportInvariants(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	created := mustCreate(t, svc, "owner", "reportable")

	if _, err := svc.Report(ctx, created.ID, "owner", "spam"); !errors.Is(err, ErrOwnPostReport) {
		t.Fatalf("expected ErrOwnPostReport, got %v", err)
	}

	updated, err := svc.Report(ctx, created.ID, "u2", "spam")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(updated.Reports) != 1 || updated.Reports[0].UserID != "u2" {
		t.Fatalf("unexpected reports: %+v", updated.Reports)
	}

	if _, err := svc.Report(ctx, created.ID, "u2", "again"); !errors.Is(err, ErrAlreadyReported) {
		t.Fatalf("expected ErrAlreadyReported, got %v", err)
	}

	// A different user may still report.
	if _, err := svc.Report(ctx, created.ID, "u3", "offensive"); err != nil {
		t.Fatalf("second reporter: %v", err)
	}
}

func TestSoftDeleteHidesFromListings(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	keep := mustCreate(t, svc, "u1", "keep me")
	gone := mustCreate(t, svc, "u1", "delete me")

	if err := svc.SoftDelete(ctx, gone.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	posts, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != keep.ID {
		t.Fatalf("deleted post still listed: %+v", posts)
	}

	// Still addressable directly; interactions keep working.
	if _, err := svc.ToggleLike(ctx, gone.ID, "u2"); err != nil {
		t.Fatalf("like on deleted post: %v", err)
	}
}

func TestEditContent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	created := mustCreate(t, svc, "u1", "draft")

	if err := svc.EditContent(ctx, created.ID, ""); !errors.Is(err, ErrMissingContent) {
		t.Fatalf("expected ErrMissingContent, got %v", err)
	}
	if err := svc.EditContent(ctx, created.ID, "final"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != "final" {
		t.Fatalf("content not updated: %q", got.Content)
	}
	if got.UserID != "u1" || got.Category != DefaultCategory {
		t.Fatalf("unrelated fields changed: %+v", got)
	}
}

func TestBookmarksToggle(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	ids, err := svc.Bookmarks(ctx, "u1")
	if err != nil {
		t.Fatalf("bookmarks: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty set, got %+v", ids)
	}

	ids, err = svc.ToggleBookmark(ctx, "u1", "p1")
	if err != nil || len(ids) != 1 || ids[0] != "p1" {
		t.Fatalf("toggle on: %v %+v", err, ids)
	}
	ids, err = svc.ToggleBookmark(ctx, "u1", "p2")
	if err != nil || len(ids) != 2 {
		t.Fatalf("toggle second: %v %+v", err, ids)
	}
	ids, err = svc.ToggleBookmark(ctx, "u1", "p1")
	if err != nil || len(ids) != 1 || ids[0] != "p2" {
		t.Fatalf("toggle off: %v %+v", err, ids)
	}

	// Bookmark sets are per user.
	other, err := svc.Bookmarks(ctx, "u2")
	if err != nil || len(other) != 0 {
		t.Fatalf("expected isolated sets: %v %+v", err, other)
	}
}

func TestUserStatsAndTrending(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	quiet := mustCreate(t, svc, "u1", "quiet")
	popular := mustCreate(t, svc, "u1", "popular")
	foreign := mustCreate(t, svc, "u2", "unrelated")

	for _, liker := range []string{"a", "b", "c"} {
		if _, err := svc.ToggleLike(ctx, popular.ID, liker); err != nil {
			t.Fatalf("like: %v", err)
		}
	}
	if _, err := svc.AddComment(ctx, popular.ID, "a", "nice"); err != nil {
		t.Fatalf("comment: %v", err)
	}
	if _, err := svc.ToggleLike(ctx, foreign.ID, "a"); err != nil {
		t.Fatalf("like: %v", err)
	}

	stats, err := svc.UserStats(ctx, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Posts != 2 || stats.LikesReceived != 3 || stats.CommentsReceived != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	trending, err := svc.Trending(ctx, 2)
	if err != nil {
		t.Fatalf("trending: %v", err)
	}
	if len(trending) != 2 {
		t.Fatalf("expected limit applied, got %d", len(trending))
	}
	if trending[0].ID != popular.ID {
		t.Fatalf("expected most engaged post first, got %s", trending[0].ID)
	}
	if trending[0].ID == quiet.ID {
		t.Fatalf("quiet post ranked first")
	}
}
