package post

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/campuslink/api/internal/kv"
)

const bookmarksPrefix = "bookmarks_"

func bookmarksKey(userID string) string { return bookmarksPrefix + userID }

// Bookmarks returns the user's bookmarked post ids. Bookmarks are a
// per-user convenience set; a missing or unreadable entry reads as empty.
func (s Service) Bookmarks(ctx context.Context, userID string) ([]string, error) {
	raw, err := s.kv.Get(ctx, bookmarksKey(userID))
	if err != nil {
		if errors.Is(err, kv.ErrNoKey) {
			return []string{}, nil
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		s.logger.Warn("discarding malformed bookmarks entry", "user_id", userID, "error", err)
		return []string{}, nil
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// ToggleBookmark adds the post to the user's bookmark set, or removes it
// when already present, and returns the resulting set.
func (s Service) ToggleBookmark(ctx context.Context, userID, postID string) ([]string, error) {
	ids, err := s.Bookmarks(ctx, userID)
	if err != nil {
		return nil, err
	}
	next := make([]string, 0, len(ids)+1)
	found := false
	for _, id := range ids {
		if id == postID {
			found = true
			continue
		}
		next = append(next, id)
	}
	if !found {
		next = append(next, postID)
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return nil, err
	}
	if err := s.kv.Set(ctx, bookmarksKey(userID), raw); err != nil {
		return nil, err
	}
	return next, nil
}
