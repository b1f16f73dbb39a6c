package post

import (
	"context"
	"sort"

	"github.com/campuslink/api/internal/domain"
)

// Stats aggregates a user's activity across visible posts.
type Stats struct {
	Posts            int `json:"posts"`
	LikesReceived    int `json:"likesReceived"`
	CommentsReceived int `json:"commentsReceived"`
}

// UserStats counts the user's posts and the interactions they received.
func (s Service) UserStats(ctx context.Context, userID string) (Stats, error) {
	posts, err := s.store.ListPosts(ctx)
	if err != nil {
		return Stats{}, err
	}
	var stats Stats
	for _, p := range posts {
		if p.UserID != userID {
			continue
		}
		stats.Posts++
		stats.LikesReceived += len(p.Likes)
		stats.CommentsReceived += len(p.Comments)
	}
	return stats, nil
}

func trendingScore(p domain.Post) int {
	return len(p.Likes)*2 + len(p.Comments)
}

// Trending returns up to limit posts ranked by engagement. Likes weigh
// double a comment; ties keep newest-first order from the listing.
func (s Service) Trending(ctx context.Context, limit int) ([]domain.Post, error) {
	posts, err := s.store.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return trendingScore(posts[i]) > trendingScore(posts[j])
	})
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}
