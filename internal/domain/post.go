package domain

import "time"

// Comment is an entry in a post's ordered comment sequence.
type Comment struct {
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Report records a user flagging a post.
type Report struct {
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Post is a community publication. Likes holds user ids with toggle
// semantics and no duplicates. Deleted posts stay in storage but are
// excluded from every listing.
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Tags      []string  `json:"tags"`
	Likes     []string  `json:"likes"`
	Comments  []Comment `json:"comments"`
	Reports   []Report  `json:"reports"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"created_at"`
}

// LikedBy reports whether the user id is present in the like set.
func (p Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// ReportedBy reports whether the user has already reported the post.
func (p Post) ReportedBy(userID string) bool {
	for _, r := range p.Reports {
		if r.UserID == userID {
			return true
		}
	}
	return false
}
