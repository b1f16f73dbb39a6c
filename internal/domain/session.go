package domain

// Session is the authenticated identity for one client context. At most
// one session exists per context; it is created by login, destroyed by
// sign-out, and refreshed in place when the owning profile changes.
type Session struct {
	User SafeUser `json:"user"`
}
