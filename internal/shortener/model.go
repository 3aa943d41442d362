package shortener

import "time"

// Link is the persisted short-link record. ID is assigned by the database at
// insert time. PasswordHash is nil for unprotected links and must never be
// serialized into an HTTP response.
type Link struct {
	ID           int64
	OriginalURL  string
	ShortCode    string
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	Clicks       int64
	PasswordHash *string
}

// IsPasswordProtected reports whether resolving the link's destination is
// gated behind a password.
func (l Link) IsPasswordProtected() bool {
	return l.PasswordHash != nil
}
