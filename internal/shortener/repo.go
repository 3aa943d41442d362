package shortener

import "context"

// Repository defines the persistence operations for Link records. It abstracts
// the underlying data store. Links are never deleted or updated by the core;
// the only mutation after creation is the click increment.
type Repository interface {
	// CreateLink inserts a new link and returns it with its assigned ID.
	// Inserting a short code that already exists yields a Conflict error.
	CreateLink(ctx context.Context, link Link) (Link, error)

	// GetLinkByCode fetches a link by exact short-code match.
	GetLinkByCode(ctx context.Context, code string) (Link, error)

	// CodeExists reports whether a short code is already taken.
	CodeExists(ctx context.Context, code string) (bool, error)

	// IncrementClicks atomically bumps the click counter by one.
	IncrementClicks(ctx context.Context, id int64) error
}
