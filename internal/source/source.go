// Package source defines the content-source contract and an HTTP client
// implementing it against a platform bridge API.
package source

import (
	"context"
	"time"

	"replyscout/internal/model"
)

// Source is the contract every content-source adapter satisfies. Discovery
// consumes the fetch side; the generation pipeline consumes constraints and
// publishing.
type Source interface {
	// FetchReplies returns replies to the account's own posts since the
	// given time.
	FetchReplies(ctx context.Context, since time.Time, limit int) ([]model.Post, error)
	// SearchPosts returns posts matching any of the keywords since the
	// given time.
	SearchPosts(ctx context.Context, keywords []string, since time.Time, limit int) ([]model.Post, error)
	// GetAuthor returns the current profile of a platform user.
	GetAuthor(ctx context.Context, platformUserID string) (model.Author, error)
	// Constraints returns the platform's posting limits.
	Constraints(ctx context.Context) (model.Constraints, error)
	// Publish posts a reply under the given parent post.
	Publish(ctx context.Context, parentPostID, text string) (model.Receipt, error)
}
