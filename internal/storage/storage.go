// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"time"

	"replyscout/internal/model"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	// SetAccountError records the latest discovery failure for an account.
	// An empty message clears it.
	SetAccountError(ctx context.Context, id, msg string) error

	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	GetProfileByAccount(ctx context.Context, accountID string) (*model.Profile, error)

	GetSchedule(ctx context.Context, accountID string, dt model.DiscoveryType) (*model.Schedule, error)
	ListDueSchedules(ctx context.Context) ([]model.Schedule, error)
	TouchSchedule(ctx context.Context, accountID string, dt model.DiscoveryType, at time.Time) error

	// UpsertAuthor inserts or refreshes an author keyed by
	// (Platform, PlatformUserID) and populates its ID.
	UpsertAuthor(ctx context.Context, a *model.Author) error
	GetAuthor(ctx context.Context, platform, platformUserID string) (*model.Author, error)

	CreateOpportunity(ctx context.Context, o *model.Opportunity) error
	GetOpportunity(ctx context.Context, id string) (*model.Opportunity, error)
	OpportunityExists(ctx context.Context, accountID, postID string) (bool, error)
	// ListPendingOpportunities returns pending, unexpired opportunities for
	// an account, highest total score first.
	ListPendingOpportunities(ctx context.Context, accountID string, now time.Time) ([]model.Opportunity, error)
	// DismissOpportunity moves a pending opportunity to dismissed. Fails
	// with InvalidStateError when the opportunity is past pending.
	DismissOpportunity(ctx context.Context, id string, at time.Time) error
	// ExpirePending transitions every pending opportunity past its TTL to
	// expired and returns the number of rows changed.
	ExpirePending(ctx context.Context, now time.Time) (int64, error)

	// CreateResponse inserts a draft and assigns the next version for its
	// opportunity atomically, populating r.Version.
	CreateResponse(ctx context.Context, r *model.Response) error
	GetResponse(ctx context.Context, id string) (*model.Response, error)
	// ListResponses returns every version for an opportunity, newest first.
	ListResponses(ctx context.Context, opportunityID string) ([]model.Response, error)
	// UpdateResponseText rewrites the draft text. Fails with
	// InvalidStateError when the response is no longer a draft.
	UpdateResponseText(ctx context.Context, id, text string) error
	// DismissResponse moves a draft to dismissed. The record is retained.
	DismissResponse(ctx context.Context, id string, at time.Time) error
	// MarkResponsePosted moves a draft to posted and advances the parent
	// opportunity to responded in the same transaction.
	MarkResponsePosted(ctx context.Context, responseID, opportunityID string, at time.Time) error

	Close() error
}
