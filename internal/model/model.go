// Package model defines the domain types used across the application.
package model

import "time"

// DiscoveryType identifies how an opportunity was found.
type DiscoveryType string

// Supported discovery types.
const (
	DiscoveryReplies DiscoveryType = "replies"
	DiscoverySearch  DiscoveryType = "search"
)

// OpportunityStatus is the lifecycle state of an opportunity.
type OpportunityStatus string

// Opportunity lifecycle states. Responded, dismissed and expired are terminal.
const (
	OpportunityPending   OpportunityStatus = "pending"
	OpportunityResponded OpportunityStatus = "responded"
	OpportunityDismissed OpportunityStatus = "dismissed"
	OpportunityExpired   OpportunityStatus = "expired"
)

// ResponseStatus is the lifecycle state of a drafted reply.
type ResponseStatus string

// Response lifecycle states. Posted and dismissed are terminal.
const (
	ResponseDraft     ResponseStatus = "draft"
	ResponsePosted    ResponseStatus = "posted"
	ResponseDismissed ResponseStatus = "dismissed"
)

// Scoring is the numeric breakdown used to rank opportunities.
// Each field is in [0,100], rounded to one decimal place.
type Scoring struct {
	Recency float64
	Impact  float64
	Total   float64
}

// Post is a raw post fetched from the content source, before scoring.
type Post struct {
	ID           string // platform-assigned post ID
	AuthorUserID string // platform-assigned user ID of the author
	URL          string
	Text         string
	Likes        int
	Reposts      int
	Replies      int
	CreatedAt    time.Time
}

// Author is a denormalized, upserted profile cache entry, keyed by
// (Platform, PlatformUserID). Refreshed on every sighting, never deleted.
type Author struct {
	ID             string
	Platform       string
	PlatformUserID string
	Username       string
	DisplayName    string
	Followers      int
	UpdatedAt      time.Time
}

// Opportunity is a discovered post deemed worth a response, with a bounded
// lifetime. (AccountID, PostID) is the dedup key.
type Opportunity struct {
	ID            string
	AccountID     string
	Platform      string
	PostID        string // platform-assigned ID of the source post
	PostURL       string
	PostText      string
	PostCreatedAt time.Time
	AuthorID      string // references Author.ID
	Likes         int
	Reposts       int
	Replies       int
	Scoring       Scoring
	DiscoveryType DiscoveryType
	Status        OpportunityStatus
	DiscoveredAt  time.Time
	ExpiresAt     time.Time
	UpdatedAt     time.Time
}

// GenerationMeta records how a response draft was produced.
type GenerationMeta struct {
	Keywords          []string
	Topic             string
	Domain            string
	Question          string
	KBChunksUsed      int
	AnalysisMS        int64
	SearchMS          int64
	GenerateMS        int64
	VoiceApplied      bool
	PrinciplesApplied bool
	Model             string
}

// Response is a versioned, AI-drafted reply to exactly one opportunity.
// Versions start at 1 and increase by one per generation; old versions are
// retained for auditability.
type Response struct {
	ID            string
	OpportunityID string
	AccountID     string
	Text          string
	Status        ResponseStatus
	Version       int
	Meta          GenerationMeta
	GeneratedAt   time.Time
	DismissedAt   *time.Time
	PostedAt      *time.Time
}

// Account is a platform account on whose behalf discovery and posting run.
type Account struct {
	ID        string
	Platform  string
	Handle    string
	LastError string // most recent discovery failure, empty when healthy
	CreatedAt time.Time
}

// Profile holds the user's voice, principles, and discovery interests.
// Read-only input to discovery and generation.
type Profile struct {
	ID         string
	AccountID  string
	Voice      string
	Principles []string
	Interests  []string
	Keywords   []string
}

// Schedule is one (account, discovery type) discovery cadence entry.
type Schedule struct {
	AccountID       string
	Type            DiscoveryType
	IntervalMinutes int
	LastRunAt       *time.Time
}

// Constraints are platform posting limits enforced before a draft is stored.
type Constraints struct {
	MaxLength int
}

// Receipt is returned by the content source after a successful post.
type Receipt struct {
	PostID   string
	PostURL  string
	PostedAt time.Time
}
