// Package discovery finds candidate posts worth responding to and manages
// their bounded lifecycle.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"replyscout/internal/model"
	"replyscout/internal/scoring"
	"replyscout/internal/source"
	"replyscout/internal/storage"
)

const (
	// Opportunities below this total score are not worth persisting.
	scoreThreshold = 30.0
	// Pending opportunities expire after this long; freshness dominates the
	// scoring weights, so stale items would only pollute the queue.
	opportunityTTL = 4 * time.Hour
	// Lookback window for the first run of a schedule.
	defaultLookback = 2 * time.Hour

	defaultFetchLimit = 50
)

// RunStats summarizes one discovery run.
type RunStats struct {
	Fetched        int
	Duplicates     int
	BelowThreshold int
	Created        int
}

// Orchestrator coordinates the content source and the scoring engine to
// produce deduplicated, scored, persisted opportunities.
type Orchestrator struct {
	store storage.Storage
	src   source.Source
	log   *slog.Logger
	now   func() time.Time
	limit int
}

// New creates an Orchestrator.
func New(store storage.Storage, src source.Source, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store: store,
		src:   src,
		log:   log,
		now:   time.Now,
		limit: defaultFetchLimit,
	}
}

// SetNow overrides the clock (useful for testing).
func (o *Orchestrator) SetNow(now func() time.Time) {
	o.now = now
}

// SetFetchLimit overrides the default per-run fetch limit.
func (o *Orchestrator) SetFetchLimit(n int) {
	o.limit = n
}

// Run executes one discovery pass for an account and discovery type. On
// success the schedule's last-run timestamp advances and the account's stored
// error clears; on failure the error is persisted against the account and
// returned. A failed run leaves already-inserted opportunities in place,
// since dedup makes a retry safe.
func (o *Orchestrator) Run(ctx context.Context, accountID string, dt model.DiscoveryType) (RunStats, error) {
	stats, err := o.run(ctx, accountID, dt)
	if err != nil {
		if serr := o.store.SetAccountError(ctx, accountID, err.Error()); serr != nil {
			o.log.Error("persist account error", "account_id", accountID, "error", serr)
		}
		return stats, err
	}

	now := o.now()
	if err := o.store.TouchSchedule(ctx, accountID, dt, now); err != nil {
		return stats, fmt.Errorf("touch schedule: %w", err)
	}
	if err := o.store.SetAccountError(ctx, accountID, ""); err != nil {
		return stats, fmt.Errorf("clear account error: %w", err)
	}

	o.log.Info("discovery run complete",
		"account_id", accountID,
		"type", string(dt),
		"fetched", stats.Fetched,
		"created", stats.Created,
		"duplicates", stats.Duplicates,
		"below_threshold", stats.BelowThreshold)
	return stats, nil
}

func (o *Orchestrator) run(ctx context.Context, accountID string, dt model.DiscoveryType) (RunStats, error) {
	var stats RunStats

	account, err := o.store.GetAccount(ctx, accountID)
	if err != nil {
		return stats, fmt.Errorf("resolve account: %w", err)
	}
	profile, err := o.store.GetProfileByAccount(ctx, accountID)
	if err != nil {
		return stats, fmt.Errorf("resolve profile: %w", err)
	}
	sched, err := o.store.GetSchedule(ctx, accountID, dt)
	if err != nil {
		return stats, fmt.Errorf("resolve schedule: %w", err)
	}

	now := o.now()
	since := now.Add(-defaultLookback)
	if sched.LastRunAt != nil {
		since = *sched.LastRunAt
	}

	posts, skipped, err := o.fetch(ctx, profile, dt, since)
	if err != nil {
		return stats, err
	}
	if skipped {
		// A search run with no keywords and no interests is a successful
		// no-op, not an error.
		o.log.Info("search run skipped, no keywords or interests configured", "account_id", accountID)
		return stats, nil
	}
	stats.Fetched = len(posts)

	for _, post := range posts {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		exists, err := o.store.OpportunityExists(ctx, accountID, post.ID)
		if err != nil {
			return stats, fmt.Errorf("check dedup for post %s: %w", post.ID, err)
		}
		if exists {
			stats.Duplicates++
			continue
		}

		author, err := o.src.GetAuthor(ctx, post.AuthorUserID)
		if err != nil {
			return stats, fmt.Errorf("fetch author %s: %w", post.AuthorUserID, err)
		}
		if err := o.store.UpsertAuthor(ctx, &author); err != nil {
			return stats, fmt.Errorf("upsert author %s: %w", post.AuthorUserID, err)
		}

		score := scoring.Score(post, author, now)
		if score.Total < scoreThreshold {
			stats.BelowThreshold++
			o.log.Debug("post below threshold",
				"account_id", accountID, "post_id", post.ID, "total", score.Total)
			continue
		}

		opp := model.Opportunity{
			AccountID:     accountID,
			Platform:      account.Platform,
			PostID:        post.ID,
			PostURL:       post.URL,
			PostText:      post.Text,
			PostCreatedAt: post.CreatedAt,
			AuthorID:      author.ID,
			Likes:         post.Likes,
			Reposts:       post.Reposts,
			Replies:       post.Replies,
			Scoring:       score,
			DiscoveryType: dt,
			Status:        model.OpportunityPending,
			DiscoveredAt:  now,
			ExpiresAt:     now.Add(opportunityTTL),
			UpdatedAt:     now,
		}
		if err := o.store.CreateOpportunity(ctx, &opp); err != nil {
			return stats, fmt.Errorf("persist opportunity for post %s: %w", post.ID, err)
		}
		stats.Created++
	}

	return stats, nil
}

// fetch returns candidate posts for the run. The skipped flag is true for a
// search run with nothing configured to search for.
func (o *Orchestrator) fetch(ctx context.Context, profile *model.Profile, dt model.DiscoveryType, since time.Time) ([]model.Post, bool, error) {
	switch dt {
	case model.DiscoveryReplies:
		posts, err := o.src.FetchReplies(ctx, since, o.limit)
		if err != nil {
			return nil, false, fmt.Errorf("fetch replies: %w", err)
		}
		return posts, false, nil
	case model.DiscoverySearch:
		keywords := profile.Keywords
		if len(keywords) == 0 {
			keywords = profile.Interests
		}
		if len(keywords) == 0 {
			return nil, true, nil
		}
		posts, err := o.src.SearchPosts(ctx, keywords, since, o.limit)
		if err != nil {
			return nil, false, fmt.Errorf("search posts: %w", err)
		}
		return posts, false, nil
	default:
		return nil, false, fmt.Errorf("unknown discovery type %q", dt)
	}
}

// ExpireOpportunities reclassifies every pending opportunity past its TTL to
// expired and returns the count changed. Idempotent and safe to run
// concurrently with discovery.
func (o *Orchestrator) ExpireOpportunities(ctx context.Context) (int64, error) {
	n, err := o.store.ExpirePending(ctx, o.now())
	if err != nil {
		return 0, fmt.Errorf("expire opportunities: %w", err)
	}
	if n > 0 {
		o.log.Info("expired opportunities", "count", n)
	}
	return n, nil
}
