// Package generation turns a pending opportunity into a constraint-validated,
// versioned draft reply and manages the draft's lifecycle.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/sethvargo/go-retry"

	"replyscout/internal/brain"
	"replyscout/internal/knowledge"
	"replyscout/internal/model"
	"replyscout/internal/storage"
)

const (
	// Each generation stage makes this many attempts before the whole
	// operation fails.
	stageAttempts = 3
	// First backoff delay; doubles per attempt.
	stageBaseDelay = 1 * time.Second
)

// Publisher is the slice of the content source the pipeline needs: posting
// limits and the post operation itself.
type Publisher interface {
	Constraints(ctx context.Context) (model.Constraints, error)
	Publish(ctx context.Context, parentPostID, text string) (model.Receipt, error)
}

// Pipeline drives the two-stage generation process and the draft lifecycle.
type Pipeline struct {
	store     storage.Storage
	engine    brain.Engine
	kb        knowledge.Searcher
	pub       Publisher
	log       *slog.Logger
	now       func() time.Time
	baseDelay time.Duration
}

// New creates a Pipeline.
func New(store storage.Storage, engine brain.Engine, kb knowledge.Searcher, pub Publisher, log *slog.Logger) *Pipeline {
	return &Pipeline{
		store:     store,
		engine:    engine,
		kb:        kb,
		pub:       pub,
		log:       log,
		now:       time.Now,
		baseDelay: stageBaseDelay,
	}
}

// SetNow overrides the clock (useful for testing).
func (p *Pipeline) SetNow(now func() time.Time) {
	p.now = now
}

// SetBaseDelay overrides the retry base delay (useful for testing).
func (p *Pipeline) SetBaseDelay(d time.Duration) {
	p.baseDelay = d
}

// Generate runs the full pipeline for an opportunity and persists a new draft
// response with the next version number. No response is ever persisted on
// failure.
func (p *Pipeline) Generate(ctx context.Context, opportunityID, accountID, profileID string) (*model.Response, error) {
	opp, err := p.store.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return nil, fmt.Errorf("load opportunity: %w", err)
	}
	if opp.AccountID != accountID {
		return nil, &model.NotFoundError{Kind: "opportunity", ID: opportunityID}
	}
	profile, err := p.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	now := p.now()
	if opp.Status != model.OpportunityPending {
		return nil, &model.InvalidStateError{
			Kind:     "opportunity",
			ID:       opportunityID,
			Current:  string(opp.Status),
			Expected: string(model.OpportunityPending),
		}
	}
	if !now.Before(opp.ExpiresAt) {
		// Past-TTL opportunities are never offered for generation, even if
		// the sweep has not reclassified them yet.
		return nil, &model.InvalidStateError{
			Kind:     "opportunity",
			ID:       opportunityID,
			Current:  string(model.OpportunityExpired),
			Expected: string(model.OpportunityPending),
		}
	}

	var meta model.GenerationMeta
	meta.Model = p.engine.Model()

	// Stage 1: analysis.
	var analysis brain.Analysis
	start := time.Now()
	err = p.withRetry(ctx, "analysis", func(ctx context.Context) error {
		var aerr error
		analysis, aerr = p.engine.Analyze(ctx, analysisPrompt(opp.PostText))
		return aerr
	})
	meta.AnalysisMS = time.Since(start).Milliseconds()
	if err != nil {
		return nil, fmt.Errorf("analysis stage: %w", err)
	}
	meta.Keywords = analysis.Keywords
	meta.Topic = analysis.MainTopic
	meta.Domain = analysis.Domain
	meta.Question = analysis.Question

	// Knowledge search degrades gracefully: an unavailable index means an
	// ungrounded reply, not a failed pipeline. A nil searcher disables the
	// stage entirely.
	var chunks []knowledge.Chunk
	if p.kb != nil {
		start = time.Now()
		chunks, err = p.kb.Search(ctx, analysis.Keywords)
		meta.SearchMS = time.Since(start).Milliseconds()
		if err != nil {
			p.log.Warn("knowledge search unavailable, continuing without context",
				"opportunity_id", opportunityID, "error", err)
			chunks = nil
		}
	}
	meta.KBChunksUsed = len(chunks)

	constraints, err := p.pub.Constraints(ctx)
	if err != nil {
		return nil, fmt.Errorf("load constraints: %w", err)
	}

	// Stage 2: generation.
	var text string
	start = time.Now()
	err = p.withRetry(ctx, "generation", func(ctx context.Context) error {
		var gerr error
		text, gerr = p.engine.Generate(ctx, generationPrompt(profile, chunks, constraints, opp.PostText))
		return gerr
	})
	meta.GenerateMS = time.Since(start).Milliseconds()
	if err != nil {
		return nil, fmt.Errorf("generation stage: %w", err)
	}

	// Fail closed: a draft that cannot legally be posted is not persisted.
	if n := utf8.RuneCountInString(text); n > constraints.MaxLength {
		return nil, &model.ConstraintError{MaxLength: constraints.MaxLength, Actual: n}
	}

	meta.VoiceApplied = profile.Voice != ""
	meta.PrinciplesApplied = len(profile.Principles) > 0

	resp := &model.Response{
		OpportunityID: opportunityID,
		AccountID:     accountID,
		Text:          text,
		Status:        model.ResponseDraft,
		Meta:          meta,
		GeneratedAt:   now,
	}
	if err := p.store.CreateResponse(ctx, resp); err != nil {
		return nil, fmt.Errorf("persist response: %w", err)
	}

	p.log.Info("draft generated",
		"opportunity_id", opportunityID,
		"response_id", resp.ID,
		"version", resp.Version,
		"kb_chunks", meta.KBChunksUsed)
	return resp, nil
}

// UpdateDraft rewrites the text of a draft response.
func (p *Pipeline) UpdateDraft(ctx context.Context, responseID, text string) (*model.Response, error) {
	if err := p.store.UpdateResponseText(ctx, responseID, text); err != nil {
		return nil, err
	}
	return p.store.GetResponse(ctx, responseID)
}

// Dismiss moves a draft to dismissed. The record is retained for history.
func (p *Pipeline) Dismiss(ctx context.Context, responseID string) (*model.Response, error) {
	if err := p.store.DismissResponse(ctx, responseID, p.now()); err != nil {
		return nil, err
	}
	return p.store.GetResponse(ctx, responseID)
}

// Publish posts a draft via the content source, then marks the response
// posted and the parent opportunity responded in one storage transaction.
func (p *Pipeline) Publish(ctx context.Context, responseID string) (*model.Response, error) {
	resp, err := p.store.GetResponse(ctx, responseID)
	if err != nil {
		return nil, fmt.Errorf("load response: %w", err)
	}
	if resp.Status != model.ResponseDraft {
		return nil, &model.InvalidStateError{
			Kind:     "response",
			ID:       responseID,
			Current:  string(resp.Status),
			Expected: string(model.ResponseDraft),
		}
	}
	opp, err := p.store.GetOpportunity(ctx, resp.OpportunityID)
	if err != nil {
		return nil, fmt.Errorf("load opportunity: %w", err)
	}
	// Only one response per opportunity ever reaches posted.
	if opp.Status != model.OpportunityPending {
		return nil, &model.InvalidStateError{
			Kind:     "opportunity",
			ID:       opp.ID,
			Current:  string(opp.Status),
			Expected: string(model.OpportunityPending),
		}
	}

	receipt, err := p.pub.Publish(ctx, opp.PostID, resp.Text)
	if err != nil {
		return nil, fmt.Errorf("publish post: %w", err)
	}
	postedAt := receipt.PostedAt
	if postedAt.IsZero() {
		postedAt = p.now()
	}

	if err := p.store.MarkResponsePosted(ctx, resp.ID, opp.ID, postedAt); err != nil {
		return nil, fmt.Errorf("record posted response: %w", err)
	}

	p.log.Info("response posted",
		"response_id", resp.ID,
		"opportunity_id", opp.ID,
		"platform_post_id", receipt.PostID)
	return p.store.GetResponse(ctx, responseID)
}

// withRetry runs fn with bounded exponential backoff. Every stage shares this
// one helper instead of carrying its own retry loop.
func (p *Pipeline) withRetry(ctx context.Context, stage string, fn func(context.Context) error) error {
	attempt := 0
	b := retry.WithMaxRetries(stageAttempts-1, retry.NewExponential(p.baseDelay))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := fn(ctx); err != nil {
			p.log.Warn("stage attempt failed",
				"stage", stage, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}
