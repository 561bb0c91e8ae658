// Package scheduler periodically drives discovery runs and the expiration
// sweep.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"replyscout/internal/discovery"
	"replyscout/internal/model"
	"replyscout/internal/storage"
)

const defaultTick = 1 * time.Minute

// Drafter produces a reply draft for a pending opportunity.
type Drafter interface {
	Generate(ctx context.Context, opportunityID, accountID, profileID string) (*model.Response, error)
}

// Scheduler runs due discovery schedules, expires stale opportunities and,
// when a drafter is set, generates a first draft for new opportunities.
type Scheduler struct {
	store   storage.Storage
	orch    *discovery.Orchestrator
	drafter Drafter
	log     *slog.Logger
	tick    time.Duration
}

// New creates a Scheduler.
func New(store storage.Storage, orch *discovery.Orchestrator, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store: store,
		orch:  orch,
		log:   log,
		tick:  defaultTick,
	}
}

// SetDrafter enables automatic draft generation for opportunities that do not
// have a response yet.
func (s *Scheduler) SetDrafter(d Drafter) {
	s.drafter = d
}

// SetTickInterval overrides the default 1-minute check interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkAll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

// checkAll runs every due schedule, then the expiration sweep. One failed
// run does not stop the rest.
func (s *Scheduler) checkAll(ctx context.Context) {
	due, err := s.store.ListDueSchedules(ctx)
	if err != nil {
		s.log.Error("list due schedules", "error", err)
		return
	}

	accounts := map[string]bool{}
	for _, sched := range due {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.orch.Run(ctx, sched.AccountID, sched.Type); err != nil {
			s.log.Error("discovery run failed",
				"account_id", sched.AccountID, "type", string(sched.Type), "error", err)
			continue
		}
		accounts[sched.AccountID] = true
	}

	if _, err := s.orch.ExpireOpportunities(ctx); err != nil {
		s.log.Error("expiration sweep failed", "error", err)
	}

	if s.drafter != nil {
		for accountID := range accounts {
			if ctx.Err() != nil {
				return
			}
			s.draftNew(ctx, accountID)
		}
	}
}

// draftNew generates a first draft for every pending opportunity of an
// account that has no response yet. Failures are logged per opportunity; a
// rejected draft does not block the rest.
func (s *Scheduler) draftNew(ctx context.Context, accountID string) {
	profile, err := s.store.GetProfileByAccount(ctx, accountID)
	if err != nil {
		s.log.Error("load profile for drafting", "account_id", accountID, "error", err)
		return
	}

	pending, err := s.store.ListPendingOpportunities(ctx, accountID, time.Now().UTC())
	if err != nil {
		s.log.Error("list pending opportunities", "account_id", accountID, "error", err)
		return
	}

	for _, opp := range pending {
		existing, err := s.store.ListResponses(ctx, opp.ID)
		if err != nil {
			s.log.Error("list responses", "opportunity_id", opp.ID, "error", err)
			continue
		}
		if len(existing) > 0 {
			continue
		}
		if _, err := s.drafter.Generate(ctx, opp.ID, accountID, profile.ID); err != nil {
			s.log.Error("auto draft failed", "opportunity_id", opp.ID, "error", err)
		}
	}
}
