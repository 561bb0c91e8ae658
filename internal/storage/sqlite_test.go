package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"replyscout/internal/model"
)

var ignoreAccountTS = cmpopts.IgnoreFields(model.Account{}, "CreatedAt")
var ignoreAuthorTS = cmpopts.IgnoreFields(model.Author{}, "UpdatedAt")

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	// A file-backed DB: with modernc.org/sqlite each pooled connection to
	// ":memory:" gets its own separate database, so queries made outside an
	// open transaction would see an empty schema.
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return v
}

func seedAccount(t *testing.T, s *SQLite) *model.Account {
	t.Helper()
	a := &model.Account{Platform: "x", Handle: "builder"}
	if err := s.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return a
}

func seedOpportunity(t *testing.T, s *SQLite, accountID, postID string, status model.OpportunityStatus, expiresAt time.Time) *model.Opportunity {
	t.Helper()
	o := &model.Opportunity{
		AccountID:     accountID,
		Platform:      "x",
		PostID:        postID,
		PostURL:       "https://x.test/" + postID,
		PostText:      "how do I ship faster?",
		PostCreatedAt: expiresAt.Add(-4 * time.Hour),
		AuthorID:      "author-1",
		Likes:         5,
		Scoring:       model.Scoring{Recency: 80, Impact: 40, Total: 68},
		DiscoveryType: model.DiscoveryReplies,
		Status:        status,
		DiscoveredAt:  expiresAt.Add(-4 * time.Hour),
		ExpiresAt:     expiresAt,
		UpdatedAt:     expiresAt.Add(-4 * time.Hour),
	}
	if err := s.CreateOpportunity(context.Background(), o); err != nil {
		t.Fatalf("create opportunity %s: %v", postID, err)
	}
	return o
}

func seedDraft(t *testing.T, s *SQLite, opportunityID, accountID string) *model.Response {
	t.Helper()
	r := &model.Response{
		OpportunityID: opportunityID,
		AccountID:     accountID,
		Text:          "ship smaller batches",
		Status:        model.ResponseDraft,
		Meta:          model.GenerationMeta{Topic: "shipping", Model: "test-model"},
		GeneratedAt:   time.Now().UTC().Truncate(time.Second),
	}
	if err := s.CreateResponse(context.Background(), r); err != nil {
		t.Fatalf("create response: %v", err)
	}
	return r
}

func TestAccountCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	a := seedAccount(t, s)
	if a.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := s.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(a, got, ignoreAccountTS); diff != "" {
		t.Errorf("GetAccount mismatch (-want +got):\n%s", diff)
	}

	if err := s.SetAccountError(ctx, a.ID, "fetch replies: rate limited"); err != nil {
		t.Fatalf("set error: %v", err)
	}
	got, err = s.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("get after error: %v", err)
	}
	if got.LastError != "fetch replies: rate limited" {
		t.Errorf("LastError = %q, want rate limited message", got.LastError)
	}

	if err := s.SetAccountError(ctx, a.ID, ""); err != nil {
		t.Fatalf("clear error: %v", err)
	}
	got, err = s.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("get after clear: %v", err)
	}
	if got.LastError != "" {
		t.Errorf("LastError = %q, want empty", got.LastError)
	}

	if _, err := s.GetAccount(ctx, "missing"); !model.IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestProfileCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	a := seedAccount(t, s)

	tests := []struct {
		name    string
		profile model.Profile
	}{
		{
			name: "full profile",
			profile: model.Profile{
				AccountID:  a.ID,
				Voice:      "direct, no hashtags",
				Principles: []string{"be concrete", "no hype"},
				Interests:  []string{"devtools", "infra"},
				Keywords:   []string{"ci", "deploy"},
			},
		},
		{
			name:    "empty lists stay nil",
			profile: model.Profile{AccountID: a.ID, Voice: "plain"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.profile
			if err := s.CreateProfile(ctx, &p); err != nil {
				t.Fatalf("create: %v", err)
			}
			if p.ID == "" {
				t.Fatal("expected generated ID")
			}

			got, err := s.GetProfile(ctx, p.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			want := tt.profile
			want.ID = p.ID
			if diff := cmp.Diff(&want, got); diff != "" {
				t.Errorf("GetProfile mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetProfileByAccount(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	a := seedAccount(t, s)

	p := model.Profile{AccountID: a.ID, Voice: "calm", Keywords: []string{"go"}}
	if err := s.CreateProfile(ctx, &p); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetProfileByAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("get by account: %v", err)
	}
	if diff := cmp.Diff(&p, got); diff != "" {
		t.Errorf("GetProfileByAccount mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.GetProfileByAccount(ctx, "missing"); !model.IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestScheduleLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	a := seedAccount(t, s)

	sc := model.Schedule{AccountID: a.ID, Type: model.DiscoveryReplies, IntervalMinutes: 15}
	if err := s.UpsertSchedule(ctx, &sc); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetSchedule(ctx, a.ID, model.DiscoveryReplies)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(&sc, got); diff != "" {
		t.Errorf("GetSchedule mismatch (-want +got):\n%s", diff)
	}

	ranAt := mustTime(t, "2025-06-01T12:00:00Z")
	if err := s.TouchSchedule(ctx, a.ID, model.DiscoveryReplies, ranAt); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, err = s.GetSchedule(ctx, a.ID, model.DiscoveryReplies)
	if err != nil {
		t.Fatalf("get after touch: %v", err)
	}
	if got.LastRunAt == nil || !got.LastRunAt.Equal(ranAt) {
		t.Errorf("LastRunAt = %v, want %v", got.LastRunAt, ranAt)
	}

	// Upsert replaces the interval without changing the key.
	sc.IntervalMinutes = 60
	sc.LastRunAt = &ranAt
	if err := s.UpsertSchedule(ctx, &sc); err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	got, err = s.GetSchedule(ctx, a.ID, model.DiscoveryReplies)
	if err != nil {
		t.Fatalf("get after upsert: %v", err)
	}
	if got.IntervalMinutes != 60 {
		t.Errorf("IntervalMinutes = %d, want 60", got.IntervalMinutes)
	}

	if _, err := s.GetSchedule(ctx, a.ID, model.DiscoverySearch); !model.IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestListDueSchedules(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	a := seedAccount(t, s)
	b := seedAccount(t, s)

	past := time.Now().UTC().Add(-30 * time.Minute).Truncate(time.Second)
	recent := time.Now().UTC().Add(-2 * time.Minute).Truncate(time.Second)

	schedules := []struct {
		name     string
		schedule model.Schedule
		wantDue  bool
	}{
		{
			name:     "never ran",
			schedule: model.Schedule{AccountID: a.ID, Type: model.DiscoveryReplies, IntervalMinutes: 15},
			wantDue:  true,
		},
		{
			name:     "ran long ago",
			schedule: model.Schedule{AccountID: a.ID, Type: model.DiscoverySearch, IntervalMinutes: 15, LastRunAt: &past},
			wantDue:  true,
		},
		{
			name:     "ran recently",
			schedule: model.Schedule{AccountID: b.ID, Type: model.DiscoveryReplies, IntervalMinutes: 15, LastRunAt: &recent},
			wantDue:  false,
		},
	}

	for i := range schedules {
		if err := s.UpsertSchedule(ctx, &schedules[i].schedule); err != nil {
			t.Fatalf("upsert %s: %v", schedules[i].name, err)
		}
	}

	got, err := s.ListDueSchedules(ctx)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}

	dueKey := func(sc model.Schedule) string { return sc.AccountID + "/" + string(sc.Type) }
	gotKeys := map[string]bool{}
	for _, sc := range got {
		gotKeys[dueKey(sc)] = true
	}
	for _, tt := range schedules {
		if gotKeys[dueKey(tt.schedule)] != tt.wantDue {
			t.Errorf("%s: due = %v, want %v", tt.name, gotKeys[dueKey(tt.schedule)], tt.wantDue)
		}
	}
}

func TestUpsertAuthorKeepsID(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	first := model.Author{
		Platform:       "x",
		PlatformUserID: "u1",
		Username:       "gopher",
		DisplayName:    "Gopher",
		Followers:      100,
	}
	if err := s.UpsertAuthor(ctx, &first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated ID")
	}

	second := model.Author{
		Platform:       "x",
		PlatformUserID: "u1",
		Username:       "gopher2",
		DisplayName:    "Gopher Two",
		Followers:      250,
	}
	if err := s.UpsertAuthor(ctx, &second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("ID changed on upsert: %s vs %s", second.ID, first.ID)
	}

	got, err := s.GetAuthor(ctx, "x", "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := second
	if diff := cmp.Diff(&want, got, ignoreAuthorTS); diff != "" {
		t.Errorf("GetAuthor mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.GetAuthor(ctx, "x", "missing"); !model.IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestOpportunityCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	a := seedAccount(t, s)

	expires := mustTime(t, "2025-06-01T16:00:00Z")
	o := seedOpportunity(t, s, a.ID, "post1", model.OpportunityPending, expires)
	if o.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := s.GetOpportunity(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(o, got); diff != "" {
		t.Errorf("GetOpportunity mismatch (-want +got):\n%s", diff)
	}

	exists, err := s.OpportunityExists(ctx, a.ID, "post1")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Error("expected opportunity to exist")
	}
	exists, err = s.OpportunityExists(ctx, a.ID, "post2")
	if err != nil {
		t.Fatalf("exists other: %v", err)
	}
	if exists {
		t.Error("expected post2 to not exist")
	}

	if _, err := s.GetOpportunity(ctx, "missing"); !model.IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestListPendingOpportunities(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	a := seedAccount(t, s)

	now := mustTime(t, "2025-06-01T12:00:00Z")
	future := now.Add(2 * time.Hour)

	seedOpportunity(t, s, a.ID, "live1", model.OpportunityPending, future)
	seedOpportunity(t, s, a.ID, "live2", model.OpportunityPending, future)
	seedOpportunity(t, s, a.ID, "stale", model.OpportunityPending, now.Add(-time.Minute))
	seedOpportunity(t, s, a.ID, "responded", model.OpportunityResponded, future)

	got, err := s.ListPendingOpportunities(ctx, a.ID, now)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var postIDs []string
	for _, o := range got {
		postIDs = append(postIDs, o.PostID)
	}
	want := []string{"live1", "live2"}
	less := func(a, b string) bool { return a < b }
	if diff := cmp.Diff(want, postIDs, cmpopts.SortSlices(less)); diff != "" {
		t.Errorf("pending post IDs mismatch (-want +got):\n%s", diff)
	}
}

func TestExpirePending(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	a := seedAccount(t, s)

	now := mustTime(t, "2025-06-01T12:00:00Z")
	overdue := seedOpportunity(t, s, a.ID, "overdue", model.OpportunityPending, now.Add(-time.Minute))
	fresh := seedOpportunity(t, s, a.ID, "fresh", model.OpportunityPending, now.Add(time.Hour))
	responded := seedOpportunity(t, s, a.ID, "responded", model.OpportunityResponded, now.Add(-time.Minute))

	n, err := s.ExpirePending(ctx, now)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired %d opportunities, want 1", n)
	}

	tests := []struct {
		name string
		id   string
		want model.OpportunityStatus
	}{
		{name: "overdue pending expires", id: overdue.ID, want: model.OpportunityExpired},
		{name: "fresh pending untouched", id: fresh.ID, want: model.OpportunityPending},
		{name: "responded untouched", id: responded.ID, want: model.OpportunityResponded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetOpportunity(ctx, tt.id)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Status != tt.want {
				t.Errorf("status = %s, want %s", got.Status, tt.want)
			}
		})
	}

	// Second sweep is a no-op.
	n, err = s.ExpirePending(ctx, now)
	if err != nil {
		t.Fatalf("second expire: %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep expired %d, want 0", n)
	}
}

func TestDismissOpportunity(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	a := seedAccount(t, s)

	at := mustTime(t, "2025-06-01T13:00:00Z")
	o := seedOpportunity(t, s, a.ID, "post1", model.OpportunityPending, at.Add(3*time.Hour))

	if err := s.DismissOpportunity(ctx, o.ID, at); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	got, err := s.GetOpportunity(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.OpportunityDismissed {
		t.Errorf("status = %s, want dismissed", got.Status)
	}

	// Dismissed is terminal.
	err = s.DismissOpportunity(ctx, o.ID, at)
	if !model.IsInvalidState(err) {
		t.Fatalf("expected invalid state error, got %v", err)
	}
	if err := s.DismissOpportunity(ctx, "missing", at); !model.IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestCreateResponseAssignsVersions(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	a := seedAccount(t, s)
	o := seedOpportunity(t, s, a.ID, "post1", model.OpportunityPending, mustTime(t, "2025-06-01T16:00:00Z"))

	var versions []int
	for i := 0; i < 3; i++ {
		r := seedDraft(t, s, o.ID, a.ID)
		versions = append(versions, r.Version)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, versions); diff != "" {
		t.Errorf("versions mismatch (-want +got):\n%s", diff)
	}

	list, err := s.ListResponses(ctx, o.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var listed []int
	for _, r := range list {
		listed = append(listed, r.Version)
	}
	if diff := cmp.Diff([]int{3, 2, 1}, listed); diff != "" {
		t.Errorf("list order mismatch (-want +got):\n%s", diff)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	a := seedAccount(t, s)
	o := seedOpportunity(t, s, a.ID, "post1", model.OpportunityPending, mustTime(t, "2025-06-01T16:00:00Z"))

	r := &model.Response{
		OpportunityID: o.ID,
		AccountID:     a.ID,
		Text:          "try trunk-based development",
		Status:        model.ResponseDraft,
		Meta: model.GenerationMeta{
			Keywords:          []string{"ci", "trunk"},
			Topic:             "delivery",
			Domain:            "engineering",
			Question:          "how to ship faster",
			KBChunksUsed:      2,
			AnalysisMS:        120,
			SearchMS:          40,
			GenerateMS:        900,
			VoiceApplied:      true,
			PrinciplesApplied: true,
			Model:             "test-model",
		},
		GeneratedAt: mustTime(t, "2025-06-01T12:30:00Z"),
	}
	if err := s.CreateResponse(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetResponse(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(r, got); diff != "" {
		t.Errorf("GetResponse mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.GetResponse(ctx, "missing"); !model.IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestUpdateResponseText(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	a := seedAccount(t, s)
	o := seedOpportunity(t, s, a.ID, "post1", model.OpportunityPending, mustTime(t, "2025-06-01T16:00:00Z"))
	r := seedDraft(t, s, o.ID, a.ID)

	if err := s.UpdateResponseText(ctx, r.ID, "edited by hand"); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.GetResponse(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Text != "edited by hand" {
		t.Errorf("Text = %q, want edited text", got.Text)
	}

	if err := s.UpdateResponseText(ctx, "missing", "x"); !model.IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestDismissResponse(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	a := seedAccount(t, s)
	o := seedOpportunity(t, s, a.ID, "post1", model.OpportunityPending, mustTime(t, "2025-06-01T16:00:00Z"))
	r := seedDraft(t, s, o.ID, a.ID)

	at := mustTime(t, "2025-06-01T13:00:00Z")
	if err := s.DismissResponse(ctx, r.ID, at); err != nil {
		t.Fatalf("dismiss: %v", err)
	}

	got, err := s.GetResponse(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.ResponseDismissed {
		t.Errorf("status = %s, want dismissed", got.Status)
	}
	if got.DismissedAt == nil || !got.DismissedAt.Equal(at) {
		t.Errorf("DismissedAt = %v, want %v", got.DismissedAt, at)
	}

	// Dismissed is terminal.
	err = s.DismissResponse(ctx, r.ID, at)
	if !model.IsInvalidState(err) {
		t.Fatalf("expected invalid state error, got %v", err)
	}
	err = s.UpdateResponseText(ctx, r.ID, "too late")
	if !model.IsInvalidState(err) {
		t.Fatalf("expected invalid state error on edit, got %v", err)
	}
}

func TestMarkResponsePosted(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	a := seedAccount(t, s)
	o := seedOpportunity(t, s, a.ID, "post1", model.OpportunityPending, mustTime(t, "2025-06-01T16:00:00Z"))
	r := seedDraft(t, s, o.ID, a.ID)

	at := mustTime(t, "2025-06-01T13:00:00Z")
	if err := s.MarkResponsePosted(ctx, r.ID, o.ID, at); err != nil {
		t.Fatalf("mark posted: %v", err)
	}

	gotResp, err := s.GetResponse(ctx, r.ID)
	if err != nil {
		t.Fatalf("get response: %v", err)
	}
	if gotResp.Status != model.ResponsePosted {
		t.Errorf("response status = %s, want posted", gotResp.Status)
	}
	if gotResp.PostedAt == nil || !gotResp.PostedAt.Equal(at) {
		t.Errorf("PostedAt = %v, want %v", gotResp.PostedAt, at)
	}

	gotOpp, err := s.GetOpportunity(ctx, o.ID)
	if err != nil {
		t.Fatalf("get opportunity: %v", err)
	}
	if gotOpp.Status != model.OpportunityResponded {
		t.Errorf("opportunity status = %s, want responded", gotOpp.Status)
	}

	// Posted is terminal.
	err = s.MarkResponsePosted(ctx, r.ID, o.ID, at)
	if !model.IsInvalidState(err) {
		t.Fatalf("expected invalid state error, got %v", err)
	}
}

// Ensure the Storage interface is satisfied.
var _ Storage = (*SQLite)(nil)
