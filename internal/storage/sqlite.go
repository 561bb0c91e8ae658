package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"replyscout/internal/model"
	"replyscout/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateAccount inserts a new account, generating its ID when empty.
func (s *SQLite) CreateAccount(ctx context.Context, a *model.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC().Truncate(time.Second)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, platform, handle, last_error, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Platform, a.Handle, a.LastError, formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetAccount returns a single account by its ID.
func (s *SQLite) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, platform, handle, last_error, created_at FROM accounts WHERE id = ?`, id,
	).Scan(&a.ID, &a.Platform, &a.Handle, &a.LastError, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: "account", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.CreatedAt = parseTime(created)
	return &a, nil
}

// SetAccountError records or clears the account's last discovery error.
func (s *SQLite) SetAccountError(ctx context.Context, id, msg string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE accounts SET last_error = ? WHERE id = ?`, msg, id)
	if err != nil {
		return fmt.Errorf("set account error: %w", err)
	}
	return nil
}

// CreateProfile inserts a new profile, generating its ID when empty.
func (s *SQLite) CreateProfile(ctx context.Context, p *model.Profile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	principles, err := marshalStrings(p.Principles)
	if err != nil {
		return err
	}
	interests, err := marshalStrings(p.Interests)
	if err != nil {
		return err
	}
	keywords, err := marshalStrings(p.Keywords)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, account_id, voice, principles, interests, keywords)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.AccountID, p.Voice, principles, interests, keywords,
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// GetProfile returns a single profile by its ID.
func (s *SQLite) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, voice, principles, interests, keywords FROM profiles WHERE id = ?`, id,
	)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: "profile", ID: id}
	}
	return p, err
}

// GetProfileByAccount returns the profile configured for an account.
func (s *SQLite) GetProfileByAccount(ctx context.Context, accountID string) (*model.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, voice, principles, interests, keywords FROM profiles WHERE account_id = ?`, accountID,
	)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: "profile", ID: "account " + accountID}
	}
	return p, err
}

func scanProfile(row scannable) (*model.Profile, error) {
	var p model.Profile
	var principles, interests, keywords string
	err := row.Scan(&p.ID, &p.AccountID, &p.Voice, &principles, &interests, &keywords)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	if p.Principles, err = unmarshalStrings(principles); err != nil {
		return nil, err
	}
	if p.Interests, err = unmarshalStrings(interests); err != nil {
		return nil, err
	}
	if p.Keywords, err = unmarshalStrings(keywords); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertSchedule creates or replaces a discovery schedule entry.
func (s *SQLite) UpsertSchedule(ctx context.Context, sc *model.Schedule) error {
	var lastRun *string
	if sc.LastRunAt != nil {
		v := formatTime(*sc.LastRunAt)
		lastRun = &v
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules (account_id, type, interval_minutes, last_run_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(account_id, type) DO UPDATE SET
		   interval_minutes = excluded.interval_minutes,
		   last_run_at = excluded.last_run_at`,
		sc.AccountID, string(sc.Type), sc.IntervalMinutes, lastRun,
	)
	if err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}
	return nil
}

// GetSchedule returns the schedule entry for an account and discovery type.
func (s *SQLite) GetSchedule(ctx context.Context, accountID string, dt model.DiscoveryType) (*model.Schedule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT account_id, type, interval_minutes, last_run_at
		 FROM schedules WHERE account_id = ? AND type = ?`, accountID, string(dt),
	)
	sc, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: "schedule", ID: accountID + "/" + string(dt)}
	}
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// ListDueSchedules returns every schedule whose interval has elapsed since
// its last run, including ones that have never run.
func (s *SQLite) ListDueSchedules(ctx context.Context) ([]model.Schedule, error) {
	now := time.Now().UTC().Format(timeLayout)
	rows, err := s.db.QueryContext(ctx,
		`SELECT account_id, type, interval_minutes, last_run_at
		 FROM schedules
		 WHERE last_run_at IS NULL
		    OR datetime(last_run_at, '+' || interval_minutes || ' minutes') <= datetime(?)`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("query due schedules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var due []model.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, *sc)
	}
	return due, rows.Err()
}

// TouchSchedule records a successful discovery run.
func (s *SQLite) TouchSchedule(ctx context.Context, accountID string, dt model.DiscoveryType, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET last_run_at = ? WHERE account_id = ? AND type = ?`,
		formatTime(at), accountID, string(dt),
	)
	if err != nil {
		return fmt.Errorf("touch schedule: %w", err)
	}
	return nil
}

// UpsertAuthor inserts or refreshes an author keyed by
// (Platform, PlatformUserID) and populates its ID.
func (s *SQLite) UpsertAuthor(ctx context.Context, a *model.Author) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO authors (id, platform, platform_user_id, username, display_name, followers, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(platform, platform_user_id) DO UPDATE SET
		   username = excluded.username,
		   display_name = excluded.display_name,
		   followers = excluded.followers,
		   updated_at = excluded.updated_at`,
		a.ID, a.Platform, a.PlatformUserID, a.Username, a.DisplayName, a.Followers, formatTime(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert author: %w", err)
	}
	// On conflict the stored row keeps its original ID; read it back.
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM authors WHERE platform = ? AND platform_user_id = ?`,
		a.Platform, a.PlatformUserID,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("read author id: %w", err)
	}
	return nil
}

// GetAuthor returns an author by its platform identity.
func (s *SQLite) GetAuthor(ctx context.Context, platform, platformUserID string) (*model.Author, error) {
	var a model.Author
	var updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, platform, platform_user_id, username, display_name, followers, updated_at
		 FROM authors WHERE platform = ? AND platform_user_id = ?`, platform, platformUserID,
	).Scan(&a.ID, &a.Platform, &a.PlatformUserID, &a.Username, &a.DisplayName, &a.Followers, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: "author", ID: platform + "/" + platformUserID}
	}
	if err != nil {
		return nil, fmt.Errorf("scan author: %w", err)
	}
	a.UpdatedAt = parseTime(updated)
	return &a, nil
}

// CreateOpportunity inserts a new opportunity, generating its ID when empty.
func (s *SQLite) CreateOpportunity(ctx context.Context, o *model.Opportunity) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO opportunities (
		   id, account_id, platform, post_id, post_url, post_text, post_created_at,
		   author_id, likes, reposts, replies,
		   score_recency, score_impact, score_total,
		   discovery_type, status, discovered_at, expires_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.AccountID, o.Platform, o.PostID, o.PostURL, o.PostText, formatTime(o.PostCreatedAt),
		o.AuthorID, o.Likes, o.Reposts, o.Replies,
		o.Scoring.Recency, o.Scoring.Impact, o.Scoring.Total,
		string(o.DiscoveryType), string(o.Status), formatTime(o.DiscoveredAt), formatTime(o.ExpiresAt), formatTime(o.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}
	return nil
}

const opportunityColumns = `id, account_id, platform, post_id, post_url, post_text, post_created_at,
	author_id, likes, reposts, replies, score_recency, score_impact, score_total,
	discovery_type, status, discovered_at, expires_at, updated_at`

// GetOpportunity returns a single opportunity by its ID.
func (s *SQLite) GetOpportunity(ctx context.Context, id string) (*model.Opportunity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+opportunityColumns+` FROM opportunities WHERE id = ?`, id,
	)
	o, err := scanOpportunity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: "opportunity", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// OpportunityExists checks the persisted dedup key (accountID, postID).
func (s *SQLite) OpportunityExists(ctx context.Context, accountID, postID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM opportunities WHERE account_id = ? AND post_id = ?`,
		accountID, postID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check opportunity: %w", err)
	}
	return count > 0, nil
}

// ListPendingOpportunities returns pending, unexpired opportunities for an
// account, highest total score first.
func (s *SQLite) ListPendingOpportunities(ctx context.Context, accountID string, now time.Time) ([]model.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+opportunityColumns+`
		 FROM opportunities
		 WHERE account_id = ? AND status = ? AND expires_at > ?
		 ORDER BY score_total DESC, discovered_at DESC`,
		accountID, string(model.OpportunityPending), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("query pending opportunities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// DismissOpportunity moves a pending opportunity to dismissed.
func (s *SQLite) DismissOpportunity(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE opportunities SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(model.OpportunityDismissed), formatTime(at), id, string(model.OpportunityPending),
	)
	if err != nil {
		return fmt.Errorf("dismiss opportunity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return s.opportunityConflict(ctx, id)
	}
	return nil
}

// opportunityConflict reports why a pending-only mutation matched no rows.
func (s *SQLite) opportunityConflict(ctx context.Context, id string) error {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM opportunities WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.NotFoundError{Kind: "opportunity", ID: id}
	}
	if err != nil {
		return fmt.Errorf("read opportunity status: %w", err)
	}
	return &model.InvalidStateError{
		Kind:     "opportunity",
		ID:       id,
		Current:  status,
		Expected: string(model.OpportunityPending),
	}
}

// ExpirePending transitions every pending opportunity past its TTL to
// expired. Safe to run concurrently with discovery and idempotent.
func (s *SQLite) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE opportunities SET status = ?, updated_at = ?
		 WHERE status = ? AND expires_at <= ?`,
		string(model.OpportunityExpired), formatTime(now),
		string(model.OpportunityPending), formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("expire opportunities: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// CreateResponse inserts a draft and assigns the next version for its
// opportunity inside a single transaction, populating r.ID and r.Version.
func (s *SQLite) CreateResponse(ctx context.Context, r *model.Response) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	keywords, err := marshalStrings(r.Meta.Keywords)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM responses WHERE opportunity_id = ?`,
		r.OpportunityID,
	).Scan(&r.Version); err != nil {
		return fmt.Errorf("next version: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO responses (
		   id, opportunity_id, account_id, text, status, version,
		   keywords, topic, domain, question, kb_chunks_used,
		   analysis_ms, search_ms, generate_ms,
		   voice_applied, principles_applied, model,
		   generated_at, dismissed_at, posted_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL)`,
		r.ID, r.OpportunityID, r.AccountID, r.Text, string(r.Status), r.Version,
		keywords, r.Meta.Topic, r.Meta.Domain, r.Meta.Question, r.Meta.KBChunksUsed,
		r.Meta.AnalysisMS, r.Meta.SearchMS, r.Meta.GenerateMS,
		boolToInt(r.Meta.VoiceApplied), boolToInt(r.Meta.PrinciplesApplied), r.Meta.Model,
		formatTime(r.GeneratedAt),
	)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return tx.Commit()
}

const responseColumns = `id, opportunity_id, account_id, text, status, version,
	keywords, topic, domain, question, kb_chunks_used,
	analysis_ms, search_ms, generate_ms, voice_applied, principles_applied, model,
	generated_at, dismissed_at, posted_at`

// GetResponse returns a single response by its ID.
func (s *SQLite) GetResponse(ctx context.Context, id string) (*model.Response, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+responseColumns+` FROM responses WHERE id = ?`, id,
	)
	r, err := scanResponse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: "response", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListResponses returns every version for an opportunity, newest first.
func (s *SQLite) ListResponses(ctx context.Context, opportunityID string) ([]model.Response, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+responseColumns+` FROM responses WHERE opportunity_id = ? ORDER BY version DESC`,
		opportunityID,
	)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UpdateResponseText rewrites the draft text of a response.
func (s *SQLite) UpdateResponseText(ctx context.Context, id, text string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE responses SET text = ? WHERE id = ? AND status = ?`,
		text, id, string(model.ResponseDraft),
	)
	if err != nil {
		return fmt.Errorf("update response text: %w", err)
	}
	return s.requireDraftChanged(ctx, res, id)
}

// DismissResponse moves a draft to dismissed. The record is retained.
func (s *SQLite) DismissResponse(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE responses SET status = ?, dismissed_at = ? WHERE id = ? AND status = ?`,
		string(model.ResponseDismissed), formatTime(at), id, string(model.ResponseDraft),
	)
	if err != nil {
		return fmt.Errorf("dismiss response: %w", err)
	}
	return s.requireDraftChanged(ctx, res, id)
}

// MarkResponsePosted moves a draft to posted and advances the parent
// opportunity to responded in the same transaction.
func (s *SQLite) MarkResponsePosted(ctx context.Context, responseID, opportunityID string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE responses SET status = ?, posted_at = ? WHERE id = ? AND status = ?`,
		string(model.ResponsePosted), formatTime(at), responseID, string(model.ResponseDraft),
	)
	if err != nil {
		return fmt.Errorf("mark response posted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return s.draftConflict(ctx, responseID)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE opportunities SET status = ?, updated_at = ? WHERE id = ?`,
		string(model.OpportunityResponded), formatTime(at), opportunityID,
	); err != nil {
		return fmt.Errorf("mark opportunity responded: %w", err)
	}
	return tx.Commit()
}

// requireDraftChanged turns a zero-row guarded update into a typed error.
func (s *SQLite) requireDraftChanged(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return s.draftConflict(ctx, id)
	}
	return nil
}

// draftConflict reports why a draft-only mutation matched no rows.
func (s *SQLite) draftConflict(ctx context.Context, id string) error {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM responses WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.NotFoundError{Kind: "response", ID: id}
	}
	if err != nil {
		return fmt.Errorf("read response status: %w", err)
	}
	return &model.InvalidStateError{
		Kind:     "response",
		ID:       id,
		Current:  status,
		Expected: string(model.ResponseDraft),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalStrings(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal strings: %w", err)
	}
	return string(b), nil
}

func unmarshalStrings(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("unmarshal strings: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSchedule(row scannable) (*model.Schedule, error) {
	var sc model.Schedule
	var typ string
	var lastRun sql.NullString
	if err := row.Scan(&sc.AccountID, &typ, &sc.IntervalMinutes, &lastRun); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	sc.Type = model.DiscoveryType(typ)
	if lastRun.Valid {
		t := parseTime(lastRun.String)
		sc.LastRunAt = &t
	}
	return &sc, nil
}

func scanOpportunity(row scannable) (*model.Opportunity, error) {
	var o model.Opportunity
	var postCreated, dt, status, discovered, expires, updated string
	err := row.Scan(
		&o.ID, &o.AccountID, &o.Platform, &o.PostID, &o.PostURL, &o.PostText, &postCreated,
		&o.AuthorID, &o.Likes, &o.Reposts, &o.Replies,
		&o.Scoring.Recency, &o.Scoring.Impact, &o.Scoring.Total,
		&dt, &status, &discovered, &expires, &updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan opportunity: %w", err)
	}
	o.PostCreatedAt = parseTime(postCreated)
	o.DiscoveryType = model.DiscoveryType(dt)
	o.Status = model.OpportunityStatus(status)
	o.DiscoveredAt = parseTime(discovered)
	o.ExpiresAt = parseTime(expires)
	o.UpdatedAt = parseTime(updated)
	return &o, nil
}

func scanResponse(row scannable) (*model.Response, error) {
	var r model.Response
	var status, keywords, generated string
	var dismissed, posted sql.NullString
	var voice, principles int
	err := row.Scan(
		&r.ID, &r.OpportunityID, &r.AccountID, &r.Text, &status, &r.Version,
		&keywords, &r.Meta.Topic, &r.Meta.Domain, &r.Meta.Question, &r.Meta.KBChunksUsed,
		&r.Meta.AnalysisMS, &r.Meta.SearchMS, &r.Meta.GenerateMS,
		&voice, &principles, &r.Meta.Model,
		&generated, &dismissed, &posted,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan response: %w", err)
	}
	r.Status = model.ResponseStatus(status)
	kw, err := unmarshalStrings(keywords)
	if err != nil {
		return nil, err
	}
	r.Meta.Keywords = kw
	r.Meta.VoiceApplied = voice == 1
	r.Meta.PrinciplesApplied = principles == 1
	r.GeneratedAt = parseTime(generated)
	if dismissed.Valid {
		t := parseTime(dismissed.String)
		r.DismissedAt = &t
	}
	if posted.Valid {
		t := parseTime(posted.String)
		r.PostedAt = &t
	}
	return &r, nil
}
