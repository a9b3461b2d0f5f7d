package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Profiles ---

const profileColumns = `id, name, publishing_user, timezone, created_at, updated_at`

func (s *PostgresStore) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	return s.getProfile(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
}

func (s *PostgresStore) GetDefaultProfile(ctx context.Context) (*models.Profile, error) {
	return s.getProfile(ctx, `SELECT `+profileColumns+` FROM profiles WHERE name = 'default' LIMIT 1`)
}

func (s *PostgresStore) getProfile(ctx context.Context, query string, args ...any) (*models.Profile, error) {
	var p models.Profile
	err := s.pool.QueryRow(ctx, query, args...).
		Scan(&p.ID, &p.Name, &p.PublishingUser, &p.Timezone, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// --- API Keys ---

const apiKeyColumns = `id, profile_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at`

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	return s.queryAPIKeys(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, profile_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.ProfileID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, profileID uuid.UUID) ([]*models.APIKey, error) {
	return s.queryAPIKeys(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE profile_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, profileID)
}

func (s *PostgresStore) queryAPIKeys(ctx context.Context, query string, args ...any) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.ProfileID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, profileID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND profile_id = $2 AND deleted_at IS NULL`, id, profileID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Content Plans ---

const planColumns = `id, profile_id, platform, name, status, brand_context, version, created_at, updated_at`

const itemColumns = `id, post_date, post_time, content_type, caption, hashtags, media_prompt, media_url, media_urls,
	status, error_message, generation_request_id`

var itemCopyColumns = []string{
	"plan_id", "position", "id", "post_date", "post_time", "content_type", "caption", "hashtags", "media_prompt",
	"media_url", "media_urls", "status", "error_message", "generation_request_id", "updated_at",
}

// CreatePlan inserts the plan and its items in one transaction. A zero plan.ID is assigned.
func (s *PostgresStore) CreatePlan(ctx context.Context, plan *models.ContentPlan) (uuid.UUID, error) {
	if err := validateItems(plan.Items); err != nil {
		return uuid.Nil, err
	}

	id := plan.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	if plan.Status == "" {
		plan.Status = models.PlanStatusDraft
	}
	brand := plan.BrandContext
	if brand == nil {
		brand = map[string]any{}
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO content_plans (id, profile_id, platform, name, status, brand_context, version, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8)`,
			id, plan.ProfileID, plan.Platform, plan.Name, plan.Status, brand, plan.CreatedAt, now)
		if err != nil {
			if isDuplicateKeyError(err) {
				return ErrDuplicateKey
			}
			return fmt.Errorf("insert content plan: %w", err)
		}
		return copyItems(ctx, tx, id, plan.Items, now)
	})
	if err != nil {
		return uuid.Nil, err
	}

	plan.ID = id
	plan.Version = 1
	plan.UpdatedAt = now
	return id, nil
}

func (s *PostgresStore) GetPlan(ctx context.Context, id uuid.UUID) (*models.ContentPlan, error) {
	var p models.ContentPlan
	err := s.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM content_plans WHERE id = $1`, id).
		Scan(&p.ID, &p.ProfileID, &p.Platform, &p.Name, &p.Status, &p.BrandContext, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get content plan: %w", err)
	}

	items, err := s.itemsByPlan(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	p.Items = items[id]
	if p.Items == nil {
		p.Items = []models.ScheduleItem{}
	}
	return &p, nil
}

func (s *PostgresStore) GetItem(ctx context.Context, planID uuid.UUID, itemID string) (*models.ScheduleItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM schedule_items WHERE plan_id = $1 AND id = $2`, planID, itemID)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.missingItem(ctx, s.pool, planID)
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule item: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListPlansByProfile(ctx context.Context, profileID uuid.UUID) ([]*models.ContentPlan, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+planColumns+` FROM content_plans WHERE profile_id = $1 ORDER BY created_at DESC`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list content plans: %w", err)
	}
	defer rows.Close()

	plans := []*models.ContentPlan{}
	var ids []uuid.UUID
	for rows.Next() {
		var p models.ContentPlan
		if err := rows.Scan(&p.ID, &p.ProfileID, &p.Platform, &p.Name, &p.Status, &p.BrandContext,
			&p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan content plan: %w", err)
		}
		plans = append(plans, &p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list content plans: %w", err)
	}
	if len(plans) == 0 {
		return plans, nil
	}

	items, err := s.itemsByPlan(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range plans {
		p.Items = items[p.ID]
		if p.Items == nil {
			p.Items = []models.ScheduleItem{}
		}
	}
	return plans, nil
}

func (s *PostgresStore) itemsByPlan(ctx context.Context, planIDs []uuid.UUID) (map[uuid.UUID][]models.ScheduleItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT plan_id, `+itemColumns+` FROM schedule_items WHERE plan_id = ANY($1) ORDER BY plan_id, position`, planIDs)
	if err != nil {
		return nil, fmt.Errorf("list schedule items: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]models.ScheduleItem, len(planIDs))
	for rows.Next() {
		var planID uuid.UUID
		var it models.ScheduleItem
		if err := rows.Scan(append([]any{&planID}, itemScanTargets(&it)...)...); err != nil {
			return nil, fmt.Errorf("scan schedule item: %w", err)
		}
		out[planID] = append(out[planID], it)
	}
	return out, rows.Err()
}

// UpdateItems replaces the plan's whole ordered item list and returns the new version.
// Every item whose status changed must follow the item transition table.
func (s *PostgresStore) UpdateItems(ctx context.Context, planID uuid.UUID, items []models.ScheduleItem, opts ...PlanUpdateOption) (int, error) {
	params := &planUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}
	if err := validateItems(items); err != nil {
		return 0, err
	}

	var version int
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT version FROM content_plans WHERE id = $1 FOR UPDATE`, planID).Scan(&version)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock content plan: %w", err)
		}
		if params.ExpectedVersion != nil && *params.ExpectedVersion != version {
			return fmt.Errorf("%w: expected %d, current %d", ErrVersionConflict, *params.ExpectedVersion, version)
		}

		current := make(map[string]string)
		rows, err := tx.Query(ctx, `SELECT id, status FROM schedule_items WHERE plan_id = $1`, planID)
		if err != nil {
			return fmt.Errorf("load item statuses: %w", err)
		}
		for rows.Next() {
			var id, status string
			if err := rows.Scan(&id, &status); err != nil {
				rows.Close()
				return fmt.Errorf("scan item status: %w", err)
			}
			current[id] = status
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("load item statuses: %w", err)
		}

		for _, it := range items {
			from, existed := current[it.ID]
			if !existed {
				from = models.ItemStatusDraft
			}
			if from != it.Status && !models.CanTransitionItem(from, it.Status) {
				return fmt.Errorf("%w: item %s %s -> %s", ErrInvalidTransition, it.ID, from, it.Status)
			}
		}

		now := time.Now().UTC()
		if _, err := tx.Exec(ctx, `DELETE FROM schedule_items WHERE plan_id = $1`, planID); err != nil {
			return fmt.Errorf("clear schedule items: %w", err)
		}
		if err := copyItems(ctx, tx, planID, items, now); err != nil {
			return err
		}
		return tx.QueryRow(ctx,
			`UPDATE content_plans SET version = version + 1, updated_at = $2 WHERE id = $1 RETURNING version`,
			planID, now).Scan(&version)
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// UpdateItemStatus moves one item to status under a row lock, leaving the rest
// of the plan untouched, and returns the updated item.
func (s *PostgresStore) UpdateItemStatus(ctx context.Context, planID uuid.UUID, itemID string, status string, opts ...ItemUpdateOption) (*models.ScheduleItem, error) {
	var updated *models.ScheduleItem
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT `+itemColumns+` FROM schedule_items WHERE plan_id = $1 AND id = $2 FOR UPDATE`, planID, itemID)
		item, err := scanItem(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return s.missingItem(ctx, tx, planID)
		}
		if err != nil {
			return fmt.Errorf("lock schedule item: %w", err)
		}

		if !models.CanTransitionItem(item.Status, status) {
			return fmt.Errorf("%w: item %s %s -> %s", ErrInvalidTransition, itemID, item.Status, status)
		}

		if err := ApplyItemUpdate(item, status, opts...); err != nil {
			return err
		}

		now := time.Now().UTC()
		_, err = tx.Exec(ctx,
			`UPDATE schedule_items
			 SET status = $3, media_url = $4, media_urls = $5, error_message = $6, generation_request_id = $7, updated_at = $8
			 WHERE plan_id = $1 AND id = $2`,
			planID, itemID, item.Status, item.MediaURL, nonNil(item.MediaURLs), item.ErrorMessage, item.GenerationRequestID, now)
		if err != nil {
			return fmt.Errorf("update schedule item: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE content_plans SET version = version + 1, updated_at = $2 WHERE id = $1`, planID, now); err != nil {
			return fmt.Errorf("bump plan version: %w", err)
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) UpdatePlanStatus(ctx context.Context, planID uuid.UUID, status string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM content_plans WHERE id = $1 FOR UPDATE`, planID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock content plan: %w", err)
		}

		if !models.CanTransitionPlan(current, status) {
			return fmt.Errorf("%w: plan %s -> %s", ErrInvalidTransition, current, status)
		}

		_, err = tx.Exec(ctx,
			`UPDATE content_plans SET status = $2, version = version + 1, updated_at = NOW() WHERE id = $1`,
			planID, status)
		if err != nil {
			return fmt.Errorf("update plan status: %w", err)
		}
		return nil
	})
}

// DeletePlans removes the profile's plans on the given platforms, or all of
// its plans when platforms is empty. Items go with them.
func (s *PostgresStore) DeletePlans(ctx context.Context, profileID uuid.UUID, platforms []string) (int64, error) {
	if platforms == nil {
		platforms = []string{}
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM content_plans
		 WHERE profile_id = $1 AND (cardinality($2::text[]) = 0 OR platform = ANY($2::text[]))`,
		profileID, platforms)
	if err != nil {
		return 0, fmt.Errorf("delete content plans: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- Calendar ---

func (s *PostgresStore) InsertCalendarEvents(ctx context.Context, events []models.CalendarEvent) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"calendar_events"},
		[]string{"id", "profile_id", "title", "description", "start_time", "end_time",
			"source", "source_id", "category", "color", "created_at"},
		pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
			e := events[i]
			id := e.ID
			if id == uuid.Nil {
				id = uuid.New()
			}
			return []any{id, e.ProfileID, e.Title, e.Description, e.StartTime, e.EndTime,
				e.Source, e.SourceID, e.Category, e.Color, now}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("insert calendar events: %w", err)
	}
	return n, nil
}

// --- Recovery ---

func (s *PostgresStore) FailInFlightTasks(ctx context.Context, reason string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status = 'failed', error_message = $1, updated_at = NOW()
		 WHERE status IN ('queued', 'in_progress')`, reason)
	if err != nil {
		return 0, fmt.Errorf("fail in-flight tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) FailInFlightPreviewJobs(ctx context.Context, reason string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE preview_jobs SET status = 'failed', error_message = $1, completed_at = NOW(), updated_at = NOW()
		 WHERE status NOT IN ('ready', 'failed', 'cancelled')`, reason)
	if err != nil {
		return 0, fmt.Errorf("fail in-flight preview jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FailGeneratingItems fails every generating item on a plan that is not completed,
// clearing its request id, and bumps the version of each touched plan.
func (s *PostgresStore) FailGeneratingItems(ctx context.Context, reason string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`WITH failed AS (
		   UPDATE schedule_items si
		   SET status = 'failed', error_message = $1, generation_request_id = NULL, updated_at = NOW()
		   FROM content_plans p
		   WHERE si.plan_id = p.id AND si.status = 'generating' AND p.status <> 'completed'
		   RETURNING si.plan_id
		 ), bumped AS (
		   UPDATE content_plans SET version = version + 1, updated_at = NOW()
		   WHERE id IN (SELECT DISTINCT plan_id FROM failed)
		 )
		 SELECT COUNT(*) FROM failed`, reason).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("fail generating items: %w", err)
	}
	return n, nil
}

// --- helpers ---

func copyItems(ctx context.Context, tx pgx.Tx, planID uuid.UUID, items []models.ScheduleItem, now time.Time) error {
	if len(items) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{"schedule_items"}, itemCopyColumns,
		pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
			it := items[i]
			return []any{planID, i, it.ID, it.Date, it.Time, it.Type, it.Caption, nonNil(it.Hashtags), it.MediaPrompt,
				it.MediaURL, nonNil(it.MediaURLs), it.Status, it.ErrorMessage, it.GenerationRequestID, now}, nil
		}))
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert schedule items: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func validateItems(items []models.ScheduleItem) error {
	seen := make(map[string]bool, len(items))
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidItem, err)
		}
		if seen[items[i].ID] {
			return fmt.Errorf("%w: schedule item id %q", ErrDuplicateKey, items[i].ID)
		}
		seen[items[i].ID] = true
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// missingItem distinguishes an unknown plan from an unknown item in a known plan.
func (s *PostgresStore) missingItem(ctx context.Context, q querier, planID uuid.UUID) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM content_plans WHERE id = $1)`, planID).Scan(&exists); err != nil {
		return fmt.Errorf("check content plan: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrItemNotFound
}

func itemScanTargets(it *models.ScheduleItem) []any {
	return []any{&it.ID, &it.Date, &it.Time, &it.Type, &it.Caption, &it.Hashtags, &it.MediaPrompt,
		&it.MediaURL, &it.MediaURLs, &it.Status, &it.ErrorMessage, &it.GenerationRequestID}
}

func scanItem(row pgx.Row) (*models.ScheduleItem, error) {
	var it models.ScheduleItem
	if err := row.Scan(itemScanTargets(&it)...); err != nil {
		return nil, err
	}
	return &it, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
