package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abrezinsky/slotboard/internal/models"
)

// PostgresRepository is the schedule store backed by PostgreSQL. Each slot
// document is locked with SELECT ... FOR UPDATE for the length of a mutation.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// IsPostgresDSN reports whether dsn selects the PostgreSQL backend.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open returns the backend selected by dsn: PostgreSQL for postgres:// URLs,
// SQLite for everything else (a file path or :memory:).
func Open(ctx context.Context, dsn string) (FullRepository, error) {
	if IsPostgresDSN(dsn) {
		return NewPostgres(ctx, dsn)
	}
	return New(dsn)
}

// NewPostgres connects, retrying while the database starts up, and migrates.
func NewPostgres(ctx context.Context, dsn string) (*PostgresRepository, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		if attempt == 5 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	repo := &PostgresRepository{pool: pool}
	if err := repo.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

func (r *PostgresRepository) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS slots (
			id TEXT PRIMARY KEY,
			day_index INTEGER NOT NULL,
			block_id TEXT NOT NULL,
			data JSONB NOT NULL,
			version BIGINT NOT NULL DEFAULT 1,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS slots_backup (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			data JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_preferences (
			id TEXT PRIMARY KEY,
			data JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_slots_order ON slots(day_index, block_id)`,
		`INSERT INTO settings (key, value) VALUES ('board_url', '') ON CONFLICT (key) DO NOTHING`,
	}
	for _, m := range migrations {
		if _, err := r.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close releases the pool.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Ping checks connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// isRetryable reports serialization failures and deadlocks, which the
// transaction is re-run for.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func asConflict(err error) error {
	if isRetryable(err) {
		return ErrConflict
	}
	return err
}

// ==================== Slots ====================

// GetSlot retrieves one slot document
func (r *PostgresRepository) GetSlot(ctx context.Context, id string) (*models.Slot, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM slots WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return decodeSlot(id, data)
}

// ListSlots returns every slot ordered by day then block
func (r *PostgresRepository) ListSlots(ctx context.Context) ([]models.Slot, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, data FROM slots ORDER BY day_index, block_id`)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	slots := []models.Slot{}
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slot, err := decodeSlot(id, data)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *slot)
	}
	return slots, rows.Err()
}

// HasSlots probes for at least one slot
func (r *PostgresRepository) HasSlots(ctx context.Context) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM slots LIMIT 1)`).Scan(&exists); err != nil {
		return false, fmt.Errorf("probe slots: %w", err)
	}
	return exists, nil
}

// UpdateSlot applies fn to a slot while holding its row lock, retrying on
// serialization failures.
func (r *PostgresRepository) UpdateSlot(ctx context.Context, id string, fn SlotMutation) (*models.Slot, error) {
	var updated *models.Slot
	err := withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		slot, err := r.mutateInTx(ctx, tx, id, fn)
		if err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return asConflict(err)
		}
		updated = slot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateSlots applies fn to every listed slot in a single transaction.
func (r *PostgresRepository) UpdateSlots(ctx context.Context, ids []string, fn SlotMutation) error {
	if len(ids) > MaxBatchSize {
		return ErrBatchTooLarge
	}
	if len(ids) == 0 {
		return nil
	}

	return withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		for _, id := range ids {
			if _, err := r.mutateInTx(ctx, tx, id, fn); err != nil {
				return err
			}
		}
		return asConflict(tx.Commit(ctx))
	})
}

func (r *PostgresRepository) mutateInTx(ctx context.Context, tx pgx.Tx, id string, fn SlotMutation) (*models.Slot, error) {
	var data []byte
	err := tx.QueryRow(ctx, `SELECT data FROM slots WHERE id = $1 FOR UPDATE`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, asConflict(err)
	}

	slot, err := decodeSlot(id, data)
	if err != nil {
		return nil, err
	}
	if err := fn(slot); err != nil {
		return nil, err
	}
	slot.ID = id

	encoded, err := encodeSlot(slot)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE slots SET data = $2, version = version + 1, updated_at = now() WHERE id = $1`,
		id, encoded); err != nil {
		return nil, asConflict(err)
	}
	return slot, nil
}

// SeedSlots inserts the whole week in one transaction, only into an empty collection
func (r *PostgresRepository) SeedSlots(ctx context.Context, slots []models.Slot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialise concurrent seeders so the emptiness check holds until commit.
	if _, err := tx.Exec(ctx, `LOCK TABLE slots IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock slots: %w", err)
	}
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM slots LIMIT 1)`).Scan(&exists); err != nil {
		return fmt.Errorf("probe slots: %w", err)
	}
	if exists {
		return ErrNotEmpty
	}

	batch := &pgx.Batch{}
	for i := range slots {
		slot := slots[i].Clone()
		data, err := encodeSlot(&slot)
		if err != nil {
			return err
		}
		batch.Queue(`INSERT INTO slots (id, day_index, block_id, data) VALUES ($1, $2, $3, $4)`,
			slot.ID, slot.DayIndex, slot.BlockID, data)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed slots: %w", err)
	}
	return tx.Commit(ctx)
}

// ==================== Backups ====================

// CreateBackup stores a snapshot under a new key. The creation time is assigned here.
func (r *PostgresRepository) CreateBackup(ctx context.Context, snapshot *models.BackupSnapshot) error {
	data, err := encodeBackup(snapshot)
	if err != nil {
		return err
	}
	var createdAt time.Time
	err = r.pool.QueryRow(ctx,
		`INSERT INTO slots_backup (id, data) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING RETURNING created_at`,
		snapshot.ID, data).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert backup: %w", err)
	}
	snapshot.CreatedAt = createdAt.UTC()
	return nil
}

// GetBackup retrieves a snapshot with all of its slots
func (r *PostgresRepository) GetBackup(ctx context.Context, id string) (*models.BackupSnapshot, error) {
	var createdAt time.Time
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT created_at, data FROM slots_backup WHERE id = $1`, id).Scan(&createdAt, &data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get backup: %w", err)
	}
	slots, err := decodeBackup(data)
	if err != nil {
		return nil, fmt.Errorf("decode backup %s: %w", id, err)
	}
	return &models.BackupSnapshot{ID: id, CreatedAt: createdAt.UTC(), Slots: slots}, nil
}

// ListBackups returns snapshot summaries, newest first
func (r *PostgresRepository) ListBackups(ctx context.Context) ([]models.BackupSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, created_at, jsonb_array_length(data->'slots') FROM slots_backup ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	summaries := []models.BackupSummary{}
	for rows.Next() {
		var s models.BackupSummary
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.SlotCount); err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		s.CreatedAt = s.CreatedAt.UTC()
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// ==================== Preferences ====================

// GetPreferences retrieves a member's preferences
func (r *PostgresRepository) GetPreferences(ctx context.Context, uid string) (*models.UserPreferences, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM user_preferences WHERE id = $1`, uid).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	var prefs models.UserPreferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("decode preferences %s: %w", uid, err)
	}
	prefs.UID = uid
	return &prefs, nil
}

// SavePreferences creates or replaces a member's preferences
func (r *PostgresRepository) SavePreferences(ctx context.Context, prefs *models.UserPreferences) error {
	prefs.UpdatedAt = timestamp()
	if prefs.SelectedSports == nil {
		prefs.SelectedSports = []string{}
	}
	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO user_preferences (id, data, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		prefs.UID, data)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// ==================== Settings ====================

// GetSetting retrieves a setting value
func (r *PostgresRepository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// SetSetting upserts a setting value
func (r *PostgresRepository) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO settings (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// ListSettings returns every setting
func (r *PostgresRepository) ListSettings(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// ==================== Archive ====================

// ListCollections discovers every base table in the current schema
func (r *PostgresRepository) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		 ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ExportCollection returns every row of a discovered collection as a document
func (r *PostgresRepository) ExportCollection(ctx context.Context, name string) ([]map[string]any, error) {
	names, err := r.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	if !contains(names, name) {
		return nil, ErrUnknownCollection
	}

	rows, err := r.pool.Query(ctx, `SELECT * FROM `+pgx.Identifier{name}.Sanitize())
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", name, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	docs := []map[string]any{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", name, err)
		}
		docs = append(docs, exportRow(columns, values))
	}
	return docs, rows.Err()
}
