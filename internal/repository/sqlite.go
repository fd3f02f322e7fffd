package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/abrezinsky/slotboard/internal/models"
)

// Repository is the SQLite schedule store.
type Repository struct {
	db *sql.DB
}

// New creates a new Repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)

	repo := &Repository{db: db}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate runs database migrations
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS slots (
			id TEXT PRIMARY KEY,
			day_index INTEGER NOT NULL,
			block_id TEXT NOT NULL,
			data TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS slots_backup (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			data TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_preferences (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_slots_order ON slots(day_index, block_id)`,
		`CREATE INDEX IF NOT EXISTS idx_backup_created ON slots_backup(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return err
		}
	}

	// Note: board_url is intentionally left empty here - app.go fills it
	// with the detected LAN address on startup
	defaultSettings := map[string]string{
		"board_url": "",
	}

	for key, value := range defaultSettings {
		_, err := r.db.Exec(`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, key, value)
		if err != nil {
			return err
		}
	}

	return nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// ==================== Slot Methods ====================

// GetSlot retrieves one slot document
func (r *Repository) GetSlot(ctx context.Context, id string) (*models.Slot, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM slots WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeSlot(id, []byte(data))
}

// ListSlots returns every slot ordered by day then block
func (r *Repository) ListSlots(ctx context.Context) ([]models.Slot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, data FROM slots ORDER BY day_index, block_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := []models.Slot{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		slot, err := decodeSlot(id, []byte(data))
		if err != nil {
			return nil, err
		}
		slots = append(slots, *slot)
	}
	return slots, rows.Err()
}

// HasSlots probes for at least one slot
func (r *Repository) HasSlots(ctx context.Context) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM slots LIMIT 1`).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateSlot runs fn against a fresh copy of the slot and writes the result
// only if no one else wrote the slot in between.
func (r *Repository) UpdateSlot(ctx context.Context, id string, fn SlotMutation) (*models.Slot, error) {
	var updated *models.Slot
	err := withRetry(ctx, func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		slot, err := r.mutateInTx(ctx, tx, id, fn)
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
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
func (r *Repository) UpdateSlots(ctx context.Context, ids []string, fn SlotMutation) error {
	if len(ids) > MaxBatchSize {
		return ErrBatchTooLarge
	}
	if len(ids) == 0 {
		return nil
	}

	return withRetry(ctx, func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, id := range ids {
			if _, err := r.mutateInTx(ctx, tx, id, fn); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func (r *Repository) mutateInTx(ctx context.Context, tx *sql.Tx, id string, fn SlotMutation) (*models.Slot, error) {
	var data string
	var version int64
	err := tx.QueryRowContext(ctx, `SELECT data, version FROM slots WHERE id = ?`, id).Scan(&data, &version)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	slot, err := decodeSlot(id, []byte(data))
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
	result, err := tx.ExecContext(ctx,
		`UPDATE slots SET data = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		string(encoded), timestamp(), id, version)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrConflict
	}
	return slot, nil
}

// SeedSlots inserts the whole week in one transaction, only into an empty collection
func (r *Repository) SeedSlots(ctx context.Context, slots []models.Slot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM slots LIMIT 1`).Scan(&one)
	if err == nil {
		return ErrNotEmpty
	}
	if err != sql.ErrNoRows {
		return err
	}

	now := timestamp()
	for i := range slots {
		slot := slots[i].Clone()
		data, err := encodeSlot(&slot)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO slots (id, day_index, block_id, data, version, updated_at) VALUES (?, ?, ?, ?, 1, ?)`,
			slot.ID, slot.DayIndex, slot.BlockID, string(data), now); err != nil {
			return fmt.Errorf("seed slot %s: %w", slot.ID, err)
		}
	}
	return tx.Commit()
}

// ==================== Backup Methods ====================

// CreateBackup stores a snapshot under a new key. The creation time is assigned here.
func (r *Repository) CreateBackup(ctx context.Context, snapshot *models.BackupSnapshot) error {
	data, err := encodeBackup(snapshot)
	if err != nil {
		return err
	}
	createdAt := time.Now().UTC()

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO slots_backup (id, created_at, data) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		snapshot.ID, createdAt.Format(time.RFC3339Nano), string(data))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlreadyExists
	}
	snapshot.CreatedAt = createdAt
	return nil
}

// GetBackup retrieves a snapshot with all of its slots
func (r *Repository) GetBackup(ctx context.Context, id string) (*models.BackupSnapshot, error) {
	var createdAt, data string
	err := r.db.QueryRowContext(ctx, `SELECT created_at, data FROM slots_backup WHERE id = ?`, id).Scan(&createdAt, &data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	slots, err := decodeBackup([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("decode backup %s: %w", id, err)
	}
	created, _ := time.Parse(time.RFC3339Nano, createdAt)
	return &models.BackupSnapshot{ID: id, CreatedAt: created, Slots: slots}, nil
}

// ListBackups returns snapshot summaries, newest first
func (r *Repository) ListBackups(ctx context.Context) ([]models.BackupSummary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, created_at, data FROM slots_backup ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []models.BackupSummary{}
	for rows.Next() {
		var id, createdAt, data string
		if err := rows.Scan(&id, &createdAt, &data); err != nil {
			return nil, err
		}
		slots, err := decodeBackup([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("decode backup %s: %w", id, err)
		}
		created, _ := time.Parse(time.RFC3339Nano, createdAt)
		summaries = append(summaries, models.BackupSummary{ID: id, CreatedAt: created, SlotCount: len(slots)})
	}
	return summaries, rows.Err()
}

// ==================== Preferences Methods ====================

// GetPreferences retrieves a member's preferences
func (r *Repository) GetPreferences(ctx context.Context, uid string) (*models.UserPreferences, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM user_preferences WHERE id = ?`, uid).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var prefs models.UserPreferences
	if err := json.Unmarshal([]byte(data), &prefs); err != nil {
		return nil, fmt.Errorf("decode preferences %s: %w", uid, err)
	}
	prefs.UID = uid
	return &prefs, nil
}

// SavePreferences creates or replaces a member's preferences
func (r *Repository) SavePreferences(ctx context.Context, prefs *models.UserPreferences) error {
	prefs.UpdatedAt = timestamp()
	if prefs.SelectedSports == nil {
		prefs.SelectedSports = []string{}
	}
	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_preferences (id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		prefs.UID, string(data), prefs.UpdatedAt)
	return err
}

// ==================== Settings Methods ====================

// GetSetting retrieves a setting value
func (r *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

// SetSetting updates a setting value
func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	return err
}

// ListSettings returns every setting
func (r *Repository) ListSettings(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// ==================== Archive Methods ====================

// ListCollections discovers every user table
func (r *Repository) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ExportCollection returns every row of a discovered collection as a document
func (r *Repository) ExportCollection(ctx context.Context, name string) ([]map[string]any, error) {
	names, err := r.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	if !contains(names, name) {
		return nil, ErrUnknownCollection
	}

	// Safe to interpolate now that the name matched a discovered table
	rows, err := r.db.QueryContext(ctx, `SELECT * FROM "`+strings.ReplaceAll(name, `"`, `""`)+`"`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	docs := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		docs = append(docs, exportRow(columns, values))
	}
	return docs, rows.Err()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
