package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/updraft/internal/build"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore creates a new SQLite-based metadata store.
// Use ":memory:" for in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// The lock row is updated with conditional single-statement writes; a second
	// connection would only add lock contention inside the driver.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		project_key TEXT NOT NULL,
		status TEXT NOT NULL,
		platform TEXT NOT NULL,
		runtime_version TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		completed_at INTEGER,
		error TEXT NOT NULL DEFAULT '',
		source_config BLOB NOT NULL,
		manifest BLOB,
		asset_list BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_builds_project ON builds(project_key);
	CREATE INDEX IF NOT EXISTS idx_builds_created ON builds(created_at);
	CREATE TABLE IF NOT EXISTS build_lock (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		held INTEGER NOT NULL DEFAULT 0,
		build_id TEXT,
		acquired_at INTEGER
	);
	INSERT OR IGNORE INTO build_lock (id, held) VALUES (1, 0);
	`
	_, err := s.db.Exec(schema)
	return err
}

// PutBuild inserts or replaces a build record.
func (s *SQLiteStore) PutBuild(ctx context.Context, rec *build.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sourceJSON, err := json.Marshal(rec.Source)
	if err != nil {
		return fmt.Errorf("marshal source config: %w", err)
	}
	assetsJSON, err := marshalAssets(rec.Assets)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO builds
			(id, project_key, status, platform, runtime_version, created_at, updated_at, completed_at, error, source_config, manifest, asset_list)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ProjectKey, string(rec.Status), string(rec.Platform), rec.RuntimeVersion,
		rec.CreatedAt.UnixMilli(), rec.UpdatedAt.UnixMilli(), unixMilliOrNil(rec.CompletedAt),
		rec.Error, sourceJSON, nilIfEmpty(rec.Manifest), assetsJSON,
	)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	return nil
}

// GetBuild retrieves a build record by id.
func (s *SQLiteStore) GetBuild(ctx context.Context, id string) (*build.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getBuild(ctx, s.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) getBuild(ctx context.Context, q queryer, id string) (*build.Record, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, project_key, status, platform, runtime_version, created_at, updated_at, completed_at, error, source_config, manifest, asset_list
		FROM builds WHERE id = ?`, id)
	rec, err := scanBuild(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("query build: %w", err)
	}
	return rec, nil
}

// ListBuilds returns records ordered newest-created-first.
func (s *SQLiteStore) ListBuilds(ctx context.Context, projectKey string) ([]*build.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		SELECT id, project_key, status, platform, runtime_version, created_at, updated_at, completed_at, error, source_config, manifest, asset_list
		FROM builds`
	args := []any{}
	if projectKey != "" {
		query += " WHERE project_key = ?"
		args = append(args, projectKey)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	var records []*build.Record
	for rows.Next() {
		rec, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}

// AdvanceStatus moves a record forward to a later non-terminal phase.
func (s *SQLiteStore) AdvanceStatus(ctx context.Context, id string, status build.Status) (bool, error) {
	if status.IsTerminal() {
		return false, fmt.Errorf("terminal status %q requires ResolveBuild", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := s.getBuild(ctx, tx, id)
	if err != nil {
		return false, err
	}
	if !rec.Status.CanTransition(status) {
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE builds SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UnixMilli(), id)
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// ResolveBuild applies a terminal resolution and releases the lock held for
// this build as one transaction. Exactly one caller wins for a given build id;
// replays and the losing side of the webhook/timeout race see (false, nil).
func (s *SQLiteStore) ResolveBuild(ctx context.Context, id string, res Resolution) (bool, error) {
	if !res.Status.IsTerminal() {
		return false, fmt.Errorf("non-terminal status %q in resolution", res.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	assetsJSON, err := marshalAssets(res.Assets)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	completedAt := res.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE builds
		SET status = ?, error = ?, manifest = ?, asset_list = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status NOT IN ('success', 'failed')`,
		string(res.Status), res.Error, nilIfEmpty(res.Manifest), assetsJSON,
		completedAt.UnixMilli(), completedAt.UnixMilli(), id)
	if err != nil {
		return false, fmt.Errorf("resolve build: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish unknown build from an already-terminal one.
		var one int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM builds WHERE id = ?", id).Scan(&one)
		if err == sql.ErrNoRows {
			return false, ErrNotFound{ID: id}
		}
		if err != nil {
			return false, fmt.Errorf("check build: %w", err)
		}
		return false, nil
	}

	// Release only a lock held for this build; an unrelated holder stays put.
	_, err = tx.ExecContext(ctx,
		"UPDATE build_lock SET held = 0, build_id = NULL, acquired_at = NULL WHERE id = 1 AND held = 1 AND build_id = ?",
		id)
	if err != nil {
		return false, fmt.Errorf("release lock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// TryAcquireLock atomically acquires the build lock via a conditional update,
// never a read-then-write pair.
func (s *SQLiteStore) TryAcquireLock(ctx context.Context, buildID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"UPDATE build_lock SET held = 1, build_id = ?, acquired_at = ? WHERE id = 1 AND held = 0",
		buildID, time.Now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// ReleaseLock releases the build lock unconditionally. Safe no-op when not held.
func (s *SQLiteStore) ReleaseLock(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE build_lock SET held = 0, build_id = NULL, acquired_at = NULL WHERE id = 1 AND held = 1")
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// LockHolder reports the current lock state.
func (s *SQLiteStore) LockHolder(ctx context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var held int
	var buildID sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT held, build_id FROM build_lock WHERE id = 1").Scan(&held, &buildID)
	if err != nil {
		return "", false, fmt.Errorf("query lock: %w", err)
	}
	return buildID.String, held == 1, nil
}

// DeleteBuild removes a build record.
func (s *SQLiteStore) DeleteBuild(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM builds WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete build: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBuild(row scannable) (*build.Record, error) {
	var rec build.Record
	var status, platform string
	var createdAt, updatedAt int64
	var completedAt sql.NullInt64
	var sourceJSON, manifestJSON, assetsJSON []byte

	err := row.Scan(&rec.ID, &rec.ProjectKey, &status, &platform, &rec.RuntimeVersion,
		&createdAt, &updatedAt, &completedAt, &rec.Error, &sourceJSON, &manifestJSON, &assetsJSON)
	if err != nil {
		return nil, err
	}

	rec.Status = build.Status(status)
	rec.Platform = build.Platform(platform)
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64).UTC()
		rec.CompletedAt = &t
	}
	if err := json.Unmarshal(sourceJSON, &rec.Source); err != nil {
		return nil, fmt.Errorf("unmarshal source config: %w", err)
	}
	if len(manifestJSON) > 0 {
		rec.Manifest = json.RawMessage(manifestJSON)
	}
	if len(assetsJSON) > 0 {
		if err := json.Unmarshal(assetsJSON, &rec.Assets); err != nil {
			return nil, fmt.Errorf("unmarshal asset list: %w", err)
		}
	}
	return &rec, nil
}

func marshalAssets(assets []build.Asset) ([]byte, error) {
	if assets == nil {
		return nil, nil
	}
	b, err := json.Marshal(assets)
	if err != nil {
		return nil, fmt.Errorf("marshal asset list: %w", err)
	}
	return b, nil
}

func unixMilliOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func nilIfEmpty(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
