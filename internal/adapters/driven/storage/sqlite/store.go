package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/recsync/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to all
// metadata and canonical-record store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.recsync/data/recsync.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".recsync", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "recsync.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// CursorStore returns a CursorStore interface backed by this store.
func (s *Store) CursorStore() driven.CursorStore {
	return &cursorStore{store: s}
}

// FailedRecordStore returns a FailedRecordStore interface backed by this store.
func (s *Store) FailedRecordStore() driven.FailedRecordStore {
	return &failedRecordStore{store: s}
}

// SyncLogStore returns a SyncLogStore interface backed by this store.
func (s *Store) SyncLogStore() driven.SyncLogStore {
	return &syncLogStore{store: s}
}

// RecordStore returns a RecordStore interface backed by this store.
func (s *Store) RecordStore() driven.RecordStore {
	return &recordStore{store: s}
}

// LockManager returns a LockManager interface backed by this store.
func (s *Store) LockManager() driven.LockManager {
	return newLockManager(s)
}

// SchedulerStore returns a SchedulerStore interface backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Cursor Store ====================

// cursorStore implements driven.CursorStore.
type cursorStore struct {
	store *Store
}

var _ driven.CursorStore = (*cursorStore)(nil)

// Get retrieves the cursor for a (source, entity type) pair.
func (s *cursorStore) Get(ctx context.Context, source domain.SourceName, entityType domain.EntityType) (*domain.SyncCursor, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT source, entity_type, last_sync_timestamp, last_modified_at,
		       last_id, last_page, cursor_value, records_synced, last_sync_at
		FROM sync_cursors WHERE source = ? AND entity_type = ?
	`, string(source), string(entityType))

	return scanCursor(row)
}

// Update merges the supplied fields into the stored cursor, creating the
// row lazily if absent.
func (s *cursorStore) Update(ctx context.Context, source domain.SourceName, entityType domain.EntityType, u domain.CursorUpdate, recordsDelta int64) error {
	cursor, err := s.Get(ctx, source, entityType)
	if err != nil {
		if err != domain.ErrNotFound {
			return err
		}
		cursor = &domain.SyncCursor{Source: source, EntityType: entityType}
	}
	cursor.Apply(u, recordsDelta, time.Now().UTC())

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO sync_cursors
			(source, entity_type, last_sync_timestamp, last_modified_at,
			 last_id, last_page, cursor_value, records_synced, last_sync_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, entity_type) DO UPDATE SET
			last_sync_timestamp = excluded.last_sync_timestamp,
			last_modified_at = excluded.last_modified_at,
			last_id = excluded.last_id,
			last_page = excluded.last_page,
			cursor_value = excluded.cursor_value,
			records_synced = excluded.records_synced,
			last_sync_at = excluded.last_sync_at
	`, string(source), string(entityType),
		formatNullableTime(cursor.LastSyncTimestamp), formatNullableTime(cursor.LastModifiedAt),
		cursor.LastID, cursor.LastPage, cursor.CursorValue,
		cursor.RecordsSynced, formatNullableTime(cursor.LastSyncAt))

	if err != nil {
		return fmt.Errorf("saving cursor: %w", err)
	}
	return nil
}

// Reset nulls all positional fields without deleting the row. A no-op if
// the row does not exist.
func (s *cursorStore) Reset(ctx context.Context, source domain.SourceName, entityType domain.EntityType) error {
	_, err := s.store.db.ExecContext(ctx, `
		UPDATE sync_cursors SET
			last_sync_timestamp = NULL,
			last_modified_at = NULL,
			last_id = '',
			last_page = 0,
			cursor_value = ''
		WHERE source = ? AND entity_type = ?
	`, string(source), string(entityType))
	if err != nil {
		return fmt.Errorf("resetting cursor: %w", err)
	}
	return nil
}

// List returns all cursors.
func (s *cursorStore) List(ctx context.Context) ([]domain.SyncCursor, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT source, entity_type, last_sync_timestamp, last_modified_at,
		       last_id, last_page, cursor_value, records_synced, last_sync_at
		FROM sync_cursors
		ORDER BY source, entity_type
	`)
	if err != nil {
		return nil, fmt.Errorf("querying cursors: %w", err)
	}
	defer rows.Close()

	var cursors []domain.SyncCursor //nolint:prealloc // size unknown from query
	for rows.Next() {
		cursor, err := scanCursorRows(rows)
		if err != nil {
			return nil, err
		}
		cursors = append(cursors, *cursor)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cursors: %w", err)
	}

	return cursors, nil
}

// scanCursor scans a single cursor row.
func scanCursor(row *sql.Row) (*domain.SyncCursor, error) {
	var c domain.SyncCursor
	var source, entityType string
	var lastSyncTimestamp, lastModifiedAt, lastSyncAt sql.NullString

	if err := row.Scan(&source, &entityType, &lastSyncTimestamp, &lastModifiedAt,
		&c.LastID, &c.LastPage, &c.CursorValue, &c.RecordsSynced, &lastSyncAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning cursor: %w", err)
	}

	c.Source = domain.SourceName(source)
	c.EntityType = domain.EntityType(entityType)
	c.LastSyncTimestamp = parseNullableTime(lastSyncTimestamp)
	c.LastModifiedAt = parseNullableTime(lastModifiedAt)
	c.LastSyncAt = parseNullableTime(lastSyncAt)

	return &c, nil
}

// scanCursorRows scans a cursor from *sql.Rows.
func scanCursorRows(rows *sql.Rows) (*domain.SyncCursor, error) {
	var c domain.SyncCursor
	var source, entityType string
	var lastSyncTimestamp, lastModifiedAt, lastSyncAt sql.NullString

	if err := rows.Scan(&source, &entityType, &lastSyncTimestamp, &lastModifiedAt,
		&c.LastID, &c.LastPage, &c.CursorValue, &c.RecordsSynced, &lastSyncAt); err != nil {
		return nil, fmt.Errorf("scanning cursor: %w", err)
	}

	c.Source = domain.SourceName(source)
	c.EntityType = domain.EntityType(entityType)
	c.LastSyncTimestamp = parseNullableTime(lastSyncTimestamp)
	c.LastModifiedAt = parseNullableTime(lastModifiedAt)
	c.LastSyncAt = parseNullableTime(lastSyncAt)

	return &c, nil
}

// ==================== Failed Record Store ====================

// failedRecordStore implements driven.FailedRecordStore.
type failedRecordStore struct {
	store *Store
}

var _ driven.FailedRecordStore = (*failedRecordStore)(nil)

// Enqueue creates a new dead-letter entry and populates its ID.
func (s *failedRecordStore) Enqueue(ctx context.Context, record *domain.FailedSyncRecord) error {
	if record == nil {
		return domain.ErrInvalidInput
	}

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO failed_sync_records
			(source, entity_type, external_id, payload, error_message, error_type,
			 retry_count, max_retries, last_retry_at, next_retry_at,
			 is_resolved, resolved_at, resolution_notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(record.Source), string(record.EntityType), record.ExternalID, record.Payload,
		record.ErrorMessage, record.ErrorType,
		record.RetryCount, record.MaxRetries,
		formatNullableTime(record.LastRetryAt), formatNullableTime(record.NextRetryAt),
		boolToInt(record.IsResolved), formatNullableTime(record.ResolvedAt),
		record.ResolutionNotes, record.CreatedAt.UTC().Format(time.RFC3339))

	if err != nil {
		return fmt.Errorf("enqueueing failed record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting failed record id: %w", err)
	}
	record.ID = id
	return nil
}

// Get retrieves a dead-letter entry by id.
func (s *failedRecordStore) Get(ctx context.Context, id int64) (*domain.FailedSyncRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, source, entity_type, external_id, payload, error_message, error_type,
		       retry_count, max_retries, last_retry_at, next_retry_at,
		       is_resolved, resolved_at, resolution_notes, created_at
		FROM failed_sync_records WHERE id = ?
	`, id)

	return scanFailedRecord(row)
}

// Update persists retry/resolution bookkeeping for an existing entry.
func (s *failedRecordStore) Update(ctx context.Context, record *domain.FailedSyncRecord) error {
	if record == nil || record.ID == 0 {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		UPDATE failed_sync_records SET
			retry_count = ?,
			last_retry_at = ?,
			next_retry_at = ?,
			is_resolved = ?,
			resolved_at = ?,
			resolution_notes = ?
		WHERE id = ?
	`, record.RetryCount,
		formatNullableTime(record.LastRetryAt), formatNullableTime(record.NextRetryAt),
		boolToInt(record.IsResolved), formatNullableTime(record.ResolvedAt),
		record.ResolutionNotes, record.ID)

	if err != nil {
		return fmt.Errorf("updating failed record: %w", err)
	}
	return nil
}

// ListDue returns unresolved entries due for retry, oldest first.
func (s *failedRecordStore) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.FailedSyncRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, source, entity_type, external_id, payload, error_message, error_type,
		       retry_count, max_retries, last_retry_at, next_retry_at,
		       is_resolved, resolved_at, resolution_notes, created_at
		FROM failed_sync_records
		WHERE is_resolved = 0 AND retry_count < max_retries AND next_retry_at <= ?
		ORDER BY next_retry_at
		LIMIT ?
	`, now.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, fmt.Errorf("querying due records: %w", err)
	}
	defer rows.Close()

	return scanFailedRecords(rows)
}

// List returns entries filtered by source and resolution state, newest first.
func (s *failedRecordStore) List(ctx context.Context, source domain.SourceName, includeResolved bool, limit int) ([]domain.FailedSyncRecord, error) {
	query := `
		SELECT id, source, entity_type, external_id, payload, error_message, error_type,
		       retry_count, max_retries, last_retry_at, next_retry_at,
		       is_resolved, resolved_at, resolution_notes, created_at
		FROM failed_sync_records
		WHERE (? = '' OR source = ?)
	`
	if !includeResolved {
		query += " AND is_resolved = 0"
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"

	rows, err := s.store.db.QueryContext(ctx, query, string(source), string(source), limit)
	if err != nil {
		return nil, fmt.Errorf("querying failed records: %w", err)
	}
	defer rows.Close()

	return scanFailedRecords(rows)
}

// Stats returns pending and resolved counts per source.
func (s *failedRecordStore) Stats(ctx context.Context) (map[domain.SourceName]driven.QueueStats, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT source, is_resolved, COUNT(*)
		FROM failed_sync_records
		GROUP BY source, is_resolved
	`)
	if err != nil {
		return nil, fmt.Errorf("querying queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[domain.SourceName]driven.QueueStats)
	for rows.Next() {
		var source string
		var resolved, count int
		if err := rows.Scan(&source, &resolved, &count); err != nil {
			return nil, fmt.Errorf("scanning queue stats: %w", err)
		}
		st := stats[domain.SourceName(source)]
		if resolved == 1 {
			st.Resolved = count
		} else {
			st.Pending = count
		}
		stats[domain.SourceName(source)] = st
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating queue stats: %w", err)
	}

	return stats, nil
}

// scanFailedRecord scans a single dead-letter row.
func scanFailedRecord(row *sql.Row) (*domain.FailedSyncRecord, error) {
	var r domain.FailedSyncRecord
	var source, entityType string
	var lastRetryAt, nextRetryAt, resolvedAt, createdAt sql.NullString
	var resolved int

	if err := row.Scan(&r.ID, &source, &entityType, &r.ExternalID, &r.Payload,
		&r.ErrorMessage, &r.ErrorType, &r.RetryCount, &r.MaxRetries,
		&lastRetryAt, &nextRetryAt, &resolved, &resolvedAt,
		&r.ResolutionNotes, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning failed record: %w", err)
	}

	r.Source = domain.SourceName(source)
	r.EntityType = domain.EntityType(entityType)
	r.LastRetryAt = parseNullableTime(lastRetryAt)
	r.NextRetryAt = parseNullableTime(nextRetryAt)
	r.IsResolved = resolved == 1
	r.ResolvedAt = parseNullableTime(resolvedAt)
	r.CreatedAt = parseNullableTime(createdAt)

	return &r, nil
}

// scanFailedRecords scans multiple dead-letter rows.
func scanFailedRecords(rows *sql.Rows) ([]domain.FailedSyncRecord, error) {
	var records []domain.FailedSyncRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.FailedSyncRecord
		var source, entityType string
		var lastRetryAt, nextRetryAt, resolvedAt, createdAt sql.NullString
		var resolved int

		if err := rows.Scan(&r.ID, &source, &entityType, &r.ExternalID, &r.Payload,
			&r.ErrorMessage, &r.ErrorType, &r.RetryCount, &r.MaxRetries,
			&lastRetryAt, &nextRetryAt, &resolved, &resolvedAt,
			&r.ResolutionNotes, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning failed record: %w", err)
		}

		r.Source = domain.SourceName(source)
		r.EntityType = domain.EntityType(entityType)
		r.LastRetryAt = parseNullableTime(lastRetryAt)
		r.NextRetryAt = parseNullableTime(nextRetryAt)
		r.IsResolved = resolved == 1
		r.ResolvedAt = parseNullableTime(resolvedAt)
		r.CreatedAt = parseNullableTime(createdAt)

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating failed records: %w", err)
	}

	return records, nil
}

// ==================== Sync Log Store ====================

// syncLogStore implements driven.SyncLogStore.
type syncLogStore struct {
	store *Store
}

var _ driven.SyncLogStore = (*syncLogStore)(nil)

// Create inserts a run record in the started state and populates its ID.
func (s *syncLogStore) Create(ctx context.Context, log *domain.SyncLog) error {
	if log == nil {
		return domain.ErrInvalidInput
	}

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_logs
			(source, entity_type, sync_type, status,
			 records_fetched, records_created, records_updated, records_failed,
			 started_at, completed_at, duration_seconds, error_message, error_details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(log.Source), string(log.EntityType), string(log.SyncType), string(log.Status),
		log.RecordsFetched, log.RecordsCreated, log.RecordsUpdated, log.RecordsFailed,
		log.StartedAt.UTC().Format(time.RFC3339), formatNullableTime(log.CompletedAt),
		log.DurationSeconds, log.ErrorMessage, log.ErrorDetails)

	if err != nil {
		return fmt.Errorf("creating sync log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting sync log id: %w", err)
	}
	log.ID = id
	return nil
}

// Update persists counter and lifecycle changes for an existing record.
func (s *syncLogStore) Update(ctx context.Context, log *domain.SyncLog) error {
	if log == nil || log.ID == 0 {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		UPDATE sync_logs SET
			status = ?,
			records_fetched = ?,
			records_created = ?,
			records_updated = ?,
			records_failed = ?,
			completed_at = ?,
			duration_seconds = ?,
			error_message = ?,
			error_details = ?
		WHERE id = ?
	`, string(log.Status),
		log.RecordsFetched, log.RecordsCreated, log.RecordsUpdated, log.RecordsFailed,
		formatNullableTime(log.CompletedAt), log.DurationSeconds,
		log.ErrorMessage, log.ErrorDetails, log.ID)

	if err != nil {
		return fmt.Errorf("updating sync log: %w", err)
	}
	return nil
}

// ListRecent returns the most recent run records, newest first.
func (s *syncLogStore) ListRecent(ctx context.Context, source domain.SourceName, limit int) ([]domain.SyncLog, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, source, entity_type, sync_type, status,
		       records_fetched, records_created, records_updated, records_failed,
		       started_at, completed_at, duration_seconds, error_message, error_details
		FROM sync_logs
		WHERE (? = '' OR source = ?)
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, string(source), string(source), limit)
	if err != nil {
		return nil, fmt.Errorf("querying sync logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.SyncLog //nolint:prealloc // size unknown from query
	for rows.Next() {
		var l domain.SyncLog
		var src, entityType, syncType, status string
		var startedAt, completedAt sql.NullString

		if err := rows.Scan(&l.ID, &src, &entityType, &syncType, &status,
			&l.RecordsFetched, &l.RecordsCreated, &l.RecordsUpdated, &l.RecordsFailed,
			&startedAt, &completedAt, &l.DurationSeconds,
			&l.ErrorMessage, &l.ErrorDetails); err != nil {
			return nil, fmt.Errorf("scanning sync log: %w", err)
		}

		l.Source = domain.SourceName(src)
		l.EntityType = domain.EntityType(entityType)
		l.SyncType = domain.SyncType(syncType)
		l.Status = domain.SyncStatus(status)
		l.StartedAt = parseNullableTime(startedAt)
		l.CompletedAt = parseNullableTime(completedAt)

		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync logs: %w", err)
	}

	return logs, nil
}

// ==================== Helper Functions ====================

// formatNullableTime formats a time to RFC3339 string, or returns nil for zero time.
func formatNullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// parseNullableTime parses a nullable RFC3339 string to time.Time.
// Returns zero time if the string is empty or invalid.
func parseNullableTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return time.Time{} // Return zero time on parse error
	}
	return t
}

// nullString returns nil for empty strings, otherwise the string.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// boolToInt converts a bool to 1 (true) or 0 (false).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
