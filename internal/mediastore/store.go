package mediastore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sceneid/internal/config"
	"sceneid/internal/textutil"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store manages canonical media records, the dialogue corpus, and the
// recognition audit log, backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the media database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "media.db"))
}

// OpenPath opens the media database at an explicit path. Used by tests.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database connection for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("media store unavailable")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete the database to rebuild)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

const recordColumns = "id, title, year, tmdb_id, media_type, overview, cast_json, cast_refreshed_at, similar_json, similar_refreshed_at, availability_json, availability_refreshed_at, created_at, updated_at"

// CreateIfAbsent inserts a record keyed by its external identifier. On a
// concurrent duplicate insert the already-stored record is returned rather
// than an error (read-back-on-conflict), so N racing creators converge on one
// row.
func (s *Store) CreateIfAbsent(ctx context.Context, record *MediaRecord) (*MediaRecord, error) {
	if record == nil {
		return nil, errors.New("record is nil")
	}
	if record.TMDBID <= 0 {
		return nil, errors.New("record requires a positive external id")
	}
	title := strings.TrimSpace(record.Title)
	if title == "" {
		return nil, errors.New("record requires a title")
	}
	mediaType := strings.TrimSpace(record.MediaType)
	if mediaType == "" {
		mediaType = "movie"
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO media_records (
            title, title_key, normalized_key, year, tmdb_id, media_type, overview,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (tmdb_id) DO NOTHING`,
		title,
		textutil.CompareKey(title),
		textutil.CompareKey(textutil.NormalizeTitle(title)),
		record.Year,
		record.TMDBID,
		mediaType,
		nullableString(record.Overview),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert media record: %w", err)
	}
	stored, err := s.GetByTMDBID(ctx, record.TMDBID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("media record %d missing after insert", record.TMDBID)
	}
	return stored, nil
}

// GetByID fetches a media record by row identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*MediaRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM media_records WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get media record: %w", err)
	}
	return record, nil
}

// GetByTMDBID fetches a media record by external identifier.
func (s *Store) GetByTMDBID(ctx context.Context, tmdbID int64) (*MediaRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM media_records WHERE tmdb_id = ?`, tmdbID)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get media record by external id: %w", err)
	}
	return record, nil
}

// Known reports whether a candidate identity already resolves locally. Cheap
// probe used by aggregation tie-breaking and the instant-accept path.
func (s *Store) Known(ctx context.Context, title string, year int, tmdbID int64) bool {
	if tmdbID > 0 {
		record, err := s.GetByTMDBID(ctx, tmdbID)
		return err == nil && record != nil
	}
	record, err := s.Resolve(ctx, title, year)
	return err == nil && record != nil
}

// Stats returns store row counts for diagnostics.
func (s *Store) Stats(ctx context.Context) (StoreStats, error) {
	stats := StoreStats{}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM media_records`).Scan(&stats.MediaRecords); err != nil {
		return stats, fmt.Errorf("count media records: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM subtitle_lines`).Scan(&stats.SubtitleLines); err != nil {
		return stats, fmt.Errorf("count subtitle lines: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM recognition_audit`).Scan(&stats.AuditRows); err != nil {
		return stats, fmt.Errorf("count audit rows: %w", err)
	}
	return stats, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*MediaRecord, error) {
	var (
		id           int64
		title        string
		year         int
		tmdbID       int64
		mediaType    string
		overview     sql.NullString
		castJSON     sql.NullString
		castAt       sql.NullString
		similarJSON  sql.NullString
		similarAt    sql.NullString
		availJSON    sql.NullString
		availAt      sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&id, &title, &year, &tmdbID, &mediaType, &overview,
		&castJSON, &castAt, &similarJSON, &similarAt, &availJSON, &availAt,
		&createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	record := &MediaRecord{
		ID:               id,
		Title:            title,
		Year:             year,
		TMDBID:           tmdbID,
		MediaType:        mediaType,
		Overview:         overview.String,
		CastJSON:         castJSON.String,
		SimilarJSON:      similarJSON.String,
		AvailabilityJSON: availJSON.String,
	}
	record.CastRefreshedAt = parseNullableTime(castAt)
	record.SimilarRefreshedAt = parseNullableTime(similarAt)
	record.AvailabilityRefreshedAt = parseNullableTime(availAt)
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		record.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
