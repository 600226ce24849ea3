package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS exam (
		id            TEXT PRIMARY KEY,
		url           TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		slug          TEXT NOT NULL,
		created_at    INTEGER NOT NULL,
		updated_at    INTEGER NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS exam_slug_unique ON exam (slug)`,
	`CREATE TABLE IF NOT EXISTS examlog (
		seq       INTEGER PRIMARY KEY AUTOINCREMENT,
		id        TEXT NOT NULL UNIQUE,
		exam_id   TEXT NOT NULL,
		type      TEXT NOT NULL,
		details   TEXT NOT NULL DEFAULT '',
		client_ts INTEGER,
		server_ts INTEGER NOT NULL,
		ip        TEXT,
		ua        TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS examlog_exam_server_ts ON examlog (exam_id, server_ts, seq)`,
}

// SQLite is an embedded single-node gateway. Identifiers are still
// ObjectIDs (stored as hex) so callers see the same shape as with Mongo.
// Timestamps are stored as UTC unix microseconds.
type SQLite struct {
	db      *sql.DB
	timeout time.Duration
}

// sqlitePragmas run on the single pooled connection right after open.
var sqlitePragmas = []string{
	`PRAGMA busy_timeout = 5000`,
	`PRAGMA journal_mode = WAL`,
}

// OpenSQLite opens cfg.SQLitePath with one pooled connection, so writers
// queue in database/sql instead of failing with SQLITE_BUSY.
func OpenSQLite(ctx context.Context, cfg Config) (*SQLite, error) {
	db, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLite{db: db, timeout: cfg.Timeout}
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if cfg.SQLitePath != ":memory:" {
		for _, pragma := range sqlitePragmas {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("sqlite %q: %w", pragma, err)
			}
		}
	}
	return s, nil
}

func (s *SQLite) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *SQLite) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLite) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}

func (s *SQLite) CreateExam(ctx context.Context, exam *Exam) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if exam.ID.IsZero() {
		exam.ID = primitive.NewObjectID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exam (id, url, password_hash, slug, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		exam.ID.Hex(), exam.URL, exam.PasswordHash, exam.Slug, exam.CreatedAt.UnixMicro(), exam.UpdatedAt.UnixMicro(),
	)
	if err != nil {
		var serr *sqlite.Error
		if errors.As(err, &serr) && isUniqueViolation(serr.Code()) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("insert exam: %w", err)
	}
	return nil
}

func (s *SQLite) FindExamByID(ctx context.Context, id primitive.ObjectID) (*Exam, error) {
	return s.findExam(ctx, `SELECT id, url, password_hash, slug, created_at, updated_at FROM exam WHERE id = ?`, id.Hex())
}

func (s *SQLite) FindExamBySlug(ctx context.Context, slug string) (*Exam, error) {
	return s.findExam(ctx, `SELECT id, url, password_hash, slug, created_at, updated_at FROM exam WHERE slug = ?`, slug)
}

func (s *SQLite) findExam(ctx context.Context, query string, arg any) (*Exam, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		exam             Exam
		rawID            string
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&rawID, &exam.URL, &exam.PasswordHash, &exam.Slug, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select exam: %w", err)
	}
	if exam.ID, err = primitive.ObjectIDFromHex(rawID); err != nil {
		return nil, fmt.Errorf("corrupt exam id %q: %w", rawID, err)
	}
	exam.CreatedAt = time.UnixMicro(created).UTC()
	exam.UpdatedAt = time.UnixMicro(updated).UTC()
	return &exam, nil
}

func (s *SQLite) InsertEvent(ctx context.Context, entry *EventLogEntry) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO examlog (id, exam_id, type, details, client_ts, server_ts, ip, ua) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.Hex(), entry.ExamID.Hex(), entry.Type, entry.Details,
		nullInt64(entry.ClientTS), entry.ServerTS.UnixMicro(), nullString(entry.IP), nullString(entry.UserAgent),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *SQLite) ListEvents(ctx context.Context, examID primitive.ObjectID) ([]EventLogEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, details, client_ts, server_ts, ip, ua FROM examlog WHERE exam_id = ? ORDER BY server_ts, seq`,
		examID.Hex(),
	)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	entries := make([]EventLogEntry, 0)
	for rows.Next() {
		var (
			rawID    string
			serverTS int64
			clientTS sql.NullInt64
			ip, ua   sql.NullString
		)
		entry := EventLogEntry{ExamID: examID}
		if err := rows.Scan(&rawID, &entry.Type, &entry.Details, &clientTS, &serverTS, &ip, &ua); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if entry.ID, err = primitive.ObjectIDFromHex(rawID); err != nil {
			return nil, fmt.Errorf("corrupt event id %q: %w", rawID, err)
		}
		entry.ServerTS = time.UnixMicro(serverTS).UTC()
		if clientTS.Valid {
			v := clientTS.Int64
			entry.ClientTS = &v
		}
		if ip.Valid {
			v := ip.String
			entry.IP = &v
		}
		if ua.Valid {
			v := ua.String
			entry.UserAgent = &v
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *SQLite) Close(context.Context) error {
	return s.db.Close()
}

// isUniqueViolation matches only the extended UNIQUE code; NOT NULL, CHECK
// and primary key failures are not slug collisions.
func isUniqueViolation(code int) bool {
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
