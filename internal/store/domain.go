// Package store is the persistence gateway for exams and their proctoring
// event logs. Every backend stores two collections, exam and examlog.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when no document matches the lookup.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicateSlug is returned when an exam slug is already taken.
	ErrDuplicateSlug = errors.New("duplicate exam slug")
	// ErrUnavailable wraps connection and timeout failures of the backend.
	ErrUnavailable = errors.New("store unavailable")
	// ErrUnconfigured is returned by Open when no connection target is set.
	ErrUnconfigured = errors.New("store not configured")
)

// Exam is one proctored session wrapping an external form URL.
type Exam struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	URL          string             `bson:"url" json:"url"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Slug         string             `bson:"slug" json:"slug"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updatedAt"`
}

// EventLogEntry is one client-reported proctoring event. ServerTS is the
// authoritative ordering key; ClientTS is milliseconds since epoch as sent.
type EventLogEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ExamID    primitive.ObjectID `bson:"exam_id" json:"examId"`
	Type      string             `bson:"type" json:"type"`
	Details   string             `bson:"details" json:"details"`
	ClientTS  *int64             `bson:"client_ts" json:"clientTs,omitempty"`
	ServerTS  time.Time          `bson:"server_ts" json:"serverTs"`
	IP        *string            `bson:"ip" json:"ip,omitempty"`
	UserAgent *string            `bson:"ua" json:"userAgent,omitempty"`
}

// Gateway defines the document operations the services rely on.
type Gateway interface {
	// Ping checks connectivity by listing the backend's collections.
	Ping(ctx context.Context) error
	// EnsureIndexes creates the slug uniqueness and log ordering indexes.
	EnsureIndexes(ctx context.Context) error
	// CreateExam inserts the exam, assigning an ID when it has none.
	CreateExam(ctx context.Context, exam *Exam) error
	FindExamByID(ctx context.Context, id primitive.ObjectID) (*Exam, error)
	FindExamBySlug(ctx context.Context, slug string) (*Exam, error)
	// InsertEvent appends one log entry, assigning an ID when it has none.
	InsertEvent(ctx context.Context, entry *EventLogEntry) error
	// ListEvents returns an exam's entries ordered by ServerTS ascending,
	// ties broken by insertion order.
	ListEvents(ctx context.Context, examID primitive.ObjectID) ([]EventLogEntry, error)
	Close(ctx context.Context) error
}

var (
	_ Gateway = (*Mongo)(nil)
	_ Gateway = (*SQLite)(nil)
	_ Gateway = (*InMemory)(nil)
)

// Open builds the gateway selected by cfg.Driver. A mongo driver without a
// connection URL yields ErrUnconfigured.
func Open(ctx context.Context, cfg Config) (Gateway, error) {
	switch cfg.Driver {
	case DriverMemory:
		return NewInMemory(), nil
	case DriverSQLite:
		s, err := OpenSQLite(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverMongo, "":
		if cfg.URL == "" {
			return nil, ErrUnconfigured
		}
		m, err := OpenMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, errors.New("unknown store driver: " + cfg.Driver)
	}
}
