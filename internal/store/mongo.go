package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	examCollection = "exam"
	logCollection  = "examlog"
)

// Mongo is the document-database gateway.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	exams  *mongo.Collection
	logs   *mongo.Collection
}

// OpenMongo connects to cfg.URL. Every operation is bounded by cfg.Timeout.
func OpenMongo(ctx context.Context, cfg Config) (*Mongo, error) {
	opts := options.Client().ApplyURI(cfg.URL)
	if cfg.Timeout > 0 {
		opts = opts.SetTimeout(cfg.Timeout).SetServerSelectionTimeout(cfg.Timeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	m := NewMongo(client.Database(cfg.Database))
	m.client = client
	return m, nil
}

// NewMongo wraps an existing database handle. Close is a no-op for gateways
// built this way; the caller owns the client.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		db:    db,
		exams: db.Collection(examCollection),
		logs:  db.Collection(logCollection),
	}
}

func (m *Mongo) Ping(ctx context.Context) error {
	if _, err := m.db.ListCollectionNames(ctx, bson.D{}); err != nil {
		return classify(err)
	}
	return nil
}

func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.exams.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("slug_unique"),
	})
	if err != nil {
		return fmt.Errorf("create exam indexes: %w", classify(err))
	}
	_, err = m.logs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "exam_id", Value: 1}, {Key: "server_ts", Value: 1}, {Key: "_id", Value: 1}},
		Options: options.Index().SetName("exam_server_ts"),
	})
	if err != nil {
		return fmt.Errorf("create examlog indexes: %w", classify(err))
	}
	return nil
}

func (m *Mongo) CreateExam(ctx context.Context, exam *Exam) error {
	if exam.ID.IsZero() {
		exam.ID = primitive.NewObjectID()
	}
	if _, err := m.exams.InsertOne(ctx, exam); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("insert exam: %w", classify(err))
	}
	return nil
}

func (m *Mongo) FindExamByID(ctx context.Context, id primitive.ObjectID) (*Exam, error) {
	return m.findExam(ctx, bson.D{{Key: "_id", Value: id}})
}

func (m *Mongo) FindExamBySlug(ctx context.Context, slug string) (*Exam, error) {
	return m.findExam(ctx, bson.D{{Key: "slug", Value: slug}})
}

func (m *Mongo) findExam(ctx context.Context, filter bson.D) (*Exam, error) {
	var exam Exam
	if err := m.exams.FindOne(ctx, filter).Decode(&exam); err != nil {
		return nil, classify(err)
	}
	return &exam, nil
}

func (m *Mongo) InsertEvent(ctx context.Context, entry *EventLogEntry) error {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if _, err := m.logs.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert event: %w", classify(err))
	}
	return nil
}

// ListEvents sorts on _id after server_ts; ObjectIDs grow with insertion, so
// entries sharing a timestamp keep the order they were written in.
func (m *Mongo) ListEvents(ctx context.Context, examID primitive.ObjectID) ([]EventLogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "server_ts", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := m.logs.Find(ctx, bson.D{{Key: "exam_id", Value: examID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", classify(err))
	}
	entries := make([]EventLogEntry, 0)
	if err := cur.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode events: %w", classify(err))
	}
	return entries, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

func classify(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsNetworkError(err), mongo.IsTimeout(err), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return err
	}
}
