package store

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InMemory keeps exams and logs in process memory. Used by tests and by
// STORE_DRIVER=memory for local runs; nothing survives a restart.
type InMemory struct {
	mu     sync.RWMutex
	exams  map[primitive.ObjectID]Exam
	bySlug map[string]primitive.ObjectID
	logs   []EventLogEntry
}

func NewInMemory() *InMemory {
	return &InMemory{
		exams:  map[primitive.ObjectID]Exam{},
		bySlug: map[string]primitive.ObjectID{},
	}
}

func (s *InMemory) Ping(ctx context.Context) error { return ctx.Err() }

func (s *InMemory) EnsureIndexes(context.Context) error { return nil }

func (s *InMemory) CreateExam(ctx context.Context, exam *Exam) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bySlug[exam.Slug]; ok {
		return ErrDuplicateSlug
	}
	if exam.ID.IsZero() {
		exam.ID = primitive.NewObjectID()
	}
	s.exams[exam.ID] = *exam
	s.bySlug[exam.Slug] = exam.ID
	return nil
}

func (s *InMemory) FindExamByID(_ context.Context, id primitive.ObjectID) (*Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exam, ok := s.exams[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &exam, nil
}

func (s *InMemory) FindExamBySlug(_ context.Context, slug string) (*Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySlug[slug]
	if !ok {
		return nil, ErrNotFound
	}
	exam := s.exams[id]
	return &exam, nil
}

func (s *InMemory) InsertEvent(ctx context.Context, entry *EventLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *InMemory) ListEvents(_ context.Context, examID primitive.ObjectID) ([]EventLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EventLogEntry, 0)
	for _, e := range s.logs {
		if e.ExamID == examID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ServerTS.Before(out[j].ServerTS)
	})
	return out, nil
}

func (s *InMemory) Close(context.Context) error { return nil }
