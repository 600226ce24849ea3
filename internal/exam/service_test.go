package exam

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourorg/proctorlink/internal/store"
	"github.com/yourorg/proctorlink/internal/tabular"
)

type fakeEncoder struct {
	ext   string
	err   error
	table tabular.Table
	calls int
}

func (f *fakeEncoder) Encode(_ context.Context, t tabular.Table) ([]byte, error) {
	f.calls++
	f.table = t
	if f.err != nil {
		return nil, f.err
	}
	return []byte("encoded"), nil
}

func (f *fakeEncoder) ContentType() string { return "application/test" }
func (f *fakeEncoder) Extension() string { return f.ext }

type failingGateway struct {
	store.Gateway
	err error
}

func (g failingGateway) Ping(context.Context) error { return g.err }

func (g failingGateway) FindExamByID(context.Context, primitive.ObjectID) (*store.Exam, error) {
	return nil, g.err
}

func newTestService(t *testing.T, cfg Config) (*Service, *store.InMemory, *fakeEncoder) {
	t.Helper()
	gw := store.NewInMemory()
	enc := &fakeEncoder{ext: "xlsx"}
	svc := NewService(cfg, gw, map[string]tabular.Encoder{"xlsx": enc}, nil)
	return svc, gw, enc
}

func createExam(t *testing.T, svc *Service) CreateExamResponse {
	t.Helper()
	resp, err := svc.CreateExam(context.Background(), NewExam{
		URL:         "https://forms.example.com/f1",
		Password:    "secret123",
		RequestBase: "http://localhost:8000",
	})
	if err != nil {
		t.Fatalf("CreateExam() error = %v", err)
	}
	return resp
}

func TestServiceScenario(t *testing.T) {
	svc, _, _ := newTestService(t, Config{HashAlgorithm: "sha256", SlugAttempts: 3})
	ctx := context.Background()

	created := createExam(t, svc)
	if !slugPattern.MatchString(created.Slug) {
		t.Fatalf("slug = %q, want 8 hex chars", created.Slug)
	}
	if created.ShortURL != "http://localhost:8000/x/"+created.Slug {
		t.Errorf("ShortURL = %q", created.ShortURL)
	}
	if created.EmbedURL != "https://forms.example.com/f1" {
		t.Errorf("EmbedURL = %q", created.EmbedURL)
	}

	public, err := svc.ExamBySlug(ctx, created.Slug)
	if err != nil {
		t.Fatalf("ExamBySlug() error = %v", err)
	}
	if public.ID != created.ID || public.EmbedURL != created.EmbedURL {
		t.Errorf("ExamBySlug() = %+v, want id %s", public, created.ID)
	}

	ok, err := svc.VerifyPassword(ctx, created.ID, "secret123")
	if err != nil || !ok.OK || ok.Message != "OK" {
		t.Errorf("VerifyPassword(correct) = %+v, %v", ok, err)
	}
	bad, err := svc.VerifyPassword(ctx, created.ID, "wrong")
	if err != nil || bad.OK || bad.Message != "Invalid password" {
		t.Errorf("VerifyPassword(wrong) = %+v, %v", bad, err)
	}
}

func TestServiceShortURLUsesFrontendBase(t *testing.T) {
	svc, _, _ := newTestService(t, Config{FrontendBaseURL: "https://proctor.example.com/", SlugAttempts: 1})
	created := createExam(t, svc)
	if want := "https://proctor.example.com/x/" + created.Slug; created.ShortURL != want {
		t.Errorf("ShortURL = %q, want %q", created.ShortURL, want)
	}
}

func TestServiceSlugCollisionRetry(t *testing.T) {
	svc, _, _ := newTestService(t, Config{SlugAttempts: 3})
	slugs := []string{"aaaaaaaa", "aaaaaaaa", "bbbbbbbb"}
	svc.newSlug = func() (string, error) {
		s := slugs[0]
		slugs = slugs[1:]
		return s, nil
	}

	first := createExam(t, svc)
	second := createExam(t, svc)
	if first.Slug != "aaaaaaaa" || second.Slug != "bbbbbbbb" {
		t.Errorf("slugs = %q, %q", first.Slug, second.Slug)
	}
}

func TestServiceSlugCollisionExhausted(t *testing.T) {
	svc, _, _ := newTestService(t, Config{SlugAttempts: 2})
	svc.newSlug = func() (string, error) { return "aaaaaaaa", nil }
	createExam(t, svc)

	_, err := svc.CreateExam(context.Background(), NewExam{URL: "https://forms.example.com/f2", Password: "p"})
	if !errors.Is(err, store.ErrDuplicateSlug) {
		t.Fatalf("CreateExam() error = %v, want ErrDuplicateSlug", err)
	}
}

func TestServiceNotFoundAndInvalidID(t *testing.T) {
	svc, _, _ := newTestService(t, Config{})
	ctx := context.Background()
	missing := "65a1f0c2e4b0a1b2c3d4e5f6"

	if _, err := svc.ExamBySlug(ctx, "deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ExamBySlug() error = %v, want ErrNotFound", err)
	}
	if _, err := svc.VerifyPassword(ctx, missing, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("VerifyPassword() error = %v, want ErrNotFound", err)
	}
	if _, err := svc.LogEvent(ctx, missing, Event{Type: "blur"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("LogEvent() error = %v, want ErrNotFound", err)
	}
	if _, err := svc.ExportLog(ctx, missing, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("ExportLog() error = %v, want ErrNotFound", err)
	}

	for _, raw := range []string{"nope", ""} {
		if _, err := svc.VerifyPassword(ctx, raw, "x"); !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("VerifyPassword(%q) error = %v, want ErrInvalidIdentifier", raw, err)
		}
		if _, err := svc.LogEvent(ctx, raw, Event{Type: "blur"}); !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("LogEvent(%q) error = %v, want ErrInvalidIdentifier", raw, err)
		}
		if _, err := svc.ExportLog(ctx, raw, ""); !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("ExportLog(%q) error = %v, want ErrInvalidIdentifier", raw, err)
		}
	}
}

func TestServiceLogAndExport(t *testing.T) {
	svc, gw, enc := newTestService(t, Config{})
	ctx := context.Background()
	created := createExam(t, svc)

	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	stamps := []time.Time{base, base.Add(2 * time.Second), base.Add(2 * time.Second)}
	types := []string{"blur", "focus", "fullscreen-exit"}
	for i, typ := range types {
		ts := stamps[i]
		svc.now = func() time.Time { return ts }
		ev := Event{Type: typ, IP: strPtr("10.0.0.1"), UserAgent: strPtr("UA")}
		if typ == "blur" {
			ev.Details = "left tab"
			ev.ClientTS = int64Ptr(1700000000000)
		}
		if resp, err := svc.LogEvent(ctx, created.ID, ev); err != nil || !resp.OK {
			t.Fatalf("LogEvent(%s) = %+v, %v", typ, resp, err)
		}
	}

	id, _ := ParseID(created.ID)
	stored, _ := gw.ListEvents(ctx, id)
	if len(stored) != 3 || stored[0].Details != "left tab" || stored[1].Details != "" {
		t.Fatalf("stored events = %+v", stored)
	}

	export, err := svc.ExportLog(ctx, created.ID, "")
	if err != nil {
		t.Fatalf("ExportLog() error = %v", err)
	}
	if export.Filename != "exam_"+created.ID+"_log.xlsx" {
		t.Errorf("Filename = %q", export.Filename)
	}
	if export.ContentType != "application/test" || string(export.Body) != "encoded" {
		t.Errorf("export = %+v", export)
	}
	rows := enc.table.Rows
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	for i, row := range rows {
		if row[0] != i+1 || row[1] != types[i] {
			t.Errorf("row %d = %v, want seq %d type %s", i, row, i+1, types[i])
		}
	}
}

func TestServiceExportEmpty(t *testing.T) {
	svc, _, enc := newTestService(t, Config{})
	created := createExam(t, svc)
	if _, err := svc.ExportLog(context.Background(), created.ID, "xlsx"); err != nil {
		t.Fatalf("ExportLog() error = %v", err)
	}
	if len(enc.table.Rows) != 0 || len(enc.table.Header) != len(LogColumns) {
		t.Errorf("table = %+v, want header only", enc.table)
	}
}

func TestServiceExportFormats(t *testing.T) {
	svc, _, enc := newTestService(t, Config{})
	created := createExam(t, svc)
	ctx := context.Background()

	if _, err := svc.ExportLog(ctx, created.ID, "csv"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("ExportLog(csv) error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := svc.ExportLog(ctx, created.ID, "pdf"); !errors.Is(err, ErrEncoderUnavailable) {
		t.Errorf("ExportLog(pdf) error = %v, want ErrEncoderUnavailable", err)
	}

	enc.err = tabular.ErrEncoderUnavailable
	if _, err := svc.ExportLog(ctx, created.ID, "XLSX"); !errors.Is(err, ErrEncoderUnavailable) {
		t.Errorf("ExportLog(failing encoder) error = %v, want ErrEncoderUnavailable", err)
	}
}

func TestServiceWithoutStore(t *testing.T) {
	svc := NewService(Config{}, nil, nil, nil)
	ctx := context.Background()
	id := "65a1f0c2e4b0a1b2c3d4e5f6"

	if _, err := svc.CreateExam(ctx, NewExam{URL: "https://x.example.com", Password: "p"}); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("CreateExam() error = %v, want ErrStoreUnavailable", err)
	}
	if _, err := svc.ExamBySlug(ctx, "deadbeef"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("ExamBySlug() error = %v, want ErrStoreUnavailable", err)
	}
	if _, err := svc.VerifyPassword(ctx, id, "p"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("VerifyPassword() error = %v, want ErrStoreUnavailable", err)
	}
	if _, err := svc.LogEvent(ctx, id, Event{Type: "blur"}); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("LogEvent() error = %v, want ErrStoreUnavailable", err)
	}
	if _, err := svc.ExportLog(ctx, id, ""); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("ExportLog() error = %v, want ErrStoreUnavailable", err)
	}
	if got := svc.Status(ctx); got.Database != "❌ Not Available" || got.Backend != "✅ Running" {
		t.Errorf("Status() = %+v", got)
	}
}

func TestServiceStatus(t *testing.T) {
	svc, _, _ := newTestService(t, Config{})
	if got := svc.Status(context.Background()); got.Database != "✅ Connected" {
		t.Errorf("Status() = %+v", got)
	}

	long := errors.New(strings.Repeat("x", 100))
	svc = NewService(Config{}, failingGateway{err: long}, nil, nil)
	got := svc.Status(context.Background())
	if got.Database != "❌ Error: "+strings.Repeat("x", 60) {
		t.Errorf("Status().Database = %q", got.Database)
	}
}

func TestServiceStoreUnavailable(t *testing.T) {
	gw := failingGateway{err: store.ErrUnavailable}
	svc := NewService(Config{}, gw, nil, nil)
	_, err := svc.VerifyPassword(context.Background(), "65a1f0c2e4b0a1b2c3d4e5f6", "p")
	if !errors.Is(err, ErrStoreUnavailable) || errors.Is(err, errStoreUnconfigured) {
		t.Errorf("VerifyPassword() error = %v, want ErrStoreUnavailable only", err)
	}
}

func TestServiceExportChecksExamBeforeFormat(t *testing.T) {
	svc, _, enc := newTestService(t, Config{})
	missing := "65a1f0c2e4b0a1b2c3d4e5f6"
	for _, format := range []string{"csv", "pdf", ""} {
		if _, err := svc.ExportLog(context.Background(), missing, format); !errors.Is(err, ErrNotFound) {
			t.Errorf("ExportLog(%q) error = %v, want ErrNotFound", format, err)
		}
	}
	if enc.calls != 0 {
		t.Errorf("encoder called %d times for a missing exam", enc.calls)
	}
}

// flakyIndexGateway fails EnsureIndexes until failures runs out.
type flakyIndexGateway struct {
	*store.InMemory
	failures int
	calls    int
}

func (g *flakyIndexGateway) EnsureIndexes(context.Context) error {
	g.calls++
	if g.failures > 0 {
		g.failures--
		return store.ErrUnavailable
	}
	return nil
}

func TestServiceEnsureIndexesRetriesOnCreate(t *testing.T) {
	gw := &flakyIndexGateway{InMemory: store.NewInMemory(), failures: 1}
	svc := NewService(Config{SlugAttempts: 1}, gw, nil, nil)
	ctx := context.Background()

	if err := svc.EnsureIndexes(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("EnsureIndexes() error = %v, want ErrStoreUnavailable", err)
	}
	createExam(t, svc)
	createExam(t, svc)
	if gw.calls != 2 {
		t.Errorf("EnsureIndexes calls = %d, want 2 (startup failure, then once on create)", gw.calls)
	}
}
