package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/yourorg/proctorlink/internal/store"
	"github.com/yourorg/proctorlink/internal/tabular"
)

// DefaultFormat is the export format used when the caller names none.
const DefaultFormat = "xlsx"

// knownFormats lists every format the export endpoint accepts, whether or
// not an encoder is currently configured for it.
var knownFormats = map[string]bool{"xlsx": true, "pdf": true}

// Service runs the exam lifecycle, event logging and log export against an
// injected store gateway. A nil gateway makes every data operation fail
// with ErrStoreUnavailable.
type Service struct {
	cfg      Config
	store    store.Gateway
	encoders map[string]tabular.Encoder
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time
	newSlug  func() (string, error)

	indexMu sync.Mutex
	indexed bool
}

func NewService(cfg Config, gw store.Gateway, encoders map[string]tabular.Encoder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SlugAttempts < 1 {
		cfg.SlugAttempts = 1
	}
	return &Service{
		cfg:      cfg,
		store:    gw,
		encoders: encoders,
		logger:   logger,
		loc:      cfg.location(),
		now:      func() time.Time { return time.Now().UTC() },
		newSlug:  NewSlug,
	}
}

// CreateExam stores a new exam under a fresh slug and returns its public
// links. A slug collision is retried up to cfg.SlugAttempts times.
func (s *Service) CreateExam(ctx context.Context, in NewExam) (CreateExamResponse, error) {
	if err := s.EnsureIndexes(ctx); err != nil {
		return CreateExamResponse{}, err
	}
	hash, err := HashPassword(in.Password, s.cfg)
	if err != nil {
		return CreateExamResponse{}, err
	}
	now := s.now()
	exam := &store.Exam{
		URL:          in.URL,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	for attempt := 1; ; attempt++ {
		if exam.Slug, err = s.newSlug(); err != nil {
			return CreateExamResponse{}, err
		}
		err = s.store.CreateExam(ctx, exam)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicateSlug) || attempt >= s.cfg.SlugAttempts {
			return CreateExamResponse{}, s.storeErr(ctx, "create exam", err)
		}
		s.log(ctx).Warn("slug collision, retrying", "slug", exam.Slug, "attempt", attempt)
	}

	s.log(ctx).Info("exam created", "examId", exam.ID.Hex(), "slug", exam.Slug)
	return CreateExamResponse{
		ID:       exam.ID.Hex(),
		Slug:     exam.Slug,
		ShortURL: s.ShortURL(exam.Slug, in.RequestBase),
		EmbedURL: exam.URL,
	}, nil
}

// EnsureIndexes creates the store indexes once per process. Until it has
// succeeded, CreateExam calls it again, since slug collisions are only
// detected through the unique index.
func (s *Service) EnsureIndexes(ctx context.Context) error {
	if s.store == nil {
		return errStoreUnconfigured
	}
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	if s.indexed {
		return nil
	}
	if err := s.store.EnsureIndexes(ctx); err != nil {
		return s.storeErr(ctx, "ensure indexes", err)
	}
	s.indexed = true
	return nil
}

func (s *Service) ExamBySlug(ctx context.Context, slug string) (PublicExam, error) {
	if s.store == nil {
		return PublicExam{}, errStoreUnconfigured
	}
	exam, err := s.store.FindExamBySlug(ctx, slug)
	if err != nil {
		return PublicExam{}, s.storeErr(ctx, "find exam by slug", err)
	}
	return PublicExam{ID: exam.ID.Hex(), Slug: exam.Slug, EmbedURL: exam.URL}, nil
}

// VerifyPassword reports whether password opens the exam. A mismatch is
// not an error.
func (s *Service) VerifyPassword(ctx context.Context, rawID, password string) (VerifyResponse, error) {
	exam, err := s.examByID(ctx, rawID)
	if err != nil {
		return VerifyResponse{}, err
	}
	if !VerifyPassword(password, exam.PasswordHash) {
		s.log(ctx).Info("password rejected", "examId", exam.ID.Hex())
		return VerifyResponse{OK: false, Message: "Invalid password"}, nil
	}
	return VerifyResponse{OK: true, Message: "OK"}, nil
}

func (s *Service) LogEvent(ctx context.Context, rawID string, ev Event) (LogEventResponse, error) {
	exam, err := s.examByID(ctx, rawID)
	if err != nil {
		return LogEventResponse{}, err
	}
	entry := &store.EventLogEntry{
		ExamID:    exam.ID,
		Type:      ev.Type,
		Details:   ev.Details,
		ClientTS:  ev.ClientTS,
		ServerTS:  s.now(),
		IP:        ev.IP,
		UserAgent: ev.UserAgent,
	}
	if err := s.store.InsertEvent(ctx, entry); err != nil {
		return LogEventResponse{}, s.storeErr(ctx, "insert event", err)
	}
	s.log(ctx).Info("event logged", "examId", exam.ID.Hex(), "type", ev.Type)
	return LogEventResponse{OK: true}, nil
}

// ExportLog encodes every event of the exam, oldest first, in the named
// format. An empty format means DefaultFormat. A missing exam is reported
// before the format is looked at.
func (s *Service) ExportLog(ctx context.Context, rawID, format string) (Export, error) {
	exam, err := s.examByID(ctx, rawID)
	if err != nil {
		return Export{}, err
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = DefaultFormat
	}
	if !knownFormats[format] {
		return Export{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	enc, ok := s.encoders[format]
	if !ok {
		return Export{}, fmt.Errorf("%w: no %s encoder configured", ErrEncoderUnavailable, format)
	}
	entries, err := s.store.ListEvents(ctx, exam.ID)
	if err != nil {
		return Export{}, s.storeErr(ctx, "list events", err)
	}
	body, err := enc.Encode(ctx, BuildLogTable(entries, s.loc))
	if err != nil {
		s.log(ctx).Error("encode export failed", "examId", exam.ID.Hex(), "format", format, "error", err)
		return Export{}, err
	}

	s.log(ctx).Info("log exported", "examId", exam.ID.Hex(), "format", format, "rows", len(entries), "bytes", len(body))
	return Export{
		Filename:    LogFilename(exam.ID.Hex(), enc.Extension()),
		ContentType: enc.ContentType(),
		Body:        body,
	}, nil
}

// Status reports backend and store health in display form.
func (s *Service) Status(ctx context.Context) StatusResponse {
	resp := StatusResponse{Backend: "✅ Running", Database: "✅ Connected"}
	if s.store == nil {
		resp.Database = "❌ Not Available"
	} else if err := s.store.Ping(ctx); err != nil {
		resp.Database = "❌ Error: " + truncate(err.Error(), 60)
	}
	return resp
}

// ShortURL joins the public base (or the request's own base) with /x/{slug}.
func (s *Service) ShortURL(slug, requestBase string) string {
	base := s.cfg.FrontendBaseURL
	if base == "" {
		base = requestBase
	}
	return strings.TrimRight(base, "/") + "/x/" + slug
}

func (s *Service) examByID(ctx context.Context, rawID string) (*store.Exam, error) {
	if s.store == nil {
		return nil, errStoreUnconfigured
	}
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	exam, err := s.store.FindExamByID(ctx, id)
	if err != nil {
		return nil, s.storeErr(ctx, "find exam", err)
	}
	return exam, nil
}

// storeErr translates gateway errors into this package's sentinels.
func (s *Service) storeErr(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrUnavailable):
		s.log(ctx).Error("store unavailable", "op", op, "error", err)
		return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
	default:
		s.log(ctx).Error("store operation failed", "op", op, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return CorrelationLogger(s.logger, CorrelationID(ctx))
}

func truncate(v string, n int) string {
	r := []rune(v)
	if len(r) <= n {
		return v
	}
	return string(r[:n])
}
