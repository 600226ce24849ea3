// Package exam implements exam creation, password verification, proctoring
// event logging and log export, plus the HTTP boundary in front of them.
package exam

import (
	"errors"
	"fmt"

	"github.com/yourorg/proctorlink/internal/tabular"
)

var (
	ErrInvalidIdentifier = errors.New("invalid exam identifier")
	ErrNotFound          = errors.New("exam not found")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrUnsupportedFormat = errors.New("unsupported export format")

	// ErrEncoderUnavailable is the tabular sentinel, re-exported for callers
	// that only import this package.
	ErrEncoderUnavailable = tabular.ErrEncoderUnavailable

	errStoreUnconfigured = fmt.Errorf("%w: database not configured", ErrStoreUnavailable)
)

type CreateExamRequest struct {
	URL      *string `json:"url"`
	Password *string `json:"password"`
}

type CreateExamResponse struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	ShortURL string `json:"short_url"`
	EmbedURL string `json:"embed_url"`
}

type PublicExam struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	EmbedURL string `json:"embed_url"`
}

type VerifyRequest struct {
	Password *string `json:"password"`
}

type VerifyResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// LogEventRequest is the client's report of one proctoring event. TS is the
// client clock in milliseconds since epoch.
type LogEventRequest struct {
	Type    *string `json:"type"`
	Details *string `json:"details,omitempty"`
	TS      *int64  `json:"ts,omitempty"`
}

type LogEventResponse struct {
	OK bool `json:"ok"`
}

type StatusResponse struct {
	Backend  string `json:"backend"`
	Database string `json:"database"`
}

type RootResponse struct {
	Message string `json:"message"`
}

// ErrorBody is the JSON shape of every non-validation failure.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	CorrId    string `json:"corrId"`
	Retryable bool   `json:"retryable"`
}

type ValidationErrorItem struct {
	Code    string `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

type ValidationError struct {
	Code      string                `json:"code"`
	Message   string                `json:"message"`
	CorrId    string                `json:"corrId"`
	Retryable bool                  `json:"retryable"`
	Errors    []ValidationErrorItem `json:"errors"`
}

// NewExam is the validated input of Service.CreateExam. RequestBase is the
// scheme+host the request arrived on, used when no frontend base is set.
type NewExam struct {
	URL         string
	Password    string
	RequestBase string
}

// Event is the validated input of Service.LogEvent. IP and UserAgent come
// from the request, not the body.
type Event struct {
	Type      string
	Details   string
	ClientTS  *int64
	IP        *string
	UserAgent *string
}

// Export is an encoded log file ready to be sent as an attachment.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}
