// Package tabular turns header+rows tables into downloadable documents.
package tabular

import (
	"context"
	"errors"
)

// ErrEncoderUnavailable is returned when an encoder's backing dependency
// (for PDF, a Chromium binary) is disabled or cannot be started.
var ErrEncoderUnavailable = errors.New("tabular encoder unavailable")

// Table is one sheet of data. Cells are strings or integers.
type Table struct {
	Title  string
	Header []string
	Rows   [][]any
}

// Encoder serializes a Table into a file body.
type Encoder interface {
	Encode(ctx context.Context, t Table) ([]byte, error)
	ContentType() string
	// Extension is the file extension without the leading dot.
	Extension() string
}

var (
	_ Encoder = XLSXEncoder{}
	_ Encoder = PDFEncoder{}
)

// Encoders builds the configured encoders keyed by extension.
func Encoders(cfg Config) map[string]Encoder {
	out := map[string]Encoder{}
	for _, enc := range []Encoder{NewXLSXEncoder(cfg), NewPDFEncoder(cfg)} {
		out[enc.Extension()] = enc
	}
	return out
}
