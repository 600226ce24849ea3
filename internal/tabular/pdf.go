package tabular

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// PDFEncoder prints the table through headless Chromium. If Chromium is
// disabled or cannot be launched, Encode returns ErrEncoderUnavailable.
type PDFEncoder struct {
	cfg Config
}

func NewPDFEncoder(cfg Config) PDFEncoder {
	return PDFEncoder{cfg: cfg}
}

func (PDFEncoder) ContentType() string { return "application/pdf" }

func (PDFEncoder) Extension() string { return "pdf" }

func (e PDFEncoder) Encode(ctx context.Context, t Table) ([]byte, error) {
	if !e.cfg.PDFEnabled {
		return nil, fmt.Errorf("%w: pdf export disabled", ErrEncoderUnavailable)
	}
	html, err := e.renderHTML(t)
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	browserCtx, closeBrowser := e.browser(ctx)
	defer closeBrowser()

	var doc []byte
	if err := chromedp.Run(browserCtx, printLandscape(html, &doc)); err != nil {
		return nil, fmt.Errorf("%w: chromedp: %v", ErrEncoderUnavailable, err)
	}
	return doc, nil
}

// browser starts a headless Chromium tab that dies with parent or after
// cfg.PDFTimeout, whichever comes first.
func (e PDFEncoder) browser(parent context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.DisableGPU, chromedp.NoSandbox)
	if e.cfg.PDFChromiumPath != "" {
		opts = append(opts, chromedp.ExecPath(e.cfg.PDFChromiumPath))
	}
	timeout := e.cfg.PDFTimeout
	if timeout <= 0 {
		timeout = defaultPDFTimeout
	}

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, timeout)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(timeoutCtx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	return tabCtx, func() {
		cancelTab()
		cancelAlloc()
		cancelTimeout()
	}
}

// printLandscape loads html as a data URL and prints it into *out. Log
// tables are wide, so pages are landscape.
func printLandscape(html string, out *[]byte) chromedp.Tasks {
	return chromedp.Tasks{
		chromedp.Navigate("data:text/html," + url.PathEscape(html)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			*out, _, err = page.PrintToPDF().
				WithLandscape(true).
				WithPrintBackground(true).
				Do(ctx)
			return err
		}),
	}
}

var pdfTemplate = template.Must(template.New("table").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>{{.Title}}</title>
  <style>
    body { font-family: 'Helvetica Neue', Arial, sans-serif; margin: 24px; color: #0f172a; font-size: 11px; }
    h1 { margin: 0 0 12px; font-size: 18px; }
    table { width: 100%; border-collapse: collapse; }
    th, td { padding: 4px 6px; border-bottom: 1px solid #e2e8f0; text-align: left; vertical-align: top; word-break: break-word; }
    th { background: #f8fafc; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <table>
    <thead>
      <tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr>
    </thead>
    <tbody>
    {{range .Rows}}
      <tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
    {{end}}
    </tbody>
  </table>
</body>
</html>
`))

func (e PDFEncoder) renderHTML(t Table) (string, error) {
	var buf bytes.Buffer
	err := pdfTemplate.Execute(&buf, Table{
		Title:  sheetTitle(t.Title, e.cfg.SheetTitle),
		Header: t.Header,
		Rows:   t.Rows,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
