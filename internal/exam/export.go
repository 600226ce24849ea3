package exam

import (
	"fmt"
	"time"

	"github.com/yourorg/proctorlink/internal/store"
	"github.com/yourorg/proctorlink/internal/tabular"
)

// LogColumns is the header row of every exported event log.
var LogColumns = []string{"#", "Event", "Details", "Client Time", "Server Time", "IP", "User Agent"}

// BuildLogTable lays entries out one row each, in the order given, numbered
// from 1. Client times render in loc; server times in UTC.
func BuildLogTable(entries []store.EventLogEntry, loc *time.Location) tabular.Table {
	rows := make([][]any, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, []any{
			i + 1,
			e.Type,
			e.Details,
			clientTime(e.ClientTS, loc),
			serverTime(e.ServerTS),
			deref(e.IP),
			deref(e.UserAgent),
		})
	}
	return tabular.Table{Header: LogColumns, Rows: rows}
}

// LogFilename is the suggested attachment name for an exam's export.
func LogFilename(examID, ext string) string {
	return fmt.Sprintf("exam_%s_log.%s", examID, ext)
}

// clientTime renders a millisecond epoch as a local ISO-8601 timestamp
// without offset. Zero and missing values render empty.
func clientTime(ms *int64, loc *time.Location) string {
	if ms == nil || *ms == 0 {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return isoFormat(time.UnixMilli(*ms).In(loc), false)
}

func serverTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return isoFormat(t.UTC(), true)
}

// isoFormat prints seconds precision plus a six-digit fraction only when
// the microsecond part is non-zero.
func isoFormat(t time.Time, withOffset bool) string {
	out := t.Format("2006-01-02T15:04:05")
	if us := t.Nanosecond() / int(time.Microsecond); us != 0 {
		out += fmt.Sprintf(".%06d", us)
	}
	if withOffset {
		out += t.Format("-07:00")
	}
	return out
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
