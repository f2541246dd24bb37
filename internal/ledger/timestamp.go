package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/tinoosan/billy/internal/errs"
)

// TimestampLayout is the canonical stored form of Entry.CreatedAt.
// Fractional seconds are written only when present.
const TimestampLayout = "2006-01-02T15:04:05.999999"

// Accepted input layouts. Parsing tolerates a fractional second after the
// seconds field even when the layout does not spell it out.
var timestampLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp reads an ISO-8601 date or date-time. An explicit offset is kept
// on the returned time without converting, so Year and Month report the wall clock
// that was written.
func ParseTimestamp(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if v != "" {
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", errs.ErrMalformedTimestamp, s)
}

// FormatTimestamp renders t's wall clock in TimestampLayout, dropping any offset.
func FormatTimestamp(t time.Time) string { return t.Format(TimestampLayout) }

// NormalizeTimestamp parses s and re-renders it in the canonical layout.
func NormalizeTimestamp(s string) (string, error) {
	t, err := ParseTimestamp(s)
	if err != nil {
		return "", err
	}
	return FormatTimestamp(t), nil
}
