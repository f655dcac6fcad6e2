// Package dateutils converts between time.Time and the date strings exchanged
// with the gateway.
package dateutils

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayoutISO  = "2006-01-02"
	DateLayoutFull = "2006-01-02 15:04:05"
)

// wireFormats are tried in order when reading a date from a snapshot.
var wireFormats = []string{
	DateLayoutFull,
	time.RFC3339Nano,
	time.RFC3339,
	DateLayoutISO,
}

// ParseWireDate reads a transaction date. The gateway writes DateLayoutFull in
// UTC; RFC 3339 and plain ISO dates are accepted too.
func ParseWireDate(dateStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	for _, layout := range wireFormats {
		if t, err := time.ParseInLocation(layout, dateStr, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

// FormatWireDate renders t in UTC using DateLayoutFull. The zero time renders
// as an empty string.
func FormatWireDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DateLayoutFull)
}
