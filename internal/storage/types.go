package storage

import (
	"errors"
	"regexp"
	"strconv"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store closed")
)

// Config configures storage.
//
// If Driver is empty, "sqlite" is assumed.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// datePattern matches the structured search filter "M/D", "M-D" or "M/"
// (day optional), e.g. "6/15" or "06-15".
var datePattern = regexp.MustCompile(`^\s*(\d{1,2})\s*[-/]\s*(\d{1,2})?\s*$`)

// parseDatePattern recognizes a month/day search filter. day == 0 means
// "any day of that month".
func parseDatePattern(keyword string) (month, day int, ok bool) {
	m := datePattern.FindStringSubmatch(keyword)
	if m == nil {
		return 0, 0, false
	}
	month, _ = strconv.Atoi(m[1])
	if month < 1 || month > 12 {
		return 0, 0, false
	}
	if m[2] != "" {
		day, _ = strconv.Atoi(m[2])
		if day < 1 || day > 31 {
			return 0, 0, false
		}
	}
	return month, day, true
}
