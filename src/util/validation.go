package util

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"starling-server/src/dispatcher"
)

var bankNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 ._\-]{0,63}$`)

func ValidateBankName(name string) bool {
	return bankNameRe.MatchString(name)
}

// ValidateAuthToken rejects empty tokens and tokens with embedded whitespace,
// which usually means a file was read with a trailing newline.
func ValidateAuthToken(token string) bool {
	return token != "" && !strings.ContainsAny(token, " \t\r\n")
}

// ParseDate accepts RFC 3339 timestamps or plain dates. Plain dates are
// midnight UTC.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is neither RFC 3339 nor YYYY-MM-DD", dispatcher.ErrInvalidWindow, s)
	}
	return t, nil
}

// ParseWindow builds a sync window from optional start and end strings.
func ParseWindow(start, end string) (dispatcher.Window, error) {
	var w dispatcher.Window
	var err error
	if start != "" {
		if w.Start, err = ParseDate(start); err != nil {
			return dispatcher.Window{}, err
		}
	}
	if end != "" {
		if w.End, err = ParseDate(end); err != nil {
			return dispatcher.Window{}, err
		}
	}
	return w, nil
}
