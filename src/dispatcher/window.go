package dispatcher

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidWindow = errors.New("invalid date window")

// Window bounds a sync as [Start, End). Zero values mean "not given".
type Window struct {
	Start time.Time
	End   time.Time
}

// Resolve fills in missing bounds. With neither bound the window is the last
// interval up to now; with one bound the other is derived from it.
func (w Window) Resolve(now time.Time, interval time.Duration) (time.Time, time.Time, error) {
	start, end := w.Start.UTC(), w.End.UTC()
	switch {
	case w.Start.IsZero() && w.End.IsZero():
		end = now.UTC()
		start = end.Add(-interval)
	case w.End.IsZero():
		end = now.UTC()
	case w.Start.IsZero():
		start = end.Add(-interval)
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start %s is not before end %s",
			ErrInvalidWindow, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return start, end, nil
}
