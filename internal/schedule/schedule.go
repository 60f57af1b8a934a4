// Package schedule resolves the effective destination of a shortened URL at a
// point in time, taking its recurring override windows into account.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/clickwise/shortener/internal/models"
	"github.com/robfig/cron/v3"
)

// ErrInvalidCron is returned when a schedule carries an empty or malformed
// cron expression.
var ErrInvalidCron = errors.New("invalid cron expression")

// Resolve returns the destination the given record should redirect to at the
// given instant. With no schedules it is always the record's destination.
// Otherwise the currently open windows (Start < now < End) are checked in
// ascending order of Start; the first one with a cron occurrence inside its
// buffer supplies its alternative URL. When no window is active the record's
// destination is returned.
//
// A window whose Start is not before its End can never be open, so such
// windows are silently inactive rather than an error.
func Resolve(u *models.ShortURL, now time.Time) (string, error) {
	const op = "schedule.Resolve"

	if len(u.Schedules) == 0 {
		return u.Destination, nil
	}

	open := make([]models.Schedule, 0, len(u.Schedules))
	for _, s := range u.Schedules {
		if s.End.After(now) && s.Start.Before(now) {
			open = append(open, s)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].Start.Before(open[j].Start)
	})

	for _, s := range open {
		active, err := isActive(s, now)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if active {
			return s.AlternativeURL, nil
		}
	}

	return u.Destination, nil
}

// isActive reports whether a cron occurrence of the schedule falls within
// DurationMinutes of now. Occurrences are enumerated from the minute
// containing the buffer start, so with a zero buffer only the current
// minute's tick counts. An occurrence activates the window when it has
// already fired (d < now) and has not expired past the buffer end.
func isActive(s models.Schedule, now time.Time) (bool, error) {
	if s.Cron == "" {
		return false, fmt.Errorf("%w: expression is empty", ErrInvalidCron)
	}

	expr, err := cron.ParseStandard(s.Cron)
	if err != nil {
		return false, fmt.Errorf("%w: %q: %v", ErrInvalidCron, s.Cron, err)
	}

	buffer := time.Duration(s.DurationMinutes) * time.Minute
	bufferStart := now.Add(-buffer).Truncate(time.Minute)
	bufferEnd := now.Add(buffer)

	for d := expr.Next(bufferStart.Add(-time.Second)); !d.After(bufferEnd); d = expr.Next(d) {
		if d.IsZero() {
			break
		}
		if d.Before(now) && d.Before(bufferEnd) {
			return true, nil
		}
	}

	return false, nil
}
