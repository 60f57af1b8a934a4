// Package clickstats turns raw click events into per-day counts.
package clickstats

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/clickwise/shortener/internal/models"
)

// ErrMalformedTimestamp is returned when a click event carries a timestamp
// that does not match models.ClickTimestampLayout. Malformed events fail the
// whole aggregation rather than being silently dropped.
var ErrMalformedTimestamp = errors.New("malformed click timestamp")

const dateLayout = "2006-01-02"

// Aggregate groups click events by the calendar date of their timestamp and
// returns one entry per distinct date, sorted ascending. Minute-level
// timestamps are truncated to the date; no timezone normalization happens
// beyond what the timestamp string encodes.
func Aggregate(events []models.ClickEvent) ([]models.ClickDate, error) {
	const op = "clickstats.Aggregate"

	counts := make(map[string]int)
	for _, e := range events {
		ts, err := time.Parse(models.ClickTimestampLayout, e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %q", op, ErrMalformedTimestamp, e.Timestamp)
		}
		counts[ts.Format(dateLayout)]++
	}

	dates := make([]models.ClickDate, 0, len(counts))
	for date, count := range counts {
		dates = append(dates, models.ClickDate{Date: date, Count: count})
	}
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Date < dates[j].Date
	})

	return dates, nil
}
