// Package models defines the domain types shared across the application:
// shortened URLs, their override schedules, and the click events recorded
// for them.
package models

import "time"

// ClickTimestampLayout is the wall-clock, minute-precision format used when
// persisting click events. Aggregation parses it back with the same layout.
const ClickTimestampLayout = "2006-01-02 15:04"

// ShortURL represents a shortened URL and its metadata. The short code is
// immutable once the record has been created; every other field may change
// over the record's lifetime. Records are never physically deleted, archival
// only flips the Archived flag.
type ShortURL struct {
	Code        string     // Code is the unique short code appended to the host to form the short URL.
	Destination string     // Destination is the absolute URL the short code resolves to by default.
	Title       string     // Title is a human-readable label for the record.
	ClickCount  int64      // ClickCount is the number of recorded redirects, monotonically increasing.
	Archived    bool       // Archived hides the record from listings without deleting it.
	Schedules   []Schedule // Schedules holds the recurring override windows, in insertion order.
}

// ShortLink renders the public short URL for the record on the given host.
func (u *ShortURL) ShortLink(host string) string {
	return host + "/" + u.Code
}

// Schedule is a recurring override window. While the window is open
// (Start < now < End) and a cron occurrence falls within DurationMinutes of
// the current instant, the schedule's AlternativeURL replaces the record's
// destination.
type Schedule struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	AlternativeURL  string    `json:"alternativeUrl"`
	Cron            string    `json:"cron"`
	DurationMinutes int       `json:"durationMinutes"`
}

// ClickEvent is a single recorded redirect. Events are append-only: they are
// written once and never updated or deleted.
type ClickEvent struct {
	Code      string // Code is the short code that was resolved.
	ID        string // ID is the random identifier the event is stored under.
	Timestamp string // Timestamp is the local wall-clock time of the click, minute precision.
}

// ClickDate is one row of the per-day click aggregation.
type ClickDate struct {
	Date  string `json:"dateClicked"`
	Count int    `json:"count"`
}
