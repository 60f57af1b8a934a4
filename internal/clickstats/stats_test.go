package clickstats

import (
	"testing"

	"github.com/clickwise/shortener/internal/models"
	"github.com/stretchr/testify/assert"
)

func events(timestamps ...string) []models.ClickEvent {
	evs := make([]models.ClickEvent, 0, len(timestamps))
	for _, ts := range timestamps {
		evs = append(evs, models.ClickEvent{Code: "abc123", Timestamp: ts})
	}
	return evs
}

func TestAggregate(t *testing.T) {
	t.Run("no events", func(t *testing.T) {
		dates, err := Aggregate(nil)

		assert.NoError(t, err)
		assert.Empty(t, dates)
	})

	t.Run("groups by date and sorts ascending", func(t *testing.T) {
		dates, err := Aggregate(events(
			"2024-01-02 09:00",
			"2024-01-01 10:00",
			"2024-01-01 11:00",
		))

		assert.NoError(t, err)
		assert.Equal(t, []models.ClickDate{
			{Date: "2024-01-01", Count: 2},
			{Date: "2024-01-02", Count: 1},
		}, dates)
	})

	t.Run("malformed timestamp", func(t *testing.T) {
		dates, err := Aggregate(events("2024-01-01 10:00", "yesterday"))

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedTimestamp)
		assert.Nil(t, dates)
	})
}
