package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/clickwise/shortener/internal/models"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// urlEntity is the persisted shape of a URL record. The field names are the
// stable contract external tooling may depend on; schedules travel as a
// serialized JSON array string.
type urlEntity struct {
	Code         string `json:"code"`
	Destination  string `json:"destination"`
	Title        string `json:"title"`
	ClickCount   int64  `json:"clickCount"`
	Archived     bool   `json:"archived"`
	SchedulesRaw string `json:"schedulesRaw"`
}

// clickEntity is the persisted shape of a click event.
type clickEntity struct {
	Code      string `json:"code"`
	Timestamp string `json:"timestamp"`
}

// counterEntity is the persisted shape of the sentinel counter row.
type counterEntity struct {
	NextID int64 `json:"nextId"`
}

// Gateway exposes the domain-level storage operations on top of an
// EntityStore. URL records partition by the first character of their code
// with the code itself as row key; click events partition by code under a
// random row key.
type Gateway struct {
	store EntityStore
}

// NewGateway returns a Gateway running on the given entity store.
func NewGateway(store EntityStore) *Gateway {
	return &Gateway{store: store}
}

// Get retrieves the URL record for a code, or ErrURLNotFound.
func (g *Gateway) Get(ctx context.Context, code string) (*models.ShortURL, error) {
	const op = "storage.Gateway.Get"

	if code == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrURLNotFound)
	}

	entity, err := g.store.Get(ctx, TableURLs, partitionOf(code), code)
	if err != nil {
		if errors.Is(err, ErrEntityNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrURLNotFound)
		}
		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	u, err := toShortURL(entity)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// Exists reports whether a URL record with the given code is stored.
func (g *Gateway) Exists(ctx context.Context, code string) (bool, error) {
	const op = "storage.Gateway.Exists"

	_, err := g.Get(ctx, code)
	if err != nil {
		if errors.Is(err, ErrURLNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}

// ListAll returns every URL record, draining all continuation pages before
// returning so callers never see a partial snapshot. The sentinel counter row
// is filtered out. Ordering is unspecified.
func (g *Gateway) ListAll(ctx context.Context) ([]models.ShortURL, error) {
	const op = "storage.Gateway.ListAll"

	var urls []models.ShortURL
	token := ""
	for {
		page, err := g.store.Scan(ctx, TableURLs, "", token)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to scan url records: %w", op, err)
		}

		for _, entity := range page.Entities {
			if entity.RowKey == counterRowKey {
				continue
			}
			u, err := toShortURL(&entity)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			urls = append(urls, *u)
		}

		if page.NextToken == "" {
			return urls, nil
		}
		token = page.NextToken
	}
}

// Save upserts a URL record with insert-or-merge semantics: fields absent
// from the record's persisted shape are never clobbered. It returns the
// record as stored.
func (g *Gateway) Save(ctx context.Context, u *models.ShortURL) (*models.ShortURL, error) {
	const op = "storage.Gateway.Save"

	if u.Code == "" {
		return nil, fmt.Errorf("%s: record has no code", op)
	}

	raw, err := json.Marshal(u.Schedules)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to serialize schedules: %w", op, err)
	}

	attrs, err := entityAttrs(urlEntity{
		Code:         u.Code,
		Destination:  u.Destination,
		Title:        u.Title,
		ClickCount:   u.ClickCount,
		Archived:     u.Archived,
		SchedulesRaw: string(raw),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entity := Entity{
		PartitionKey: partitionOf(u.Code),
		RowKey:       u.Code,
		Attrs:        attrs,
	}
	if err := g.store.InsertOrMerge(ctx, TableURLs, entity); err != nil {
		return nil, fmt.Errorf("%s: failed to save url record: %w", op, err)
	}

	return u, nil
}

// NextCounterValue increments and returns the global counter stored in the
// sentinel row, seeding it at the first call. Values are consumed, never
// reclaimed, even when the caller's attempt fails afterwards.
//
// The read-modify-write is not isolated: the store offers no concurrency
// token, so concurrent callers can rarely observe the same value. The random
// code suffix absorbs that race; see shortcode.Encode.
func (g *Gateway) NextCounterValue(ctx context.Context) (int64, error) {
	const op = "storage.Gateway.NextCounterValue"

	counter := counterEntity{NextID: counterSeed}

	entity, err := g.store.Get(ctx, TableURLs, counterPartitionKey, counterRowKey)
	if err != nil && !errors.Is(err, ErrEntityNotFound) {
		return 0, fmt.Errorf("%s: failed to read counter: %w", op, err)
	}
	if err == nil {
		if err := decodeAttrs(entity.Attrs, &counter); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
	}

	counter.NextID++

	attrs, err := entityAttrs(counter)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	err = g.store.InsertOrMerge(ctx, TableURLs, Entity{
		PartitionKey: counterPartitionKey,
		RowKey:       counterRowKey,
		Attrs:        attrs,
	})
	if err != nil {
		return 0, fmt.Errorf("%s: failed to write counter: %w", op, err)
	}

	return counter.NextID, nil
}

// RecordClick appends a click event for the code at the given instant. The
// row key is a fresh random identifier, so the insert can never collide.
func (g *Gateway) RecordClick(ctx context.Context, code string, now time.Time) error {
	const op = "storage.Gateway.RecordClick"

	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("%s: failed to generate click id: %w", op, err)
	}

	attrs, err := entityAttrs(clickEntity{
		Code:      code,
		Timestamp: now.Format(models.ClickTimestampLayout),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = g.store.InsertOrMerge(ctx, TableClicks, Entity{
		PartitionKey: code,
		RowKey:       id,
		Attrs:        attrs,
	})
	if err != nil {
		return fmt.Errorf("%s: failed to record click: %w", op, err)
	}

	return nil
}

// ListClicksByCode returns the click events for a code, or every click event
// when code is empty. Like ListAll it drains every continuation page before
// returning.
func (g *Gateway) ListClicksByCode(ctx context.Context, code string) ([]models.ClickEvent, error) {
	const op = "storage.Gateway.ListClicksByCode"

	var events []models.ClickEvent
	token := ""
	for {
		page, err := g.store.Scan(ctx, TableClicks, code, token)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to scan click events: %w", op, err)
		}

		for _, entity := range page.Entities {
			var click clickEntity
			if err := decodeAttrs(entity.Attrs, &click); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			events = append(events, models.ClickEvent{
				Code:      click.Code,
				ID:        entity.RowKey,
				Timestamp: click.Timestamp,
			})
		}

		if page.NextToken == "" {
			return events, nil
		}
		token = page.NextToken
	}
}

func partitionOf(code string) string {
	return code[:1]
}

func toShortURL(entity *Entity) (*models.ShortURL, error) {
	var rec urlEntity
	if err := decodeAttrs(entity.Attrs, &rec); err != nil {
		return nil, err
	}

	u := &models.ShortURL{
		Code:        rec.Code,
		Destination: rec.Destination,
		Title:       rec.Title,
		ClickCount:  rec.ClickCount,
		Archived:    rec.Archived,
	}

	if rec.SchedulesRaw != "" {
		if err := json.Unmarshal([]byte(rec.SchedulesRaw), &u.Schedules); err != nil {
			return nil, fmt.Errorf("failed to deserialize schedules: %w", err)
		}
	}

	return u, nil
}
