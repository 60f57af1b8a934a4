// Package service implements the core operations of the shortener: creating,
// updating and archiving short URLs, resolving redirects, and reporting click
// statistics. It composes the storage gateway, the code generator, the
// schedule evaluator and the click aggregator; it contains no transport
// logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/clickwise/shortener/internal/clickstats"
	"github.com/clickwise/shortener/internal/models"
	"github.com/clickwise/shortener/internal/schedule"
	"github.com/clickwise/shortener/internal/shortcode"
	"github.com/clickwise/shortener/internal/storage"
)

// ErrInvalidDestination is returned when a destination is empty or not a
// well-formed absolute URL. Validation happens before any storage call.
var ErrInvalidDestination = errors.New("destination is not a valid absolute url")

// defaultCron applies to submitted schedules that leave the cron expression
// empty: fire every minute.
const defaultCron = "* * * * *"

// storageGateway is the slice of the storage layer the service needs.
type storageGateway interface {
	Get(ctx context.Context, code string) (*models.ShortURL, error)
	Exists(ctx context.Context, code string) (bool, error)
	ListAll(ctx context.Context) ([]models.ShortURL, error)
	Save(ctx context.Context, u *models.ShortURL) (*models.ShortURL, error)
	NextCounterValue(ctx context.Context) (int64, error)
	RecordClick(ctx context.Context, code string, now time.Time) error
	ListClicksByCode(ctx context.Context, code string) ([]models.ClickEvent, error)
}

// CreateRequest carries the already-deserialized input for CreateShortURL.
type CreateRequest struct {
	Destination string
	Vanity      string
	Title       string
	Schedules   []models.Schedule
}

// UpdateRequest carries the input for UpdateShortURL. The code is immutable
// and travels separately.
type UpdateRequest struct {
	Destination string
	Title       string
	Schedules   []models.Schedule
}

// URLService provides the core short URL operations.
type URLService struct {
	storage   storageGateway
	generator *shortcode.Generator
}

// New creates a URLService on top of the given storage gateway.
func New(gw storageGateway) *URLService {
	return &URLService{
		storage:   gw,
		generator: shortcode.New(gw),
	}
}

// CreateShortURL allocates a code and stores a new URL record. A requested
// vanity that is already taken surfaces as storage.ErrCodeExists before
// anything is written; an invalid destination surfaces as
// ErrInvalidDestination.
func (s *URLService) CreateShortURL(ctx context.Context, req CreateRequest) (*models.ShortURL, error) {
	const op = "service.URLService.CreateShortURL"

	destination, err := validDestination(req.Destination)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	vanity := strings.TrimSpace(req.Vanity)
	if vanity != "" {
		exists, err := s.storage.Exists(ctx, vanity)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to check vanity: %w", op, err)
		}
		if exists {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrCodeExists)
		}
	}

	code, err := s.generator.Allocate(ctx, vanity)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to allocate code: %w", op, err)
	}

	u := &models.ShortURL{
		Code:        code,
		Destination: destination,
		Title:       strings.TrimSpace(req.Title),
		Schedules:   normalizeSchedules(req.Schedules),
	}

	u, err = s.storage.Save(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to save url: %w", op, err)
	}

	return u, nil
}

// UpdateShortURL replaces the destination, title and schedules of an existing
// record. The click count and archived flag are untouched.
func (s *URLService) UpdateShortURL(ctx context.Context, code string, req UpdateRequest) (*models.ShortURL, error) {
	const op = "service.URLService.UpdateShortURL"

	destination, err := validDestination(req.Destination)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u, err := s.storage.Get(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load url: %w", op, err)
	}

	u.Destination = destination
	u.Title = strings.TrimSpace(req.Title)
	u.Schedules = normalizeSchedules(req.Schedules)

	u, err = s.storage.Save(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to save url: %w", op, err)
	}

	return u, nil
}

// ArchiveShortURL soft-deletes a record: it stays stored but disappears from
// listings.
func (s *URLService) ArchiveShortURL(ctx context.Context, code string) (*models.ShortURL, error) {
	const op = "service.URLService.ArchiveShortURL"

	u, err := s.storage.Get(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load url: %w", op, err)
	}

	u.Archived = true

	u, err = s.storage.Save(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to save url: %w", op, err)
	}

	return u, nil
}

// ResolveAndRecordClick resolves the effective destination of a code at the
// given instant and records the click: the record's click count is
// incremented and an event appended. The two writes are independent, not
// transactional; when the append fails after the increment succeeded, the
// count stays ahead of the events by one.
func (s *URLService) ResolveAndRecordClick(ctx context.Context, code string, now time.Time) (string, error) {
	const op = "service.URLService.ResolveAndRecordClick"

	u, err := s.storage.Get(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%s: failed to load url: %w", op, err)
	}

	destination, err := schedule.Resolve(u, now)
	if err != nil {
		return "", fmt.Errorf("%s: failed to resolve destination: %w", op, err)
	}

	u.ClickCount++
	if _, err := s.storage.Save(ctx, u); err != nil {
		return "", fmt.Errorf("%s: failed to increment click count: %w", op, err)
	}

	if err := s.storage.RecordClick(ctx, code, now); err != nil {
		return "", fmt.Errorf("%s: failed to record click: %w", op, err)
	}

	return destination, nil
}

// ListActiveURLs returns every non-archived record. Ordering is unspecified.
func (s *URLService) ListActiveURLs(ctx context.Context) ([]models.ShortURL, error) {
	const op = "service.URLService.ListActiveURLs"

	urls, err := s.storage.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	active := make([]models.ShortURL, 0, len(urls))
	for _, u := range urls {
		if !u.Archived {
			active = append(active, u)
		}
	}

	return active, nil
}

// GetDailyClickStats aggregates the click history of a code into per-day
// counts sorted by date. A code with no recorded clicks yields an empty
// result rather than an error.
func (s *URLService) GetDailyClickStats(ctx context.Context, code string) ([]models.ClickDate, error) {
	const op = "service.URLService.GetDailyClickStats"

	events, err := s.storage.ListClicksByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list clicks: %w", op, err)
	}

	dates, err := clickstats.Aggregate(events)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to aggregate clicks: %w", op, err)
	}

	return dates, nil
}

// validDestination trims the destination and requires a well-formed absolute
// URL with a host.
func validDestination(destination string) (string, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "", ErrInvalidDestination
	}

	parsed, err := url.Parse(destination)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return "", ErrInvalidDestination
	}

	return destination, nil
}

// normalizeSchedules applies the every-minute default to schedules submitted
// without a cron expression.
func normalizeSchedules(schedules []models.Schedule) []models.Schedule {
	for i := range schedules {
		if schedules[i].Cron == "" {
			schedules[i].Cron = defaultCron
		}
	}
	return schedules
}
