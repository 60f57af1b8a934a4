package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/clickwise/shortener/internal/models"
	"github.com/clickwise/shortener/internal/service"
	"github.com/clickwise/shortener/internal/storage"
	"github.com/clickwise/shortener/pkg/response"
)

// handlePing handles health check requests to ensure the server is running.
func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

// scheduleRequest is one recurring override window in a create or update
// payload.
type scheduleRequest struct {
	Start           time.Time `json:"start" validate:"required"`
	End             time.Time `json:"end" validate:"required"`
	AlternativeURL  string    `json:"alternativeUrl" validate:"required,url"`
	Cron            string    `json:"cron"`
	DurationMinutes int       `json:"durationMinutes" validate:"min=0"`
}

// createURLRequest represents the request payload for creating a short URL.
type createURLRequest struct {
	URL       string            `json:"url" validate:"required,url"`
	Vanity    string            `json:"vanity"`
	Title     string            `json:"title"`
	Schedules []scheduleRequest `json:"schedules" validate:"dive"`
}

// updateURLRequest represents the request payload for updating a short URL.
// The code is taken from the path and cannot change.
type updateURLRequest struct {
	URL       string            `json:"url" validate:"required,url"`
	Title     string            `json:"title"`
	Schedules []scheduleRequest `json:"schedules" validate:"dive"`
}

// urlResponse represents the response payload for a short URL operation.
type urlResponse struct {
	Code       string            `json:"code"`
	ShortURL   string            `json:"short_url"`
	URL        string            `json:"url"`
	Title      string            `json:"title,omitempty"`
	ClickCount int64             `json:"click_count"`
	Archived   bool              `json:"archived"`
	Schedules  []models.Schedule `json:"schedules,omitempty"`
}

// clickStatsResponse represents the response payload for the per-day click
// aggregation of one short URL.
type clickStatsResponse struct {
	ShortURL string             `json:"short_url"`
	Items    []models.ClickDate `json:"items"`
}

func toSchedules(reqs []scheduleRequest) []models.Schedule {
	if len(reqs) == 0 {
		return nil
	}

	schedules := make([]models.Schedule, 0, len(reqs))
	for _, req := range reqs {
		schedules = append(schedules, models.Schedule{
			Start:           req.Start,
			End:             req.End,
			AlternativeURL:  req.AlternativeURL,
			Cron:            req.Cron,
			DurationMinutes: req.DurationMinutes,
		})
	}

	return schedules
}

// toURLResponse converts a ShortURL model from the business layer into a
// response payload rendered on the given host.
func toURLResponse(u *models.ShortURL, host string) urlResponse {
	return urlResponse{
		Code:       u.Code,
		ShortURL:   u.ShortLink(host),
		URL:        u.Destination,
		Title:      u.Title,
		ClickCount: u.ClickCount,
		Archived:   u.Archived,
		Schedules:  u.Schedules,
	}
}

// handleCreateURL handles POST requests to create a short URL.
//
// The request must contain a valid destination URL and may carry a vanity
// code, a title and override schedules. A vanity code that is already taken
// answers 409.
func handleCreateURL(svc URLService, validate *validator.Validate, opts Options) http.HandlerFunc {
	const op = "api.http.handleCreateURL"
	const successMsg = "The short URL has been created successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req createURLRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		url, err := svc.CreateShortURL(r.Context(), service.CreateRequest{
			Destination: req.URL,
			Vanity:      req.Vanity,
			Title:       req.Title,
			Schedules:   toSchedules(req.Schedules),
		})
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidDestination):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.BadRequestResponse)
			case errors.Is(err, storage.ErrCodeExists):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.ConflictResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(http.StatusCreated, successMsg, toURLResponse(url, opts.host(r))))
	}
}

// handleUpdateURL handles PUT requests to update an existing short URL.
func handleUpdateURL(svc URLService, validate *validator.Validate, opts Options) http.HandlerFunc {
	const op = "api.http.handleUpdateURL"
	const successMsg = "The short URL was successfully updated."

	return func(w http.ResponseWriter, r *http.Request) {
		var req updateURLRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		code := chi.URLParam(r, "code")

		url, err := svc.UpdateShortURL(r.Context(), code, service.UpdateRequest{
			Destination: req.URL,
			Title:       req.Title,
			Schedules:   toSchedules(req.Schedules),
		})
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidDestination):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.BadRequestResponse)
			case errors.Is(err, storage.ErrURLNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(http.StatusOK, successMsg, toURLResponse(url, opts.host(r))))
	}
}

// handleArchiveURL handles DELETE requests to archive a short URL.
//
// Archival keeps the record but hides it from listings; the short code stays
// reserved. The handler answers 404 if the code doesn't exist.
func handleArchiveURL(svc URLService, opts Options) http.HandlerFunc {
	const op = "api.http.handleArchiveURL"
	const successMsg = "The short URL was successfully archived."

	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		url, err := svc.ArchiveShortURL(r.Context(), code)
		if err != nil {
			if errors.Is(err, storage.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(http.StatusOK, successMsg, toURLResponse(url, opts.host(r))))
	}
}

// handleListURLs handles GET requests to list all non-archived short URLs.
func handleListURLs(svc URLService, opts Options) http.HandlerFunc {
	const op = "api.http.handleListURLs"
	const successMsg = "The short URLs were successfully listed."

	return func(w http.ResponseWriter, r *http.Request) {
		urls, err := svc.ListActiveURLs(r.Context())
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		host := opts.host(r)

		resp := make([]urlResponse, 0, len(urls))
		for i := range urls {
			resp = append(resp, toURLResponse(&urls[i], host))
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(http.StatusOK, successMsg, resp))
	}
}

// handleClickStats handles GET requests for the per-day click counts of one
// short URL.
func handleClickStats(svc URLService, opts Options) http.HandlerFunc {
	const op = "api.http.handleClickStats"
	const successMsg = "The click statistics were successfully retrieved."

	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		stats, err := svc.GetDailyClickStats(r.Context(), code)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		resp := clickStatsResponse{
			ShortURL: opts.host(r) + "/" + code,
			Items:    stats,
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(http.StatusOK, successMsg, resp))
	}
}

// handleRedirect handles the public GET /{code} route: it resolves the code
// against the record's schedules, records the click and issues a 302 to the
// winning destination. Unknown codes fall back to the configured default
// redirect, or answer 404 when none is configured.
func handleRedirect(svc URLService, opts Options) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		dest, err := svc.ResolveAndRecordClick(r.Context(), code, time.Now())
		if err != nil {
			if errors.Is(err, storage.ErrURLNotFound) {
				if opts.DefaultRedirectURL != "" {
					http.Redirect(w, r, opts.DefaultRedirectURL, http.StatusFound)
					return
				}

				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		http.Redirect(w, r, dest, http.StatusFound)
	}
}
