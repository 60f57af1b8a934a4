package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/clickwise/shortener/internal/models"
	"github.com/clickwise/shortener/internal/service"
)

// URLService defines the interface for the core short URL business logic.
type URLService interface {
	CreateShortURL(ctx context.Context, req service.CreateRequest) (*models.ShortURL, error)
	UpdateShortURL(ctx context.Context, code string, req service.UpdateRequest) (*models.ShortURL, error)
	ArchiveShortURL(ctx context.Context, code string) (*models.ShortURL, error)
	ResolveAndRecordClick(ctx context.Context, code string, now time.Time) (string, error)
	ListActiveURLs(ctx context.Context) ([]models.ShortURL, error)
	GetDailyClickStats(ctx context.Context, code string) ([]models.ClickDate, error)
}

// Options carries the redirect-facing settings the handlers need.
type Options struct {
	// DefaultRedirectURL is where unknown short codes are sent. Empty means
	// unknown codes answer 404 instead.
	DefaultRedirectURL string

	// CustomDomain overrides the request host when rendering short links.
	CustomDomain string
}

// host resolves the host short links are rendered on for a given request.
func (o Options) host(r *http.Request) string {
	if o.CustomDomain != "" {
		return o.CustomDomain
	}
	return r.Host
}

func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter initializes and returns a new Chi router configured with
// middleware and routes for the short URL API. The bare GET /{code} route
// performs the public redirect; everything else lives under /api.
func NewRouter(logger *httplog.Logger, urlSvc URLService, opts Options) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger.yml")
	})

	r.Route("/api", func(r chi.Router) {
		validate := getValidate()

		r.Get("/ping", handlePing)

		r.Route("/urls", func(r chi.Router) {
			r.Post("/", handleCreateURL(urlSvc, validate, opts))
			r.Get("/", handleListURLs(urlSvc, opts))

			r.Route("/{code}", func(r chi.Router) {
				r.Put("/", handleUpdateURL(urlSvc, validate, opts))
				r.Delete("/", handleArchiveURL(urlSvc, opts))
				r.Get("/stats", handleClickStats(urlSvc, opts))
			})
		})
	})

	r.Get("/{code}", handleRedirect(urlSvc, opts))

	return r
}
