package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sagarc03/assetgate"
)

// StorePrefix is where HandlerConfig.Store is mounted.
const StorePrefix = "/store"

// Service is the gateway the handlers delegate to.
type Service interface {
	InitiateUpload(ctx context.Context) (assetgate.UploadCapability, error)
	RecordStatus(ctx context.Context, id, status string) error
	InitiateDownload(ctx context.Context, id string, timeoutSeconds int) (assetgate.DownloadCapability, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	// DefaultDownloadTimeout is used when GET /asset/{id} has no timeout
	// parameter. Zero means assetgate.DefaultDownloadTimeout.
	DefaultDownloadTimeout int
	CORS                   CORSConfig
	// Logger receives one line per request. Nil means slog.Default().
	Logger *slog.Logger
	// Metrics, when set, is served at MetricsPath.
	Metrics     http.Handler
	MetricsPath string
	// Health, when set, backs GET /health.
	Health Pinger
	// Store, when set, is mounted at StorePrefix. Used by the local backend to
	// serve presigned object requests from the same listener.
	Store http.Handler
}

// Handler exposes the gateway operations over HTTP.
type Handler struct {
	config  HandlerConfig
	service Service
	logger  *slog.Logger
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		config:  *config,
		service: service,
		logger:  logger,
	}
}

// Router returns an http.Handler with the asset routes and any optional
// metrics, health and store routes configured.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware(h.logger))
	r.Use(middleware.Recoverer)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.NotFound(writeNotFound)
	r.MethodNotAllowed(writeMethodNotAllowed)

	r.Route("/asset", func(r chi.Router) {
		r.Post("/", h.handleInitiateUpload)
		r.Put("/{id}", h.handleRecordStatus)
		r.Get("/{id}", h.handleInitiateDownload)
	})

	if h.config.Health != nil {
		r.Get("/health", h.handleHealth)
	}

	if h.config.Metrics != nil {
		path := h.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, h.config.Metrics)
	}

	if h.config.Store != nil {
		r.Mount(StorePrefix, h.config.Store)
	}

	return r
}

func (h *Handler) handleInitiateUpload(w http.ResponseWriter, r *http.Request) {
	upload, err := h.service.InitiateUpload(r.Context())
	if err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, upload)
}

// statusUpdate is the PUT /asset/{id} body.
type statusUpdate struct {
	Status string `json:"Status"`
}

func (h *Handler) handleRecordStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body statusUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		HandleError(w, r, fmt.Errorf("%w: %w", ErrMalformedBody, err))
		return
	}

	if err := h.service.RecordStatus(r.Context(), id, body.Status); err != nil {
		HandleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleInitiateDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	timeout, err := h.parseTimeout(r)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	download, err := h.service.InitiateDownload(r.Context(), id, timeout)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, download)
}

// parseTimeout reads the timeout query parameter in seconds. Absent means
// the configured default; anything but a positive integer is rejected.
func (h *Handler) parseTimeout(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("timeout")
	if raw == "" {
		if h.config.DefaultDownloadTimeout > 0 {
			return h.config.DefaultDownloadTimeout, nil
		}
		return assetgate.DefaultDownloadTimeout, nil
	}

	timeout, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidTimeout, raw)
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("%w: %d is not positive", ErrInvalidTimeout, timeout)
	}
	return timeout, nil
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.config.Health.Ping(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "health check failed", "error", err)
		_ = WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// isClientError reports whether err was caused by the request itself.
func isClientError(err error) bool {
	return errors.Is(err, ErrInvalidTimeout) || errors.Is(err, ErrMalformedBody)
}
