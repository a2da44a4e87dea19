package handler

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/mark-c-hall/posterpalette/internal/config"
	mw "github.com/mark-c-hall/posterpalette/internal/middleware"
	"github.com/mark-c-hall/posterpalette/internal/models"
	"github.com/mark-c-hall/posterpalette/internal/telemetry"
	"github.com/mark-c-hall/posterpalette/internal/tmdb"
	"github.com/mark-c-hall/posterpalette/internal/vision"
)

// Catalog is the movie metadata upstream.
type Catalog interface {
	DiscoverMovies(ctx context.Context, p tmdb.DiscoverParams) (*tmdb.ResultsResponse, error)
	SearchMovies(ctx context.Context, query string) (*tmdb.ResultsResponse, error)
	GetGenres(ctx context.Context) ([]models.Genre, error)
}

// Extractor forwards chat-completion requests to the vision model.
type Extractor interface {
	Forward(ctx context.Context, body []byte) (*vision.Response, error)
}

// Deps are the collaborators the routes call into.
type Deps struct {
	Catalog     Catalog
	Extractor   Extractor
	ImageClient *http.Client
	Static      fs.FS
	Metrics     *telemetry.Metrics
}

type Handler struct {
	catalog   Catalog
	extractor Extractor
	images    *imageProxy
	static    fs.FS
	metrics   *telemetry.Metrics
	validate  *validator.Validate
	logger    *slog.Logger
	maxBody   int64
	handler   http.Handler
}

// NewHandler builds the routed, middleware-wrapped proxy. ctx bounds the
// lifetime of background work such as the rate limiter sweep.
func NewHandler(ctx context.Context, deps Deps, cfg config.Config, logger *slog.Logger) (*Handler, error) {
	h := &Handler{
		catalog:   deps.Catalog,
		extractor: deps.Extractor,
		images:    newImageProxy(deps.ImageClient, cfg.Images.AllowedHosts),
		static:    deps.Static,
		metrics:   deps.Metrics,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
		maxBody:   cfg.Vision.MaxBodyBytes,
	}

	mux := http.NewServeMux()
	h.addRoutes(mux)

	var handler http.Handler = mux
	if h.metrics != nil {
		handler = mw.Metrics(h.metrics)(handler)
	}
	handler = mw.Timeout(cfg.Server.RequestTimeout)(handler)
	handler = mw.RateLimit(ctx, rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateBurst, logger)(handler)
	handler = mw.Recovery(logger)(handler)
	handler = mw.Logging(logger)(handler)
	handler = mw.CORS(cfg.Server.CORSOrigin)(handler)
	handler = telemetry.Handler(handler, "posterpalette")

	h.handler = handler
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

func (h *Handler) addRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/movies", h.discoverMovies)
	mux.HandleFunc("GET /api/searchmovies", h.searchMovies)
	mux.HandleFunc("GET /api/genres", h.listGenres)
	mux.HandleFunc("GET /proxy-image", h.proxyImage)
	mux.HandleFunc("POST /api/extract-colors", h.extractColors)
	mux.HandleFunc("GET /healthz", h.healthz)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}
	if h.static != nil {
		mux.Handle("GET /", http.FileServerFS(h.static))
	}
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
