package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nikhilbhutani/readaloud/internal/api/handlers"
	"github.com/nikhilbhutani/readaloud/internal/api/middleware"
	"github.com/nikhilbhutani/readaloud/internal/config"
)

// Deps are the services behind the HTTP surface. Queue may be nil.
type Deps struct {
	Health  *handlers.HealthHandler
	OCR     handlers.TextExtractor
	Speech  handlers.SpeechService
	Queue   handlers.WarmQueue
	Limiter *middleware.RateLimiter
	Metrics prometheus.Gatherer
}

type Router struct {
	cfg  config.HTTPConfig
	deps Deps
}

func NewRouter(cfg config.HTTPConfig, deps Deps) *Router {
	return &Router{cfg: cfg, deps: deps}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", rt.deps.Health.Healthz)
	r.Get("/readyz", rt.deps.Health.Readyz)
	if rt.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(rt.deps.Metrics, promhttp.HandlerOpts{}))
	}

	ocrH := handlers.NewOCRHandler(rt.deps.OCR)
	ttsH := handlers.NewTTSHandler(rt.deps.Speech, rt.deps.Queue)

	r.Route("/api/v1", func(r chi.Router) {
		if rt.deps.Limiter != nil {
			r.Use(rt.deps.Limiter.Limit)
		}

		r.Post("/ocr", ocrH.Extract)

		r.Route("/tts", func(r chi.Router) {
			r.Post("/", ttsH.Speak)
			r.Post("/sentences", ttsH.Sentences)
			r.Post("/warm", ttsH.Warm)
		})
	})

	return r
}
