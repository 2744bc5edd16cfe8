package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"server/internal/http/handlers"
	"server/internal/infra/metrics"
	"server/internal/middleware"
)

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	RateLimit      int
	RateWindow     time.Duration

	// StaticDir, when set, is served under /static for locally stored images.
	StaticDir string
}

func NewRouter(app *handlers.App, logger zerolog.Logger, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
	)

	if opts.RateLimit > 0 {
		r.Use(middleware.RateLimit(opts.RateLimit, opts.RateWindow))
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	})
	r.Use(c.Handler)

	r.Get("/v1/healthz", app.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	if opts.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir)))
		r.Handle("/static/*", fs)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))

		r.Get("/v1/me", app.Me)

		r.Route("/v1/photos", func(r chi.Router) {
			r.Post("/generate", app.PhotosGenerate)
			r.Post("/batch", app.PhotosBatch)
			r.Post("/upload", app.PhotosUpload)
			r.Get("/", app.PhotosHistory)
			r.Get("/{id}", app.PhotoGet)
		})

		r.Route("/v1/credits", func(r chi.Router) {
			r.Get("/", app.CreditsBalance)
			r.Get("/history", app.CreditsHistory)
			r.Post("/purchase", app.CreditsPurchase)
		})

		r.Get("/v1/ws", app.WebSocket)
	})

	return r
}
