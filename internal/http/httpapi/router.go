package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nollyai/studio-server/internal/http/handlers"
	"github.com/nollyai/studio-server/internal/infra"
	"github.com/nollyai/studio-server/internal/middleware"
)

// RouterOptions carries the cross-cutting pieces the router wires in front
// of the handlers.
type RouterOptions struct {
	JWTSecret      string
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	CountryLookup  middleware.CountryLookup
	Logger         infra.Logger
}

func NewRouter(app *handlers.App, opts RouterOptions) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.CORS(opts.AllowedOrigins))
	r.Use(middleware.Locale(opts.CountryLookup))
	r.Use(middleware.RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/stats/summary", app.StatsSummary)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(opts.JWTSecret))

		r.Route("/v1/jobs", func(r chi.Router) {
			r.Post("/", app.SubmitJob)
			r.Get("/", app.ListJobs)
			r.Get("/{job_id}", app.JobStatus)
			r.Get("/{job_id}/wait", app.WaitJob)
			r.Post("/{job_id}/retry", app.RetryJob)
		})

		r.Route("/v1/credits", func(r chi.Router) {
			r.Get("/", app.CreditStatus)
			r.Post("/claim", app.ClaimDailyCredits)
			r.Post("/purchase", app.ConfirmPurchase)
		})
	})

	return r
}
