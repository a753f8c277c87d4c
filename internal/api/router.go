package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/gitsmart/gitsmart/internal/metrics"
	"github.com/gitsmart/gitsmart/internal/session"
)

// RouterOptions carries the cross-cutting pieces wired into the middleware
// chain. Nil fields disable the corresponding middleware.
type RouterOptions struct {
	Logger   zerolog.Logger
	Sessions *session.Store
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer
	Limiter  *RateLimiter
}

func NewRouter(h *Handler, opts RouterOptions) chi.Router {
	r := chi.NewRouter()
	r.Use(cors)
	r.Use(RequestLogger(opts.Logger))
	r.Use(Recoverer(opts.Logger))
	if opts.Metrics != nil {
		r.Use(Metrics(opts.Metrics))
	}

	r.Get("/health", h.Health)
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(opts.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		if opts.Sessions != nil {
			r.Use(WithSession(opts.Sessions))
		}
		if opts.Limiter != nil {
			r.Use(opts.Limiter.Middleware)
		}

		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Get("/settings", h.Settings)
		r.Post("/settings", h.Settings)
		r.Get("/public_repos", h.PublicRepos)

		// Browsing works unauthenticated for public repositories when the
		// owner is given explicitly.
		r.Get("/list_files", h.ListFiles)
		r.Get("/get_file", h.GetFile)
		r.Get("/download/{owner}/{repo}", h.Download)

		r.Group(func(r chi.Router) {
			r.Use(RequireSession)
			r.Get("/whoami", h.WhoAmI)
			r.Get("/repos", h.Repos)
			r.Post("/create_repo", h.CreateRepo)
			r.Post("/delete_repo", h.DeleteRepo)
			r.Post("/delete_file", h.DeleteFile)
			r.Post("/upload_files", h.UploadFiles)
			r.Post("/add_cicd", h.AddCICD)
			r.Post("/run", h.Run)
		})
	})
	return r
}
