package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/storekeep/storekeep/internal/inventory"
	"github.com/storekeep/storekeep/internal/ledger"
	"github.com/storekeep/storekeep/internal/observability"
	"github.com/storekeep/storekeep/internal/partners"
	"github.com/storekeep/storekeep/internal/posting"
	"github.com/storekeep/storekeep/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	PostingHandler   *posting.Handler
	LedgerHandler    *ledger.Handler
	InventoryHandler *inventory.Handler
	PartnersHandler  *partners.Handler
	JobsHandler      *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with StoreKeep defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(ActorMiddleware(params.Logger))
		if params.PostingHandler != nil {
			params.PostingHandler.MountRoutes(r)
		}
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.InventoryHandler != nil {
			params.InventoryHandler.MountRoutes(r)
		}
		if params.PartnersHandler != nil {
			params.PartnersHandler.MountRoutes(r)
		}
	})

	return r
}
