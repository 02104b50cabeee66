package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/api/handlers"
	mw "github.com/ConflictingTheories/meme-citadel-sub000/internal/api/middleware"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/buildconfig"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Options struct {
	RateLimitRPS   float64
	RateLimitBurst int
	// HealthCheck reports backend reachability. Nil means always healthy.
	HealthCheck func(ctx context.Context) error
}

// App holds the router and the engine it serves.
type App struct {
	Router    *chi.Mux
	Engine    *service.Engine
	startTime time.Time
}

func NewApp(engine *service.Engine, opts Options, logger *zap.Logger) *App {
	identityHandler := handlers.NewIdentityHandler(engine, logger)
	claimHandler := handlers.NewClaimHandler(engine, logger)
	edgeHandler := handlers.NewEdgeHandler(engine, logger)
	nodeHandler := handlers.NewNodeHandler(engine, logger)
	queryHandler := handlers.NewQueryHandler(engine, logger)
	tierLimiter := mw.NewTierLimiter()

	r := chi.NewRouter()
	app := &App{Router: r, Engine: engine, startTime: time.Now()}

	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Metrics)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))

	r.Get("/health", healthHandler(opts.HealthCheck))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/stats", app.statsHandler(logger))
	r.Get("/version", versionHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/identities", identityHandler.Derive)
		r.Get("/identities/{id}", identityHandler.Get)

		r.Get("/nodes", nodeHandler.List)
		r.Route("/nodes/{id}", func(r chi.Router) {
			r.Get("/", nodeHandler.Get)
			r.Get("/traverse", nodeHandler.Traverse)
			r.Get("/score", nodeHandler.Score)
			r.Get("/archive/verify", nodeHandler.VerifyArchive)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireIdentity(engine.Identities, logger))
				r.Use(tierLimiter.Middleware)
				r.Patch("/", nodeHandler.Update)
				r.Delete("/", nodeHandler.Retract)
			})
		})

		r.Get("/edges/{id}", edgeHandler.Get)
		r.Get("/paths", queryHandler.Path)
		r.Get("/search", queryHandler.Search)

		// Writes are attributed to an identity and count against its tier.
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireIdentity(engine.Identities, logger))
			r.Use(tierLimiter.Middleware)

			r.Post("/claims", claimHandler.Create)
			r.Post("/claims/{id}/evidence", claimHandler.AttachEvidence)
			r.Post("/edges", edgeHandler.Create)
			r.Post("/edges/{id}/votes", edgeHandler.Vote)
			r.Delete("/edges/{id}", edgeHandler.Retract)
		})
	})

	return app
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if check != nil {
			if err := check(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) statsHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": float64(memStats.Alloc) / 1024 / 1024,
				"sys_mb":   float64(memStats.Sys) / 1024 / 1024,
				"num_gc":   memStats.NumGC,
			},
		}

		graph, err := app.Engine.Graph.Stats(r.Context())
		if err != nil {
			logger.Warn("graph stats unavailable", zap.Error(err))
		} else {
			response["graph"] = graph
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

func versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(buildconfig.VersionInfo())
}
