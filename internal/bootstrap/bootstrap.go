// Package bootstrap assembles the engine from configuration. The server and
// citadelctl share it so that both see the same store, cache and policy.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/archive"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/cache"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/config"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/service"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/store"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/store/memory"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"

	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Runtime struct {
	Store     domain.Store
	Pool      *pgxpool.Pool
	Archive   *archive.BadgerArchive
	Engine    *service.Engine
	Refresher *service.TrustRefresher
	Policy    config.Policy

	closers []func() error
	started bool
	logger  *zap.Logger
}

// Open builds a Runtime from the environment. Background workers are not
// started; callers that serve traffic call Start.
func Open(ctx context.Context, logger *zap.Logger) (*Runtime, error) {
	rt := &Runtime{logger: logger}
	if err := rt.open(ctx); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) open(ctx context.Context) error {
	policy, err := config.LoadPolicy(config.PolicyPath())
	if err != nil {
		return err
	}
	rt.Policy = policy

	base, err := rt.openStore(ctx)
	if err != nil {
		return err
	}
	resilient := store.NewResilient(base, rt.logger)
	resilient.Timeout = config.StoreTimeout()
	resilient.Retries = config.StoreReadRetries()
	rt.Store = resilient

	scoreCache, err := rt.openCache(ctx)
	if err != nil {
		return err
	}

	archiveCfg := archive.InMemoryConfig()
	if path := config.ArchivePath(); path != "" {
		archiveCfg = archive.DefaultConfig(path)
	}
	arc, err := archive.Open(archiveCfg, rt.logger)
	if err != nil {
		return err
	}
	rt.Archive = arc
	rt.closers = append(rt.closers, arc.Close)

	rt.Engine = service.NewEngine(rt.Store, service.EngineOptions{
		TrustPolicy:   policy.Trust,
		ScoringPolicy: policy.Scoring,
		Archive:       arc,
		Cache:         scoreCache,
		ScoreCacheTTL: config.ScoreCacheTTL(),
		MaxDepth:      config.MaxTraversalDepth(),
		MaxHops:       config.MaxPathHops(),
	}, rt.logger)

	rt.Refresher = service.NewTrustRefresher(rt.Store, rt.Engine.Identities, rt.logger)
	rt.Refresher.SetInterval(config.TrustRefreshInterval())
	return nil
}

func (rt *Runtime) openStore(ctx context.Context) (domain.Store, error) {
	switch backend := config.StoreBackend(); backend {
	case BackendMemory:
		rt.logger.Warn("using in-memory store; data is lost on exit")
		return memory.New(), nil
	case BackendPostgres:
		pool, err := OpenPool(ctx, config.DatabaseURL())
		if err != nil {
			return nil, err
		}
		rt.Pool = pool
		rt.closers = append(rt.closers, func() error { pool.Close(); return nil })
		if err := store.Migrate(ctx, pool); err != nil {
			return nil, err
		}
		rt.logger.Info("connected to database")
		return store.NewPostgres(pool), nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", backend)
	}
}

func (rt *Runtime) openCache(ctx context.Context) (cache.Cache, error) {
	ttl := config.ScoreCacheTTL()
	switch kind := config.ScoreCache(); kind {
	case CacheNone:
		return cache.Noop{}, nil
	case CacheMemory:
		return cache.NewMemoryCache(ttl, 2*ttl), nil
	case CacheRedis:
		c, err := cache.NewRedisCacheFromURL(ctx, config.RedisURL(), ttl)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, c.Close)
		return c, nil
	default:
		return nil, fmt.Errorf("unknown SCORE_CACHE %q", kind)
	}
}

// OpenPool connects to PostgreSQL and verifies the connection.
func OpenPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, errors.New("DATABASE_URL is required for the postgres backend")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// HealthCheck pings the database when there is one.
func (rt *Runtime) HealthCheck(ctx context.Context) error {
	if rt.Pool == nil {
		return nil
	}
	return rt.Pool.Ping(ctx)
}

func (rt *Runtime) Start() {
	rt.Archive.Start()
	rt.Refresher.Start()
	rt.started = true
}

// Close stops the background workers and releases resources in reverse
// order of acquisition.
func (rt *Runtime) Close() error {
	if rt.started {
		rt.Refresher.Stop()
		rt.started = false
	}
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
