package rpc

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"creditpool/native/lendingpool"
	"creditpool/observability"
	"creditpool/rpc/middleware"
	"creditpool/storage/poolstore"
)

// ErrPoolNotFound is returned when a request names an unknown pool.
var ErrPoolNotFound = errors.New("rpc: pool not found")

// ErrPoolExists is returned when creating a pool under a taken id.
var ErrPoolExists = errors.New("rpc: pool already exists")

// Config wires the HTTP surface: auth, throttling, and default pool
// parameters for newly created pools.
type Config struct {
	Auth      middleware.AuthConfig
	RateLimit middleware.RateLimit
	Params    lendingpool.RiskParams
	Model     lendingpool.InterestModel
}

// Server exposes the lending pools over HTTP. All pool mutations flow through
// it; after each successful mutation the pool snapshot and asset-book image
// are persisted when a store is configured.
type Server struct {
	mu      sync.RWMutex
	pools   map[string]*lendingpool.Pool
	book    *lendingpool.MemoryBook
	store   *poolstore.Store
	cfg     Config
	logger  *slog.Logger
	metrics *observability.PoolMetrics
	nowFn   func() int64
}

// NewServer constructs the API server. store may be nil for ephemeral
// deployments; logger defaults to slog.Default().
func NewServer(cfg Config, book *lendingpool.MemoryBook, store *poolstore.Store, logger *slog.Logger) (*Server, error) {
	if book == nil {
		return nil, errors.New("rpc: asset book required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Model.Validate(); err != nil {
		return nil, err
	}
	return &Server{
		pools:   make(map[string]*lendingpool.Pool),
		book:    book,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		metrics: observability.Metrics(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}, nil
}

// Restore loads every persisted pool snapshot into the registry.
func (s *Server) Restore() error {
	if s.store == nil {
		return nil
	}
	snaps, err := s.store.ListPools()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range snaps {
		pool, err := lendingpool.RestorePool(snap, s.book)
		if err != nil {
			return err
		}
		s.pools[pool.ID()] = pool
		s.logger.Info("pool restored", "pool", pool.ID())
	}
	return nil
}

// AddPool registers an already-constructed pool, used by Restore and tests.
func (s *Server) AddPool(pool *lendingpool.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pools[pool.ID()]; ok {
		return ErrPoolExists
	}
	s.pools[pool.ID()] = pool
	return nil
}

func (s *Server) pool(id string) (*lendingpool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pool, ok := s.pools[id]
	if !ok {
		return nil, ErrPoolNotFound
	}
	return pool, nil
}

func (s *Server) poolIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.pools))
	for id := range s.pools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// persist writes the pool snapshot and balance image. Persistence failures
// are logged, not surfaced: the in-memory state is already committed.
func (s *Server) persist(pool *lendingpool.Pool) {
	if s.store == nil {
		return
	}
	if err := s.store.SavePool(pool.Snapshot()); err != nil {
		s.logger.Error("persist pool snapshot", "pool", pool.ID(), "err", err)
	}
	if err := s.store.SaveBalances(s.book.Accounts()); err != nil {
		s.logger.Error("persist balances", "err", err)
	}
}

func (s *Server) observe(pool, op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ObserveOperation(pool, op, outcome, time.Since(start))
}

func (s *Server) refreshGauges(pool *lendingpool.Pool) {
	stats := pool.Stats()
	s.metrics.SetPoolGauges(pool.ID(), stats.TotalLiquidity, stats.TotalBorrowed, stats.BorrowRateBps)
}

// Router assembles the chi routes, applying rate limiting globally and the
// bearer-token gate to mutating endpoints.
func (s *Server) Router() http.Handler {
	auth := middleware.NewAuthenticator(s.cfg.Auth, s.logger)
	limiter := middleware.NewRateLimiter(s.cfg.RateLimit)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(limiter.Middleware())

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/pools", func(r chi.Router) {
		r.Get("/", s.handleListPools)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware())
			r.Post("/", s.handleCreatePool)
		})

		r.Route("/{poolID}", func(r chi.Router) {
			r.Get("/", s.handleStats)
			r.Get("/rate", s.handleRate)
			r.Get("/liquidatable", s.handleLiquidatable)
			r.Get("/deposits/{positionID}", s.handleGetDeposit)
			r.Get("/borrows/{positionID}", s.handleGetBorrow)
			r.Get("/borrows/{positionID}/health", s.handleHealthFactor)

			r.Group(func(r chi.Router) {
				r.Use(auth.Middleware())
				r.Post("/deposit", s.handleDeposit)
				r.Post("/withdraw", s.handleWithdraw)
				r.Post("/borrow", s.handleBorrow)
				r.Post("/repay", s.handleRepay)
				r.Post("/liquidate", s.handleLiquidate)
				r.Post("/pause", s.handlePause)
				r.Post("/unpause", s.handleUnpause)
			})
		})
	})
	return r
}
