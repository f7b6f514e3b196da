package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/seafloor-geodesy/geosea/services/api/config"
	"github.com/seafloor-geodesy/geosea/services/api/db"
)

// Store is the read side of the baseline database used by the handlers.
type Store interface {
	Ping(ctx context.Context) error
	ListPairs(ctx context.Context) ([]db.Pair, error)
	GetPair(ctx context.Context, id string) (*db.Pair, error)
	FetchBaselines(ctx context.Context, q db.BaselineQuery) ([]db.Baseline, error)
	GetBaselineStats(ctx context.Context, pairID string) (*db.BaselineStats, error)
	ListRuns(ctx context.Context, f db.RunFilter, limit, offset int) (*db.RunsPage, error)
	GetRun(ctx context.Context, id uuid.UUID) (*db.Run, error)
	LatestRun(ctx context.Context) (*db.Run, error)
	ListEstimates(ctx context.Context, q db.EstimateQuery) ([]db.Estimate, error)
}

// Server bundles router and dependencies for the REST API.
type Server struct {
	cfg     config.Config
	store   Store
	engine  *gin.Engine
	metrics *metrics
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, store Store) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())
	engine.Use(corsMiddleware())

	m := newMetrics()
	engine.Use(m.middleware())

	if cfg.BearerToken != "" {
		engine.Use(bearerAuthMiddleware(cfg.BearerToken))
	}

	server := &Server{cfg: cfg, store: store, engine: engine, metrics: m}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(s.metrics.handler()))

	s.registerV1Routes()
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func bearerAuthMiddleware(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Next()
			return
		}
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token != expected {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func apiVersionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-API-Version", "v1")
		c.Next()
	}
}

// timeRange reads start, end and last_n_days. An explicit start wins over
// last_n_days.
func timeRange(c *gin.Context) (since, until *time.Time, err error) {
	if daysStr := c.Query("last_n_days"); daysStr != "" {
		days, convErr := strconv.Atoi(daysStr)
		if convErr != nil || days <= 0 {
			return nil, nil, errors.New("invalid last_n_days")
		}
		t := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
		since = &t
	}

	if startStr := c.Query("start"); startStr != "" {
		t, parseErr := dateparse.ParseIn(startStr, time.UTC)
		if parseErr != nil {
			return nil, nil, errors.New("invalid start timestamp")
		}
		tt := t.UTC()
		since = &tt
	}

	if endStr := c.Query("end"); endStr != "" {
		t, parseErr := dateparse.ParseIn(endStr, time.UTC)
		if parseErr != nil {
			return nil, nil, errors.New("invalid end timestamp")
		}
		tt := t.UTC()
		until = &tt
	}

	if since != nil && until != nil && until.Before(*since) {
		return nil, nil, errors.New("end is before start")
	}
	return since, until, nil
}

// limitParam reads a positive integer parameter capped at the configured
// maximum.
func (s *Server) limitParam(c *gin.Context, name string, def int) (int, error) {
	limit := def
	if limitStr := c.Query(name); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return 0, errors.New("invalid " + name)
		}
		limit = parsed
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}
	return limit, nil
}
