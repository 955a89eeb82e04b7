// Package server exposes the query engine over HTTP with gin.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/middleware"
)

// Searcher answers one query.
type Searcher interface {
	Query(ctx context.Context, keywords string) (*searcher.Report, error)
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	*searcher.Report
	Cached bool  `json:"cached"`
	TookMS int64 `json:"took_ms"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Server struct {
	cfg      config.ServerConfig
	searcher Searcher
	cache    *cache.QueryCache
	health   *health.Checker
	metrics  *metrics.Metrics
	maxLimit int
	router   *gin.Engine
	logger   *slog.Logger
}

// New wires the routes. c, checker and m may be nil.
func New(cfg config.ServerConfig, s Searcher, maxLimit int, c *cache.QueryCache, checker *health.Checker, m *metrics.Metrics) *Server {
	if maxLimit <= 0 {
		maxLimit = searcher.DefaultTopK
	}
	if checker == nil {
		checker = health.NewChecker()
	}
	srv := &Server{
		cfg:      cfg,
		searcher: s,
		cache:    c,
		health:   checker,
		metrics:  m,
		maxLimit: maxLimit,
		logger:   slog.Default().With("component", "query-server"),
	}
	srv.router = srv.routes()
	return srv
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog())
	if s.metrics != nil {
		r.Use(middleware.Metrics(s.metrics))
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	r.GET("/health/live", gin.WrapF(s.health.LiveHandler()))
	r.GET("/health/ready", gin.WrapF(s.health.ReadyHandler()))

	api := r.Group("/api/v1", middleware.Timeout(s.cfg.WriteTimeout))
	{
		api.GET("/search", s.search)
	}
	return r
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on cfg.Port until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout + time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("query server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("query server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("query server shutting down")
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down query server: %w", err)
	}
	return nil
}

func (s *Server) search(c *gin.Context) {
	start := time.Now()
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		s.fail(c, apperrors.Invalid("query parameter 'q' is required"))
		return
	}
	limit := s.maxLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.fail(c, apperrors.Invalid("limit must be a positive integer"))
			return
		}
		limit = min(n, s.maxLimit)
	}

	ctx := c.Request.Context()
	var (
		report *searcher.Report
		hit    bool
		err    error
	)
	if s.cache != nil {
		report, hit, err = s.cache.GetOrCompute(ctx, q, func(ctx context.Context) (*searcher.Report, error) {
			return s.searcher.Query(ctx, q)
		})
		s.countCache(hit)
	} else {
		report, err = s.searcher.Query(ctx, q)
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	if len(report.Entries) > limit {
		trimmed := *report
		trimmed.Entries = report.Entries[:limit]
		report = &trimmed
	}
	c.JSON(http.StatusOK, SearchResponse{
		Report: report,
		Cached: hit,
		TookMS: time.Since(start).Milliseconds(),
	})
}

func (s *Server) fail(c *gin.Context, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("search failed", "error", err, "request_id", c.GetString(middleware.RequestIDKey))
	}
	c.JSON(status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   apperrors.Message(err),
		RequestID: c.GetString(middleware.RequestIDKey),
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) countCache(hit bool) {
	if s.metrics == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	s.metrics.QueryCacheTotal.WithLabelValues(result).Inc()
}
