// Package dashboard serves the read-only HTML dashboard and JSON API over
// the semantic layer.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/semlayer/semlayer/internal/chat"
	"github.com/semlayer/semlayer/internal/db"
	"github.com/semlayer/semlayer/web"
)

const (
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	Addr          string
	RowLimit      int
	CacheTTL      time.Duration
	AllowAdhocSQL bool
	// Pipeline answers natural-language questions; nil disables them.
	Pipeline *chat.Pipeline
	Logger   *zap.Logger
}

// Server is the dashboard HTTP server.
type Server struct {
	q        db.Querier
	opts     Options
	router   *chi.Mux
	pages    *template.Template
	cache    *QueryCache
	metrics  *Metrics
	pipeline *chat.Pipeline
	log      *zap.Logger
}

// NewServer builds the router over q, which should be a read-only connection.
func NewServer(q db.Querier, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RowLimit <= 0 {
		opts.RowLimit = 500
	}

	tmplFS, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	pages, err := template.New("dashboard").Funcs(template.FuncMap{
		"fmtValue": db.FormatValue,
	}).ParseFS(tmplFS, "*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	static, err := web.Static()
	if err != nil {
		return nil, fmt.Errorf("failed to load static assets: %w", err)
	}

	s := &Server{
		q:        q,
		opts:     opts,
		router:   chi.NewRouter(),
		pages:    pages,
		cache:    NewQueryCache(opts.CacheTTL),
		metrics:  NewMetrics(),
		pipeline: opts.Pipeline,
		log:      opts.Logger,
	}
	if s.pipeline != nil && !s.pipeline.Enabled() {
		s.pipeline = nil
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(requestTimeout))

	s.router.Get("/", s.overviewPage)
	s.router.Get("/employees", s.employeesPage)
	s.router.Get("/benefits", s.benefitsPage)
	s.router.Get("/attendance", s.attendancePage)
	s.router.Get("/activity", s.activityPage)
	s.router.Get("/query", s.queryPage)
	s.router.Post("/query", s.queryPage)
	s.router.Get("/ask", s.askPage)
	s.router.Post("/ask", s.askPage)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/relations", s.handleRelations)
		r.Get("/freshness", s.handleFreshness)
		r.Post("/query", s.handleQuery)
		r.Post("/ask", s.handleAsk)
	})

	s.router.Handle("/metrics", s.metrics.Handler())
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(static)))

	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("dashboard listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		s.log.Info("dashboard shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// query runs a statement through the result cache.
func (s *Server) query(ctx context.Context, query string, args ...any) (*db.Result, bool, error) {
	res, hit, err := s.cache.Get(ctx, CacheKey(query, args...), func(ctx context.Context) (*db.Result, error) {
		start := time.Now()
		res, err := db.ExecuteQuery(ctx, s.q, query, args...)
		s.metrics.queryDuration.Observe(time.Since(start).Seconds())
		return res, err
	})
	switch {
	case err != nil:
		s.metrics.queries.WithLabelValues("error").Inc()
	case hit:
		s.metrics.cacheHits.Inc()
		s.metrics.queries.WithLabelValues("ok").Inc()
	default:
		s.metrics.cacheMisses.Inc()
		s.metrics.queries.WithLabelValues("ok").Inc()
	}
	return res, hit, err
}

// adhoc runs user-supplied SQL after the read-only check, capped at the
// row limit.
func (s *Server) adhoc(ctx context.Context, sql string) (*db.Result, bool, error) {
	stmt, err := db.CheckReadOnly(sql)
	if err != nil {
		s.metrics.queries.WithLabelValues("rejected").Inc()
		return nil, false, err
	}
	return s.query(ctx, db.LimitQuery(stmt, s.opts.RowLimit))
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
