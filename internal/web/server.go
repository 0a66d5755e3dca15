package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"eventmap/internal/config"
	"eventmap/internal/engine"
	appLog "eventmap/internal/log"
	"eventmap/internal/metrics"
)

const (
	viewCacheSize = 128
	viewCacheTTL  = 30 * time.Second
)

// Server exposes the engine views as a JSON API.
type Server struct {
	cfg     *config.Config
	engine  *engine.Engine
	store   *engine.Store
	metrics *metrics.Metrics
	loc     *time.Location
	router  *mux.Router

	// Rendered JSON bodies keyed by route, normalized query, generation
	// and minute.
	cache *expirable.LRU[string, []byte]

	now func() time.Time
}

// NewServer constructs a new Server. loc is the calendar zone used for
// day buckets.
func NewServer(cfg *config.Config, eng *engine.Engine, store *engine.Store, m *metrics.Metrics, loc *time.Location) *Server {
	if loc == nil {
		loc = time.UTC
	}
	s := &Server{
		cfg:     cfg,
		engine:  eng,
		store:   store,
		metrics: m,
		loc:     loc,
		router:  mux.NewRouter(),
		cache:   expirable.NewLRU[string, []byte](viewCacheSize, nil, viewCacheTTL),
		now:     time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the full middleware chain: CORS, optional basic auth,
// gzip and the router.
func (s *Server) Handler() http.Handler {
	h := handlers.CompressHandler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)(h)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.router.Use(requestLogger)

	route := func(path string, h http.HandlerFunc) {
		s.router.Handle(path, s.metrics.WrapHandler(path, h)).Methods(http.MethodGet)
	}
	route("/health", s.handleHealth)
	route("/api/events", s.handleEvents)
	route("/api/agenda", s.handleAgenda)
	route("/api/pilots", s.handlePilots)
	route("/api/calendar.ics", s.handleCalendar)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		appLog.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	return s.cfg != nil && s.cfg.BasicAuth.Enabled()
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="eventmap", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
