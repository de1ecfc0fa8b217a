package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/cuemby/forkful/pkg/backend"
	"github.com/cuemby/forkful/pkg/log"
	"github.com/cuemby/forkful/pkg/metrics"
	"github.com/cuemby/forkful/pkg/scale"
	"github.com/cuemby/forkful/pkg/storage"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templateFS embed.FS

// Config holds the web server settings
type Config struct {
	Backend *backend.Backend
	Stepper scale.Stepper

	RequestsPerSecond float64
	Burst             int

	MaxUploadSize int64
	SecureCookies bool
}

// Server serves the HTML pages, the JSON API, the event stream and the
// operational endpoints
type Server struct {
	backend *backend.Backend
	stepper scale.Stepper
	limiter *RateLimiter
	pages   map[string]*template.Template
	mux     *http.ServeMux
	handler http.Handler
	logger  zerolog.Logger

	maxUpload     int64
	secureCookies bool

	httpServer   *http.Server
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewServer creates a web server
func NewServer(cfg *Config) (*Server, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("web: backend is required")
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	stepper := cfg.Stepper
	if stepper.Step <= 0 {
		stepper = scale.DefaultStepper()
	}
	maxUpload := cfg.MaxUploadSize
	if maxUpload <= 0 {
		maxUpload = 5 << 20
	}

	s := &Server{
		backend:       cfg.Backend,
		stepper:       stepper,
		limiter:       NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		pages:         pages,
		mux:           http.NewServeMux(),
		logger:        log.WithComponent("web"),
		maxUpload:     maxUpload,
		secureCookies: cfg.SecureCookies,
		shutdownCh:    make(chan struct{}),
	}

	s.registerRoutes()
	s.handler = s.withRequestLogging(s.withRateLimit(s.withSession(s.mux)))
	return s, nil
}

func (s *Server) registerRoutes() {
	// Operational endpoints
	s.route("GET /health", metrics.HealthHandler())
	s.route("GET /live", metrics.LivenessHandler())
	s.route("GET /ready", s.handleReady)
	s.route("GET /metrics", metrics.Handler().ServeHTTP)

	// Pages
	s.route("GET /{$}", s.handleHome)
	s.route("GET /login", s.handleLoginForm)
	s.route("POST /login", s.handleLogin)
	s.route("GET /register", s.handleRegisterForm)
	s.route("POST /register", s.handleRegister)
	s.route("POST /logout", s.handleLogout)

	s.route("GET /recipes/new", s.requireUser(s.handleNewRecipeForm))
	s.route("POST /recipes", s.requireUser(s.handleCreateRecipe))
	s.route("GET /recipes/{id}", s.handleRecipe)
	s.route("GET /recipes/{id}/edit", s.requireUser(s.handleEditRecipeForm))
	s.route("POST /recipes/{id}/edit", s.requireUser(s.handleUpdateRecipe))
	s.route("POST /recipes/{id}/delete", s.requireUser(s.handleDeleteRecipe))
	s.route("POST /recipes/{id}/fork", s.requireUser(s.handleForkRecipe))
	s.route("POST /recipes/{id}/rate", s.requireUser(s.handleRateRecipe))
	s.route("POST /recipes/{id}/comments", s.requireUser(s.handleAddComment))
	s.route("POST /recipes/{id}/image", s.requireUser(s.handleRecipeImage))

	s.route("GET /users/{username}", s.handleProfile)
	s.route("POST /users/{username}/follow", s.requireUser(s.handleFollow))
	s.route("POST /users/{username}/unfollow", s.requireUser(s.handleUnfollow))
	s.route("GET /settings", s.requireUser(s.handleSettingsForm))
	s.route("POST /settings", s.requireUser(s.handleSettings))

	s.route("GET /messages", s.requireUser(s.handleInbox))
	s.route("GET /messages/{username}", s.requireUser(s.handleConversation))
	s.route("POST /messages/{username}", s.requireUser(s.handleSendMessage))

	s.route("GET /notifications", s.requireUser(s.handleNotifications))
	s.route("POST /notifications/read", s.requireUser(s.handleMarkRead))

	s.route("GET /media/{path...}", s.handleMedia)
	s.route("GET /events", s.handleEvents)

	// JSON API
	s.route("POST /api/register", s.apiRegister)
	s.route("POST /api/login", s.apiLogin)
	s.route("GET /api/me", s.apiMe)
	s.route("GET /api/recipes", s.apiListRecipes)
	s.route("POST /api/recipes", s.apiCreateRecipe)
	s.route("GET /api/recipes/{id}", s.apiGetRecipe)
	s.route("POST /api/scale", s.apiScale)
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on addr and serves until Shutdown is called
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	metrics.Handle(metrics.ComponentHTTP).Healthy("listening on " + addr)
	s.logger.Info().Str("addr", addr).Msg("HTTP server listening")

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	metrics.Handle(metrics.ComponentHTTP).Unhealthy(err.Error())
	return err
}

// Shutdown closes open event streams and gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })

	metrics.Handle(metrics.ComponentHTTP).Unhealthy("shutting down")
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// CleanupLimiters drops idle per-client rate limiters
func (s *Server) CleanupLimiters(idle time.Duration) {
	if removed := s.limiter.Cleanup(idle); removed > 0 {
		s.logger.Debug().Int("removed", removed).Msg("Idle rate limiters removed")
	}
}

// statusFor maps backend errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, backend.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, backend.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, backend.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
