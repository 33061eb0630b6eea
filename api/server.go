package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/middleware"
)

// Deps are the collaborators of a [Server].
type Deps struct {
	Engine *sessionauth.Engine
	Logger logrus.FieldLogger
	// Metrics is mounted at MetricsPath when non-nil.
	Metrics     http.Handler
	MetricsPath string
}

// Server holds the HTTP handlers.
type Server struct {
	engine      *sessionauth.Engine
	logger      logrus.FieldLogger
	transport   *middleware.CookieTransport
	metrics     http.Handler
	metricsPath string
}

func NewServer(deps Deps) (*Server, error) {
	transport, err := middleware.NewCookieTransport(deps.Engine.Config().Cookie)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = deps.Engine.Logger()
	}
	path := deps.MetricsPath
	if path == "" {
		path = "/metrics"
	}
	return &Server{
		engine:      deps.Engine,
		logger:      logger.WithField("component", "api"),
		transport:   transport,
		metrics:     deps.Metrics,
		metricsPath: path,
	}, nil
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle(s.metricsPath, s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(s.engine, s.transport))

		r.Route("/account", func(r chi.Router) {
			r.Post("/signup", s.handleSignUp)
			r.Post("/login", s.handleLogin)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuthenticated())
				r.Post("/logout", s.handleLogout)
				r.Get("/me", s.handleMe)
				r.Put("/password", s.handleChangePassword)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.RequireAuthenticated())
			r.Get("/", s.handleListUsers)
			r.Post("/", s.handleCreateUser)
			r.Put("/{username}/password", s.handleChangeUserPassword)
			r.Post("/{username}/inactivate", s.handleInactivateUser)
			r.Post("/{username}/reactivate", s.handleReactivateUser)
			r.Post("/{username}/grant-admin", s.handleGrantAdmin)
			r.Post("/{username}/revoke-admin", s.handleRevokeAdmin)
		})
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": chimw.GetReqID(r.Context()),
		}).Debug("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		s.logger.WithError(err).Warn("health check failed")
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "session backend unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// request returns the scope opened by middleware.Authenticate.
func request(r *http.Request) *sessionauth.Request {
	req, _ := sessionauth.RequestFromContext(r.Context())
	return req
}
