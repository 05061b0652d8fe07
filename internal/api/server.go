// Package api exposes game sessions, high scores and the signal stream over HTTP.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/photohunt/internal/events"
	"github.com/MJE43/photohunt/internal/game"
	"github.com/MJE43/photohunt/internal/highscore"
	"github.com/MJE43/photohunt/internal/scripting"
	"github.com/MJE43/photohunt/internal/store"
)

// ResultLister reads the finished-game history.
type ResultLister interface {
	RecentResults(ctx context.Context, gameID string, limit int) ([]store.Result, error)
}

// TokenVerifier checks the admin token.
type TokenVerifier interface {
	Verify(token string) bool
}

// Options are the collaborators of a Server. Results and Tokens are optional;
// without Tokens the admin endpoints are disabled.
type Options struct {
	Manager          *game.Manager
	Hub              *events.Hub
	Scores           *highscore.Store
	Results          ResultLister
	Tokens           TokenVerifier
	GameID           string
	AllowedOrigins   []string
	AutoplayInterval time.Duration
	RequestTimeout   time.Duration
	Logger           *slog.Logger
}

// Server handles HTTP requests
type Server struct {
	opts         Options
	errorHandler *ErrorHandler
	logger       *slog.Logger
	startTime    time.Time

	autoMu   sync.Mutex
	autoplay map[string]*scripting.Engine
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	logger := opts.Logger.With("component", "api")
	return &Server{
		opts:         opts,
		errorHandler: NewErrorHandler(logger),
		logger:       logger,
		startTime:    time.Now(),
		autoplay:     make(map[string]*scripting.Engine),
	}
}

// Routes sets up the HTTP routes with middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealthCheck)
	r.Get("/health/live", s.handleLiveness)
	r.Get("/version", s.handleVersion)

	r.Route("/api/v1", func(r chi.Router) {
		// The signal stream is long-lived and must not inherit the timeout.
		r.Get("/games/{id}/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.opts.RequestTimeout))

			r.Post("/games", s.handleCreateGame)
			r.Get("/games", s.handleListGames)
			r.Route("/games/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetGame)
				r.Delete("/", s.handleDeleteGame)
				r.Post("/start", s.handleRestart)
				r.Post("/click", s.handleClick)
				r.Post("/hint", s.handleHint)
				r.Post("/pause", s.handlePause)
				r.Post("/resume", s.handleResume)
				r.Post("/quit", s.handleQuit)
				r.Post("/name", s.handleSubmitName)
				r.Delete("/name", s.handleCancelName)
				r.Post("/autoplay", s.handleStartAutoplay)
				r.Get("/autoplay", s.handleGetAutoplay)
				r.Delete("/autoplay", s.handleStopAutoplay)
			})

			r.Get("/highscores", s.handleHighScores)
			r.Delete("/highscores", s.handleResetHighScores)
			r.Get("/results", s.handleResults)
		})
	})
	return r
}

// Close stops every autoplay run.
func (s *Server) Close() {
	s.autoMu.Lock()
	engines := s.autoplay
	s.autoplay = make(map[string]*scripting.Engine)
	s.autoMu.Unlock()
	for _, e := range engines {
		_ = e.Stop()
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Token")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowOrigin(origin string) string {
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// originPatterns converts the allowed origins into websocket host patterns.
func (s *Server) originPatterns() []string {
	out := make([]string, 0, len(s.opts.AllowedOrigins))
	for _, o := range s.opts.AllowedOrigins {
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		out = append(out, o)
	}
	return out
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// decodeJSON reads an optional JSON body into dst. An empty body is not an error.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*game.Session, bool) {
	sess, err := s.opts.Manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return nil, false
	}
	return sess, true
}
