package web

import (
	"net/http"
	"time"

	"bracket-app/internal/ranking"
	"bracket-app/internal/rounds"
	"bracket-app/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type Server struct {
	store       store.Store
	rounds      *rounds.Manager
	ranking     *ranking.Calculator
	logger      zerolog.Logger
	corsOrigins []string
}

type Option func(*Server)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

func NewServer(st store.Store, rm *rounds.Manager, calc *ranking.Calculator, opts ...Option) *Server {
	s := &Server{store: st, rounds: rm, ranking: calc, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.RequestIDHandler("request_id", "X-Request-ID"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", headerUserID, headerAPIKey},
			ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.errorResponse(w, r, http.StatusNotFound, "the requested resource could not be found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.errorResponse(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Group(func(r chi.Router) {
		r.Use(s.withCurrentUser)
		r.Route("/tournaments/{tournamentID}", func(r chi.Router) {
			r.Use(s.withTournamentAccess)
			r.Get("/rankings", s.handleTournamentRankings)
			r.Get("/stage_items/{stageItemID}/ranking", s.handleStageItemRanking)
			r.Post("/rounds", s.handleRoundCreate)
			r.Put("/rounds/{roundID}", s.handleRoundUpdate)
			r.Delete("/rounds/{roundID}", s.handleRoundDelete)
			r.Post("/rounds/{roundID}/matches", s.handleMatchCreate)
			r.Put("/matches/{matchID}/result", s.handleMatchResult)
		})
	})

	return r
}
