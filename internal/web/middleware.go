package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"bracket-app/internal/model"
	"bracket-app/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/crypto/bcrypt"
)

const (
	headerUserID = "X-User-ID"
	headerAPIKey = "X-API-Key"
)

type ctxKey int

const (
	userKey ctxKey = iota
	tournamentKey
)

// withCurrentUser authenticates the caller from the user id and API key
// headers and stores the user in the request context.
func (s *Server) withCurrentUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(headerUserID))
		key := r.Header.Get(headerAPIKey)
		if userID == "" || key == "" {
			s.errorResponse(w, r, http.StatusUnauthorized, "authentication required")
			return
		}

		var user model.User
		err := s.store.View(r.Context(), func(rd store.Reader) error {
			var err error
			user, err = rd.GetUser(r.Context(), userID)
			return err
		})
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.errorResponse(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		case err != nil:
			s.mapError(w, r, err)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(user.APIKeyHash), []byte(key)) != nil {
			s.errorResponse(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}

		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("user_id", user.ID)
		})
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

// withTournamentAccess loads the tournament named in the path and requires
// the current user to be a member of its club.
func (s *Server) withTournamentAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(r)
		if !ok {
			s.errorResponse(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		var tournament model.Tournament
		err := s.store.View(r.Context(), func(rd store.Reader) error {
			var err error
			tournament, err = rd.GetTournament(r.Context(), chi.URLParam(r, "tournamentID"))
			return err
		})
		if err != nil {
			s.mapError(w, r, err)
			return
		}
		if !user.MemberOf(tournament.ClubID) {
			s.errorResponse(w, r, http.StatusForbidden, "you do not have access to this tournament")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tournamentKey, tournament)))
	})
}

func currentUser(r *http.Request) (model.User, bool) {
	user, ok := r.Context().Value(userKey).(model.User)
	return user, ok
}

func currentTournament(r *http.Request) (model.Tournament, bool) {
	t, ok := r.Context().Value(tournamentKey).(model.Tournament)
	return t, ok
}
