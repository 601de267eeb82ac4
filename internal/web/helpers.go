package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"bracket-app/internal/rounds"

	"github.com/rs/zerolog/hlog"
)

type envelope map[string]any

const maxBodyBytes = 1 << 20

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxError *json.SyntaxError
		var typeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError
		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &typeError):
			if typeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", typeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", typeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return fmt.Errorf("body contains unknown key %s", strings.TrimPrefix(err.Error(), "json: unknown field "))
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBodyBytes)
		default:
			return err
		}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	js, err := json.Marshal(data)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(append(js, '\n'))
	return err
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	if err := writeJSON(w, status, data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("write response")
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.respond(w, r, status, envelope{"error": message})
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	s.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

// mapError turns domain errors into HTTP responses.
func (s *Server) mapError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rounds.ErrNotFound):
		s.errorResponse(w, r, http.StatusNotFound, "the requested resource could not be found")
	case errors.Is(err, rounds.ErrUnsupportedOperation),
		errors.Is(err, rounds.ErrQuotaExceeded),
		errors.Is(err, rounds.ErrInvalidArgument):
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, rounds.ErrConflictingState):
		s.errorResponse(w, r, http.StatusConflict, err.Error())
	case rounds.Retryable(err):
		hlog.FromRequest(r).Warn().Err(err).Msg("transaction failed")
		w.Header().Set("Retry-After", "1")
		s.errorResponse(w, r, http.StatusServiceUnavailable, "the request conflicted with a concurrent change, retry it")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		hlog.FromRequest(r).Warn().Err(err).Msg("request cancelled")
		s.errorResponse(w, r, http.StatusServiceUnavailable, "the request was cancelled")
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("internal error")
		s.errorResponse(w, r, http.StatusInternalServerError, "the server encountered a problem and could not process your request")
	}
}
