package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joacominatel/sqlzen/internal/database"
)

type connectRequest struct {
	Key    string              `json:"key"`
	Driver database.DriverKind `json:"driver"`
	URL    string              `json:"url"`
}

type queryRequest struct {
	Key string `json:"key"`
	SQL string `json:"sql"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string {
	return e.err.Error()
}

func (e *badRequestError) Unwrap() error {
	return e.err
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Key == "" || req.Driver == "" {
		s.writeError(w, &badRequestError{errors.New("key and driver are required")})
		return
	}

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	if err := s.registry.Connect(ctx, req.Key, req.Driver, req.URL); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Key == "" {
		s.writeError(w, &badRequestError{errors.New("key is required")})
		return
	}

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	result, err := s.registry.Query(ctx, req.Key, req.SQL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	results, err := s.registry.QueryScript(ctx, req.Key, req.SQL)
	if err != nil && database.IsNotFound(err) {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleConnections(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Connections())
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	version, err := s.registry.Ping(ctx, key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "version": version})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &badRequestError{fmt.Errorf("invalid request body: %w", err)}
	}
	return nil
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		badRequest    *badRequestError
		unknownDriver *database.UnknownDriverError
	)
	switch {
	case errors.As(err, &unknownDriver), errors.As(err, &badRequest):
		return http.StatusBadRequest
	case database.IsNotFound(err):
		return http.StatusNotFound
	case database.IsEngine(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: database.Message(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
