package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/voyagen/m3ueditor/internal/store"
)

// APIError is the standard error envelope for all error responses.
type APIError struct {
	Status  int                 `json:"status"`
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// messageResponse is the body of deletes and sync dispatches.
type messageResponse struct {
	Message string `json:"message"`
}

// parseID extracts a path parameter by name and parses it as int64.
func parseID(r *http.Request, param string) (int64, error) {
	v := chi.URLParam(r, param)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s: %s", param, v)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIError{
		Status:  status,
		Error:   http.StatusText(status),
		Message: msg,
	})
}

func writeValidation(w http.ResponseWriter, fields map[string][]string) {
	writeJSON(w, http.StatusUnprocessableEntity, APIError{
		Status:  http.StatusUnprocessableEntity,
		Error:   http.StatusText(http.StatusUnprocessableEntity),
		Message: "The given data was invalid.",
		Errors:  fields,
	})
}

func writeForbidden(w http.ResponseWriter) {
	writeErr(w, http.StatusForbidden, "Unauthorized")
}

// writeStoreErr maps store sentinels to 404 / 422 and everything else to a logged 500.
func (s *Server) writeStoreErr(w http.ResponseWriter, r *http.Request, what string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeErr(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, store.ErrConflict):
		writeErr(w, http.StatusUnprocessableEntity, what+" already exists")
	default:
		s.log.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"path":       r.URL.Path,
		}).WithError(err).Error("request failed")
		writeErr(w, http.StatusInternalServerError, "internal server error")
	}
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports false when the handler should stop.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeErr(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	if fields := s.validateStruct(dst); len(fields) > 0 {
		writeValidation(w, fields)
		return false
	}
	return true
}
