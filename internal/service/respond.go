package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/aquaguard/aquaguard/internal/auth"
	"github.com/aquaguard/aquaguard/internal/calculator"
	"github.com/aquaguard/aquaguard/internal/models"
	"github.com/aquaguard/aquaguard/internal/storage"
)

// ErrForbidden is returned when the caller may not act on a record.
var ErrForbidden = errors.New("forbidden")

// errBadRequest marks malformed request bodies and parameters.
var errBadRequest = errors.New("bad request")

// errEmptyBody is returned by decodeJSON when the request has no body.
var errEmptyBody = fmt.Errorf("%w: request body is empty", errBadRequest)

// maxBodyBytes bounds decoded request bodies.
const maxBodyBytes = 1 << 20

// errorResponse is the body of every error response.
type errorResponse struct {
	Message string              `json:"message"`
	Errors  []models.FieldError `json:"errors,omitempty"`
}

// messageResponse acknowledges an operation that returns no record.
type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps err onto a status code and a {message} body.
// Unexpected errors are logged with their cause and answered opaquely.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr  *models.ValidationError
		inerr *calculator.InputError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Validation failed", Errors: verr.Errors})
	case errors.As(err, &inerr):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Message: "Validation failed",
			Errors:  []models.FieldError{{Field: string(inerr.Activity), Message: inerr.Error()}},
		})
	case errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrPasswordTooLong):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Message: "Validation failed",
			Errors:  []models.FieldError{{Field: "password", Message: err.Error()}},
		})
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: rootMessage(err)})
	case errors.Is(err, ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Message: "You are not allowed to modify this record"})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "Record not found"})
	case errors.Is(err, auth.ErrEmailExists):
		writeJSON(w, http.StatusConflict, errorResponse{Message: auth.ErrEmailExists.Error()})
	case errors.Is(err, storage.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Message: "Record conflicts with an existing one"})
	case errors.Is(err, storage.ErrUnavailable):
		logFailure(r, err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Message: "Service temporarily unavailable"})
	default:
		logFailure(r, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Internal server error"})
	}
}

func logFailure(r *http.Request, err error) {
	slog.Error("Request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", chimw.GetReqID(r.Context()),
		"error", err,
	)
}

// rootMessage returns the message of the auth sentinel wrapped by err.
func rootMessage(err error) string {
	for _, sentinel := range []error{auth.ErrInvalidCredentials, auth.ErrMissingToken, auth.ErrInvalidToken} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

// decodeJSON decodes the request body into v. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, name)
	}
	return n, nil
}
