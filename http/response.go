package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sagarc03/assetgate"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	// Details describes the failed request, e.g. "uri=/asset/abc".
	Details string `json:"details"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, r *http.Request, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Timestamp: time.Now().UTC(),
		Error:     errCode,
		Message:   message,
		Details:   "uri=" + r.URL.Path,
	}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode error response", "error", err)
	}
}

// HandleError writes appropriate error response based on error type.
// Every gateway failure is a server error; only malformed requests get 400.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if isClientError(err) {
		slog.InfoContext(r.Context(), "bad request",
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		code := "bad_request"
		if errors.Is(err, ErrInvalidTimeout) {
			code = "invalid_timeout"
		}
		WriteError(w, r, http.StatusBadRequest, code, err.Error())
		return
	}

	slog.ErrorContext(r.Context(), "request error",
		"request_id", middleware.GetReqID(r.Context()),
		"path", r.URL.Path,
		"error", err,
	)

	var se *assetgate.ServiceError
	if errors.As(err, &se) {
		WriteError(w, r, http.StatusInternalServerError, se.Kind.String(), se.Message)
		return
	}

	// Default internal error
	WriteError(w, r, http.StatusInternalServerError, "internal_error", "Internal server error")
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
