package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps the error taxonomy onto HTTP.
func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidCredentials), errors.Is(err, apperr.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrEmailAlreadyExists),
		errors.Is(err, apperr.ErrInvalidTransition),
		errors.Is(err, apperr.ErrInsufficientStock),
		errors.Is(err, apperr.ErrUnavailable):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrInvalidQuantity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrInvalidArgument):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		log.Error("request failed", "err", err)
		writeJSON(w, code, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// decode reads a JSON body into v and runs its validate tags.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Invalid("httpx.decode", "invalid json: %v", err)
	}
	if err := validate.Struct(v); err != nil {
		return apperr.Invalid("httpx.decode", "%v", err)
	}
	return nil
}

func int64Param(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("httpx", "%s must be a positive integer, got %q", name, raw)
	}
	return id, nil
}
