package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/digkill/guincho-facil/internal/quote"
	"github.com/digkill/guincho-facil/internal/service"
	"github.com/digkill/guincho-facil/internal/storage"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", service.ErrValidation)
		}
		return fmt.Errorf("%w: invalid json", service.ErrValidation)
	}
	return nil
}

// statusFor maps service errors onto HTTP status codes. Unknown errors are store or
// upstream failures.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidPlan),
		errors.Is(err, service.ErrUnknownAction),
		errors.Is(err, quote.ErrInvalidCoordinate),
		errors.Is(err, storage.ErrUnsupportedType):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrProviderNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateProvider),
		errors.Is(err, service.ErrDomainTaken):
		return http.StatusConflict
	case errors.Is(err, service.ErrBillingDisabled),
		errors.Is(err, service.ErrStorageDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Store and upstream failures are logged and
// still answer with the underlying message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeError(w, status, err.Error())
}
