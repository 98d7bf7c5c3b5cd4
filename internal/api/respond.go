package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/schoolpaypro/ledger/internal/accounts"
	"github.com/schoolpaypro/ledger/internal/ledger"
	"github.com/schoolpaypro/ledger/internal/satellite"
	"github.com/schoolpaypro/ledger/internal/yearclose"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps ledger errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case ledger.IsNotFound(err), errors.Is(err, satellite.ErrNotFound):
		return http.StatusNotFound
	case ledger.IsLocked(err):
		return http.StatusLocked
	case ledger.IsConflict(err), ledger.IsGuard(err),
		errors.Is(err, accounts.ErrDuplicateCode), errors.Is(err, yearclose.ErrNotClosed),
		errors.Is(err, ledger.ErrAlreadyInitialized):
		return http.StatusConflict
	case ledger.IsValidation(err),
		errors.Is(err, satellite.ErrInvalidKind), errors.Is(err, satellite.ErrNameRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, status, "internal error")
		return
	}
	respondError(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
