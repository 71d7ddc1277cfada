package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"cryptvault/native/access"
	"cryptvault/native/bank"
	nativecommon "cryptvault/native/common"
	"cryptvault/native/farm"
	"cryptvault/native/fees"
	"cryptvault/native/strategy"
	"cryptvault/native/vault"
)

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps engine sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, errBadRequest),
		errors.Is(err, vault.ErrZeroAmount),
		errors.Is(err, vault.ErrInsufficientShares),
		errors.Is(err, vault.ErrInvalidFee),
		errors.Is(err, vault.ErrWantToken),
		errors.Is(err, fees.ErrInvalidSplit),
		errors.Is(err, bank.ErrInsufficientBalance):
		return http.StatusBadRequest
	case errors.Is(err, vault.ErrUnauthorized),
		errors.Is(err, access.ErrUnauthorized),
		errors.Is(err, strategy.ErrNotVault):
		return http.StatusForbidden
	case errors.Is(err, strategy.ErrInsufficientHistory):
		return http.StatusUnprocessableEntity
	case errors.Is(err, vault.ErrInsufficientCapacity),
		errors.Is(err, vault.ErrStrategyPaused),
		errors.Is(err, vault.ErrStrategyRetired),
		errors.Is(err, vault.ErrNotInitialized),
		errors.Is(err, vault.ErrAlreadyInitialized),
		errors.Is(err, vault.ErrVaultInsolvent),
		errors.Is(err, strategy.ErrStrategyPaused),
		errors.Is(err, strategy.ErrStrategyRetired),
		errors.Is(err, strategy.ErrStrategyPanicked),
		errors.Is(err, nativecommon.ErrReentrancyDetected):
		return http.StatusConflict
	case errors.Is(err, farm.ErrInsufficientLiquidity):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}
