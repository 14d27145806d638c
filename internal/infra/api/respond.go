package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"opticalfiber-backend/internal/domain"
	"opticalfiber-backend/internal/infra/logging"
)

// Hint sent with 503s; the route queue drains within a few seconds.
const retryAfterSeconds = "5"

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`

	RequestID string `json:"request_id,omitempty"` // 5xx only
}

type quotaDetails struct {
	CurrentKM       decimal.Decimal `json:"current_km"`
	ProjectedKM     decimal.Decimal `json:"projected_km"`
	FreeAllowanceKM decimal.Decimal `json:"free_allowance_km"`
	ChunkKM         decimal.Decimal `json:"chunk_km"`
	RequiredChunks  int64           `json:"required_chunks"`
	PaidChunks      int64           `json:"paid_chunks"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps a use case error onto the HTTP taxonomy. Storage and
// other unexpected failures are logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	status, body := classify(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	if status >= http.StatusInternalServerError {
		l := logging.With(r.Context(), logger)
		l.Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
		body.RequestID = logging.TraceIDFrom(r.Context())
	}
	writeJSON(w, status, body)
}

func classify(err error) (int, errorBody) {
	var denied *domain.QuotaDeniedError
	switch {
	case errors.As(err, &denied):
		return http.StatusBadRequest, errorBody{
			Error:   "quota_exceeded",
			Message: "fiber length quota exceeded; purchase another capacity chunk",
			Details: quotaDetails{
				CurrentKM:       denied.CurrentKM,
				ProjectedKM:     denied.ProjectedKM,
				FreeAllowanceKM: denied.FreeAllowance,
				ChunkKM:         denied.ChunkKM,
				RequiredChunks:  denied.RequiredChunks,
				PaidChunks:      denied.PaidChunks,
			},
		}
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, errorBody{Error: "invalid_argument", Message: err.Error()}
	case errors.Is(err, domain.ErrMalformedPayload):
		return http.StatusBadRequest, errorBody{Error: "malformed_payload", Message: "malformed payload"}
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, errorBody{Error: "unauthenticated", Message: "authentication required"}
	case errors.Is(err, domain.ErrSignatureInvalid):
		return http.StatusForbidden, errorBody{Error: "invalid_signature", Message: "signature verification failed"}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "not_found", Message: "not found"}
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, errorBody{Error: "already_exists", Message: "already exists"}
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, errorBody{Error: "rate_limited", Message: "too many requests"}
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable, errorBody{Error: "unavailable", Message: "service busy; try again shortly"}
	case errors.Is(err, domain.ErrOrderCreationFailed):
		return http.StatusBadGateway, errorBody{Error: "gateway_unavailable", Message: "payment order could not be created; try again"}
	case errors.Is(err, domain.ErrVerificationUnavailable):
		return http.StatusBadGateway, errorBody{Error: "gateway_unavailable", Message: "payment status could not be verified; try again"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorBody{Error: "timeout", Message: "request timed out"}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal_error", Message: "internal error"}
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return errors.Join(domain.ErrInvalidArgument, err)
	}
	return nil
}
