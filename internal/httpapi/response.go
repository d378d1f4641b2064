package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/foxseedlab/planning-poker/internal/apperr"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string      `json:"error"`
	Kind  apperr.Kind `json:"kind"`
	Step  string      `json:"step,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindDependencyFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) errorResponse {
	return errorResponse{
		Error: err.Error(),
		Kind:  apperr.KindOf(err),
		Step:  apperr.FailedStep(err),
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody(err)
	status := statusFor(body.Kind)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path, "step", body.Step)
	} else {
		slog.Debug("request rejected", "error", err, "method", r.Method, "path", r.URL.Path, "kind", body.Kind)
	}
	writeJSON(w, status, body)
}

// decodeJSON treats an empty body as an empty object.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Invalid("invalid request body: %v", err)
	}
	return nil
}
