// Package respond writes JSON bodies and maps domain errors to HTTP statuses.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"financial_extractor/pkg/core/importer"
	"financial_extractor/pkg/core/llm"
	"financial_extractor/pkg/core/normalize"
	"financial_extractor/pkg/core/session"
	"financial_extractor/pkg/core/store"
	"financial_extractor/pkg/core/validate"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Field  string `json:"field,omitempty"`
	Token  string `json:"token,omitempty"`
	Reason string `json:"reason,omitempty"`
	// StopReason is set for parse failures so the caller can tell a truncated answer.
	StopReason string `json:"stop_reason,omitempty"`
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("response write failed", zap.Error(err))
	}
}

// Download writes a file attachment.
func Download(w http.ResponseWriter, contentType, fileName string, content []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		zap.L().Debug("download write failed", zap.String("file", fileName), zap.Error(err))
	}
}

// Error maps err to a status and writes it.
func Error(w http.ResponseWriter, err error) {
	status, body := Classify(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		zap.L().Info("request rejected", zap.Int("status", status), zap.String("kind", body.Kind), zap.Error(err))
	}
	JSON(w, status, body)
}

// BadRequest writes a plain request error.
func BadRequest(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, ErrorBody{Error: msg, Kind: "bad_request"})
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusNotFound, ErrorBody{Error: msg, Kind: "not_found"})
}

// Classify returns the status and body for err.
func Classify(err error) (int, ErrorBody) {
	body := ErrorBody{Error: err.Error()}

	var (
		verr  *validate.ValidationError
		aerr  *llm.AuthError
		cerr  *llm.CapabilityError
		terr  *llm.TransportError
		eerr  *llm.EmptyResponseError
		perr  *normalize.ParseError
		serr  *normalize.ShapeError
		uferr *importer.UnrecognizedFormatError
	)
	switch {
	case errors.As(err, &verr):
		body.Kind, body.Field, body.Token, body.Reason = "validation", verr.Field, verr.Token, string(verr.Reason)
		return http.StatusBadRequest, body
	case errors.As(err, &aerr):
		body.Kind = "auth"
		return http.StatusUnauthorized, body
	case errors.As(err, &cerr):
		body.Kind = "capability"
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &perr):
		body.Kind, body.StopReason = "parse", perr.StopReason
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &serr):
		body.Kind = "shape"
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &uferr):
		body.Kind = "unrecognized_format"
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &terr):
		body.Kind = "transport"
		return http.StatusBadGateway, body
	case errors.As(err, &eerr):
		body.Kind, body.StopReason = "empty_response", eerr.StopReason
		return http.StatusBadGateway, body
	case errors.Is(err, store.ErrSnapshotNotFound):
		body.Kind = "not_found"
		return http.StatusNotFound, body
	case errors.Is(err, session.ErrStaleAnswer):
		body.Kind = "stale"
		return http.StatusConflict, body
	case errors.Is(err, session.ErrNoProvider), errors.Is(err, session.ErrNoSnapshots):
		body.Kind = "unavailable"
		return http.StatusServiceUnavailable, body
	}
	body.Kind = "internal"
	return http.StatusInternalServerError, body
}
