package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// ErrorHandler translates engine errors into HTTP responses. Handlers pass
// every failure through here so status mapping lives in one place.
type ErrorHandler struct {
	logger *zap.Logger
}

// NewErrorHandler creates an ErrorHandler.
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorHandler{logger: logger}
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

// Handle writes the HTTP representation of err.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Error: "internal_error", Message: "internal error"}

	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		resp.Code = engineErr.Code
		resp.Type = string(engineErr.Type)
		resp.Message = engineErr.Message
		switch engineErr.Type {
		case ErrorTypeValidation:
			status = http.StatusBadRequest
			resp.Error = "invalid_parameter"
		case ErrorTypeNotFound:
			status = http.StatusNotFound
			resp.Error = "not_found"
		case ErrorTypeUpstream:
			status = http.StatusBadGateway
			resp.Error = "upstream_failure"
		default:
			resp.Error = "internal_error"
		}
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	} else {
		h.logger.Debug("request rejected",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encodeErr := json.NewEncoder(w).Encode(resp); encodeErr != nil {
		h.logger.Error("failed to encode error response", zap.Error(encodeErr))
	}
}
