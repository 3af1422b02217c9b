package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error     bool                   `json:"error"`
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"requestId,omitempty"`
}

// Retry-After seconds for errors the client should retry
var retryAfter = map[ErrorType]string{
	ErrorTypeUnavailable:    "5",
	ErrorTypeSaveInProgress: "1",
	ErrorTypeNotReady:       "1",
}

// ErrorHandler renders errors as JSON responses
type ErrorHandler struct {
	logger *zap.Logger
	debug  bool
}

// NewErrorHandler creates a new error handler. In debug mode stack traces
// and the text of unexpected errors are included in responses.
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorHandler{logger: logger, debug: debug}
}

// Handle writes the response for err
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	appErr, expected := h.normalize(err)
	h.render(w, r, appErr, expected)
}

// HandleStatus writes an error response for a bare status code
func (h *ErrorHandler) HandleStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.render(w, r, &AppError{Type: typeForStatus(status), Message: message, HTTPStatus: status}, true)
}

// normalize turns any error into an AppError. expected is false for errors
// that did not come from this module's taxonomy.
func (h *ErrorHandler) normalize(err error) (*AppError, bool) {
	if appErr := GetAppError(err); appErr != nil {
		if appErr.HTTPStatus == 0 {
			appErr.HTTPStatus = http.StatusInternalServerError
		}
		return appErr, true
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError("request").WithCause(err), true
	case errors.Is(err, context.Canceled):
		return NewUnavailableError("request").WithCause(err), true
	}

	message := "An internal error occurred"
	if h.debug {
		message = err.Error()
	}
	return NewInternalError(message).WithCause(err), false
}

func (h *ErrorHandler) render(w http.ResponseWriter, r *http.Request, appErr *AppError, expected bool) {
	requestID := requestIDOf(r)
	status := appErr.HTTPStatus

	response := ErrorResponse{
		Error:     true,
		Type:      string(appErr.Type),
		Message:   appErr.Message,
		Code:      appErr.Code,
		Details:   appErr.Details,
		RequestID: requestID,
	}
	if h.debug && appErr.StackTrace != "" {
		details := make(map[string]interface{}, len(appErr.Details)+1)
		for k, v := range appErr.Details {
			details[k] = v
		}
		details["stackTrace"] = appErr.StackTrace
		response.Details = details
	}

	fields := []zap.Field{
		zap.String("errorType", string(appErr.Type)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("requestId", requestID),
	}
	if appErr.Code != "" {
		fields = append(fields, zap.String("errorCode", appErr.Code))
	}
	if appErr.Cause != nil {
		fields = append(fields, zap.Error(appErr.Cause))
	}
	switch {
	case !expected:
		h.logger.Error("Unhandled error", fields...)
	case status >= 500:
		h.logger.Error(appErr.Message, fields...)
	default:
		h.logger.Warn(appErr.Message, fields...)
	}

	if after, ok := retryAfter[appErr.Type]; ok {
		w.Header().Set("Retry-After", after)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

func requestIDOf(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get(middleware.RequestIDHeader)
}

func typeForStatus(status int) ErrorType {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return ErrorTypeValidation
	case http.StatusNotFound:
		return ErrorTypeNotFound
	case http.StatusConflict:
		return ErrorTypeConflict
	case http.StatusGone:
		return ErrorTypeStaleReference
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ErrorTypeTimeout
	case http.StatusServiceUnavailable, http.StatusNotImplemented:
		return ErrorTypeUnavailable
	case http.StatusBadGateway:
		return ErrorTypeExternal
	default:
		return ErrorTypeInternal
	}
}

// Middleware recovers panics and renders them as internal errors
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				appErr, _ := h.normalize(fmt.Errorf("panic: %v", rec))
				h.render(w, r, appErr, false)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
