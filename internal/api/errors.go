package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/photohunt/internal/dataset"
	"github.com/MJE43/photohunt/internal/engine"
	"github.com/MJE43/photohunt/internal/game"
)

// ErrorBuilder helps construct structured errors with context
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]interface{}
	requestID string
}

func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]interface{}),
	}
}

func (eb *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

func (eb *ErrorBuilder) Build() EngineError {
	ctx := eb.context
	if len(ctx) == 0 {
		ctx = nil
	}
	return EngineError{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   ctx,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ErrorHandler writes error responses and logs them.
type ErrorHandler struct {
	logger *slog.Logger
}

func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// classify maps domain errors onto an HTTP status and error type.
func classify(err error) (int, string) {
	var ee EngineError
	switch {
	case errors.As(err, &ee):
		return statusForType(ee.Type), ee.Type
	case errors.Is(err, game.ErrSessionNotFound):
		return http.StatusNotFound, ErrTypeSessionNotFound
	case errors.Is(err, game.ErrTooManySessions):
		return http.StatusTooManyRequests, ErrTypeRateLimit
	case errors.Is(err, game.ErrClosed):
		return http.StatusGone, ErrTypeGone
	case errors.Is(err, engine.ErrNoHintsLeft), errors.Is(err, engine.ErrHintCooldown), errors.Is(err, engine.ErrNothingToHint):
		return http.StatusConflict, ErrTypeHintRejected
	case errors.Is(err, game.ErrNotAccepting), errors.Is(err, game.ErrBusy),
		errors.Is(err, game.ErrNoNameEntry), errors.Is(err, game.ErrAborted):
		return http.StatusConflict, ErrTypeConflict
	case errors.Is(err, engine.ErrBadClick):
		return http.StatusBadRequest, ErrTypeValidation
	case errors.Is(err, dataset.ErrMalformed):
		return http.StatusBadGateway, ErrTypeDataset
	}
	return http.StatusInternalServerError, ErrTypeInternal
}

func statusForType(errType string) int {
	switch errType {
	case ErrTypeConflict, ErrTypeHintRejected:
		return http.StatusConflict
	case ErrTypeSessionNotFound:
		return http.StatusNotFound
	case ErrTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrTypeInternal:
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

// HandleError classifies err and writes it.
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	status, errType := classify(err)
	engineErr := NewError(errType, err.Error()).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("path", r.URL.Path).
		Build()
	eh.logError(r, engineErr, status)
	eh.writeErrorResponse(w, status, engineErr)
}

// HandleValidationError reports a bad request field.
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, field, message string) {
	engineErr := NewError(ErrTypeValidation, fmt.Sprintf("Validation failed: %s", message)).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("field", field).
		WithContext("path", r.URL.Path).
		Build()
	eh.logError(r, engineErr, http.StatusBadRequest)
	eh.writeErrorResponse(w, http.StatusBadRequest, engineErr)
}

func (eh *ErrorHandler) HandleUnauthorized(w http.ResponseWriter, r *http.Request) {
	engineErr := NewError(ErrTypeUnauthorized, "admin token required").
		WithRequestID(middleware.GetReqID(r.Context())).
		Build()
	eh.logError(r, engineErr, http.StatusUnauthorized)
	eh.writeErrorResponse(w, http.StatusUnauthorized, engineErr)
}

func (eh *ErrorHandler) logError(r *http.Request, engineErr EngineError, status int) {
	level := slog.LevelWarn
	if status >= 500 {
		level = slog.LevelError
	}
	eh.logger.Log(r.Context(), level, "request failed",
		"type", engineErr.Type,
		"category", GetErrorCategory(engineErr.Type),
		"status", status,
		"request_id", engineErr.RequestID,
		"method", r.Method,
		"path", r.URL.Path,
		"message", engineErr.Message,
	)
}

func (eh *ErrorHandler) writeErrorResponse(w http.ResponseWriter, status int, engineErr EngineError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.Header().Set("X-Error-Type", engineErr.Type)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(engineErr.Type)))
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(engineErr); err != nil {
		eh.logger.Error("encode error response", "error", err)
	}
}

// RecoveryHandler turns panics into structured 500 responses.
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				requestID := middleware.GetReqID(r.Context())
				eh.logger.Error("panic recovered", "request_id", requestID, "path", r.URL.Path, "method", r.Method, "panic", rvr)

				engineErr := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					WithContext("path", r.URL.Path).
					Build()
				eh.writeErrorResponse(w, http.StatusInternalServerError, engineErr)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
