package server

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kapu/shortlist-go/internal/command"
	"github.com/kapu/shortlist-go/internal/recommend"
	"github.com/kapu/shortlist-go/internal/service/history"
	apperrors "github.com/kapu/shortlist-go/pkg/errors"
)

// APIResponse is the envelope of every JSON reply.
type APIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	s.writeJSON(w, status, &APIResponse{Status: "success", Data: data})
}

// respondError maps err to a status code. data, when set, is still sent so
// clients can render the unchanged session.
func (s *Server) respondError(w http.ResponseWriter, err error, data any) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
	}
	s.writeJSON(w, status, &APIResponse{
		Status: "error",
		Data:   data,
		Error:  &APIError{Code: code, Message: err.Error()},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, resp *APIResponse) {
	body, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("Failed to marshal JSON response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.logger.Debug("Failed to write JSON response", zap.Error(err))
	}
}

func classify(err error) (int, string) {
	var validationErr *apperrors.ValidationError
	var appErr *apperrors.AppError
	switch {
	case errors.Is(err, recommend.ErrBusy):
		return http.StatusConflict, "BUSY"
	case errors.Is(err, recommend.ErrNoIdentity):
		return http.StatusUnauthorized, "NO_IDENTITY"
	case errors.Is(err, recommend.ErrInvalidSlot), errors.Is(err, recommend.ErrNoQuery):
		return http.StatusBadRequest, "INVALID_ACTION"
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, history.ErrEntryNotFound),
		errors.Is(err, command.ErrUnknownAction):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, apperrors.CodeValidation
	case errors.As(err, &appErr):
		return appErr.StatusCode, appErr.Code
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
