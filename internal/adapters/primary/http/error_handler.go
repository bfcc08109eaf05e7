package http

import (
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/lorrc/taskboard-backend/internal/core/errors"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ValidationErrorResponse includes field-level validation errors
type ValidationErrorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields map[string][]string `json:"fields,omitempty"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string // empty means the error text itself
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{apperrors.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials"},
	{apperrors.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "You are not a member of this team or organization"},

	{apperrors.ErrTaskNotFound, http.StatusNotFound, "TASK_NOT_FOUND", "Task not found"},
	{apperrors.ErrEpicNotFound, http.StatusNotFound, "EPIC_NOT_FOUND", "Epic not found"},
	{apperrors.ErrTeamNotFound, http.StatusNotFound, "TEAM_NOT_FOUND", "Team not found"},
	{apperrors.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND", "User not found"},

	{apperrors.ErrConflict, http.StatusConflict, "CONFLICT", "The resource was modified concurrently"},

	{apperrors.ErrTitleRequired, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{apperrors.ErrTitleTooLong, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{apperrors.ErrDescriptionTooLong, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{apperrors.ErrInvalidStatus, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{apperrors.ErrTeamRequired, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{apperrors.ErrOrganizationRequired, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{apperrors.ErrEmailRequired, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{apperrors.ErrPasswordRequired, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{apperrors.ErrBadRequest, http.StatusBadRequest, "BAD_REQUEST", "Bad request"},
}

// ErrorHandler turns service errors into JSON responses and logs them.
type ErrorHandler struct {
	logger *slog.Logger
}

func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger.With("component", "http_errors")}
}

// Handle writes the response for err.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		h.log(r, appErr.StatusCode, err)
		WriteJSON(w, appErr.StatusCode, ErrorResponse{
			Error:   appErr.Message,
			Code:    appErr.Code,
			Details: appErr.Details,
		})
		return
	}

	var validationErrs *apperrors.ValidationErrors
	if errors.As(err, &validationErrs) {
		h.log(r, http.StatusUnprocessableEntity, err)
		WriteJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
			Error:  "Validation failed",
			Code:   "VALIDATION_ERROR",
			Fields: validationErrs.Errors,
		})
		return
	}

	status, response := mapError(err)
	h.log(r, status, err)
	WriteJSON(w, status, response)
}

func mapError(err error) (int, ErrorResponse) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		message := m.message
		if message == "" {
			message = m.target.Error()
		}
		return m.status, ErrorResponse{Error: message, Code: m.code}
	}
	return http.StatusInternalServerError, ErrorResponse{
		Error: "An unexpected error occurred",
		Code:  "INTERNAL_ERROR",
	}
}

// log records server faults as errors and caller mistakes as warnings.
func (h *ErrorHandler) log(r *http.Request, status int, err error) {
	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status_code", status,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", attrs...)
		return
	}
	h.logger.WarnContext(r.Context(), "request rejected", attrs...)
}
