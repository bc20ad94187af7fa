package app_error

import (
	"encoding/json"
	"errors"
	"net/http"
)

type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e AppError) Error() string {
	return e.Message
}

func (e AppError) JSON(w http.ResponseWriter) error {
	return json.NewEncoder(w).Encode(e)
}

func NewAppError(code int, msg, field string) *AppError {
	return &AppError{
		Code:    code,
		Message: msg,
		Field:   field,
	}
}

func NotFound(msg string) *AppError {
	return NewAppError(http.StatusNotFound, msg, "not-found")
}

func Forbidden(msg string) *AppError {
	return NewAppError(http.StatusForbidden, msg, "forbidden")
}

func Gone(msg string) *AppError {
	return NewAppError(http.StatusGone, msg, "conference-ended")
}

func BadRequest(msg, field string) *AppError {
	return NewAppError(http.StatusBadRequest, msg, field)
}

func Unavailable(msg string) *AppError {
	return NewAppError(http.StatusServiceUnavailable, msg, "summary-unavailable")
}

func Internal(msg string) *AppError {
	return NewAppError(http.StatusInternalServerError, msg, "")
}

// CodeOf returns the HTTP status carried by err, 0 when err is not an AppError.
func CodeOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return 0
}
