package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/internal/dtos"
	app_error "github.com/xenn00/conference-system/internal/errors"
	"github.com/xenn00/conference-system/internal/middleware"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

type HandlerFunc func(w http.ResponseWriter, r *http.Request) *app_error.AppError

func WrapHandler(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			reqID := middleware.RequestID(r.Context())
			log.Error().Err(err).Int("code", err.Code).Msg(fmt.Sprintf("error occur, request id: %s", reqID))
			writeJSON(w, err.Code, map[string]any{
				"message": "Error occur",
				"errors": map[string]any{
					"code":    err.Code,
					"field":   err.Field,
					"message": err.Message,
				},
				"data":       nil,
				"request_id": reqID,
			})
		}
	}
}

func CreateResponse[T any](message string, data T, requestId string) dtos.Response[T] {
	return dtos.Response[T]{
		Message:   message,
		Data:      data,
		RequestID: requestId,
	}
}

// WriteResponse renders data inside the standard response envelope.
func WriteResponse[T any](w http.ResponseWriter, r *http.Request, status int, message string, data T) {
	writeJSON(w, status, CreateResponse(message, data, middleware.RequestID(r.Context())))
}

// DecodeJSON reads the request body into dst. An empty body leaves dst
// untouched so validation decides whether it was required.
func DecodeJSON(r *http.Request, dst any) *app_error.AppError {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return app_error.NewAppError(http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err), "body")
	}
	return nil
}

// AuthenticatedUser returns the user id placed in the context by JWTAuth.
func AuthenticatedUser(r *http.Request) (string, *app_error.AppError) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		return "", app_error.NewAppError(http.StatusUnauthorized, "user id is not found in context", "context")
	}
	return userID, nil
}
