package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/openbuilders/wine-minter/internal/errors"
)

// WithMethod is a middleware that checks if the endpoint was called using a
// specific HTTP method and rejects it otherwise.
func WithMethod(next http.HandlerFunc, method string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, fmt.Sprintf("Only %s method is allowed", method), http.StatusMethodNotAllowed)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// WithMethods routes a single path to a handler per HTTP method.
func WithMethods(handlers map[string]http.HandlerFunc) http.HandlerFunc {
	allowed := make([]string, 0, len(handlers))
	for method := range handlers {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)

	return func(w http.ResponseWriter, r *http.Request) {
		next, ok := handlers[r.Method]
		if !ok {
			http.Error(w, fmt.Sprintf("Only %s methods are allowed", strings.Join(allowed, ", ")),
				http.StatusMethodNotAllowed)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// WithJSONResponse wraps an APIHandler and handles JSON response formatting
func WithJSONResponse(handler APIHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := handler(w, r)

		w.Header().Set("Content-Type", "application/json")

		if err != nil {
			status := http.StatusInternalServerError
			errorResponse := ErrorResponse{
				Ok:        false,
				ErrorCode: err.Error(),
			}

			var se errors.ServiceError
			if stderrors.As(err, &se) {
				status = statusCode(se.Code)
				errorResponse.ErrorCode = string(se.Code)
				errorResponse.ErrorDescription = se.Message
				slog.Debug("ServiceError", "error", se, "stack", se.Err)
			}

			slog.Debug("API error", "error", err)

			w.WriteHeader(status)
			if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
				slog.Error("Failed to encode error response", "error", err)
			}
			return
		}

		successResponse := SuccessResponse{
			Ok:   true,
			Data: data,
		}

		if err := json.NewEncoder(w).Encode(successResponse); err != nil {
			http.Error(w, `{"ok": false, "errorCode": "internal_error", "errorDescription": "Failed to encode success response"}`, http.StatusInternalServerError)
			return
		}
	}
}
