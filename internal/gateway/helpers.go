package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"TdxBridge/internal/model"
)

// ErrorResponse is the standard error format for REST API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a classified error with the matching status code.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, StatusFor(err), ErrorResponse{Error: err.Error(), Code: string(model.KindOf(err))})
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(err error) int {
	switch model.KindOf(err) {
	case model.KindInvalidArgument:
		return http.StatusBadRequest
	case model.KindNoData, model.KindDateNotFound, model.KindAllEmpty, model.KindSymbolNotFound:
		return http.StatusNotFound
	case model.KindRemoteList, model.KindFetch, model.KindProvider:
		return http.StatusBadGateway
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
