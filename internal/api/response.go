package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/posoja/internal/lending"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, errorBody{Error: message})
}

var kindStatus = map[lending.Kind]int{
	lending.KindValidation:      http.StatusBadRequest,
	lending.KindNotFound:        http.StatusNotFound,
	lending.KindUnauthenticated: http.StatusUnauthorized,
	lending.KindAuthorization:   http.StatusForbidden,
	lending.KindConflict:        http.StatusConflict,
	lending.KindDependency:      http.StatusBadGateway,
}

// serviceError maps a lending error to its HTTP status. Anything else is
// logged and reported as an internal error without details.
func serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var le *lending.Error
	if errors.As(err, &le) {
		status, ok := kindStatus[le.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		if le.Err != nil {
			slog.WarnContext(r.Context(), "request failed",
				"request_id", RequestID(r.Context()), "code", le.Code, "error", le.Err)
		}
		jsonResponse(w, status, errorBody{Error: le.Message, Code: le.Code})
		return
	}

	slog.ErrorContext(r.Context(), "internal error",
		"request_id", RequestID(r.Context()), "method", r.Method, "path", r.URL.Path, "error", err)
	jsonError(w, http.StatusInternalServerError, "internal error")
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// pathID parses a numeric path value, writing a 400 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryID parses an optional numeric query parameter; absent means zero.
func queryID(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
