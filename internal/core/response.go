package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"expanse/internal/types"
)

// maxRequestBodySize is the maximum allowed size of a request body (1 MB).
const maxRequestBodySize = 1 << 20 // 1 MB

// ErrorResponse is the envelope for all error responses. The storefront
// frontend branches on the success flag, so every response carries it.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`

	// Field names the offending input field on validation failures.
	Field string `json:"field,omitempty"`

	// Data is included as an empty object on internal failures so price
	// consumers can always range over it without a nil check. RawMessage
	// rather than a map: an empty map would be dropped by omitempty, and
	// client errors must not carry a data member at all.
	Data json.RawMessage `json:"data,omitempty"`
}

// emptyData is the literal empty object attached to 5xx envelopes.
var emptyData = json.RawMessage(`{}`)

// JSON writes a JSON response with the given status code and body.
// If marshalling fails, it falls back to a 500 error response.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fallback := ErrorResponse{Success: false, Error: "failed to marshal response"}
		// Best-effort write; if this also fails, there is nothing more we can do.
		_ = json.NewEncoder(w).Encode(fallback)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes an error response to the client. It inspects the error chain:
//   - If the error is (or wraps) a *types.AppError, its code determines the
//     HTTP status and its message is returned verbatim.
//   - Any other error is a 500 with a safe generic message; internal details
//     are never exposed to the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus()
		resp := ErrorResponse{
			Success: false,
			Error:   appErr.Message,
			Field:   appErr.Field(),
		}
		if status >= http.StatusInternalServerError {
			resp.Data = emptyData
		}
		JSON(w, r, status, resp)
		return
	}

	JSON(w, r, http.StatusInternalServerError, ErrorResponse{
		Success: false,
		Error:   "an unexpected error occurred",
		Data:    emptyData,
	})
}

// DecodeJSON reads the request body into dst, enforcing:
//   - A maximum body size of 1 MB.
//   - DisallowUnknownFields to keep the JSON contract strict.
//
// Failures are returned as a *types.AppError with a 400 validation code so
// callers can pass them straight to Error.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}

	// A second decode must hit EOF; anything else means trailing garbage.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON,
			"request body must contain a single JSON object", nil)
	}
	return nil
}

// mapDecodeError converts json decoding failures into client-safe AppErrors.
func mapDecodeError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.Is(err, io.EOF):
		return types.NewAppError(types.ErrCodeValidationMissingField,
			"request body must not be empty", err)
	case errors.As(err, &syntaxErr):
		return types.NewAppError(types.ErrCodeValidationInvalidJSON,
			"request body contains malformed JSON", err)
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return types.NewFieldError(types.ErrCodeValidationInvalidJSON,
			field, "request body contains an invalid value for "+field)
	case errors.As(err, &maxBytesErr):
		return types.NewAppError(types.ErrCodeValidationInvalidJSON,
			"request body must not exceed 1MB", err)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		name := strings.TrimPrefix(err.Error(), "json: unknown field ")
		return types.NewAppError(types.ErrCodeValidationInvalidJSON,
			"request body contains unknown field "+name, err)
	default:
		return types.NewAppError(types.ErrCodeValidationInvalidJSON,
			"request body could not be decoded", err)
	}
}
