package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrorBody is the JSON envelope returned for every failed request.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, detail ErrorDetail) {
	if detail.RequestID == "" && r != nil {
		detail.RequestID = RequestIDFromContext(r.Context())
	}
	WriteJSON(w, status, ErrorBody{Error: detail})
}

// ErrBodyTooLarge is returned by DecodeJSON when WithBodyLimit cut the body off.
var ErrBodyTooLarge = errors.New("request body too large")

// DecodeJSON decodes a single JSON object and rejects unknown fields and trailing data.
// An empty body decodes to the zero value when allowEmpty is set.
func DecodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	if r.Body == nil {
		if allowEmpty {
			return nil
		}
		return errors.New("request body is required")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return ErrBodyTooLarge
		case errors.Is(err, io.EOF):
			if allowEmpty {
				return nil
			}
			return errors.New("request body is required")
		default:
			return fmt.Errorf("invalid json: %s", strings.TrimPrefix(err.Error(), "json: "))
		}
	}
	if dec.More() {
		return errors.New("invalid json: trailing data")
	}
	return nil
}
