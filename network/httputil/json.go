// Package httputil provides JSON helpers shared by every HTTP handler.
package httputil

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// ErrorJson is the wire shape of every error response: a short machine
// readable code plus optional detail.
type ErrorJson struct {
	Error  string      `json:"error"`
	Detail interface{} `json:"detail,omitempty"`

	code int
}

// NewError builds an error response with the given HTTP status code.
func NewError(code int, errCode string, detail interface{}) *ErrorJson {
	return &ErrorJson{Error: errCode, Detail: detail, code: code}
}

// StatusCode returns the HTTP status the error carries.
func (e *ErrorJson) StatusCode() int {
	if e.code == 0 {
		return http.StatusInternalServerError
	}
	return e.code
}

// WriteError writes an ErrorJson to the response.
func WriteError(w http.ResponseWriter, errJson *ErrorJson) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errJson.StatusCode())
	if err := json.NewEncoder(w).Encode(errJson); err != nil {
		log.WithError(err).Error("Could not write error message")
	}
}

// HandleError is a shorthand for writing a code-only error.
func HandleError(w http.ResponseWriter, code int, errCode string) {
	WriteError(w, NewError(code, errCode, nil))
}

// WriteJson writes a 200 JSON response.
func WriteJson(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Could not write response message")
	}
}

// DecodeJsonObject decodes the request body, requiring the root to be a JSON
// object. It never panics on adversarial bodies; any shape problem returns
// false after writing a 400 INVALID_JSON_OBJECT.
func DecodeJsonObject(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		HandleError(w, http.StatusBadRequest, "INVALID_JSON_OBJECT")
		return false
	}
	trimmed := []byte(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		HandleError(w, http.StatusBadRequest, "INVALID_JSON_OBJECT")
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		HandleError(w, http.StatusBadRequest, "INVALID_JSON_OBJECT")
		return false
	}
	return true
}
