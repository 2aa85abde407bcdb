package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/meddevice/medauth"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// WriteError maps err to its status code and client-safe message.
func WriteError(w http.ResponseWriter, err error) {
	body := ErrorBody{Error: medauth.PublicMessage(err)}

	var e *medauth.Error
	if errors.As(err, &e) && e.Kind == medauth.KindValidation {
		body.Fields = e.Fields
	}

	WriteJSON(w, medauth.HTTPStatus(err), body)
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
