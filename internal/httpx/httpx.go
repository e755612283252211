// Package httpx holds the JSON request and response helpers shared by the HTTP handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"authcore/internal/autherr"
)

// maxBodyBytes caps request bodies; auth payloads are tiny.
const maxBodyBytes = 1 << 20

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DecodeJSON decodes the request body into dest, rejecting unknown fields and trailing data.
// Decode failures are returned as autherr.InvalidInput.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return autherr.New(autherr.InvalidInput, "request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return autherr.Wrap(autherr.InvalidInput, "malformed JSON body", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return autherr.New(autherr.InvalidInput, "request body must contain a single JSON object")
	}
	return nil
}

// RespondJSON writes payload with status. A nil payload writes only the status.
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// RespondError maps err to its status and public code. Internal detail never reaches the client.
func RespondError(w http.ResponseWriter, err error) {
	kind := autherr.KindOf(err)
	status := autherr.HTTPStatus(kind)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="authcore"`)
	}
	RespondJSON(w, status, ErrorBody{
		Error:   autherr.PublicCode(kind),
		Message: autherr.PublicMessage(err),
	})
}
