package middleware

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/portcullis-auth/portcullis/internal/autherr"
)

// errorBody is the JSON envelope written for authentication and authorization
// failures.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError renders err as a JSON error response. Errors that are not
// *autherr.Error are masked as a generic verification failure so internal
// details never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	var authErr *autherr.Error
	if !errors.As(err, &authErr) {
		authErr = autherr.InvalidCredential(autherr.CodeTokenVerification, "credential verification failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(authErr.Status)
	if encodeErr := json.NewEncoder(w).Encode(errorBody{Code: authErr.Code, Message: authErr.Message}); encodeErr != nil {
		log.Printf("failed to encode error response: %v", encodeErr)
	}
}
