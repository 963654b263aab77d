package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/portcullis-auth/portcullis/internal/autherr"
	"github.com/portcullis-auth/portcullis/internal/middleware"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// respondError renders tagged auth errors with their own status and code;
// anything else is masked as a 500.
func respondError(w http.ResponseWriter, err error) {
	var authErr *autherr.Error
	if errors.As(err, &authErr) {
		middleware.WriteError(w, authErr)
		return
	}
	log.Printf("internal error: %v", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"code":    "BAD_REQUEST",
		"message": message,
	})
}
