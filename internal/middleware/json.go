package middleware

import (
	"encoding/json"
	"net/http"

	"go-user-api/internal/model"
	"go-user-api/pkg/apierror"
)

func writeJSONError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.Failure(code, message, ""))
}

func writeAPIError(w http.ResponseWriter, err *apierror.APIError) {
	writeJSONError(w, err.HTTPStatus, err.Code, err.Message)
}
