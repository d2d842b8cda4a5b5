package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"go-user-api/internal/model"
)

const defaultRequestTimeout = 30 * time.Second

// Timeout bounds handler execution. The request context is cancelled at the
// deadline so store calls abort with it.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	body, _ := json.Marshal(model.Failure("REQUEST_TIMEOUT", "request timed out", ""))

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, string(body))
	}
}
