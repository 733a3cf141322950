package signing

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Middleware verifies the HMAC signature on every request before passing
// control downstream. It rejects with 401 on a missing/invalid signature or
// an out-of-window timestamp (spec §6, §7 AuthError).
func Middleware(secret string, maxSkew time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "failed to read body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if err := Verify(secret, r.Method, r.URL.Path, body, r.Header, maxSkew); err != nil {
				logger.Warn("rejecting unsigned internal request", "path", r.URL.Path, "error", err)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
