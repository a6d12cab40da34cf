package middleware

import (
	"net"
	"net/http"
)

// CaptureClientIP stores the request's remote host in the context. Mount it after chi's
// RealIP so X-Forwarded-For and X-Real-IP are already applied to RemoteAddr.
func CaptureClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ip)))
	})
}
