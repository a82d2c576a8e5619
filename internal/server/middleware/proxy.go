package middleware

import "net/http"

// forwardedHeaders are the client-address headers service.ClientIP reads.
var forwardedHeaders = []string{"X-Forwarded-For", "X-Real-IP"}

// StripForwardedHeaders removes client-address headers so the peer address
// is the only source. Use it when the server is reachable without a
// trusted reverse proxy in front; otherwise any caller can claim an address
// on a key's allow-list.
func StripForwardedHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, h := range forwardedHeaders {
			r.Header.Del(h)
		}
		next.ServeHTTP(w, r)
	})
}
