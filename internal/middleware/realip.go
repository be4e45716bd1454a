package middleware

import (
	"net/http"
	"net/netip"

	"github.com/AnshRaj112/videotube-backend/pkg/clientip"
)

// RealIP rewrites r.RemoteAddr from forwarding headers, but only for requests
// whose direct peer is in trusted. With no trusted proxies it does nothing,
// so a client cannot pick its own rate-limit bucket.
func RealIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(trusted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if addr, ok := clientip.Forwarded(r, trusted); ok {
				r.RemoteAddr = addr.String()
			}
			next.ServeHTTP(w, r)
		})
	}
}
