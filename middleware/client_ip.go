package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// UnknownClientIP is used when no source yields a parseable address
const UnknownClientIP = "unknown"

// ClientIP stores the normalized client address in the request context.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ResolveClientIP(r)
		if ip == "" {
			ip = UnknownClientIP
		}
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ip)))
	})
}

// ResolveClientIP returns the caller address from the first usable source:
// the first X-Forwarded-For entry, X-Real-IP, then RemoteAddr. IPv4-mapped
// IPv6 addresses are unwrapped. It returns "" when nothing parses.
func ResolveClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := normalizeIP(first); ip != "" {
			return ip
		}
	}

	if ip := normalizeIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return normalizeIP(host)
}

func normalizeIP(raw string) string {
	raw = strings.Trim(strings.TrimSpace(raw), "[]")
	if raw == "" {
		return ""
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return ""
	}
	return addr.Unmap().WithZone("").String()
}
