package auth

import (
	"net/http"
	"strings"
)

const (
	// TokenQueryParam carries a credential on connection upgrade URLs.
	TokenQueryParam = "token"
	// TokenHeader carries a raw credential without a scheme.
	TokenHeader = "X-Auth-Token"

	tokenPrefixLen = 8
)

// ExtractToken locates a credential in r. The first source that yields a
// non-empty value wins: Authorization Bearer, the token query parameter,
// then TokenHeader. A malformed Authorization header is skipped.
func ExtractToken(r *http.Request) (string, bool) {
	if token := extractBearerToken(r.Header.Get("Authorization")); token != "" {
		return token, true
	}
	if r.URL != nil {
		if token := strings.TrimSpace(r.URL.Query().Get(TokenQueryParam)); token != "" {
			return token, true
		}
	}
	if token := strings.TrimSpace(r.Header.Get(TokenHeader)); token != "" {
		return token, true
	}
	return "", false
}

// extractBearerToken returns the token of a "Bearer <token>" header value,
// or "" when the value has another shape.
func extractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// TokenPrefix returns a short prefix of token that is safe to log. Short
// tokens yield at most half their length.
func TokenPrefix(token string) string {
	n := tokenPrefixLen
	if len(token) < 2*tokenPrefixLen {
		n = len(token) / 2
	}
	return token[:n]
}
