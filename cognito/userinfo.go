package cognito

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrUserNotActive is returned when userInfo rejects the access token,
	// meaning the user is disabled, deleted or signed out.
	ErrUserNotActive = errors.New("user is not active")

	// ErrUserInfoUnavailable is returned when the userInfo endpoint cannot
	// be reached or fails.
	ErrUserInfoUnavailable = errors.New("userInfo endpoint unavailable")
)

// UserInfoClient calls the user pool domain's /oauth2/userInfo endpoint.
type UserInfoClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewUserInfoClient creates a client for domain, either a bare hosted
// domain ("auth.example.com") or a base URL with scheme.
func NewUserInfoClient(domain string, timeout time.Duration) *UserInfoClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimRight(domain, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return &UserInfoClient{
		endpoint:   base + "/oauth2/userInfo",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetUserInfo returns the user attributes for an access token.
func (c *UserInfoClient) GetUserInfo(ctx context.Context, accessToken string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserInfoUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status code %d", ErrUserNotActive, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: status code %d", ErrUserInfoUnavailable, resp.StatusCode)
	}

	var attrs map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&attrs); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUserInfoUnavailable, err)
	}
	return attrs, nil
}
