package models

// Role values carried on an Identity. Only RoleAdmin is elevated.
const (
	RoleAdmin = "admin"
	RoleAgent = "agent"
	RoleUser  = "user"
)

// Identity is the verified caller record derived from a credential.
// It lives for one request or connection and is never persisted.
type Identity struct {
	ID       string                 `json:"id"`
	Email    string                 `json:"email"`
	Role     string                 `json:"role,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// IsElevated reports whether the identity bypasses ownership and tier checks.
// A nil identity is never elevated.
func (i *Identity) IsElevated() bool {
	return i != nil && i.Role == RoleAdmin
}

// IsAuthenticated reports whether an identity is present.
func (i *Identity) IsAuthenticated() bool {
	return i != nil && i.ID != ""
}
