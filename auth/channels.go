package auth

import (
	"strings"

	"github.com/upb/crm-gateway/models"
)

// Channel namespaces with dedicated rules.
const (
	UserChannelPrefix  = "user:"
	AgentChannelPrefix = "agent:"
)

// publicChannelPrefixes may be joined without authentication.
var publicChannelPrefixes = []string{
	"dashboard:overview",
	"clips:analytics",
	"public:",
}

// CanJoin reports whether identity may join channel. identity may be nil.
//
// Rules, first match wins: elevated roles join anything; a user joins its own
// user:<id> channel; any authenticated identity joins agent: channels (agent
// ownership is not checked); anyone joins the public prefixes; the rest is
// denied.
func CanJoin(identity *models.Identity, channel string) bool {
	if identity.IsElevated() {
		return true
	}
	if identity.IsAuthenticated() && channel == UserChannelPrefix+identity.ID {
		return true
	}
	if identity.IsAuthenticated() && strings.HasPrefix(channel, AgentChannelPrefix) {
		return true
	}
	return IsPublicChannel(channel)
}

// IsPublicChannel reports whether channel is open to unauthenticated callers.
func IsPublicChannel(channel string) bool {
	for _, prefix := range publicChannelPrefixes {
		if strings.HasPrefix(channel, prefix) {
			return true
		}
	}
	return false
}
