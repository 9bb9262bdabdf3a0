package auth

import "github.com/upb/crm-gateway/models"

// Tier is the trust level a message type requires.
type Tier string

const (
	TierPublic        Tier = "public"
	TierAuthenticated Tier = "authenticated"
	TierAdmin         Tier = "admin"
	TierUnknown       Tier = "unknown"
)

var messageTiers = map[string]Tier{
	models.MessageTypeHeartbeat: TierPublic,
	models.MessageTypeJoin:      TierPublic,
	models.MessageTypeLeave:     TierPublic,
	models.MessageTypeMessage:   TierPublic,

	models.MessageTypeMetricsGet:       TierAuthenticated,
	models.MessageTypeMetricsSubscribe: TierAuthenticated,
	models.MessageTypeAgentStatus:      TierAuthenticated,
	models.MessageTypeVoiceProgress:    TierAuthenticated,

	models.MessageTypeBroadcast:    TierAdmin,
	models.MessageTypeSystemUpdate: TierAdmin,
	models.MessageTypeUserManage:   TierAdmin,
}

// TierOf classifies messageType. Unlisted types are TierUnknown.
func TierOf(messageType string) Tier {
	if tier, ok := messageTiers[messageType]; ok {
		return tier
	}
	return TierUnknown
}

// CanSend reports whether identity may send messageType. identity may be nil.
// Elevated roles may send every type, including unknown ones.
func CanSend(identity *models.Identity, messageType string) bool {
	if identity.IsElevated() {
		return true
	}

	switch TierOf(messageType) {
	case TierPublic:
		return true
	case TierAuthenticated:
		return identity.IsAuthenticated()
	default:
		return false
	}
}
