package models

import "encoding/json"

// Message types carried on persistent connections.
const (
	MessageTypeHeartbeat = "heartbeat"
	MessageTypeJoin      = "join"
	MessageTypeLeave     = "leave"
	MessageTypeMessage   = "message"

	MessageTypeMetricsGet       = "metrics:get"
	MessageTypeMetricsSubscribe = "metrics:subscribe"
	MessageTypeAgentStatus      = "agent:status"
	MessageTypeVoiceProgress    = "voice:progress"

	MessageTypeBroadcast    = "broadcast"
	MessageTypeSystemUpdate = "system:update"
	MessageTypeUserManage   = "user:manage"

	// MessageTypeError is outbound only.
	MessageTypeError = "error"
)

// ErrorPayload is the payload of an outbound error envelope.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope is a single message on a persistent connection.
type Envelope struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope builds an envelope, marshalling payload when non-nil.
func NewEnvelope(msgType, channel string, payload interface{}) Envelope {
	env := Envelope{Type: msgType, Channel: channel}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			env.Payload = raw
		}
	}
	return env
}
