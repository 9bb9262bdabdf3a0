package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/upb/crm-gateway/models"
)

// MetricsChannel receives updates for metrics:subscribe clients
const MetricsChannel = "metrics:live"

var (
	errChannelRequired = errors.New("channel is required")
	errNotJoined       = errors.New("join the channel before publishing")
)

// Handler serves one authorized message type
type Handler interface {
	HandleMessage(ctx context.Context, client *Client, env models.Envelope) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, client *Client, env models.Envelope) error

// HandleMessage calls f
func (f HandlerFunc) HandleMessage(ctx context.Context, client *Client, env models.Envelope) error {
	return f(ctx, client, env)
}

// BroadcastHandler fans env out to every connection
func BroadcastHandler(hub *Hub) Handler {
	return HandlerFunc(func(_ context.Context, _ *Client, env models.Envelope) error {
		hub.Broadcast(env)
		return nil
	})
}

// RelayHandler forwards env to the members of env.Channel. The sender must
// have joined it.
func RelayHandler(hub *Hub) Handler {
	return HandlerFunc(func(_ context.Context, client *Client, env models.Envelope) error {
		if env.Channel == "" {
			return errChannelRequired
		}
		if !hub.IsMember(client, env.Channel) {
			return errNotJoined
		}
		hub.Publish(env.Channel, env)
		return nil
	})
}

// StatsHandler replies with the hub's connection counts
func StatsHandler(hub *Hub) Handler {
	return HandlerFunc(func(_ context.Context, client *Client, env models.Envelope) error {
		client.Send(models.NewEnvelope(env.Type, "", map[string]interface{}{
			"hub":       hub.GetStats(),
			"timestamp": time.Now().UTC(),
		}))
		return nil
	})
}

// SubscribeHandler joins the client to channel
func SubscribeHandler(hub *Hub, channel string) Handler {
	return HandlerFunc(func(_ context.Context, client *Client, env models.Envelope) error {
		hub.Join(client, channel)
		client.Send(models.NewEnvelope(env.Type, channel, map[string]bool{"subscribed": true}))
		return nil
	})
}
