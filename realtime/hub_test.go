package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/crm-gateway/models"
)

func TestHub_JoinPublishLeave(t *testing.T) {
	hub := NewHub()
	a := NewClient(&models.Identity{ID: "a"}, 4)
	b := NewClient(&models.Identity{ID: "b"}, 4)
	hub.Register(a)
	hub.Register(b)

	require.True(t, hub.Join(a, "public:lobby"))
	require.True(t, hub.Join(b, "public:lobby"))
	assert.True(t, hub.IsMember(a, "public:lobby"))
	assert.Equal(t, Stats{Clients: 2, Channels: 1}, hub.GetStats())

	env := models.NewEnvelope(models.MessageTypeMessage, "public:lobby", map[string]string{"text": "hi"})
	assert.Equal(t, 2, hub.Publish("public:lobby", env))
	assert.Equal(t, env, <-a.Outbound())
	assert.Equal(t, env, <-b.Outbound())

	hub.Leave(b, "public:lobby")
	assert.False(t, hub.IsMember(b, "public:lobby"))
	assert.Equal(t, 1, hub.Publish("public:lobby", env))

	hub.Leave(a, "public:lobby")
	assert.Equal(t, 0, hub.GetStats().Channels)
}

func TestHub_JoinRequiresRegistration(t *testing.T) {
	hub := NewHub()
	c := NewClient(nil, 1)

	assert.False(t, hub.Join(c, "public:lobby"))
	assert.Equal(t, 0, hub.Publish("public:lobby", models.NewEnvelope("message", "public:lobby", nil)))
}

func TestHub_UnregisterClosesAndRemoves(t *testing.T) {
	hub := NewHub()
	c := NewClient(nil, 1)
	hub.Register(c)
	hub.Join(c, "public:a")
	hub.Join(c, "public:b")

	hub.Unregister(c)

	_, open := <-c.Outbound()
	assert.False(t, open)
	assert.False(t, c.Send(models.NewEnvelope("heartbeat", "", nil)))
	assert.Equal(t, Stats{}, hub.GetStats())

	// A second unregister is harmless.
	hub.Unregister(c)
}

func TestHub_SlowSubscriberDropsMessages(t *testing.T) {
	hub := NewHub()
	slow := NewClient(nil, 1)
	hub.Register(slow)
	hub.Join(slow, "public:feed")

	env := models.NewEnvelope(models.MessageTypeMessage, "public:feed", nil)
	assert.Equal(t, 1, hub.Publish("public:feed", env))
	assert.Equal(t, 0, hub.Publish("public:feed", env))
	assert.Len(t, slow.Outbound(), 1)
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()
	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = NewClient(nil, 2)
		hub.Register(clients[i])
	}

	assert.Equal(t, 3, hub.Broadcast(models.NewEnvelope(models.MessageTypeBroadcast, "", nil)))
	for _, c := range clients {
		assert.Len(t, c.Outbound(), 1)
	}
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewClient(nil, 8)
			hub.Register(c)
			hub.Join(c, "public:stress")
			hub.Publish("public:stress", models.NewEnvelope("message", "public:stress", nil))
			hub.Unregister(c)
		}()
	}
	wg.Wait()

	assert.Equal(t, Stats{}, hub.GetStats())
}
