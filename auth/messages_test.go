package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/upb/crm-gateway/models"
)

var (
	publicTypes        = []string{"heartbeat", "join", "leave", "message"}
	authenticatedTypes = []string{"metrics:get", "metrics:subscribe", "agent:status", "voice:progress"}
	adminTypes         = []string{"broadcast", "system:update", "user:manage"}
)

func TestTierOf(t *testing.T) {
	for _, typ := range publicTypes {
		assert.Equal(t, TierPublic, TierOf(typ), typ)
	}
	for _, typ := range authenticatedTypes {
		assert.Equal(t, TierAuthenticated, TierOf(typ), typ)
	}
	for _, typ := range adminTypes {
		assert.Equal(t, TierAdmin, TierOf(typ), typ)
	}
	assert.Equal(t, TierUnknown, TierOf("rm -rf"))
	assert.Equal(t, TierUnknown, TierOf(models.MessageTypeError))
}

func TestCanSend(t *testing.T) {
	admin := &models.Identity{ID: "1", Role: models.RoleAdmin}
	agent := &models.Identity{ID: "2", Role: models.RoleAgent}

	t.Run("public types need no identity", func(t *testing.T) {
		for _, typ := range publicTypes {
			assert.True(t, CanSend(nil, typ), typ)
			assert.True(t, CanSend(agent, typ), typ)
		}
	})

	t.Run("authenticated types", func(t *testing.T) {
		for _, typ := range authenticatedTypes {
			assert.False(t, CanSend(nil, typ), typ)
			assert.False(t, CanSend(&models.Identity{}, typ), typ)
			assert.True(t, CanSend(agent, typ), typ)
		}
	})

	t.Run("admin types", func(t *testing.T) {
		for _, typ := range adminTypes {
			assert.False(t, CanSend(nil, typ), typ)
			assert.False(t, CanSend(agent, typ), typ)
			assert.True(t, CanSend(admin, typ), typ)
		}
	})

	t.Run("unknown types", func(t *testing.T) {
		assert.False(t, CanSend(nil, "unknown"))
		assert.False(t, CanSend(agent, "unknown"))
		assert.True(t, CanSend(admin, "unknown"))
	})
}
