package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/upb/crm-gateway/models"
)

func TestCanJoin(t *testing.T) {
	admin := &models.Identity{ID: "1", Role: models.RoleAdmin}
	user := &models.Identity{ID: "7", Role: models.RoleUser}
	noRole := &models.Identity{ID: "9"}

	tests := []struct {
		name     string
		identity *models.Identity
		channel  string
		want     bool
	}{
		{"admin joins anything", admin, "user:999", true},
		{"admin joins unknown namespace", admin, "billing:internal", true},
		{"own user channel", user, "user:7", true},
		{"other user channel", user, "user:8", false},
		{"user channel prefix only", user, "user:70", false},
		{"anonymous user channel", nil, "user:7", false},
		{"agent channel authenticated", noRole, "agent:42", true},
		{"agent channel anonymous", nil, "agent:42", false},
		{"public prefix anonymous", nil, "public:lobby", true},
		{"dashboard overview anonymous", nil, "dashboard:overview", true},
		{"clips analytics anonymous", nil, "clips:analytics:today", true},
		{"other dashboard denied", nil, "dashboard:billing", false},
		{"unknown namespace denied", user, "team:sales", false},
		{"empty identity treated as anonymous", &models.Identity{}, "agent:1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanJoin(tt.identity, tt.channel))
		})
	}
}

func TestCanJoin_UserChannelProperty(t *testing.T) {
	ids := []string{"1", "2", "abc", "user-42"}

	for _, owner := range ids {
		channel := UserChannelPrefix + owner
		for _, caller := range ids {
			identity := &models.Identity{ID: caller, Role: models.RoleAgent}
			assert.Equal(t, caller == owner, CanJoin(identity, channel), "caller %s channel %s", caller, channel)

			elevated := &models.Identity{ID: caller, Role: models.RoleAdmin}
			assert.True(t, CanJoin(elevated, channel))
		}
	}
}

func TestIsPublicChannel(t *testing.T) {
	assert.True(t, IsPublicChannel("public:news"))
	assert.False(t, IsPublicChannel("agent:1"))
}
