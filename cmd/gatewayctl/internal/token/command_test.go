package token

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestNewTokenCommand(t *testing.T) {
	cmd := NewTokenCommand()

	require.NotNil(t, cmd)

	assert.Equal(t, "token", cmd.Use)
	assert.True(t, cmd.HasExample())
	assert.True(t, cmd.HasSubCommands())

	issue, _, err := cmd.Find([]string{"issue"})
	require.NoError(t, err)
	assert.NotNil(t, issue.Flags().Lookup("secret"))
	assert.NotNil(t, issue.Flags().Lookup("issuer"))
	assert.NotNil(t, issue.Flags().Lookup("user-id"))
	assert.NotNil(t, issue.Flags().Lookup("email"))
	assert.NotNil(t, issue.Flags().Lookup("role"))
	assert.NotNil(t, issue.Flags().Lookup("meta"))

	verify, _, err := cmd.Find([]string{"verify"})
	require.NoError(t, err)
	assert.NotNil(t, verify.Flags().Lookup("secret"))
}

func TestIssue(t *testing.T) {
	tests := []struct {
		name    string
		opts    IssueOptions
		wantErr string
	}{
		{
			name: "valid",
			opts: IssueOptions{Secret: testSecret, UserID: "u-1", Email: "a@example.com", Role: "admin"},
		},
		{
			name:    "missing user id",
			opts:    IssueOptions{Secret: testSecret},
			wantErr: "user-id is required",
		},
		{
			name:    "bad email",
			opts:    IssueOptions{Secret: testSecret, UserID: "u-1", Email: "not-an-email"},
			wantErr: "email must be a valid email",
		},
		{
			name:    "unknown role",
			opts:    IssueOptions{Secret: testSecret, UserID: "u-1", Role: "root"},
			wantErr: "role must be one of: admin, agent, user",
		},
		{
			name:    "missing secret",
			opts:    IssueOptions{UserID: "u-1"},
			wantErr: "secret is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer

			err := Issue(&out, tt.opts)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Empty(t, out.String())
				return
			}
			require.NoError(t, err)

			var resp issued
			require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
			assert.NotEmpty(t, resp.Token)
			assert.Equal(t, "Bearer", resp.TokenType)
			assert.Equal(t, int64(86400), resp.ExpiresIn)
		})
	}
}

func TestIssueThenVerify(t *testing.T) {
	var issuedOut bytes.Buffer
	require.NoError(t, Issue(&issuedOut, IssueOptions{
		Secret:   testSecret,
		UserID:   "u-42",
		Email:    "agent@example.com",
		Role:     "agent",
		Metadata: map[string]string{"team": "support"},
	}))

	var resp issued
	require.NoError(t, json.Unmarshal(issuedOut.Bytes(), &resp))

	var verifyOut bytes.Buffer
	require.NoError(t, Verify(&verifyOut, VerifyOptions{Secret: testSecret, Token: resp.Token}))

	var identity map[string]interface{}
	require.NoError(t, json.Unmarshal(verifyOut.Bytes(), &identity))
	assert.Equal(t, "u-42", identity["id"])
	assert.Equal(t, "agent@example.com", identity["email"])
	assert.Equal(t, "agent", identity["role"])
	assert.Equal(t, map[string]interface{}{"team": "support"}, identity["metadata"])
}

func TestVerify_WrongSecret(t *testing.T) {
	var issuedOut bytes.Buffer
	require.NoError(t, Issue(&issuedOut, IssueOptions{Secret: testSecret, UserID: "u-1"}))

	var resp issued
	require.NoError(t, json.Unmarshal(issuedOut.Bytes(), &resp))

	err := Verify(&bytes.Buffer{}, VerifyOptions{Secret: "other-secret", Token: resp.Token})
	assert.Error(t, err)
}

func TestVerify_MissingOptions(t *testing.T) {
	err := Verify(&bytes.Buffer{}, VerifyOptions{})

	require.Error(t, err)
	assert.Equal(t, "invalid options: secret is required; token is required", err.Error())
}

func TestCommand_IssueViaFlags(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cmd := NewTokenCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"issue", "--user-id", "u-7", "--meta", "team=sales"})

	require.NoError(t, cmd.Execute())

	var resp issued
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))

	verify := NewTokenCommand()
	var verifyOut bytes.Buffer
	verify.SetOut(&verifyOut)
	verify.SetArgs([]string{"verify", "Bearer " + resp.Token})

	require.NoError(t, verify.Execute())
	assert.Contains(t, verifyOut.String(), `"id": "u-7"`)
}
