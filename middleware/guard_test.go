package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/crm-gateway/models"
	"github.com/upb/crm-gateway/utils"
	"github.com/upb/crm-gateway/validation"
	"go.uber.org/zap"
)

var contactSchema = validation.Schema{
	"email": validation.EmailRule{Required: true},
	"name":  validation.StringRule{MaxLength: 50},
	"age":   validation.NumberRule{Integer: true, Min: validation.Bound(0)},
}

func TestGuard_ValidateBody(t *testing.T) {
	t.Run("sanitized body reaches handler", func(t *testing.T) {
		sink := &eventSink{}
		g := NewGuard(validation.NewValidator(zap.NewNop()), sink, zap.NewNop())

		var got map[string]interface{}
		handler := g.ValidateBody(contactSchema)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = GetSanitizedBody(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
			`{"email":" ana@example.com ","name":"<b>Ana</b>","age":"31","isAdmin":true}`))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, map[string]interface{}{
			"email": "ana@example.com",
			"name":  "Ana",
			"age":   int64(31),
		}, got)
		assert.Equal(t, []models.SecurityEventType{models.SecurityEventUnexpectedFields}, sink.types())
	})

	t.Run("invalid email is rejected", func(t *testing.T) {
		g := NewGuard(nil, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"invalid"}`))
		w := httptest.NewRecorder()
		g.ValidateBody(contactSchema)(failHandler(t)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var body utils.ValidationErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "VALIDATION_ERROR", body.Error)
		assert.Equal(t, []string{"email must be a valid email address"}, body.Details)
	})

	t.Run("malformed json", func(t *testing.T) {
		g := NewGuard(nil, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`[1,2]`))
		w := httptest.NewRecorder()
		g.ValidateBody(contactSchema)(failHandler(t)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "body must be a JSON object")
	})

	t.Run("empty body checks required fields", func(t *testing.T) {
		g := NewGuard(nil, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		w := httptest.NewRecorder()
		g.ValidateBody(contactSchema)(failHandler(t)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "email is required")
	})

	t.Run("capped body maps to 413", func(t *testing.T) {
		g := NewGuard(nil, nil, nil)
		h := NewHardening(nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"`+strings.Repeat("a", 200)+`"}`))
		req.ContentLength = -1
		w := httptest.NewRecorder()
		h.LimitBodySize(32)(g.ValidateBody(contactSchema)(failHandler(t))).ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestGuard_ValidateQuery(t *testing.T) {
	g := NewGuard(nil, nil, nil)
	schema := validation.Schema{
		"status": validation.EnumRule{Values: []string{"open", "closed"}},
		"tags":   validation.ArrayRule{MaxItems: 3, Items: validation.StringRule{}},
	}

	t.Run("valid", func(t *testing.T) {
		var got map[string]interface{}
		handler := g.ValidateQuery(schema)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = GetSanitizedQuery(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/?status=open&tags=a&tags=b&debug=1", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "open", got["status"])
		assert.Equal(t, []interface{}{"a", "b"}, got["tags"])
		assert.NotContains(t, got, "debug")
	})

	t.Run("single value for array rule", func(t *testing.T) {
		var got map[string]interface{}
		handler := g.ValidateQuery(schema)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = GetSanitizedQuery(r.Context())
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/?tags=solo", nil))

		assert.Equal(t, []interface{}{"solo"}, got["tags"])
	})

	t.Run("invalid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?status=pending", nil)
		w := httptest.NewRecorder()

		g.ValidateQuery(schema)(failHandler(t)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "status must be one of: open, closed")
	})
}
