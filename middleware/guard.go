package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/upb/crm-gateway/models"
	"github.com/upb/crm-gateway/utils"
	"github.com/upb/crm-gateway/validation"
	"go.uber.org/zap"
)

// Guard validates request payloads against a schema before the handler runs.
type Guard struct {
	validator *validation.Validator
	events    EventRecorder
	logger    *zap.Logger
}

// NewGuard creates a Guard. events may be nil.
func NewGuard(validator *validation.Validator, events EventRecorder, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validator == nil {
		validator = validation.NewValidator(logger)
	}
	return &Guard{
		validator: validator,
		events:    recorderOrNop(events),
		logger:    logger,
	}
}

// ValidateBody decodes a JSON object body and validates it against schema.
// On success the sanitized body is available through GetSanitizedBody; the
// raw body is not forwarded.
func (g *Guard) ValidateBody(schema validation.Schema) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := decodeObject(r.Body)
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					g.events.Record(r.Context(), NewRequestEvent(r, models.SecurityEventPayloadTooLarge).
						WithDetails(map[string]interface{}{"maxSize": maxErr.Limit}))
					_ = utils.WritePayloadTooLarge(w, maxErr.Limit)
					return
				}
				g.reject(w, r, "Invalid JSON body", []string{"body must be a JSON object"})
				return
			}

			result := g.validate(r, data, schema)
			if !result.IsValid {
				g.reject(w, r, "Request validation failed", result.Errors)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSanitizedBody(r.Context(), result.SanitizedData)))
		})
	}
}

// ValidateQuery validates the URL query against schema. Repeated keys, and
// any key whose rule is an ArrayRule, are passed as arrays.
func (g *Guard) ValidateQuery(schema validation.Schema) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := g.validate(r, queryToMap(r.URL.Query(), schema), schema)
			if !result.IsValid {
				g.reject(w, r, "Query validation failed", result.Errors)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSanitizedQuery(r.Context(), result.SanitizedData)))
		})
	}
}

func (g *Guard) validate(r *http.Request, data map[string]interface{}, schema validation.Schema) validation.Result {
	result := g.validator.ValidateData(data, schema)
	if len(result.UnexpectedFields) > 0 {
		g.events.Record(r.Context(), NewRequestEvent(r, models.SecurityEventUnexpectedFields).
			WithDetails(map[string]interface{}{"fields": result.UnexpectedFields}))
	}
	return result
}

func (g *Guard) reject(w http.ResponseWriter, r *http.Request, message string, details []string) {
	g.logger.Warn("request validation failed",
		zap.String("request_id", GetRequestIDFromContext(r.Context())),
		zap.String("ip", GetClientIPFromContext(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Strings("errors", details))
	_ = utils.WriteValidationError(w, message, details)
}

// decodeObject reads a JSON object. An empty body is an empty object.
func decodeObject(body io.Reader) (map[string]interface{}, error) {
	data := map[string]interface{}{}
	if body == nil {
		return data, nil
	}
	if err := json.NewDecoder(body).Decode(&data); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]interface{}{}, nil
		}
		return nil, err
	}
	if data == nil {
		return nil, errors.New("body is null")
	}
	return data, nil
}

func queryToMap(values url.Values, schema validation.Schema) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for key, vs := range values {
		_, isArray := schema[key].(validation.ArrayRule)
		switch {
		case len(vs) == 0:
		case len(vs) == 1 && !isArray:
			out[key] = vs[0]
		default:
			items := make([]interface{}, len(vs))
			for i, v := range vs {
				items[i] = v
			}
			out[key] = items
		}
	}
	return out
}
