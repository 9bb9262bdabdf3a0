package middleware

import (
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/upb/crm-gateway/models"
	"github.com/upb/crm-gateway/utils"
	"go.uber.org/zap"
)

// Default body ceilings
const (
	DefaultMaxBodyBytes          int64 = 10 << 20
	DefaultMaxSensitiveBodyBytes int64 = 1 << 20
)

var securityHeaders = map[string]string{
	"Content-Security-Policy":      "default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self' data:; connect-src 'self'; frame-ancestors 'none'; object-src 'none'; base-uri 'self'",
	"Strict-Transport-Security":    "max-age=31536000; includeSubDomains; preload",
	"X-Frame-Options":              "DENY",
	"X-Content-Type-Options":       "nosniff",
	"Referrer-Policy":              "strict-origin-when-cross-origin",
	"Cross-Origin-Resource-Policy": "same-origin",
	"Cross-Origin-Opener-Policy":   "same-origin",
}

// SecurityHeaders sets the static response header policy.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for k, v := range securityHeaders {
			h.Set(k, v)
		}
		h.Del("X-Powered-By")
		next.ServeHTTP(w, r)
	})
}

type anomalyPattern struct {
	name string
	re   *regexp.Regexp
}

var anomalyPatterns = []anomalyPattern{
	{"ip_with_markup", regexp.MustCompile(`\d{1,3}(?:\.\d{1,3}){3}[^\n]*[<>"']`)},
	{"markup", regexp.MustCompile(`[<>]`)},
	// Bare quotes occur in ETags and client hints; only a quote closing into
	// markup or a call is flagged.
	{"quote_breakout", regexp.MustCompile(`["']\s*[<>()]`)},
	{"script_url", regexp.MustCompile(`(?i)(?:java|vb)script\s*:`)},
	{"event_handler", regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)},
}

// Hardening holds the request hardening middleware that reports to the
// security event sink.
type Hardening struct {
	events EventRecorder
	logger *zap.Logger
}

// NewHardening creates a Hardening. events may be nil.
func NewHardening(events EventRecorder, logger *zap.Logger) *Hardening {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hardening{
		events: recorderOrNop(events),
		logger: logger,
	}
}

// AnomalyScan tests every request header against injection indicators.
// Matches are recorded; the request always proceeds.
func (h *Hardening) AnomalyScan(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if matches := ScanHeaders(r.Header); len(matches) > 0 {
			h.logger.Warn("suspicious request headers",
				zap.String("request_id", GetRequestIDFromContext(r.Context())),
				zap.String("ip", GetClientIPFromContext(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Strings("patterns", matches))

			h.events.Record(r.Context(), NewRequestEvent(r, models.SecurityEventHeaderAnomaly).
				WithDetails(map[string]interface{}{"patterns": matches}))
		}
		next.ServeHTTP(w, r)
	})
}

// ScanHeaders returns the names of the anomaly patterns found in header,
// sorted and without duplicates.
func ScanHeaders(header http.Header) []string {
	var b strings.Builder
	for name, values := range header {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(strings.Join(values, ", "))
		b.WriteByte('\n')
	}
	serialized := b.String()

	var matches []string
	for _, p := range anomalyPatterns {
		if p.re.MatchString(serialized) {
			matches = append(matches, p.name)
		}
	}
	sort.Strings(matches)
	return matches
}

// LimitBodySize rejects requests whose declared Content-Length exceeds max
// with 413, and caps undeclared bodies at max bytes.
func (h *Hardening) LimitBodySize(max int64) func(http.Handler) http.Handler {
	if max <= 0 {
		max = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > max {
				h.logger.Warn("payload too large",
					zap.String("request_id", GetRequestIDFromContext(r.Context())),
					zap.String("ip", GetClientIPFromContext(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int64("content_length", r.ContentLength),
					zap.Int64("max_size", max))

				h.events.Record(r.Context(), NewRequestEvent(r, models.SecurityEventPayloadTooLarge).
					WithDetails(map[string]interface{}{"contentLength": r.ContentLength, "maxSize": max}))

				_ = utils.WritePayloadTooLarge(w, max)
				return
			}

			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, max)
			}
			next.ServeHTTP(w, r)
		})
	}
}
