// Package observability builds the gateway's structured logger.
//
// Every component receives a *zap.Logger from here; security-relevant
// rejections are logged at warn level with the event type, client IP
// and request ID as fields.
package observability
