package messaging

import (
	"context"

	"sic_device_agent/internal/config"

	"go.uber.org/zap"
)

// Notification is the displayable part of a push message.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Message is one delivered push. The data bag is opaque to the agent and
// forwarded verbatim to the backend when a location is reported.
type Message struct {
	MessageID    string            `json:"messageId"`
	Notification *Notification     `json:"notification,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
}

// Handler processes one delivered message. Background handlers must return
// normally in every branch; the dispatch path has no error channel.
type Handler func(ctx context.Context, msg Message)

// Service is the push-messaging capability. The SDK behind it is optional
// at runtime, so construction always succeeds and call sites branch on the
// concrete behavior, never on a nil reference.
type Service interface {
	// RequestToken obtains an opaque delivery token. May fail independently
	// of registration; callers degrade to an empty token.
	RequestToken(ctx context.Context) (string, error)
	// DeleteToken invalidates the current delivery token.
	DeleteToken(ctx context.Context) error
	// OnMessage registers the handler for messages arriving while the app
	// is foregrounded.
	OnMessage(h Handler)
	// OnBackgroundMessage registers the handler for messages arriving while
	// the app is not foregrounded.
	OnBackgroundMessage(h Handler)
	// SetForeground flips which handler receives subsequent messages.
	SetForeground(foreground bool)
	// Start begins receiving pushes. No-op for the unavailable variant.
	Start() error
	// Stop shuts delivery down, waiting up to ctx for in-flight requests.
	Stop(ctx context.Context) error
}

// NewFromConfig selects the concrete messaging capability. A configured
// listen address enables the relay-backed variant; otherwise messaging is
// explicitly unavailable and registration proceeds tokenless.
func NewFromConfig(cfg *config.Config, logger *zap.Logger) Service {
	if cfg.PushListenAddr == "" {
		logger.Warn("Push messaging not configured, capability unavailable")
		return NewUnavailable(logger)
	}
	return NewRelay(cfg, logger)
}
