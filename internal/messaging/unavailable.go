package messaging

import (
	"context"

	"sic_device_agent/internal/common"

	"go.uber.org/zap"
)

// unavailable is the explicit no-capability variant of the messaging
// service. Token requests fail, handlers never fire.
type unavailable struct {
	logger *zap.Logger
}

// NewUnavailable creates the messaging variant used when no push transport
// is configured.
func NewUnavailable(logger *zap.Logger) Service {
	return &unavailable{logger: logger.Named("messaging")}
}

func (u *unavailable) RequestToken(ctx context.Context) (string, error) {
	return "", common.NewClientError(common.CategoryUnavailable, "push messaging is not configured")
}

func (u *unavailable) DeleteToken(ctx context.Context) error {
	return nil
}

func (u *unavailable) OnMessage(h Handler) {}

func (u *unavailable) OnBackgroundMessage(h Handler) {}

func (u *unavailable) SetForeground(foreground bool) {}

func (u *unavailable) Start() error {
	u.logger.Debug("Messaging unavailable, nothing to start")
	return nil
}

func (u *unavailable) Stop(ctx context.Context) error {
	return nil
}
