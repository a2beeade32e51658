package delivery

import (
	"context"
	"time"

	"sic_device_agent/internal/api"
	"sic_device_agent/internal/config"
	"sic_device_agent/internal/location"
	"sic_device_agent/internal/messaging"
	"sic_device_agent/internal/permission"

	"go.uber.org/zap"
)

// ConsentReader reads the durable consent flag.
type ConsentReader interface {
	GetLocationConsent(ctx context.Context) bool
}

// PermissionChecker re-checks platform grants without prompting.
type PermissionChecker interface {
	Check(ctx context.Context, capability permission.Capability) bool
}

// FixProvider acquires one location fix.
type FixProvider interface {
	CurrentFix(ctx context.Context) (location.Fix, error)
}

// Reporter forwards a fix to the backend.
type Reporter interface {
	ReportLocation(ctx context.Context, report api.LocationReport) error
}

// Handler runs when a push arrives while the app is not foregrounded. It
// conditionally captures a location fix and reports it. Handle returns
// normally in every branch: the delivery path has no error channel, so
// internal failures are logged and swallowed.
type Handler struct {
	consent                 ConsentReader
	permissions             PermissionChecker
	locations               FixProvider
	reporter                Reporter
	fixTimeout              time.Duration
	backgroundGrantRequired bool
	logger                  *zap.Logger
}

// NewHandler creates the background delivery handler.
func NewHandler(
	consent ConsentReader,
	permissions PermissionChecker,
	locations FixProvider,
	reporter Reporter,
	cfg *config.Config,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		consent:                 consent,
		permissions:             permissions,
		locations:               locations,
		reporter:                reporter,
		fixTimeout:              cfg.LocationFixTimeout,
		backgroundGrantRequired: cfg.BackgroundGrantRequired,
		logger:                  logger.Named("delivery"),
	}
}

// Handle processes one background push. Strictly sequential; no step runs
// past a failed precondition.
func (h *Handler) Handle(ctx context.Context, msg messaging.Message) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Background handler panicked", zap.Any("panic", r))
		}
	}()

	logger := h.logger.With(zap.String("message_id", msg.MessageID))

	if !h.consent.GetLocationConsent(ctx) {
		logger.Debug("User has not consented to background location, skipping")
		return
	}

	// Background context cannot prompt: check, never request.
	if !h.permissions.Check(ctx, permission.FineLocation) {
		logger.Warn("Fine location grant missing, skipping location report")
		return
	}
	if h.backgroundGrantRequired && !h.permissions.Check(ctx, permission.BackgroundLocation) {
		logger.Warn("Background location grant missing, skipping location report")
		return
	}

	fixCtx, cancel := context.WithTimeout(ctx, h.fixTimeout)
	defer cancel()

	fix, err := h.locations.CurrentFix(fixCtx)
	if err != nil {
		// No fix is not an error state worth surfacing; there is no UI here.
		logger.Warn("Could not obtain a location fix", zap.Error(err))
		return
	}

	data := msg.Data
	if data == nil {
		data = map[string]string{}
	}

	report := api.LocationReport{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		MessageID: msg.MessageID,
		Data:      data,
	}
	if err := h.reporter.ReportLocation(ctx, report); err != nil {
		logger.Error("Failed to report location", zap.Error(err))
		return
	}

	logger.Info("Background location reported",
		zap.Float64("latitude", fix.Latitude),
		zap.Float64("longitude", fix.Longitude))
}
