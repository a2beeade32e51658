package location

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"sic_device_agent/internal/config"

	"go.uber.org/zap"
)

// Fix is a single captured position. Never persisted, only forwarded.
type Fix struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Provider acquires one location fix. Callers bound the wait through ctx;
// implementations must respect cancellation rather than block.
type Provider interface {
	CurrentFix(ctx context.Context) (Fix, error)
}

// NewFromConfig selects the concrete provider: a fixed position from config,
// or an external locator command whose stdout is a {latitude, longitude}
// JSON object (gpsd shims, termux-location and the like).
func NewFromConfig(cfg *config.Config, logger *zap.Logger) (Provider, error) {
	switch cfg.LocationSource {
	case "static":
		return &staticProvider{fix: Fix{Latitude: cfg.LocationLat, Longitude: cfg.LocationLon}}, nil
	case "command":
		return &commandProvider{
			command: cfg.LocationCommand,
			logger:  logger.Named("location"),
		}, nil
	default:
		return nil, fmt.Errorf("unknown location source %q", cfg.LocationSource)
	}
}

type staticProvider struct {
	fix Fix
}

func (p *staticProvider) CurrentFix(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}
	return p.fix, nil
}

type commandProvider struct {
	command string
	logger  *zap.Logger
}

func (p *commandProvider) CurrentFix(ctx context.Context) (Fix, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", p.command)
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		p.logger.Warn("Locator command failed", zap.Error(err))
		return Fix{}, fmt.Errorf("locator command failed: %w", err)
	}

	var fix Fix
	if err := json.Unmarshal(out.Bytes(), &fix); err != nil {
		p.logger.Warn("Locator command output unparsable", zap.Error(err))
		return Fix{}, fmt.Errorf("locator command output unparsable: %w", err)
	}
	return fix, nil
}
