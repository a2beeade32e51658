package permission

import (
	"context"
	"errors"

	"sic_device_agent/internal/store"

	"go.uber.org/zap"
)

// Capability identifies a platform permission the agent may hold.
type Capability string

const (
	FineLocation       Capability = "fine_location"
	BackgroundLocation Capability = "background_location"
)

func (c Capability) storageKey() string {
	return "@perm_" + string(c)
}

func (c Capability) prompt() string {
	switch c {
	case FineLocation:
		return "Allow precise location access?"
	case BackgroundLocation:
		return "Allow location access while the app is in the background?"
	default:
		return "Allow " + string(c) + "?"
	}
}

// Prompter is the platform's yes/no dialog. Request uses it; Check never does.
type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Service models platform permissions as an external oracle. Grants are
// durable: once decided, Check answers without prompting across restarts.
type Service interface {
	// Check reports whether the capability is currently granted. It never
	// prompts and fails closed on read errors.
	Check(ctx context.Context, capability Capability) bool
	// Request prompts for the capability unless it is already granted, and
	// records the decision durably.
	Request(ctx context.Context, capability Capability) (bool, error)
}

type service struct {
	repo     store.Repository
	prompter Prompter
	logger   *zap.Logger
}

// NewService creates the permission service backed by the local store.
func NewService(repo store.Repository, prompter Prompter, logger *zap.Logger) Service {
	return &service{
		repo:     repo,
		prompter: prompter,
		logger:   logger.Named("permission"),
	}
}

func (s *service) Check(ctx context.Context, capability Capability) bool {
	value, err := s.repo.Get(ctx, capability.storageKey())
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("Failed to read permission grant, treating as denied",
				zap.String("capability", string(capability)), zap.Error(err))
		}
		return false
	}
	return value == "true"
}

func (s *service) Request(ctx context.Context, capability Capability) (bool, error) {
	if s.Check(ctx, capability) {
		return true, nil
	}

	granted, err := s.prompter.Confirm(ctx, capability.prompt())
	if err != nil {
		s.logger.Warn("Permission prompt failed, treating as denied",
			zap.String("capability", string(capability)), zap.Error(err))
		granted = false
	}

	value := "false"
	if granted {
		value = "true"
	}
	if err := s.repo.Set(ctx, capability.storageKey(), value); err != nil {
		s.logger.Error("Failed to persist permission grant",
			zap.String("capability", string(capability)), zap.Error(err))
		return granted, err
	}

	s.logger.Info("Permission decision recorded",
		zap.String("capability", string(capability)), zap.Bool("granted", granted))
	return granted, nil
}
