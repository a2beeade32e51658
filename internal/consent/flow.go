package consent

import (
	"context"

	"sic_device_agent/internal/config"
	"sic_device_agent/internal/permission"

	"go.uber.org/zap"
)

// State of the consent flow. NotAsked transitions to Asked exactly once per
// run, immediately after a successful registration; Granted and Denied are
// terminal for that run.
type State int

const (
	StateNotAsked State = iota
	StateAsked
	StateGranted
	StateDenied
)

func (s State) String() string {
	switch s {
	case StateNotAsked:
		return "not_asked"
	case StateAsked:
		return "asked"
	case StateGranted:
		return "granted"
	case StateDenied:
		return "denied"
	default:
		return "unknown"
	}
}

const consentQuestion = "Allow the app to collect your location when a notification is received? " +
	"You can change this later in settings."

// Prompter presents the binary consent choice to the user.
type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// PermissionRequester requests platform location capabilities.
type PermissionRequester interface {
	Request(ctx context.Context, capability permission.Capability) (bool, error)
}

// ConsentWriter persists the consent decision.
type ConsentWriter interface {
	SetLocationConsent(ctx context.Context, granted bool) error
}

// Flow asks for background-location consent once and records the outcome.
// It never fails the surrounding workflow and never retries a denial.
type Flow struct {
	prompter                Prompter
	permissions             PermissionRequester
	store                   ConsentWriter
	backgroundGrantRequired bool
	logger                  *zap.Logger
}

// NewFlow creates the consent and permission flow.
func NewFlow(
	prompter Prompter,
	permissions PermissionRequester,
	store ConsentWriter,
	cfg *config.Config,
	logger *zap.Logger,
) *Flow {
	return &Flow{
		prompter:                prompter,
		permissions:             permissions,
		store:                   store,
		backgroundGrantRequired: cfg.BackgroundGrantRequired,
		logger:                  logger.Named("consent"),
	}
}

// Run drives NotAsked -> Asked -> {Granted, Denied}. Deferring skips the
// platform prompts entirely; accepting requests fine location plus the
// background grant where the platform separates them, and Granted requires
// every requested grant. The resulting boolean is persisted in every branch.
func (f *Flow) Run(ctx context.Context) State {
	accepted, err := f.prompter.Confirm(ctx, consentQuestion)
	if err != nil {
		f.logger.Warn("Consent prompt failed, deferring", zap.Error(err))
		accepted = false
	}

	granted := false
	if accepted {
		granted = f.requestGrants(ctx)
	} else {
		f.logger.Info("User deferred background location consent")
	}

	if err := f.store.SetLocationConsent(ctx, granted); err != nil {
		// Consent failure is never a workflow failure; the flag simply
		// stays absent and reads fail closed.
		f.logger.Error("Failed to persist consent decision", zap.Error(err))
	}

	if granted {
		return StateGranted
	}
	return StateDenied
}

func (f *Flow) requestGrants(ctx context.Context) bool {
	fine, err := f.permissions.Request(ctx, permission.FineLocation)
	if err != nil {
		f.logger.Warn("Fine location request failed", zap.Error(err))
		return false
	}
	if !fine {
		f.logger.Info("Fine location denied")
		return false
	}

	if !f.backgroundGrantRequired {
		return true
	}

	background, err := f.permissions.Request(ctx, permission.BackgroundLocation)
	if err != nil {
		f.logger.Warn("Background location request failed", zap.Error(err))
		return false
	}
	if !background {
		f.logger.Info("Background location denied")
	}
	return background
}
