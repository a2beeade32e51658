package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"sic_device_agent/internal/common"
	"sic_device_agent/internal/config"
	"sic_device_agent/internal/delivery"
	"sic_device_agent/internal/jobs"
	"sic_device_agent/internal/messaging"
	"sic_device_agent/internal/profile"
	"sic_device_agent/internal/registration"
	"sic_device_agent/internal/store"
	"sic_device_agent/internal/ui"

	"go.uber.org/zap"
)

// Agent wires the workflow together: on startup it shows the identity card
// when a profile is already stored, otherwise it runs the interactive
// registration, then idles in the background receiving pushes.
type Agent struct {
	cfg          *config.Config
	logger       *zap.Logger
	store        *store.Service
	registration *registration.Service
	messaging    messaging.Service
	background   *delivery.Handler
	refreshJob   *jobs.TokenRefreshJob
	terminal     *ui.Terminal
}

// NewAgent creates a new instance of the device agent.
func NewAgent(
	cfg *config.Config,
	logger *zap.Logger,
	storeService *store.Service,
	registrationService *registration.Service,
	messagingService messaging.Service,
	backgroundHandler *delivery.Handler,
	refreshJob *jobs.TokenRefreshJob,
	terminal *ui.Terminal,
) *Agent {
	return &Agent{
		cfg:          cfg,
		logger:       logger.Named("agent"),
		store:        storeService,
		registration: registrationService,
		messaging:    messagingService,
		background:   backgroundHandler,
		refreshJob:   refreshJob,
		terminal:     terminal,
	}
}

// Run drives the agent until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	// Handlers must be registered before delivery starts; a push can
	// arrive mid-registration.
	a.messaging.OnMessage(a.handleForegroundMessage)
	a.messaging.OnBackgroundMessage(a.background.Handle)

	if err := a.messaging.Start(); err != nil {
		return fmt.Errorf("failed to start push delivery: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.messaging.Stop(stopCtx); err != nil {
			a.logger.Warn("Push delivery did not stop cleanly", zap.Error(err))
		}
	}()

	if err := a.refreshJob.SetupAndStart(); err != nil {
		a.logger.Warn("Token refresh job could not be scheduled", zap.Error(err))
	}
	defer a.refreshJob.Stop()

	a.messaging.SetForeground(true)

	p, err := a.store.LoadProfile(ctx)
	if err != nil {
		a.logger.Warn("Stored profile unreadable, falling back to registration", zap.Error(err))
		p = nil
	}

	if p == nil {
		p, err = a.registerInteractively(ctx)
		if err != nil {
			return err
		}
	}

	a.showIdentityCard(p)

	// Interactive phase over: pushes now take the background path.
	a.messaging.SetForeground(false)
	a.logger.Info("Agent idling, waiting for pushes")

	<-ctx.Done()
	a.logger.Info("Agent shutting down")
	return nil
}

// registerInteractively prompts for an email until a registration succeeds.
// Every failure is terminal for its attempt; the user re-triggers by typing
// another email.
func (a *Agent) registerInteractively(ctx context.Context) (*profile.Profile, error) {
	a.terminal.Println("No stored registration found.")
	for {
		email, err := a.terminal.ReadLine(ctx, "Enter your email: ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("input closed before registration completed")
			}
			return nil, err
		}

		p, err := a.registration.Register(ctx, email)
		if err == nil {
			return p, nil
		}

		if clientErr, ok := common.IsClientError(err); ok {
			a.terminal.Println("Error: " + clientErr.Message)
		} else {
			a.terminal.Println("Error: " + err.Error())
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}

// handleForegroundMessage is the alert-dialog analog for pushes arriving
// during the interactive phase.
func (a *Agent) handleForegroundMessage(ctx context.Context, msg messaging.Message) {
	a.logger.Info("Foreground message received", zap.String("message_id", msg.MessageID))
	title := "Notification"
	body := "You have a new message"
	if msg.Notification != nil {
		if msg.Notification.Title != "" {
			title = msg.Notification.Title
		}
		if msg.Notification.Body != "" {
			body = msg.Notification.Body
		}
	}
	a.terminal.Println("")
	a.terminal.Println("── " + title + " ──")
	a.terminal.Println(body)
}

func (a *Agent) showIdentityCard(p *profile.Profile) {
	a.terminal.Println("")
	a.terminal.Println("┌─ Identity Card ─────────────────────┐")
	for _, field := range p.CardFields() {
		a.terminal.Println(fmt.Sprintf("  %-16s %s", field.Label+":", field.Value))
	}
	a.terminal.Println("└─────────────────────────────────────┘")
}
