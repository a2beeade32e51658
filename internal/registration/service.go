package registration

import (
	"context"
	"regexp"
	"strings"

	"sic_device_agent/internal/common"
	"sic_device_agent/internal/consent"
	"sic_device_agent/internal/profile"

	"go.uber.org/zap"
)

// emailPattern is deliberately loose: local@domain.tld shape, no whitespace.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// TokenSource supplies the optional delivery token.
type TokenSource interface {
	RequestToken(ctx context.Context) (string, error)
}

// Registrar performs the remote registration call.
type Registrar interface {
	Register(ctx context.Context, email, token string) (*profile.Profile, error)
}

// ProfileSaver persists the registration result.
type ProfileSaver interface {
	SaveProfile(ctx context.Context, p *profile.Profile) error
}

// ConsentFlow captures the location consent decision after registration.
type ConsentFlow interface {
	Run(ctx context.Context) consent.State
}

// Service orchestrates the registration workflow: token acquisition, remote
// registration, persistence, then consent capture, in that order.
type Service struct {
	tokens  TokenSource
	client  Registrar
	store   ProfileSaver
	consent ConsentFlow
	logger  *zap.Logger
}

// NewService creates a new registration workflow service.
func NewService(
	tokens TokenSource,
	client Registrar,
	store ProfileSaver,
	consentFlow ConsentFlow,
	logger *zap.Logger,
) *Service {
	return &Service{
		tokens:  tokens,
		client:  client,
		store:   store,
		consent: consentFlow,
		logger:  logger.Named("registration"),
	}
}

// Register runs the workflow for one email. Exactly one network registration
// call happens per invocation; token acquisition and the permission prompts
// each happen at most once. A token failure degrades to an empty token, a
// remote or persistence failure aborts with the store untouched beyond what
// already succeeded, and the consent outcome never fails the workflow.
func (s *Service) Register(ctx context.Context, email string) (*profile.Profile, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, common.NewValidationError("Please enter your email")
	}
	if !emailPattern.MatchString(email) {
		return nil, common.NewValidationError("Please enter a valid email address")
	}

	token, err := s.tokens.RequestToken(ctx)
	if err != nil {
		s.logger.Warn("Delivery token unavailable, continuing registration without it", zap.Error(err))
		token = ""
	}

	p, err := s.client.Register(ctx, email, token)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveProfile(ctx, p); err != nil {
		s.logger.Error("Registration succeeded but the profile could not be stored", zap.Error(err))
		return nil, err
	}

	state := s.consent.Run(ctx)
	s.logger.Info("Registration complete",
		zap.String("consent", state.String()))

	return p, nil
}
