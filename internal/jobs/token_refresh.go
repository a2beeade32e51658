package jobs

import (
	"context"
	"fmt"
	"time"

	"sic_device_agent/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TokenSource supplies the delivery token.
type TokenSource interface {
	RequestToken(ctx context.Context) (string, error)
	DeleteToken(ctx context.Context) error
}

// TokenRefreshJob periodically rotates the delivery token so the push relay
// never routes to a stale registration.
type TokenRefreshJob struct {
	tokens        TokenSource
	logger        *zap.Logger
	cfg           *config.Config
	cronScheduler *cron.Cron
}

// NewTokenRefreshJob creates a new TokenRefreshJob.
func NewTokenRefreshJob(
	tokens TokenSource,
	cfg *config.Config,
	logger *zap.Logger,
) *TokenRefreshJob {
	scheduler := cron.New(cron.WithLogger(NewCronLogger(logger.Named("cron"))))

	return &TokenRefreshJob{
		tokens:        tokens,
		logger:        logger.Named("TokenRefreshJob"),
		cfg:           cfg,
		cronScheduler: scheduler,
	}
}

// SetupAndStart schedules and starts the cron job.
func (j *TokenRefreshJob) SetupAndStart() error {
	jobSpec := j.cfg.TokenRefreshSchedule // e.g., "@daily", "0 3 * * *"
	if jobSpec == "" {
		j.logger.Warn("Token refresh schedule not defined (TOKEN_REFRESH_SCHEDULE). Job will not run.")
		return nil // Not a fatal error, just won't run
	}

	jobID, err := j.cronScheduler.AddFunc(jobSpec, j.runJob)
	if err != nil {
		j.logger.Error("Failed to schedule token refresh job", zap.String("spec", jobSpec), zap.Error(err))
		return err
	}

	j.logger.Info("Token refresh job scheduled", zap.String("spec", jobSpec), zap.Any("jobID", jobID))
	j.cronScheduler.Start() // Start the scheduler in the background
	return nil
}

// runJob is the actual work performed by the cron job.
func (j *TokenRefreshJob) runJob() {
	j.logger.Info("Starting token refresh run...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := j.tokens.DeleteToken(ctx); err != nil {
		j.logger.Error("Token refresh run failed to drop old token", zap.Error(err))
		return
	}
	token, err := j.tokens.RequestToken(ctx)
	if err != nil {
		j.logger.Error("Token refresh run failed", zap.Error(err))
		return
	}

	// TODO: push the refreshed token to the backend once it exposes a
	// token-update endpoint; today only a full re-registration carries it.
	j.logger.Info("Delivery token refreshed", zap.Int("token_length", len(token)))
}

// Stop gracefully stops the cron scheduler.
func (j *TokenRefreshJob) Stop() {
	if j.cronScheduler != nil {
		j.logger.Info("Stopping token refresh scheduler...")
		stopCtx := j.cronScheduler.Stop() // Returns a context that is done when the scheduler has stopped
		select {
		case <-stopCtx.Done():
			j.logger.Info("Token refresh scheduler stopped gracefully.")
		case <-time.After(10 * time.Second): // Timeout for stopping
			j.logger.Warn("Token refresh scheduler stop timed out.")
		}
	}
}

// --- Cron Logger Adapter ---

// cronLogger adapts zap.Logger to cron.Logger interface.
type cronLogger struct {
	zl *zap.Logger
}

// NewCronLogger creates a new cronLogger.
func NewCronLogger(zl *zap.Logger) cron.Logger {
	return &cronLogger{zl: zl}
}

// Info logs routine messages from cron.
func (cl *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	fields := cl.parseKeysAndValues(keysAndValues...)
	cl.zl.Info(msg, fields...)
}

// Error logs error messages from cron.
func (cl *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := cl.parseKeysAndValues(keysAndValues...)
	fields = append(fields, zap.Error(err))
	cl.zl.Error(msg, fields...)
}

func (cl *cronLogger) parseKeysAndValues(keysAndValues ...interface{}) []zap.Field {
	var fields []zap.Field
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fields = append(fields, zap.Any(fmt.Sprintf("%v", keysAndValues[i]), keysAndValues[i+1]))
		} else {
			fields = append(fields, zap.Any(fmt.Sprintf("%v", keysAndValues[i]), "MISSING_VALUE"))
		}
	}
	return fields
}
