package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"sic_device_agent/internal/api"
	"sic_device_agent/internal/config"
	"sic_device_agent/internal/location"
	"sic_device_agent/internal/messaging"
	"sic_device_agent/internal/permission"
	"sic_device_agent/internal/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockConsent is a mock implementation of the ConsentReader interface.
type mockConsent struct {
	granted bool
}

func (m *mockConsent) GetLocationConsent(ctx context.Context) bool { return m.granted }

// mockChecker is a mock implementation of the PermissionChecker interface.
type mockChecker struct {
	grants map[permission.Capability]bool
}

func (m *mockChecker) Check(ctx context.Context, capability permission.Capability) bool {
	return m.grants[capability]
}

// mockFixProvider is a mock implementation of the FixProvider interface.
type mockFixProvider struct {
	fix       location.Fix
	err       error
	calls     int
	gotBounds bool
}

func (m *mockFixProvider) CurrentFix(ctx context.Context) (location.Fix, error) {
	m.calls++
	_, m.gotBounds = ctx.Deadline()
	return m.fix, m.err
}

// mockReporter is a mock implementation of the Reporter interface.
type mockReporter struct {
	err     error
	calls   int
	reports []api.LocationReport
}

func (m *mockReporter) ReportLocation(ctx context.Context, report api.LocationReport) error {
	m.calls++
	m.reports = append(m.reports, report)
	return m.err
}

func allGrants() *mockChecker {
	return &mockChecker{grants: map[permission.Capability]bool{
		permission.FineLocation:       true,
		permission.BackgroundLocation: true,
	}}
}

func newTestHandler(consent *mockConsent, checker *mockChecker, fixes *mockFixProvider, reporter *mockReporter) *Handler {
	cfg := &config.Config{
		LocationFixTimeout:      15 * time.Second,
		BackgroundGrantRequired: true,
	}
	return NewHandler(consent, checker, fixes, reporter, cfg, logger.NewDefaultLogger())
}

func TestHandler_NoConsentMeansNoWork(t *testing.T) {
	fixes := &mockFixProvider{}
	reporter := &mockReporter{}
	h := newTestHandler(&mockConsent{granted: false}, allGrants(), fixes, reporter)

	h.Handle(context.Background(), messaging.Message{MessageID: "msg-1"})

	assert.Zero(t, fixes.calls, "no fix acquisition without consent")
	assert.Zero(t, reporter.calls, "no report without consent")
}

func TestHandler_MissingFineGrantStops(t *testing.T) {
	fixes := &mockFixProvider{}
	reporter := &mockReporter{}
	checker := &mockChecker{grants: map[permission.Capability]bool{
		permission.BackgroundLocation: true,
	}}
	h := newTestHandler(&mockConsent{granted: true}, checker, fixes, reporter)

	h.Handle(context.Background(), messaging.Message{MessageID: "msg-1"})

	assert.Zero(t, fixes.calls)
	assert.Zero(t, reporter.calls)
}

func TestHandler_MissingBackgroundGrantStops(t *testing.T) {
	fixes := &mockFixProvider{}
	reporter := &mockReporter{}
	checker := &mockChecker{grants: map[permission.Capability]bool{
		permission.FineLocation: true,
	}}
	h := newTestHandler(&mockConsent{granted: true}, checker, fixes, reporter)

	h.Handle(context.Background(), messaging.Message{MessageID: "msg-1"})

	assert.Zero(t, fixes.calls)
	assert.Zero(t, reporter.calls)
}

func TestHandler_BackgroundGrantNotRequiredWhenPlatformMergesThem(t *testing.T) {
	fixes := &mockFixProvider{fix: location.Fix{Latitude: 1, Longitude: 2}}
	reporter := &mockReporter{}
	checker := &mockChecker{grants: map[permission.Capability]bool{
		permission.FineLocation: true,
	}}
	cfg := &config.Config{LocationFixTimeout: time.Second, BackgroundGrantRequired: false}
	h := NewHandler(&mockConsent{granted: true}, checker, fixes, reporter, cfg, logger.NewDefaultLogger())

	h.Handle(context.Background(), messaging.Message{MessageID: "msg-1"})

	assert.Equal(t, 1, reporter.calls)
}

func TestHandler_SuccessForwardsExactReport(t *testing.T) {
	fixes := &mockFixProvider{fix: location.Fix{Latitude: 12.34, Longitude: 56.78}}
	reporter := &mockReporter{}
	h := newTestHandler(&mockConsent{granted: true}, allGrants(), fixes, reporter)

	h.Handle(context.Background(), messaging.Message{MessageID: "msg-1"})

	require.Equal(t, 1, reporter.calls, "reportLocation is called exactly once")
	assert.Equal(t, api.LocationReport{
		Latitude:  12.34,
		Longitude: 56.78,
		MessageID: "msg-1",
		Data:      map[string]string{},
	}, reporter.reports[0])
	assert.True(t, fixes.gotBounds, "fix acquisition runs under a deadline")
}

func TestHandler_DataPayloadForwardedVerbatim(t *testing.T) {
	fixes := &mockFixProvider{fix: location.Fix{Latitude: 1, Longitude: 2}}
	reporter := &mockReporter{}
	h := newTestHandler(&mockConsent{granted: true}, allGrants(), fixes, reporter)

	h.Handle(context.Background(), messaging.Message{
		MessageID: "msg-2",
		Data:      map[string]string{"campaign": "a1"},
	})

	require.Equal(t, 1, reporter.calls)
	assert.Equal(t, map[string]string{"campaign": "a1"}, reporter.reports[0].Data)
}

func TestHandler_FixFailureStopsSilently(t *testing.T) {
	fixes := &mockFixProvider{err: errors.New("gps timeout")}
	reporter := &mockReporter{}
	h := newTestHandler(&mockConsent{granted: true}, allGrants(), fixes, reporter)

	h.Handle(context.Background(), messaging.Message{MessageID: "msg-1"})

	assert.Equal(t, 1, fixes.calls)
	assert.Zero(t, reporter.calls, "no report without a fix")
}

func TestHandler_ReportFailureIsSwallowed(t *testing.T) {
	fixes := &mockFixProvider{fix: location.Fix{Latitude: 1, Longitude: 2}}
	reporter := &mockReporter{err: errors.New("backend down")}
	h := newTestHandler(&mockConsent{granted: true}, allGrants(), fixes, reporter)

	assert.NotPanics(t, func() {
		h.Handle(context.Background(), messaging.Message{MessageID: "msg-1"})
	})
	assert.Equal(t, 1, reporter.calls)
}

// panickyProvider triggers the handler's recover path.
type panickyProvider struct{}

func (panickyProvider) CurrentFix(ctx context.Context) (location.Fix, error) {
	panic("locator blew up")
}

func TestHandler_NeverPanicsPastItsBoundary(t *testing.T) {
	reporter := &mockReporter{}
	h := newTestHandler(&mockConsent{granted: true}, allGrants(), nil, reporter)
	h.locations = panickyProvider{}

	assert.NotPanics(t, func() {
		h.Handle(context.Background(), messaging.Message{MessageID: "msg-1"})
	})
	assert.Zero(t, reporter.calls)
}
