package permission

import (
	"context"
	"errors"
	"testing"

	"sic_device_agent/internal/platform/logger"
	"sic_device_agent/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepository is an in-memory store.Repository for tests.
type memRepository struct {
	values map[string]string
	getErr error
	setErr error
}

func newMemRepository() *memRepository {
	return &memRepository{values: map[string]string{}}
}

func (m *memRepository) Get(ctx context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	value, ok := m.values[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return value, nil
}

func (m *memRepository) Set(ctx context.Context, key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *memRepository) Delete(ctx context.Context, key string) error {
	delete(m.values, key)
	return nil
}

// fixedPrompter answers every prompt the same way.
type fixedPrompter struct {
	answer bool
	err    error
	calls  int
}

func (p *fixedPrompter) Confirm(ctx context.Context, question string) (bool, error) {
	p.calls++
	return p.answer, p.err
}

func TestService_CheckFailsClosed(t *testing.T) {
	ctx := context.Background()

	svc := NewService(newMemRepository(), &fixedPrompter{}, logger.NewDefaultLogger())
	assert.False(t, svc.Check(ctx, FineLocation), "unset grant reads as denied")

	broken := newMemRepository()
	broken.getErr = errors.New("io error")
	svc = NewService(broken, &fixedPrompter{}, logger.NewDefaultLogger())
	assert.False(t, svc.Check(ctx, FineLocation), "unreadable grant reads as denied")
}

func TestService_RequestGrantsAndPersists(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepository()
	prompter := &fixedPrompter{answer: true}
	svc := NewService(repo, prompter, logger.NewDefaultLogger())

	granted, err := svc.Request(ctx, FineLocation)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, 1, prompter.calls)

	// The grant is durable: Check answers without prompting again.
	assert.True(t, svc.Check(ctx, FineLocation))
	granted, err = svc.Request(ctx, FineLocation)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, 1, prompter.calls, "already-granted capability is not re-prompted")
}

func TestService_RequestDenialIsRecorded(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepository()
	svc := NewService(repo, &fixedPrompter{answer: false}, logger.NewDefaultLogger())

	granted, err := svc.Request(ctx, BackgroundLocation)
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, "false", repo.values[BackgroundLocation.storageKey()])
	assert.False(t, svc.Check(ctx, BackgroundLocation))
}

func TestService_PromptFailureIsDenied(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepository(), &fixedPrompter{err: errors.New("no tty")}, logger.NewDefaultLogger())

	granted, err := svc.Request(ctx, FineLocation)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestCapabilitiesUseDistinctKeys(t *testing.T) {
	assert.NotEqual(t, FineLocation.storageKey(), BackgroundLocation.storageKey())
}
