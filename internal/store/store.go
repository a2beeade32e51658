package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sic_device_agent/internal/common"
	"sic_device_agent/internal/profile"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Durable keys. The names mirror what the mobile clients use so a backend
// inspecting exported stores sees the same vocabulary.
const (
	keyUserData        = "@user_data"
	keyIsRegistered    = "@is_registered"
	keyLocationConsent = "@location_permission_granted"
)

// ErrNotFound is returned by Repository.Get when a key has never been set.
var ErrNotFound = errors.New("store: key not found")

// Entry is one row of the on-device key-value table.
type Entry struct {
	Key       string `gorm:"primaryKey;type:varchar(64)"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName specifies the table name for the Entry model.
func (Entry) TableName() string {
	return "kv_entries"
}

// Repository defines the interface for durable key-value operations.
type Repository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM key-value repository, migrating the
// backing table on first use.
func NewGORMRepository(db *gorm.DB) (Repository, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate kv table: %w", err)
	}
	return &gormRepository{db: db}, nil
}

func (r *gormRepository) Get(ctx context.Context, key string) (string, error) {
	var entry Entry
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return entry.Value, nil
}

func (r *gormRepository) Set(ctx context.Context, key, value string) error {
	entry := Entry{Key: key, Value: value, UpdatedAt: time.Now()}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&entry).Error
}

func (r *gormRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("key = ?", key).Delete(&Entry{}).Error
}

// Service is the local profile store. Profile and registered flag are
// written as a pair: there is no durable state where one is set without
// the other having been attempted in the same call.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService creates a new profile store service.
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.Named("store"),
	}
}

// SaveProfile persists the profile and sets the registered flag. A failure
// anywhere means the caller must not assume partial success.
func (s *Service) SaveProfile(ctx context.Context, p *profile.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return common.NewPersistenceError(fmt.Sprintf("failed to encode profile: %v", err))
	}
	if err := s.repo.Set(ctx, keyUserData, string(data)); err != nil {
		s.logger.Error("Failed to persist profile", zap.Error(err))
		return common.NewPersistenceError("failed to save profile")
	}
	if err := s.repo.Set(ctx, keyIsRegistered, "true"); err != nil {
		s.logger.Error("Failed to persist registered flag", zap.Error(err))
		return common.NewPersistenceError("failed to save registration state")
	}
	s.logger.Debug("Profile saved")
	return nil
}

// LoadProfile returns the stored profile, or nil when none is present.
func (s *Service) LoadProfile(ctx context.Context) (*profile.Profile, error) {
	data, err := s.repo.Get(ctx, keyUserData)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		s.logger.Error("Failed to read stored profile", zap.Error(err))
		return nil, common.NewPersistenceError("failed to load profile")
	}
	var p profile.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		s.logger.Error("Stored profile is corrupt", zap.Error(err))
		return nil, common.NewPersistenceError("stored profile is corrupt")
	}
	return &p, nil
}

// IsRegistered reports whether a profile has been stored. Read failures
// degrade to false; this is an advisory read.
func (s *Service) IsRegistered(ctx context.Context) bool {
	value, err := s.repo.Get(ctx, keyIsRegistered)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("Failed to read registered flag, treating as unregistered", zap.Error(err))
		}
		return false
	}
	return value == "true"
}

// Clear removes the profile and the registered flag together.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.repo.Delete(ctx, keyUserData); err != nil {
		s.logger.Error("Failed to clear stored profile", zap.Error(err))
		return common.NewPersistenceError("failed to clear profile")
	}
	if err := s.repo.Delete(ctx, keyIsRegistered); err != nil {
		s.logger.Error("Failed to clear registered flag", zap.Error(err))
		return common.NewPersistenceError("failed to clear registration state")
	}
	return nil
}

// SetLocationConsent records the user's background-location consent decision.
func (s *Service) SetLocationConsent(ctx context.Context, granted bool) error {
	value := "false"
	if granted {
		value = "true"
	}
	if err := s.repo.Set(ctx, keyLocationConsent, value); err != nil {
		s.logger.Error("Failed to persist location consent", zap.Error(err))
		return common.NewPersistenceError("failed to save location consent")
	}
	s.logger.Info("Location consent recorded", zap.Bool("granted", granted))
	return nil
}

// GetLocationConsent reports whether the user consented to background
// location reporting. Fails closed: absent or unreadable means false.
func (s *Service) GetLocationConsent(ctx context.Context) bool {
	value, err := s.repo.Get(ctx, keyLocationConsent)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("Failed to read location consent, treating as not granted", zap.Error(err))
		}
		return false
	}
	return value == "true"
}
