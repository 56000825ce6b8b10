package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/Rodovar-GPS/GPS/internal/config"
	"github.com/Rodovar-GPS/GPS/internal/storage"
)

// SettingsService serves the company branding.
type SettingsService struct {
	repo     storage.SettingsRepository
	defaults storage.CompanySettings
	validate *validator.Validate
}

// NewSettingsService returns a service that fills unset fields from defaults.
func NewSettingsService(repo storage.SettingsRepository, defaults storage.CompanySettings) *SettingsService {
	return &SettingsService{repo: repo, defaults: defaults, validate: validator.New()}
}

// Get returns stored settings merged over the defaults.
func (s *SettingsService) Get(ctx context.Context) (storage.CompanySettings, error) {
	stored, err := s.repo.GetSettings(ctx)
	if err != nil {
		return s.defaults, fmt.Errorf("service: GetSettings: %w", err)
	}
	if stored == nil {
		return s.defaults, nil
	}
	return config.MergeSettings(s.defaults, *stored), nil
}

// Save validates and stores in, returning the merged result.
func (s *SettingsService) Save(ctx context.Context, in storage.CompanySettings) (storage.CompanySettings, error) {
	merged := config.MergeSettings(s.defaults, in)
	if err := s.validate.Struct(merged); err != nil {
		return storage.CompanySettings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.repo.SaveSettings(ctx, &merged); err != nil {
		return storage.CompanySettings{}, fmt.Errorf("service: SaveSettings: %w", err)
	}
	return merged, nil
}
