package services

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/abrezinsky/slotboard/internal/errors"
	"github.com/abrezinsky/slotboard/internal/logger"
	"github.com/abrezinsky/slotboard/internal/repository"
)

// Setting keys
const (
	SettingBoardURL = "board_url"
	SettingBaseURL  = "base_url"
)

// SettingsService handles settings-related business logic
type SettingsService struct {
	log  logger.Logger
	repo repository.SettingsRepository
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(log logger.Logger, repo repository.SettingsRepository) *SettingsService {
	return &SettingsService{log: log, repo: repo}
}

// GetBoardURL returns the public board URL printed on roster sheets
func (s *SettingsService) GetBoardURL(ctx context.Context) (string, error) {
	return s.optional(ctx, SettingBoardURL)
}

// SetBoardURL saves the public board URL
func (s *SettingsService) SetBoardURL(ctx context.Context, url string) error {
	return s.repo.SetSetting(ctx, SettingBoardURL, url)
}

// GetBaseURL returns the application base URL
func (s *SettingsService) GetBaseURL(ctx context.Context) (string, error) {
	return s.optional(ctx, SettingBaseURL)
}

// SetBaseURL saves the application base URL
func (s *SettingsService) SetBaseURL(ctx context.Context, url string) error {
	return s.repo.SetSetting(ctx, SettingBaseURL, url)
}

// GetSetting retrieves an arbitrary setting
func (s *SettingsService) GetSetting(ctx context.Context, key string) (string, error) {
	return s.repo.GetSetting(ctx, key)
}

// SetSetting saves an arbitrary setting
func (s *SettingsService) SetSetting(ctx context.Context, key, value string) error {
	return s.repo.SetSetting(ctx, key, value)
}

// AllSettings returns every stored setting plus the known keys with their defaults
func (s *SettingsService) AllSettings(ctx context.Context) (map[string]interface{}, error) {
	stored, err := s.repo.ListSettings(ctx)
	if err != nil {
		return nil, err
	}

	settings := map[string]interface{}{
		SettingBoardURL: "",
		SettingBaseURL:  "",
	}
	for k, v := range stored {
		settings[k] = v
	}
	return settings, nil
}

// Settings represents application settings for update operations.
// Nil fields are left unchanged.
type Settings struct {
	BoardURL *string `json:"board_url"`
	BaseURL  *string `json:"base_url"`
}

// UpdateSettings validates and saves the provided settings
func (s *SettingsService) UpdateSettings(ctx context.Context, settings Settings) error {
	settings.BoardURL = trimPtr(settings.BoardURL)
	settings.BaseURL = trimPtr(settings.BaseURL)
	if err := checkURL(SettingBoardURL, settings.BoardURL); err != nil {
		return err
	}
	if err := checkURL(SettingBaseURL, settings.BaseURL); err != nil {
		return err
	}

	if settings.BoardURL != nil {
		if err := s.SetBoardURL(ctx, *settings.BoardURL); err != nil {
			return err
		}
	}
	if settings.BaseURL != nil {
		if err := s.SetBaseURL(ctx, *settings.BaseURL); err != nil {
			return err
		}
	}
	s.log.Info("Settings updated")
	return nil
}

// optional reads key, treating a missing setting as empty.
func (s *SettingsService) optional(ctx context.Context, key string) (string, error) {
	value, err := s.repo.GetSetting(ctx, key)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return "", nil // not yet configured
		}
		return "", err
	}
	return value, nil
}

// checkURL accepts nil, empty (clears the setting) or an absolute http(s) URL.
func checkURL(field string, v *string) error {
	if v == nil || *v == "" {
		return nil
	}
	if validate.Var(*v, "url") != nil || !(strings.HasPrefix(*v, "http://") || strings.HasPrefix(*v, "https://")) {
		return errors.Validationf("%s must be an http(s) URL", field)
	}
	return nil
}

func trimPtr(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
