package services

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/abrezinsky/slotboard/internal/errors"
	"github.com/abrezinsky/slotboard/internal/logger"
	"github.com/abrezinsky/slotboard/internal/models"
	"github.com/abrezinsky/slotboard/internal/repository"
	"github.com/abrezinsky/slotboard/internal/schedule"
)

// PreferencesService stores the sports each member wants to see
type PreferencesService struct {
	log     logger.Logger
	repo    repository.PreferencesRepository
	catalog schedule.Catalog
	now     func() time.Time
}

// NewPreferencesService creates a new PreferencesService
func NewPreferencesService(log logger.Logger, repo repository.PreferencesRepository, catalog schedule.Catalog) *PreferencesService {
	return &PreferencesService{log: log, repo: repo, catalog: catalog, now: time.Now}
}

// GetPreferences returns the caller's selection; an empty selection shows everything.
func (s *PreferencesService) GetPreferences(ctx context.Context, who models.Identity) (*models.UserPreferences, error) {
	if who.IsAnonymous() {
		return nil, ErrNotSignedIn
	}
	prefs, err := s.repo.GetPreferences(ctx, who.UID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return &models.UserPreferences{UID: who.UID, SelectedSports: []string{}}, nil
	}
	return prefs, err
}

// SavePreferences replaces the caller's selection. Duplicates are dropped
// and every sport must be in the catalog.
func (s *PreferencesService) SavePreferences(ctx context.Context, who models.Identity, sports []string) (*models.UserPreferences, error) {
	if who.IsAnonymous() {
		return nil, ErrNotSignedIn
	}

	selected := make([]string, 0, len(sports))
	seen := make(map[string]bool, len(sports))
	for _, sport := range sports {
		if sport == models.NoGames || !s.catalog.Has(sport) {
			return nil, errors.Validationf("unknown sport %q", sport)
		}
		if seen[sport] {
			continue
		}
		seen[sport] = true
		selected = append(selected, sport)
	}

	prefs := &models.UserPreferences{
		UID:            who.UID,
		SelectedSports: selected,
		UpdatedAt:      s.now().UTC().Format(time.RFC3339),
	}
	if err := s.repo.SavePreferences(ctx, prefs); err != nil {
		return nil, err
	}
	s.log.Debug("Preferences saved", "uid", who.UID, "sports", len(selected))
	return prefs, nil
}
