package services_test

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/abrezinsky/slotboard/internal/errors"
	"github.com/abrezinsky/slotboard/internal/logger"
	"github.com/abrezinsky/slotboard/internal/repository"
	"github.com/abrezinsky/slotboard/internal/repository/mock"
	"github.com/abrezinsky/slotboard/internal/services"
	"github.com/abrezinsky/slotboard/internal/testutil"
)

func strPtr(s string) *string { return &s }

func TestSettingsService_BoardURL(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	svc := services.NewSettingsService(logger.New(), repo)
	ctx := context.Background()

	// Default should be empty (app.go fills it with the detected address on startup)
	url, err := svc.GetBoardURL(ctx)
	if err != nil {
		t.Fatalf("GetBoardURL failed: %v", err)
	}
	if url != "" {
		t.Errorf("expected empty default URL, got %q", url)
	}

	testURL := "http://192.168.1.20:8081"
	if err := svc.SetBoardURL(ctx, testURL); err != nil {
		t.Fatalf("SetBoardURL failed: %v", err)
	}
	url, err = svc.GetBoardURL(ctx)
	if err != nil {
		t.Fatalf("GetBoardURL failed: %v", err)
	}
	if url != testURL {
		t.Errorf("expected URL %q, got %q", testURL, url)
	}
}

func TestSettingsService_BaseURL(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	svc := services.NewSettingsService(logger.New(), repo)
	ctx := context.Background()

	// Missing setting reads as empty
	url, err := svc.GetBaseURL(ctx)
	if err != nil {
		t.Fatalf("GetBaseURL failed: %v", err)
	}
	if url != "" {
		t.Errorf("expected empty default URL, got %q", url)
	}

	customURL := "https://gym.example.org"
	if err := svc.SetBaseURL(ctx, customURL); err != nil {
		t.Fatalf("SetBaseURL failed: %v", err)
	}
	url, _ = svc.GetBaseURL(ctx)
	if url != customURL {
		t.Errorf("expected URL %q, got %q", customURL, url)
	}
}

func TestSettingsService_GetSetSetting(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	svc := services.NewSettingsService(logger.New(), repo)
	ctx := context.Background()

	if err := svc.SetSetting(ctx, "custom_key", "custom_value"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	value, err := svc.GetSetting(ctx, "custom_key")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if value != "custom_value" {
		t.Errorf("expected custom_value, got %q", value)
	}

	if _, err := svc.GetSetting(ctx, "missing"); err != repository.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSettingsService_AllSettings(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	svc := services.NewSettingsService(logger.New(), repo)
	ctx := context.Background()

	if err := svc.SetSetting(ctx, "custom_key", "x"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}

	settings, err := svc.AllSettings(ctx)
	if err != nil {
		t.Fatalf("AllSettings failed: %v", err)
	}
	for _, key := range []string{services.SettingBoardURL, services.SettingBaseURL, "custom_key"} {
		if _, ok := settings[key]; !ok {
			t.Errorf("expected key %q in settings", key)
		}
	}
	if settings["custom_key"] != "x" {
		t.Errorf("expected custom_key=x, got %v", settings["custom_key"])
	}
}

func TestSettingsService_UpdateSettings(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	svc := services.NewSettingsService(logger.New(), repo)
	ctx := context.Background()

	err := svc.UpdateSettings(ctx, services.Settings{
		BoardURL: strPtr(" https://board.example.org/ "),
		BaseURL:  strPtr("http://10.0.0.5:8081"),
	})
	if err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}

	board, _ := svc.GetBoardURL(ctx)
	base, _ := svc.GetBaseURL(ctx)
	if board != "https://board.example.org/" || base != "http://10.0.0.5:8081" {
		t.Errorf("unexpected settings board=%q base=%q", board, base)
	}

	// Nil leaves the value, empty clears it.
	if err := svc.UpdateSettings(ctx, services.Settings{BaseURL: strPtr("")}); err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	board, _ = svc.GetBoardURL(ctx)
	base, _ = svc.GetBaseURL(ctx)
	if board != "https://board.example.org/" || base != "" {
		t.Errorf("unexpected settings board=%q base=%q", board, base)
	}
}

func TestSettingsService_UpdateSettings_InvalidURL(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	mockRepo := mock.NewRepository(repo)
	svc := services.NewSettingsService(logger.New(), mockRepo)

	for _, bad := range []string{"not a url", "ftp://files.example.org", "/relative/path"} {
		err := svc.UpdateSettings(context.Background(), services.Settings{BoardURL: strPtr(bad)})
		if apperrors.KindOf(err) != apperrors.ErrValidation {
			t.Errorf("%q: expected Validation kind, got %v", bad, err)
		}
	}
	if mockRepo.Calls("SetSetting") != 0 {
		t.Error("expected nothing to be saved")
	}
}

func TestSettingsService_StoreErrors(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	mockRepo := mock.NewRepository(repo)
	svc := services.NewSettingsService(logger.New(), mockRepo)
	ctx := context.Background()
	dbErr := errors.New("database error")

	mockRepo.GetSettingError = dbErr
	if _, err := svc.GetBoardURL(ctx); err != dbErr {
		t.Errorf("expected database error, got %v", err)
	}
	mockRepo.GetSettingError = nil

	mockRepo.ListSettingsError = dbErr
	if _, err := svc.AllSettings(ctx); err != dbErr {
		t.Errorf("expected database error, got %v", err)
	}

	mockRepo.SetSettingError = dbErr
	if err := svc.UpdateSettings(ctx, services.Settings{BoardURL: strPtr("https://a.example.org")}); err != dbErr {
		t.Errorf("expected database error for board url, got %v", err)
	}
	if err := svc.UpdateSettings(ctx, services.Settings{BaseURL: strPtr("https://a.example.org")}); err != dbErr {
		t.Errorf("expected database error for base url, got %v", err)
	}
}
