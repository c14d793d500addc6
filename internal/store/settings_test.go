package store

import (
	"context"
	"errors"
	"testing"
)

func TestSettingsRepository(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Settings()

	if _, err := repo.Get(ctx, SettingPinchSensitivity); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}

	if err := repo.Set(ctx, SettingPinchSensitivity, "0.3"); err != nil {
		t.Fatalf("failed to set: %v", err)
	}
	if err := repo.Set(ctx, SettingPinchSensitivity, "0.25"); err != nil {
		t.Fatalf("failed to overwrite: %v", err)
	}
	if err := repo.Set(ctx, SettingHandTracking, "true"); err != nil {
		t.Fatalf("failed to set: %v", err)
	}

	got, err := repo.Get(ctx, SettingPinchSensitivity)
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if got != "0.25" {
		t.Errorf("got %q, want %q", got, "0.25")
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(all) != 2 || all[SettingHandTracking] != "true" {
		t.Errorf("got %v, want two settings", all)
	}

	if err := repo.Delete(ctx, SettingHandTracking); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if err := repo.Delete(ctx, SettingHandTracking); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
