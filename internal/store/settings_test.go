package store

import (
	"errors"
	"testing"
)

func TestSettings_GetSet(t *testing.T) {
	repo := newTestStore(t).Settings()

	if _, err := repo.Get(SettingSource); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() on empty store error = %v, want ErrNotFound", err)
	}

	if err := repo.Set(SettingSource, "/videos/a.mp4"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.Set(SettingSource, "/videos/b.mp4"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	got, err := repo.Get(SettingSource)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "/videos/b.mp4" {
		t.Errorf("Get() = %q, want latest value", got)
	}

	if err := repo.Delete(SettingSource); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(SettingSource); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete("missing"); err != nil {
		t.Errorf("Delete() of missing key error = %v", err)
	}
}
