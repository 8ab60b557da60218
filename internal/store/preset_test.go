package store

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPresetRepository_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Presets()

	p := &Preset{Name: "skin", Params: map[string]int{"hue_bins": 16, "threshold": 60}}
	if err := repo.Save(p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Get("skin")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if diff := cmp.Diff(p.Params, got.Params); diff != "" {
		t.Errorf("Params mismatch (-want +got):\n%s", diff)
	}

	// Saving again replaces the parameters.
	p.Params = map[string]int{"threshold": 90}
	if err := repo.Save(p); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	got, _ = repo.Get("skin")
	if diff := cmp.Diff(map[string]int{"threshold": 90}, got.Params); diff != "" {
		t.Errorf("Params after update mismatch (-want +got):\n%s", diff)
	}
}

func TestPresetRepository_Validation(t *testing.T) {
	s := newTestStore(t)

	if err := s.Presets().Save(&Preset{}); err == nil {
		t.Error("Save() without a name should fail")
	}
	if _, err := s.Presets().Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := s.Presets().Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestPresetRepository_ListAndDelete(t *testing.T) {
	s := newTestStore(t)
	repo := s.Presets()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := repo.Save(&Preset{Name: name, Params: map[string]int{"threshold": 1}}); err != nil {
			t.Fatalf("Save(%s) error = %v", name, err)
		}
	}

	list, err := repo.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var names []string
	for _, p := range list {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"alpha", "mid", "zeta"}, names); diff != "" {
		t.Errorf("List() names mismatch (-want +got):\n%s", diff)
	}

	if err := repo.Delete("mid"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	list, _ = repo.List()
	if len(list) != 2 {
		t.Errorf("List() after delete returned %d presets, want 2", len(list))
	}
}
