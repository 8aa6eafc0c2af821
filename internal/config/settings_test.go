package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if s != Defaults() {
		t.Errorf("Load on empty dir = %+v, want defaults", s)
	}
}

func TestLoadFillsMissingFields(t *testing.T) {
	dir := t.TempDir()
	partial := []byte(`{"download_limit": 250, "fetch_order": "oldest"}`)
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), partial, 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if s.DownloadLimit != 250 {
		t.Errorf("DownloadLimit = %d, want 250", s.DownloadLimit)
	}
	if s.FetchOrder != "oldest" {
		t.Errorf("FetchOrder = %q, want oldest", s.FetchOrder)
	}
	if s.PDSHost != Defaults().PDSHost {
		t.Errorf("PDSHost = %q, want default", s.PDSHost)
	}
	if s.RateLimitPoints != 3000 {
		t.Errorf("RateLimitPoints = %d, want 3000", s.RateLimitPoints)
	}
}

func TestLoadClampsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	bad := []byte(`{"records_page_size": 500, "fetch_order": "sideways", "category_workers": -2}`)
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), bad, 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if s.RecordsPageSize != 100 {
		t.Errorf("RecordsPageSize = %d, want clamped to 100", s.RecordsPageSize)
	}
	if s.FetchOrder != "newest" {
		t.Errorf("FetchOrder = %q, want newest", s.FetchOrder)
	}
	if s.CategoryWorkers != Defaults().CategoryWorkers {
		t.Errorf("CategoryWorkers = %d, want default", s.CategoryWorkers)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := Defaults()
	want.DownloadLimit = 42
	want.UseSubjectEngagementForReposts = false

	if err := Save(dir, want); err != nil {
		t.Fatal(err)
	}
	got, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got.DownloadLimit != 42 {
		t.Errorf("DownloadLimit = %d, want 42", got.DownloadLimit)
	}
	if got.UseSubjectEngagementForReposts {
		t.Error("UseSubjectEngagementForReposts survived as true")
	}
	if _, err := os.Stat(filepath.Join(dir, "settings.json.tmp")); !os.IsNotExist(err) {
		t.Error("temp file left behind after save")
	}
}
