package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/chatdata/internal/models"
)

func TestMeasureUsage(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenJSON(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := store.DataSources.Create(ctx, &models.DataSource{Name: "x", Type: models.TypeAPI}); err != nil {
		t.Fatal(err)
	}

	uploads := filepath.Join(dir, "uploads")
	if err := os.MkdirAll(filepath.Join(uploads, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(uploads, "a.csv"), []byte("a,b\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(uploads, "nested", "b.csv"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}

	u, err := MeasureUsage(store, uploads)
	if err != nil {
		t.Fatal(err)
	}
	if u.UploadsBytes != 6 || u.UploadFiles != 2 {
		t.Errorf("uploads: got %d bytes in %d files, want 6 in 2", u.UploadsBytes, u.UploadFiles)
	}
	if u.RecordsBytes == 0 {
		t.Error("expected datasources.json to contribute bytes")
	}
	if u.Total() != u.RecordsBytes+u.UploadsBytes {
		t.Error("Total should sum both parts")
	}
}

func TestMeasureUsage_MissingUploadDir(t *testing.T) {
	store, err := OpenJSON(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	u, err := MeasureUsage(store, filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("missing upload dir should not error: %v", err)
	}
	if u.Total() != 0 {
		t.Errorf("expected zero usage, got %+v", u)
	}
}
