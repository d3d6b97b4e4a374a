package api

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/bimanual.report/internal/db"
)

// migratedDB holds a freshly migrated database image. Each test writes it
// to its own file rather than running the migrations again.
var migratedDB []byte

func TestMain(m *testing.M) {
	image, err := buildMigratedImage()
	if err != nil {
		fmt.Fprintf(os.Stderr, "api tests: %v\n", err)
		os.Exit(1)
	}
	migratedDB = image
	os.Exit(m.Run())
}

func buildMigratedImage() ([]byte, error) {
	dir, err := os.MkdirTemp("", "bimanual-api-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	database, err := db.NewDB(filepath.Join(dir, "migrate.db"))
	if err != nil {
		return nil, fmt.Errorf("migrate template: %w", err)
	}
	defer database.Close()

	// VACUUM INTO writes a single self-contained file with no WAL sidecar.
	image := filepath.Join(dir, "image.db")
	if _, err := database.Exec("VACUUM INTO ?", image); err != nil {
		return nil, fmt.Errorf("snapshot template: %w", err)
	}
	return os.ReadFile(image)
}

func cloneAPITestDB(t *testing.T) string {
	t.Helper()
	if migratedDB == nil {
		t.Fatal("migrated template missing; TestMain did not run")
	}
	path := filepath.Join(t.TempDir(), "test.db")
	if err := os.WriteFile(path, migratedDB, 0o600); err != nil {
		t.Fatalf("write test DB: %v", err)
	}
	return path
}
