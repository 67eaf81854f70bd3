package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/revalidafacil/stations-backend/internal/logger"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	// t.Setenv registers the restore; the variable itself must be absent.
	t.Setenv("PORT", "")
	os.Unsetenv("PORT")
	t.Setenv("STATIONS_OUTPUT_DIR", "")
	os.Unsetenv("STATIONS_OUTPUT_DIR")

	cfg, err := Load(logger.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.OutputDir != "estacoes_geradas" {
		t.Fatalf("output dir = %q", cfg.OutputDir)
	}
}

func TestLoad_FileOverridesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: \"9090\"\noutput_dir: /tmp/estacoes\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PORT", "8081")
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_MODE", "")
	os.Unsetenv("LOG_MODE")

	cfg, err := Load(logger.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.OutputDir != "/tmp/estacoes" {
		t.Fatalf("output dir = %q", cfg.OutputDir)
	}
	// Values absent from the file keep their env defaults.
	if cfg.LogMode != "development" {
		t.Fatalf("log mode = %q", cfg.LogMode)
	}
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(":\n\t-"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(logger.NewNop()); err == nil {
		t.Fatal("expected parse error")
	}
}
