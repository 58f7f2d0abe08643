package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Sync.MaxArchiveFiles != 10 {
		t.Errorf("MaxArchiveFiles = %d, want 10", cfg.Sync.MaxArchiveFiles)
	}
	if cfg.Sync.FTPTimeout != 30*time.Second {
		t.Errorf("FTPTimeout = %s, want 30s", cfg.Sync.FTPTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestWriteDefault_LoadsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "invrpt.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("written config differs from Default (-want +got):\n%s", diff)
	}

	if err := WriteDefault(path); err == nil {
		t.Error("WriteDefault overwrote an existing file")
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invrpt.yaml")
	content := `
database: /var/lib/invrpt/invrpt.db
sync:
  max_archive_files: 3
  poll_interval: 15m
server:
  port: 8080
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database != "/var/lib/invrpt/invrpt.db" {
		t.Errorf("Database = %q", cfg.Database)
	}
	if cfg.Sync.MaxArchiveFiles != 3 {
		t.Errorf("MaxArchiveFiles = %d, want 3", cfg.Sync.MaxArchiveFiles)
	}
	if cfg.Sync.PollInterval != 15*time.Minute {
		t.Errorf("PollInterval = %s, want 15m", cfg.Sync.PollInterval)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	// Keys missing from the file keep their defaults.
	if cfg.Sync.SaveFolder != "files/work" {
		t.Errorf("SaveFolder = %q, want default", cfg.Sync.SaveFolder)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("INVRPT_SYNC_ARCHIVE_FOLDER", "/srv/archive")
	t.Setenv("INVRPT_SYNC_FTP_TIMEOUT", "5s")

	path := filepath.Join(t.TempDir(), "invrpt.yaml")
	if err := os.WriteFile(path, []byte("sync:\n  archive_folder: ignored\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Sync.ArchiveFolder != "/srv/archive" {
		t.Errorf("ArchiveFolder = %q, want env override", cfg.Sync.ArchiveFolder)
	}
	if cfg.Sync.FTPTimeout != 5*time.Second {
		t.Errorf("FTPTimeout = %s, want 5s", cfg.Sync.FTPTimeout)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative cap", func(c *Config) { c.Sync.MaxArchiveFiles = -1 }, "max_archive_files"},
		{"empty save folder", func(c *Config) { c.Sync.SaveFolder = "" }, "save_folder"},
		{"empty archive folder", func(c *Config) { c.Sync.ArchiveFolder = "" }, "archive_folder"},
		{"zero timeout", func(c *Config) { c.Sync.FTPTimeout = 0 }, "ftp_timeout"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"no schema", func(c *Config) { c.DibolSchema = "" }, "dibol_schema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
