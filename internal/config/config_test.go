package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
auth:
  jwt_secret: "dev-secret"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Auth.JWTSecret != "dev-secret" {
		t.Errorf("jwt_secret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "./data/db/procflow.db"
  files_dir: "./data/files"
inbox:
  directories: ["./inbox/receipts"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "procflow.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	wantFiles := filepath.Join(dir, "data", "files")
	if cfg.Storage.FilesDir != wantFiles {
		t.Errorf("files_dir = %s, want %s", cfg.Storage.FilesDir, wantFiles)
	}
	if len(cfg.Inbox.Directories) != 1 {
		t.Fatalf("inbox directories: got %d", len(cfg.Inbox.Directories))
	}
	wantInbox := filepath.Join(dir, "inbox", "receipts")
	if cfg.Inbox.Directories[0] != wantInbox {
		t.Errorf("inbox directory = %s, want %s", cfg.Inbox.Directories[0], wantInbox)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Storage.DatabasePath == "" || cfg.Storage.FilesDir == "" || cfg.Storage.SearchIndexPath == "" {
		t.Errorf("storage defaults missing: %+v", cfg.Storage)
	}
	if cfg.Auth.TokenTTLMinutes != 12*60 {
		t.Errorf("default token ttl: got %d", cfg.Auth.TokenTTLMinutes)
	}
	if len(cfg.Inbox.Extensions) != 3 || cfg.Inbox.Extensions[0] != ".pdf" {
		t.Errorf("inbox extensions: got %v", cfg.Inbox.Extensions)
	}
}

func TestApplyDefaults_jwtSecretFromEnv(t *testing.T) {
	t.Setenv("PROCFLOW_JWT_SECRET", "env-secret")
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("jwt_secret = %q, want env value", cfg.Auth.JWTSecret)
	}

	cfg = &Config{Auth: AuthConfig{JWTSecret: "file-secret"}}
	ApplyDefaults(cfg)
	if cfg.Auth.JWTSecret != "file-secret" {
		t.Errorf("config value should win over env: %q", cfg.Auth.JWTSecret)
	}
}
