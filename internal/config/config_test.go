package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.API.Port != "8080" {
		t.Errorf("expected default API port 8080, got %s", cfg.API.Port)
	}
	if cfg.Worker.Prefetch != 10 {
		t.Errorf("expected default prefetch 10, got %d", cfg.Worker.Prefetch)
	}
	if cfg.Sweeper.CronExpr != "*/5 * * * *" {
		t.Errorf("unexpected default cron: %s", cfg.Sweeper.CronExpr)
	}
	if cfg.MinIO.Bucket != "artifacts" {
		t.Errorf("unexpected default bucket: %s", cfg.MinIO.Bucket)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bindery.yaml")
	data := []byte(`
db:
  url: postgres://prod:secret@db:5432/bindery
minio:
  endpoint: minio.internal:9000
  use_ssl: true
sweeper:
  stale_sec: 900
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BINDERY_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DB.URL != "postgres://prod:secret@db:5432/bindery" {
		t.Errorf("yaml db url not applied: %s", cfg.DB.URL)
	}
	if !cfg.MinIO.UseSSL || cfg.MinIO.Endpoint != "minio.internal:9000" {
		t.Error("yaml minio settings not applied")
	}
	if cfg.Sweeper.StaleSec != 900 {
		t.Errorf("yaml stale_sec not applied: %d", cfg.Sweeper.StaleSec)
	}

	// Незаданные в файле поля остаются на значениях по умолчанию
	if cfg.API.Port != "8080" {
		t.Errorf("default must survive partial yaml: %s", cfg.API.Port)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bindery.yaml")
	if err := os.WriteFile(path, []byte("api:\n  port: \"9999\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BINDERY_CONFIG", path)
	t.Setenv("API_PORT", "7070")
	t.Setenv("WORKER_PREFETCH", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.API.Port != "7070" {
		t.Errorf("env must win over yaml, got %s", cfg.API.Port)
	}
	if cfg.Worker.Prefetch != 25 {
		t.Errorf("env prefetch not applied: %d", cfg.Worker.Prefetch)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("BINDERY_CONFIG", "/nonexistent/bindery.yaml")
	if _, err := Load(); err == nil {
		t.Fatal("explicitly named missing file must be an error")
	}
}

func TestLoad_BadEnvNumbersIgnored(t *testing.T) {
	t.Setenv("WORKER_PREFETCH", "lots")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Worker.Prefetch != 10 {
		t.Errorf("unparseable env must keep default, got %d", cfg.Worker.Prefetch)
	}
}
