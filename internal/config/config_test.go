// ABOUTME: Tests for forma configuration management.
// ABOUTME: Covers file and env loading, defaults, backend selection and path expansion.
package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/forma/internal/auth"
	"github.com/harperreed/forma/internal/storage"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	return dir
}

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	configDir := filepath.Join(dir, "forma")
	if err := os.MkdirAll(configDir, 0750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestGetBackendDefault(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GetBackend(); got != "sqlite" {
		t.Errorf("GetBackend() = %q, want %q", got, "sqlite")
	}
}

func TestGetBackendExplicit(t *testing.T) {
	cfg := &Config{Backend: "Badger"}
	if got := cfg.GetBackend(); got != "badger" {
		t.Errorf("GetBackend() = %q, want %q", got, "badger")
	}
}

func TestGetDataDirDefault(t *testing.T) {
	dir := isolate(t)
	cfg := &Config{}
	want := filepath.Join(dir, "data", "forma")
	if got := cfg.GetDataDir(); got != want {
		t.Errorf("GetDataDir() = %q, want %q", got, want)
	}
}

func TestGetDataDirExpandsTilde(t *testing.T) {
	home, _ := os.UserHomeDir()

	cfg := &Config{DataDir: "~/forma-data"}
	want := filepath.Join(home, "forma-data")
	if got := cfg.GetDataDir(); got != want {
		t.Errorf("GetDataDir() = %q, want %q", got, want)
	}
}

func TestGetSessionDir(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GetSessionDir(); got != auth.RuntimeDir() {
		t.Errorf("GetSessionDir() = %q, want %q", got, auth.RuntimeDir())
	}
	cfg.Session.Dir = "/tmp/forma-sessions"
	if got := cfg.GetSessionDir(); got != "/tmp/forma-sessions" {
		t.Errorf("GetSessionDir() = %q", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/tmp/foo", "/tmp/foo"},
		{"~", home},
		{"~/data/forma", filepath.Join(home, "data/forma")},
		{"data/forma", "data/forma"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadNonExistentConfig(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with no config file should not error: %v", err)
	}
	if cfg.GetBackend() != "sqlite" {
		t.Errorf("Backend = %q, want sqlite", cfg.Backend)
	}
	if cfg.Session.TTL != auth.DefaultSessionTTL {
		t.Errorf("Session.TTL = %v, want %v", cfg.Session.TTL, auth.DefaultSessionTTL)
	}
	if !cfg.Charm.AutoSync {
		t.Error("Charm.AutoSync should default to true")
	}
	if cfg.S3.Enabled() {
		t.Error("S3 should be disabled without a bucket")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, `
backend: flat
data_dir: /tmp/forma-data
session:
  ttl: 30m
seed:
  disabled: true
  demo_password: letmein
security:
  bcrypt_cost: 4
s3:
  bucket: backups
  endpoint: http://localhost:9000
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Backend != "flat" {
		t.Errorf("Backend = %q, want flat", cfg.Backend)
	}
	if cfg.DataDir != "/tmp/forma-data" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Errorf("Session.TTL = %v, want 30m", cfg.Session.TTL)
	}
	if !cfg.Seed.Disabled || cfg.Seed.DemoPassword != "letmein" {
		t.Errorf("Seed = %+v", cfg.Seed)
	}
	if cfg.Security.BcryptCost != 4 {
		t.Errorf("BcryptCost = %d, want 4", cfg.Security.BcryptCost)
	}
	if cfg.S3.Bucket != "backups" || cfg.S3.Region != "us-east-1" {
		t.Errorf("S3 = %+v", cfg.S3)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, "backend: flat\n")
	t.Setenv("FORMA_BACKEND", "memory")
	t.Setenv("FORMA_SEED_DIR", "/srv/seed")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.Backend)
	}
	if cfg.GetSeedDir() != "/srv/seed" {
		t.Errorf("Seed.Dir = %q", cfg.Seed.Dir)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, "backend: [unterminated\n")

	if _, err := Load(); err == nil {
		t.Error("Expected error for invalid YAML config")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, "backend: markdown\n")

	if _, err := Load(); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestLoadFromExplicitMissingFile(t *testing.T) {
	isolate(t)
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Errorf("LoadFrom(missing) = %v, want nil", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	dir := isolate(t)
	want := filepath.Join(dir, "forma", "config.yaml")
	if got := GetConfigPath(); got != want {
		t.Errorf("GetConfigPath() = %q, want %q", got, want)
	}
}

func TestStoreOptionsOpensConfiguredBackend(t *testing.T) {
	tests := []struct {
		backend string
		engine  string
	}{
		{"sqlite", "sqlite"},
		{"", "sqlite"},
		{"badger", "badger"},
		{"flat", "flat"},
		{"memory", "memory"},
	}
	for _, tt := range tests {
		t.Run(tt.engine+"/"+tt.backend, func(t *testing.T) {
			cfg := &Config{Backend: tt.backend, DataDir: t.TempDir()}
			opts, err := cfg.StoreOptions(nil)
			if err != nil {
				t.Fatalf("StoreOptions() failed: %v", err)
			}
			store := storage.NewStore(opts)
			if err := store.Initialize(context.Background()); err != nil {
				t.Fatalf("Initialize() failed: %v", err)
			}
			defer store.Close()

			if got := store.Engine(); got != tt.engine {
				t.Errorf("Engine() = %q, want %q", got, tt.engine)
			}
			if store.Fallback() {
				t.Error("expected the configured engine, got the fallback")
			}
		})
	}
}

func TestStoreOptionsFallsBackToFlat(t *testing.T) {
	dir := t.TempDir()
	// A regular file where the sqlite directory should be makes the open fail.
	blocker := filepath.Join(dir, "blocked")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg := &Config{Backend: "sqlite", DataDir: blocker}
	opts, err := cfg.StoreOptions(nil)
	if err != nil {
		t.Fatal(err)
	}
	opts.Fallback = storage.FlatDirOpener(filepath.Join(dir, "flat"))

	store := storage.NewStore(opts)
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	defer store.Close()

	if !store.Fallback() || store.Engine() != "flat" {
		t.Errorf("Engine() = %q fallback=%v, want flat fallback", store.Engine(), store.Fallback())
	}
}

func TestOpenerInvalidBackend(t *testing.T) {
	cfg := &Config{Backend: "invalid"}
	if _, err := cfg.Opener(); err == nil {
		t.Error("Expected error for invalid backend")
	}
	if _, err := cfg.StoreOptions(nil); err == nil {
		t.Error("Expected error for invalid backend")
	}
}

func TestBackendDir(t *testing.T) {
	cfg := &Config{DataDir: "/srv/forma"}

	tests := map[string]string{
		"badger": "/srv/forma/badger",
		"BADGER": "/srv/forma/badger",
		"flat":   "/srv/forma/flat",
		"sqlite": "",
		"charm":  "",
		"memory": "",
	}
	for backend, want := range tests {
		if got := cfg.BackendDir(backend); got != want {
			t.Errorf("BackendDir(%q) = %q, want %q", backend, got, want)
		}
	}
}

func TestCharmOptions(t *testing.T) {
	cfg := &Config{Charm: CharmConfig{Host: "charm.example.com", DBName: "forma-test", AutoSync: true}}
	want := storage.CharmOptions{DBName: "forma-test", Host: "charm.example.com", AutoSync: true}
	if got := cfg.CharmOptions(); got != want {
		t.Errorf("CharmOptions() = %+v, want %+v", got, want)
	}
}

func TestSessionSecret(t *testing.T) {
	cfg := &Config{DataDir: t.TempDir()}

	first, err := cfg.SessionSecret()
	if err != nil {
		t.Fatalf("SessionSecret() failed: %v", err)
	}
	if len(first) != 64 {
		t.Errorf("generated key length = %d, want 64", len(first))
	}
	second, err := cfg.SessionSecret()
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("generated key should be reused")
	}
	info, err := os.Stat(filepath.Join(cfg.DataDir, "session.key"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("session.key mode = %v, want 0600", info.Mode().Perm())
	}

	cfg.Session.Secret = "explicit"
	got, _ := cfg.SessionSecret()
	if string(got) != "explicit" {
		t.Errorf("SessionSecret() = %q, want explicit", got)
	}
}
