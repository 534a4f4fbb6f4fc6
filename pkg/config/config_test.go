package config

import (
	"os"
	"testing"
)

func TestLoad_MissingEnvFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Name != "eventhub-rsvp" {
		t.Errorf("App.Name = %s, want eventhub-rsvp", cfg.App.Name)
	}
	if cfg.Admission.StoreBackend != StoreBackendPostgres {
		t.Errorf("StoreBackend = %s, want %s", cfg.Admission.StoreBackend, StoreBackendPostgres)
	}
	if cfg.Admission.ReconcileBatch != 100 {
		t.Errorf("ReconcileBatch = %d, want 100", cfg.Admission.ReconcileBatch)
	}
}

func TestLoad_MalformedEnvFileFails(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := os.WriteFile(".env", []byte("NOT A VALID LINE\n"), 0o600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for malformed .env")
	}
}

func TestLoad_EnvFileOverridesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := os.WriteFile(".env", []byte("SERVER_PORT=9090\nSTORE_BACKEND=memory\n"), 0o600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Admission.StoreBackend != StoreBackendMemory {
		t.Errorf("StoreBackend = %s, want %s", cfg.Admission.StoreBackend, StoreBackendMemory)
	}
}

func TestLoad_RejectsUnknownStoreBackend(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_BACKEND", "cassandra")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for unknown store backend")
	}
}
