package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MARKET_ENGINE_PRINCIPAL", "11111111-1111-1111-1111-111111111111")
	t.Setenv("MARKET_OPERATOR_PRINCIPAL", "22222222-2222-2222-2222-222222222222")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.PersistBatchSize != 50 {
		t.Errorf("PersistBatchSize = %d, want 50", cfg.PersistBatchSize)
	}
	if cfg.PersistFlushTimeout != 10*time.Millisecond {
		t.Errorf("PersistFlushTimeout = %v, want 10ms", cfg.PersistFlushTimeout)
	}
}

func TestLoadRequiresPrincipals(t *testing.T) {
	os.Unsetenv("MARKET_ENGINE_PRINCIPAL")
	os.Unsetenv("MARKET_OPERATOR_PRINCIPAL")

	if _, err := Load(""); err == nil {
		t.Fatal("load succeeded without principals")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marketd.yaml")
	yaml := `
http_addr: ":9999"
persist_batch_size: 10
engine_principal: "11111111-1111-1111-1111-111111111111"
operator_principal: "22222222-2222-2222-2222-222222222222"
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("MARKET_HTTP_ADDR", ":7777")
	t.Setenv("MARKET_PERSIST_FLUSH_TIMEOUT", "25ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// File beats defaults; env beats file.
	if cfg.PersistBatchSize != 10 {
		t.Errorf("PersistBatchSize = %d, want 10 (from file)", cfg.PersistBatchSize)
	}
	if cfg.HTTPAddr != ":7777" {
		t.Errorf("HTTPAddr = %q, want :7777 (from env)", cfg.HTTPAddr)
	}
	if cfg.PersistFlushTimeout != 25*time.Millisecond {
		t.Errorf("PersistFlushTimeout = %v, want 25ms (from env)", cfg.PersistFlushTimeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("MARKET_ENGINE_PRINCIPAL", "11111111-1111-1111-1111-111111111111")
	t.Setenv("MARKET_OPERATOR_PRINCIPAL", "22222222-2222-2222-2222-222222222222")

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("load succeeded with a missing config file")
	}
}
