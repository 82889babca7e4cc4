package config

import "testing"

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"APE_WORKERS", "APE_CHARSET", "DATABASE_URL", "NEO4J_URI"} {
		t.Setenv(key, "")
	}
	cfg := fromEnv()
	if cfg.WorkerCount != 1 {
		t.Errorf("WorkerCount = %d, want 1", cfg.WorkerCount)
	}
	if cfg.Charset != "windows-1252" {
		t.Errorf("Charset = %q, want windows-1252", cfg.Charset)
	}
	if cfg.Neo4jURI != "bolt://localhost:7687" {
		t.Errorf("Neo4jURI = %q", cfg.Neo4jURI)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("APE_WORKERS", "6")
	t.Setenv("APE_CHARSET", "raw")
	cfg := fromEnv()
	if cfg.WorkerCount != 6 {
		t.Errorf("WorkerCount = %d, want 6", cfg.WorkerCount)
	}
	if cfg.Charset != "raw" {
		t.Errorf("Charset = %q, want raw", cfg.Charset)
	}

	t.Setenv("APE_WORKERS", "zero")
	if got := fromEnv().WorkerCount; got != 1 {
		t.Errorf("invalid APE_WORKERS gave %d, want fallback 1", got)
	}
	t.Setenv("APE_WORKERS", "-3")
	if got := fromEnv().WorkerCount; got != 1 {
		t.Errorf("negative APE_WORKERS gave %d, want fallback 1", got)
	}
}
