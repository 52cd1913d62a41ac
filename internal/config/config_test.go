package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.MaxDurationMinutes != 480 {
		t.Fatalf("max duration = %d", cfg.MaxDurationMinutes)
	}
	if cfg.MinJustificationLen != 10 {
		t.Fatalf("min justification = %d", cfg.MinJustificationLen)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("poll interval = %s", cfg.PollInterval)
	}
	if cfg.AlarmAttempts != 5 {
		t.Fatalf("alarm attempts = %d", cfg.AlarmAttempts)
	}
	if cfg.Backup.Enabled {
		t.Fatal("backup job enabled without scopes configured")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ZSPGW_ADDR", ":9090")
	t.Setenv("ZSPGW_MAX_DURATION_MINUTES", "120")
	t.Setenv("ZSPGW_POLL_INTERVAL", "250ms")
	t.Setenv("ZSPGW_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("ZSPGW_ROLE_DEFINITIONS", `{"Custom Role":"11111111-2222-3333-4444-555555555555"}`)

	cfg := FromEnv()

	if cfg.Addr != ":9090" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.MaxDurationMinutes != 120 {
		t.Fatalf("max duration = %d", cfg.MaxDurationMinutes)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Fatalf("poll interval = %s", cfg.PollInterval)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
	if cfg.RoleDefinitions["Custom Role"] != "11111111-2222-3333-4444-555555555555" {
		t.Fatalf("role definitions = %v", cfg.RoleDefinitions)
	}
}

func TestFromEnvBackupJob(t *testing.T) {
	t.Setenv("ZSPGW_BACKUP_SP_OBJECT_ID", "sp-backup")
	t.Setenv("ZSPGW_BACKUP_KEYVAULT_SCOPE", "/subscriptions/s/vaults/kv")
	t.Setenv("ZSPGW_BACKUP_STORAGE_SCOPE", "/subscriptions/s/storage/sa")

	cfg := FromEnv()
	if !cfg.Backup.Enabled {
		t.Fatal("backup job not enabled with all scopes set")
	}
	if cfg.Backup.DurationMinutes != 35 || cfg.Backup.FireAt != "01:55" {
		t.Fatalf("backup defaults = %+v", cfg.Backup)
	}
}

func TestFromEnvBadValuesFallBack(t *testing.T) {
	t.Setenv("ZSPGW_MAX_DURATION_MINUTES", "lots")
	t.Setenv("ZSPGW_POLL_INTERVAL", "soon")

	cfg := FromEnv()
	if cfg.MaxDurationMinutes != 480 {
		t.Fatalf("max duration = %d, want default", cfg.MaxDurationMinutes)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("poll interval = %s, want default", cfg.PollInterval)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max duration", func(c *Config) { c.MaxDurationMinutes = 0 }},
		{"negative justification floor", func(c *Config) { c.MinJustificationLen = -1 }},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := FromEnv()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
