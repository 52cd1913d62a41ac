package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full environment-driven configuration surface. Values mirror
// the knobs of the access lifecycle: request ceilings, scheduler cadence, and
// the endpoints of the external directory/authority and audit systems.
type Config struct {
	Addr  string
	PGDSN string

	// Request validation ceilings.
	MaxDurationMinutes  int
	MinJustificationLen int

	// Durable scheduler.
	PollInterval  time.Duration
	AlarmAttempts int

	// Outbound access-provider endpoints. Empty means the in-memory
	// directory is used (dev mode).
	DirectoryURL  string
	AuthorityURL  string
	ServiceSecret string

	// Optional Kafka audit sink.
	KafkaBrokers []string
	KafkaTopic   string

	// Role name -> role definition GUID overrides (JSON object).
	RoleDefinitions map[string]string

	// Routine workflow grants (e.g. nightly backup).
	Backup BackupJob
}

// BackupJob describes the recurring NHI grant for the backup workflow.
type BackupJob struct {
	Enabled         bool
	PrincipalID     string
	KeyVaultScope   string
	StorageScope    string
	DurationMinutes int
	FireAt          string // "HH:MM" UTC
}

// FromEnv builds the configuration from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:                envOr("ZSPGW_ADDR", ":8080"),
		PGDSN:               os.Getenv("ZSPGW_PG_DSN"),
		MaxDurationMinutes:  envInt("ZSPGW_MAX_DURATION_MINUTES", 480),
		MinJustificationLen: envInt("ZSPGW_MIN_JUSTIFICATION_CHARS", 10),
		PollInterval:        envDuration("ZSPGW_POLL_INTERVAL", 5*time.Second),
		AlarmAttempts:       envInt("ZSPGW_ALARM_ATTEMPTS", 5),
		DirectoryURL:        os.Getenv("ZSPGW_DIRECTORY_URL"),
		AuthorityURL:        os.Getenv("ZSPGW_AUTHORITY_URL"),
		ServiceSecret:       os.Getenv("ZSPGW_SERVICE_SECRET"),
		KafkaTopic:          envOr("ZSPGW_KAFKA_TOPIC", "zsp-audit"),
		Backup: BackupJob{
			PrincipalID:     os.Getenv("ZSPGW_BACKUP_SP_OBJECT_ID"),
			KeyVaultScope:   os.Getenv("ZSPGW_BACKUP_KEYVAULT_SCOPE"),
			StorageScope:    os.Getenv("ZSPGW_BACKUP_STORAGE_SCOPE"),
			DurationMinutes: envInt("ZSPGW_BACKUP_DURATION_MINUTES", 35),
			FireAt:          envOr("ZSPGW_BACKUP_FIRE_AT", "01:55"),
		},
	}

	if brokers := strings.TrimSpace(os.Getenv("ZSPGW_KAFKA_BROKERS")); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if raw := os.Getenv("ZSPGW_ROLE_DEFINITIONS"); raw != "" {
		m := map[string]string{}
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			cfg.RoleDefinitions = m
		}
	}

	cfg.Backup.Enabled = cfg.Backup.PrincipalID != "" &&
		cfg.Backup.KeyVaultScope != "" && cfg.Backup.StorageScope != ""

	return cfg
}

// Validate reports configuration values that cannot work at all.
func (c Config) Validate() error {
	if c.MaxDurationMinutes <= 0 {
		return fmt.Errorf("max duration must be positive, got %d", c.MaxDurationMinutes)
	}
	if c.MinJustificationLen < 0 {
		return fmt.Errorf("min justification length must not be negative, got %d", c.MinJustificationLen)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
