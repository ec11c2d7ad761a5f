package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("querypilot-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Database.Dialect != DialectSQLite {
		t.Fatalf("Database.Dialect = %q", cfg.Database.Dialect)
	}
	if cfg.Database.RowLimit != 500 {
		t.Fatalf("Database.RowLimit = %d", cfg.Database.RowLimit)
	}
	if cfg.Pipeline.MaxCorrectionAttempts != 3 {
		t.Fatalf("Pipeline.MaxCorrectionAttempts = %d", cfg.Pipeline.MaxCorrectionAttempts)
	}
	if cfg.AI.Model != "gpt-5" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"QUERYPILOT_PROFILE":                 "test",
		"QUERYPILOT_HTTP_ADDR":               ":9999",
		"QUERYPILOT_HTTP_READ_TIMEOUT":       "2s",
		"QUERYPILOT_DB_DIALECT":              "postgresql",
		"QUERYPILOT_DB_TARGET":               "postgres://example/sakila",
		"QUERYPILOT_DB_ROW_LIMIT":            "42",
		"QUERYPILOT_AI_BASE_URL":             "http://localhost:11434",
		"QUERYPILOT_AI_MODEL":                "sql-model",
		"QUERYPILOT_AI_TEMPERATURE":          "0.5",
		"QUERYPILOT_MAX_CORRECTION_ATTEMPTS": "5",
		"QUERYPILOT_LOG_LEVEL":               "error",
		"QUERYPILOT_LOG_JSON":                "false",
	})
	cfg, err := Load("querypilot-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %v", cfg.HTTP.ReadTimeout)
	}
	if cfg.Database.Dialect != DialectPostgreSQL {
		t.Fatalf("Database.Dialect = %q", cfg.Database.Dialect)
	}
	if cfg.Database.Target != "postgres://example/sakila" {
		t.Fatalf("Database.Target = %q", cfg.Database.Target)
	}
	if cfg.Database.RowLimit != 42 {
		t.Fatalf("Database.RowLimit = %d", cfg.Database.RowLimit)
	}
	if cfg.AI.Model != "sql-model" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.Temperature != 0.5 {
		t.Fatalf("AI.Temperature = %v", cfg.AI.Temperature)
	}
	if cfg.Pipeline.MaxCorrectionAttempts != 5 {
		t.Fatalf("Pipeline.MaxCorrectionAttempts = %d", cfg.Pipeline.MaxCorrectionAttempts)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Observability.LogJSON {
		t.Fatal("LogJSON should be false")
	}
}

func TestLoadZeroCorrectionAttemptsIsAllowed(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"QUERYPILOT_MAX_CORRECTION_ATTEMPTS": "0",
	})
	cfg, err := Load("querypilot-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Pipeline.MaxCorrectionAttempts != 0 {
		t.Fatalf("Pipeline.MaxCorrectionAttempts = %d", cfg.Pipeline.MaxCorrectionAttempts)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"invalid profile", map[string]string{"QUERYPILOT_PROFILE": "staging"}},
		{"invalid dialect", map[string]string{"QUERYPILOT_DB_DIALECT": "oracle"}},
		{"invalid log level", map[string]string{"QUERYPILOT_LOG_LEVEL": "verbose"}},
		{"invalid duration", map[string]string{"QUERYPILOT_AI_TIMEOUT": "soon"}},
		{"negative attempts", map[string]string{"QUERYPILOT_MAX_CORRECTION_ATTEMPTS": "-1"}},
		{"empty target", map[string]string{"QUERYPILOT_DB_TARGET": "   "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load("querypilot-api", mapLookup(tc.env)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
