package obs

import "testing"

func TestInitSentryNoopWithoutDSN(t *testing.T) {
	active, err := InitSentry(Config{})
	if err != nil {
		t.Fatalf("InitSentry with empty DSN should not error, got %v", err)
	}
	if active {
		t.Fatalf("expected InitSentry to be a no-op without a DSN")
	}
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("DKG_SENTRY_DSN", "")
	t.Setenv("DKG_SENTRY_ENVIRONMENT", "")
	t.Setenv("DKG_ENV", "")

	cfg := LoadConfigFromEnv()
	if cfg.SentryEnvironment != "production" {
		t.Errorf("expected default SentryEnvironment 'production', got %q", cfg.SentryEnvironment)
	}
	if cfg.Environment != "production" {
		t.Errorf("expected default Environment 'production', got %q", cfg.Environment)
	}
}

func TestMetricsRoundEndedRecordsWithoutPanicking(t *testing.T) {
	m := NewMetrics()
	m.RoundEnded(0, 3)
	m.RoundEnded(2, 2)
}
