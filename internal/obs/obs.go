// Package obs wires the node's ambient observability stack: structured
// logging (zap), panic/error capture (sentry-go), and metrics
// (prometheus/client_golang). Grounded on the teacher's observability
// Manager (services/go-orchestrator/pkg/observability/observability.go),
// trimmed to the two integrations this node's domain actually uses — see
// DESIGN.md for why Datadog, New Relic and the AWS/LocalStack session were
// dropped rather than carried over unused.
package obs

import (
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Config mirrors the environment-driven shape of the teacher's
// observability.Config, reduced to the Sentry fields this node wires up.
type Config struct {
	SentryDSN         string
	SentryEnvironment string
	Environment       string // "production", "dev", ... used for zap's encoder choice
}

// LoadConfigFromEnv reads observability configuration from the process
// environment, following the teacher's getEnvOrDefault convention.
func LoadConfigFromEnv() Config {
	return Config{
		SentryDSN:         os.Getenv("DKG_SENTRY_DSN"),
		SentryEnvironment: getEnvOrDefault("DKG_SENTRY_ENVIRONMENT", "production"),
		Environment:       getEnvOrDefault("DKG_ENV", "production"),
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Metrics is the node's Prometheus registry wrapper. RoundEndedTotal and
// QualifiedDealers are fed by internal/chain through RoundEnded;
// RandomnessWaits and RandomnessTimeouts are registered, but no code in
// this module increments them.
type Metrics struct {
	RoundEndedTotal    *prometheus.CounterVec
	QualifiedDealers   *prometheus.GaugeVec
	RandomnessWaits    prometheus.Counter
	RandomnessTimeouts prometheus.Counter
}

// NewMetrics registers the node's metrics against the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		RoundEndedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dkg_round_ended_total",
			Help: "Number of times a DKG round deadline has been reached, by round.",
		}, []string{"round"}),
		QualifiedDealers: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dkg_qualified_dealers",
			Help: "Current count of dealers marked correct, by round.",
		}, []string{"round"}),
		RandomnessWaits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dkg_randomness_waits_total",
			Help: "Number of block imports that had to wait for a randomness value.",
		}),
		RandomnessTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dkg_randomness_timeouts_total",
			Help: "Number of block imports that timed out waiting for a randomness value.",
		}),
	}
}

// RoundEnded implements chain.RoundEndedRecorder.
func (m *Metrics) RoundEnded(round int, count uint64) {
	label := fmt.Sprintf("%d", round)
	m.RoundEndedTotal.WithLabelValues(label).Inc()
	m.QualifiedDealers.WithLabelValues(label).Set(float64(count))
}

// NewLogger builds the node's zap logger: a production JSON encoder
// outside of "dev" environments, matching the teacher's environment-driven
// configuration switch.
func NewLogger(env string) (*zap.Logger, error) {
	if env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// InitSentry initializes the process-wide Sentry client if a DSN is
// configured; it is a no-op otherwise, mirroring the teacher's "only wire
// up what's configured" pattern.
func InitSentry(cfg Config) (bool, error) {
	if cfg.SentryDSN == "" {
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
	})
	if err != nil {
		return false, fmt.Errorf("obs: sentry init: %w", err)
	}
	return true, nil
}

// RecoverAndReport recovers a panic (if any), logs it, and reports it to
// Sentry. It is deferred at the top of offchain.Worker.RunBlock and
// randomgate.BlockImport.ImportBlock, per spec.md §7's "panics must not
// propagate to the host."
func RecoverAndReport(log *zap.Logger, component string) {
	if r := recover(); r != nil {
		log.Error("recovered panic", zap.String("component", component), zap.Any("panic", r))
		sentry.CurrentHub().Recover(r)
		sentry.Flush(2 * time.Second)
	}
}
