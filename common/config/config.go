package config

import (
	"strings"

	"github.com/llmgateway/llmgateway/common/env"
)

var (
	// DebugEnabled toggles verbose structured logging when DEBUG=true.
	DebugEnabled = env.Bool("DEBUG", false)

	// NodeEnv mirrors the deployment environment name; "production" enables
	// production-only behaviours such as the slower auto top-up cadence.
	NodeEnv = env.String("NODE_ENV", "development")

	// Hosted marks this deployment as the hosted multi-tenant gateway.
	Hosted = env.Bool("HOSTED", false)
	// PaidMode enables plan gating (pro-only features) on hosted deployments.
	PaidMode = env.Bool("PAID_MODE", false)

	// UseResponsesAPI routes reasoning-capable OpenAI models through /v1/responses.
	UseResponsesAPI = env.Bool("USE_RESPONSES_API", false)

	// SQLDSN selects the main database. Empty means a local sqlite file.
	SQLDSN = env.String("SQL_DSN", "")
	// LogSQLDSN optionally points the log table at a separate database.
	LogSQLDSN = env.String("LOG_SQL_DSN", "")
	// SQLitePath is the sqlite database location used when SQL_DSN is unset.
	SQLitePath = env.String("SQLITE_PATH", "llmgateway.db")

	// RedisConnString enables Redis for caching and the log queue when set.
	RedisConnString = env.String("REDIS_CONN_STRING", "")

	// StripeSecretKey authorises auto top-up PaymentIntent creation.
	StripeSecretKey = env.String("STRIPE_SECRET_KEY", "")

	// CreditBatchSize bounds how many unprocessed logs one sweep picks up.
	CreditBatchSize = env.Int("CREDIT_BATCH_SIZE", 100)
	// CreditBatchIntervalTicks is how many worker ticks pass between credit sweeps.
	CreditBatchIntervalTicks = env.Int("CREDIT_BATCH_INTERVAL", 5)

	// AutoTopUpIntervalTicks controls the auto top-up cadence. The production
	// default of 120 ticks (~2 min) is deliberately slower than dev.
	AutoTopUpIntervalTicks = func() int {
		if v := env.Int("AUTO_TOPUP_INTERVAL_TICKS", 0); v > 0 {
			return v
		}
		if NodeEnv == "production" {
			return 120
		}
		return 5
	}()

	// AutoEligibleModels is the allow-list consulted by the auto router.
	AutoEligibleModels = func() []string {
		raw := env.String("AUTO_ELIGIBLE_MODELS", "gpt-5-nano,gpt-4.1-nano")
		var models []string
		for _, m := range strings.Split(raw, ",") {
			if m = strings.TrimSpace(m); m != "" {
				models = append(models, m)
			}
		}
		return models
	}()

	// RouteWayDiscountBaseURL overrides the routeway aggregator endpoint when set.
	RouteWayDiscountBaseURL = env.String("ROUTEWAY_DISCOUNT_BASE_URL", "")

	// EnablePrometheusMetrics exposes /metrics for scrapers when true.
	EnablePrometheusMetrics = env.Bool("ENABLE_PROMETHEUS_METRICS", true)

	// RelayTimeout bounds upstream HTTP requests (seconds). 0 means no timeout;
	// the upstream then controls request lifetime.
	RelayTimeout = env.Int("RELAY_TIMEOUT", 0)

	// ShutdownTimeoutSec is how long the worker may drain before force-stop.
	ShutdownTimeoutSec = env.Int("SHUTDOWN_TIMEOUT", 15)
)

const (
	// CacheMinDurationSeconds / CacheMaxDurationSeconds clamp project cache TTLs.
	CacheMinDurationSeconds = 10
	CacheMaxDurationSeconds = 31_536_000

	// DefaultMaxTokens is assumed when a request carries no max_tokens, both for
	// the auto router's context budget and for end-of-stream usage synthesis.
	DefaultMaxTokens = 4096

	// StreamBufferLimit caps the SSE reassembly buffer. On overflow the buffer
	// is dropped and the stream continues; data loss is tolerated.
	StreamBufferLimit = 10 * 1024 * 1024

	// StreamErrorBodyLimit caps how much of an offending buffer is echoed in a
	// streaming error event.
	StreamErrorBodyLimit = 5 * 1024

	// LockTTL is how long a lock row stays valid before it may be stolen.
	LockTTLSeconds = 300
)

// IsProd reports whether the deployment runs with production semantics.
func IsProd() bool {
	return NodeEnv == "production"
}
