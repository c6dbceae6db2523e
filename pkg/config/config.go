package config

import (
	"os"
	"strconv"
	"time"
)

// Config is an immutable snapshot of the environment taken at startup.
type Config struct {
	// Selection
	WorkerCount    int    // how many workers to pick per query
	AnalystWorker  string // worker used for the selection reasoning call
	SelectionTTL   time.Duration
	SelectionCache int // max cached decisions
	PickStrategy   string

	// Dispatch
	ConcurrencyCap int
	AttemptTimeout time.Duration
	OverallTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RatePerSecond  float64
	RateBurst      int

	// Fusion and scoring
	FusionWorker string
	JudgeWorker  string
	MinSpread    float64
	Tolerance    float64

	// Persona
	PersonaEnabled       bool
	PersonaMaxSimilarity float64

	// Infrastructure
	CatalogPath    string
	LLMMode        string // "live" | "mock"
	ReportDir      string
	LogLevel       string
	TracingEnabled bool
	JaegerURL      string
}

// Load reads configuration from environment variables, applying defaults
// for anything unset.
func Load() *Config {
	return &Config{
		WorkerCount:    getEnvInt("FUSION_WORKER_COUNT", 3),
		AnalystWorker:  getEnv("FUSION_ANALYST_WORKER", ""),
		SelectionTTL:   getEnvDuration("FUSION_SELECTION_TTL", "10m"),
		SelectionCache: getEnvInt("FUSION_SELECTION_CACHE", 256),
		PickStrategy:   getEnv("FUSION_PICK_STRATEGY", "coverage"),

		ConcurrencyCap: getEnvInt("FUSION_CONCURRENCY_CAP", 4),
		AttemptTimeout: getEnvDuration("FUSION_ATTEMPT_TIMEOUT", "60s"),
		OverallTimeout: getEnvDuration("FUSION_OVERALL_TIMEOUT", "3m"),
		MaxRetries:     getEnvInt("FUSION_MAX_RETRIES", 2),
		RetryBaseDelay: getEnvDuration("FUSION_RETRY_BASE_DELAY", "200ms"),
		RetryMaxDelay:  getEnvDuration("FUSION_RETRY_MAX_DELAY", "10s"),
		RatePerSecond:  getEnvFloat("FUSION_RATE_PER_SECOND", 5),
		RateBurst:      getEnvInt("FUSION_RATE_BURST", 10),

		FusionWorker: getEnv("FUSION_FUSION_WORKER", ""),
		JudgeWorker:  getEnv("FUSION_JUDGE_WORKER", ""),
		MinSpread:    getEnvFloat("FUSION_MIN_SPREAD", 1.0),
		Tolerance:    getEnvFloat("FUSION_SCORE_TOLERANCE", 1.0),

		PersonaEnabled:       getEnvBool("FUSION_PERSONA_ENABLED", true),
		PersonaMaxSimilarity: getEnvFloat("FUSION_PERSONA_MAX_SIMILARITY", 0.7),

		CatalogPath:    getEnv("FUSION_CATALOG_PATH", ""),
		LLMMode:        getEnv("LLM_MODE", "live"),
		ReportDir:      getEnv("FUSION_REPORT_DIR", "./reports"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		TracingEnabled: getEnvBool("FUSION_TRACING_ENABLED", false),
		JaegerURL:      getEnv("JAEGER_URL", "http://localhost:14268/api/traces"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
