package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kapu/game-metadata-sync-go/internal/constants"
)

type Config struct {
	Catalog   CatalogConfig
	Store     StoreConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Fetch     FetchConfig
	Matching  MatchingConfig
	Recheck   RecheckConfig
	Run       RunConfig
	Providers ProvidersConfig
	Overrides OverridesConfig
	Logging   LoggingConfig
}

type CatalogConfig struct {
	// Path is a directory of games_*.json shards or a single catalog file.
	Path string
}

type StoreConfig struct {
	Backend    string
	Dir        string
	SQLitePath string
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

type FetchConfig struct {
	UserAgent        string
	MaxAttempts      int
	AttemptTimeouts  []time.Duration
	TimeoutStep      time.Duration
	PolitenessMin    time.Duration
	PolitenessMax    time.Duration
	Escalation       []constants.DelayRange
	BreakerThreshold int
}

type MatchingConfig struct {
	Strong         float64
	Weak           float64
	Accept         float64
	TiedTop        float64
	YearLookupTopK int
}

type RecheckConfig struct {
	Refresh          time.Duration
	Settled          time.Duration
	Unreleased       time.Duration
	NoScore          time.Duration
	NotFoundMaxCheck int
	NotFoundBackoff  []time.Duration
}

type RunConfig struct {
	Quota       int
	SaveEvery   int
	MaxVariants int
	Shards      int
}

type ProvidersConfig struct {
	CriticBaseURL     string
	CompletionBaseURL string
}

type OverridesConfig struct {
	File string
}

type LoggingConfig struct {
	Level string
	File  string
}

// BaseURL returns the configured base URL for a provider name.
func (p ProvidersConfig) BaseURL(name string) string {
	switch name {
	case constants.ProviderNames.Critic:
		return p.CriticBaseURL
	case constants.ProviderNames.Completion:
		return p.CompletionBaseURL
	default:
		return ""
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Catalog: CatalogConfig{
			Path: getEnv("CATALOG_DIR", "data/catalog"),
		},
		Store: StoreConfig{
			Backend:    strings.ToLower(getEnv("STORE_BACKEND", "json")),
			Dir:        getEnv("STORE_DIR", "data/checkpoints"),
			SQLitePath: getEnv("SQLITE_PATH", ""),
		},
		Postgres: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "gamesync"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Database: getEnv("POSTGRES_DB", "gamesync"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", constants.StoreConfig.RedisKeyPrefix),
		},
		Fetch: FetchConfig{
			UserAgent:        getEnv("FETCH_USER_AGENT", constants.HTTPConfig.UserAgent),
			MaxAttempts:      getEnvInt("FETCH_MAX_ATTEMPTS", constants.RetryConfig.MaxAttempts),
			AttemptTimeouts:  getEnvSecondsList("FETCH_ATTEMPT_TIMEOUTS", constants.RetryConfig.AttemptTimeouts),
			TimeoutStep:      getEnvSeconds("FETCH_TIMEOUT_STEP_SECONDS", constants.RetryConfig.TimeoutStep),
			PolitenessMin:    getEnvSeconds("POLITENESS_MIN_SECONDS", constants.PolitenessConfig.Delay.Min),
			PolitenessMax:    getEnvSeconds("POLITENESS_MAX_SECONDS", constants.PolitenessConfig.Delay.Max),
			Escalation:       getEnvRanges("ESCALATION_DELAYS", constants.EscalationDelays),
			BreakerThreshold: getEnvInt("BLOCK_ABORT_THRESHOLD", constants.CircuitBreakerConfig.FailureThreshold),
		},
		Matching: MatchingConfig{
			Strong:         getEnvFloat("MATCH_STRONG", constants.MatchThresholds.Strong),
			Weak:           getEnvFloat("MATCH_WEAK", constants.MatchThresholds.Weak),
			Accept:         getEnvFloat("MATCH_ACCEPT", constants.MatchThresholds.Accept),
			TiedTop:        getEnvFloat("MATCH_TIED_TOP", constants.MatchThresholds.TiedTop),
			YearLookupTopK: getEnvInt("MATCH_YEAR_LOOKUP_TOP_K", constants.MatchThresholds.YearLookupTopK),
		},
		Recheck: RecheckConfig{
			Refresh:          getEnvDays("RECHECK_REFRESH_DAYS", constants.RecheckWindows.Refresh),
			Settled:          getEnvDays("RECHECK_SETTLED_DAYS", constants.RecheckWindows.Settled),
			Unreleased:       getEnvDays("RECHECK_UNRELEASED_DAYS", constants.RecheckWindows.Unreleased),
			NoScore:          getEnvDays("RECHECK_NO_SCORE_DAYS", constants.RecheckWindows.NoScore),
			NotFoundMaxCheck: getEnvInt("RECHECK_NOT_FOUND_MAX", constants.RecheckWindows.NotFoundMaxCheck),
			NotFoundBackoff:  getEnvDaysList("RECHECK_NOT_FOUND_BACKOFF_DAYS", constants.RecheckWindows.NotFoundBackoff),
		},
		Run: RunConfig{
			Quota:       getEnvInt("RUN_QUOTA", constants.RunConfig.MaxOperations),
			SaveEvery:   getEnvInt("RUN_SAVE_EVERY", constants.RunConfig.SaveEvery),
			MaxVariants: getEnvInt("RUN_MAX_VARIANTS", constants.RunConfig.MaxVariants),
			Shards:      getEnvInt("RUN_SHARDS", 1),
		},
		Providers: ProvidersConfig{
			CriticBaseURL:     getEnv("CRITIC_BASE_URL", constants.ProviderURLs.CriticBaseURL),
			CompletionBaseURL: getEnv("COMPLETION_BASE_URL", constants.ProviderURLs.CompletionBaseURL),
		},
		Overrides: OverridesConfig{
			File: getEnv("OVERRIDES_FILE", "configs/overrides.toml"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", "logs/gamesync.log"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Catalog.Path == "" {
		return fmt.Errorf("CATALOG_DIR is required")
	}
	switch c.Store.Backend {
	case "json", "sqlite", "postgres", "redis":
	default:
		return fmt.Errorf("STORE_BACKEND must be one of json, sqlite, postgres, redis (got %q)", c.Store.Backend)
	}
	if c.Store.Backend == "json" && c.Store.Dir == "" {
		return fmt.Errorf("STORE_DIR is required for the json backend")
	}
	if c.Fetch.MaxAttempts < 1 {
		return fmt.Errorf("FETCH_MAX_ATTEMPTS must be at least 1")
	}
	if c.Fetch.PolitenessMin < 0 || c.Fetch.PolitenessMax < c.Fetch.PolitenessMin {
		return fmt.Errorf("politeness range %s..%s is invalid", c.Fetch.PolitenessMin, c.Fetch.PolitenessMax)
	}
	for _, r := range c.Fetch.Escalation {
		if r.Min < 0 || r.Max < r.Min {
			return fmt.Errorf("escalation range %s..%s is invalid", r.Min, r.Max)
		}
	}
	if len(c.Recheck.NotFoundBackoff) == 0 {
		return fmt.Errorf("RECHECK_NOT_FOUND_BACKOFF_DAYS needs at least one interval")
	}
	for name, v := range map[string]float64{
		"MATCH_STRONG":   c.Matching.Strong,
		"MATCH_WEAK":     c.Matching.Weak,
		"MATCH_ACCEPT":   c.Matching.Accept,
		"MATCH_TIED_TOP": c.Matching.TiedTop,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1] (got %v)", name, v)
		}
	}
	if c.Matching.Weak > c.Matching.Strong {
		return fmt.Errorf("MATCH_WEAK must not exceed MATCH_STRONG")
	}
	if c.Run.Quota < 0 {
		return fmt.Errorf("RUN_QUOTA must not be negative")
	}
	if c.Run.Shards < 1 {
		return fmt.Errorf("RUN_SHARDS must be at least 1")
	}
	if c.Providers.CriticBaseURL == "" || c.Providers.CompletionBaseURL == "" {
		return fmt.Errorf("provider base URLs are required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
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

func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
	}
	return defaultValue
}

func getEnvDays(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if days, err := strconv.Atoi(value); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	return defaultValue
}

// getEnvSecondsList parses "20,30,45" as seconds. Any bad entry keeps the default.
func getEnvSecondsList(key string, defaultValue []time.Duration) []time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []time.Duration
	for _, part := range strings.Split(value, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || f <= 0 {
			return defaultValue
		}
		out = append(out, time.Duration(f*float64(time.Second)))
	}
	return out
}

// getEnvDaysList parses "0,30,60" as whole days.
func getEnvDaysList(key string, defaultValue []time.Duration) []time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []time.Duration
	for _, part := range strings.Split(value, ",") {
		days, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || days < 0 {
			return defaultValue
		}
		out = append(out, time.Duration(days)*24*time.Hour)
	}
	return out
}

// getEnvRanges parses "15-18,65-70" as [min,max] second ranges.
func getEnvRanges(key string, defaultValue []constants.DelayRange) []constants.DelayRange {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []constants.DelayRange
	for _, part := range strings.Split(value, ",") {
		lo, hi, ok := strings.Cut(strings.TrimSpace(part), "-")
		if !ok {
			return defaultValue
		}
		minSec, err1 := strconv.ParseFloat(lo, 64)
		maxSec, err2 := strconv.ParseFloat(hi, 64)
		if err1 != nil || err2 != nil {
			return defaultValue
		}
		out = append(out, constants.DelayRange{
			Min: time.Duration(minSec * float64(time.Second)),
			Max: time.Duration(maxSec * float64(time.Second)),
		})
	}
	return out
}
