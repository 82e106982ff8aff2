package app

import (
	"os"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string
	LogLevel    string

	// Summary and translation providers
	OpenAIAPIKey string
	OpenAIModel  string
	DeepLAPIKey  string

	// Languages
	CanonicalLang string
	TargetLangs   []string

	// Per-provider attempt timeout for translation calls
	ProviderTimeout time.Duration

	// JWT Authentication (tokens issued by the external auth service)
	JWTSecret string

	// Error monitoring
	SentryDSN string

	// Notifications
	DiscordWebhookURL string

	// Idle session sweeping
	IdleSweepInterval time.Duration
	MaxSessionIdle    time.Duration
}

func LoadConfigFromEnv() Config {
	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		// Summary and translation providers
		OpenAIAPIKey: getenv("OPENAI_API_KEY", ""),
		OpenAIModel:  getenv("OPENAI_MODEL", ""),
		DeepLAPIKey:  getenv("DEEPL_API_KEY", ""),

		// Languages
		CanonicalLang: getenv("CANONICAL_LANG", "en"),
		TargetLangs:   parseLangList(getenv("TARGET_LANGS", "ko,ja,zh,es,fr,de")),

		ProviderTimeout: getenvDuration("PROVIDER_TIMEOUT", 15*time.Second),

		// JWT Authentication
		JWTSecret: os.Getenv("JWT_SECRET"), // Required - no fallback for security

		// Error monitoring
		SentryDSN: getenv("SENTRY_DSN", ""),

		// Notifications
		DiscordWebhookURL: getenv("DISCORD_WEBHOOK_URL", ""),

		// Idle session sweeping
		IdleSweepInterval: getenvDuration("IDLE_SWEEP_INTERVAL", 10*time.Minute),
		MaxSessionIdle:    getenvDuration("MAX_SESSION_IDLE", time.Hour),
	}
}

func parseLangList(s string) []string {
	if s == "" {
		return nil
	}
	var langs []string
	for _, l := range strings.Split(s, ",") {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
