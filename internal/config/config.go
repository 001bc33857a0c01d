// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	PublicBaseURL      string
	AppURL             string
	CookieSecure       bool
	CORSOrigins        []string

	// JWT settings
	JWTSecret string

	// LLM settings
	LLMProvider       string
	OpenAIAPIKey      string
	AnthropicAPIKey   string
	LLMModel          string
	LLMMaxTokens      int
	LLMTemperature    float64
	LLMMaxAttempts    int
	LLMRetryBaseDelay time.Duration

	// HubSpot settings
	HubSpotAPIKey       string
	HubSpotClientID     string
	HubSpotClientSecret string
	HubSpotAPIURL       string
	HubSpotAuthURL      string
	HubSpotScopes       []string
	HubSpotPageSize     int
	HubSpotMaxPages     int

	// Rate limiting
	RateLimitRequests           int
	RateLimitWindow             time.Duration
	CompletionRateLimitRequests int
	CompletionRateLimitWindow   time.Duration

	// Storage
	DatabasePath string

	// NATS settings; an empty URL disables plan events.
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	NATSMaxReconnects int
	NATSReconnectWait time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 180*time.Second),
		PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3002"), "/"),
		AppURL:             strings.TrimRight(getEnv("APP_URL", ""), "/"),
		CookieSecure:       getBoolEnv("COOKIE_SECURE", os.Getenv("ENV") == "production"),
		CORSOrigins:        getListEnv("CORS_ALLOWED_ORIGINS", nil),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// LLM
		LLMProvider:       getEnv("LLM_PROVIDER", "openai"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		LLMModel:          getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:      getIntEnv("LLM_MAX_TOKENS", 1000),
		LLMTemperature:    getFloatEnv("LLM_TEMPERATURE", 0.7),
		LLMMaxAttempts:    getIntEnv("LLM_MAX_ATTEMPTS", 3),
		LLMRetryBaseDelay: getDurationEnv("LLM_RETRY_BASE_DELAY", time.Second),

		// HubSpot
		HubSpotAPIKey:       getEnv("HUBSPOT_API_KEY", ""),
		HubSpotClientID:     getEnv("HUBSPOT_CLIENT_ID", ""),
		HubSpotClientSecret: getEnv("HUBSPOT_CLIENT_SECRET", ""),
		HubSpotAPIURL:       strings.TrimRight(getEnv("HUBSPOT_API_URL", "https://api.hubapi.com"), "/"),
		HubSpotAuthURL:      getEnv("HUBSPOT_AUTH_URL", "https://app.hubspot.com/oauth/authorize"),
		HubSpotScopes:       getListEnv("HUBSPOT_SCOPES", []string{"crm.objects.contacts.read"}),
		HubSpotPageSize:     getIntEnv("HUBSPOT_PAGE_SIZE", 100),
		HubSpotMaxPages:     getIntEnv("HUBSPOT_MAX_PAGES", 0),

		// Rate limiting
		RateLimitRequests:           getIntEnv("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:             getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		CompletionRateLimitRequests: getIntEnv("COMPLETION_RATE_LIMIT_REQUESTS", 10),
		CompletionRateLimitWindow:   getDurationEnv("COMPLETION_RATE_LIMIT_WINDOW", time.Minute),

		// Storage
		DatabasePath: getEnv("DATABASE_PATH", "data/plans.db"),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		NATSMaxReconnects: getIntEnv("NATS_MAX_RECONNECTS", -1),
		NATSReconnectWait: getDurationEnv("NATS_RECONNECT_WAIT", 2*time.Second),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
	if cfg.AppURL == "" {
		cfg.AppURL = cfg.PublicBaseURL
	}
	return cfg
}

// OAuthCallbackURL is the redirect URI registered with HubSpot.
func (c *Config) OAuthCallbackURL() string {
	return c.PublicBaseURL + "/auth/hubspot/callback"
}

// LLMAPIKey returns the key for the configured provider.
func (c *Config) LLMAPIKey() string {
	if strings.EqualFold(c.LLMProvider, "anthropic") {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
