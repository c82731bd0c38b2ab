package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	RedisHost       string
	RedisPort       string
	Port            string
	SecretKey       string
	CheckAPIURL     string
	DNSResolver     string
	LoopiaUser      string
	LoopiaPass      string
	TrustProxy      bool
	AllowedDomain   string
	SkipOriginCheck bool
	EnableWhois     bool
	EnableDNS       bool
	EnableTLS       bool
	CancelInFlight  bool
	AlertTTL        time.Duration
	SessionTTL      time.Duration
	CacheTTL        time.Duration
}

func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "5000")
	cfg := &Config{
		RedisHost:       getEnv("REDIS_HOST", "localhost"),
		RedisPort:       getEnv("REDIS_PORT", "6379"),
		Port:            port,
		SecretKey:       os.Getenv("SECRET_KEY"),
		CheckAPIURL:     getEnv("CHECK_API_URL", "http://127.0.0.1:"+port),
		DNSResolver:     getEnv("DNS_RESOLVER", "8.8.8.8:53"),
		LoopiaUser:      os.Getenv("LOOPIA_USERNAME"),
		LoopiaPass:      os.Getenv("LOOPIA_PASSWORD"),
		TrustProxy:      getEnvBool("TRUST_PROXY", true),
		AllowedDomain:   os.Getenv("ALLOWED_DOMAIN"),
		SkipOriginCheck: getEnvBool("SKIP_ORIGIN_CHECK", false),
		EnableWhois:     getEnvBool("ENABLE_WHOIS", true),
		EnableDNS:       getEnvBool("ENABLE_DNS", true),
		EnableTLS:       getEnvBool("ENABLE_TLS", true),
		CancelInFlight:  getEnvBool("CANCEL_IN_FLIGHT", false),
		AlertTTL:        getEnvDuration("ALERT_TTL", 3*time.Second),
		SessionTTL:      getEnvDuration("SESSION_TTL", 30*time.Minute),
		CacheTTL:        getEnvDuration("CACHE_TTL", 5*time.Minute),
	}

	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY environment variable is required")
	}
	if cfg.AlertTTL <= 0 {
		return nil, fmt.Errorf("ALERT_TTL must be positive, got %s", cfg.AlertTTL)
	}

	return cfg, nil
}

// LoopiaEnabled reports whether both Loopia API credentials are set.
func (c *Config) LoopiaEnabled() bool {
	return c.LoopiaUser != "" && c.LoopiaPass != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
