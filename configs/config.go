package configs

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Cache   CacheConfig
	Issuer  IssuerConfig
	Session SessionConfig
	Redis   RedisConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TLSCertFile  string
	TLSKeyFile   string
}

type CacheConfig struct {
	Enabled       bool
	Backend       string // file or redis
	FilePath      string
	RedisKey      string
	StaleAfter    time.Duration
	CookieKeySize int
}

type IssuerConfig struct {
	AppID          string
	Secret         string
	RateWindow     time.Duration
	TicketTTL      time.Duration
	RequestTimeout time.Duration // 0 waits forever
}

type SessionConfig struct {
	Secret string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	// Pool and timeout settings
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
	IdleTimeout  time.Duration
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

const (
	CacheBackendFile  = "file"
	CacheBackendRedis = "redis"
)

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "127.0.0.1"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 45*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			TLSCertFile:  getEnv("TLS_CERT_FILE", ""),
			TLSKeyFile:   getEnv("TLS_KEY_FILE", ""),
		},
		Cache: CacheConfig{
			Enabled:       getBoolEnv("CACHE_ENABLED", true),
			Backend:       getEnv("CACHE_BACKEND", CacheBackendFile),
			FilePath:      getEnv("CACHE_FILE_PATH", "players/auth.bin"),
			RedisKey:      getEnv("CACHE_REDIS_KEY", "ticketcache:auth"),
			StaleAfter:    getDurationEnv("CACHE_STALE_AFTER", 60*time.Second),
			CookieKeySize: getIntEnv("CACHE_COOKIE_KEY_SIZE", 8),
		},
		Issuer: IssuerConfig{
			AppID:          getEnv("ISSUER_APP_ID", "ticket-cache"),
			Secret:         getEnvRequired("ISSUER_SECRET"),
			RateWindow:     getDurationEnv("ISSUER_RATE_WINDOW", time.Minute),
			TicketTTL:      getDurationEnv("ISSUER_TICKET_TTL", 5*time.Minute),
			RequestTimeout: getDurationEnv("TICKET_REQUEST_TIMEOUT", 30*time.Second),
		},
		Session: SessionConfig{
			Secret: getEnvRequired("SESSION_SECRET"),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 4),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 1),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:  getDurationEnv("REDIS_POOL_TIMEOUT", 4*time.Second),
			IdleTimeout:  getDurationEnv("REDIS_IDLE_TIMEOUT", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the cache cannot work with.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheBackendFile, CacheBackendRedis:
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.Cache.Backend)
	}
	if c.Cache.CookieKeySize <= 0 {
		return fmt.Errorf("CACHE_COOKIE_KEY_SIZE must be positive, got %d", c.Cache.CookieKeySize)
	}
	if c.Cache.StaleAfter <= 0 {
		return fmt.Errorf("CACHE_STALE_AFTER must be positive, got %s", c.Cache.StaleAfter)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvRequired(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("Required environment variable %s is not set", key))
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
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
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
