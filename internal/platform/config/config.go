package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	AdminToken  string
	SessionTTL  time.Duration
	PostgresDSN string
	Redis       RedisConfig
	Kafka       KafkaConfig

	// DefaultCutoff seeds the benefit cutoff at boot when set (YYYY-MM-DD).
	// Production deployments manage the cutoff through the admin API instead.
	DefaultCutoff string

	// DevAccounts pre-populates the in-memory account directory so local
	// account-linking flows have something to verify against.
	DevAccounts []string
}

// RedisConfig holds connection settings for the session store backend.
// An empty URL means Redis is not configured and the in-memory store is used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds settings for the audit event sink. Empty brokers mean
// audit events are kept in the in-process store only.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("ENROLLD_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	adminToken := os.Getenv("ENROLLD_ADMIN_TOKEN")
	if adminToken == "" {
		// Use a default for development - should be overridden in production
		adminToken = "dev-admin-token-change-in-production"
	}

	sessionTTL := durationEnv("ENROLLD_SESSION_TTL", 24*time.Hour)

	var brokers []string
	if raw := os.Getenv("ENROLLD_KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	auditTopic := os.Getenv("ENROLLD_KAFKA_AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "enrolld.audit"
	}

	var devAccounts []string
	if raw := os.Getenv("ENROLLD_DEV_ACCOUNTS"); raw != "" {
		devAccounts = strings.Split(raw, ",")
	}

	return Server{
		Addr:          addr,
		AdminToken:    adminToken,
		SessionTTL:    sessionTTL,
		PostgresDSN:   os.Getenv("ENROLLD_POSTGRES_DSN"),
		DefaultCutoff: os.Getenv("ENROLLD_BENEFIT_CUTOFF"),
		DevAccounts:   devAccounts,
		Redis: RedisConfig{
			URL:          os.Getenv("ENROLLD_REDIS_URL"),
			PoolSize:     intEnv("ENROLLD_REDIS_POOL_SIZE", 10),
			MinIdleConns: intEnv("ENROLLD_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  durationEnv("ENROLLD_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durationEnv("ENROLLD_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durationEnv("ENROLLD_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    brokers,
			AuditTopic: auditTopic,
		},
	}
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}
