// Package config loads runtime settings from the environment (and an optional .env file).
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Config holds everything the binaries read from the environment.
type Config struct {
	Addr     string
	LogLevel string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ChangeFeedDriver selects where change events come from: "redis" or "postgres".
	ChangeFeedDriver string

	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioUseSSL     bool
	MinioPublicBase string

	JWTSecret  string
	JWTTTL     time.Duration
	OfficerKey string

	CacheDriver    string
	SnapshotMaxAge time.Duration

	FeedLimit         int
	MaxRecordingBytes int

	TelegramToken   string
	TelegramChatIDs []int64

	AnalysisModelURL string
	ReconcileCron    string

	ServerURL string
}

// DefaultJWTSecret signs tokens when JWT_SECRET is unset. It is only fit for local runs.
const DefaultJWTSecret = "change-me"

// InsecureSecret reports whether tokens are signed with DefaultJWTSecret.
func (c *Config) InsecureSecret() bool {
	return c.JWTSecret == DefaultJWTSecret
}

// Load reads .env (missing file is not an error) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return FromEnv(os.Getenv), nil
}

// FromEnv builds a Config from a lookup function, applying defaults for unset keys.
func FromEnv(getenv func(string) string) *Config {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	return &Config{
		Addr:     get("ADDR", ":8080"),
		LogLevel: get("LOG_LEVEL", "info"),

		DatabaseDSN: get("DATABASE_DSN", "host=localhost user=user password=password dbname=crimewatch port=5432 sslmode=disable"),

		RedisAddr:     get("REDIS_ADDR", "localhost:6379"),
		RedisPassword: get("REDIS_PASSWORD", ""),
		RedisDB:       cast.ToInt(get("REDIS_DB", "0")),

		ChangeFeedDriver: strings.ToLower(get("CHANGEFEED_DRIVER", "redis")),

		MinioEndpoint:   get("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:  get("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:  get("MINIO_SECRET_KEY", ""),
		MinioBucket:     get("MINIO_BUCKET", RecordingBucket),
		MinioUseSSL:     cast.ToBool(get("MINIO_USE_SSL", "false")),
		MinioPublicBase: get("MINIO_PUBLIC_BASE", ""),

		JWTSecret:  get("JWT_SECRET", DefaultJWTSecret),
		JWTTTL:     cast.ToDuration(get("JWT_TTL", "72h")),
		OfficerKey: get("OFFICER_KEY", ""),

		CacheDriver:    strings.ToLower(get("CACHE_DRIVER", "local")),
		SnapshotMaxAge: cast.ToDuration(get("SNAPSHOT_MAX_AGE", SnapshotMaxAge.String())),

		FeedLimit:         cast.ToInt(get("NOTIFICATION_FEED_LIMIT", cast.ToString(NotificationFeedLimit))),
		MaxRecordingBytes: cast.ToInt(get("MAX_RECORDING_BYTES", "0")),

		TelegramToken:   get("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatIDs: parseChatIDs(get("TELEGRAM_OFFICER_CHAT_IDS", "")),

		AnalysisModelURL: get("ANALYSIS_MODEL_URL", ""),
		ReconcileCron:    get("RECONCILE_CRON", "@every 30m"),

		ServerURL: get("SERVER_URL", "http://localhost:8080"),
	}
}

func parseChatIDs(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := cast.ToInt64E(part); err == nil && id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
