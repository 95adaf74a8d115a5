package config_test

import (
	"testing"
	"time"

	"crimewatch/backend/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := config.FromEnv(func(string) string { return "" })

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "redis", cfg.ChangeFeedDriver)
	assert.Equal(t, config.RecordingBucket, cfg.MinioBucket)
	assert.Equal(t, 72*time.Hour, cfg.JWTTTL)
	assert.Equal(t, config.NotificationFeedLimit, cfg.FeedLimit)
	assert.True(t, cfg.InsecureSecret())
	assert.Equal(t, config.SnapshotMaxAge, cfg.SnapshotMaxAge)
	assert.Zero(t, cfg.MaxRecordingBytes)
	assert.Empty(t, cfg.TelegramChatIDs)
}

func TestFromEnv_Overrides(t *testing.T) {
	env := map[string]string{
		"ADDR":                      ":9090",
		"CHANGEFEED_DRIVER":         "Postgres",
		"MINIO_USE_SSL":             "true",
		"REDIS_DB":                  "3",
		"NOTIFICATION_FEED_LIMIT":   "10",
		"JWT_SECRET":                "s3cret",
		"TELEGRAM_OFFICER_CHAT_IDS": "111, 222,,abc,0",
	}
	cfg := config.FromEnv(func(k string) string { return env[k] })

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "postgres", cfg.ChangeFeedDriver)
	assert.True(t, cfg.MinioUseSSL)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 10, cfg.FeedLimit)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.False(t, cfg.InsecureSecret())
	assert.Equal(t, []int64{111, 222}, cfg.TelegramChatIDs)
}

func TestAlertStatuses(t *testing.T) {
	assert.True(t, config.AlertStatuses["New"])
	assert.True(t, config.AlertStatuses["In Progress"])
	assert.True(t, config.AlertStatuses["Resolved"])
	assert.False(t, config.AlertStatuses["Closed"])
}
