package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/pkg/ctxlogger"
)

func validConfig() *AppConfig {
	return &AppConfig{
		Secret:         "secret",
		Host:           "127.0.0.1",
		Port:           8080,
		LogLevel:       "info",
		MembersLimit:   9,
		PlaylistLimit:  25,
		ChatLimit:      100,
		AdminGrace:     2 * time.Minute,
		EmptyRoomGrace: 5 * time.Minute,
		SweepInterval:  time.Minute,
		MaxDuration:    3 * time.Hour,
		DefaultPolicy:  "grace",
		ProCredentials: []string{"pro-key"},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"missing secret", func(c *AppConfig) { c.Secret = "" }},
		{"zero members limit", func(c *AppConfig) { c.MembersLimit = 0 }},
		{"zero playlist limit", func(c *AppConfig) { c.PlaylistLimit = 0 }},
		{"zero chat limit", func(c *AppConfig) { c.ChatLimit = 0 }},
		{"zero admin grace", func(c *AppConfig) { c.AdminGrace = 0 }},
		{"zero sweep interval", func(c *AppConfig) { c.SweepInterval = 0 }},
		{"sweep slower than directory ttl", func(c *AppConfig) { c.SweepInterval = directoryTTL }},
		{"negative max duration", func(c *AppConfig) { c.MaxDuration = -time.Second }},
		{"unknown policy", func(c *AppConfig) { c.DefaultPolicy = "vote" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRoomConfig(t *testing.T) {
	cfg := validConfig().roomConfig()

	assert.Equal(t, domain.PolicyGrace, cfg.DefaultPolicy)
	assert.Equal(t, 100, cfg.ChatLimit)
	assert.Equal(t, 3*time.Hour, cfg.MaxDuration)
	assert.Equal(t, []string{"pro-key"}, cfg.ProCredentials)
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger("loud", &bytes.Buffer{})
	assert.Error(t, err)

	var buf bytes.Buffer
	logger, err := newLogger("warn", &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	ctx := ctxlogger.AppendCtx(context.Background(), slog.String("room_id", "abc"))
	logger.WarnContext(ctx, "shown")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "shown", record["msg"])
	assert.Equal(t, "abc", record["room_id"])
}
