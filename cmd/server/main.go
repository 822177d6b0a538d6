package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/watchroom/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	secret = configVar[string]{
		envKey:       "SERVER_SECRET",
		flagKey:      "secret",
		defaultValue: "",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	membersLimit = configVar[int]{
		envKey:       "SERVER_MEMBERS_LIMIT",
		flagKey:      "members-limit",
		defaultValue: 9,
	}
	playlistLimit = configVar[int]{
		envKey:       "SERVER_PLAYLIST_LIMIT",
		flagKey:      "playlist-limit",
		defaultValue: 25,
	}
	chatLimit = configVar[int]{
		envKey:       "SERVER_CHAT_LIMIT",
		flagKey:      "chat-limit",
		defaultValue: 100,
	}
	adminGrace = configVar[time.Duration]{
		envKey:       "SERVER_ADMIN_GRACE",
		flagKey:      "admin-grace",
		defaultValue: 2 * time.Minute,
	}
	emptyRoomGrace = configVar[time.Duration]{
		envKey:       "SERVER_EMPTY_ROOM_GRACE",
		flagKey:      "empty-room-grace",
		defaultValue: 5 * time.Minute,
	}
	sweepInterval = configVar[time.Duration]{
		envKey:       "SERVER_SWEEP_INTERVAL",
		flagKey:      "sweep-interval",
		defaultValue: time.Minute,
	}
	maxDuration = configVar[time.Duration]{
		envKey:       "SERVER_MAX_DURATION",
		flagKey:      "max-duration",
		defaultValue: 3 * time.Hour,
	}
	defaultPolicy = configVar[string]{
		envKey:       "SERVER_DEFAULT_POLICY",
		flagKey:      "default-policy",
		defaultValue: "grace",
	}
	proCredentials = configVar[[]string]{
		envKey:       "SERVER_PRO_CREDENTIALS",
		flagKey:      "pro-credentials",
		defaultValue: nil,
	}
	redisEnabled = configVar[bool]{
		envKey:       "REDIS_ENABLED",
		flagKey:      "redis-enabled",
		defaultValue: false,
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.String(secret.flagKey, secret.defaultValue, "Secret used to sign admin tokens")
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Int(membersLimit.flagKey, membersLimit.defaultValue, "Maximum number of members in a room without pro mode")
	pflag.Int(playlistLimit.flagKey, playlistLimit.defaultValue, "Maximum number of videos in the playlist")
	pflag.Int(chatLimit.flagKey, chatLimit.defaultValue, "Number of chat messages kept per room")
	pflag.Duration(adminGrace.flagKey, adminGrace.defaultValue, "How long a grace room may stay without an admin")
	pflag.Duration(emptyRoomGrace.flagKey, emptyRoomGrace.defaultValue, "How long an empty room is kept")
	pflag.Duration(sweepInterval.flagKey, sweepInterval.defaultValue, "Interval of the expired rooms sweep")
	pflag.Duration(maxDuration.flagKey, maxDuration.defaultValue, "Maximum duration of rooms without pro mode, 0 for no limit")
	pflag.String(defaultPolicy.flagKey, defaultPolicy.defaultValue, "Failover policy of created rooms: promote or grace")
	pflag.StringSlice(proCredentials.flagKey, proCredentials.defaultValue, "Credentials that enable pro mode")
	pflag.Bool(redisEnabled.flagKey, redisEnabled.defaultValue, "Mirror room summaries to redis")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(secret.flagKey, secret.envKey)
	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(membersLimit.flagKey, membersLimit.envKey)
	viper.BindEnv(playlistLimit.flagKey, playlistLimit.envKey)
	viper.BindEnv(chatLimit.flagKey, chatLimit.envKey)
	viper.BindEnv(adminGrace.flagKey, adminGrace.envKey)
	viper.BindEnv(emptyRoomGrace.flagKey, emptyRoomGrace.envKey)
	viper.BindEnv(sweepInterval.flagKey, sweepInterval.envKey)
	viper.BindEnv(maxDuration.flagKey, maxDuration.envKey)
	viper.BindEnv(defaultPolicy.flagKey, defaultPolicy.envKey)
	viper.BindEnv(proCredentials.flagKey, proCredentials.envKey)
	viper.BindEnv(redisEnabled.flagKey, redisEnabled.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(secret.flagKey, secret.defaultValue)
	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(membersLimit.flagKey, membersLimit.defaultValue)
	viper.SetDefault(playlistLimit.flagKey, playlistLimit.defaultValue)
	viper.SetDefault(chatLimit.flagKey, chatLimit.defaultValue)
	viper.SetDefault(adminGrace.flagKey, adminGrace.defaultValue)
	viper.SetDefault(emptyRoomGrace.flagKey, emptyRoomGrace.defaultValue)
	viper.SetDefault(sweepInterval.flagKey, sweepInterval.defaultValue)
	viper.SetDefault(maxDuration.flagKey, maxDuration.defaultValue)
	viper.SetDefault(defaultPolicy.flagKey, defaultPolicy.defaultValue)
	viper.SetDefault(proCredentials.flagKey, proCredentials.defaultValue)
	viper.SetDefault(redisEnabled.flagKey, redisEnabled.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	config := &app.AppConfig{
		Secret:         viper.GetString(secret.flagKey),
		Host:           viper.GetString(host.flagKey),
		Port:           viper.GetInt(port.flagKey),
		LogLevel:       viper.GetString(logLevel.flagKey),
		MembersLimit:   viper.GetInt(membersLimit.flagKey),
		PlaylistLimit:  viper.GetInt(playlistLimit.flagKey),
		ChatLimit:      viper.GetInt(chatLimit.flagKey),
		AdminGrace:     viper.GetDuration(adminGrace.flagKey),
		EmptyRoomGrace: viper.GetDuration(emptyRoomGrace.flagKey),
		SweepInterval:  viper.GetDuration(sweepInterval.flagKey),
		MaxDuration:    viper.GetDuration(maxDuration.flagKey),
		DefaultPolicy:  viper.GetString(defaultPolicy.flagKey),
		ProCredentials: viper.GetStringSlice(proCredentials.flagKey),
		RedisEnabled:   viper.GetBool(redisEnabled.flagKey),
		RedisPort:      viper.GetInt(redisPort.flagKey),
		RedisHost:      viper.GetString(redisHost.flagKey),
		RedisPassword:  viper.GetString(redisPassword.flagKey),
	}

	return config
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
