package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sharetube/watchroom/internal/controller"
	"github.com/sharetube/watchroom/internal/domain"
	conninmemory "github.com/sharetube/watchroom/internal/repository/connection/inmemory"
	roominmemory "github.com/sharetube/watchroom/internal/repository/room/inmemory"
	roomredis "github.com/sharetube/watchroom/internal/repository/room/redis"
	"github.com/sharetube/watchroom/internal/service/room"
	"github.com/sharetube/watchroom/pkg/ctxlogger"
	"github.com/sharetube/watchroom/pkg/redisclient"
)

// directoryTTL is how long the summary of a room without a duration lives in redis
// after it was last published. Live rooms are republished every sweep interval.
const directoryTTL = 24 * time.Hour

type AppConfig struct {
	Secret         string        `json:"-"`
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	LogLevel       string        `json:"log_level"`
	MembersLimit   int           `json:"members_limit"`
	PlaylistLimit  int           `json:"playlist_limit"`
	ChatLimit      int           `json:"chat_limit"`
	AdminGrace     time.Duration `json:"admin_grace"`
	EmptyRoomGrace time.Duration `json:"empty_room_grace"`
	SweepInterval  time.Duration `json:"sweep_interval"`
	MaxDuration    time.Duration `json:"max_duration"`
	DefaultPolicy  string        `json:"default_policy"`
	ProCredentials []string      `json:"-"`
	RedisEnabled   bool          `json:"redis_enabled"`
	RedisPort      int           `json:"redis_port"`
	RedisHost      string        `json:"redis_host"`
	RedisPassword  string        `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Secret == "" {
		return fmt.Errorf("secret must be set")
	}
	if cfg.MembersLimit < 1 {
		return fmt.Errorf("members limit must be greater than 0")
	}
	if cfg.PlaylistLimit < 1 {
		return fmt.Errorf("playlist limit must be greater than 0")
	}
	if cfg.ChatLimit < 1 {
		return fmt.Errorf("chat limit must be greater than 0")
	}
	if cfg.AdminGrace <= 0 || cfg.EmptyRoomGrace <= 0 {
		return fmt.Errorf("grace periods must be positive")
	}
	if cfg.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	if cfg.SweepInterval >= directoryTTL {
		return fmt.Errorf("sweep interval must be shorter than %s", directoryTTL)
	}
	if cfg.MaxDuration < 0 {
		return fmt.Errorf("max duration must not be negative")
	}
	if _, err := domain.ParsePolicy(cfg.DefaultPolicy); err != nil {
		return fmt.Errorf("invalid default policy %q: %w", cfg.DefaultPolicy, err)
	}

	return nil
}

func (cfg *AppConfig) roomConfig() *room.Config {
	return &room.Config{
		MembersLimit:   cfg.MembersLimit,
		PlaylistLimit:  cfg.PlaylistLimit,
		ChatLimit:      cfg.ChatLimit,
		AdminGrace:     cfg.AdminGrace,
		EmptyRoomGrace: cfg.EmptyRoomGrace,
		SweepInterval:  cfg.SweepInterval,
		MaxDuration:    cfg.MaxDuration,
		DefaultPolicy:  domain.Policy(cfg.DefaultPolicy),
		ProCredentials: cfg.ProCredentials,
		Secret:         cfg.Secret,
	}
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(h), nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	var opts []room.Option
	if cfg.RedisEnabled {
		rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
			Port:     cfg.RedisPort,
			Host:     cfg.RedisHost,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return fmt.Errorf("failed to create redis client: %w", err)
		}
		defer rc.Close()

		opts = append(opts, room.WithDirectory(roomredis.NewRepo(rc, logger, directoryTTL)))
	}

	clock := clockwork.NewRealClock()
	roomService := room.NewService(
		roominmemory.NewRepo(logger),
		conninmemory.NewRepo(logger),
		clock,
		cfg.roomConfig(),
		logger,
		opts...,
	)
	controller := controller.NewController(roomService, clock, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: controller.GetMux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	go func() {
		if err := roomService.Run(serverCtx); err != nil {
			logger.InfoContext(serverCtx, "sweeper stopped", "error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(context.WithoutCancel(serverCtx), 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		// rooms first, so members are told why before their sockets close
		roomService.Shutdown(shutdownCtx)
		if err := controller.Shutdown(shutdownCtx); err != nil {
			logger.WarnContext(shutdownCtx, "websocket connections did not close in time", "error", err)
		}

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
