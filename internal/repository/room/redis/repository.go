package redis

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// repo mirrors room summaries into redis so several instances can serve one room list.
// It only ever holds data for rooms that are alive in some process.
type repo struct {
	rc              *redis.Client
	logger          *slog.Logger
	unboundedExpire time.Duration
}

func NewRepo(rc *redis.Client, logger *slog.Logger, unboundedExpire time.Duration) *repo {
	return &repo{
		rc:              rc,
		logger:          logger,
		unboundedExpire: unboundedExpire,
	}
}
