package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/repository/room"
)

const (
	roomListKey = "rooms"
	// maxTxRetries bounds optimistic retries when another writer touches the same summary.
	maxTxRetries = 100
)

type summary struct {
	ID          string `redis:"id"`
	Name        string `redis:"name"`
	TotalUsers  int    `redis:"total_users"`
	AdminCount  int    `redis:"admin_count"`
	ViewerCount int    `redis:"viewer_count"`
	VideoID     string `redis:"video_id"`
	IsPlaying   bool   `redis:"is_playing"`
	ProMode     bool   `redis:"pro_mode"`
	CreatedAt   int64  `redis:"created_at"`
	ExpiresAt   int64  `redis:"expires_at"`
	Version     int64  `redis:"version"`
}

func (r repo) getSummaryKey(roomID string) string {
	return "room:" + roomID + ":summary"
}

// SetSummary stores the summary unless the stored one has the same or a newer version.
// The version check and the write run in one WATCH transaction.
func (r repo) SetSummary(ctx context.Context, params *room.SetSummaryParams) error {
	r.logger.DebugContext(ctx, "called", "room_id", params.Summary.ID, "version", params.Summary.Version)
	s := params.Summary
	key := r.getSummaryKey(s.ID)

	txf := func(tx *redis.Tx) error {
		stored, err := tx.HGet(ctx, key, "version").Int64()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		case stored >= s.Version:
			return room.ErrStaleSummary
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			r.hSetStruct(ctx, pipe, key, summary{
				ID:          s.ID,
				Name:        s.Name,
				TotalUsers:  s.TotalUsers,
				AdminCount:  s.AdminCount,
				ViewerCount: s.ViewerCount,
				VideoID:     s.VideoID,
				IsPlaying:   s.IsPlaying,
				ProMode:     s.ProMode,
				CreatedAt:   s.CreatedAt,
				ExpiresAt:   derefOrZero(s.ExpiresAt),
				Version:     s.Version,
			})
			if params.ExpireAt.IsZero() {
				pipe.Expire(ctx, key, r.unboundedExpire)
			} else {
				pipe.ExpireAt(ctx, key, params.ExpireAt)
			}
			pipe.ZAdd(ctx, roomListKey, redis.Z{Score: float64(s.CreatedAt), Member: s.ID})
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.rc.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, room.ErrStaleSummary) {
			return err
		}
		if err != nil {
			return fmt.Errorf("failed to set room summary: %w", err)
		}

		return nil
	}

	return fmt.Errorf("failed to set room summary: %w", redis.TxFailedErr)
}

func (r repo) RemoveSummary(ctx context.Context, params *room.RemoveSummaryParams) error {
	r.logger.DebugContext(ctx, "called", "room_id", params.RoomID)
	pipe := r.rc.TxPipeline()
	del := pipe.Del(ctx, r.getSummaryKey(params.RoomID))
	pipe.ZRem(ctx, roomListKey, params.RoomID)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to remove room summary: %w", err)
	}

	if del.Val() == 0 {
		return room.ErrSummaryNotFound
	}

	return nil
}

func (r repo) getSummary(ctx context.Context, roomID string) (domain.RoomSummary, error) {
	res := r.rc.HGetAll(ctx, r.getSummaryKey(roomID))
	if err := res.Err(); err != nil {
		return domain.RoomSummary{}, err
	}

	if len(res.Val()) == 0 {
		return domain.RoomSummary{}, room.ErrSummaryNotFound
	}

	var s summary
	if err := res.Scan(&s); err != nil {
		return domain.RoomSummary{}, err
	}

	return domain.RoomSummary{
		ID:          s.ID,
		Name:        s.Name,
		TotalUsers:  s.TotalUsers,
		AdminCount:  s.AdminCount,
		ViewerCount: s.ViewerCount,
		VideoID:     s.VideoID,
		IsPlaying:   s.IsPlaying,
		ProMode:     s.ProMode,
		CreatedAt:   s.CreatedAt,
		ExpiresAt:   zeroToNil(s.ExpiresAt),
		Version:     s.Version,
	}, nil
}

// ListSummaries returns summaries ordered by creation time and prunes ids whose hash expired.
func (r repo) ListSummaries(ctx context.Context) ([]domain.RoomSummary, error) {
	ids, err := r.rc.ZRange(ctx, roomListKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get room ids: %w", err)
	}

	summaries := make([]domain.RoomSummary, 0, len(ids))
	for _, id := range ids {
		s, err := r.getSummary(ctx, id)
		if err != nil {
			if errors.Is(err, room.ErrSummaryNotFound) {
				r.rc.ZRem(ctx, roomListKey, id)
				continue
			}

			return nil, fmt.Errorf("failed to get room summary: %w", err)
		}

		summaries = append(summaries, s)
	}

	return summaries, nil
}

// expires_at is stored as 0 for rooms without a duration.
func derefOrZero(v *int64) int64 {
	if v == nil {
		return 0
	}

	return *v
}

func zeroToNil(v int64) *int64 {
	if v == 0 {
		return nil
	}

	return &v
}
