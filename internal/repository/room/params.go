package room

import (
	"time"

	"github.com/sharetube/watchroom/internal/domain"
)

type SetSummaryParams struct {
	Summary  domain.RoomSummary
	ExpireAt time.Time
}

type RemoveSummaryParams struct {
	RoomID string
}
