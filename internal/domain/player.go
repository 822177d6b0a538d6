package domain

import "time"

// Player holds the last authoritative playback write. Position is never ticked on the
// server; readers project it forward from UpdatedAt while playing.
type Player struct {
	VideoID   string
	IsPlaying bool
	Position  float64
	UpdatedAt time.Time
}

type PlayerSnapshot struct {
	VideoID     string  `json:"video_id"`
	IsPlaying   bool    `json:"is_playing"`
	CurrentTime float64 `json:"current_time"`
	UpdatedAt   int64   `json:"updated_at"`
}

func NewPlayer(initialVideoID string, now time.Time) *Player {
	return &Player{
		VideoID:   initialVideoID,
		IsPlaying: false,
		Position:  0,
		UpdatedAt: now,
	}
}

func (p *Player) SetState(isPlaying bool, position float64, now time.Time) {
	if position < 0 {
		position = 0
	}

	p.IsPlaying = isPlaying
	p.Position = position
	p.UpdatedAt = now
}

// SetVideo switches media and rewinds to a paused start.
func (p *Player) SetVideo(videoID string, now time.Time) {
	p.VideoID = videoID
	p.SetState(false, 0, now)
}

func (p Player) Observe(now time.Time) float64 {
	if !p.IsPlaying {
		return p.Position
	}

	elapsed := now.Sub(p.UpdatedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	return p.Position + elapsed
}

func (p Player) Snapshot(now time.Time) PlayerSnapshot {
	return PlayerSnapshot{
		VideoID:     p.VideoID,
		IsPlaying:   p.IsPlaying,
		CurrentTime: p.Observe(now),
		UpdatedAt:   now.UnixMilli(),
	}
}
