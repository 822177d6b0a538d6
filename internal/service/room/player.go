package room

import (
	"context"
	"fmt"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/repository/connection"
)

type UpdatePlayerStateParams struct {
	Conn connection.Conn
	// CurrentTime is optional for play and pause. Without it the reconciled position is kept.
	CurrentTime *float64
}

type UpdatePlayerStateResponse struct {
	Player domain.PlayerSnapshot
}

func (s service) Play(ctx context.Context, params *UpdatePlayerStateParams) (UpdatePlayerStateResponse, error) {
	return s.updatePlayerState(ctx, params, true, EventPlay)
}

func (s service) Pause(ctx context.Context, params *UpdatePlayerStateParams) (UpdatePlayerStateResponse, error) {
	return s.updatePlayerState(ctx, params, false, EventPause)
}

func (s service) updatePlayerState(ctx context.Context, params *UpdatePlayerStateParams, isPlaying bool, eventType string) (UpdatePlayerStateResponse, error) {
	r, sender, err := s.lockAdminRoom(params.Conn)
	if err != nil {
		return UpdatePlayerStateResponse{}, fmt.Errorf("failed to %s: %w", eventType, err)
	}

	now := s.clock.Now()
	position := r.Player.Observe(now)
	if params.CurrentTime != nil {
		position = *params.CurrentTime
	}

	r.Player.SetState(isPlaying, position, now)
	player := s.broadcastPlayback(ctx, r, sender, eventType, false)

	summary := r.VersionedSummary()
	r.Unlock()

	s.publishSummary(ctx, r, summary)

	return UpdatePlayerStateResponse{
		Player: player,
	}, nil
}

type SeekParams struct {
	Conn        connection.Conn
	CurrentTime float64
}

// Seek moves the position and keeps the playing flag.
func (s service) Seek(ctx context.Context, params *SeekParams) (UpdatePlayerStateResponse, error) {
	r, sender, err := s.lockAdminRoom(params.Conn)
	if err != nil {
		return UpdatePlayerStateResponse{}, fmt.Errorf("failed to seek: %w", err)
	}
	defer r.Unlock()

	now := s.clock.Now()
	r.Player.SetState(r.Player.IsPlaying, params.CurrentTime, now)

	return UpdatePlayerStateResponse{
		Player: s.broadcastPlayback(ctx, r, sender, EventSeek, false),
	}, nil
}

type ChangeVideoParams struct {
	Conn    connection.Conn
	VideoID string
}

func (s service) ChangeVideo(ctx context.Context, params *ChangeVideoParams) (UpdatePlayerStateResponse, error) {
	r, sender, err := s.lockAdminRoom(params.Conn)
	if err != nil {
		return UpdatePlayerStateResponse{}, fmt.Errorf("failed to change video: %w", err)
	}

	r.Player.SetVideo(params.VideoID, s.clock.Now())
	player := s.broadcastPlayback(ctx, r, sender, EventVideoChange, true)

	summary := r.VersionedSummary()
	r.Unlock()

	s.publishSummary(ctx, r, summary)

	return UpdatePlayerStateResponse{
		Player: player,
	}, nil
}

// broadcastPlayback sends the reconciled player to every member, tagged with the actor.
// Must hold r's lock.
func (s service) broadcastPlayback(ctx context.Context, r *domain.Room, actor domain.Member, eventType string, withPlaylist bool) domain.PlayerSnapshot {
	player := r.Player.Snapshot(s.clock.Now())

	payload := PlaybackPayload{
		Actor:  actorOf(actor),
		Player: player,
	}
	if withPlaylist {
		payload.Playlist = s.getPlaylistState(r)
	}

	s.broadcast(ctx, s.getConns(r, ""), Event{
		Type:    eventType,
		Payload: payload,
	})

	s.logger.DebugContext(ctx, "playback updated",
		"room_id", r.ID,
		"event", eventType,
		"video_id", player.VideoID,
		"is_playing", player.IsPlaying,
		"current_time", player.CurrentTime,
	)

	return player
}

type RequestSyncParams struct {
	Conn connection.Conn
}

// RequestSync answers the requester only. Any member may ask.
func (s service) RequestSync(ctx context.Context, params *RequestSyncParams) (SyncStatePayload, error) {
	r, _, err := s.lockSenderRoom(params.Conn)
	if err != nil {
		return SyncStatePayload{}, fmt.Errorf("failed to sync: %w", err)
	}
	defer r.Unlock()

	state := SyncStatePayload{
		Player:   r.Player.Snapshot(s.clock.Now()),
		Playlist: s.getPlaylistState(r),
	}

	s.send(ctx, params.Conn, Event{
		Type:    EventSyncState,
		Payload: state,
	})

	return state, nil
}
