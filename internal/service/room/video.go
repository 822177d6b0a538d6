package room

import (
	"context"
	"fmt"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/repository/connection"
)

type LoadPlaylistParams struct {
	Conn     connection.Conn
	VideoIDs []string
}

type PlaylistResponse struct {
	Player   domain.PlayerSnapshot
	Playlist PlaylistState
}

// LoadPlaylist replaces the playlist and cues its first video.
func (s service) LoadPlaylist(ctx context.Context, params *LoadPlaylistParams) (PlaylistResponse, error) {
	r, sender, err := s.lockAdminRoom(params.Conn)
	if err != nil {
		return PlaylistResponse{}, fmt.Errorf("failed to load playlist: %w", err)
	}

	if err := r.Playlist.Load(params.VideoIDs); err != nil {
		r.Unlock()
		return PlaylistResponse{}, fmt.Errorf("failed to load playlist: %w", err)
	}

	first, _ := r.Playlist.Current()
	r.Player.SetVideo(first, s.clock.Now())
	player := s.broadcastPlayback(ctx, r, sender, EventPlaylistLoaded, true)
	playlist := s.getPlaylistState(r)

	summary := r.VersionedSummary()
	r.Unlock()

	s.publishSummary(ctx, r, summary)

	return PlaylistResponse{
		Player:   player,
		Playlist: *playlist,
	}, nil
}

type SkipVideoParams struct {
	Conn connection.Conn
}

func (s service) NextVideo(ctx context.Context, params *SkipVideoParams) (PlaylistResponse, error) {
	return s.skipVideo(ctx, params, (*domain.Playlist).Next)
}

func (s service) PreviousVideo(ctx context.Context, params *SkipVideoParams) (PlaylistResponse, error) {
	return s.skipVideo(ctx, params, (*domain.Playlist).Previous)
}

func (s service) skipVideo(ctx context.Context, params *SkipVideoParams, step func(*domain.Playlist) (string, error)) (PlaylistResponse, error) {
	r, sender, err := s.lockAdminRoom(params.Conn)
	if err != nil {
		return PlaylistResponse{}, fmt.Errorf("failed to skip video: %w", err)
	}

	videoID, err := step(r.Playlist)
	if err != nil {
		r.Unlock()
		return PlaylistResponse{}, fmt.Errorf("failed to skip video: %w", err)
	}

	r.Player.SetVideo(videoID, s.clock.Now())
	player := s.broadcastPlayback(ctx, r, sender, EventVideoChange, true)
	playlist := s.getPlaylistState(r)

	summary := r.VersionedSummary()
	r.Unlock()

	s.publishSummary(ctx, r, summary)

	return PlaylistResponse{
		Player:   player,
		Playlist: *playlist,
	}, nil
}
