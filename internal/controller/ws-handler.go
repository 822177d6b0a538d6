package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/service/room"
)

type EmptyStruct struct{}

type PongPayload struct {
	ServerTime int64 `json:"server_time"`
}

func (c controller) handlePing(ctx context.Context, _ *websocket.Conn, _ EmptyStruct) error {
	c.writeToClient(ctx, c.getClientFromCtx(ctx), &Output{
		Type:    "pong",
		Payload: PongPayload{ServerTime: c.clock.Now().UnixMilli()},
	})

	return nil
}

type CreateRoomInput struct {
	Username        string `json:"username" validate:"required,max=32"`
	RoomName        string `json:"room_name" validate:"required,max=64"`
	JoiningID       string `json:"joining_id" validate:"omitempty,alphanum,max=32"`
	AdminPassword   string `json:"admin_password" validate:"max=128"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0,lte=43200"`
	ProCredential   string `json:"pro_credential" validate:"max=256"`
	InitialVideoID  string `json:"initial_video_id" validate:"max=64"`
	FailoverPolicy  string `json:"failover_policy" validate:"omitempty,oneof=promote grace"`
}

func (c controller) handleCreateRoom(ctx context.Context, _ *websocket.Conn, input CreateRoomInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	var policy domain.Policy
	if input.FailoverPolicy != "" {
		p, err := domain.ParsePolicy(input.FailoverPolicy)
		if err != nil {
			return err
		}
		policy = p
	}

	if _, err := c.roomService.CreateRoom(ctx, &room.CreateRoomParams{
		Conn:           c.getClientFromCtx(ctx),
		Username:       input.Username,
		RoomName:       input.RoomName,
		JoiningID:      input.JoiningID,
		AdminPassword:  input.AdminPassword,
		Duration:       time.Duration(input.DurationMinutes) * time.Minute,
		ProCredential:  input.ProCredential,
		InitialVideoID: input.InitialVideoID,
		Policy:         policy,
	}); err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	return nil
}

// JoinRoomInput joins by room name and joining id, or by room id. A room id that is not
// in use creates a new room.
type JoinRoomInput struct {
	Username  string `json:"username" validate:"required,max=32"`
	RoomID    string `json:"room_id" validate:"required_without=RoomName,max=64"`
	RoomName  string `json:"room_name" validate:"max=64"`
	JoiningID string `json:"joining_id" validate:"required_with=RoomName,max=32"`
	Password  string `json:"password" validate:"max=128"`
	AuthToken string `json:"auth_token" validate:"max=1024"`
}

func (c controller) handleJoinRoom(ctx context.Context, _ *websocket.Conn, input JoinRoomInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	cl := c.getClientFromCtx(ctx)

	if input.RoomName != "" {
		if _, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
			Conn:      cl,
			Username:  input.Username,
			RoomName:  input.RoomName,
			JoiningID: input.JoiningID,
			Password:  input.Password,
			AuthToken: input.AuthToken,
		}); err != nil {
			return fmt.Errorf("failed to join room: %w", err)
		}

		return nil
	}

	if _, err := c.roomService.JoinOrCreateRoom(ctx, &room.JoinOrCreateRoomParams{
		Conn:     cl,
		RoomID:   input.RoomID,
		Username: input.Username,
	}); err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}

	return nil
}

func (c controller) handleDisconnect(ctx context.Context, _ *websocket.Conn, _ EmptyStruct) error {
	if _, err := c.roomService.DisconnectMember(ctx, &room.DisconnectMemberParams{
		Conn: c.getClientFromCtx(ctx),
	}); err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	return nil
}

type ChatMessageInput struct {
	Message string `json:"message" validate:"required,max=1000"`
}

func (c controller) handleChatMessage(ctx context.Context, _ *websocket.Conn, input ChatMessageInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	if _, err := c.roomService.SendChatMessage(ctx, &room.SendChatMessageParams{
		Conn: c.getClientFromCtx(ctx),
		Body: input.Message,
	}); err != nil {
		return fmt.Errorf("failed to send chat message: %w", err)
	}

	return nil
}

type UpdatePlayerStateInput struct {
	CurrentTime *float64 `json:"current_time" validate:"omitempty,gte=0"`
}

func (c controller) handlePlay(ctx context.Context, _ *websocket.Conn, input UpdatePlayerStateInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	if _, err := c.roomService.Play(ctx, &room.UpdatePlayerStateParams{
		Conn:        c.getClientFromCtx(ctx),
		CurrentTime: input.CurrentTime,
	}); err != nil {
		return fmt.Errorf("failed to play: %w", err)
	}

	return nil
}

func (c controller) handlePause(ctx context.Context, _ *websocket.Conn, input UpdatePlayerStateInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	if _, err := c.roomService.Pause(ctx, &room.UpdatePlayerStateParams{
		Conn:        c.getClientFromCtx(ctx),
		CurrentTime: input.CurrentTime,
	}); err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}

	return nil
}

type SeekInput struct {
	CurrentTime *float64 `json:"current_time" validate:"required,gte=0"`
}

func (c controller) handleSeek(ctx context.Context, _ *websocket.Conn, input SeekInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	if _, err := c.roomService.Seek(ctx, &room.SeekParams{
		Conn:        c.getClientFromCtx(ctx),
		CurrentTime: *input.CurrentTime,
	}); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	return nil
}

type VideoChangeInput struct {
	VideoID string `json:"video_id" validate:"required,max=64"`
}

func (c controller) handleVideoChange(ctx context.Context, _ *websocket.Conn, input VideoChangeInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	if _, err := c.roomService.ChangeVideo(ctx, &room.ChangeVideoParams{
		Conn:    c.getClientFromCtx(ctx),
		VideoID: input.VideoID,
	}); err != nil {
		return fmt.Errorf("failed to change video: %w", err)
	}

	return nil
}

type LoadPlaylistInput struct {
	VideoIDs []string `json:"video_ids" validate:"required,min=1,dive,required,max=64"`
}

func (c controller) handleLoadPlaylist(ctx context.Context, _ *websocket.Conn, input LoadPlaylistInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	if _, err := c.roomService.LoadPlaylist(ctx, &room.LoadPlaylistParams{
		Conn:     c.getClientFromCtx(ctx),
		VideoIDs: input.VideoIDs,
	}); err != nil {
		return fmt.Errorf("failed to load playlist: %w", err)
	}

	return nil
}

func (c controller) handleNextVideo(ctx context.Context, _ *websocket.Conn, _ EmptyStruct) error {
	if _, err := c.roomService.NextVideo(ctx, &room.SkipVideoParams{
		Conn: c.getClientFromCtx(ctx),
	}); err != nil {
		return fmt.Errorf("failed to skip to next video: %w", err)
	}

	return nil
}

func (c controller) handlePreviousVideo(ctx context.Context, _ *websocket.Conn, _ EmptyStruct) error {
	if _, err := c.roomService.PreviousVideo(ctx, &room.SkipVideoParams{
		Conn: c.getClientFromCtx(ctx),
	}); err != nil {
		return fmt.Errorf("failed to skip to previous video: %w", err)
	}

	return nil
}

type UpdateCredentialInput struct {
	Credential string `json:"credential" validate:"max=256"`
}

func (c controller) handleUpdateCredential(ctx context.Context, _ *websocket.Conn, input UpdateCredentialInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	if _, err := c.roomService.UpdateCredential(ctx, &room.UpdateCredentialParams{
		Conn:       c.getClientFromCtx(ctx),
		Credential: input.Credential,
	}); err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}

	return nil
}

func (c controller) handleRequestSync(ctx context.Context, _ *websocket.Conn, _ EmptyStruct) error {
	if _, err := c.roomService.RequestSync(ctx, &room.RequestSyncParams{
		Conn: c.getClientFromCtx(ctx),
	}); err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}

	return nil
}

func (c controller) handleRequestTime(ctx context.Context, _ *websocket.Conn, _ EmptyStruct) error {
	if _, err := c.roomService.RequestTime(ctx, &room.RequestTimeParams{
		Conn: c.getClientFromCtx(ctx),
	}); err != nil {
		return fmt.Errorf("failed to get remaining time: %w", err)
	}

	return nil
}
