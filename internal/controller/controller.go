package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/service/room"
	"github.com/sharetube/watchroom/pkg/validator"
	"github.com/sharetube/watchroom/pkg/wsrouter"
)

type iRoomService interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	JoinOrCreateRoom(context.Context, *room.JoinOrCreateRoomParams) (room.JoinRoomResponse, error)
	DisconnectMember(context.Context, *room.DisconnectMemberParams) (room.DisconnectMemberResponse, error)
	SendChatMessage(context.Context, *room.SendChatMessageParams) (domain.ChatMessage, error)
	Play(context.Context, *room.UpdatePlayerStateParams) (room.UpdatePlayerStateResponse, error)
	Pause(context.Context, *room.UpdatePlayerStateParams) (room.UpdatePlayerStateResponse, error)
	Seek(context.Context, *room.SeekParams) (room.UpdatePlayerStateResponse, error)
	ChangeVideo(context.Context, *room.ChangeVideoParams) (room.UpdatePlayerStateResponse, error)
	LoadPlaylist(context.Context, *room.LoadPlaylistParams) (room.PlaylistResponse, error)
	NextVideo(context.Context, *room.SkipVideoParams) (room.PlaylistResponse, error)
	PreviousVideo(context.Context, *room.SkipVideoParams) (room.PlaylistResponse, error)
	UpdateCredential(context.Context, *room.UpdateCredentialParams) (room.CredentialPayload, error)
	RequestSync(context.Context, *room.RequestSyncParams) (room.SyncStatePayload, error)
	RequestTime(context.Context, *room.RequestTimeParams) (room.TimePayload, error)
	ListRooms(context.Context) ([]domain.RoomSummary, error)
	Health(context.Context) room.Health
}

type controller struct {
	roomService iRoomService
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	clock       clockwork.Clock
	logger      *slog.Logger
	wsmux       *wsrouter.WSRouter
	clients     *clientSet
}

func NewController(roomService iRoomService, clock clockwork.Clock, logger *slog.Logger) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		validate:    validator.NewValidator(),
		clock:       clock,
		logger:      logger,
		clients:     newClientSet(),
	}
	c.wsmux = c.getWSRouter()

	return c
}
