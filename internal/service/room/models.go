package room

import (
	"reflect"

	"github.com/sharetube/watchroom/internal/domain"
)

const (
	EventRoomCreated       = "room-created"
	EventRoomJoined        = "room-joined"
	EventChatHistory       = "chat-history"
	EventChatMessage       = "chat-message"
	EventUserJoined        = "user-joined"
	EventUserLeft          = "user-left"
	EventUserListUpdate    = "user-list-update"
	EventPlay              = "play"
	EventPause             = "pause"
	EventSeek              = "seek"
	EventVideoChange       = "video-change"
	EventPlaylistLoaded    = "playlist-loaded"
	EventCredentialUpdated = "credential-updated"
	EventSyncState         = "sync-state"
	EventTimeUpdate        = "time-update"
	EventRoomDestroyed     = "room-destroyed"
	EventAuthToken         = "auth-token"
)

// Event is the envelope of every server to client message.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Snapshot is the full room state handed to a member on create or join.
// Optional keys are left out instead of being null.
type Snapshot map[string]any

// newSnapshot drops nil fields. Set pointers are stored by value.
func newSnapshot(fields map[string]any) Snapshot {
	snapshot := make(Snapshot, len(fields))
	for key, value := range fields {
		if value == nil {
			continue
		}

		if v := reflect.ValueOf(value); v.Kind() == reflect.Pointer {
			if v.IsNil() {
				continue
			}
			value = v.Elem().Interface()
		}

		snapshot[key] = value
	}

	return snapshot
}

type Actor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type PlaylistState struct {
	Videos       []string `json:"videos"`
	CurrentIndex int      `json:"current_index"`
}

type MembersState struct {
	Members     []domain.Member `json:"members"`
	TotalUsers  int             `json:"total_users"`
	AdminCount  int             `json:"admin_count"`
	ViewerCount int             `json:"viewer_count"`
}

type MemberEventPayload struct {
	Member domain.Member `json:"member"`
	MembersState
}

type UserListPayload struct {
	// Promoted is set when the list changed because of admin succession.
	Promoted *domain.Member `json:"promoted,omitempty"`
	MembersState
}

type PlaybackPayload struct {
	Actor    Actor                 `json:"actor"`
	Player   domain.PlayerSnapshot `json:"player"`
	Playlist *PlaylistState        `json:"playlist,omitempty"`
}

type ChatHistoryPayload struct {
	Messages []domain.ChatMessage `json:"messages"`
}

type CredentialPayload struct {
	Actor        Actor  `json:"actor"`
	ProMode      bool   `json:"pro_mode"`
	MembersLimit int    `json:"members_limit"`
	Unbounded    bool   `json:"unbounded"`
	ExpiresAt    *int64 `json:"expires_at,omitempty"`
}

// AuthTokenPayload is sent privately to a member promoted to admin.
type AuthTokenPayload struct {
	RoomID    string `json:"room_id"`
	AuthToken string `json:"auth_token"`
}

type SyncStatePayload struct {
	Player   domain.PlayerSnapshot `json:"player"`
	Playlist *PlaylistState        `json:"playlist,omitempty"`
}

type TimePayload struct {
	Unbounded        bool     `json:"unbounded"`
	ExpiresAt        *int64   `json:"expires_at,omitempty"`
	RemainingSeconds *float64 `json:"remaining_seconds,omitempty"`
	ServerTime       int64    `json:"server_time"`
}

type RoomDestroyedPayload struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type Health struct {
	Status      string `json:"status"`
	ActiveRooms int    `json:"active_rooms"`
	Timestamp   int64  `json:"timestamp"`
}
