package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/repository/connection"
	"github.com/sharetube/watchroom/internal/repository/room"
)

func (s service) send(ctx context.Context, conn connection.Conn, event Event) {
	if err := conn.Send(event); err != nil {
		s.logger.WarnContext(ctx, "failed to send event", "type", event.Type, "error", err)
	}
}

func (s service) broadcast(ctx context.Context, conns []connection.Conn, event Event) {
	for _, conn := range conns {
		s.send(ctx, conn, event)
	}
}

// getConns returns the live connections of r's members, optionally leaving one member out.
func (s service) getConns(r *domain.Room, exceptMemberID string) []connection.Conn {
	ids := r.Members.IDs()
	if exceptMemberID != "" {
		filtered := ids[:0]
		for _, id := range ids {
			if id != exceptMemberID {
				filtered = append(filtered, id)
			}
		}
		ids = filtered
	}

	return s.connRepo.GetConns(ids)
}

func (s service) getSession(conn connection.Conn) (connection.Session, error) {
	session, err := s.connRepo.GetSession(conn)
	if err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			return connection.Session{}, ErrNotInRoom
		}

		return connection.Session{}, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// lockRoom returns the live room locked. The caller must unlock it.
func (s service) lockRoom(roomID string) (*domain.Room, error) {
	r, err := s.roomRepo.Get(roomID)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}

		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	r.Lock()
	if r.IsDestroyed() {
		r.Unlock()
		return nil, ErrRoomNotFound
	}

	return r, nil
}

// lockSenderRoom resolves the session of conn and locks its room.
func (s service) lockSenderRoom(conn connection.Conn) (*domain.Room, domain.Member, error) {
	session, err := s.getSession(conn)
	if err != nil {
		return nil, domain.Member{}, err
	}

	r, err := s.lockRoom(session.RoomID)
	if err != nil {
		return nil, domain.Member{}, err
	}

	member, _, err := r.Members.GetByID(session.MemberID)
	if err != nil {
		r.Unlock()
		return nil, domain.Member{}, ErrNotInRoom
	}

	return r, member, nil
}

// lockAdminRoom is lockSenderRoom for operations that only admins may perform.
func (s service) lockAdminRoom(conn connection.Conn) (*domain.Room, domain.Member, error) {
	r, member, err := s.lockSenderRoom(conn)
	if err != nil {
		return nil, domain.Member{}, err
	}

	if err := s.checkIfMemberAdmin(r, member); err != nil {
		r.Unlock()
		return nil, domain.Member{}, err
	}

	return r, member, nil
}

func (s service) checkIfMemberAdmin(r *domain.Room, member domain.Member) error {
	if !r.Members.IsAdmin(member.ID) {
		return ErrPermissionDenied
	}

	return nil
}

func (s service) getMembersState(r *domain.Room) MembersState {
	return MembersState{
		Members:     r.Members.AsList(),
		TotalUsers:  r.Members.Length(),
		AdminCount:  r.Members.AdminCount(),
		ViewerCount: r.Members.ViewerCount(),
	}
}

func (s service) getPlaylistState(r *domain.Room) *PlaylistState {
	if r.Playlist.Length() == 0 {
		return nil
	}

	return &PlaylistState{
		Videos:       r.Playlist.AsList(),
		CurrentIndex: r.Playlist.CurrentIndex(),
	}
}

func actorOf(member domain.Member) Actor {
	return Actor{
		ID:       member.ID,
		Username: member.Username,
	}
}

func (s service) buildSnapshot(r *domain.Room, self domain.Member, authToken string, now time.Time) Snapshot {
	var name, joiningID, token *string
	if r.Name != "" {
		name = &r.Name
		joiningID = &r.JoiningID
	}
	if authToken != "" {
		token = &authToken
	}

	var remaining *float64
	if r.IsBounded() {
		seconds := r.Remaining(now).Seconds()
		remaining = &seconds
	}

	members := s.getMembersState(r)

	return newSnapshot(map[string]any{
		"room_id":           r.ID,
		"room_name":         name,
		"joining_id":        joiningID,
		"failover_policy":   r.Policy,
		"member_id":         self.ID,
		"username":          self.Username,
		"role":              self.Role,
		"is_admin":          self.IsAdmin(),
		"auth_token":        token,
		"player":            r.Player.Snapshot(now),
		"members":           members.Members,
		"total_users":       members.TotalUsers,
		"admin_count":       members.AdminCount,
		"viewer_count":      members.ViewerCount,
		"playlist":          s.getPlaylistState(r),
		"expires_at":        r.ExpiresAtUnix(),
		"remaining_seconds": remaining,
		"pro_mode":          r.ProMode,
		"created_at":        r.CreatedAt.UnixMilli(),
	})
}

// publishSummary writes a versioned summary captured under the room lock. It runs
// unlocked, so the directory drops it when a newer version already landed. The summary
// is taken back out if the room was destroyed in the meantime.
func (s service) publishSummary(ctx context.Context, r *domain.Room, summary domain.RoomSummary) {
	if s.directory == nil {
		return
	}

	var expireAt time.Time
	if summary.ExpiresAt != nil {
		expireAt = time.UnixMilli(*summary.ExpiresAt)
	}

	err := s.directory.SetSummary(ctx, &room.SetSummaryParams{
		Summary:  summary,
		ExpireAt: expireAt,
	})
	switch {
	case errors.Is(err, room.ErrStaleSummary):
		s.logger.DebugContext(ctx, "newer room summary already published", "room_id", r.ID, "version", summary.Version)
	case err != nil:
		s.logger.WarnContext(ctx, "failed to publish room summary", "error", err)
		return
	}

	r.Lock()
	destroyed := r.IsDestroyed()
	r.Unlock()

	if destroyed {
		s.unpublishSummary(ctx, r.ID)
	}
}

func (s service) unpublishSummary(ctx context.Context, roomID string) {
	if s.directory == nil {
		return
	}

	if err := s.directory.RemoveSummary(ctx, &room.RemoveSummaryParams{
		RoomID: roomID,
	}); err != nil && !errors.Is(err, room.ErrSummaryNotFound) {
		s.logger.WarnContext(ctx, "failed to remove room summary", "error", err)
	}
}
