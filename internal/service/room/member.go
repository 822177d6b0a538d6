package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/repository/connection"
)

type DisconnectMemberParams struct {
	Conn connection.Conn
}

type DisconnectMemberResponse struct {
	RoomID   string
	MemberID string
	Promoted *domain.Member
}

// DisconnectMember removes the member bound to conn. Connections that never joined,
// or whose room is gone, are ignored with ErrNotInRoom.
func (s service) DisconnectMember(ctx context.Context, params *DisconnectMemberParams) (DisconnectMemberResponse, error) {
	session, err := s.connRepo.RemoveByConn(params.Conn)
	if err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			return DisconnectMemberResponse{}, ErrNotInRoom
		}

		return DisconnectMemberResponse{}, fmt.Errorf("failed to remove connection: %w", err)
	}

	r, err := s.lockRoom(session.RoomID)
	if err != nil {
		return DisconnectMemberResponse{}, err
	}

	member, err := r.Members.RemoveByID(session.MemberID)
	if err != nil {
		r.Unlock()
		return DisconnectMemberResponse{}, ErrNotInRoom
	}

	now := s.clock.Now()
	leftMsg := r.Chat.AppendSystem(fmt.Sprintf("%s left the room", member.Username), now)

	var (
		promoted    *domain.Member
		promotedMsg domain.ChatMessage
	)
	if member.IsAdmin() {
		promoted, promotedMsg = s.failover(ctx, r, now)
	}

	s.reconcileLifecycle(ctx, r)

	conns := s.getConns(r, "")
	membersState := s.getMembersState(r)
	s.broadcast(ctx, conns, Event{
		Type: EventUserLeft,
		Payload: MemberEventPayload{
			Member:       member,
			MembersState: membersState,
		},
	})
	s.broadcast(ctx, conns, Event{
		Type:    EventChatMessage,
		Payload: leftMsg,
	})

	if promoted != nil {
		s.broadcast(ctx, conns, Event{
			Type: EventUserListUpdate,
			Payload: UserListPayload{
				Promoted:     promoted,
				MembersState: membersState,
			},
		})
		s.broadcast(ctx, conns, Event{
			Type:    EventChatMessage,
			Payload: promotedMsg,
		})
	}

	summary := r.VersionedSummary()
	r.Unlock()

	s.publishSummary(ctx, r, summary)
	s.logger.InfoContext(ctx, "member left room", "room_id", r.ID, "member_id", member.ID, "remaining", summary.TotalUsers)

	return DisconnectMemberResponse{
		RoomID:   r.ID,
		MemberID: member.ID,
		Promoted: promoted,
	}, nil
}

// failover applies the promote policy after an admin left. It hands admin to the
// earliest remaining member when the admin set became empty. Must hold r's lock.
func (s service) failover(ctx context.Context, r *domain.Room, now time.Time) (*domain.Member, domain.ChatMessage) {
	if r.Policy != domain.PolicyPromote || r.Members.AdminCount() > 0 {
		return nil, domain.ChatMessage{}
	}

	successor, ok := r.Members.First()
	if !ok {
		return nil, domain.ChatMessage{}
	}

	promoted, err := r.Members.SetRole(successor.ID, domain.RoleAdmin)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to promote member", "member_id", successor.ID, "error", err)
		return nil, domain.ChatMessage{}
	}

	msg := r.Chat.AppendSystem(fmt.Sprintf("%s is now the admin", promoted.Username), now)
	s.logger.InfoContext(ctx, "member promoted to admin", "room_id", r.ID, "member_id", promoted.ID)

	// the token lets the new admin reclaim the role after a reconnect
	authToken, err := s.generateAuthToken(r, now)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to generate auth token", "error", err)
	} else if conn, err := s.connRepo.GetConn(promoted.ID); err == nil {
		s.send(ctx, conn, Event{
			Type: EventAuthToken,
			Payload: AuthTokenPayload{
				RoomID:    r.ID,
				AuthToken: authToken,
			},
		})
	}

	return &promoted, msg
}

type SendChatMessageParams struct {
	Conn connection.Conn
	Body string
}

func (s service) SendChatMessage(ctx context.Context, params *SendChatMessageParams) (domain.ChatMessage, error) {
	r, sender, err := s.lockSenderRoom(params.Conn)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("failed to send chat message: %w", err)
	}
	defer r.Unlock()

	msg := r.Chat.AppendUser(sender.Username, params.Body, s.clock.Now())
	s.broadcast(ctx, s.getConns(r, ""), Event{
		Type:    EventChatMessage,
		Payload: msg,
	})

	return msg, nil
}

type UpdateCredentialParams struct {
	Conn       connection.Conn
	Credential string
}

// UpdateCredential replaces the shared credential and recomputes pro mode.
// Pro rooms have no members limit and are not held to the max duration. The cap is
// reapplied to the duration asked for at creation, so a room may expire right away.
func (s service) UpdateCredential(ctx context.Context, params *UpdateCredentialParams) (CredentialPayload, error) {
	r, sender, err := s.lockAdminRoom(params.Conn)
	if err != nil {
		return CredentialPayload{}, fmt.Errorf("failed to update credential: %w", err)
	}

	now := s.clock.Now()
	proMode := s.isProCredential(params.Credential)
	r.SetCredential(params.Credential, proMode)
	membersLimit := s.resolveMembersLimit(proMode)
	r.Members.SetLimit(membersLimit)

	// rooms created on first join never carry a duration
	if r.Name != "" {
		if d := s.resolveDuration(r.RequestedDuration, proMode); d != r.Duration {
			r.SetDuration(d)
			r.StopTimer(domain.TimerExpiry)
			s.scheduleExpiry(r, now)
			s.logger.InfoContext(ctx, "room duration changed", "room_id", r.ID, "duration", d)
		}
	}

	payload := CredentialPayload{
		Actor:        actorOf(sender),
		ProMode:      proMode,
		MembersLimit: membersLimit,
		Unbounded:    !r.IsBounded(),
		ExpiresAt:    r.ExpiresAtUnix(),
	}
	s.broadcast(ctx, s.getConns(r, ""), Event{
		Type:    EventCredentialUpdated,
		Payload: payload,
	})

	summary := r.VersionedSummary()
	r.Unlock()

	s.publishSummary(ctx, r, summary)
	s.logger.InfoContext(ctx, "room credential updated", "room_id", r.ID, "pro_mode", proMode)

	return payload, nil
}

type RequestTimeParams struct {
	Conn connection.Conn
}

func (s service) RequestTime(ctx context.Context, params *RequestTimeParams) (TimePayload, error) {
	r, _, err := s.lockSenderRoom(params.Conn)
	if err != nil {
		return TimePayload{}, fmt.Errorf("failed to get remaining time: %w", err)
	}
	defer r.Unlock()

	now := s.clock.Now()
	payload := TimePayload{
		Unbounded:  !r.IsBounded(),
		ServerTime: now.UnixMilli(),
	}
	if r.IsBounded() {
		remaining := r.Remaining(now).Seconds()
		payload.ExpiresAt = r.ExpiresAtUnix()
		payload.RemainingSeconds = &remaining
	}

	s.send(ctx, params.Conn, Event{
		Type:    EventTimeUpdate,
		Payload: payload,
	})

	return payload, nil
}
