package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/repository/connection"
	"github.com/sharetube/watchroom/internal/repository/room"
	"github.com/sharetube/watchroom/pkg/metrics"
)

const joiningIDLength = 8

func (s service) generateJoiningID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:joiningIDLength]
}

// resolveDuration applies max duration to rooms without pro mode. Zero means unbounded.
func (s service) resolveDuration(requested time.Duration, proMode bool) time.Duration {
	if requested < 0 {
		requested = 0
	}

	if proMode || s.maxDuration <= 0 {
		return requested
	}

	if requested == 0 || requested > s.maxDuration {
		return s.maxDuration
	}

	return requested
}

func (s service) resolveMembersLimit(proMode bool) int {
	if proMode {
		return 0
	}

	return s.membersLimit
}

func (s service) checkNotInRoom(conn connection.Conn) error {
	if _, err := s.connRepo.GetSession(conn); err == nil {
		return ErrAlreadyInRoom
	}

	return nil
}

type CreateRoomParams struct {
	Conn           connection.Conn
	Username       string
	RoomName       string
	JoiningID      string
	AdminPassword  string
	Duration       time.Duration
	ProCredential  string
	InitialVideoID string
	Policy         domain.Policy
}

type CreateRoomResponse struct {
	RoomID    string
	MemberID  string
	JoiningID string
	AuthToken string
}

func (s service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	if err := s.checkNotInRoom(params.Conn); err != nil {
		return CreateRoomResponse{}, err
	}

	now := s.clock.Now()

	policy := params.Policy
	if policy == "" {
		policy = s.defaultPolicy
	}

	joiningID := params.JoiningID
	if joiningID == "" {
		joiningID = s.generateJoiningID()
	}

	proMode := s.isProCredential(params.ProCredential)

	r := domain.NewRoom(&domain.RoomParams{
		ID:                uuid.NewString(),
		Name:              params.RoomName,
		JoiningID:         joiningID,
		AdminPassword:     params.AdminPassword,
		Policy:            policy,
		InitialVideoID:    params.InitialVideoID,
		Duration:          s.resolveDuration(params.Duration, proMode),
		RequestedDuration: max(params.Duration, 0),
		ProCredential:     params.ProCredential,
		ProMode:           proMode,
		MembersLimit:      s.resolveMembersLimit(proMode),
		PlaylistLimit:     s.playlistLimit,
		ChatLimit:         s.chatLimit,
		Now:               now,
	})

	// the registry checks the name and joining id atomically with the insert
	if err := s.roomRepo.Add(r); err != nil {
		if errors.Is(err, room.ErrJoiningIDTaken) {
			return CreateRoomResponse{}, ErrJoiningIDTaken
		}

		return CreateRoomResponse{}, fmt.Errorf("failed to add room: %w", err)
	}
	metrics.ActiveRooms.Set(float64(s.roomRepo.Len()))

	r.Lock()
	member, err := s.addMember(r, params.Conn, params.Username, domain.RoleAdmin, now)
	if err != nil {
		r.MarkDestroyed()
		if rmErr := s.roomRepo.Remove(r); rmErr != nil {
			s.logger.WarnContext(ctx, "failed to remove room after failed create", "room_id", r.ID, "error", rmErr)
		}
		r.Unlock()
		metrics.ActiveRooms.Set(float64(s.roomRepo.Len()))
		return CreateRoomResponse{}, err
	}

	s.scheduleExpiry(r, now)
	s.reconcileLifecycle(ctx, r)

	authToken, err := s.generateAuthToken(r, now)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to generate auth token", "error", err)
	}

	r.Chat.AppendSystem(fmt.Sprintf("%s created the room", member.Username), now)

	s.send(ctx, params.Conn, Event{
		Type:    EventRoomCreated,
		Payload: s.buildSnapshot(r, member, authToken, now),
	})
	s.send(ctx, params.Conn, Event{
		Type:    EventChatHistory,
		Payload: ChatHistoryPayload{Messages: r.Chat.History()},
	})

	summary := r.VersionedSummary()
	r.Unlock()

	s.publishSummary(ctx, r, summary)
	s.logger.InfoContext(ctx, "room created",
		"room_id", r.ID,
		"member_id", member.ID,
		"policy", r.Policy,
		"pro_mode", r.ProMode,
		"duration", r.Duration,
	)

	return CreateRoomResponse{
		RoomID:    r.ID,
		MemberID:  member.ID,
		JoiningID: joiningID,
		AuthToken: authToken,
	}, nil
}

// addMember adds a member to r and binds conn to it. Must hold r's lock.
func (s service) addMember(r *domain.Room, conn connection.Conn, username string, role domain.Role, now time.Time) (domain.Member, error) {
	member := domain.Member{
		ID:       uuid.NewString(),
		Username: username,
		Role:     role,
		JoinedAt: now,
	}

	if err := r.Members.Add(&member); err != nil {
		return domain.Member{}, fmt.Errorf("failed to add member: %w", err)
	}

	if err := s.connRepo.Add(conn, connection.Session{
		MemberID: member.ID,
		RoomID:   r.ID,
	}); err != nil {
		r.Members.RemoveByID(member.ID)
		if errors.Is(err, connection.ErrAlreadyExists) {
			return domain.Member{}, ErrAlreadyInRoom
		}

		return domain.Member{}, fmt.Errorf("failed to bind connection: %w", err)
	}

	return member, nil
}

type JoinRoomParams struct {
	Conn      connection.Conn
	Username  string
	RoomName  string
	JoiningID string
	Password  string
	AuthToken string
}

type JoinRoomResponse struct {
	RoomID    string
	MemberID  string
	Role      domain.Role
	AuthToken string
}

// JoinRoom resolves a room by name and joining id. The joiner becomes admin when the
// password matches or a valid admin token for the room is presented.
func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	if err := s.checkNotInRoom(params.Conn); err != nil {
		return JoinRoomResponse{}, err
	}

	found, err := s.roomRepo.FindByJoining(params.RoomName, params.JoiningID, s.clock.Now())
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return JoinRoomResponse{}, ErrRoomNotFound
		}

		return JoinRoomResponse{}, fmt.Errorf("failed to find room: %w", err)
	}

	r, err := s.lockRoom(found.ID)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	role := domain.RoleViewer
	if r.CheckPassword(params.Password) || s.grantsAdmin(params.AuthToken, r.ID) {
		role = domain.RoleAdmin
	}

	return s.join(ctx, r, params.Conn, params.Username, role)
}

type JoinOrCreateRoomParams struct {
	Conn     connection.Conn
	RoomID   string
	Username string
}

// JoinOrCreateRoom joins the room with the given id, creating it with the promote policy
// when no such room exists. A member joining a room without admins becomes admin.
// Rooms created with a name are never joined this way, even though their ids are listed.
func (s service) JoinOrCreateRoom(ctx context.Context, params *JoinOrCreateRoomParams) (JoinRoomResponse, error) {
	if err := s.checkNotInRoom(params.Conn); err != nil {
		return JoinRoomResponse{}, err
	}

	for {
		r, err := s.lockRoom(params.RoomID)
		if err == nil {
			// named rooms are only reachable with their joining id
			if r.Name != "" {
				r.Unlock()
				return JoinRoomResponse{}, ErrRoomNotFound
			}

			role := domain.RoleViewer
			if r.Policy == domain.PolicyPromote && r.Members.AdminCount() == 0 {
				role = domain.RoleAdmin
			}

			return s.join(ctx, r, params.Conn, params.Username, role)
		}
		if !errors.Is(err, ErrRoomNotFound) {
			return JoinRoomResponse{}, err
		}

		now := s.clock.Now()
		created := domain.NewRoom(&domain.RoomParams{
			ID:            params.RoomID,
			Policy:        domain.PolicyPromote,
			MembersLimit:  s.membersLimit,
			PlaylistLimit: s.playlistLimit,
			ChatLimit:     s.chatLimit,
			Now:           now,
		})

		if err := s.roomRepo.Add(created); err != nil {
			if errors.Is(err, room.ErrRoomAlreadyExists) {
				// lost the race against another joiner, join theirs
				continue
			}

			return JoinRoomResponse{}, fmt.Errorf("failed to add room: %w", err)
		}

		metrics.ActiveRooms.Set(float64(s.roomRepo.Len()))
		s.logger.InfoContext(ctx, "room created on first join", "room_id", created.ID)
	}
}

// join adds the joiner to the locked room r and unlocks it. The joiner gets the snapshot
// and chat history before anyone else hears about the join.
func (s service) join(ctx context.Context, r *domain.Room, conn connection.Conn, username string, role domain.Role) (JoinRoomResponse, error) {
	now := s.clock.Now()

	if r.IsExpired(now) {
		r.Unlock()
		return JoinRoomResponse{}, ErrRoomExpired
	}

	member, err := s.addMember(r, conn, username, role, now)
	if err != nil {
		// a room created for this join must not outlive the failure
		s.reconcileLifecycle(ctx, r)
		r.Unlock()
		return JoinRoomResponse{}, err
	}

	s.reconcileLifecycle(ctx, r)

	var authToken string
	if member.IsAdmin() {
		authToken, err = s.generateAuthToken(r, now)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to generate auth token", "error", err)
		}
	}

	joinedMsg := r.Chat.AppendSystem(fmt.Sprintf("%s joined the room", member.Username), now)

	s.send(ctx, conn, Event{
		Type:    EventRoomJoined,
		Payload: s.buildSnapshot(r, member, authToken, now),
	})
	s.send(ctx, conn, Event{
		Type:    EventChatHistory,
		Payload: ChatHistoryPayload{Messages: r.Chat.History()},
	})

	others := s.getConns(r, member.ID)
	s.broadcast(ctx, others, Event{
		Type: EventUserJoined,
		Payload: MemberEventPayload{
			Member:       member,
			MembersState: s.getMembersState(r),
		},
	})
	s.broadcast(ctx, others, Event{
		Type:    EventChatMessage,
		Payload: joinedMsg,
	})

	summary := r.VersionedSummary()
	r.Unlock()

	s.publishSummary(ctx, r, summary)
	s.logger.InfoContext(ctx, "member joined room", "room_id", r.ID, "member_id", member.ID, "role", member.Role)

	return JoinRoomResponse{
		RoomID:    r.ID,
		MemberID:  member.ID,
		Role:      member.Role,
		AuthToken: authToken,
	}, nil
}

// ListRooms reads the shared directory when one is configured and falls back to the local registry.
func (s service) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	if s.directory != nil {
		summaries, err := s.directory.ListSummaries(ctx)
		if err == nil {
			return summaries, nil
		}

		s.logger.WarnContext(ctx, "failed to list room directory, using local registry", "error", err)
	}

	rooms := s.roomRepo.List()
	summaries := make([]domain.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		r.Lock()
		if !r.IsDestroyed() {
			summaries = append(summaries, r.Summary())
		}
		r.Unlock()
	}

	return summaries, nil
}

func (s service) Health(_ context.Context) Health {
	return Health{
		Status:      "ok",
		ActiveRooms: s.roomRepo.Len(),
		Timestamp:   s.clock.Now().UnixMilli(),
	}
}
