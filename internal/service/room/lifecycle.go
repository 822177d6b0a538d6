package room

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/pkg/ctxlogger"
	"github.com/sharetube/watchroom/pkg/metrics"
)

const (
	ReasonNoAdmin         = "no_admin"
	ReasonDurationExpired = "duration_expired"
	ReasonEmpty           = "empty"
	ReasonServerShutdown  = "server_shutdown"
)

var destroyMessages = map[string]string{
	ReasonNoAdmin:         "The room was closed because no admin returned in time.",
	ReasonDurationExpired: "The room has reached the end of its scheduled duration.",
	ReasonEmpty:           "The room was closed after everyone left.",
	ReasonServerShutdown:  "The server is shutting down.",
}

// reconcileLifecycle makes the pending timers of r match its membership. Must hold r's lock.
//
//	no members              -> empty-room timer only
//	grace policy, no admins -> admin grace timer
//	otherwise               -> neither
func (s service) reconcileLifecycle(ctx context.Context, r *domain.Room) {
	if r.IsDestroyed() {
		return
	}

	if r.Members.Length() == 0 {
		r.StopTimer(domain.TimerAdminGrace)
		if !r.HasTimer(domain.TimerEmptyRoom) {
			s.logger.DebugContext(ctx, "scheduling empty room timer", "room_id", r.ID, "after", s.emptyRoomGrace)
			s.scheduleTimer(r, domain.TimerEmptyRoom, s.emptyRoomGrace)
		}
		return
	}

	r.StopTimer(domain.TimerEmptyRoom)

	if r.Policy != domain.PolicyGrace {
		return
	}

	if r.Members.AdminCount() > 0 {
		r.StopTimer(domain.TimerAdminGrace)
		return
	}

	if !r.HasTimer(domain.TimerAdminGrace) {
		s.logger.InfoContext(ctx, "room has no admin, starting grace period", "room_id", r.ID, "after", s.adminGrace)
		s.scheduleTimer(r, domain.TimerAdminGrace, s.adminGrace)
	}
}

// scheduleTimer must be called with r's lock held, which also keeps an immediate
// callback waiting until the timer is recorded.
func (s service) scheduleTimer(r *domain.Room, kind domain.TimerKind, d time.Duration) {
	deadline := s.clock.Now().Add(d)
	t := s.clock.AfterFunc(d, func() {
		s.onTimer(r, kind)
	})
	r.SetTimer(kind, t, deadline)
}

func (s service) scheduleExpiry(r *domain.Room, now time.Time) {
	if !r.IsBounded() {
		return
	}

	s.scheduleTimer(r, domain.TimerExpiry, r.ExpiresAt.Sub(now))
}

// onTimer re-checks the condition the timer was armed for before destroying anything.
func (s service) onTimer(r *domain.Room, kind domain.TimerKind) {
	ctx := ctxlogger.AppendCtx(context.Background(), slog.String("room_id", r.ID))
	now := s.clock.Now()

	r.Lock()
	if r.IsDestroyed() || !r.TimerDue(kind, now) {
		r.Unlock()
		return
	}
	r.ClearTimer(kind)

	var reason string
	switch kind {
	case domain.TimerAdminGrace:
		if r.Members.Length() > 0 && r.Members.AdminCount() == 0 {
			reason = ReasonNoAdmin
		}
	case domain.TimerEmptyRoom:
		if r.Members.Length() == 0 {
			reason = ReasonEmpty
		}
	case domain.TimerExpiry:
		if r.IsExpired(now) {
			reason = ReasonDurationExpired
		}
	}

	if reason == "" {
		s.reconcileLifecycle(ctx, r)
		r.Unlock()
		return
	}

	destroyed := s.destroyLocked(ctx, r, reason)
	r.Unlock()

	if destroyed {
		s.afterDestroy(ctx, r, reason)
	}
}

// destroyLocked tears r down exactly once. Must hold r's lock.
// Members are told why and their sessions are detached; their connections stay open.
func (s service) destroyLocked(ctx context.Context, r *domain.Room, reason string) bool {
	if !r.MarkDestroyed() {
		return false
	}

	ids := r.Members.IDs()
	conns := s.connRepo.GetConns(ids)
	for _, id := range ids {
		if _, err := s.connRepo.RemoveByMemberID(id); err != nil {
			s.logger.DebugContext(ctx, "member had no connection", "member_id", id)
		}
	}

	s.broadcast(ctx, conns, Event{
		Type: EventRoomDestroyed,
		Payload: RoomDestroyedPayload{
			Reason:  reason,
			Message: destroyMessages[reason],
		},
	})

	if err := s.roomRepo.Remove(r); err != nil {
		s.logger.WarnContext(ctx, "failed to remove room from registry", "room_id", r.ID, "error", err)
	}

	s.logger.InfoContext(ctx, "room destroyed", "room_id", r.ID, "reason", reason, "members", len(ids))
	return true
}

// afterDestroy runs the unlocked part of a destruction.
func (s service) afterDestroy(ctx context.Context, r *domain.Room, reason string) {
	metrics.RoomsDestroyed.WithLabelValues(reason).Inc()
	metrics.ActiveRooms.Set(float64(s.roomRepo.Len()))
	s.unpublishSummary(ctx, r.ID)
}

type DestroyRoomParams struct {
	RoomID string
	Reason string
}

// DestroyRoom is idempotent: destroying a missing or already destroyed room returns ErrRoomNotFound
// and has no side effects.
func (s service) DestroyRoom(ctx context.Context, params *DestroyRoomParams) error {
	r, err := s.lockRoom(params.RoomID)
	if err != nil {
		return err
	}

	destroyed := s.destroyLocked(ctx, r, params.Reason)
	r.Unlock()

	if !destroyed {
		return ErrRoomNotFound
	}

	s.afterDestroy(ctx, r, params.Reason)
	return nil
}

// Sweep destroys every expired room. It backs up the per-room expiry timers.
func (s service) Sweep(ctx context.Context) int {
	now := s.clock.Now()
	count := 0

	for _, r := range s.roomRepo.List() {
		r.Lock()
		if r.IsDestroyed() || !r.IsExpired(now) {
			r.Unlock()
			continue
		}

		destroyed := s.destroyLocked(ctx, r, ReasonDurationExpired)
		r.Unlock()

		if destroyed {
			count++
			s.afterDestroy(ctx, r, ReasonDurationExpired)
		}
	}

	if count > 0 {
		s.logger.InfoContext(ctx, "sweep destroyed expired rooms", "count", count)
	}

	return count
}

// refreshDirectory republishes every live room so summaries of quiet rooms without a
// duration do not expire from the directory.
func (s service) refreshDirectory(ctx context.Context) {
	if s.directory == nil {
		return
	}

	for _, r := range s.roomRepo.List() {
		r.Lock()
		if r.IsDestroyed() {
			r.Unlock()
			continue
		}
		summary := r.VersionedSummary()
		r.Unlock()

		s.publishSummary(ctx, r, summary)
	}
}

// Run sweeps expired rooms and refreshes the directory every sweep interval until ctx is done.
func (s service) Run(ctx context.Context) error {
	if s.sweepInterval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := s.clock.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			s.Sweep(ctx)
			s.refreshDirectory(ctx)
		}
	}
}

// Shutdown destroys every room with reason server_shutdown.
func (s service) Shutdown(ctx context.Context) {
	for _, r := range s.roomRepo.List() {
		if err := s.DestroyRoom(ctx, &DestroyRoomParams{
			RoomID: r.ID,
			Reason: ReasonServerShutdown,
		}); err != nil && !errors.Is(err, ErrRoomNotFound) {
			s.logger.WarnContext(ctx, "failed to destroy room on shutdown", "room_id", r.ID, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "all rooms destroyed")
}
