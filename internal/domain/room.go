package domain

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrUnknownPolicy = errors.New("unknown failover policy")

// Policy selects what happens when a room loses its last admin.
type Policy string

const (
	// PolicyPromote hands admin to the earliest remaining member.
	PolicyPromote Policy = "promote"
	// PolicyGrace never promotes; the room is destroyed unless an admin returns in time.
	PolicyGrace Policy = "grace"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyPromote, PolicyGrace:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

type TimerKind int

const (
	TimerAdminGrace TimerKind = iota
	TimerEmptyRoom
	TimerExpiry
)

type Timer interface {
	Stop() bool
}

type scheduledTimer struct {
	timer    Timer
	deadline time.Time
}

type Room struct {
	mu sync.Mutex

	ID        string
	Name      string
	JoiningID string
	Policy    Policy
	CreatedAt time.Time
	Duration  time.Duration
	ExpiresAt time.Time
	ProMode   bool
	// RequestedDuration is what the creator asked for, before any cap was applied.
	RequestedDuration time.Duration

	Player   *Player
	Playlist *Playlist
	Members  *Members
	Chat     *Chat

	adminPassword string
	proCredential string
	timers        map[TimerKind]scheduledTimer
	destroyed     bool
	version       int64
}

type RoomParams struct {
	ID             string
	Name           string
	JoiningID      string
	AdminPassword  string
	Policy         Policy
	InitialVideoID string
	Duration       time.Duration
	RequestedDuration time.Duration
	ProCredential     string
	ProMode           bool
	MembersLimit      int
	PlaylistLimit     int
	ChatLimit         int
	Now               time.Time
}

func NewRoom(params *RoomParams) *Room {
	r := &Room{
		ID:                params.ID,
		Name:              params.Name,
		JoiningID:         params.JoiningID,
		Policy:            params.Policy,
		CreatedAt:         params.Now,
		RequestedDuration: params.RequestedDuration,
		ProMode:           params.ProMode,
		Player:            NewPlayer(params.InitialVideoID, params.Now),
		Playlist:          NewPlaylist(params.PlaylistLimit),
		Members:           NewMembers(params.MembersLimit),
		Chat:              NewChat(params.ChatLimit),
		adminPassword:     params.AdminPassword,
		proCredential:     params.ProCredential,
		timers:            make(map[TimerKind]scheduledTimer),
	}

	r.SetDuration(params.Duration)

	return r
}

// SetDuration moves the end of the room relative to its creation. Zero makes it unbounded.
func (r *Room) SetDuration(d time.Duration) {
	r.Duration = d
	if d > 0 {
		r.ExpiresAt = r.CreatedAt.Add(d)
	} else {
		r.ExpiresAt = time.Time{}
	}
}

func (r *Room) Lock() {
	r.mu.Lock()
}

func (r *Room) Unlock() {
	r.mu.Unlock()
}

func (r *Room) IsDestroyed() bool {
	return r.destroyed
}

// MarkDestroyed reports false when the room was already destroyed.
func (r *Room) MarkDestroyed() bool {
	if r.destroyed {
		return false
	}

	r.destroyed = true
	r.StopTimers()
	return true
}

func (r *Room) HasPassword() bool {
	return r.adminPassword != ""
}

func (r *Room) CheckPassword(password string) bool {
	if !r.HasPassword() || password == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(r.adminPassword), []byte(password)) == 1
}

func (r *Room) IsBounded() bool {
	return !r.ExpiresAt.IsZero()
}

func (r *Room) IsExpired(now time.Time) bool {
	return r.IsBounded() && !now.Before(r.ExpiresAt)
}

func (r *Room) Remaining(now time.Time) time.Duration {
	if !r.IsBounded() {
		return 0
	}

	remaining := r.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}

	return remaining
}

func (r *Room) ExpiresAtUnix() *int64 {
	if !r.IsBounded() {
		return nil
	}

	expiresAt := r.ExpiresAt.UnixMilli()
	return &expiresAt
}

func (r *Room) ProCredential() string {
	return r.proCredential
}

func (r *Room) SetCredential(credential string, proMode bool) {
	r.proCredential = credential
	r.ProMode = proMode
}

// SetTimer replaces and stops any timer of the same kind.
func (r *Room) SetTimer(kind TimerKind, t Timer, deadline time.Time) {
	r.StopTimer(kind)
	r.timers[kind] = scheduledTimer{timer: t, deadline: deadline}
}

func (r *Room) HasTimer(kind TimerKind) bool {
	_, ok := r.timers[kind]
	return ok
}

// TimerDue reports whether a timer of the given kind is scheduled and its deadline has passed.
// A callback that lost a race with StopTimer sees false.
func (r *Room) TimerDue(kind TimerKind, now time.Time) bool {
	st, ok := r.timers[kind]
	return ok && !now.Before(st.deadline)
}

func (r *Room) StopTimer(kind TimerKind) {
	if st, ok := r.timers[kind]; ok {
		st.timer.Stop()
		delete(r.timers, kind)
	}
}

// ClearTimer forgets a fired timer without stopping it.
func (r *Room) ClearTimer(kind TimerKind) {
	delete(r.timers, kind)
}

func (r *Room) StopTimers() {
	for kind := range r.timers {
		r.StopTimer(kind)
	}
}

type RoomSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	TotalUsers  int    `json:"total_users"`
	AdminCount  int    `json:"admin_count"`
	ViewerCount int    `json:"viewer_count"`
	VideoID     string `json:"video_id"`
	IsPlaying   bool   `json:"is_playing"`
	ProMode     bool   `json:"pro_mode"`
	CreatedAt   int64  `json:"created_at"`
	ExpiresAt   *int64 `json:"expires_at,omitempty"`
	// Version orders writes of the same room; newer summaries carry larger versions.
	Version int64 `json:"-"`
}

func (r *Room) Summary() RoomSummary {
	return RoomSummary{
		ID:          r.ID,
		Name:        r.Name,
		TotalUsers:  r.Members.Length(),
		AdminCount:  r.Members.AdminCount(),
		ViewerCount: r.Members.ViewerCount(),
		VideoID:     r.Player.VideoID,
		IsPlaying:   r.Player.IsPlaying,
		ProMode:     r.ProMode,
		CreatedAt:   r.CreatedAt.UnixMilli(),
		ExpiresAt:   r.ExpiresAtUnix(),
		Version:     r.version,
	}
}

// VersionedSummary is Summary stamped with the next version. Must hold r's lock.
func (r *Room) VersionedSummary() RoomSummary {
	r.version++
	return r.Summary()
}
