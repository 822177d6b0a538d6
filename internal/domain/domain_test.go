package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestPlayerObservePlaying(t *testing.T) {
	p := NewPlayer("video", t0)
	p.SetState(true, 10, t0)

	assert.InDelta(t, 10.0, p.Observe(t0), 1e-9)
	assert.InDelta(t, 13.0, p.Observe(t0.Add(3*time.Second)), 1e-9)
	assert.InDelta(t, 70.5, p.Observe(t0.Add(60500*time.Millisecond)), 1e-9)
}

func TestPlayerObservePaused(t *testing.T) {
	p := NewPlayer("video", t0)
	p.SetState(false, 42, t0)

	assert.Equal(t, 42.0, p.Observe(t0.Add(time.Hour)))
}

func TestPlayerRepeatedSeeksWhilePaused(t *testing.T) {
	p := NewPlayer("video", t0)
	p.SetState(false, 5, t0)
	p.SetState(false, 20, t0.Add(10*time.Second))
	p.SetState(false, 7, t0.Add(30*time.Second))

	assert.Equal(t, 7.0, p.Observe(t0.Add(5*time.Minute)))
}

func TestPlayerResumeProjectsFromLastWrite(t *testing.T) {
	p := NewPlayer("video", t0)
	p.SetState(false, 30, t0)
	p.SetState(true, 30, t0.Add(time.Minute))

	assert.InDelta(t, 32.0, p.Observe(t0.Add(time.Minute+2*time.Second)), 1e-9)
}

func TestPlayerSetVideoRewinds(t *testing.T) {
	p := NewPlayer("a", t0)
	p.SetState(true, 100, t0)
	p.SetVideo("b", t0.Add(time.Second))

	assert.Equal(t, "b", p.VideoID)
	assert.False(t, p.IsPlaying)
	assert.Equal(t, 0.0, p.Observe(t0.Add(time.Hour)))
}

func TestPlayerNegativePositionClamped(t *testing.T) {
	p := NewPlayer("a", t0)
	p.SetState(false, -3, t0)

	assert.Equal(t, 0.0, p.Observe(t0))
}

func TestChatKeepsMostRecent(t *testing.T) {
	c := NewChat(DefaultChatLimit)
	for i := 0; i < 250; i++ {
		c.AppendUser("bob", fmt.Sprintf("msg-%d", i), t0)
		require.LessOrEqual(t, c.Length(), DefaultChatLimit)
	}

	history := c.History()
	require.Len(t, history, DefaultChatLimit)
	assert.Equal(t, "msg-150", history[0].Body)
	assert.Equal(t, "msg-249", history[len(history)-1].Body)
}

func TestChatSystemMessage(t *testing.T) {
	c := NewChat(0)
	msg := c.AppendSystem("alice joined", t0)

	assert.Equal(t, MessageKindSystem, msg.Kind)
	assert.Empty(t, msg.Author)
	assert.Equal(t, t0.UnixMilli(), msg.Timestamp)
}

func TestPlaylistWraps(t *testing.T) {
	p := NewPlaylist(25)
	require.NoError(t, p.Load([]string{"a", "b", "c"}))

	current, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, "a", current)
	assert.Equal(t, 0, p.CurrentIndex())

	for _, want := range []string{"b", "c", "a"} {
		got, err := p.Next()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 0, p.CurrentIndex())

	prev, err := p.Previous()
	require.NoError(t, err)
	assert.Equal(t, "c", prev)
	assert.Equal(t, 2, p.CurrentIndex())
}

func TestPlaylistErrors(t *testing.T) {
	p := NewPlaylist(2)

	_, err := p.Next()
	assert.ErrorIs(t, err, ErrPlaylistEmpty)
	assert.ErrorIs(t, p.Load(nil), ErrPlaylistEmpty)
	assert.ErrorIs(t, p.Load([]string{"a", "b", "c"}), ErrPlaylistLimitReached)
}

func TestMembersOrderAndRoles(t *testing.T) {
	m := NewMembers(3)
	require.NoError(t, m.Add(&Member{ID: "1", Role: RoleAdmin}))
	require.NoError(t, m.Add(&Member{ID: "2", Role: RoleViewer}))
	require.NoError(t, m.Add(&Member{ID: "3", Role: RoleViewer}))

	assert.ErrorIs(t, m.Add(&Member{ID: "4"}), ErrMembersLimitReached)
	assert.ErrorIs(t, m.Add(&Member{ID: "2"}), ErrMemberAlreadyExists)
	assert.Equal(t, 1, m.AdminCount())
	assert.Equal(t, 2, m.ViewerCount())

	_, err := m.RemoveByID("1")
	require.NoError(t, err)

	first, ok := m.First()
	require.True(t, ok)
	assert.Equal(t, "2", first.ID)

	promoted, err := m.SetRole("2", RoleAdmin)
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin())
	assert.True(t, m.IsAdmin("2"))
	assert.False(t, m.IsAdmin("3"))
	assert.Equal(t, []string{"2", "3"}, m.IDs())
}

type stubTimer struct{ stopped bool }

func (s *stubTimer) Stop() bool {
	s.stopped = true
	return true
}

func TestRoomLifecycleFields(t *testing.T) {
	r := NewRoom(&RoomParams{
		ID:            "room",
		Name:          "movie-night",
		JoiningID:     "join",
		AdminPassword: "x",
		Policy:        PolicyGrace,
		Duration:      time.Minute,
		Now:           t0,
	})

	assert.True(t, r.IsBounded())
	assert.Equal(t, t0.Add(time.Minute), r.ExpiresAt)
	assert.False(t, r.IsExpired(t0.Add(59*time.Second)))
	assert.True(t, r.IsExpired(t0.Add(time.Minute)))
	assert.Equal(t, 20*time.Second, r.Remaining(t0.Add(40*time.Second)))
	assert.True(t, r.CheckPassword("x"))
	assert.False(t, r.CheckPassword("y"))
	assert.False(t, r.CheckPassword(""))
}

func TestRoomUnboundedNeverExpires(t *testing.T) {
	r := NewRoom(&RoomParams{ID: "room", Policy: PolicyPromote, Now: t0})

	assert.False(t, r.IsBounded())
	assert.False(t, r.IsExpired(t0.Add(24*365*time.Hour)))
	assert.Nil(t, r.ExpiresAtUnix())
	assert.False(t, r.CheckPassword(""))
}

func TestRoomSetDuration(t *testing.T) {
	r := NewRoom(&RoomParams{ID: "room", Policy: PolicyGrace, Duration: time.Hour, Now: t0})
	assert.Equal(t, t0.Add(time.Hour), r.ExpiresAt)

	r.SetDuration(0)
	assert.False(t, r.IsBounded())
	assert.Nil(t, r.ExpiresAtUnix())

	r.SetDuration(30 * time.Minute)
	assert.Equal(t, t0.Add(30*time.Minute), r.ExpiresAt, "relative to creation")
	assert.True(t, r.IsExpired(t0.Add(45*time.Minute)))
}

func TestRoomVersionedSummary(t *testing.T) {
	r := NewRoom(&RoomParams{ID: "room", Policy: PolicyGrace, Now: t0})

	first := r.VersionedSummary()
	second := r.VersionedSummary()
	assert.Less(t, first.Version, second.Version)
	assert.Equal(t, second.Version, r.Summary().Version, "plain summaries do not bump")
}

func TestRoomMarkDestroyedStopsTimers(t *testing.T) {
	r := NewRoom(&RoomParams{ID: "room", Policy: PolicyGrace, Now: t0})
	admin := &stubTimer{}
	expiry := &stubTimer{}
	r.SetTimer(TimerAdminGrace, admin, t0.Add(time.Minute))
	r.SetTimer(TimerExpiry, expiry, t0.Add(time.Hour))

	require.True(t, r.MarkDestroyed())
	assert.False(t, r.MarkDestroyed())
	assert.True(t, admin.stopped)
	assert.True(t, expiry.stopped)
	assert.False(t, r.HasTimer(TimerAdminGrace))
}

func TestRoomSetTimerReplaces(t *testing.T) {
	r := NewRoom(&RoomParams{ID: "room", Policy: PolicyGrace, Now: t0})
	first := &stubTimer{}
	second := &stubTimer{}
	r.SetTimer(TimerEmptyRoom, first, t0.Add(time.Minute))
	r.SetTimer(TimerEmptyRoom, second, t0.Add(2*time.Minute))

	assert.True(t, first.stopped)
	assert.False(t, second.stopped)
	assert.True(t, r.HasTimer(TimerEmptyRoom))

	assert.False(t, r.TimerDue(TimerEmptyRoom, t0.Add(time.Minute)), "deadline of the replaced timer")
	assert.True(t, r.TimerDue(TimerEmptyRoom, t0.Add(2*time.Minute)))
	assert.False(t, r.TimerDue(TimerAdminGrace, t0.Add(time.Hour)))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("grace")
	require.NoError(t, err)
	assert.Equal(t, PolicyGrace, p)

	_, err = ParsePolicy("elect")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}
