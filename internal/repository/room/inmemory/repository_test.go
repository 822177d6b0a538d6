package inmemory

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/repository/room"
)

func newRoom(id, name, joiningID string, duration time.Duration, now time.Time) *domain.Room {
	return domain.NewRoom(&domain.RoomParams{
		ID:        id,
		Name:      name,
		JoiningID: joiningID,
		Policy:    domain.PolicyGrace,
		Duration:  duration,
		Now:       now,
	})
}

func TestRegistry(t *testing.T) {
	now := time.Now()
	r := NewRepo(slog.Default())

	a := newRoom("a", "movie-night", "j1", time.Minute, now)
	b := newRoom("b", "movie-night", "j2", 0, now)
	require.NoError(t, r.Add(b))
	require.NoError(t, r.Add(a))
	assert.ErrorIs(t, r.Add(a), room.ErrRoomAlreadyExists)
	assert.Equal(t, 2, r.Len())

	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Same(t, a, got)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)

	found, err := r.FindByJoining("movie-night", "j2", now)
	require.NoError(t, err)
	assert.Same(t, b, found)

	_, err = r.FindByJoining("movie-night", "nope", now)
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	_, err = r.FindByJoining("movie-night", "j1", now.Add(2*time.Minute))
	assert.ErrorIs(t, err, room.ErrRoomNotFound, "expired rooms are not joinable")

	require.NoError(t, r.Remove(a))
	assert.ErrorIs(t, r.Remove(a), room.ErrRoomNotFound)
	_, err = r.Get("a")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestRegistryRemoveIgnoresReplacedRoom(t *testing.T) {
	now := time.Now()
	r := NewRepo(slog.Default())

	old := newRoom("a", "", "", 0, now)
	require.NoError(t, r.Add(old))
	require.NoError(t, r.Remove(old))

	fresh := newRoom("a", "", "", 0, now)
	require.NoError(t, r.Add(fresh))

	assert.ErrorIs(t, r.Remove(old), room.ErrRoomNotFound)
	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Same(t, fresh, got)
}

func TestRegistryJoiningUnique(t *testing.T) {
	now := time.Now()
	r := NewRepo(slog.Default())

	first := newRoom("a", "movie-night", "j1", 0, now)
	require.NoError(t, r.Add(first))

	assert.ErrorIs(t, r.Add(newRoom("b", "movie-night", "j1", 0, now)), room.ErrJoiningIDTaken)
	assert.Equal(t, 1, r.Len(), "rejected room is not registered")
	require.NoError(t, r.Add(newRoom("c", "movie-night", "j2", 0, now)))

	require.NoError(t, r.Remove(first))
	second := newRoom("d", "movie-night", "j1", 0, now)
	require.NoError(t, r.Add(second), "pair is free again once removed")

	found, err := r.FindByJoining("movie-night", "j1", now)
	require.NoError(t, err)
	assert.Same(t, second, found)
}

func TestRegistryFindSkipsDestroyed(t *testing.T) {
	now := time.Now()
	r := NewRepo(slog.Default())

	rm := newRoom("a", "movie-night", "j1", 0, now)
	require.NoError(t, r.Add(rm))

	rm.Lock()
	rm.MarkDestroyed()
	rm.Unlock()

	_, err := r.FindByJoining("movie-night", "j1", now)
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestRegistryConcurrentNamedAdd(t *testing.T) {
	now := time.Now()
	r := NewRepo(slog.New(slog.NewTextHandler(io.Discard, nil)))

	var (
		wg    sync.WaitGroup
		added atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := r.Add(newRoom(fmt.Sprintf("room-%d", i), "movie-night", "j1", 0, now)); err == nil {
				added.Add(1)
			} else {
				assert.ErrorIs(t, err, room.ErrJoiningIDTaken)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, added.Load())
	assert.Equal(t, 1, r.Len())
}
