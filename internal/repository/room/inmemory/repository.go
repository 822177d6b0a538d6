package inmemory

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/repository/room"
)

type joiningKey struct {
	name      string
	joiningID string
}

// repo is the room registry. It is created at process start and owned by the room service.
// Room locks are never taken while mu is held.
type repo struct {
	rooms   map[string]*domain.Room
	joining map[joiningKey]*domain.Room
	mu      sync.RWMutex
	logger  *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		rooms:   make(map[string]*domain.Room),
		joining: make(map[joiningKey]*domain.Room),
		logger:  logger,
	}
}

func keyOf(rm *domain.Room) (joiningKey, bool) {
	if rm.Name == "" {
		return joiningKey{}, false
	}

	return joiningKey{name: rm.Name, joiningID: rm.JoiningID}, true
}

// Add registers rm. Named rooms also claim their (name, joining id) pair until removed.
func (r *repo) Add(rm *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[rm.ID]; ok {
		return room.ErrRoomAlreadyExists
	}

	key, named := keyOf(rm)
	if named {
		if _, ok := r.joining[key]; ok {
			return room.ErrJoiningIDTaken
		}
		r.joining[key] = rm
	}

	r.rooms[rm.ID] = rm
	r.logger.Debug("room.inmemory.Add", "room_id", rm.ID, "rooms", len(r.rooms))
	return nil
}

func (r *repo) Get(roomID string) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, room.ErrRoomNotFound
	}

	return rm, nil
}

// Remove deletes the entry only if it still points at rm, so a stale destroy
// cannot evict a newer room registered under the same id.
func (r *repo) Remove(rm *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.rooms[rm.ID]
	if !ok || current != rm {
		return room.ErrRoomNotFound
	}

	delete(r.rooms, rm.ID)
	if key, named := keyOf(rm); named && r.joining[key] == rm {
		delete(r.joining, key)
	}
	r.logger.Debug("room.inmemory.Remove", "room_id", rm.ID, "rooms", len(r.rooms))
	return nil
}

// FindByJoining resolves a (name, joining id) pair to a live room that has not expired.
// The expiry of a room can move, so it is read under the room lock after mu is released.
func (r *repo) FindByJoining(name, joiningID string, now time.Time) (*domain.Room, error) {
	r.mu.RLock()
	rm, ok := r.joining[joiningKey{name: name, joiningID: joiningID}]
	r.mu.RUnlock()

	if !ok {
		return nil, room.ErrRoomNotFound
	}

	rm.Lock()
	live := !rm.IsDestroyed() && !rm.IsExpired(now)
	rm.Unlock()

	if !live {
		return nil, room.ErrRoomNotFound
	}

	return rm, nil
}

// List returns rooms ordered by id.
func (r *repo) List() []*domain.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := maps.Keys(r.rooms)
	slices.Sort(ids)

	rooms := make([]*domain.Room, 0, len(ids))
	for _, id := range ids {
		rooms = append(rooms, r.rooms[id])
	}

	return rooms
}

func (r *repo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}
