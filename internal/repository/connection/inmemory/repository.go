package inmemory

import (
	"log/slog"
	"sync"

	"github.com/sharetube/watchroom/internal/repository/connection"
)

type repo struct {
	connList map[connection.Conn]connection.Session
	idList   map[string]connection.Conn
	mu       sync.RWMutex
	logger   *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		connList: make(map[connection.Conn]connection.Session),
		idList:   make(map[string]connection.Conn),
		logger:   logger,
	}
}

func (r *repo) Add(conn connection.Conn, session connection.Session) error {
	funcName := "connection.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(funcName, "member_id", session.MemberID, "room_id", session.RoomID)
	if _, ok := r.connList[conn]; ok {
		return connection.ErrAlreadyExists
	}
	if _, ok := r.idList[session.MemberID]; ok {
		return connection.ErrAlreadyExists
	}

	r.connList[conn] = session
	r.idList[session.MemberID] = conn

	return nil
}

func (r *repo) RemoveByConn(conn connection.Conn) (connection.Session, error) {
	funcName := "connection.inmemory.RemoveByConn"
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.connList[conn]
	if !ok {
		r.logger.Debug(funcName, "error", connection.ErrNotFound)
		return connection.Session{}, connection.ErrNotFound
	}

	delete(r.connList, conn)
	delete(r.idList, session.MemberID)

	r.logger.Debug(funcName, "member_id", session.MemberID)
	return session, nil
}

func (r *repo) RemoveByMemberID(memberID string) (connection.Conn, error) {
	funcName := "connection.inmemory.RemoveByMemberID"
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.idList[memberID]
	if !ok {
		r.logger.Debug(funcName, "member_id", memberID, "error", connection.ErrNotFound)
		return nil, connection.ErrNotFound
	}

	delete(r.connList, conn)
	delete(r.idList, memberID)

	r.logger.Debug(funcName, "member_id", memberID)
	return conn, nil
}

func (r *repo) GetSession(conn connection.Conn) (connection.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.connList[conn]
	if !ok {
		return connection.Session{}, connection.ErrNotFound
	}

	return session, nil
}

func (r *repo) GetConn(memberID string) (connection.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.idList[memberID]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return conn, nil
}

// GetConns skips members without a live connection.
func (r *repo) GetConns(memberIDs []string) []connection.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]connection.Conn, 0, len(memberIDs))
	for _, memberID := range memberIDs {
		if conn, ok := r.idList[memberID]; ok {
			conns = append(conns, conn)
		}
	}

	return conns
}

func (r *repo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.idList)
}
