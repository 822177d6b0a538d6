package connection

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Conn is an outbound channel to one client. Send must not block on slow peers.
type Conn interface {
	Send(v any) error
	Close() error
}

// Session binds a connection to a member of one room.
type Session struct {
	MemberID string
	RoomID   string
}
