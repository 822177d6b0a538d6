package inmemory

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/watchroom/internal/repository/connection"
)

type nopConn struct{ id int }

func (c *nopConn) Send(any) error { return nil }
func (c *nopConn) Close() error   { return nil }

func TestRepo(t *testing.T) {
	r := NewRepo(slog.Default())
	c1 := &nopConn{id: 1}
	c2 := &nopConn{id: 2}
	s1 := connection.Session{MemberID: "m1", RoomID: "a"}
	s2 := connection.Session{MemberID: "m2", RoomID: "a"}

	require.NoError(t, r.Add(c1, s1))
	require.NoError(t, r.Add(c2, s2))
	assert.ErrorIs(t, r.Add(c1, connection.Session{MemberID: "m3", RoomID: "b"}), connection.ErrAlreadyExists)
	assert.ErrorIs(t, r.Add(&nopConn{id: 3}, s1), connection.ErrAlreadyExists)
	assert.Equal(t, 2, r.Len())

	session, err := r.GetSession(c2)
	require.NoError(t, err)
	assert.Equal(t, s2, session)

	conns := r.GetConns([]string{"m1", "missing", "m2"})
	assert.Equal(t, []connection.Conn{c1, c2}, conns)

	removed, err := r.RemoveByMemberID("m1")
	require.NoError(t, err)
	assert.Same(t, c1, removed)
	_, err = r.GetConn("m1")
	assert.ErrorIs(t, err, connection.ErrNotFound)
	_, err = r.GetSession(c1)
	assert.ErrorIs(t, err, connection.ErrNotFound)

	session, err = r.RemoveByConn(c2)
	require.NoError(t, err)
	assert.Equal(t, "m2", session.MemberID)
	_, err = r.RemoveByConn(c2)
	assert.ErrorIs(t, err, connection.ErrNotFound)
	assert.Equal(t, 0, r.Len())
}
