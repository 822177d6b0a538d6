package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSnapshotDropsNil(t *testing.T) {
	expiresAt := int64(10)
	var playlist *PlaylistState

	got := newSnapshot(map[string]any{
		"room_id":    "a",
		"expires_at": &expiresAt,
		"playlist":   playlist,
		"room_name":  nil,
	})

	assert.Equal(t, Snapshot{
		"room_id":    "a",
		"expires_at": int64(10),
	}, got)
}
