package domain

import "errors"

var (
	ErrPlaylistEmpty        = errors.New("playlist is empty")
	ErrPlaylistLimitReached = errors.New("playlist limit reached")
)

type Playlist struct {
	list    []string
	current int
	limit   int
}

func NewPlaylist(limit int) *Playlist {
	return &Playlist{
		list:  make([]string, 0),
		limit: limit,
	}
}

func (p Playlist) AsList() []string {
	list := make([]string, len(p.list))
	copy(list, p.list)
	return list
}

func (p Playlist) Length() int {
	return len(p.list)
}

func (p Playlist) CurrentIndex() int {
	return p.current
}

func (p Playlist) Current() (string, bool) {
	if len(p.list) == 0 {
		return "", false
	}

	return p.list[p.current], true
}

// Load replaces the playlist and rewinds to its first entry.
func (p *Playlist) Load(videoIDs []string) error {
	if len(videoIDs) == 0 {
		return ErrPlaylistEmpty
	}

	if p.limit > 0 && len(videoIDs) > p.limit {
		return ErrPlaylistLimitReached
	}

	p.list = make([]string, len(videoIDs))
	copy(p.list, videoIDs)
	p.current = 0

	return nil
}

func (p *Playlist) Next() (string, error) {
	if len(p.list) == 0 {
		return "", ErrPlaylistEmpty
	}

	p.current = (p.current + 1) % len(p.list)
	return p.list[p.current], nil
}

func (p *Playlist) Previous() (string, error) {
	if len(p.list) == 0 {
		return "", ErrPlaylistEmpty
	}

	p.current = (p.current - 1 + len(p.list)) % len(p.list)
	return p.list[p.current], nil
}
