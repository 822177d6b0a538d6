package domain

import (
	"errors"
	"time"
)

var (
	ErrMemberNotFound      = errors.New("member not found")
	ErrMemberAlreadyExists = errors.New("member already exists")
	ErrMembersLimitReached = errors.New("members limit reached")
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

type Member struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

func (m Member) IsAdmin() bool {
	return m.Role == RoleAdmin
}

// Members keeps join order, which is the enumeration order used for admin succession.
type Members struct {
	list  []Member
	limit int
}

// NewMembers returns an empty member list. A limit of 0 means unlimited.
func NewMembers(limit int) *Members {
	return &Members{
		list:  make([]Member, 0),
		limit: limit,
	}
}

func (m Members) Length() int {
	return len(m.list)
}

func (m Members) AsList() []Member {
	list := make([]Member, len(m.list))
	copy(list, m.list)
	return list
}

func (m Members) IDs() []string {
	ids := make([]string, 0, len(m.list))
	for _, member := range m.list {
		ids = append(ids, member.ID)
	}

	return ids
}

func (m Members) GetByID(id string) (Member, int, error) {
	for index, member := range m.list {
		if member.ID == id {
			return member, index, nil
		}
	}

	return Member{}, 0, ErrMemberNotFound
}

func (m *Members) SetLimit(limit int) {
	m.limit = limit
}

func (m *Members) Add(member *Member) error {
	if _, _, err := m.GetByID(member.ID); err == nil {
		return ErrMemberAlreadyExists
	}

	if m.limit > 0 && m.Length() >= m.limit {
		return ErrMembersLimitReached
	}

	m.list = append(m.list, *member)
	return nil
}

func (m *Members) RemoveByID(id string) (Member, error) {
	member, index, err := m.GetByID(id)
	if err != nil {
		return Member{}, err
	}

	m.list = append(m.list[:index], m.list[index+1:]...)
	return member, nil
}

func (m *Members) SetRole(id string, role Role) (Member, error) {
	_, index, err := m.GetByID(id)
	if err != nil {
		return Member{}, err
	}

	m.list[index].Role = role
	return m.list[index], nil
}

func (m Members) IsAdmin(id string) bool {
	member, _, err := m.GetByID(id)
	if err != nil {
		return false
	}

	return member.IsAdmin()
}

func (m Members) AdminCount() int {
	count := 0
	for _, member := range m.list {
		if member.IsAdmin() {
			count++
		}
	}

	return count
}

func (m Members) ViewerCount() int {
	return m.Length() - m.AdminCount()
}

// First returns the earliest joined member still present.
func (m Members) First() (Member, bool) {
	if len(m.list) == 0 {
		return Member{}, false
	}

	return m.list[0], true
}
