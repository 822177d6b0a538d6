package room

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/repository/connection"
	"github.com/sharetube/watchroom/internal/repository/room"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomExpired      = errors.New("room duration has ended")
	ErrNotInRoom        = errors.New("connection has not joined a room")
	ErrAlreadyInRoom    = errors.New("connection already joined a room")
	ErrJoiningIDTaken   = errors.New("room name and joining id are already in use")
	ErrInvalidAuthToken = errors.New("invalid auth token")
)

type iRoomRepo interface {
	Add(*domain.Room) error
	Get(string) (*domain.Room, error)
	Remove(*domain.Room) error
	FindByJoining(name, joiningID string, now time.Time) (*domain.Room, error)
	List() []*domain.Room
	Len() int
}

type iConnRepo interface {
	Add(connection.Conn, connection.Session) error
	RemoveByConn(connection.Conn) (connection.Session, error)
	RemoveByMemberID(string) (connection.Conn, error)
	GetSession(connection.Conn) (connection.Session, error)
	GetConn(string) (connection.Conn, error)
	GetConns([]string) []connection.Conn
}

// iDirectoryRepo is an optional shared listing of room summaries.
type iDirectoryRepo interface {
	SetSummary(context.Context, *room.SetSummaryParams) error
	RemoveSummary(context.Context, *room.RemoveSummaryParams) error
	ListSummaries(context.Context) ([]domain.RoomSummary, error)
}

type Config struct {
	MembersLimit   int
	PlaylistLimit  int
	ChatLimit      int
	AdminGrace     time.Duration
	EmptyRoomGrace time.Duration
	SweepInterval  time.Duration
	// MaxDuration caps rooms created without a pro credential. Zero disables the cap.
	MaxDuration    time.Duration
	DefaultPolicy  domain.Policy
	ProCredentials []string
	Secret         string
	// AuthTokenTTL bounds admin tokens of rooms that never expire.
	AuthTokenTTL time.Duration
}

type service struct {
	roomRepo       iRoomRepo
	connRepo       iConnRepo
	directory      iDirectoryRepo
	clock          clockwork.Clock
	logger         *slog.Logger
	membersLimit   int
	playlistLimit  int
	chatLimit      int
	adminGrace     time.Duration
	emptyRoomGrace time.Duration
	sweepInterval  time.Duration
	maxDuration    time.Duration
	defaultPolicy  domain.Policy
	proCredentials map[string]struct{}
	secret         []byte
	authTokenTTL   time.Duration
}

type Option func(*service)

// WithDirectory mirrors room summaries into d after every change.
func WithDirectory(d iDirectoryRepo) Option {
	return func(s *service) {
		s.directory = d
	}
}

func NewService(roomRepo iRoomRepo, connRepo iConnRepo, clock clockwork.Clock, cfg *Config, logger *slog.Logger, opts ...Option) *service {
	s := service{
		roomRepo:       roomRepo,
		connRepo:       connRepo,
		clock:          clock,
		logger:         logger,
		membersLimit:   cfg.MembersLimit,
		playlistLimit:  cfg.PlaylistLimit,
		chatLimit:      cfg.ChatLimit,
		adminGrace:     cfg.AdminGrace,
		emptyRoomGrace: cfg.EmptyRoomGrace,
		sweepInterval:  cfg.SweepInterval,
		maxDuration:    cfg.MaxDuration,
		defaultPolicy:  cfg.DefaultPolicy,
		proCredentials: make(map[string]struct{}, len(cfg.ProCredentials)),
		secret:         []byte(cfg.Secret),
		authTokenTTL:   cfg.AuthTokenTTL,
	}

	for _, credential := range cfg.ProCredentials {
		if credential != "" {
			s.proCredentials[credential] = struct{}{}
		}
	}

	if s.defaultPolicy == "" {
		s.defaultPolicy = domain.PolicyGrace
	}

	if s.authTokenTTL == 0 {
		s.authTokenTTL = 24 * time.Hour
	}

	for _, opt := range opts {
		opt(&s)
	}

	return &s
}

func (s service) isProCredential(credential string) bool {
	if credential == "" {
		return false
	}

	_, ok := s.proCredentials[credential]
	return ok
}
