package usecase_session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cinematch/core/internal/model"
)

var (
	ErrGroupNotFound   = errors.New("no such group")
	ErrSessionNotFound = errors.New("no such session")
	ErrSessionExists   = errors.New("session already exists")
	ErrEmptyQueue      = errors.New("empty candidate queue")
	ErrInternal        = errors.New("internal error")
)

type SessionRepository interface {
	Create(ctx context.Context, s *model.Session) error
	ByGroup(ctx context.Context, groupID model.GroupID) (*model.Session, error)
}

type CandidateSource interface {
	CandidatesForGroup(ctx context.Context, groupID model.GroupID, limit int) ([]*model.MovieMeta, error)
}

type MembershipProvider interface {
	Members(ctx context.Context, groupID model.GroupID) ([]uuid.UUID, error)
}

type Usecase struct {
	sessions   SessionRepository
	candidates CandidateSource
	membership MembershipProvider

	queueSize int
	logger    *slog.Logger
}

type UsecaseOption func(*Usecase)

func WithLogger(logger *slog.Logger) UsecaseOption {
	return func(u *Usecase) {
		u.logger = logger
	}
}

func New(
	sessions SessionRepository,
	candidates CandidateSource,
	membership MembershipProvider,
	queueSize int,
	opts ...UsecaseOption,
) *Usecase {
	if queueSize <= 0 {
		queueSize = 20 /* default */
	}
	u := &Usecase{
		sessions:   sessions,
		candidates: candidates,
		membership: membership,
		queueSize:  queueSize,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// CreateOrGet returns the group's active session, starting one on first
// call. A concurrent or repeated call never refetches candidates nor
// resets the ballot ledger.
func (u *Usecase) CreateOrGet(ctx context.Context, groupID model.GroupID) (*model.Session, error) {
	s, err := u.sessions.ByGroup(ctx, groupID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	// Membership lookup doubles as group existence check.
	if _, err := u.membership.Members(ctx, groupID); err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	queue, err := u.candidates.CandidatesForGroup(ctx, groupID, u.queueSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if len(queue) == 0 {
		return nil, ErrEmptyQueue
	}

	s = model.NewSession(groupID, queue)
	if err := u.sessions.Create(ctx, s); err != nil {
		if errors.Is(err, ErrSessionExists) {
			// Lost the creation race. The existing session wins.
			return u.sessions.ByGroup(ctx, groupID)
		}
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	u.logger.Info("session started",
		slog.String("group_id", string(groupID)),
		slog.Int("candidates", len(queue)))

	return s, nil
}

func (u *Usecase) Get(ctx context.Context, groupID model.GroupID) (*model.Session, error) {
	s, err := u.sessions.ByGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return s, nil
}

func (u *Usecase) Members(ctx context.Context, groupID model.GroupID) ([]uuid.UUID, error) {
	members, err := u.membership.Members(ctx, groupID)
	if err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return members, nil
}

func (u *Usecase) IsMember(ctx context.Context, groupID model.GroupID, userID uuid.UUID) (bool, error) {
	members, err := u.Members(ctx, groupID)
	if err != nil {
		return false, err
	}
	for _, id := range members {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}
