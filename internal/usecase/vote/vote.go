package usecase_vote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/cinematch/core/internal/model"
	usecase_session "github.com/cinematch/core/internal/usecase/session"
)

var (
	ErrSessionNotFound = errors.New("no such session")
	ErrInvalidVote     = errors.New("invalid vote")
	ErrExhausted       = errors.New("candidates exhausted")
	ErrInternal        = errors.New("internal error")
)

type SessionRepository interface {
	ByGroup(ctx context.Context, groupID model.GroupID) (*model.Session, error)
	Ballot(ctx context.Context, groupID model.GroupID, userID, movieID uuid.UUID, liked model.Reaction) error
	SetWinner(ctx context.Context, groupID model.GroupID, movieID uuid.UUID) error
}

type MembershipProvider interface {
	Members(ctx context.Context, groupID model.GroupID) ([]uuid.UUID, error)
}

// Notifier fans the decision out to the event channel. Fire and forget:
// the voting caller gets the winner inline, everyone else gets it pushed.
type Notifier interface {
	NotifyWinnerDecided(userIDs []uuid.UUID, winner *model.MovieMeta)
}

type Outcome struct {
	// Set when this vote completed the unanimity rule.
	Winner *model.MovieMeta
}

type Usecase struct {
	sessions   SessionRepository
	membership MembershipProvider
	notifier   Notifier

	logger *slog.Logger

	// Serializes overwrite-then-evaluate per group so a concurrent
	// vote can't slip between another vote's write and its decision
	// check.
	mu     sync.Mutex
	groups map[model.GroupID]*sync.Mutex
}

type UsecaseOption func(*Usecase)

func WithLogger(logger *slog.Logger) UsecaseOption {
	return func(u *Usecase) {
		u.logger = logger
	}
}

func New(
	sessions SessionRepository,
	membership MembershipProvider,
	notifier Notifier,
	opts ...UsecaseOption,
) *Usecase {
	u := &Usecase{
		sessions:   sessions,
		membership: membership,
		notifier:   notifier,
		logger:     slog.Default(),
		groups:     make(map[model.GroupID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Usecase) groupLock(groupID model.GroupID) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()

	lock, ok := u.groups[groupID]
	if !ok {
		lock = &sync.Mutex{}
		u.groups[groupID] = lock
	}
	return lock
}

// Submit applies one ballot and evaluates the decision rule.
//
// The winner, if any, is returned inline; other members are notified
// through the Notifier. Once the session is decided every later vote
// fails with ErrInvalidVote. ErrExhausted reports the no-winner,
// nothing-left-to-vote-on terminal state.
func (u *Usecase) Submit(ctx context.Context, groupID model.GroupID, userID, movieID uuid.UUID, liked model.Reaction) (Outcome, error) {
	lock := u.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	s, err := u.sessions.ByGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, usecase_session.ErrSessionNotFound) {
			return Outcome{}, ErrSessionNotFound
		}
		return Outcome{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	if s.Decided() {
		return Outcome{}, fmt.Errorf("%w: session already decided", ErrInvalidVote)
	}
	if !s.HasCandidate(movieID) {
		return Outcome{}, fmt.Errorf("%w: movie %s is not a candidate", ErrInvalidVote, movieID)
	}

	if err := u.sessions.Ballot(ctx, groupID, userID, movieID, liked); err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	s.SetBallot(userID, movieID, liked)

	members, err := u.membership.Members(ctx, groupID)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	winner := decide(s, members)
	if winner != nil {
		if err := u.sessions.SetWinner(ctx, groupID, winner.ID); err != nil {
			return Outcome{}, fmt.Errorf("%w: %w", ErrInternal, err)
		}
		s.Winner = winner

		u.logger.Info("winner decided",
			slog.String("group_id", string(groupID)),
			slog.String("movie_id", winner.ID.String()),
			slog.String("title", winner.Title))

		if u.notifier != nil {
			go u.notifier.NotifyWinnerDecided(members, winner)
		}
		return Outcome{Winner: winner}, nil
	}

	if exhausted(s, members) {
		return Outcome{}, ErrExhausted
	}

	return Outcome{}, nil
}

// decide scans the candidate queue strictly in order and returns the
// first candidate every member has liked. Queue position, not ballot
// arrival time, breaks simultaneous unanimity.
func decide(s *model.Session, members []uuid.UUID) *model.MovieMeta {
	if len(members) == 0 {
		return nil
	}
	for _, mm := range s.Candidates {
		unanimous := true
		for _, userID := range members {
			liked, ok := s.Ballot(userID, mm.ID)
			if !ok || !liked {
				unanimous = false
				break
			}
		}
		if unanimous {
			return mm
		}
	}
	return nil
}

// exhausted reports whether every member has balloted every candidate
// without reaching unanimity anywhere.
func exhausted(s *model.Session, members []uuid.UUID) bool {
	if len(members) == 0 {
		return false
	}
	for _, mm := range s.Candidates {
		for _, userID := range members {
			if _, ok := s.Ballot(userID, mm.ID); !ok {
				return false
			}
		}
	}
	return true
}
