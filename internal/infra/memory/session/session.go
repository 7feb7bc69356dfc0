package infra_memory_session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/cinematch/core/internal/model"
	usecase_session "github.com/cinematch/core/internal/usecase/session"
)

var ErrWinnerAlreadySet = errors.New("winner already set")

// Store keeps sessions in memory. Used by unit tests and by single
// process setups that don't need durability.
type Store struct {
	mu       sync.RWMutex
	sessions map[model.GroupID]*model.Session
}

func New() *Store {
	return &Store{
		sessions: make(map[model.GroupID]*model.Session),
	}
}

func (st *Store) Create(_ context.Context, s *model.Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[s.GroupID]; ok {
		return usecase_session.ErrSessionExists
	}
	st.sessions[s.GroupID] = snapshot(s)
	return nil
}

func (st *Store) ByGroup(_ context.Context, groupID model.GroupID) (*model.Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[groupID]
	if !ok {
		return nil, usecase_session.ErrSessionNotFound
	}
	return snapshot(s), nil
}

func (st *Store) Ballot(_ context.Context, groupID model.GroupID, userID, movieID uuid.UUID, liked model.Reaction) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[groupID]
	if !ok {
		return usecase_session.ErrSessionNotFound
	}
	s.SetBallot(userID, movieID, liked)
	return nil
}

func (st *Store) SetWinner(_ context.Context, groupID model.GroupID, movieID uuid.UUID) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[groupID]
	if !ok {
		return usecase_session.ErrSessionNotFound
	}
	if s.Winner != nil {
		if s.Winner.ID == movieID {
			return nil
		}
		return ErrWinnerAlreadySet
	}

	winner := s.Candidate(movieID)
	if winner == nil {
		return usecase_session.ErrSessionNotFound
	}
	s.Winner = winner
	return nil
}

// snapshot detaches callers from the stored session so no client
// mutates shared state directly.
func snapshot(s *model.Session) *model.Session {
	out := model.NewSession(s.GroupID, append([]*model.MovieMeta(nil), s.Candidates...))
	for k, v := range s.Ballots {
		out.Ballots[k] = v
	}
	out.Winner = s.Winner
	return out
}
