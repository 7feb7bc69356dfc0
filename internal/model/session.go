package model

import "github.com/google/uuid"

// Liked / disliked ballot value.
type Reaction = bool

const (
	LikeReaction    Reaction = true
	DislikeReaction Reaction = false
)

type BallotKey struct {
	UserID  uuid.UUID
	MovieID uuid.UUID
}

// Session is one group's active matching round: the fixed candidate
// queue, the accumulated ballots and, once decided, the winner.
type Session struct {
	GroupID GroupID

	// Queue order is the voting order. Fixed for the session's life,
	// never re-sorted.
	Candidates []*MovieMeta

	// One ballot per (user, movie). Resubmission overwrites.
	Ballots map[BallotKey]Reaction

	// Nil until decided, immutable afterwards.
	Winner *MovieMeta
}

func NewSession(groupID GroupID, candidates []*MovieMeta) *Session {
	return &Session{
		GroupID:    groupID,
		Candidates: candidates,
		Ballots:    make(map[BallotKey]Reaction),
	}
}

func (s *Session) Decided() bool {
	return s.Winner != nil
}

func (s *Session) HasCandidate(movieID uuid.UUID) bool {
	return s.Candidate(movieID) != nil
}

func (s *Session) Candidate(movieID uuid.UUID) *MovieMeta {
	for _, mm := range s.Candidates {
		if mm.ID == movieID {
			return mm
		}
	}
	return nil
}

func (s *Session) Ballot(userID, movieID uuid.UUID) (Reaction, bool) {
	r, ok := s.Ballots[BallotKey{UserID: userID, MovieID: movieID}]
	return r, ok
}

func (s *Session) SetBallot(userID, movieID uuid.UUID, liked Reaction) {
	if s.Ballots == nil {
		s.Ballots = make(map[BallotKey]Reaction)
	}
	s.Ballots[BallotKey{UserID: userID, MovieID: movieID}] = liked
}
