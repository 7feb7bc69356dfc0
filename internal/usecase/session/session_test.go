package usecase_session

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinematch/core/internal/model"
)

type memoryRepo struct {
	sessions map[model.GroupID]*model.Session
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{sessions: make(map[model.GroupID]*model.Session)}
}

func (r *memoryRepo) Create(_ context.Context, s *model.Session) error {
	if _, ok := r.sessions[s.GroupID]; ok {
		return ErrSessionExists
	}
	r.sessions[s.GroupID] = s
	return nil
}

func (r *memoryRepo) ByGroup(_ context.Context, groupID model.GroupID) (*model.Session, error) {
	s, ok := r.sessions[groupID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

type countingSource struct {
	queue []*model.MovieMeta
	calls int
}

func (src *countingSource) CandidatesForGroup(_ context.Context, _ model.GroupID, limit int) ([]*model.MovieMeta, error) {
	src.calls++
	if len(src.queue) > limit {
		return src.queue[:limit], nil
	}
	return src.queue, nil
}

type fakeMembership struct {
	members map[model.GroupID][]uuid.UUID
}

func (m *fakeMembership) Members(_ context.Context, groupID model.GroupID) ([]uuid.UUID, error) {
	members, ok := m.members[groupID]
	if !ok {
		return nil, ErrGroupNotFound
	}
	return members, nil
}

func queueOf(n int) []*model.MovieMeta {
	queue := make([]*model.MovieMeta, n)
	for i := range queue {
		queue[i] = &model.MovieMeta{ID: uuid.New(), Title: "movie"}
	}
	return queue
}

func TestCreateOrGet(t *testing.T) {
	ctx := context.Background()
	groupID := model.GroupID("g1")

	t.Run("starts a session on first call", func(t *testing.T) {
		source := &countingSource{queue: queueOf(3)}
		membership := &fakeMembership{members: map[model.GroupID][]uuid.UUID{groupID: {uuid.New()}}}
		uc := New(newMemoryRepo(), source, membership, 20)

		s, err := uc.CreateOrGet(ctx, groupID)
		require.NoError(t, err)
		assert.Equal(t, groupID, s.GroupID)
		assert.Len(t, s.Candidates, 3)
		assert.Equal(t, 1, source.calls)
	})

	t.Run("is idempotent: no refetch, ballots kept", func(t *testing.T) {
		source := &countingSource{queue: queueOf(3)}
		membership := &fakeMembership{members: map[model.GroupID][]uuid.UUID{groupID: {uuid.New()}}}
		repo := newMemoryRepo()
		uc := New(repo, source, membership, 20)

		first, err := uc.CreateOrGet(ctx, groupID)
		require.NoError(t, err)

		userID := uuid.New()
		first.SetBallot(userID, first.Candidates[0].ID, model.LikeReaction)

		second, err := uc.CreateOrGet(ctx, groupID)
		require.NoError(t, err)
		assert.Equal(t, 1, source.calls, "candidates fetched once")
		assert.Len(t, second.Ballots, 1, "ledger survives resume")

		// Queue order is fixed across resumes.
		for i := range first.Candidates {
			assert.Equal(t, first.Candidates[i].ID, second.Candidates[i].ID)
		}
	})

	t.Run("unknown group", func(t *testing.T) {
		source := &countingSource{queue: queueOf(3)}
		uc := New(newMemoryRepo(), source, &fakeMembership{members: map[model.GroupID][]uuid.UUID{}}, 20)

		_, err := uc.CreateOrGet(ctx, "nope")
		assert.ErrorIs(t, err, ErrGroupNotFound)
		assert.Zero(t, source.calls)
	})

	t.Run("empty candidate queue", func(t *testing.T) {
		source := &countingSource{}
		membership := &fakeMembership{members: map[model.GroupID][]uuid.UUID{groupID: {uuid.New()}}}
		uc := New(newMemoryRepo(), source, membership, 20)

		_, err := uc.CreateOrGet(ctx, groupID)
		assert.ErrorIs(t, err, ErrEmptyQueue)
	})

	t.Run("queue size caps the fetch", func(t *testing.T) {
		source := &countingSource{queue: queueOf(30)}
		membership := &fakeMembership{members: map[model.GroupID][]uuid.UUID{groupID: {uuid.New()}}}
		uc := New(newMemoryRepo(), source, membership, 5)

		s, err := uc.CreateOrGet(ctx, groupID)
		require.NoError(t, err)
		assert.Len(t, s.Candidates, 5)
	})
}

func TestGet(t *testing.T) {
	ctx := context.Background()

	uc := New(newMemoryRepo(), &countingSource{}, &fakeMembership{}, 20)

	_, err := uc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestIsMember(t *testing.T) {
	ctx := context.Background()
	groupID := model.GroupID("g1")
	userID := uuid.New()

	membership := &fakeMembership{members: map[model.GroupID][]uuid.UUID{groupID: {userID}}}
	uc := New(newMemoryRepo(), &countingSource{}, membership, 20)

	ok, err := uc.IsMember(ctx, groupID, userID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = uc.IsMember(ctx, groupID, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = uc.IsMember(ctx, "nope", userID)
	assert.ErrorIs(t, err, ErrGroupNotFound)
}
