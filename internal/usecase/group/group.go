package usecase_group

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cinematch/core/internal/model"
	usecase_session "github.com/cinematch/core/internal/usecase/session"
)

var (
	ErrGroupNotFound = errors.New("no such group")
	ErrEmptyName     = errors.New("empty group name")
	ErrInternal      = errors.New("internal error")
)

type GroupRepository interface {
	Create(ctx context.Context, group model.Group) error
	AddMember(ctx context.Context, groupID model.GroupID, userID uuid.UUID) error
}

// MembershipProvider is read after a membership change, so it must see
// the change; the cache below is invalidated first.
type MembershipProvider interface {
	Members(ctx context.Context, groupID model.GroupID) ([]uuid.UUID, error)
}

type CacheInvalidator interface {
	Invalidate(groupID model.GroupID)
}

type Notifier interface {
	NotifyGroupUpdated(userIDs []uuid.UUID, message string)
}

type Usecase struct {
	groups     GroupRepository
	membership MembershipProvider
	cache      CacheInvalidator
	notifier   Notifier

	logger *slog.Logger
}

type UsecaseOption func(*Usecase)

func WithLogger(logger *slog.Logger) UsecaseOption {
	return func(u *Usecase) {
		u.logger = logger
	}
}

func New(
	groups GroupRepository,
	membership MembershipProvider,
	cache CacheInvalidator,
	notifier Notifier,
	opts ...UsecaseOption,
) *Usecase {
	u := &Usecase{
		groups:     groups,
		membership: membership,
		cache:      cache,
		notifier:   notifier,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Create registers a group with the creator as its first member.
func (u *Usecase) Create(ctx context.Context, name string, creator uuid.UUID) (model.Group, error) {
	if name == "" {
		return model.Group{}, ErrEmptyName
	}

	group := model.Group{
		ID:      model.GroupID(uuid.NewString()),
		Name:    name,
		Members: []uuid.UUID{creator},
	}
	if err := u.groups.Create(ctx, group); err != nil {
		return model.Group{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	u.logger.Info("group created",
		slog.String("group_id", string(group.ID)),
		slog.String("name", name))
	return group, nil
}

// AddMember joins a user into the group, drops the stale membership
// cache entry and tells the members over their rooms.
func (u *Usecase) AddMember(ctx context.Context, groupID model.GroupID, userID uuid.UUID) error {
	// Existence check up front: the insert itself is an upsert and
	// would silently accept an unknown group otherwise.
	if _, err := u.membership.Members(ctx, groupID); err != nil {
		if errors.Is(err, usecase_session.ErrGroupNotFound) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	if err := u.groups.AddMember(ctx, groupID, userID); err != nil {
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	u.cache.Invalidate(groupID)

	members, err := u.membership.Members(ctx, groupID)
	if err != nil {
		// The join itself landed; the push is best effort.
		u.logger.Warn("membership reread failed after join",
			slog.String("group_id", string(groupID)),
			slog.String("error", err.Error()))
		return nil
	}
	if u.notifier != nil {
		go u.notifier.NotifyGroupUpdated(members, "member joined")
	}

	return nil
}
