package infra_membership_cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-redis/redis"
	"github.com/google/uuid"

	"github.com/cinematch/core/internal/model"
)

// Source is the authoritative membership lookup, normally the postgres
// group driver.
type Source interface {
	Members(ctx context.Context, groupID model.GroupID) ([]uuid.UUID, error)
}

// Cache is a read-through membership cache. Membership changes rarely
// within a voting session while the vote processor reads it on every
// ballot.
type Cache struct {
	client *redis.Client
	source Source
	key    string
	ttl    time.Duration

	logger *slog.Logger
}

func New(client *redis.Client, source Source, key string, ttl time.Duration) *Cache {
	if key == "" {
		key = "membership"
	}
	return &Cache{
		client: client,
		source: source,
		key:    key,
		ttl:    ttl,
		logger: slog.Default(),
	}
}

func (c *Cache) Members(ctx context.Context, groupID model.GroupID) ([]uuid.UUID, error) {
	fullKey := c.fullKey(groupID)

	val, err := c.client.Get(fullKey).Result()
	if err == nil {
		var members []uuid.UUID
		if err := json.Unmarshal([]byte(val), &members); err == nil {
			return members, nil
		}
		// Unreadable entry, fall through to the source.
		c.client.Del(fullKey)
	} else if err != redis.Nil {
		c.logger.Warn("membership cache read failed",
			slog.String("group_id", string(groupID)),
			slog.String("error", err.Error()))
	}

	members, err := c.source.Members(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(members); err == nil {
		if err := c.client.Set(fullKey, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("membership cache write failed",
				slog.String("group_id", string(groupID)),
				slog.String("error", err.Error()))
		}
	}

	return members, nil
}

func (c *Cache) Invalidate(groupID model.GroupID) {
	c.client.Del(c.fullKey(groupID))
}

func (c *Cache) fullKey(groupID model.GroupID) string {
	return c.key + ":" + string(groupID)
}
