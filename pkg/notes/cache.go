package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/praxia-health/notes-platform/pkg/common/logger"
	"github.com/praxia-health/notes-platform/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

// Cache is a read-through cache of note records keyed by (centerID, noteID).
// Every successful write path in the service invalidates the key explicitly;
// the TTL is only a backstop. Cache failures degrade to store reads and are
// never surfaced to callers.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func noteKey(centerID string, noteID uuid.UUID) string {
	return fmt.Sprintf("note:%s:%s", centerID, noteID)
}

func (c *Cache) Get(ctx context.Context, centerID string, noteID uuid.UUID) (models.NoteRecord, bool) {
	if c == nil || c.client == nil {
		return models.NoteRecord{}, false
	}
	data, err := c.client.Get(ctx, noteKey(centerID, noteID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.WithError(err).Debug("note cache read failed")
		}
		return models.NoteRecord{}, false
	}
	var note models.NoteRecord
	if err := json.Unmarshal(data, &note); err != nil {
		return models.NoteRecord{}, false
	}
	return note, true
}

func (c *Cache) Set(ctx context.Context, note models.NoteRecord) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(note)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, noteKey(note.CenterID, note.ID), data, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).Debug("note cache write failed")
	}
}

func (c *Cache) Invalidate(ctx context.Context, centerID string, noteID uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, noteKey(centerID, noteID)).Err(); err != nil {
		logger.Log.WithError(err).Debug("note cache invalidation failed")
	}
}
