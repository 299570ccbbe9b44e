package store

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventDedupe tracks processed webhook event ids in Redis so a redelivered
// event can be skipped by any service instance, not just the one that saw
// it first.
type EventDedupe struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewEventDedupe(client redis.UniversalClient, prefix string, ttl time.Duration) *EventDedupe {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "tecshop:payments:webhook_event"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &EventDedupe{
		client: client,
		prefix: trimmedPrefix,
		ttl:    ttl,
	}
}

// IsDuplicate records eventID and reports whether it was already seen within
// the dedupe window. The first caller for a given id gets false; every later
// caller gets true until the key expires.
func (d *EventDedupe) IsDuplicate(ctx context.Context, eventID string) (bool, error) {
	if d == nil || d.client == nil || strings.TrimSpace(eventID) == "" {
		return false, nil
	}

	firstSeen, err := d.client.SetNX(ctx, d.prefix+":"+eventID, 1, d.ttl).Result()
	if err != nil {
		return false, err
	}
	return !firstSeen, nil
}
