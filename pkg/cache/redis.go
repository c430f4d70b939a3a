package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
)

// Store is the part of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)
	SetIfEqual(ctx context.Context, guardKey, guard, key string, value any, expiration time.Duration) (bool, error)
}

// Redis shares definition lists across instances, so that an invalidation on one
// instance is seen by all of them.
type Redis struct {
	store  Store
	ttl    time.Duration
	logger ectologger.Logger
}

func NewRedis(store Store, ttl time.Duration, logger ectologger.Logger) *Redis {
	return &Redis{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *Redis) Get(ctx context.Context, tenantID string, kind models.EntityKind) ([]models.FieldDefinition, uint64, bool) {
	key := definitionsKey(tenantID, kind)

	raw, err := r.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.WithContext(ctx).WithError(err).WithField("key", key).Warn("error reading definition cache")
		}
		metrics.RecordCacheLookup("redis", false)
		return nil, r.generation(ctx, tenantID, kind), false
	}

	var definitions []models.FieldDefinition
	if err := json.Unmarshal([]byte(raw), &definitions); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("key", key).Warn("discarding unreadable definition cache entry")
		r.Invalidate(ctx, tenantID, kind)
		metrics.RecordCacheLookup("redis", false)
		return nil, r.generation(ctx, tenantID, kind), false
	}

	metrics.RecordCacheLookup("redis", true)
	return definitions, 0, true
}

// generation reads the invalidation counter of a key. An unset counter is zero.
func (r *Redis) generation(ctx context.Context, tenantID string, kind models.EntityKind) uint64 {
	key := generationKey(tenantID, kind)

	raw, err := r.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.WithContext(ctx).WithError(err).WithField("key", key).Warn("error reading definition cache generation")
		}
		return 0
	}
	generation, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("key", key).Warn("unreadable definition cache generation")
		return 0
	}
	return generation
}

func (r *Redis) Set(ctx context.Context, tenantID string, kind models.EntityKind, generation uint64, definitions []models.FieldDefinition) {
	key := definitionsKey(tenantID, kind)

	raw, err := json.Marshal(definitions)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("key", key).Warn("error encoding definition cache entry")
		return
	}

	stored, err := r.store.SetIfEqual(ctx, generationKey(tenantID, kind), strconv.FormatUint(generation, 10), key, raw, r.ttl)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("key", key).Warn("error writing definition cache")
		return
	}
	if !stored {
		r.logger.WithContext(ctx).WithField("key", key).Debug("skipping definition cache write after invalidation")
	}
}

func (r *Redis) Invalidate(ctx context.Context, tenantID string, kind models.EntityKind) {
	key := definitionsKey(tenantID, kind)
	if err := r.store.Del(ctx, key); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("key", key).Warn("error invalidating definition cache")
	}
	if _, err := r.store.Incr(ctx, generationKey(tenantID, kind)); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("key", key).Warn("error advancing definition cache generation")
	}
}
