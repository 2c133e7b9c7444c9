package delegates

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/logging"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

// cachedDelegate is the Redis value. Absent records a negative lookup so
// that strangers probing an owner do not reach the database every time.
type cachedDelegate struct {
	Absent   bool             `json:"absent,omitempty"`
	Delegate *models.Delegate `json:"delegate,omitempty"`
}

// storeIfCurrent writes KEYS[1] only while the generation in KEYS[2] still
// equals ARGV[1], so a load that raced with an invalidation is dropped.
var storeIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ttl)
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// CachedRepository is a read-through cache over another Repository.
// Concurrent misses for the same key are collapsed into one load. Writes go
// to the underlying repository first, then bump the key's generation and
// drop the cached value; a load started under an older generation is never
// written back.
type CachedRepository struct {
	next   Repository
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	group  singleflight.Group
	logger logging.Logger
}

func NewCachedRepository(next Repository, client redis.UniversalClient, ttl time.Duration, logger logging.Logger) *CachedRepository {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &CachedRepository{
		next:   next,
		client: client,
		prefix: "estatekeeper:delegate:",
		ttl:    ttl,
		logger: logger.With("module", "delegate-cache"),
	}
}

func (c *CachedRepository) key(delegateID, ownerID string) string {
	return c.prefix + key(delegateID, ownerID)
}

func genKey(k string) string {
	return k + ":gen"
}

// genTTL outlives any cached value so an in-flight load always sees the
// bump made by a concurrent write.
func (c *CachedRepository) genTTL() time.Duration {
	return c.ttl + time.Minute
}

func (c *CachedRepository) Get(ctx context.Context, delegateID, ownerID string) (*models.Delegate, error) {
	k := c.key(delegateID, ownerID)

	if v, ok := c.lookup(ctx, k); ok {
		return v.result()
	}

	gen, genOK := c.generation(ctx, k)

	// Callers arriving after an invalidation must not share a load that
	// started before it.
	res, err, _ := c.group.Do(k+"@"+gen, func() (any, error) {
		d, err := c.next.Get(ctx, delegateID, ownerID)
		var v cachedDelegate
		switch {
		case errors.Is(err, common.ErrNotFound):
			v = cachedDelegate{Absent: true}
		case err != nil:
			return nil, err
		default:
			v = cachedDelegate{Delegate: d}
		}
		if genOK {
			c.store(ctx, k, gen, v)
		}
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(cachedDelegate).result()
}

func (v cachedDelegate) result() (*models.Delegate, error) {
	if v.Absent || v.Delegate == nil {
		return nil, common.ErrNotFound
	}
	return copyDelegate(*v.Delegate), nil
}

func (c *CachedRepository) lookup(ctx context.Context, k string) (cachedDelegate, bool) {
	b, err := c.client.Get(ctx, k).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn(ctx, "delegate cache read failed", "key", k, "error", err)
		}
		return cachedDelegate{}, false
	}
	var v cachedDelegate
	if err := json.Unmarshal(b, &v); err != nil {
		c.logger.Warn(ctx, "delegate cache entry corrupt", "key", k, "error", err)
		return cachedDelegate{}, false
	}
	return v, true
}

// generation returns the current write generation of k. ok is false when
// Redis cannot tell, in which case the loaded value is not cached.
func (c *CachedRepository) generation(ctx context.Context, k string) (gen string, ok bool) {
	gen, err := c.client.Get(ctx, genKey(k)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "0", true
	case err != nil:
		c.logger.Warn(ctx, "delegate cache generation read failed", "key", k, "error", err)
		return "?", false
	}
	return gen, true
}

func (c *CachedRepository) store(ctx context.Context, k, gen string, v cachedDelegate) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	keys := []string{k, genKey(k)}
	if err := storeIfCurrent.Run(ctx, c.client, keys, gen, b, c.ttl.Milliseconds()).Err(); err != nil {
		c.logger.Warn(ctx, "delegate cache write failed", "key", k, "error", err)
	}
}

// Invalidate drops the cached entry for (delegateID, ownerID) and bumps its
// generation so that loads still in flight cannot repopulate it.
func (c *CachedRepository) Invalidate(ctx context.Context, delegateID, ownerID string) error {
	k := c.key(delegateID, ownerID)
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, genKey(k))
		p.PExpire(ctx, genKey(k), c.genTTL())
		p.Del(ctx, k)
		return nil
	})
	return err
}

func (c *CachedRepository) Upsert(ctx context.Context, d *models.Delegate) error {
	if err := c.next.Upsert(ctx, d); err != nil {
		return err
	}
	if err := c.Invalidate(ctx, d.ID, d.OwnerID); err != nil {
		c.logger.Warn(ctx, "delegate cache invalidation failed", "delegate_id", d.ID, "error", err)
	}
	return nil
}

func (c *CachedRepository) Delete(ctx context.Context, delegateID, ownerID string) error {
	if err := c.next.Delete(ctx, delegateID, ownerID); err != nil {
		return err
	}
	if err := c.Invalidate(ctx, delegateID, ownerID); err != nil {
		c.logger.Warn(ctx, "delegate cache invalidation failed", "delegate_id", delegateID, "error", err)
	}
	return nil
}

func (c *CachedRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Delegate, error) {
	return c.next.ListByOwner(ctx, ownerID)
}
