package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"counseling-intake/internal/app"
	"counseling-intake/internal/domain"
	"golang.org/x/sync/singleflight"
)

// RecordCache caches respondent reads with TTL in front of a slower record store.
// Writes go straight through and invalidate the cached entry.
type RecordCache struct {
	app.RecordStore

	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedRespondent
}

type cachedRespondent struct {
	respondent domain.Respondent
	expiresAt  time.Time
}

func NewRecordCache(store app.RecordStore, ttl time.Duration) *RecordCache {
	return &RecordCache{
		RecordStore: store,
		ttl:         ttl,
		clock:       time.Now,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:       make(map[string]cachedRespondent),
	}
}

func (c *RecordCache) GetRespondent(ctx context.Context, id string) (domain.Respondent, error) {
	if r, ok := c.lookup(id); ok {
		return r, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		// another caller may have filled it meanwhile
		if r, ok := c.lookup(id); ok {
			return r, nil
		}

		r, err := c.RecordStore.GetRespondent(ctx, id)
		if err != nil {
			return domain.Respondent{}, err
		}

		c.mu.Lock()
		c.cache[id] = cachedRespondent{
			respondent: r,
			expiresAt:  c.clock().Add(c.ttlWithJitterLocked()),
		}
		c.mu.Unlock()
		return r, nil
	})
	if err != nil {
		return domain.Respondent{}, err
	}
	return clone(result.(domain.Respondent)), nil
}

func (c *RecordCache) SaveScore(ctx context.Context, respondentID string, score domain.Score) error {
	err := c.RecordStore.SaveScore(ctx, respondentID, score)
	c.invalidate(respondentID)
	return err
}

func (c *RecordCache) ClearAll(ctx context.Context) error {
	err := c.RecordStore.ClearAll(ctx)
	c.mu.Lock()
	c.cache = make(map[string]cachedRespondent)
	c.mu.Unlock()
	return err
}

func (c *RecordCache) lookup(id string) (domain.Respondent, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[id]
	if !ok || !entry.expiresAt.After(now) {
		return domain.Respondent{}, false
	}
	return clone(entry.respondent), true
}

func (c *RecordCache) invalidate(id string) {
	c.mu.Lock()
	delete(c.cache, id)
	c.mu.Unlock()
}

func (c *RecordCache) ttlWithJitterLocked() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
