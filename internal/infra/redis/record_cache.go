package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"counseling-intake/internal/app"
	"counseling-intake/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// RecordCache caches respondent records in Redis and falls back to the wrapped store on a miss.
// Each record is stored as JSON: SET intake:respondent:{id} {json} EX ttl
type RecordCache struct {
	app.RecordStore

	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRecordCache(client *redis.Client, store app.RecordStore, ttl time.Duration) *RecordCache {
	return &RecordCache{
		RecordStore: store,
		client:      client,
		ttl:         ttl,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *RecordCache) GetRespondent(ctx context.Context, id string) (domain.Respondent, error) {
	if r, ok := c.cached(ctx, id); ok {
		return r, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if r, ok := c.cached(ctx, id); ok {
			return r, nil
		}

		r, err := c.RecordStore.GetRespondent(ctx, id)
		if err != nil {
			return domain.Respondent{}, err
		}

		if data, err := json.Marshal(r); err == nil {
			_ = c.client.Set(ctx, c.key(id), data, c.ttlWithJitter()).Err()
		}
		return r, nil
	})
	if err != nil {
		return domain.Respondent{}, err
	}
	return result.(domain.Respondent), nil
}

func (c *RecordCache) SaveScore(ctx context.Context, respondentID string, score domain.Score) error {
	err := c.RecordStore.SaveScore(ctx, respondentID, score)
	_ = c.client.Del(ctx, c.key(respondentID)).Err()
	return err
}

func (c *RecordCache) ClearAll(ctx context.Context) error {
	if err := c.RecordStore.ClearAll(ctx); err != nil {
		return err
	}
	iter := c.client.Scan(ctx, 0, c.key("*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return c.client.Del(ctx, keys...).Err()
	}
	return nil
}

func (c *RecordCache) cached(ctx context.Context, id string) (domain.Respondent, bool) {
	// redis.Nil and connection errors both fall through to the backing store
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		return domain.Respondent{}, false
	}
	var r domain.Respondent
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.Respondent{}, false
	}
	if r.Scores == nil {
		r.Scores = map[string]domain.Score{}
	}
	return r, true
}

func (c *RecordCache) key(id string) string {
	return "intake:respondent:" + id
}

func (c *RecordCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
