package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/IPFiling-Assistant/internal/domain/filing"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
)

// CachedApplicationStore is a read-through cache in front of an
// ApplicationStore. Single reads are cached; writes invalidate. Cache
// failures fall back to the backing store.
type CachedApplicationStore struct {
	next   filing.ApplicationStore
	client *Client
	ttl    time.Duration
	logger logging.Logger
	group  singleflight.Group
}

func NewCachedApplicationStore(next filing.ApplicationStore, client *Client, ttl time.Duration, log logging.Logger) *CachedApplicationStore {
	return &CachedApplicationStore{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: log.Named("app-cache"),
	}
}

func (c *CachedApplicationStore) key(id string) string { return c.client.Key("application", id) }

// jitterTTL spreads expiry by +/- 10%.
func (c *CachedApplicationStore) jitterTTL() time.Duration {
	if c.ttl == 0 {
		return 0
	}
	jitter := float64(c.ttl) * 0.1 * (rand.Float64()*2 - 1)
	return c.ttl + time.Duration(jitter)
}

func (c *CachedApplicationStore) Insert(ctx context.Context, app *filing.Application) (string, error) {
	return c.next.Insert(ctx, app)
}

func (c *CachedApplicationStore) Update(ctx context.Context, app *filing.Application) (*filing.Application, error) {
	stored, err := c.next.Update(ctx, app)
	c.invalidate(ctx, app.ID)
	return stored, err
}

func (c *CachedApplicationStore) FetchByID(ctx context.Context, id string) (*filing.Application, error) {
	if app, ok := c.get(ctx, id); ok {
		return app, nil
	}

	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		app, err := c.next.FetchByID(ctx, id)
		if err != nil {
			return nil, err
		}
		c.set(ctx, app)
		return app, nil
	})
	if err != nil {
		return nil, err
	}
	// Shared results are copied so callers never alias each other.
	return clone(v.(*filing.Application)), nil
}

func (c *CachedApplicationStore) FetchAllByOwner(ctx context.Context, ownerID string) ([]*filing.Application, error) {
	return c.next.FetchAllByOwner(ctx, ownerID)
}

func (c *CachedApplicationStore) Delete(ctx context.Context, id string) error {
	err := c.next.Delete(ctx, id)
	c.invalidate(ctx, id)
	return err
}

func (c *CachedApplicationStore) get(ctx context.Context, id string) (*filing.Application, bool) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Application cache read failed", logging.String(logging.FieldRecordID, id), logging.Err(err))
		}
		return nil, false
	}
	var app filing.Application
	if err := json.Unmarshal(data, &app); err != nil {
		c.logger.Warn("Dropping undecodable cache entry", logging.String(logging.FieldRecordID, id), logging.Err(err))
		c.invalidate(ctx, id)
		return nil, false
	}
	return &app, true
}

func (c *CachedApplicationStore) set(ctx context.Context, app *filing.Application) {
	data, err := json.Marshal(app)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(app.ID), data, c.jitterTTL()).Err(); err != nil {
		c.logger.Warn("Application cache write failed", logging.String(logging.FieldRecordID, app.ID), logging.Err(err))
	}
}

func (c *CachedApplicationStore) invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		c.logger.Warn("Application cache invalidation failed", logging.String(logging.FieldRecordID, id), logging.Err(err))
	}
}

func clone(app *filing.Application) *filing.Application {
	cp := *app
	cp.Record = append(json.RawMessage(nil), app.Record...)
	cp.Uploads = append([]filing.UploadedFile{}, app.Uploads...)
	return &cp
}

var _ filing.ApplicationStore = (*CachedApplicationStore)(nil)

//Personal.AI order the ending
