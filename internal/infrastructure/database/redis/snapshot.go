package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/IPFiling-Assistant/internal/application/session"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// SnapshotStore keeps session snapshots under <prefix>session:<id>. Each save
// refreshes the TTL, so idle sessions expire.
type SnapshotStore struct {
	client *Client
	ttl    time.Duration
}

func NewSnapshotStore(client *Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

func (s *SnapshotStore) key(id string) string { return s.client.Key("session", id) }

func (s *SnapshotStore) Save(ctx context.Context, snap *session.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode snapshot")
	}
	if err := s.client.Set(ctx, s.key(snap.ID), data, s.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to save snapshot")
	}
	return nil
}

func (s *SnapshotStore) Load(ctx context.Context, id string) (*session.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, errors.NotFound("session snapshot not found").WithDetail(id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to load snapshot")
	}
	var snap session.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode snapshot")
	}
	return &snap, nil
}

func (s *SnapshotStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to delete snapshot")
	}
	return nil
}

var _ session.SnapshotStore = (*SnapshotStore)(nil)

//Personal.AI order the ending
