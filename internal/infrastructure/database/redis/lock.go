package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeConflict, "failed to acquire lock")
	ErrLockNotHeld     = errors.New(errors.ErrCodeConflict, "lock not held by this owner")
)

type LockOption func(*lockConfig)

func WithLockTTL(ttl time.Duration) LockOption {
	return func(c *lockConfig) { c.ttl = ttl }
}

func WithRetryDelay(delay time.Duration) LockOption {
	return func(c *lockConfig) { c.retryDelay = delay }
}

func WithRetryCount(count int) LockOption {
	return func(c *lockConfig) { c.retryCount = count }
}

func WithWatchdogInterval(interval time.Duration) LockOption {
	return func(c *lockConfig) { c.watchdogInterval = interval }
}

type lockConfig struct {
	ttl              time.Duration
	retryDelay       time.Duration
	retryCount       int
	watchdogInterval time.Duration
}

// Locker hands out single-owner mutexes keyed by name. The lock is kept
// alive by a watchdog until released, so a crashed holder frees the key
// after one TTL.
type Locker struct {
	client *Client
	log    logging.Logger
	config lockConfig
}

func NewLocker(client *Client, log logging.Logger, opts ...LockOption) *Locker {
	cfg := lockConfig{
		ttl:        10 * time.Second,
		retryDelay: 50 * time.Millisecond,
		retryCount: 100,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.watchdogInterval == 0 {
		cfg.watchdogInterval = cfg.ttl / 3
	}
	return &Locker{client: client, log: log.Named("lock"), config: cfg}
}

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Lock blocks until key is held or ctx ends. The returned release is safe to
// call more than once.
func (l *Locker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	m := &mutex{
		client: l.client,
		key:    l.client.Key("lock", key),
		value:  uuid.New().String(),
		config: l.config,
		logger: l.log,
	}

	for i := 0; i < l.config.retryCount; i++ {
		ok, err := l.client.SetNX(ctx, m.key, m.value, l.config.ttl).Result()
		if err != nil && err != redis.Nil {
			return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to set lock")
		}
		if ok {
			m.startWatchdog()
			return m.unlock, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.config.retryDelay):
		}
	}
	return nil, ErrLockNotAcquired.WithDetail(key)
}

type mutex struct {
	client *Client
	key    string
	value  string
	config lockConfig
	logger logging.Logger

	once           sync.Once
	watchdogCancel context.CancelFunc
	watchdogDone   chan struct{}
}

func (m *mutex) unlock(ctx context.Context) error {
	var err error
	m.once.Do(func() {
		m.stopWatchdog()
		var res interface{}
		res, err = unlockScript.Run(ctx, m.client.GetUnderlyingClient(), []string{m.key}, m.value).Result()
		if err != nil {
			err = errors.Wrap(err, errors.ErrCodeCacheError, "failed to release lock")
			return
		}
		if n, _ := res.(int64); n == 0 {
			err = ErrLockNotHeld.WithDetail(m.key)
		}
	})
	return err
}

func (m *mutex) extend(ctx context.Context, ttl time.Duration) (bool, error) {
	res, err := extendScript.Run(ctx, m.client.GetUnderlyingClient(), []string{m.key}, m.value, ttl.Milliseconds()).Result()
	if err != nil {
		return false, err
	}
	n, _ := res.(int64)
	return n == 1, nil
}

func (m *mutex) startWatchdog() {
	ctx, cancel := context.WithCancel(context.Background())
	m.watchdogCancel = cancel
	m.watchdogDone = make(chan struct{})

	go runWatchdog(ctx, m.extend, m.config.watchdogInterval, m.config.ttl, m.logger, m.watchdogDone)
}

func (m *mutex) stopWatchdog() {
	if m.watchdogCancel != nil {
		m.watchdogCancel()
		<-m.watchdogDone
		m.watchdogCancel = nil
	}
}

func runWatchdog(ctx context.Context, extendFn func(context.Context, time.Duration) (bool, error), interval time.Duration, ttl time.Duration, log logging.Logger, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := extendFn(ctx, ttl)
			if err != nil {
				if ctx.Err() == nil {
					log.Error("Watchdog failed to extend lock", logging.Err(err))
				}
				return
			}
			if !ok {
				log.Warn("Watchdog lost lock")
				return
			}
		}
	}
}

//Personal.AI order the ending
