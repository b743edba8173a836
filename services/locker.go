package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"food-ordering/config"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// KeyLocker serializes work on one key. Callers must not rely on it for
// correctness; stores enforce uniqueness on their own.
type KeyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// RedisLocker obtains a redislock per key. When the lock cannot be obtained
// it logs and lets the caller proceed unlocked.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	logger *logrus.Logger
}

func NewRedisLocker(client *redislock.Client, ttl time.Duration, logger *logrus.Logger) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, "lock:"+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		fields := logrus.Fields{"field": "RedisLocker.Lock", "key": key}
		if errors.Is(err, redislock.ErrNotObtained) {
			l.logger.WithFields(fields).Warn("could not obtain redis lock; proceeding without redis lock")
		} else {
			l.logger.WithFields(fields).Warn("error obtaining redis lock; proceeding without redis lock: " + err.Error())
		}
		return func() {}, nil
	}
	return func() {
		// release with a fresh context so a cancelled request still frees the key
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			config.LogError(l.logger, "services/locker.go", "RedisLocker.Lock", "release", key, err)
		}
	}, nil
}

// LocalLocker is an in-process KeyLocker.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	ll, ok := l.locks[key]
	if !ok {
		ll = &localLock{ch: make(chan struct{}, 1)}
		l.locks[key] = ll
	}
	ll.refs++
	l.mu.Unlock()

	select {
	case ll.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, ll)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-ll.ch
			l.release(key, ll)
		})
	}, nil
}

func (l *LocalLocker) release(key string, ll *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ll.refs--
	if ll.refs == 0 {
		delete(l.locks, key)
	}
}
