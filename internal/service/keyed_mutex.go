package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// Interval for cleaning up stale mutexes
	mutexCleanupInterval = 10 * time.Minute

	// How long a mutex must be unused before cleanup
	mutexStaleThreshold = 10 * time.Minute
)

// mutexWithTimestamp tracks mutex usage for cleanup
type mutexWithTimestamp struct {
	mu       sync.Mutex
	lastUsed atomic.Int64 // Unix timestamp
}

// KeyedMutex hands out one mutex per key and forgets keys that have not been
// used for a while. Call Stop during shutdown.
type KeyedMutex struct {
	locks sync.Map // map[string]*mutexWithTimestamp
	log   *logrus.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  atomic.Bool
}

func NewKeyedMutex(log *logrus.Logger) *KeyedMutex {
	k := &KeyedMutex{
		log:      log,
		stopChan: make(chan struct{}),
	}

	k.wg.Add(1)
	go k.cleanupLoop()

	return k
}

// Lock blocks until the mutex for key is held and returns its unlock func.
// A mutex that was dropped from the map while we waited on it is no longer
// the key's mutex, so the lookup is repeated.
func (k *KeyedMutex) Lock(key string) func() {
	for {
		mt, _ := k.locks.LoadOrStore(key, &mutexWithTimestamp{})
		m := mt.(*mutexWithTimestamp)
		m.lastUsed.Store(time.Now().Unix())
		m.mu.Lock()
		if current, ok := k.locks.Load(key); ok && current == mt {
			return m.mu.Unlock
		}
		m.mu.Unlock()
	}
}

// Forget drops the mutex for key if nobody holds it. A held mutex is left to
// the cleanup loop.
func (k *KeyedMutex) Forget(key string) {
	v, ok := k.locks.Load(key)
	if !ok {
		return
	}
	m := v.(*mutexWithTimestamp)
	if m.mu.TryLock() {
		k.locks.CompareAndDelete(key, m)
		m.mu.Unlock()
	}
}

// Stop is safe to call multiple times.
func (k *KeyedMutex) Stop() {
	if k.stopped.CompareAndSwap(false, true) {
		close(k.stopChan)
		k.wg.Wait()
	}
}

func (k *KeyedMutex) cleanupLoop() {
	defer k.wg.Done()

	ticker := time.NewTicker(mutexCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-k.stopChan:
			return
		case <-ticker.C:
			k.cleanupStale(time.Now().Add(-mutexStaleThreshold))
		}
	}
}

// cleanupStale removes unused mutexes using TryLock so a held mutex is never
// dropped. lastUsed is checked inside the lock.
func (k *KeyedMutex) cleanupStale(cutoff time.Time) int {
	var cleaned int

	k.locks.Range(func(key, value any) bool {
		mt, ok := value.(*mutexWithTimestamp)
		if !ok {
			return true
		}
		if mt.mu.TryLock() {
			if mt.lastUsed.Load() < cutoff.Unix() {
				k.locks.Delete(key)
				cleaned++
			}
			mt.mu.Unlock()
		}
		return true
	})

	if cleaned > 0 {
		k.log.Debugf("Cleaned up %d stale mutexes", cleaned)
	}
	return cleaned
}
