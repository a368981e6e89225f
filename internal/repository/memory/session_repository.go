package memory

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"survey-assistant-be/internal/pkg/logger"
	"survey-assistant-be/pkg/store"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionBusy     = errors.New("session is processing another request")
)

var activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "survey_sessions_active",
	Help: "Sessions currently held in memory.",
})

type entry struct {
	mu         sync.Mutex
	session    *store.Session
	lastAccess atomic.Int64
}

func (e *entry) touch(now time.Time) {
	e.lastAccess.Store(now.UnixNano())
}

// SessionRepository is the in-memory session table. Entries never expire on their own;
// Sweep removes idle ones.
type SessionRepository struct {
	cache *cache.Cache
	idle  time.Duration
	log   logger.ILogger
	now   func() time.Time
}

func NewSessionRepository(idle time.Duration, log logger.ILogger) *SessionRepository {
	return &SessionRepository{
		cache: cache.New(cache.NoExpiration, 0),
		idle:  idle,
		log:   log,
		now:   time.Now,
	}
}

func (r *SessionRepository) Save(session *store.Session) {
	e := &entry{session: session}
	e.touch(r.now())
	r.cache.Set(session.ID, e, cache.NoExpiration)
	activeSessions.Set(float64(r.cache.ItemCount()))
}

// Get returns the session without taking its turn lock.
func (r *SessionRepository) Get(sessionID string) (*store.Session, bool) {
	e, ok := r.entry(sessionID)
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Acquire takes the session's turn lock and refreshes its last access. The returned
// release func must be called once the turn is over.
func (r *SessionRepository) Acquire(sessionID string) (*store.Session, func(), error) {
	e, ok := r.entry(sessionID)
	if !ok {
		return nil, nil, ErrSessionNotFound
	}
	if !e.mu.TryLock() {
		return nil, nil, ErrSessionBusy
	}
	// A sweep may have dropped the entry between lookup and lock.
	if cur, ok := r.entry(sessionID); !ok || cur != e {
		e.mu.Unlock()
		return nil, nil, ErrSessionNotFound
	}
	e.touch(r.now())

	var once sync.Once
	release := func() {
		once.Do(func() {
			e.touch(r.now())
			e.mu.Unlock()
		})
	}
	return e.session, release, nil
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
	activeSessions.Set(float64(r.cache.ItemCount()))
}

func (r *SessionRepository) Len() int {
	return r.cache.ItemCount()
}

// Sweep removes sessions idle for longer than the window. A session whose turn lock is
// held is skipped. It returns the removed ids.
func (r *SessionRepository) Sweep(now time.Time) []string {
	cutoff := now.Add(-r.idle).UnixNano()
	var removed []string

	for id, item := range r.cache.Items() {
		e, ok := item.Object.(*entry)
		if !ok || e.lastAccess.Load() > cutoff {
			continue
		}
		if !e.mu.TryLock() {
			continue
		}
		if e.lastAccess.Load() <= cutoff {
			r.cache.Delete(id)
			removed = append(removed, id)
		}
		e.mu.Unlock()
	}

	activeSessions.Set(float64(r.cache.ItemCount()))
	if len(removed) > 0 {
		r.log.Info("SESSION", "Idle sessions removed", map[string]interface{}{
			"removed":   len(removed),
			"remaining": r.cache.ItemCount(),
		})
	}
	return removed
}

func (r *SessionRepository) entry(sessionID string) (*entry, bool) {
	x, found := r.cache.Get(sessionID)
	if !found {
		return nil, false
	}
	e, ok := x.(*entry)
	return e, ok
}
