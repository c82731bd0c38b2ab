// Package session keeps one form controller per browser.
package session

import (
	"context"
	"time"

	"domaincheck/internal/checker"
	"domaincheck/internal/metrics"
	"domaincheck/internal/utils"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

const CookieName = "session_id"

type Factory func() *checker.Controller

type Registry struct {
	cache   *ttlcache.Cache[string, *checker.Controller]
	factory Factory
	metrics *metrics.Metrics
}

// NewRegistry keeps controllers for ttl after their last use.
func NewRegistry(ttl time.Duration, factory Factory, m *metrics.Metrics) *Registry {
	cache := ttlcache.New[string, *checker.Controller](
		ttlcache.WithTTL[string, *checker.Controller](ttl),
	)
	cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *checker.Controller]) {
		if reason == ttlcache.EvictionReasonExpired {
			utils.Log.Debug("session expired", utils.Field("session", item.Key()))
		}
	})
	return &Registry{cache: cache, factory: factory, metrics: m}
}

// Acquire returns the controller for id, creating a session under a fresh id
// when id is empty or unknown. created reports whether the caller must hand
// the returned id back to the client.
func (r *Registry) Acquire(id string) (ctrl *checker.Controller, sid string, created bool) {
	if id != "" {
		if item := r.cache.Get(id); item != nil {
			return item.Value(), id, false
		}
	}

	sid = newID()
	item, _ := r.cache.GetOrSetFunc(sid, r.factory)
	r.metrics.SetSessions(r.cache.Len())
	return item.Value(), sid, true
}

// Lookup returns an existing controller without creating one.
func (r *Registry) Lookup(id string) (*checker.Controller, bool) {
	if id == "" {
		return nil, false
	}
	item := r.cache.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Sweep drops expired sessions and returns how many remain.
func (r *Registry) Sweep() int {
	r.cache.DeleteExpired()
	n := r.cache.Len()
	r.metrics.SetSessions(n)
	return n
}

func (r *Registry) Len() int {
	return r.cache.Len()
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
