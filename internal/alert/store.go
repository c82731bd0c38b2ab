// Package alert holds the single transient notification shown to a user.
package alert

import (
	"sync"
	"time"

	"domaincheck/internal/model"

	"github.com/benbjohnson/clock"
)

const DefaultTTL = 3 * time.Second

// Store holds at most one alert and clears it TTL after it was raised.
type Store struct {
	clock clock.Clock
	ttl   time.Duration

	mu      sync.Mutex
	current *model.Alert
	timer   *clock.Timer
	nextID  uint64
	subs    map[chan struct{}]struct{}
}

type Option func(*Store)

func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		clock: clock.New(),
		ttl:   DefaultTTL,
		subs:  make(map[chan struct{}]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Raise replaces the held alert and schedules its removal.
func (s *Store) Raise(title, description string, severity model.Severity) model.Alert {
	if severity == "" {
		severity = model.SeverityInformational
	}

	s.mu.Lock()
	s.nextID++
	now := s.clock.Now()
	a := model.Alert{
		ID:          s.nextID,
		Title:       title,
		Description: description,
		Severity:    severity,
		RaisedAt:    now,
		ExpiresAt:   now.Add(s.ttl),
	}
	s.current = &a

	if s.timer != nil {
		s.timer.Stop()
	}
	id := a.ID
	s.timer = s.clock.AfterFunc(s.ttl, func() { s.expire(id) })
	s.mu.Unlock()

	s.notify()
	return a
}

// Clear removes the current alert immediately.
func (s *Store) Clear() {
	s.mu.Lock()
	had := s.current != nil
	s.current = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if had {
		s.notify()
	}
}

// expire clears the alert with the given id, and only that alert.
func (s *Store) expire(id uint64) {
	s.mu.Lock()
	if s.current == nil || s.current.ID != id {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.timer = nil
	s.mu.Unlock()

	s.notify()
}

// Current returns a copy of the held alert. An alert past its deadline is
// reported absent even if its timer has not fired yet.
func (s *Store) Current() (model.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return model.Alert{}, false
	}
	if !s.clock.Now().Before(s.current.ExpiresAt) {
		return model.Alert{}, false
	}
	return *s.current, true
}

// Subscribe returns a channel signalled after every change. The channel holds
// one pending signal; bursts collapse into it.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Store) TTL() time.Duration {
	return s.ttl
}
