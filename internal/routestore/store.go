// Package routestore implements the durable route-id -> route
// definition mapping: a Redis hash as the primary store, with an
// in-memory fallback set of critical definitions loaded from a local
// source at startup, and a change notification channel for live
// reload. An optional ClusterNotifier relays that notification across
// a fleet of gateway instances over etcd.
package routestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neuragate/gateway/internal/logging"
	"github.com/neuragate/gateway/internal/route"
	"go.uber.org/zap"
)

// Health mirrors the Up/Degraded/Down vocabulary shared with the
// health probe.
type Health int

const (
	Up Health = iota
	Degraded
	Down
)

func (h Health) String() string {
	switch h {
	case Up:
		return "UP"
	case Degraded:
		return "DEGRADED"
	default:
		return "DOWN"
	}
}

// ChangeEvent is emitted whenever a definition is put or deleted.
type ChangeEvent struct {
	ID string
}

const hashKey = "routes.hash"

// Store is the Redis-backed route definition store.
type Store struct {
	client *redis.Client

	mu          sync.RWMutex
	remote      map[string]*route.Definition
	fallback    map[string]*route.Definition
	health      Health
	initialized bool

	watchers   []chan ChangeEvent
	watchersMu sync.Mutex

	cluster *ClusterNotifier
}

// SetClusterNotifier attaches the etcd-backed cross-instance
// notifier. Optional: a Store with no notifier still serves live
// reload correctly within one process.
func (s *Store) SetClusterNotifier(c *ClusterNotifier) {
	s.cluster = c
}

// New wraps a Redis client for route storage. fallbackSet is the set
// of critical definitions loaded from a local source at process
// start; it is always merged underneath whatever the remote store
// holds, so it survives even when the remote store never loads.
func New(client *redis.Client, fallbackSet []*route.Definition) *Store {
	fallback := make(map[string]*route.Definition, len(fallbackSet))
	for _, d := range fallbackSet {
		fallback[d.ID] = d
	}
	return &Store{
		client:   client,
		remote:   make(map[string]*route.Definition),
		fallback: fallback,
		health:   Degraded,
	}
}

// Load performs the initial bulk load of the remote hash. If it
// fails, the store surfaces an empty remote set, keeps serving the
// fallback set, and Health reports Degraded; a later successful Load
// (or any successful Put/Delete/Health check) promotes Health to Up.
func (s *Store) Load(ctx context.Context) error {
	loadCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	values, err := s.client.HGetAll(loadCtx, hashKey).Result()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	if err != nil {
		s.health = Degraded
		logging.Warn("route store: initial load failed, serving fallback set", zap.Error(err))
		return err
	}

	remote := make(map[string]*route.Definition, len(values))
	for id, raw := range values {
		var def route.Definition
		if jsonErr := json.Unmarshal([]byte(raw), &def); jsonErr != nil {
			logging.Warn("route store: skipping unparseable definition", zap.String("id", id), zap.Error(jsonErr))
			continue
		}
		remote[id] = &def
	}
	s.remote = remote
	s.health = Up
	return nil
}

// Put upserts a definition by id and emits a route-changed event.
func (s *Store) Put(ctx context.Context, def *route.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("route store: serialize %s: %w", def.ID, err)
	}

	opCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.client.HSet(opCtx, hashKey, def.ID, payload).Err(); err != nil {
		s.markDown()
		return fmt.Errorf("route store: put %s: %w", def.ID, err)
	}

	s.mu.Lock()
	s.remote[def.ID] = def
	s.health = Up
	s.mu.Unlock()

	s.notify(ChangeEvent{ID: def.ID})
	s.cluster.Broadcast(ctx)
	return nil
}

// Delete removes a definition by id and emits a route-changed event.
func (s *Store) Delete(ctx context.Context, id string) error {
	opCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.client.HDel(opCtx, hashKey, id).Err(); err != nil {
		s.markDown()
		return fmt.Errorf("route store: delete %s: %w", id, err)
	}

	s.mu.Lock()
	delete(s.remote, id)
	s.health = Up
	s.mu.Unlock()

	s.notify(ChangeEvent{ID: id})
	s.cluster.Broadcast(ctx)
	return nil
}

func (s *Store) markDown() {
	s.mu.Lock()
	s.health = Down
	s.mu.Unlock()
}

// Health reports Up iff a PING-class call succeeds within 2s; a
// timeout or error demotes to Down only when the store has no usable
// cached state, otherwise Degraded.
func (s *Store) Health(ctx context.Context) Health {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.client.Ping(pingCtx).Err(); err != nil {
		s.mu.Lock()
		if len(s.remote) > 0 || len(s.fallback) > 0 {
			s.health = Degraded
		} else {
			s.health = Down
		}
		h := s.health
		s.mu.Unlock()
		return h
	}

	s.mu.Lock()
	s.health = Up
	h := s.health
	s.mu.Unlock()
	return h
}

// Definitions returns the current merged view: fallback definitions
// underneath whatever the remote store holds, remote winning by id on
// conflict, sorted by (order, id).
func (s *Store) Definitions() []*route.Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	merged := make(map[string]*route.Definition, len(s.fallback)+len(s.remote))
	for id, d := range s.fallback {
		merged[id] = d
	}
	for id, d := range s.remote {
		merged[id] = d
	}

	out := make([]*route.Definition, 0, len(merged))
	for _, d := range merged {
		out = append(out, d)
	}
	route.SortDefinitions(out)
	return out
}

// Watch registers a channel that receives a ChangeEvent on every Put
// or Delete. The returned channel is buffered; a slow consumer that
// falls behind simply misses coalesced intermediate events, since the
// consumer always ends up re-reading Definitions() in full.
func (s *Store) Watch() <-chan ChangeEvent {
	ch := make(chan ChangeEvent, 32)
	s.watchersMu.Lock()
	s.watchers = append(s.watchers, ch)
	s.watchersMu.Unlock()
	return ch
}

func (s *Store) notify(ev ChangeEvent) {
	s.watchersMu.Lock()
	defer s.watchersMu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- ev:
		default:
			// Drop when a watcher is backed up; Definitions() is the
			// source of truth, not the event stream.
		}
	}
}
