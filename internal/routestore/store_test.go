package routestore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/neuragate/gateway/internal/route"
)

// newMiniredisStore backs a Store with a real (in-memory, single
// process) Redis server, so Put/Delete/Load/Health exercise the
// actual HSet/HDel/HGetAll/Ping calls instead of stopping at the
// unexported-field seams the other tests in this file use.
func newMiniredisStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, nil), mr
}

func TestDefinitionsMergesFallbackUnderRemote(t *testing.T) {
	s := New(nil, []*route.Definition{
		{ID: "a", URI: "http://a", Predicates: []route.Predicate{{Name: "Path", Args: map[string]string{"pattern": "a/**"}}}, Enabled: true},
		{ID: "b", URI: "http://fallback-b", Predicates: []route.Predicate{{Name: "Path", Args: map[string]string{"pattern": "b/**"}}}, Enabled: true},
	})

	s.mu.Lock()
	s.remote["b"] = &route.Definition{ID: "b", URI: "http://remote-b", Predicates: []route.Predicate{{Name: "Path", Args: map[string]string{"pattern": "b/**"}}}, Enabled: true}
	s.mu.Unlock()

	defs := s.Definitions()
	if len(defs) != 2 {
		t.Fatalf("expected 2 merged definitions, got %d", len(defs))
	}
	var gotB *route.Definition
	for _, d := range defs {
		if d.ID == "b" {
			gotB = d
		}
	}
	if gotB == nil || gotB.URI != "http://remote-b" {
		t.Fatalf("expected remote definition to win for id b, got %+v", gotB)
	}
}

func TestPutPersistsAndPromotesHealthToUp(t *testing.T) {
	s, _ := newMiniredisStore(t)
	ctx := context.Background()

	def := &route.Definition{ID: "a", URI: "http://a", Enabled: true,
		Predicates: []route.Predicate{{Name: "Path", Args: map[string]string{"pattern": "a/**"}}}}
	if err := s.Put(ctx, def); err != nil {
		t.Fatalf("Put: %v", err)
	}

	defs := s.Definitions()
	if len(defs) != 1 || defs[0].ID != "a" {
		t.Fatalf("expected the put definition to be listed, got %+v", defs)
	}
	if h := s.Health(ctx); h != Up {
		t.Fatalf("expected Up after a successful Put, got %s", h)
	}
}

func TestDeleteRemovesDefinition(t *testing.T) {
	s, _ := newMiniredisStore(t)
	ctx := context.Background()

	def := &route.Definition{ID: "a", URI: "http://a", Enabled: true,
		Predicates: []route.Predicate{{Name: "Path", Args: map[string]string{"pattern": "a/**"}}}}
	if err := s.Put(ctx, def); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if defs := s.Definitions(); len(defs) != 0 {
		t.Fatalf("expected no definitions after delete, got %+v", defs)
	}
}

func TestLoadPopulatesFromExistingHash(t *testing.T) {
	s, mr := newMiniredisStore(t)
	ctx := context.Background()

	def := &route.Definition{ID: "a", URI: "http://a", Enabled: true,
		Predicates: []route.Predicate{{Name: "Path", Args: map[string]string{"pattern": "a/**"}}}}
	payload, err := json.Marshal(def)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	mr.HSet(hashKey, "a", string(payload))

	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	defs := s.Definitions()
	if len(defs) != 1 || defs[0].ID != "a" {
		t.Fatalf("expected loaded definition, got %+v", defs)
	}
}

func TestWatchReceivesChangeEvents(t *testing.T) {
	s := New(nil, nil)
	ch := s.Watch()
	s.notify(ChangeEvent{ID: "x"})

	select {
	case ev := <-ch:
		if ev.ID != "x" {
			t.Fatalf("expected id x, got %s", ev.ID)
		}
	default:
		t.Fatal("expected a buffered change event")
	}
}

func TestPutDeletePutRoundTrip(t *testing.T) {
	s, _ := newMiniredisStore(t)
	ctx := context.Background()

	def := &route.Definition{ID: "a", URI: "http://a", Enabled: true,
		Predicates: []route.Predicate{{Name: "Path", Args: map[string]string{"pattern": "a/**"}}}}

	if err := s.Put(ctx, def); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if err := s.Delete(ctx, def.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Put(ctx, def); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	defs := s.Definitions()
	if len(defs) != 1 || defs[0].ContentHash() != def.ContentHash() {
		t.Fatalf("expected put-delete-put to be observationally a single put, got %+v", defs)
	}
}
