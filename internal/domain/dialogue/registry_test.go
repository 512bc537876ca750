package dialogue

import (
	"testing"
	"time"
)

func TestRegistryResolveGeneratesID(t *testing.T) {
	r := NewRegistry(time.Minute)

	a := r.Resolve("")
	if a.ID == "" {
		t.Fatal("expected a generated session id")
	}
	b := r.Resolve("")
	if a.ID == b.ID {
		t.Error("two anonymous resolves shared an id")
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
}

func TestRegistryResolveReusesSession(t *testing.T) {
	r := NewRegistry(time.Minute)

	a := r.Resolve("abc")
	b := r.Resolve("abc")
	if a != b {
		t.Error("same id resolved to different sessions")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(time.Minute)

	if _, ok := r.Lookup("missing"); ok {
		t.Error("Lookup of unknown id succeeded")
	}
	created := r.Resolve("abc")
	got, ok := r.Lookup("abc")
	if !ok || got != created {
		t.Error("Lookup did not return the resolved session")
	}
}

func TestRegistryEvictsIdleSessions(t *testing.T) {
	r := NewRegistry(time.Minute)
	current := time.Now()
	r.now = func() time.Time { return current }

	r.Resolve("idle")
	r.Resolve("busy")

	current = current.Add(40 * time.Second)
	r.Resolve("busy") // refreshes lastSeen

	current = current.Add(30 * time.Second)
	if _, ok := r.Lookup("idle"); ok {
		t.Error("idle session survived past the TTL")
	}
	if _, ok := r.Lookup("busy"); !ok {
		t.Error("recently active session was evicted")
	}
}

func TestRegistryZeroTTLNeverEvicts(t *testing.T) {
	r := NewRegistry(0)
	current := time.Now()
	r.now = func() time.Time { return current }

	r.Resolve("abc")
	current = current.Add(24 * time.Hour)
	if _, ok := r.Lookup("abc"); !ok {
		t.Error("session evicted despite disabled TTL")
	}
}
