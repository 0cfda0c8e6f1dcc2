package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memStore struct {
	mu      sync.Mutex
	entries []Entry
	err     error
	block   chan struct{}
}

func (s *memStore) Insert(ctx context.Context, entry Entry) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memStore) all() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestDispatcherPersistsAsynchronously(t *testing.T) {
	store := &memStore{}
	d := NewDispatcher(store, nil, 8)
	defer d.Close()

	actorID := int64(4)
	d.Record(context.Background(), Entry{
		Action:  ActionLogin,
		ActorID: &actorID,
		Detail:  map[string]any{"email": "ana@primarie.ro"},
	})

	waitFor(t, func() bool { return len(store.all()) == 1 })
	got := store.all()[0]
	if got.Action != ActionLogin || got.ActorID == nil || *got.ActorID != 4 {
		t.Fatalf("stored entry = %+v", got)
	}
	if got.At.IsZero() {
		t.Fatal("entry timestamp was not stamped")
	}
}

func TestDispatcherSwallowsStoreErrors(t *testing.T) {
	store := &memStore{err: errors.New("db down")}
	d := NewDispatcher(store, nil, 8)

	// Record must not panic or propagate anything even when every
	// write fails.
	d.Record(context.Background(), Entry{Action: ActionLogout})
	d.Close()
}

func TestDispatcherDropsWhenBufferFull(t *testing.T) {
	store := &memStore{block: make(chan struct{})}
	d := NewDispatcher(store, nil, 1)

	// First entry occupies the writer, second fills the buffer, the
	// rest must be dropped without blocking.
	for i := 0; i < 5; i++ {
		d.Record(context.Background(), Entry{Action: ActionLogin})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped entries with a full buffer")
	}

	close(store.block)
	d.Close()
}

func TestDispatcherNotifiesOnDrop(t *testing.T) {
	store := &memStore{block: make(chan struct{})}
	d := NewDispatcher(store, nil, 1)

	var mu sync.Mutex
	notified := 0
	d.OnDrop(func() {
		mu.Lock()
		notified++
		mu.Unlock()
	})

	for i := 0; i < 5; i++ {
		d.Record(context.Background(), Entry{Action: ActionLogin})
	}
	fileID := int64(1)
	recordID := int64(2)
	d.Record(context.Background(), Entry{
		Action: ActionFileAttach,
		Ref:    EntityRef{FileID: &fileID, RecordID: &recordID},
	})

	// The callback feeds the drop metric, so it must fire once per
	// dropped entry, full buffer and invalid reference alike.
	mu.Lock()
	got := notified
	mu.Unlock()
	if uint64(got) != d.Dropped() {
		t.Fatalf("callback fired %d times, dropped counter = %d", got, d.Dropped())
	}
	if got == 0 {
		t.Fatal("expected at least one drop notification")
	}

	close(store.block)
	d.Close()
}

func TestDispatcherRejectsAmbiguousEntityRef(t *testing.T) {
	store := &memStore{}
	d := NewDispatcher(store, nil, 8)
	defer d.Close()

	fileID := int64(1)
	recordID := int64(2)
	d.Record(context.Background(), Entry{
		Action: ActionFileAttach,
		Ref:    EntityRef{FileID: &fileID, RecordID: &recordID},
	})

	if d.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", d.Dropped())
	}
	if len(store.all()) != 0 {
		t.Fatal("ambiguous entry must not be persisted")
	}
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	store := &memStore{}
	d := NewDispatcher(store, nil, 64)

	for i := 0; i < 20; i++ {
		d.Record(context.Background(), Entry{Action: ActionLogin})
	}
	d.Close()

	if got := len(store.all()); got != 20 {
		t.Fatalf("persisted = %d, want 20 after drain", got)
	}
}

func TestEntityRefValid(t *testing.T) {
	id := int64(1)
	cases := []struct {
		name string
		ref  EntityRef
		want bool
	}{
		{"empty", EntityRef{}, true},
		{"file only", EntityRef{FileID: &id}, true},
		{"record only", EntityRef{RecordID: &id}, true},
		{"both", EntityRef{FileID: &id, RecordID: &id}, false},
	}
	for _, tc := range cases {
		if got := tc.ref.Valid(); got != tc.want {
			t.Fatalf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
