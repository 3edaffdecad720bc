package realtime

import (
	"sync"
	"testing"
)

func TestPublishReachesSubscribers(t *testing.T) {
	h := NewHub(nil)
	topic := ConversationTopic(7)

	a := h.Subscribe(topic, 4)
	b := h.Subscribe(topic, 4)
	defer a.Cancel()
	defer b.Cancel()

	ev := h.Publish(topic, "message", "hello")
	if ev.Seq != 1 {
		t.Fatalf("first event seq = %d, want 1", ev.Seq)
	}

	for _, sub := range []*Subscription{a, b} {
		got := <-sub.C
		if got.Type != "message" || got.Payload != "hello" || got.Seq != 1 {
			t.Fatalf("received %+v", got)
		}
	}
}

func TestSequencePerTopic(t *testing.T) {
	h := NewHub(nil)

	for i := 1; i <= 3; i++ {
		if ev := h.Publish(RoomTopic("r1"), "message", i); ev.Seq != uint64(i) {
			t.Fatalf("r1 event %d got seq %d", i, ev.Seq)
		}
	}
	// A different topic starts its own sequence.
	if ev := h.Publish(RoomTopic("r2"), "message", "x"); ev.Seq != 1 {
		t.Fatalf("r2 first event seq = %d, want 1", ev.Seq)
	}
}

func TestCancelClosesChannelAndDetaches(t *testing.T) {
	h := NewHub(nil)
	topic := MeetingsTopic("u1")

	sub := h.Subscribe(topic, 1)
	if h.SubscriberCount(topic) != 1 {
		t.Fatal("expected one subscriber")
	}

	sub.Cancel()
	if h.SubscriberCount(topic) != 0 {
		t.Fatal("subscriber still attached after cancel")
	}
	if _, open := <-sub.C; open {
		t.Fatal("channel should be closed after cancel")
	}

	// Cancel is idempotent.
	sub.Cancel()

	// Publishing after cancel must not panic.
	h.Publish(topic, "message", "late")
}

func TestSlowSubscriberDropsWithoutBlocking(t *testing.T) {
	h := NewHub(nil)
	topic := RoomTopic("busy")

	sub := h.Subscribe(topic, 1)
	defer sub.Cancel()

	// Fill the buffer, then keep publishing; the hub must not block.
	for i := 0; i < 10; i++ {
		h.Publish(topic, "message", i)
	}

	got := <-sub.C
	if got.Seq != 1 {
		t.Fatalf("buffered event seq = %d, want 1", got.Seq)
	}
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected second event %+v", ev)
	default:
	}
}

func TestConcurrentPublishSequencesAreUnique(t *testing.T) {
	h := NewHub(nil)
	topic := ConversationTopic(42)

	const n = 100
	seqs := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seqs <- h.Publish(topic, "message", nil).Seq
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[uint64]bool, n)
	for s := range seqs {
		if seen[s] {
			t.Fatalf("duplicate sequence %d", s)
		}
		seen[s] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d unique sequences, want %d", len(seen), n)
	}
}
