package history

import (
	"fmt"
	"testing"

	"github.com/sundialgames/weekender-backend/internal"
)

func record(idx *Index, room string, refs ...string) internal.RoomEvent {
	return idx.Record(internal.RoomEvent{
		RoomCode:    room,
		Type:        "test_event",
		ProfileRefs: refs,
	})
}

func TestSequenceIsMonotonic(t *testing.T) {
	idx := NewIndex()
	var last uint64
	for i := 0; i < 10; i++ {
		ev := record(idx, "AAAAAA")
		if ev.Sequence <= last {
			t.Fatalf("sequence went backward: %d after %d", ev.Sequence, last)
		}
		last = ev.Sequence
	}
	if idx.Sequence() != last {
		t.Fatalf("Sequence() = %d, want %d", idx.Sequence(), last)
	}
}

func TestRehydrationPreservesAndRatchetsSequence(t *testing.T) {
	idx := NewIndex()
	replayed := idx.Record(internal.RoomEvent{RoomCode: "AAAAAA", Sequence: 42})
	if replayed.Sequence != 42 {
		t.Fatalf("replayed sequence rewritten to %d", replayed.Sequence)
	}
	fresh := record(idx, "AAAAAA")
	if fresh.Sequence != 43 {
		t.Fatalf("fresh sequence = %d, want 43", fresh.Sequence)
	}
}

func TestQueryRoomPagesBackwardWithoutGaps(t *testing.T) {
	idx := NewIndex()
	for i := 0; i < 25; i++ {
		record(idx, "AAAAAA")
	}

	seen := make(map[uint64]bool)
	before := uint64(0)
	pages := 0
	for {
		res := idx.QueryRoom("AAAAAA", before, 10)
		if len(res.Events) == 0 {
			break
		}
		pages++
		for i, ev := range res.Events {
			if i > 0 && ev.Sequence >= res.Events[i-1].Sequence {
				t.Fatalf("page not newest-first: %d then %d", res.Events[i-1].Sequence, ev.Sequence)
			}
			if seen[ev.Sequence] {
				t.Fatalf("sequence %d returned twice", ev.Sequence)
			}
			seen[ev.Sequence] = true
		}
		before = res.NextBefore
	}
	if pages != 3 {
		t.Fatalf("pages = %d, want 3", pages)
	}
	if len(seen) != 25 {
		t.Fatalf("saw %d events, want 25", len(seen))
	}
}

func TestQueryRoomReportsTotalAvailable(t *testing.T) {
	idx := NewIndex()
	for i := 0; i < 7; i++ {
		record(idx, "AAAAAA")
	}
	res := idx.QueryRoom("AAAAAA", 0, 3)
	if res.TotalAvailable != 7 {
		t.Fatalf("TotalAvailable = %d", res.TotalAvailable)
	}
	if len(res.Events) != 3 {
		t.Fatalf("page size = %d", len(res.Events))
	}

	if got := idx.QueryRoom("ZZZZZZ", 0, 3); len(got.Events) != 0 || got.NextBefore != 0 {
		t.Fatalf("unknown room returned %+v", got)
	}
}

func TestQueryProfileIndexesEveryRef(t *testing.T) {
	idx := NewIndex()
	record(idx, "AAAAAA", "prof-1", "prof-2")
	record(idx, "BBBBBB", "prof-1")

	if got := idx.QueryProfile("prof-1", 0, 10); len(got.Events) != 2 {
		t.Fatalf("prof-1 events = %d", len(got.Events))
	}
	if got := idx.QueryProfile("prof-2", 0, 10); len(got.Events) != 1 {
		t.Fatalf("prof-2 events = %d", len(got.Events))
	}
}

func TestRoomCapDropsOldest(t *testing.T) {
	idx := NewIndex()
	idx.roomCap = 5
	for i := 0; i < 8; i++ {
		record(idx, "AAAAAA")
	}
	res := idx.QueryRoom("AAAAAA", 0, 100)
	if len(res.Events) != 5 {
		t.Fatalf("retained %d events, want 5", len(res.Events))
	}
	if oldest := res.Events[len(res.Events)-1].Sequence; oldest != 4 {
		t.Fatalf("oldest retained sequence = %d, want 4", oldest)
	}
}

func TestEventIdentityPassesThrough(t *testing.T) {
	idx := NewIndex()
	ev := idx.Record(internal.RoomEvent{
		EventID:  "ev-1",
		RoomCode: "AAAAAA",
		Type:     "player_joined",
		Actor:    "P2",
		Payload:  map[string]any{"seat": 2},
	})
	got := idx.QueryRoom("AAAAAA", 0, 1).Events[0]
	if got.EventID != "ev-1" || got.Type != "player_joined" || got.Actor != "P2" {
		t.Fatalf("stored event = %+v", got)
	}
	if fmt.Sprint(got.Payload["seat"]) != "2" {
		t.Fatalf("payload = %v", got.Payload)
	}
	if got.Sequence != ev.Sequence {
		t.Fatalf("sequence mismatch: %d vs %d", got.Sequence, ev.Sequence)
	}
}
