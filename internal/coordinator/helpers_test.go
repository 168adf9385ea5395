package coordinator

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sundialgames/weekender-backend/internal"
	"github.com/sundialgames/weekender-backend/internal/history"
	"github.com/sundialgames/weekender-backend/internal/profile"
)

// testClock is a hand-cranked clock. Coordinator operations read it through
// c.now, so tests control reconnect windows and sweep deadlines exactly.
type testClock struct {
	t time.Time
}

func (tc *testClock) Now() time.Time { return tc.t }

func (tc *testClock) Advance(d time.Duration) { tc.t = tc.t.Add(d) }

func newTestCoordinator(t *testing.T) (*Coordinator, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 3, 6, 18, 0, 0, 0, time.UTC)}
	c := New(DefaultOptions(), profile.NewStore(), history.NewIndex())
	c.now = clock.Now
	return c, clock
}

// No websocket is registered for test connection ids, so broadcasts resolve
// to zero sends and deliver becomes a no-op. State assertions go straight at
// the room structs, which the same-package tests may touch directly.

func (c *Coordinator) roomFor(t *testing.T, code string) *internal.Room {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	room, ok := c.rooms[code]
	if !ok {
		t.Fatalf("room %s not found", code)
	}
	return room
}

func createTestRoom(t *testing.T, c *Coordinator, hostConn string) *internal.RoomJoinedMessage {
	t.Helper()
	joined, err := c.CreateRoom(hostConn, "Alice", "")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	return joined
}

func joinTestRoom(t *testing.T, c *Coordinator, connID, code, name string) *internal.RoomJoinedMessage {
	t.Helper()
	joined, err := c.JoinRoom(connID, internal.JoinRoomRequest{RoomCode: code, Name: name})
	if err != nil {
		t.Fatalf("JoinRoom(%s): %v", name, err)
	}
	return joined
}

func summaryBlob(t *testing.T, turnNumber int, day internal.Day, completedJournals int, actions ...internal.ActionEntry) internal.Blob {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"turnNumber":        turnNumber,
		"day":               day,
		"completedJournals": completedJournals,
		"actions":           actions,
		"inventory":         map[string]any{"coffee": 3},
	})
	if err != nil {
		t.Fatalf("marshal summary: %v", err)
	}
	return raw
}

func wantCoordError(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %s, got nil", code)
	}
	ce := internal.AsCoordError(err)
	if ce.Code != code {
		t.Fatalf("expected error code %s, got %s (%s)", code, ce.Code, ce.Message)
	}
}

// memorySink records appended values for durable-log assertions.
type memorySink struct {
	records []any
}

func (m *memorySink) Append(v any) { m.records = append(m.records, v) }

func (m *memorySink) Len() int { return len(m.records) }

var _ Sink = (*memorySink)(nil)
