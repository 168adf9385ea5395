package coordinator

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sundialgames/weekender-backend/internal"
)

func TestActionIdempotencyByClientID(t *testing.T) {
	c, _, code := startedGame(t)
	room := c.roomFor(t, code)

	entry := internal.ActionEntry{ClientActionID: "a1", Message: "fed the cat", Timestamp: 100}
	if err := c.PlayerLogEvent("conn-1", entry); err != nil {
		t.Fatalf("PlayerLogEvent: %v", err)
	}
	// A retry with a refreshed client timestamp is still the same action.
	entry.Timestamp = 250
	if err := c.PlayerLogEvent("conn-1", entry); err != nil {
		t.Fatalf("PlayerLogEvent retry: %v", err)
	}
	if len(room.SharedLog) != 1 {
		t.Fatalf("shared log len = %d, want 1", len(room.SharedLog))
	}

	// Same id from a different player is a different action.
	if err := c.PlayerLogEvent("conn-2", internal.ActionEntry{ClientActionID: "a1", Message: "also fed the cat"}); err != nil {
		t.Fatalf("PlayerLogEvent(P2): %v", err)
	}
	if len(room.SharedLog) != 2 {
		t.Fatalf("shared log len = %d, want 2", len(room.SharedLog))
	}
}

func TestActionLevelDefaultAndTruncation(t *testing.T) {
	c, _, code := startedGame(t)
	room := c.roomFor(t, code)

	long := strings.Repeat("x", internal.MaxSharedLogMessage+50)
	if err := c.PlayerLogEvent("conn-1", internal.ActionEntry{ClientActionID: "big", Message: long}); err != nil {
		t.Fatalf("PlayerLogEvent: %v", err)
	}
	got := room.SharedLog[0]
	if got.Level != "info" {
		t.Fatalf("level = %q, want info", got.Level)
	}
	if len(got.Message) != internal.MaxSharedLogMessage {
		t.Fatalf("message len = %d", len(got.Message))
	}
}

func TestSharedLogCapKeepsNewest(t *testing.T) {
	c, _, code := startedGame(t)
	room := c.roomFor(t, code)

	for i := 0; i < internal.SharedLogCap+10; i++ {
		err := c.PlayerLogEvent("conn-1", internal.ActionEntry{
			ClientActionID: fmt.Sprintf("a%d", i),
			Message:        fmt.Sprintf("entry %d", i),
		})
		if err != nil {
			t.Fatalf("PlayerLogEvent(%d): %v", i, err)
		}
	}
	if len(room.SharedLog) != internal.SharedLogCap {
		t.Fatalf("shared log len = %d, want %d", len(room.SharedLog), internal.SharedLogCap)
	}
	newest := room.SharedLog[len(room.SharedLog)-1]
	if newest.Context.ClientActionID != fmt.Sprintf("a%d", internal.SharedLogCap+9) {
		t.Fatalf("newest entry = %s", newest.Context.ClientActionID)
	}
}

func TestActionsFlowToDurableSink(t *testing.T) {
	c, _, _ := startedGame(t)
	actions := &memorySink{}
	c.AttachSinks(nil, actions)

	if err := c.PlayerLogEvent("conn-1", internal.ActionEntry{ClientActionID: "a1", Message: "hi"}); err != nil {
		t.Fatalf("PlayerLogEvent: %v", err)
	}
	if actions.Len() != 1 {
		t.Fatalf("sink records = %d", actions.Len())
	}
}

func TestPlayerStateUpdateStoresPrivateState(t *testing.T) {
	c, _, code := startedGame(t)
	room := c.roomFor(t, code)

	state := internal.Blob(`{"hand":[1,2,3]}`)
	err := c.PlayerStateUpdate("conn-1", internal.PlayerStateUpdateRequest{
		State:   state,
		Actions: []internal.ActionEntry{{ClientActionID: "live1", Message: "drew a card"}},
	})
	if err != nil {
		t.Fatalf("PlayerStateUpdate: %v", err)
	}

	p := room.PlayerByID("P1")
	if string(p.LiveState) != string(state) {
		t.Fatalf("liveState = %s", p.LiveState)
	}
	if len(room.SharedLog) != 1 {
		t.Fatalf("live action not merged, log len = %d", len(room.SharedLog))
	}

	wantCoordError(t, c.PlayerStateUpdate("conn-1", internal.PlayerStateUpdateRequest{
		State: internal.Blob(`"just a string"`),
	}), internal.ErrInvalidMessage)
}

func TestBlobSizeBound(t *testing.T) {
	c, _, _ := startedGame(t)

	big := `{"pad":"` + strings.Repeat("x", internal.MaxBlobBytes) + `"}`
	wantCoordError(t, c.PlayerStateUpdate("conn-1", internal.PlayerStateUpdateRequest{
		State: internal.Blob(big),
	}), internal.ErrInvalidMessage)
}
