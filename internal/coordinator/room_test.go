package coordinator

import (
	"strings"
	"testing"
	"time"

	"github.com/sundialgames/weekender-backend/internal"
)

func TestCreateRoomSeatsHost(t *testing.T) {
	c, _ := newTestCoordinator(t)

	joined := createTestRoom(t, c, "conn-host")
	if joined.PlayerID != "P1" {
		t.Fatalf("host playerId = %s, want P1", joined.PlayerID)
	}
	if joined.ReconnectToken == "" || joined.ProfileToken == "" {
		t.Fatal("host must receive reconnect and profile tokens")
	}
	if len(joined.RoomCode) != internal.RoomCodeLength {
		t.Fatalf("room code %q has length %d", joined.RoomCode, len(joined.RoomCode))
	}

	room := c.roomFor(t, joined.RoomCode)
	if room.Status != internal.StatusLobby {
		t.Fatalf("new room status = %s", room.Status)
	}
	if room.HostPlayerID != "P1" {
		t.Fatalf("host = %s", room.HostPlayerID)
	}
	if room.Turn == nil || room.Turn.Number != 1 || room.Turn.Day != internal.DayFriday {
		t.Fatalf("lobby turn clock = %+v", room.Turn)
	}
	if len(room.Turn.Roll) != 0 {
		t.Fatal("dice must not be rolled before the game starts")
	}
}

func TestCreateRoomRejectsSecondRoom(t *testing.T) {
	c, _ := newTestCoordinator(t)
	createTestRoom(t, c, "conn-host")

	_, err := c.CreateRoom("conn-host", "Alice", "")
	wantCoordError(t, err, internal.ErrAlreadyInRoom)
}

func TestJoinRoomLobbyRules(t *testing.T) {
	c, _ := newTestCoordinator(t)
	host := createTestRoom(t, c, "conn-host")

	_, err := c.JoinRoom("conn-x", internal.JoinRoomRequest{RoomCode: "NOPE42", Name: "Bob"})
	wantCoordError(t, err, internal.ErrRoomNotFound)

	joined := joinTestRoom(t, c, "conn-2", host.RoomCode, "Bob")
	if joined.PlayerID != "P2" {
		t.Fatalf("second player got seat %s", joined.PlayerID)
	}

	// Fill the remaining seats, then one more.
	for i := 3; i <= internal.MaxPlayersPerRoom; i++ {
		joinTestRoom(t, c, "conn-"+strings.Repeat("x", i), host.RoomCode, "Guest")
	}
	_, err = c.JoinRoom("conn-late", internal.JoinRoomRequest{RoomCode: host.RoomCode, Name: "Late"})
	wantCoordError(t, err, internal.ErrRoomFull)
}

func TestJoinRoomRejectsStartedGame(t *testing.T) {
	c, _ := newTestCoordinator(t)
	host := createTestRoom(t, c, "conn-host")
	if err := c.StartGame("conn-host"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	_, err := c.JoinRoom("conn-2", internal.JoinRoomRequest{RoomCode: host.RoomCode, Name: "Bob"})
	wantCoordError(t, err, internal.ErrRoomInProgress)
}

func TestSeatIDsStayUniqueAfterDepartures(t *testing.T) {
	c, _ := newTestCoordinator(t)
	host := createTestRoom(t, c, "conn-host")
	joinTestRoom(t, c, "conn-2", host.RoomCode, "Bob")
	joinTestRoom(t, c, "conn-3", host.RoomCode, "Cara")

	if err := c.LeaveRoom("conn-2"); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}
	rejoined := joinTestRoom(t, c, "conn-4", host.RoomCode, "Dan")
	if rejoined.PlayerID != "P2" {
		t.Fatalf("freed seat not reused, got %s", rejoined.PlayerID)
	}

	room := c.roomFor(t, host.RoomCode)
	seen := make(map[string]bool)
	for _, p := range room.Players {
		if seen[p.PlayerID] {
			t.Fatalf("duplicate playerId %s", p.PlayerID)
		}
		seen[p.PlayerID] = true
	}
}

func TestStartGameHostOnlyAndOnce(t *testing.T) {
	c, _ := newTestCoordinator(t)
	host := createTestRoom(t, c, "conn-host")
	joinTestRoom(t, c, "conn-2", host.RoomCode, "Bob")

	wantCoordError(t, c.StartGame("conn-2"), internal.ErrForbidden)

	if err := c.StartGame("conn-host"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	room := c.roomFor(t, host.RoomCode)
	if room.Status != internal.StatusInGame {
		t.Fatalf("status = %s", room.Status)
	}
	if len(room.Turn.Roll) != internal.DiceCount {
		t.Fatalf("opening roll has %d dice", len(room.Turn.Roll))
	}
	for _, d := range room.Turn.Roll {
		if d < 1 || d > internal.DieFaces {
			t.Fatalf("die out of range: %d", d)
		}
	}

	wantCoordError(t, c.StartGame("conn-host"), internal.ErrAlreadyStarted)
}

func TestKickPlayer(t *testing.T) {
	c, _ := newTestCoordinator(t)
	host := createTestRoom(t, c, "conn-host")
	joinTestRoom(t, c, "conn-2", host.RoomCode, "Bob")

	wantCoordError(t, c.KickPlayer("conn-2", "P1"), internal.ErrForbidden)
	wantCoordError(t, c.KickPlayer("conn-host", ""), internal.ErrMissingPlayerID)
	wantCoordError(t, c.KickPlayer("conn-host", "P9"), internal.ErrPlayerNotFound)
	wantCoordError(t, c.KickPlayer("conn-host", "P1"), internal.ErrCannotKickHost)

	if err := c.KickPlayer("conn-host", "P2"); err != nil {
		t.Fatalf("KickPlayer: %v", err)
	}
	room := c.roomFor(t, host.RoomCode)
	if room.PlayerByID("P2") != nil {
		t.Fatal("kicked player still seated")
	}
	// The kicked connection no longer holds a session.
	wantCoordError(t, c.LeaveRoom("conn-2"), internal.ErrNotInRoom)
}

func TestLeaveRoomPromotesHostAndDeletesEmpty(t *testing.T) {
	c, _ := newTestCoordinator(t)
	host := createTestRoom(t, c, "conn-host")
	joinTestRoom(t, c, "conn-2", host.RoomCode, "Bob")

	if err := c.LeaveRoom("conn-host"); err != nil {
		t.Fatalf("LeaveRoom(host): %v", err)
	}
	room := c.roomFor(t, host.RoomCode)
	if room.HostPlayerID != "P2" {
		t.Fatalf("host not promoted, got %s", room.HostPlayerID)
	}

	if err := c.LeaveRoom("conn-2"); err != nil {
		t.Fatalf("LeaveRoom(last): %v", err)
	}
	if c.RoomCount() != 0 {
		t.Fatal("empty room not deleted")
	}
}

func TestTerminateRoom(t *testing.T) {
	c, _ := newTestCoordinator(t)
	host := createTestRoom(t, c, "conn-host")
	joinTestRoom(t, c, "conn-2", host.RoomCode, "Bob")

	wantCoordError(t, c.TerminateRoom("conn-2"), internal.ErrForbidden)

	if err := c.TerminateRoom("conn-host"); err != nil {
		t.Fatalf("TerminateRoom: %v", err)
	}
	if c.RoomCount() != 0 {
		t.Fatal("terminated room still present")
	}
	wantCoordError(t, c.LeaveRoom("conn-2"), internal.ErrNotInRoom)

	// The terminal summary lands in the room's history.
	res := c.History().QueryRoom(host.RoomCode, 0, 10)
	if len(res.Events) == 0 || res.Events[0].Type != "room_archived" {
		t.Fatalf("latest event = %+v", res.Events)
	}
}

func TestReconnectRestoresSeat(t *testing.T) {
	c, clock := newTestCoordinator(t)
	host := createTestRoom(t, c, "conn-host")
	bob := joinTestRoom(t, c, "conn-2", host.RoomCode, "Bob")
	if err := c.StartGame("conn-host"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	c.HandleDisconnect("conn-2")
	room := c.roomFor(t, host.RoomCode)
	seat := room.PlayerByID(bob.PlayerID)
	if seat.Connected || seat.CanReconnectUntil == nil {
		t.Fatalf("disconnect not registered: %+v", seat)
	}

	clock.Advance(time.Minute)
	rejoined, err := c.JoinRoom("conn-2b", internal.JoinRoomRequest{
		RoomCode:       host.RoomCode,
		ReconnectToken: bob.ReconnectToken,
	})
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if rejoined.PlayerID != bob.PlayerID {
		t.Fatalf("reconnect changed identity: %s -> %s", bob.PlayerID, rejoined.PlayerID)
	}
	if rejoined.ReconnectToken != bob.ReconnectToken {
		t.Fatal("reconnect token must be stable")
	}
	seat = room.PlayerByID(bob.PlayerID)
	if !seat.Connected || seat.CanReconnectUntil != nil {
		t.Fatalf("seat not restored: %+v", seat)
	}
}

func TestReconnectSupersedesHalfOpenSocket(t *testing.T) {
	c, _ := newTestCoordinator(t)
	host := createTestRoom(t, c, "conn-host")
	bob := joinTestRoom(t, c, "conn-2", host.RoomCode, "Bob")

	// No disconnect was ever observed for conn-2; the reconnect still wins
	// the seat and the old session is severed.
	rejoined, err := c.JoinRoom("conn-2b", internal.JoinRoomRequest{
		RoomCode:       host.RoomCode,
		ReconnectToken: bob.ReconnectToken,
	})
	if err != nil {
		t.Fatalf("supersede: %v", err)
	}
	if rejoined.PlayerID != bob.PlayerID {
		t.Fatalf("seat changed: %s", rejoined.PlayerID)
	}
	wantCoordError(t, c.LeaveRoom("conn-2"), internal.ErrNotInRoom)

	room := c.roomFor(t, host.RoomCode)
	if got := room.PlayerByID(bob.PlayerID).ConnectionID; got != "conn-2b" {
		t.Fatalf("seat bound to %s", got)
	}
	if len(room.Players) != 2 {
		t.Fatalf("players = %d", len(room.Players))
	}
}

func TestExpiredReconnectTokenFallsToLobbyRules(t *testing.T) {
	c, clock := newTestCoordinator(t)
	host := createTestRoom(t, c, "conn-host")
	bob := joinTestRoom(t, c, "conn-2", host.RoomCode, "Bob")
	if err := c.StartGame("conn-host"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	c.HandleDisconnect("conn-2")
	clock.Advance(c.opts.ReconnectWindow + time.Second)

	_, err := c.JoinRoom("conn-2b", internal.JoinRoomRequest{
		RoomCode:       host.RoomCode,
		ReconnectToken: bob.ReconnectToken,
		Name:           "Bob",
	})
	wantCoordError(t, err, internal.ErrRoomInProgress)
}

func TestProfileVisitKeepsJoinTimeAcrossActivity(t *testing.T) {
	c, clock := newTestCoordinator(t)
	joinedAt := clock.Now().UTC()
	host := createTestRoom(t, c, "conn-host")

	clock.Advance(time.Hour)
	c.HandleDisconnect("conn-host")

	prof, _ := c.Profiles().LookupByID(host.ProfileID)
	if len(prof.Rooms) != 1 {
		t.Fatalf("visits = %d", len(prof.Rooms))
	}
	visit := prof.Rooms[0]
	if !visit.JoinedAt.Equal(joinedAt) {
		t.Fatalf("joinedAt drifted: was %v, now %v", joinedAt, visit.JoinedAt)
	}
	if !visit.LastSeenAt.After(joinedAt) {
		t.Fatalf("lastSeenAt = %v, want after %v", visit.LastSeenAt, joinedAt)
	}
}

func TestRenamePlayer(t *testing.T) {
	c, _ := newTestCoordinator(t)
	host := createTestRoom(t, c, "conn-host")

	if err := c.RenamePlayer("conn-host", "  Allie  "); err != nil {
		t.Fatalf("RenamePlayer: %v", err)
	}
	room := c.roomFor(t, host.RoomCode)
	if got := room.PlayerByID("P1").Name; got != "Allie" {
		t.Fatalf("name = %q", got)
	}
	prof, ok := c.Profiles().LookupByID(host.ProfileID)
	if !ok || prof.DisplayName != "Allie" {
		t.Fatalf("profile name = %q", prof.DisplayName)
	}
}
