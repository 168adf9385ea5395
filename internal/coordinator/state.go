package coordinator

import (
	"github.com/rs/zerolog/log"

	"github.com/sundialgames/weekender-backend/internal"
	"github.com/sundialgames/weekender-backend/internal/utils"
)

// PlayerStateUpdate stores the sender's private mid-turn state and relays the
// update to everyone else in the room. Carried actions merge into the shared
// log immediately, so spectators see journal progress before the turn ends.
func (c *Coordinator) PlayerStateUpdate(connID string, req internal.PlayerStateUpdateRequest) error {
	if err := internal.ValidateBlob(req.State); err != nil {
		return internal.NewCoordError(internal.ErrInvalidMessage, err.Error())
	}

	c.mu.Lock()
	sess, ok := c.sessions[connID]
	if !ok {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrNotInRoom, "you are not in a room")
	}
	room := c.rooms[sess.roomCode]
	player := room.PlayerByID(sess.playerID)

	now := c.now().UTC()
	if len(req.State) > 0 {
		player.LiveState = req.State
	}
	player.LastSeenAt = now
	appended := c.appendActionsLocked(room, player, req.Actions)
	room.UpdatedAt = now

	relay := internal.PlayerStateUpdateMessage{
		Type:       internal.TypePlayerStateUpdate,
		PlayerID:   player.PlayerID,
		State:      req.State,
		Actions:    req.Actions,
		ServerTime: now,
	}
	sends := c.messageSendsLocked(room, relay, connID)
	if appended > 0 {
		// New shared-log rows have to reach the sender too.
		sends = append(sends, c.roomStateSendsLocked(room)...)
	}
	c.mu.Unlock()

	deliver(sends)
	return nil
}

// PlayerLogEvent appends one standalone entry to the shared log, outside any
// turn summary.
func (c *Coordinator) PlayerLogEvent(connID string, entry internal.ActionEntry) error {
	if entry.Message == "" {
		return internal.NewCoordError(internal.ErrInvalidMessage, "log entry needs a message")
	}

	c.mu.Lock()
	sess, ok := c.sessions[connID]
	if !ok {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrNotInRoom, "you are not in a room")
	}
	room := c.rooms[sess.roomCode]
	player := room.PlayerByID(sess.playerID)

	player.LastSeenAt = c.now().UTC()
	appended := c.appendActionsLocked(room, player, []internal.ActionEntry{entry})
	var sends []outbound
	if appended > 0 {
		room.UpdatedAt = c.now().UTC()
		sends = c.roomStateSendsLocked(room)
	}
	c.mu.Unlock()

	deliver(sends)
	return nil
}

// RenamePlayer updates the seat's display name and the backing profile, then
// rebroadcasts state.
func (c *Coordinator) RenamePlayer(connID, name string) error {
	c.mu.Lock()
	sess, ok := c.sessions[connID]
	if !ok {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrNotInRoom, "you are not in a room")
	}
	room := c.rooms[sess.roomCode]
	player := room.PlayerByID(sess.playerID)

	clean := utils.SanitizeName(name, player.Name)
	player.Name = clean
	player.LastSeenAt = c.now().UTC()
	room.UpdatedAt = player.LastSeenAt
	c.profiles.SetDisplayName(player.ProfileID, clean)

	c.emitEventLocked(room, "player_renamed", player.PlayerID, map[string]any{
		"playerId": player.PlayerID,
		"name":     clean,
	})
	sends := c.roomStateSendsLocked(room)
	c.mu.Unlock()

	deliver(sends)
	return nil
}

// RequestSync resends the full room state to the requesting connection only.
func (c *Coordinator) RequestSync(connID string) error {
	c.mu.Lock()
	sess, ok := c.sessions[connID]
	if !ok {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrNotInRoom, "you are not in a room")
	}
	room := c.rooms[sess.roomCode]
	player := room.PlayerByID(sess.playerID)

	conn := c.conns.Get(connID)
	you := *player
	msg := internal.RoomStateMessage{
		Type:       internal.TypeRoomState,
		Room:       room.View(),
		You:        &you,
		ServerTime: c.now().UTC(),
	}
	c.mu.Unlock()

	if conn != nil {
		deliver([]outbound{{conn: conn, msg: msg}})
	}
	return nil
}

// HandleDisconnect marks the seat disconnected and opens its reconnect
// window. The seat is held: the member list keeps the player until the window
// lapses and the sweeper evicts them.
func (c *Coordinator) HandleDisconnect(connID string) {
	c.mu.Lock()
	sess, ok := c.sessions[connID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.sessions, connID)

	room, ok := c.rooms[sess.roomCode]
	if !ok {
		c.mu.Unlock()
		return
	}
	player := room.PlayerByID(sess.playerID)
	if player == nil || player.ConnectionID != connID {
		// A reconnect already claimed the seat on a newer socket.
		c.mu.Unlock()
		return
	}

	now := c.now().UTC()
	deadline := now.Add(c.opts.ReconnectWindow)
	player.Connected = false
	player.ConnectionID = ""
	player.CanReconnectUntil = &deadline
	player.LastSeenAt = now
	room.UpdatedAt = now

	c.emitEventLocked(room, "player_disconnected", player.PlayerID, map[string]any{
		"playerId":          player.PlayerID,
		"canReconnectUntil": deadline,
	})
	c.touchVisitLocked(room, player, "")
	sends := c.roomStateSendsLocked(room)
	c.mu.Unlock()

	log.Info().Str("room", room.Code).Str("player", player.PlayerID).Time("reconnectUntil", deadline).Msg("player disconnected")
	deliver(sends)
}
