package coordinator

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/sundialgames/weekender-backend/internal"
	"github.com/sundialgames/weekender-backend/internal/utils"
)

const maxRoomCodeRetries = 20

// eviction defers a socket close until after the coordinator lock is
// released.
type eviction struct {
	conn   *ClientConn
	code   int
	reason string
	notify any
}

func (e eviction) perform() {
	if e.conn == nil {
		return
	}
	if e.notify != nil {
		if err := e.conn.SendJSON(e.notify); err != nil {
			log.Debug().Err(err).Str("conn", e.conn.ID).Msg("eviction notice failed")
		}
	}
	e.conn.CloseWithReason(e.code, e.reason)
}

// generateRoomCodeLocked finds a collision-free code: bounded retries at the
// standard length, then a longer random code that makes a collision
// vanishingly unlikely. Callers hold c.mu.
func (c *Coordinator) generateRoomCodeLocked() string {
	for attempt := 0; attempt < maxRoomCodeRetries; attempt++ {
		code := utils.GenerateRoomCode(internal.RoomCodeLength)
		if _, taken := c.rooms[code]; !taken {
			return code
		}
	}
	return utils.GenerateRoomCode(internal.RoomCodeFallbackLen)
}

func (c *Coordinator) newPlayerLocked(seat int, name, profileID, connID string) *internal.Player {
	now := c.now().UTC()
	return &internal.Player{
		PlayerID:       fmt.Sprintf("P%d", seat),
		ProfileID:      profileID,
		Name:           name,
		Seat:           seat,
		Connected:      connID != "",
		ConnectionID:   connID,
		ReconnectToken: utils.GenerateToken(16),
		LastSeenAt:     now,
	}
}

// CreateRoom creates a room with the caller seated at seat 1 as host. The
// turn clock starts at Friday, turn 1, with no roll until the game starts.
func (c *Coordinator) CreateRoom(connID, name, profileToken string) (*internal.RoomJoinedMessage, error) {
	name = utils.SanitizeName(name, "Player")

	c.mu.Lock()
	if _, ok := c.sessions[connID]; ok {
		c.mu.Unlock()
		return nil, internal.NewCoordError(internal.ErrAlreadyInRoom, "leave your current room first")
	}

	prof := c.profiles.Resolve(profileToken, name)
	now := c.now().UTC()

	room := &internal.Room{
		Code:           c.generateRoomCodeLocked(),
		Status:         internal.StatusLobby,
		MaxPlayers:     internal.MaxPlayersPerRoom,
		CreatedAt:      now,
		UpdatedAt:      now,
		Turn:           &internal.Turn{Number: 1, Day: internal.DayFriday},
		SharedLog:      make([]internal.SharedLogEntry, 0),
		PlayerProfiles: make(map[string]string),
	}
	host := c.newPlayerLocked(1, name, prof.ProfileID, connID)
	room.Players = []*internal.Player{host}
	room.HostPlayerID = host.PlayerID
	room.PlayerProfiles[host.PlayerID] = prof.ProfileID
	c.rooms[room.Code] = room
	c.sessions[connID] = session{roomCode: room.Code, playerID: host.PlayerID}

	c.emitEventLocked(room, "room_created", host.PlayerID, map[string]any{
		"hostPlayerId": host.PlayerID,
		"hostName":     host.Name,
	})
	c.touchVisitLocked(room, host, "")
	sends := c.roomStateSendsLocked(room)
	c.mu.Unlock()

	deliver(sends)
	log.Info().Str("room", room.Code).Str("player", host.PlayerID).Msg("room created")

	return &internal.RoomJoinedMessage{
		Type:           internal.TypeRoomJoined,
		RoomCode:       room.Code,
		PlayerID:       host.PlayerID,
		ReconnectToken: host.ReconnectToken,
		ProfileID:      prof.ProfileID,
		ProfileToken:   prof.ProfileToken,
	}, nil
}

// JoinRoom seats a new player, or resurrects a disconnected seat when a
// valid, unexpired reconnect token is presented. Reconnection is the only
// path into a non-lobby room.
func (c *Coordinator) JoinRoom(connID string, req internal.JoinRoomRequest) (*internal.RoomJoinedMessage, error) {
	name := utils.SanitizeName(req.Name, "Player")

	c.mu.Lock()
	if _, ok := c.sessions[connID]; ok {
		c.mu.Unlock()
		return nil, internal.NewCoordError(internal.ErrAlreadyInRoom, "leave your current room first")
	}
	room, ok := c.rooms[req.RoomCode]
	if !ok {
		c.mu.Unlock()
		return nil, internal.NewCoordError(internal.ErrRoomNotFound, "no room with that code")
	}

	// A still-connected seat means the old socket is half-open; the reconnect
	// supersedes it. A disconnected seat honors its grace deadline.
	now := c.now().UTC()
	if seat := room.PlayerByReconnectToken(req.ReconnectToken); seat != nil {
		if seat.Connected || (seat.CanReconnectUntil != nil && !now.After(*seat.CanReconnectUntil)) {
			return c.reconnectSeatLocked(room, seat, connID, req)
		}
	}

	// An expired or unknown token falls through to plain lobby rules, as if
	// the seat were never theirs.
	if room.Status != internal.StatusLobby {
		c.mu.Unlock()
		return nil, internal.NewCoordError(internal.ErrRoomInProgress, "game already in progress")
	}
	if len(room.Players) >= room.MaxPlayers {
		c.mu.Unlock()
		return nil, internal.NewCoordError(internal.ErrRoomFull, "room is full")
	}

	prof := c.profiles.Resolve(req.ProfileToken, name)
	player := c.newPlayerLocked(room.FreeSeat(), name, prof.ProfileID, connID)
	room.Players = append(room.Players, player)
	sort.Slice(room.Players, func(i, j int) bool { return room.Players[i].Seat < room.Players[j].Seat })
	room.PlayerProfiles[player.PlayerID] = prof.ProfileID
	room.UpdatedAt = now
	c.sessions[connID] = session{roomCode: room.Code, playerID: player.PlayerID}

	c.emitEventLocked(room, "player_joined", player.PlayerID, map[string]any{
		"playerId": player.PlayerID,
		"name":     player.Name,
		"seat":     player.Seat,
	})
	c.touchVisitLocked(room, player, "")
	sends := c.roomStateSendsLocked(room)
	c.mu.Unlock()

	deliver(sends)
	log.Info().Str("room", room.Code).Str("player", player.PlayerID).Msg("player joined")

	return &internal.RoomJoinedMessage{
		Type:           internal.TypeRoomJoined,
		RoomCode:       room.Code,
		PlayerID:       player.PlayerID,
		ReconnectToken: player.ReconnectToken,
		ProfileID:      prof.ProfileID,
		ProfileToken:   prof.ProfileToken,
	}, nil
}

// reconnectSeatLocked re-binds a seat to a fresh connection regardless of
// room status, evicting any stale prior connection with a distinguishing
// close code. Called with c.mu held; releases it.
func (c *Coordinator) reconnectSeatLocked(room *internal.Room, seat *internal.Player, connID string, req internal.JoinRoomRequest) (*internal.RoomJoinedMessage, error) {
	var evict *eviction
	if seat.ConnectionID != "" && seat.ConnectionID != connID {
		if stale := c.conns.Get(seat.ConnectionID); stale != nil {
			evict = &eviction{conn: stale, code: internal.CloseSuperseded, reason: "superseded by reconnect"}
		}
		delete(c.sessions, seat.ConnectionID)
	}

	now := c.now().UTC()
	seat.Connected = true
	seat.ConnectionID = connID
	seat.LastSeenAt = now
	seat.CanReconnectUntil = nil
	if req.Name != "" {
		seat.Name = utils.SanitizeName(req.Name, seat.Name)
	}
	room.UpdatedAt = now
	c.sessions[connID] = session{roomCode: room.Code, playerID: seat.PlayerID}

	c.emitEventLocked(room, "player_reconnected", seat.PlayerID, map[string]any{
		"playerId": seat.PlayerID,
		"seat":     seat.Seat,
	})
	c.touchVisitLocked(room, seat, "")
	sends := c.roomStateSendsLocked(room)

	prof, _ := c.profiles.LookupByID(seat.ProfileID)
	c.mu.Unlock()

	if evict != nil {
		evict.perform()
	}
	deliver(sends)
	log.Info().Str("room", room.Code).Str("player", seat.PlayerID).Msg("player reconnected")

	return &internal.RoomJoinedMessage{
		Type:           internal.TypeRoomJoined,
		RoomCode:       room.Code,
		PlayerID:       seat.PlayerID,
		ReconnectToken: seat.ReconnectToken,
		ProfileID:      seat.ProfileID,
		ProfileToken:   prof.ProfileToken,
	}, nil
}

// LeaveRoom removes the caller's seat. An emptied room is archived and
// deleted; a departing host hands the room to the lowest remaining seat.
func (c *Coordinator) LeaveRoom(connID string) error {
	c.mu.Lock()
	sess, ok := c.sessions[connID]
	if !ok {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrNotInRoom, "you are not in a room")
	}
	room := c.rooms[sess.roomCode]
	player := room.PlayerByID(sess.playerID)
	delete(c.sessions, connID)

	roomGone := c.removePlayerLocked(room, player, "left", "player_left")

	var sends []outbound
	if !roomGone {
		// The departure may have been the last missing submission.
		if room.Status == internal.StatusInGame && room.AllEndedTurn() {
			sends = c.advanceTurnLocked(room)
		} else {
			sends = c.roomStateSendsLocked(room)
		}
	}
	var leaverSend []outbound
	if conn := c.conns.Get(connID); conn != nil {
		leaverSend = append(leaverSend, outbound{conn: conn, msg: internal.RemovedFromRoomMessage{
			Type:     internal.TypeRemovedFromRoom,
			RoomCode: room.Code,
			Reason:   "left",
		}})
	}
	c.mu.Unlock()

	deliver(leaverSend)
	deliver(sends)
	log.Info().Str("room", room.Code).Str("player", sess.playerID).Msg("player left")
	return nil
}

// KickPlayer is host-only and may never target the host. The target's socket
// is closed with a distinguishing code after it is told why.
func (c *Coordinator) KickPlayer(connID, targetID string) error {
	c.mu.Lock()
	sess, ok := c.sessions[connID]
	if !ok {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrNotInRoom, "you are not in a room")
	}
	room := c.rooms[sess.roomCode]
	if sess.playerID != room.HostPlayerID {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrForbidden, "only the host can kick players")
	}
	if targetID == "" {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrMissingPlayerID, "playerId is required")
	}
	target := room.PlayerByID(targetID)
	if target == nil {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrPlayerNotFound, "no such player in the room")
	}
	if target.PlayerID == room.HostPlayerID {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrCannotKickHost, "the host cannot be kicked")
	}

	var evict *eviction
	if target.ConnectionID != "" {
		delete(c.sessions, target.ConnectionID)
		if conn := c.conns.Get(target.ConnectionID); conn != nil {
			evict = &eviction{
				conn:   conn,
				code:   internal.CloseKicked,
				reason: "kicked by host",
				notify: internal.RemovedFromRoomMessage{
					Type:     internal.TypeRemovedFromRoom,
					RoomCode: room.Code,
					Reason:   "kicked",
				},
			}
		}
	}
	roomGone := c.removePlayerLocked(room, target, "kicked", "player_kicked")
	var sends []outbound
	if !roomGone {
		if room.Status == internal.StatusInGame && room.AllEndedTurn() {
			sends = c.advanceTurnLocked(room)
		} else {
			sends = c.roomStateSendsLocked(room)
		}
	}
	c.mu.Unlock()

	if evict != nil {
		evict.perform()
	}
	deliver(sends)
	log.Info().Str("room", room.Code).Str("player", targetID).Str("by", sess.playerID).Msg("player kicked")
	return nil
}

// TerminateRoom is host-only: archives a terminal summary, notifies every
// member, evicts all sockets, and deletes the room.
func (c *Coordinator) TerminateRoom(connID string) error {
	c.mu.Lock()
	sess, ok := c.sessions[connID]
	if !ok {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrNotInRoom, "you are not in a room")
	}
	room := c.rooms[sess.roomCode]
	if sess.playerID != room.HostPlayerID {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrForbidden, "only the host can terminate the room")
	}

	notice := internal.RoomTerminatedMessage{
		Type:       internal.TypeRoomTerminated,
		RoomCode:   room.Code,
		Reason:     "terminated_by_host",
		ByPlayerID: sess.playerID,
	}
	evictions := make([]eviction, 0, len(room.Players))
	for _, p := range room.Players {
		c.touchVisitLocked(room, p, "terminated")
		if p.ConnectionID == "" {
			continue
		}
		delete(c.sessions, p.ConnectionID)
		if conn := c.conns.Get(p.ConnectionID); conn != nil {
			evictions = append(evictions, eviction{
				conn:   conn,
				code:   internal.CloseRoomTerminated,
				reason: "room terminated",
				notify: notice,
			})
		}
	}
	c.archiveRoomLocked(room, "terminated_by_host", sess.playerID)
	delete(c.rooms, room.Code)
	c.mu.Unlock()

	for _, e := range evictions {
		e.perform()
	}
	log.Info().Str("room", room.Code).Str("by", sess.playerID).Msg("room terminated")
	return nil
}

// StartGame is host-only and lobby-only: rolls the opening turn and clears
// per-player turn state.
func (c *Coordinator) StartGame(connID string) error {
	c.mu.Lock()
	sess, ok := c.sessions[connID]
	if !ok {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrNotInRoom, "you are not in a room")
	}
	room := c.rooms[sess.roomCode]
	if sess.playerID != room.HostPlayerID {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrForbidden, "only the host can start the game")
	}
	if room.Status != internal.StatusLobby {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrAlreadyStarted, "the game has already started")
	}

	now := c.now().UTC()
	room.Status = internal.StatusInGame
	room.Turn = &internal.Turn{
		Number:   1,
		Day:      internal.DayFriday,
		Roll:     utils.RollDice(),
		RolledAt: now,
	}
	for _, p := range room.Players {
		p.EndedTurn = false
		p.TurnSummary = nil
		p.LiveState = nil
		p.CompletedJournals = 0
	}
	room.UpdatedAt = now

	c.emitEventLocked(room, "game_started", sess.playerID, map[string]any{
		"turnNumber": room.Turn.Number,
		"day":        room.Turn.Day,
		"roll":       room.Turn.Roll,
	})
	for _, p := range room.Players {
		c.touchVisitLocked(room, p, "")
	}
	sends := c.roomStateSendsLocked(room)
	c.mu.Unlock()

	deliver(sends)
	log.Info().Str("room", room.Code).Msg("game started")
	return nil
}

// removePlayerLocked hard-removes a seat from the room and reports whether
// the room was deleted as a result. Handles host promotion and empty-room
// archival. Callers hold c.mu.
func (c *Coordinator) removePlayerLocked(room *internal.Room, p *internal.Player, action, evType string) bool {
	if p == nil {
		return false
	}
	filtered := room.Players[:0]
	for _, member := range room.Players {
		if member.PlayerID == p.PlayerID {
			continue
		}
		filtered = append(filtered, member)
	}
	room.Players = filtered
	delete(room.PlayerProfiles, p.PlayerID)
	room.UpdatedAt = c.now().UTC()

	c.emitEventLocked(room, evType, p.PlayerID, map[string]any{
		"playerId": p.PlayerID,
		"name":     p.Name,
		"action":   action,
	}, p.ProfileID)
	c.touchVisitLocked(room, p, action)

	if len(room.Players) == 0 {
		c.archiveRoomLocked(room, "empty", p.PlayerID)
		delete(c.rooms, room.Code)
		return true
	}

	if room.HostPlayerID == p.PlayerID {
		next := room.LowestSeatPlayer()
		room.HostPlayerID = next.PlayerID
		c.emitEventLocked(room, "host_promoted", next.PlayerID, map[string]any{
			"playerId": next.PlayerID,
			"seat":     next.Seat,
		})
	}
	return false
}

// archiveRoomLocked emits the terminal summary event for a room that is about
// to be deleted. Callers hold c.mu and delete the room themselves.
func (c *Coordinator) archiveRoomLocked(room *internal.Room, reason, actor string) {
	players := make([]map[string]any, 0, len(room.Players))
	for _, p := range room.Players {
		players = append(players, map[string]any{
			"playerId":  p.PlayerID,
			"profileId": p.ProfileID,
			"name":      p.Name,
			"seat":      p.Seat,
		})
	}
	payload := map[string]any{
		"status":  room.Status,
		"reason":  reason,
		"players": players,
	}
	if room.Turn != nil {
		payload["turnNumber"] = room.Turn.Number
		payload["day"] = room.Turn.Day
	}
	c.emitEventLocked(room, "room_archived", actor, payload)
}
