package internal

import "time"

// Wire messages are flat tagged objects: {"type": "...", ...fields}. Inbound
// frames are probed for the type tag first, then decoded into the matching
// request struct. Outbound structs carry their own type tag.

// Client -> server message types.
const (
	TypeCreateRoom        = "create_room"
	TypeJoinRoom          = "join_room"
	TypeLeaveRoom         = "leave_room"
	TypeStartGame         = "start_game"
	TypeKickPlayer        = "kick_player"
	TypeTerminateRoom     = "terminate_room"
	TypePlayerStateUpdate = "player_state_update"
	TypePlayerLogEvent    = "player_log_event"
	TypeEndTurn           = "end_turn"
	TypeCancelEndTurn     = "cancel_end_turn"
	TypeRequestSync       = "request_sync"
	TypeRenamePlayer      = "rename_player"
	TypeHeartbeat         = "heartbeat"
)

// Server -> client message types.
const (
	TypeConnected       = "connected"
	TypeRoomJoined      = "room_joined"
	TypeRoomState       = "room_state"
	TypeTurnAdvanced    = "turn_advanced"
	TypeGameCompleted   = "game_completed"
	TypeRemovedFromRoom = "removed_from_room"
	TypeRoomTerminated  = "room_terminated"
	TypeError           = "error"
	TypeHeartbeatAck    = "heartbeat_ack"
)

// WebSocket close codes distinguishing why the server dropped a connection.
const (
	CloseRoomTerminated = 4000
	CloseKicked         = 4001
	CloseSuperseded     = 4002
)

// Envelope probes just the type tag of an inbound frame.
type Envelope struct {
	Type string `json:"type"`
}

// ActionEntry is one player-visible action pushed by a client, either inside
// an end-of-turn summary or as a live mid-turn update. Timestamp is the
// client's clock in unix milliseconds.
type ActionEntry struct {
	ClientActionID string `json:"clientActionId,omitempty"`
	Level          string `json:"level,omitempty"`
	Message        string `json:"message,omitempty"`
	Timestamp      int64  `json:"timestamp,omitempty"`
}

type CreateRoomRequest struct {
	Name         string `json:"name"`
	ProfileToken string `json:"profileToken,omitempty"`
}

type JoinRoomRequest struct {
	RoomCode       string `json:"roomCode"`
	Name           string `json:"name"`
	ProfileToken   string `json:"profileToken,omitempty"`
	ReconnectToken string `json:"reconnectToken,omitempty"`
}

type KickPlayerRequest struct {
	PlayerID string `json:"playerId"`
}

type PlayerStateUpdateRequest struct {
	State   Blob          `json:"state,omitempty"`
	Actions []ActionEntry `json:"actions,omitempty"`
}

type PlayerLogEventRequest struct {
	Entry ActionEntry `json:"entry"`
}

type EndTurnRequest struct {
	TurnSummary Blob `json:"turnSummary"`
}

type ClaimedTurn struct {
	TurnNumber int `json:"turnNumber"`
	Day        Day `json:"day"`
}

type CancelEndTurnRequest struct {
	Payload ClaimedTurn `json:"payload"`
}

type RenamePlayerRequest struct {
	Name string `json:"name"`
}

type ConnectedMessage struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
}

type RoomJoinedMessage struct {
	Type           string `json:"type"`
	RoomCode       string `json:"roomCode"`
	PlayerID       string `json:"playerId"`
	ReconnectToken string `json:"reconnectToken"`
	ProfileID      string `json:"profileId"`
	ProfileToken   string `json:"profileToken"`
}

type RoomStateMessage struct {
	Type       string     `json:"type"`
	Room       *RoomView  `json:"room"`
	You        *Player    `json:"you,omitempty"`
	ServerTime time.Time  `json:"serverTime"`
}

type PlayerStateUpdateMessage struct {
	Type       string        `json:"type"`
	PlayerID   string        `json:"playerId"`
	State      Blob          `json:"state,omitempty"`
	Actions    []ActionEntry `json:"actions,omitempty"`
	ServerTime time.Time     `json:"serverTime"`
}

type TurnAdvancedMessage struct {
	Type         string `json:"type"`
	RoomCode     string `json:"roomCode"`
	PreviousTurn int    `json:"previousTurn"`
	TurnNumber   int    `json:"turnNumber"`
	Day          Day    `json:"day"`
	Roll         []int  `json:"roll"`
	EndedDay     Day    `json:"endedDay"`
	SkippedDay   *Day   `json:"skippedDay"`
}

type GameCompletedMessage struct {
	Type       string `json:"type"`
	RoomCode   string `json:"roomCode"`
	EndedDay   Day    `json:"endedDay"`
	FinalDay   Day    `json:"finalDay"`
	TurnNumber int    `json:"turnNumber"`
}

type RemovedFromRoomMessage struct {
	Type     string `json:"type"`
	RoomCode string `json:"roomCode"`
	Reason   string `json:"reason"`
}

type RoomTerminatedMessage struct {
	Type       string `json:"type"`
	RoomCode   string `json:"roomCode"`
	Reason     string `json:"reason"`
	ByPlayerID string `json:"byPlayerId,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type HeartbeatAckMessage struct {
	Type       string    `json:"type"`
	ServerTime time.Time `json:"serverTime"`
}

// RoomView is the broadcast-safe projection of a room: per-seat secrets
// (reconnect tokens, connection ids) never leave the server, and each
// member's private mid-turn state travels only in their own "you" field.
type RoomView struct {
	Code           string            `json:"code"`
	Status         RoomStatus        `json:"status"`
	MaxPlayers     int               `json:"maxPlayers"`
	HostPlayerID   string            `json:"hostPlayerId"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	Turn           *Turn             `json:"turn,omitempty"`
	SharedLog      []SharedLogEntry  `json:"sharedLog"`
	PlayerProfiles map[string]string `json:"playerProfiles"`
	Players        []PlayerView      `json:"players"`
}

type PlayerView struct {
	PlayerID          string     `json:"playerId"`
	ProfileID         string     `json:"profileId"`
	Name              string     `json:"name"`
	Seat              int        `json:"seat"`
	Connected         bool       `json:"connected"`
	LastSeenAt        time.Time  `json:"lastSeenAt"`
	CanReconnectUntil *time.Time `json:"canReconnectUntil,omitempty"`
	EndedTurn         bool       `json:"endedTurn"`
	CompletedJournals int        `json:"completedJournals"`
}

// View builds the broadcast-safe projection of the room.
func (r *Room) View() *RoomView {
	players := make([]PlayerView, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, PlayerView{
			PlayerID:          p.PlayerID,
			ProfileID:         p.ProfileID,
			Name:              p.Name,
			Seat:              p.Seat,
			Connected:         p.Connected,
			LastSeenAt:        p.LastSeenAt,
			CanReconnectUntil: p.CanReconnectUntil,
			EndedTurn:         p.EndedTurn,
			CompletedJournals: p.CompletedJournals,
		})
	}
	sharedLog := make([]SharedLogEntry, len(r.SharedLog))
	copy(sharedLog, r.SharedLog)
	profiles := make(map[string]string, len(r.PlayerProfiles))
	for k, v := range r.PlayerProfiles {
		profiles[k] = v
	}
	var turn *Turn
	if r.Turn != nil {
		t := *r.Turn
		t.Roll = append([]int(nil), r.Turn.Roll...)
		turn = &t
	}
	return &RoomView{
		Code:           r.Code,
		Status:         r.Status,
		MaxPlayers:     r.MaxPlayers,
		HostPlayerID:   r.HostPlayerID,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		Turn:           turn,
		SharedLog:      sharedLog,
		PlayerProfiles: profiles,
		Players:        players,
	}
}
