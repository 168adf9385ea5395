package internal

import (
	"encoding/json"
	"time"
)

const (
	MaxPlayersPerRoom   = 5
	RoomCodeLength      = 6
	RoomCodeFallbackLen = 10

	SharedLogCap      = 1500
	RoomHistoryCap    = 5000
	ProfileHistoryCap = 4000
	ProfileRoomsCap   = 30

	MaxSharedLogMessage = 400
	MaxPlayerNameLength = 24
	MaxBlobBytes        = 64 * 1024

	DiceCount = 5
	DieFaces  = 6
)

type RoomStatus string

const (
	StatusLobby     RoomStatus = "lobby"
	StatusInGame    RoomStatus = "in_game"
	StatusCompleted RoomStatus = "completed"
)

type Day string

const (
	DayFriday   Day = "Friday"
	DaySaturday Day = "Saturday"
	DaySunday   Day = "Sunday"
)

// DaySequence is the fixed forward-only day order for a game.
var DaySequence = []Day{DayFriday, DaySaturday, DaySunday}

// JournalThresholds maps each day to the completed-journal count that ends it.
var JournalThresholds = map[Day]int{
	DayFriday:   1,
	DaySaturday: 2,
	DaySunday:   3,
}

// DayIndex returns the position of d in DaySequence, or -1.
func DayIndex(d Day) int {
	for i, day := range DaySequence {
		if day == d {
			return i
		}
	}
	return -1
}

type Turn struct {
	Number   int       `json:"number"`
	Day      Day       `json:"day"`
	Roll     []int     `json:"roll"`
	RolledAt time.Time `json:"rolledAt"`
}

// Blob is an opaque client payload (turn summary, live state, action entries).
// The coordinator bounds its size and shape but never interprets it beyond the
// single completedJournals probe in the turn coordinator.
type Blob = json.RawMessage

type Player struct {
	PlayerID          string     `json:"playerId"`
	ProfileID         string     `json:"profileId"`
	Name              string     `json:"name"`
	Seat              int        `json:"seat"`
	Connected         bool       `json:"connected"`
	ConnectionID      string     `json:"-"`
	ReconnectToken    string     `json:"-"`
	LastSeenAt        time.Time  `json:"lastSeenAt"`
	CanReconnectUntil *time.Time `json:"canReconnectUntil,omitempty"`
	EndedTurn         bool       `json:"endedTurn"`
	CompletedJournals int        `json:"completedJournals"`
	TurnSummary       Blob       `json:"turnSummary,omitempty"`
	LiveState         Blob       `json:"liveState,omitempty"`
}

type Room struct {
	Code           string            `json:"code"`
	Status         RoomStatus        `json:"status"`
	MaxPlayers     int               `json:"maxPlayers"`
	HostPlayerID   string            `json:"hostPlayerId"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	Turn           *Turn             `json:"turn,omitempty"`
	SharedLog      []SharedLogEntry  `json:"sharedLog"`
	PlayerProfiles map[string]string `json:"playerProfiles"`
	Players        []*Player         `json:"players"`
}

// PlayerByID returns the seated player with the given id, or nil.
func (r *Room) PlayerByID(playerID string) *Player {
	for _, p := range r.Players {
		if p.PlayerID == playerID {
			return p
		}
	}
	return nil
}

// PlayerByReconnectToken returns the seat matching the token, or nil.
func (r *Room) PlayerByReconnectToken(token string) *Player {
	if token == "" {
		return nil
	}
	for _, p := range r.Players {
		if p.ReconnectToken == token {
			return p
		}
	}
	return nil
}

// LowestSeatPlayer returns the current member with the smallest seat number.
func (r *Room) LowestSeatPlayer() *Player {
	var lowest *Player
	for _, p := range r.Players {
		if lowest == nil || p.Seat < lowest.Seat {
			lowest = p
		}
	}
	return lowest
}

// FreeSeat returns the first available seat number, or 0 when the room is full.
func (r *Room) FreeSeat() int {
	for seat := 1; seat <= r.MaxPlayers; seat++ {
		taken := false
		for _, p := range r.Players {
			if p.Seat == seat {
				taken = true
				break
			}
		}
		if !taken {
			return seat
		}
	}
	return 0
}

// AllEndedTurn reports whether every seated player has ended the current turn.
// An empty room never counts as converged.
func (r *Room) AllEndedTurn() bool {
	if len(r.Players) == 0 {
		return false
	}
	for _, p := range r.Players {
		if !p.EndedTurn {
			return false
		}
	}
	return true
}

// ConnectedCount returns the number of members with a live connection.
func (r *Room) ConnectedCount() int {
	count := 0
	for _, p := range r.Players {
		if p.Connected {
			count++
		}
	}
	return count
}

// Joinable reports whether a fresh (non-reconnect) join may enter the room.
func (r *Room) Joinable() bool {
	return r.Status == StatusLobby && len(r.Players) < r.MaxPlayers
}

// EntryContext annotates a shared-log entry with its originating turn state.
type EntryContext struct {
	PlayerID       string `json:"playerId,omitempty"`
	TurnNumber     int    `json:"turnNumber,omitempty"`
	Day            Day    `json:"day,omitempty"`
	ClientActionID string `json:"clientActionId,omitempty"`
	ActionKey      string `json:"actionKey,omitempty"`
}

type SharedLogEntry struct {
	ID        string       `json:"id"`
	Level     string       `json:"level"`
	Message   string       `json:"message"`
	Timestamp time.Time    `json:"timestamp"`
	Context   EntryContext `json:"context"`
}

// RoomEvent is one append-only domain event. Sequence values are unique and
// strictly increasing across the whole server instance, surviving restarts.
type RoomEvent struct {
	EventID     string         `json:"eventId"`
	Sequence    uint64         `json:"sequence"`
	Timestamp   time.Time      `json:"timestamp"`
	RoomCode    string         `json:"roomCode"`
	Type        string         `json:"type"`
	Actor       string         `json:"actor,omitempty"`
	ProfileRefs []string       `json:"profileRefs,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
}

type ProfileRoomVisit struct {
	RoomCode        string     `json:"roomCode"`
	PlayerID        string     `json:"playerId"`
	PlayerName      string     `json:"playerName"`
	RoomStatus      RoomStatus `json:"roomStatus"`
	Connected       bool       `json:"connected"`
	JoinedAt        time.Time  `json:"joinedAt"`
	LastSeenAt      time.Time  `json:"lastSeenAt"`
	RemovedByAction string     `json:"removedByAction,omitempty"`
}

type Profile struct {
	ProfileID    string             `json:"profileId"`
	ProfileToken string             `json:"profileToken"`
	DisplayName  string             `json:"displayName"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
	LastSeenAt   time.Time          `json:"lastSeenAt"`
	Rooms        []ProfileRoomVisit `json:"rooms"`
}
