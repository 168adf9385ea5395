// Package coordinator is the single-writer authority over rooms, seats, and
// the turn clock. Every inbound socket frame, HTTP projection, and sweep tick
// serializes through one mutex, so a mutation never observes another mutation
// half-applied. Socket writes happen outside the lock through per-connection
// write guards.
package coordinator

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sundialgames/weekender-backend/internal"
	"github.com/sundialgames/weekender-backend/internal/history"
	"github.com/sundialgames/weekender-backend/internal/profile"
)

// Sink receives fire-and-forget durable records (NDJSON append logs). A nil
// sink is valid and drops everything, which tests rely on.
type Sink interface {
	Append(v any)
}

// Options tunes the coordinator's only timeout mechanisms.
type Options struct {
	ReconnectWindow time.Duration
}

func DefaultOptions() Options {
	return Options{ReconnectWindow: 2 * time.Minute}
}

// session binds a live connection to the seat it occupies.
type session struct {
	roomCode string
	playerID string
}

type Coordinator struct {
	opts Options

	mu       sync.Mutex
	rooms    map[string]*internal.Room
	sessions map[string]session

	conns    *ConnRegistry
	profiles *profile.Store
	history  *history.Index

	eventLog  Sink
	actionLog Sink

	now func() time.Time
}

func New(opts Options, profiles *profile.Store, hist *history.Index) *Coordinator {
	if opts.ReconnectWindow <= 0 {
		opts.ReconnectWindow = DefaultOptions().ReconnectWindow
	}
	return &Coordinator{
		opts:     opts,
		rooms:    make(map[string]*internal.Room),
		sessions: make(map[string]session),
		conns:    NewConnRegistry(),
		profiles: profiles,
		history:  hist,
		now:      time.Now,
	}
}

// AttachSinks wires the durable append logs. Either may be nil.
func (c *Coordinator) AttachSinks(events, actions Sink) {
	c.eventLog = events
	c.actionLog = actions
}

// Connections exposes the connection registry (used by the HTTP layer for
// liveness counts).
func (c *Coordinator) Connections() *ConnRegistry { return c.conns }

// Profiles exposes the profile store for read projections.
func (c *Coordinator) Profiles() *profile.Store { return c.profiles }

// History exposes the event index for read projections.
func (c *Coordinator) History() *history.Index { return c.history }

// RoomCount returns the number of live rooms.
func (c *Coordinator) RoomCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rooms)
}

// emitEventLocked records a domain event: assigns the next global sequence,
// indexes it by room and profile, and queues it to the durable log. Callers
// hold c.mu.
func (c *Coordinator) emitEventLocked(room *internal.Room, evType, actor string, payload map[string]any, extraRefs ...string) internal.RoomEvent {
	refs := make([]string, 0, len(room.PlayerProfiles)+len(extraRefs))
	seen := make(map[string]struct{})
	for _, profileID := range room.PlayerProfiles {
		if _, ok := seen[profileID]; ok {
			continue
		}
		seen[profileID] = struct{}{}
		refs = append(refs, profileID)
	}
	for _, profileID := range extraRefs {
		if profileID == "" {
			continue
		}
		if _, ok := seen[profileID]; ok {
			continue
		}
		seen[profileID] = struct{}{}
		refs = append(refs, profileID)
	}

	ev := internal.RoomEvent{
		EventID:     uuid.NewString(),
		Timestamp:   c.now().UTC(),
		RoomCode:    room.Code,
		Type:        evType,
		Actor:       actor,
		ProfileRefs: refs,
		Payload:     payload,
	}
	ev = c.history.Record(ev)
	if c.eventLog != nil {
		c.eventLog.Append(ev)
	}
	return ev
}

// touchVisitLocked upserts the caller's profile room-visit row. Callers hold
// c.mu; the profile store has its own lock, which is safe because the store
// never calls back into the coordinator.
func (c *Coordinator) touchVisitLocked(room *internal.Room, p *internal.Player, removedBy string) {
	profileID := p.ProfileID
	if profileID == "" {
		return
	}
	c.profiles.TouchVisit(profileID, internal.ProfileRoomVisit{
		RoomCode:        room.Code,
		PlayerID:        p.PlayerID,
		PlayerName:      p.Name,
		RoomStatus:      room.Status,
		Connected:       p.Connected,
		JoinedAt:        p.LastSeenAt,
		LastSeenAt:      c.now().UTC(),
		RemovedByAction: removedBy,
	})
}

// RoomDirectoryEntry is one row of the lobby directory projection.
type RoomDirectoryEntry struct {
	Code        string              `json:"code"`
	Status      internal.RoomStatus `json:"status"`
	PlayerCount int                 `json:"playerCount"`
	MaxPlayers  int                 `json:"maxPlayers"`
	Joinable    bool                `json:"joinable"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// RoomDirectory returns the joinability listing for the HTTP surface. Pure
// projection; never mutates.
func (c *Coordinator) RoomDirectory() []RoomDirectoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RoomDirectoryEntry, 0, len(c.rooms))
	for _, room := range c.rooms {
		out = append(out, RoomDirectoryEntry{
			Code:        room.Code,
			Status:      room.Status,
			PlayerCount: len(room.Players),
			MaxPlayers:  room.MaxPlayers,
			Joinable:    room.Joinable(),
			CreatedAt:   room.CreatedAt,
		})
	}
	return out
}

// ActiveRoomsFor lists the rooms where the profile currently holds a seat.
func (c *Coordinator) ActiveRoomsFor(profileID string) []internal.ProfileRoomVisit {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]internal.ProfileRoomVisit, 0, 2)
	for _, room := range c.rooms {
		for _, p := range room.Players {
			if p.ProfileID != profileID {
				continue
			}
			out = append(out, internal.ProfileRoomVisit{
				RoomCode:   room.Code,
				PlayerID:   p.PlayerID,
				PlayerName: p.Name,
				RoomStatus: room.Status,
				Connected:  p.Connected,
				JoinedAt:   p.LastSeenAt,
				LastSeenAt: p.LastSeenAt,
			})
		}
	}
	return out
}

// sendError replies error{code, message} to the originating connection only.
func (c *Coordinator) sendError(conn *ClientConn, err error) {
	if conn == nil || err == nil {
		return
	}
	ce := internal.AsCoordError(err)
	msg := internal.ErrorMessage{Type: internal.TypeError, Code: ce.Code, Message: ce.Message}
	if sendErr := conn.SendJSON(msg); sendErr != nil {
		log.Debug().Err(sendErr).Str("conn", conn.ID).Msg("error reply failed")
	}
}
