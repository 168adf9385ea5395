package coordinator

import (
	"github.com/rs/zerolog/log"

	"github.com/sundialgames/weekender-backend/internal"
)

// outbound pairs a message with the guarded connection it goes to. Handlers
// build these under the coordinator lock from one consistent post-mutation
// snapshot, then deliver after releasing it.
type outbound struct {
	conn *ClientConn
	msg  any
}

// roomStateSendsLocked builds an individualized room_state for every connected
// member: the shared RoomView plus that member's own seat (including private
// liveState and turn summary). Callers hold c.mu.
func (c *Coordinator) roomStateSendsLocked(room *internal.Room) []outbound {
	view := room.View()
	now := c.now().UTC()
	sends := make([]outbound, 0, len(room.Players))
	for _, p := range room.Players {
		if !p.Connected || p.ConnectionID == "" {
			continue
		}
		conn := c.conns.Get(p.ConnectionID)
		if conn == nil {
			continue
		}
		you := *p
		sends = append(sends, outbound{conn: conn, msg: internal.RoomStateMessage{
			Type:       internal.TypeRoomState,
			Room:       view,
			You:        &you,
			ServerTime: now,
		}})
	}
	return sends
}

// messageSendsLocked fans one identical message out to every connected member,
// optionally skipping some connection ids. Callers hold c.mu.
func (c *Coordinator) messageSendsLocked(room *internal.Room, msg any, except ...string) []outbound {
	skip := make(map[string]struct{}, len(except))
	for _, id := range except {
		skip[id] = struct{}{}
	}
	sends := make([]outbound, 0, len(room.Players))
	for _, p := range room.Players {
		if !p.Connected || p.ConnectionID == "" {
			continue
		}
		if _, ok := skip[p.ConnectionID]; ok {
			continue
		}
		conn := c.conns.Get(p.ConnectionID)
		if conn == nil {
			continue
		}
		sends = append(sends, outbound{conn: conn, msg: msg})
	}
	return sends
}

// deliver writes queued messages outside the coordinator lock. Send failures
// are logged and skipped; the failing member's read loop will observe the
// dead socket and run the disconnect path.
func deliver(sends []outbound) {
	for _, s := range sends {
		if err := s.conn.SendJSON(s.msg); err != nil {
			log.Debug().Err(err).Str("conn", s.conn.ID).Msg("broadcast send failed")
		}
	}
}
