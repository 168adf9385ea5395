package coordinator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sundialgames/weekender-backend/internal"
)

// SweepResult summarizes one reclamation pass.
type SweepResult struct {
	ExpiredPlayers int
	DeletedRooms   int
	ForcedAdvances int
}

// Sweep expires disconnected players whose reconnect window has elapsed,
// deletes rooms that empty out, re-homes the host seat, and forces turn
// advancement when everyone left standing has already ended their turn. One
// room's trouble never stops the rest of the pass.
func (c *Coordinator) Sweep(now time.Time) SweepResult {
	c.mu.Lock()
	codes := make([]string, 0, len(c.rooms))
	for code := range c.rooms {
		codes = append(codes, code)
	}
	c.mu.Unlock()

	var result SweepResult
	for _, code := range codes {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Str("room", code).Any("panic", r).Msg("sweep pass panicked for room")
				}
			}()
			c.sweepRoom(code, now, &result)
		}()
	}
	return result
}

func (c *Coordinator) sweepRoom(code string, now time.Time, result *SweepResult) {
	c.mu.Lock()
	room, ok := c.rooms[code]
	if !ok {
		c.mu.Unlock()
		return
	}

	changed := false
	for {
		expired := findExpiredPlayer(room, now)
		if expired == nil {
			break
		}
		result.ExpiredPlayers++
		changed = true
		log.Info().Str("room", room.Code).Str("player", expired.PlayerID).Msg("reconnect window elapsed, removing player")
		if c.removePlayerLocked(room, expired, "expired", "player_expired") {
			result.DeletedRooms++
			c.mu.Unlock()
			return
		}
	}

	// The last holdout's grace may have just expired mid-turn; everyone still
	// seated has ended, so the turn must not stall.
	var sends []outbound
	if room.Status == internal.StatusInGame && room.AllEndedTurn() {
		result.ForcedAdvances++
		sends = c.advanceTurnLocked(room)
	} else if changed {
		sends = c.roomStateSendsLocked(room)
	}
	c.mu.Unlock()

	deliver(sends)
}

func findExpiredPlayer(room *internal.Room, now time.Time) *internal.Player {
	for _, p := range room.Players {
		if p.Connected || p.CanReconnectUntil == nil {
			continue
		}
		if now.After(*p.CanReconnectUntil) {
			return p
		}
	}
	return nil
}

// RunSweepLoop runs Sweep on the given interval until the context is
// cancelled.
func (c *Coordinator) RunSweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			res := c.Sweep(tick)
			if res.ExpiredPlayers > 0 || res.DeletedRooms > 0 || res.ForcedAdvances > 0 {
				log.Info().
					Int("expired_players", res.ExpiredPlayers).
					Int("deleted_rooms", res.DeletedRooms).
					Int("forced_advances", res.ForcedAdvances).
					Msg("sweep reclaimed state")
			}
		}
	}
}
