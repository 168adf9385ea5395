package coordinator

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/sundialgames/weekender-backend/internal"
	"github.com/sundialgames/weekender-backend/internal/utils"
)

// actionKey builds the dedup key for a shared-log entry. When the client
// supplies an idempotency id the key is derived from it alone (with player
// and turn scope), so retries with a refreshed client timestamp still
// collapse into one entry. Entries without an id fall back to their position
// and timestamp, which tolerates duplicates only within the same delivery.
func actionKey(playerID string, turnNumber int, day internal.Day, a internal.ActionEntry, index int) string {
	if a.ClientActionID != "" {
		return fmt.Sprintf("%s|%d|%s|%s", playerID, turnNumber, day, a.ClientActionID)
	}
	return fmt.Sprintf("%s|%d|%s|#%d|%d", playerID, turnNumber, day, index, a.Timestamp)
}

// appendActionsLocked merges player actions into the room's shared log. Both
// ingestion paths, the bulk merge from an accepted turn summary and the
// incremental push of a single live action, funnel through here: entries
// whose action key already exists in the current log are silently dropped,
// then the log is truncated to the newest SharedLogCap entries. Callers hold
// c.mu.
func (c *Coordinator) appendActionsLocked(room *internal.Room, player *internal.Player, actions []internal.ActionEntry) int {
	if len(actions) == 0 {
		return 0
	}

	existing := make(map[string]struct{}, len(room.SharedLog))
	for _, entry := range room.SharedLog {
		existing[entry.Context.ActionKey] = struct{}{}
	}

	turnNumber := 0
	day := internal.Day("")
	if room.Turn != nil {
		turnNumber = room.Turn.Number
		day = room.Turn.Day
	}

	appended := 0
	now := c.now().UTC()
	for i, action := range actions {
		key := actionKey(player.PlayerID, turnNumber, day, action, i)
		if _, dup := existing[key]; dup {
			continue
		}
		existing[key] = struct{}{}

		level := action.Level
		if level == "" {
			level = "info"
		}
		entry := internal.SharedLogEntry{
			ID:        uuid.NewString(),
			Level:     level,
			Message:   utils.Truncate(action.Message, internal.MaxSharedLogMessage),
			Timestamp: now,
			Context: internal.EntryContext{
				PlayerID:       player.PlayerID,
				TurnNumber:     turnNumber,
				Day:            day,
				ClientActionID: action.ClientActionID,
				ActionKey:      key,
			},
		}
		room.SharedLog = append(room.SharedLog, entry)
		appended++

		if c.actionLog != nil {
			c.actionLog.Append(map[string]any{
				"roomCode": room.Code,
				"entry":    entry,
			})
		}
	}

	if len(room.SharedLog) > internal.SharedLogCap {
		room.SharedLog = room.SharedLog[len(room.SharedLog)-internal.SharedLogCap:]
	}
	return appended
}

// removePlayerLogEntriesLocked strips one player's entries for the given turn
// and day, used when an end-turn submission is cancelled. Callers hold c.mu.
func (c *Coordinator) removePlayerLogEntriesLocked(room *internal.Room, playerID string, turnNumber int, day internal.Day) {
	filtered := room.SharedLog[:0]
	for _, entry := range room.SharedLog {
		ctx := entry.Context
		if ctx.PlayerID == playerID && ctx.TurnNumber == turnNumber && ctx.Day == day {
			continue
		}
		filtered = append(filtered, entry)
	}
	room.SharedLog = filtered
}
