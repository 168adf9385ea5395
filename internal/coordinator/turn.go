package coordinator

import (
	"github.com/rs/zerolog/log"

	"github.com/sundialgames/weekender-backend/internal"
	"github.com/sundialgames/weekender-backend/internal/utils"
)

// DayTransition is the resolved outcome of one advance: a normal single-day
// advance, a day-skip advance, or game completion. EndedDay is empty when no
// day's threshold was met and play stays on the current day.
type DayTransition struct {
	EndedDay   internal.Day
	SkippedDay *internal.Day
	Completed  bool
	NextDay    internal.Day
}

// ResolveDayTransition applies the threshold rule. Starting at the current
// day, the first day whose journal threshold is met by the best player's
// completedJournals count is the ended day. Ending Sunday completes the game.
// Otherwise, when the following day's threshold is already met too, that day
// is skipped outright; skipping past Sunday also completes the game.
func ResolveDayTransition(current internal.Day, maxJournals int) DayTransition {
	res := DayTransition{NextDay: current}

	endedIdx := -1
	for i := internal.DayIndex(current); i >= 0 && i < len(internal.DaySequence); i++ {
		day := internal.DaySequence[i]
		if maxJournals >= internal.JournalThresholds[day] {
			endedIdx = i
			break
		}
	}
	if endedIdx < 0 {
		return res
	}
	res.EndedDay = internal.DaySequence[endedIdx]

	if endedIdx == len(internal.DaySequence)-1 {
		res.Completed = true
		return res
	}

	nextIdx := endedIdx + 1
	next := internal.DaySequence[nextIdx]
	if maxJournals >= internal.JournalThresholds[next] {
		skipped := next
		res.SkippedDay = &skipped
		nextIdx++
		if nextIdx >= len(internal.DaySequence) {
			res.Completed = true
			return res
		}
	}
	res.NextDay = internal.DaySequence[nextIdx]
	return res
}

// SubmitTurn accepts a player's end-of-turn summary: exactly once per turn,
// only for the turn the client believes it is answering. Accepted summaries
// merge their actions into the shared log; once every seated player has
// ended, the turn advances.
func (c *Coordinator) SubmitTurn(connID string, summary internal.Blob) error {
	if err := internal.ValidateBlob(summary); err != nil {
		return internal.NewCoordError(internal.ErrInvalidMessage, err.Error())
	}
	probe, err := internal.ProbeSummary(summary)
	if err != nil {
		return internal.NewCoordError(internal.ErrInvalidMessage, err.Error())
	}

	c.mu.Lock()
	sess, ok := c.sessions[connID]
	if !ok {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrNotInRoom, "you are not in a room")
	}
	room := c.rooms[sess.roomCode]
	if room.Status != internal.StatusInGame {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrGameNotStarted, "the game has not started")
	}
	player := room.PlayerByID(sess.playerID)
	if player.EndedTurn {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrAlreadyEndedTurn, "turn already submitted")
	}
	// A stale submission racing a transition claims the wrong turn; reject it
	// rather than fold it into the current one. Each claimed field is checked
	// on its own, so a summary carrying only a stale day is still caught.
	if probe.TurnNumber != 0 && probe.TurnNumber != room.Turn.Number {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrTurnMismatch, "submission does not match the current turn")
	}
	if probe.Day != "" && probe.Day != room.Turn.Day {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrTurnMismatch, "submission does not match the current day")
	}

	now := c.now().UTC()
	player.EndedTurn = true
	player.TurnSummary = summary
	player.LastSeenAt = now
	if probe.CompletedJournals > player.CompletedJournals {
		player.CompletedJournals = probe.CompletedJournals
	}
	c.appendActionsLocked(room, player, probe.Actions)
	room.UpdatedAt = now

	c.emitEventLocked(room, "turn_submitted", player.PlayerID, map[string]any{
		"playerId":          player.PlayerID,
		"turnNumber":        room.Turn.Number,
		"day":               room.Turn.Day,
		"completedJournals": player.CompletedJournals,
	})

	var sends []outbound
	if room.AllEndedTurn() {
		sends = c.advanceTurnLocked(room)
	} else {
		sends = c.roomStateSendsLocked(room)
	}
	c.mu.Unlock()

	deliver(sends)
	return nil
}

// CancelEndTurn reverts a submission made for the still-current turn and
// strips that player's shared-log entries for it, so the log reflects only
// live submissions.
func (c *Coordinator) CancelEndTurn(connID string, claimed internal.ClaimedTurn) error {
	c.mu.Lock()
	sess, ok := c.sessions[connID]
	if !ok {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrNotInRoom, "you are not in a room")
	}
	room := c.rooms[sess.roomCode]
	if room.Status != internal.StatusInGame {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrGameNotStarted, "the game has not started")
	}
	if claimed.TurnNumber != room.Turn.Number || claimed.Day != room.Turn.Day {
		c.mu.Unlock()
		return internal.NewCoordError(internal.ErrTurnMismatch, "cancellation does not match the current turn")
	}

	player := room.PlayerByID(sess.playerID)
	player.EndedTurn = false
	player.TurnSummary = nil
	c.removePlayerLogEntriesLocked(room, player.PlayerID, room.Turn.Number, room.Turn.Day)
	room.UpdatedAt = c.now().UTC()

	c.emitEventLocked(room, "turn_submission_cancelled", player.PlayerID, map[string]any{
		"playerId":   player.PlayerID,
		"turnNumber": room.Turn.Number,
		"day":        room.Turn.Day,
	})
	sends := c.roomStateSendsLocked(room)
	c.mu.Unlock()

	deliver(sends)
	return nil
}

// advanceTurnLocked resolves the day transition and either completes the game
// or rolls a fresh turn and resets per-player turn state. Returns the sends
// for the transition notice plus the post-mutation room state. Callers hold
// c.mu.
func (c *Coordinator) advanceTurnLocked(room *internal.Room) []outbound {
	best := 0
	for _, p := range room.Players {
		if p.CompletedJournals > best {
			best = p.CompletedJournals
		}
	}
	transition := ResolveDayTransition(room.Turn.Day, best)
	now := c.now().UTC()
	previous := room.Turn.Number

	if transition.Completed {
		room.Status = internal.StatusCompleted
		room.UpdatedAt = now
		c.emitEventLocked(room, "game_completed", "", map[string]any{
			"endedDay":   transition.EndedDay,
			"finalDay":   room.Turn.Day,
			"turnNumber": room.Turn.Number,
		})
		notice := internal.GameCompletedMessage{
			Type:       internal.TypeGameCompleted,
			RoomCode:   room.Code,
			EndedDay:   transition.EndedDay,
			FinalDay:   room.Turn.Day,
			TurnNumber: room.Turn.Number,
		}
		log.Info().Str("room", room.Code).Int("turn", room.Turn.Number).Msg("game completed")
		sends := c.messageSendsLocked(room, notice)
		return append(sends, c.roomStateSendsLocked(room)...)
	}

	room.Turn = &internal.Turn{
		Number:   previous + 1,
		Day:      transition.NextDay,
		Roll:     utils.RollDice(),
		RolledAt: now,
	}
	for _, p := range room.Players {
		p.EndedTurn = false
		p.TurnSummary = nil
		p.LiveState = nil
	}
	room.UpdatedAt = now

	payload := map[string]any{
		"previousTurn": previous,
		"turnNumber":   room.Turn.Number,
		"day":          room.Turn.Day,
		"roll":         room.Turn.Roll,
		"endedDay":     transition.EndedDay,
	}
	if transition.SkippedDay != nil {
		payload["skippedDay"] = *transition.SkippedDay
	}
	c.emitEventLocked(room, "turn_advanced", "", payload)

	notice := internal.TurnAdvancedMessage{
		Type:         internal.TypeTurnAdvanced,
		RoomCode:     room.Code,
		PreviousTurn: previous,
		TurnNumber:   room.Turn.Number,
		Day:          room.Turn.Day,
		Roll:         room.Turn.Roll,
		EndedDay:     transition.EndedDay,
		SkippedDay:   transition.SkippedDay,
	}
	log.Info().Str("room", room.Code).Int("turn", room.Turn.Number).Str("day", string(room.Turn.Day)).Msg("turn advanced")
	sends := c.messageSendsLocked(room, notice)
	return append(sends, c.roomStateSendsLocked(room)...)
}
