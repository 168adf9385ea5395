// Package history keeps the durable, paginated journal of room events, indexed
// by room code and by every profile an event touched.
package history

import (
	"sync"

	"github.com/sundialgames/weekender-backend/internal"
)

// Index owns the server-wide event sequence counter and the bounded
// room-scoped and profile-scoped event lists.
type Index struct {
	mu        sync.RWMutex
	seq       uint64
	byRoom    map[string][]internal.RoomEvent
	byProfile map[string][]internal.RoomEvent

	roomCap    int
	profileCap int
}

func NewIndex() *Index {
	return &Index{
		byRoom:     make(map[string][]internal.RoomEvent),
		byProfile:  make(map[string][]internal.RoomEvent),
		roomCap:    internal.RoomHistoryCap,
		profileCap: internal.ProfileHistoryCap,
	}
}

// Record indexes the event. A zero sequence gets the next global value; a
// supplied sequence (rehydration from the durable log) is preserved while the
// counter is advanced to at least that value so it is never reused.
func (i *Index) Record(ev internal.RoomEvent) internal.RoomEvent {
	i.mu.Lock()
	defer i.mu.Unlock()

	if ev.Sequence == 0 {
		i.seq++
		ev.Sequence = i.seq
	} else if ev.Sequence > i.seq {
		i.seq = ev.Sequence
	}

	if ev.RoomCode != "" {
		list := append(i.byRoom[ev.RoomCode], ev)
		if len(list) > i.roomCap {
			list = list[len(list)-i.roomCap:]
		}
		i.byRoom[ev.RoomCode] = list
	}
	for _, profileID := range ev.ProfileRefs {
		if profileID == "" {
			continue
		}
		list := append(i.byProfile[profileID], ev)
		if len(list) > i.profileCap {
			list = list[len(list)-i.profileCap:]
		}
		i.byProfile[profileID] = list
	}
	return ev
}

// Sequence returns the last assigned global sequence value.
func (i *Index) Sequence() uint64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.seq
}

// QueryResult is one page of events, newest first. NextBefore is the cursor
// for the next (older) page: the smallest sequence in Events, or 0 when the
// page is empty.
type QueryResult struct {
	Events         []internal.RoomEvent `json:"events"`
	NextBefore     uint64               `json:"nextBefore"`
	TotalAvailable int                  `json:"totalAvailable"`
}

// QueryRoom pages backward through a room's events. A zero before means "from
// the newest".
func (i *Index) QueryRoom(roomCode string, before uint64, limit int) QueryResult {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return page(i.byRoom[roomCode], before, limit)
}

// QueryProfile pages backward through every event referencing the profile.
func (i *Index) QueryProfile(profileID string, before uint64, limit int) QueryResult {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return page(i.byProfile[profileID], before, limit)
}

func page(list []internal.RoomEvent, before uint64, limit int) QueryResult {
	if limit <= 0 {
		limit = 1
	}

	// Lists are stored oldest-first; find the slice of matches.
	end := len(list)
	if before > 0 {
		for end > 0 && list[end-1].Sequence >= before {
			end--
		}
	}
	matches := list[:end]

	start := len(matches) - limit
	if start < 0 {
		start = 0
	}
	pageSlice := matches[start:]

	events := make([]internal.RoomEvent, 0, len(pageSlice))
	for idx := len(pageSlice) - 1; idx >= 0; idx-- {
		events = append(events, pageSlice[idx])
	}

	res := QueryResult{Events: events, TotalAvailable: len(matches)}
	if len(events) > 0 {
		res.NextBefore = events[len(events)-1].Sequence
	}
	return res
}
