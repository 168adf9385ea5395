// Package profile keeps the durable identity registry: bearer token to stable
// profile id, display name, and the bounded most-recent-rooms list.
package profile

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sundialgames/weekender-backend/internal"
	"github.com/sundialgames/weekender-backend/internal/utils"
)

// Store is the in-memory profile registry. Mutations fire the change hook so
// the persistence layer can schedule a snapshot without blocking callers.
type Store struct {
	mu      sync.RWMutex
	byToken map[string]*internal.Profile
	byID    map[string]*internal.Profile

	onChange func()
}

func NewStore() *Store {
	return &Store{
		byToken: make(map[string]*internal.Profile),
		byID:    make(map[string]*internal.Profile),
	}
}

// SetOnChange registers the hook fired after every mutation.
func (s *Store) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) changedLocked() {
	if s.onChange != nil {
		go s.onChange()
	}
}

// Resolve returns the profile for the bearer token, creating one lazily when
// the token is absent or unknown. A syntactically valid unknown token is
// adopted as-is so a returning client keeps its identity; anything else gets a
// freshly generated secret. The token-to-id mapping is never reassigned.
func (s *Store) Resolve(token, displayName string) internal.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if p, ok := s.byToken[token]; ok {
		p.LastSeenAt = now
		if displayName != "" && p.DisplayName != displayName {
			p.DisplayName = displayName
			p.UpdatedAt = now
		}
		s.changedLocked()
		return cloneProfile(p)
	}

	if !utils.ValidProfileToken(token) {
		token = utils.GenerateToken(24)
	}
	p := &internal.Profile{
		ProfileID:    uuid.NewString(),
		ProfileToken: token,
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastSeenAt:   now,
		Rooms:        make([]internal.ProfileRoomVisit, 0),
	}
	s.byToken[token] = p
	s.byID[p.ProfileID] = p
	s.changedLocked()
	return cloneProfile(p)
}

// Lookup returns the profile for a known token without creating one.
func (s *Store) Lookup(token string) (internal.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byToken[token]
	if !ok {
		return internal.Profile{}, false
	}
	return cloneProfile(p), true
}

// LookupByID returns the profile with the given stable id.
func (s *Store) LookupByID(profileID string) (internal.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[profileID]
	if !ok {
		return internal.Profile{}, false
	}
	return cloneProfile(p), true
}

// SetDisplayName records a rename.
func (s *Store) SetDisplayName(profileID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[profileID]
	if !ok || name == "" {
		return
	}
	now := time.Now().UTC()
	p.DisplayName = name
	p.UpdatedAt = now
	p.LastSeenAt = now
	s.changedLocked()
}

// TouchVisit upserts the room visit keyed by room code, moves it to the front
// of the most-recent-first list, and truncates to the cap. An existing row's
// JoinedAt is the moment the seat was first taken and survives every
// subsequent touch.
func (s *Store) TouchVisit(profileID string, visit internal.ProfileRoomVisit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[profileID]
	if !ok {
		return
	}

	rooms := make([]internal.ProfileRoomVisit, 0, len(p.Rooms)+1)
	for _, v := range p.Rooms {
		if v.RoomCode == visit.RoomCode {
			if !v.JoinedAt.IsZero() {
				visit.JoinedAt = v.JoinedAt
			}
			continue
		}
		rooms = append(rooms, v)
	}
	rooms = append([]internal.ProfileRoomVisit{visit}, rooms...)
	if len(rooms) > internal.ProfileRoomsCap {
		rooms = rooms[:internal.ProfileRoomsCap]
	}
	p.Rooms = rooms

	now := time.Now().UTC()
	p.UpdatedAt = now
	p.LastSeenAt = now
	s.changedLocked()
}

// Count returns the number of known profiles.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Snapshot returns a stable copy of every profile for the snapshot file.
func (s *Store) Snapshot() []internal.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]internal.Profile, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, cloneProfile(p))
	}
	return out
}

// Restore loads profiles from a snapshot, replacing the current contents.
// Entries with missing identifiers are skipped.
func (s *Store) Restore(profiles []internal.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byToken = make(map[string]*internal.Profile, len(profiles))
	s.byID = make(map[string]*internal.Profile, len(profiles))
	for idx := range profiles {
		p := profiles[idx]
		if p.ProfileID == "" || p.ProfileToken == "" {
			continue
		}
		cp := cloneProfile(&p)
		s.byToken[cp.ProfileToken] = &cp
		s.byID[cp.ProfileID] = &cp
	}
}

func cloneProfile(p *internal.Profile) internal.Profile {
	cp := *p
	cp.Rooms = append([]internal.ProfileRoomVisit(nil), p.Rooms...)
	return cp
}
