// Package registry owns the participant and room collections and implements
// matching, room allocation and teardown. It is the single authority over
// presence state: every mutating operation runs under one mutex so that
// allocation's validate-then-commit sequence is atomic relative to every
// other path that can change a participant's status or room binding.
package registry

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Abhishekverma657/AroundU-backend/internal/agent"
	"github.com/Abhishekverma657/AroundU-backend/internal/domain"
	"github.com/Abhishekverma657/AroundU-backend/internal/geo"
	"github.com/Abhishekverma657/AroundU-backend/internal/logging"
	"github.com/Abhishekverma657/AroundU-backend/internal/usecase"
)

// LeaveResult summarizes a room teardown so the caller can notify the
// remaining counterpart. The room is always destroyed: rooms are exactly
// two-party, so one departure empties them.
type LeaveResult struct {
	RoomID      string
	RoomKind    domain.RoomKind
	Departing   *domain.Participant
	Counterpart domain.RoomMember
	// RemainingPeer is set when the counterpart is a still-connected
	// participant that was reset to available as part of the teardown
	RemainingPeer *domain.Participant
}

// Registry is the presence and room state store
type Registry struct {
	mu           sync.Mutex
	participants map[string]*domain.Participant
	order        []string // participant ids in insertion order, for stable ties
	rooms        map[string]*domain.Room
	catalog      *agent.Catalog
	names        *usecase.NameGenerator
	log          logging.Logger
}

// New creates an empty registry backed by the given persona catalog
func New(catalog *agent.Catalog, names *usecase.NameGenerator, log logging.Logger) *Registry {
	return &Registry{
		participants: make(map[string]*domain.Participant),
		rooms:        make(map[string]*domain.Room),
		catalog:      catalog,
		names:        names,
		log:          log,
	}
}

// CreateParticipant mints a fresh available participant for the connection.
// A duplicate connID is a programming error in the transport layer, not a
// runtime condition to recover from.
func (r *Registry) CreateParticipant(connID string) (*domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.participants[connID]; exists {
		return nil, fmt.Errorf("connection %s already registered", connID)
	}

	p := domain.NewParticipant(connID, r.names.Generate(),
		usecase.RandomAvatarToken(domain.MinAvatarToken, domain.MaxAvatarToken))
	r.participants[connID] = p
	r.order = append(r.order, connID)

	r.log.Info("participant created", "conn_id", connID, "display_name", p.DisplayName)
	return clone(p), nil
}

// RegisterLocation sets the participant's position and search radius and
// forces status back to available, so a re-register never leaves a
// participant stuck busy from a stale prior state.
func (r *Registry) RegisterLocation(connID string, lat, lon, radius float64) (*domain.Participant, error) {
	if radius <= 0 {
		return nil, fmt.Errorf("radius must be positive: %w", domain.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[connID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	// A stale room binding is torn down through the normal path so the
	// room and any counterpart are freed together
	if p.RoomID != "" {
		r.teardownLocked(p)
	}

	p.Location = &domain.Location{Lat: lat, Lon: lon, Radius: radius}
	p.Status = domain.StatusAvailable
	return clone(p), nil
}

// UpdateProfile applies the present fields of the update and returns the
// merged record
func (r *Registry) UpdateProfile(connID string, upd domain.UpdateProfilePayload) (*domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[connID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	if upd.DisplayName != nil && *upd.DisplayName != "" {
		r.names.Release(p.DisplayName)
		r.names.Claim(*upd.DisplayName)
		p.DisplayName = *upd.DisplayName
	}
	if upd.GenderTag != nil {
		p.GenderTag = *upd.GenderTag
	}
	if upd.InterestTag != nil {
		p.InterestTag = *upd.InterestTag
	}
	return clone(p), nil
}

// Participant returns a snapshot of the participant record
func (r *Registry) Participant(connID string) (*domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[connID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(p), nil
}

// Room returns a snapshot of an active room, or ErrNotFound once it has
// been destroyed. Timers use this to re-validate before acting.
func (r *Registry) Room(roomID string) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *room
	cp.Members = append([]domain.RoomMember(nil), room.Members...)
	return &cp, nil
}

// FindNearby lists every other available participant with a registered
// location within the caller's own radius, plus every agent persona with a
// synthetic distance, ascending by distance. Only the caller's radius gates
// inclusion; the candidate's radius is not consulted. Ties keep insertion
// and catalog order.
func (r *Registry) FindNearby(connID string) ([]domain.NearbyEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	caller, ok := r.participants[connID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if caller.Location == nil {
		return nil, fmt.Errorf("location not registered: %w", domain.ErrInvalidInput)
	}

	entries := make([]domain.NearbyEntry, 0, len(r.order)+r.catalog.Len())
	for _, id := range r.order {
		p := r.participants[id]
		if p.ID == connID || p.Status != domain.StatusAvailable || p.Location == nil {
			continue
		}
		dist := geo.DistanceMeters(caller.Location.Lat, caller.Location.Lon, p.Location.Lat, p.Location.Lon)
		if dist > caller.Location.Radius {
			continue
		}
		entries = append(entries, domain.NearbyEntry{
			ID:             p.ID,
			DisplayName:    p.DisplayName,
			AvatarToken:    p.AvatarToken,
			DistanceMeters: dist,
		})
	}

	for _, pn := range r.catalog.ListNear(caller.Location.Lat, caller.Location.Lon) {
		entries = append(entries, domain.NearbyEntry{
			ID:             pn.Persona.ID,
			DisplayName:    domain.AgentMaskedName,
			AvatarToken:    pn.Persona.AvatarToken,
			DistanceMeters: pn.DistanceMeters,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DistanceMeters < entries[j].DistanceMeters
	})
	return entries, nil
}

// FindCompatiblePeer picks uniformly at random among the other available
// participants whose tags satisfy the mutual compatibility rule. Returns
// (nil, nil) when no candidate qualifies.
func (r *Registry) FindCompatiblePeer(connID string) (*domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	caller, ok := r.participants[connID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	var candidates []*domain.Participant
	for _, id := range r.order {
		p := r.participants[id]
		if p.ID == connID || p.Status != domain.StatusAvailable {
			continue
		}
		if interestMatches(caller.InterestTag, p.GenderTag) && interestMatches(p.InterestTag, caller.GenderTag) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return clone(candidates[rand.Intn(len(candidates))]), nil
}

// FindAgentMatch picks a persona compatible with the caller's interest tag,
// or any persona at all when none are compatible. Agents are a forced
// fallback: with a non-empty catalog this never comes back empty-handed.
func (r *Registry) FindAgentMatch(connID string) (*domain.AgentPersona, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	caller, ok := r.participants[connID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if r.catalog.Len() == 0 {
		return nil, fmt.Errorf("persona catalog is empty: %w", domain.ErrNotFound)
	}

	all := r.catalog.All()
	var matches []domain.AgentPersona
	for _, persona := range all {
		if interestMatches(caller.InterestTag, persona.GenderTag) {
			matches = append(matches, persona)
		}
	}
	if len(matches) == 0 {
		matches = all
	}
	picked := matches[rand.Intn(len(matches))]
	return &picked, nil
}

// AllocateRoom atomically binds the initiator and counterpart into a fresh
// exclusive room. Both parties are re-validated at this moment, not at match
// selection time: a candidate chosen earlier may have been claimed by someone
// else in the interim, and a stale candidate must lose the race here rather
// than be double-booked.
func (r *Registry) AllocateRoom(connID, counterpartID string) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	initiator, ok := r.participants[connID]
	if !ok || initiator.Status != domain.StatusAvailable {
		return nil, domain.ErrDenied
	}

	room := &domain.Room{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
	}

	if persona, isAgent := r.catalog.ByID(counterpartID); isAgent {
		room.Kind = domain.RoomAgent
		room.Members = []domain.RoomMember{
			{Kind: domain.MemberParticipant, ID: initiator.ID},
			{Kind: domain.MemberAgent, ID: persona.ID},
		}
	} else {
		counterpart, ok := r.participants[counterpartID]
		if !ok || counterpart.Status != domain.StatusAvailable || counterpartID == connID {
			return nil, domain.ErrDenied
		}
		room.Kind = domain.RoomPeer
		room.Members = []domain.RoomMember{
			{Kind: domain.MemberParticipant, ID: initiator.ID},
			{Kind: domain.MemberParticipant, ID: counterpart.ID},
		}
		counterpart.Status = domain.StatusBusy
		counterpart.RoomID = room.ID
	}

	initiator.Status = domain.StatusBusy
	initiator.RoomID = room.ID
	r.rooms[room.ID] = room

	r.log.Info("room allocated", "room_id", room.ID, "kind", string(room.Kind),
		"initiator", connID, "counterpart", counterpartID)

	cp := *room
	cp.Members = append([]domain.RoomMember(nil), room.Members...)
	return &cp, nil
}

// Leave removes the participant from its room. Rooms are exactly two-party,
// so the room is unconditionally destroyed and a remaining peer counterpart
// is reset to available in the same transaction. Returns (nil, nil) when the
// participant has no room; a second Leave in a row is therefore a no-op.
func (r *Registry) Leave(connID string) (*LeaveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[connID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.teardownLocked(p), nil
}

// LeaveIfMember tears down the participant's room only when it is still the
// given room. Deferred timers use this so a callback scheduled against one
// conversation can never destroy a newer one.
func (r *Registry) LeaveIfMember(connID, roomID string) *LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[connID]
	if !ok || p.RoomID != roomID {
		return nil
	}
	return r.teardownLocked(p)
}

// Disconnect tears down the participant's room, if any, and permanently
// removes the record. Safe to call on an unknown id.
func (r *Registry) Disconnect(connID string) *LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[connID]
	if !ok {
		return nil
	}

	res := r.teardownLocked(p)

	delete(r.participants, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.names.Release(p.DisplayName)

	r.log.Info("participant disconnected", "conn_id", connID)
	return res
}

// Counts reports the number of live participants and active rooms
func (r *Registry) Counts() (participants, rooms int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants), len(r.rooms)
}

// teardownLocked destroys p's room and frees both sides. Caller holds r.mu.
func (r *Registry) teardownLocked(p *domain.Participant) *LeaveResult {
	if p.RoomID == "" {
		return nil
	}

	roomID := p.RoomID
	room := r.rooms[roomID]

	p.Status = domain.StatusAvailable
	p.RoomID = ""

	if room == nil {
		// Room already gone; binding was stale. Freeing p above restores
		// the invariant.
		r.log.Warn("participant referenced missing room", "conn_id", p.ID, "room_id", roomID)
		return nil
	}

	delete(r.rooms, roomID)

	res := &LeaveResult{
		RoomID:    roomID,
		RoomKind:  room.Kind,
		Departing: clone(p),
	}
	if other, ok := room.Counterpart(p.ID); ok {
		res.Counterpart = other
		if other.Kind == domain.MemberParticipant {
			if peer, live := r.participants[other.ID]; live && peer.RoomID == roomID {
				peer.Status = domain.StatusAvailable
				peer.RoomID = ""
				res.RemainingPeer = clone(peer)
			}
		}
	}

	r.log.Info("room destroyed", "room_id", roomID, "departed", p.ID)
	return res
}

// interestMatches applies the asymmetric compatibility rule: a wildcard
// interest matches anything, otherwise the interest must equal the concrete
// gender tag. An unset interest never matches.
func interestMatches(interest, gender string) bool {
	if interest == domain.InterestAny {
		return true
	}
	return interest != "" && interest == gender
}

func clone(p *domain.Participant) *domain.Participant {
	cp := *p
	if p.Location != nil {
		loc := *p.Location
		cp.Location = &loc
	}
	return &cp
}
