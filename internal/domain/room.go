package domain

import "time"

// RoomKind distinguishes two-human rooms from human-plus-agent rooms
type RoomKind string

const (
	RoomPeer  RoomKind = "peer"
	RoomAgent RoomKind = "agent"
)

// MemberKind tags a room member as a real participant or an agent persona.
// Membership is resolved once at allocation time and carried explicitly,
// never re-derived from the shape of an id.
type MemberKind string

const (
	MemberParticipant MemberKind = "participant"
	MemberAgent       MemberKind = "agent"
)

// RoomMember is one side of a conversation
type RoomMember struct {
	Kind MemberKind `json:"kind"`
	ID   string     `json:"id"`
}

// Room is an exclusive two-party conversation. It always holds exactly the
// two members it was created with; the moment either departs the room is
// destroyed.
type Room struct {
	ID        string       `json:"id"`
	Kind      RoomKind     `json:"kind"`
	Members   []RoomMember `json:"members"`
	CreatedAt time.Time    `json:"created_at"`
}

// HasMember reports whether the given id is one of the room's members
func (r *Room) HasMember(id string) bool {
	for _, m := range r.Members {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Counterpart returns the member other than the given id
func (r *Room) Counterpart(id string) (RoomMember, bool) {
	for _, m := range r.Members {
		if m.ID != id {
			return m, true
		}
	}
	return RoomMember{}, false
}
