package domain

import (
	"time"
)

// Status describes whether a participant can be matched
type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
)

// InterestAny is the wildcard interest tag matching every gender tag
const InterestAny = "any"

// Location is a participant's registered position and search radius.
// Absent (nil) until the client sends register_location; never a zero-value
// sentinel, so radius 0 or coordinate 0 are unambiguous.
type Location struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Radius float64 `json:"radius"` // search radius in meters
}

// Participant represents one live connection's anonymous identity
type Participant struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarToken int       `json:"avatar_token"` // 1-10, fixed at creation
	Location    *Location `json:"location,omitempty"`
	GenderTag   string    `json:"gender_tag,omitempty"`
	InterestTag string    `json:"interest_tag,omitempty"` // may be InterestAny
	Status      Status    `json:"status"`
	RoomID      string    `json:"room_id,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

// NewParticipant creates an available participant with no location or room
func NewParticipant(connID, displayName string, avatarToken int) *Participant {
	return &Participant{
		ID:          connID,
		DisplayName: displayName,
		AvatarToken: avatarToken,
		Status:      StatusAvailable,
		JoinedAt:    time.Now(),
	}
}

// InRoom reports whether the participant is bound to a room.
// Invariant: Status == StatusBusy exactly when this is true.
func (p *Participant) InRoom() bool {
	return p.RoomID != ""
}
