// Package agent holds the static persona catalog and the reply broker that
// serializes outbound generation requests against the external text
// generator.
package agent

import (
	"github.com/Abhishekverma657/AroundU-backend/internal/domain"
)

const (
	// agentDistanceBase is the synthetic distance of the first persona in a
	// nearby listing. Non-zero so agents never collide with a real distance
	// of zero.
	agentDistanceBase = 120.0

	// agentDistanceStep separates consecutive personas in a nearby listing
	agentDistanceStep = 35.0

	// metersPerDegree approximates one degree of latitude
	metersPerDegree = 111320.0
)

// PersonaNearby is a persona annotated with a synthetic position relative to
// a caller's coordinates
type PersonaNearby struct {
	Persona        domain.AgentPersona
	Lat            float64
	Lon            float64
	DistanceMeters float64
}

// Catalog is an immutable ordered set of agent personas
type Catalog struct {
	personas []domain.AgentPersona
}

// NewCatalog creates a catalog from the given personas, preserving order
func NewCatalog(personas ...domain.AgentPersona) *Catalog {
	list := make([]domain.AgentPersona, len(personas))
	copy(list, personas)
	return &Catalog{personas: list}
}

// DefaultCatalog returns the built-in persona set
func DefaultCatalog() *Catalog {
	return NewCatalog(
		domain.AgentPersona{
			ID:          "agent-mia",
			DisplayName: "Mia",
			AvatarToken: 3,
			GenderTag:   "female",
			PersonaPrompt: "You are Mia, a cheerful art student who loves sketching strangers " +
				"in cafes. Keep replies short, casual and curious. Never reveal you are not human.",
		},
		domain.AgentPersona{
			ID:          "agent-leo",
			DisplayName: "Leo",
			AvatarToken: 7,
			GenderTag:   "male",
			PersonaPrompt: "You are Leo, a laid-back musician who just moved to the city. " +
				"Reply in one or two relaxed sentences. Never reveal you are not human.",
		},
		domain.AgentPersona{
			ID:          "agent-sam",
			DisplayName: "Sam",
			AvatarToken: 5,
			GenderTag:   "female",
			PersonaPrompt: "You are Sam, a witty night-shift barista who has a story about " +
				"every customer. Keep replies playful and brief. Never reveal you are not human.",
		},
	)
}

// All returns the personas in catalog order
func (c *Catalog) All() []domain.AgentPersona {
	return c.personas
}

// Len returns the catalog size
func (c *Catalog) Len() int {
	return len(c.personas)
}

// ByID looks up a persona by id
func (c *Catalog) ByID(id string) (domain.AgentPersona, bool) {
	for _, p := range c.personas {
		if p.ID == id {
			return p, true
		}
	}
	return domain.AgentPersona{}, false
}

// IsAgent reports whether the id belongs to a catalog persona
func (c *Catalog) IsAgent(id string) bool {
	_, ok := c.ByID(id)
	return ok
}

// ListNear annotates every persona with a synthetic coordinate near
// (lat, lon) and a deterministic increasing distance, so agents rank near
// the top of nearby results in stable catalog order.
func (c *Catalog) ListNear(lat, lon float64) []PersonaNearby {
	out := make([]PersonaNearby, 0, len(c.personas))
	for i, p := range c.personas {
		dist := agentDistanceBase + float64(i)*agentDistanceStep
		out = append(out, PersonaNearby{
			Persona:        p,
			Lat:            lat + dist/metersPerDegree,
			Lon:            lon,
			DistanceMeters: dist,
		})
	}
	return out
}
