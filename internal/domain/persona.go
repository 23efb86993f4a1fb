package domain

// AgentMaskedName replaces an agent persona's real display name in every
// client-facing payload so scripted partners are indistinguishable from
// human strangers.
const AgentMaskedName = "Stranger"

// AgentPersona is a static catalog entry, immutable for the process lifetime.
// PersonaPrompt is consumed only by the external text generator.
type AgentPersona struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	AvatarToken   int    `json:"avatar_token"`
	GenderTag     string `json:"gender_tag"`
	PersonaPrompt string `json:"-"`
}
