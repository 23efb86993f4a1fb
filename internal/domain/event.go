package domain

import (
	"encoding/json"
	"time"
)

// EventType defines the type of event exchanged with clients
type EventType string

// Inbound events (client -> server)
const (
	EventTypeRegisterLocation EventType = "register_location"
	EventTypeGetNearbyUsers   EventType = "get_nearby_users"
	EventTypeUpdateProfile    EventType = "update_profile"
	EventTypeStartMatching    EventType = "start_matching"
	EventTypeRequestChat      EventType = "request_chat"
	EventTypeRespondChat      EventType = "respond_chat"
	EventTypeSendMessage      EventType = "send_message"
	EventTypeTyping           EventType = "typing"
	EventTypeLeaveRoom        EventType = "leave_room"
)

// Outbound events (server -> client)
const (
	EventTypeSessionConfig       EventType = "session_config"
	EventTypeRegistrationSuccess EventType = "registration_success"
	EventTypeNearbyUsers         EventType = "nearby_users"
	EventTypeProfileUpdated      EventType = "profile_updated"
	EventTypeRoomJoined          EventType = "room_joined"
	EventTypeRoomUsers           EventType = "room_users"
	EventTypeIncomingRequest     EventType = "incoming_request"
	EventTypeChatRejected        EventType = "chat_rejected"
	EventTypeReceiveMessage      EventType = "receive_message"
	EventTypeUserTyping          EventType = "user_typing"
	EventTypeChatEnded           EventType = "chat_ended"
	EventTypeUserLeft            EventType = "user_left"
	EventTypeError               EventType = "error"
)

// Event is the wire envelope for both directions
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals payload into an Event envelope. Marshal errors are
// impossible for the payload structs below, so they are swallowed.
func NewEvent(t EventType, payload interface{}) Event {
	data, _ := json.Marshal(payload)
	return Event{Type: t, Payload: data}
}

// RegisterLocationPayload carries a location registration. Pointer fields
// distinguish "absent" from a literal zero coordinate.
type RegisterLocationPayload struct {
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Radius *float64 `json:"radius"`
}

// UpdateProfilePayload is a partial profile update; nil fields are untouched
type UpdateProfilePayload struct {
	DisplayName *string `json:"display_name,omitempty"`
	GenderTag   *string `json:"gender_tag,omitempty"`
	InterestTag *string `json:"interest_tag,omitempty"`
}

// RequestChatPayload asks for a direct invite to a specific target
type RequestChatPayload struct {
	TargetID string `json:"target_id"`
}

// RespondChatPayload accepts or declines a direct invite
type RespondChatPayload struct {
	TargetID string `json:"target_id"`
	Accept   bool   `json:"accept"`
}

// ChatMessagePayload is the body of send_message
type ChatMessagePayload struct {
	Text string `json:"text"`
}

// TypingPayload is the typing-indicator state
type TypingPayload struct {
	IsTyping bool `json:"is_typing"`
}

// SessionConfigPayload is sent once on connect with the minted identity
type SessionConfigPayload struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarToken int    `json:"avatar_token"`
}

// NearbyEntry is one row of a nearby_users listing. Agents appear here with
// masked names and synthetic distances, indistinguishable from humans.
type NearbyEntry struct {
	ID             string  `json:"id"`
	DisplayName    string  `json:"display_name"`
	AvatarToken    int     `json:"avatar_token"`
	DistanceMeters float64 `json:"distance_meters"`
}

// NearbyUsersPayload is the full nearby listing, ascending by distance
type NearbyUsersPayload struct {
	Users []NearbyEntry `json:"users"`
}

// RoomUser is a room member as shown to clients
type RoomUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarToken int    `json:"avatar_token"`
}

// RoomJoinedPayload announces a freshly allocated room to its members
type RoomJoinedPayload struct {
	RoomID string     `json:"room_id"`
	Users  []RoomUser `json:"users"`
}

// IncomingRequestPayload relays a direct invite to its target
type IncomingRequestPayload struct {
	FromID      string `json:"from_id"`
	DisplayName string `json:"display_name"`
	AvatarToken int    `json:"avatar_token"`
}

// ChatRejectedPayload reports a declined or failed direct invite
type ChatRejectedPayload struct {
	TargetID string `json:"target_id"`
	Reason   string `json:"reason,omitempty"`
}

// ReceiveMessagePayload is a chat message delivered to a room
type ReceiveMessagePayload struct {
	RoomID      string    `json:"room_id"`
	FromID      string    `json:"from_id"`
	DisplayName string    `json:"display_name"`
	Text        string    `json:"text"`
	SentAt      time.Time `json:"sent_at"`
}

// UserTypingPayload relays a counterpart's typing state
type UserTypingPayload struct {
	RoomID   string `json:"room_id"`
	FromID   string `json:"from_id"`
	IsTyping bool   `json:"is_typing"`
}

// ChatEndedPayload announces a finished conversation
type ChatEndedPayload struct {
	RoomID string `json:"room_id"`
	Reason string `json:"reason,omitempty"`
}

// UserLeftPayload tells the remaining member their counterpart departed
type UserLeftPayload struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

// ErrorPayload is a user-visible, non-fatal error report
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
