package ws

import (
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/Abhishekverma657/AroundU-backend/internal/agent"
	"github.com/Abhishekverma657/AroundU-backend/internal/domain"
	"github.com/Abhishekverma657/AroundU-backend/internal/logging"
	"github.com/Abhishekverma657/AroundU-backend/internal/registry"
)

// agentGreetingPrompt is the input handed to the generator when an agent
// room opens, producing the agent's first line.
const agentGreetingPrompt = "Greet a stranger you were just matched with, in one short casual line."

// Timings bundles the orchestrator's timer windows so tests can shorten them
type Timings struct {
	GraceWindow   time.Duration
	GreetingDelay time.Duration
	SessionMin    time.Duration
	SessionMax    time.Duration
}

// DefaultTimings returns the production timer windows
func DefaultTimings() Timings {
	return Timings{
		GraceWindow:   domain.MatchGraceWindow,
		GreetingDelay: domain.AgentGreetingDelay,
		SessionMin:    domain.AgentSessionMin,
		SessionMax:    domain.AgentSessionMax,
	}
}

// Orchestrator consumes inbound connection events, drives the match-attempt
// protocol against the registry, and relays registry state changes back out
// to connections. All registry state is re-fetched inside deferred timer
// callbacks; nothing mutates based on a snapshot captured at schedule time.
type Orchestrator struct {
	reg     *registry.Registry
	broker  *agent.Broker
	catalog *agent.Catalog
	hub     *Hub
	log     logging.Logger
	timings Timings
}

// NewOrchestrator wires the control layer over the registry and broker
func NewOrchestrator(reg *registry.Registry, broker *agent.Broker, catalog *agent.Catalog,
	hub *Hub, log logging.Logger, timings Timings) *Orchestrator {
	return &Orchestrator{
		reg:     reg,
		broker:  broker,
		catalog: catalog,
		hub:     hub,
		log:     log,
		timings: timings,
	}
}

// HandleConnect mints a participant for the new connection and emits its
// session config
func (o *Orchestrator) HandleConnect(c *Client) error {
	o.hub.Add(c)

	p, err := o.reg.CreateParticipant(c.ID)
	if err != nil {
		o.hub.Remove(c.ID)
		return err
	}

	c.SendEvent(domain.NewEvent(domain.EventTypeSessionConfig, domain.SessionConfigPayload{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		AvatarToken: p.AvatarToken,
	}))
	return nil
}

// HandleDisconnect tears down the connection's room and record and notifies
// any remaining counterpart
func (o *Orchestrator) HandleDisconnect(c *Client) {
	o.hub.Remove(c.ID)
	res := o.reg.Disconnect(c.ID)
	o.notifyCounterpart(res)
}

// HandleEvent dispatches one inbound event
func (o *Orchestrator) HandleEvent(c *Client, ev domain.Event) {
	switch ev.Type {
	case domain.EventTypeRegisterLocation:
		o.handleRegisterLocation(c, ev.Payload)
	case domain.EventTypeGetNearbyUsers:
		o.handleGetNearby(c)
	case domain.EventTypeUpdateProfile:
		o.handleUpdateProfile(c, ev.Payload)
	case domain.EventTypeStartMatching:
		o.handleStartMatching(c)
	case domain.EventTypeRequestChat:
		o.handleRequestChat(c, ev.Payload)
	case domain.EventTypeRespondChat:
		o.handleRespondChat(c, ev.Payload)
	case domain.EventTypeSendMessage:
		o.handleSendMessage(c, ev.Payload)
	case domain.EventTypeTyping:
		o.handleTyping(c, ev.Payload)
	case domain.EventTypeLeaveRoom:
		o.handleLeaveRoom(c)
	default:
		c.SendEvent(domain.NewEvent(domain.EventTypeError, domain.ErrorPayload{
			Code:    "invalid_input",
			Message: "unknown event type",
		}))
	}
}

func (o *Orchestrator) handleRegisterLocation(c *Client, raw json.RawMessage) {
	var p domain.RegisterLocationPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Lat == nil || p.Lon == nil || p.Radius == nil {
		o.sendError(c, domain.ErrInvalidInput)
		return
	}

	// A re-register while still bound to a room abandons that conversation
	if res, err := o.reg.Leave(c.ID); err == nil && res != nil {
		c.setState(MatchIdle)
		o.notifyCounterpart(res)
	}

	updated, err := o.reg.RegisterLocation(c.ID, *p.Lat, *p.Lon, *p.Radius)
	if err != nil {
		o.sendError(c, err)
		return
	}

	c.SendEvent(domain.NewEvent(domain.EventTypeRegistrationSuccess, updated))
	o.handleGetNearby(c)
}

func (o *Orchestrator) handleGetNearby(c *Client) {
	entries, err := o.reg.FindNearby(c.ID)
	if err != nil {
		o.sendError(c, err)
		return
	}
	c.SendEvent(domain.NewEvent(domain.EventTypeNearbyUsers, domain.NearbyUsersPayload{Users: entries}))
}

func (o *Orchestrator) handleUpdateProfile(c *Client, raw json.RawMessage) {
	var p domain.UpdateProfilePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		o.sendError(c, domain.ErrInvalidInput)
		return
	}

	if p.DisplayName != nil {
		name := SanitizeDisplayName(*p.DisplayName)
		if name == "" {
			o.sendError(c, domain.ErrInvalidInput)
			return
		}
		p.DisplayName = &name
	}

	updated, err := o.reg.UpdateProfile(c.ID, p)
	if err != nil {
		o.sendError(c, err)
		return
	}
	c.SendEvent(domain.NewEvent(domain.EventTypeProfileUpdated, updated))
}

// handleStartMatching runs the match-attempt protocol: an immediate
// real-peer attempt, then a grace window during which new participants may
// arrive, then a retry that may fall back to an agent.
func (o *Orchestrator) handleStartMatching(c *Client) {
	p, err := o.reg.Participant(c.ID)
	if err != nil {
		o.sendError(c, err)
		return
	}
	if p.InRoom() {
		o.sendError(c, domain.ErrDenied)
		return
	}

	c.setState(MatchSeekingReal)
	if o.tryPeerMatch(c) {
		return
	}

	connID := c.ID
	time.AfterFunc(o.timings.GraceWindow, func() {
		o.retryWithFallback(connID)
	})
}

// retryWithFallback fires after the grace window. State may have changed
// during the wait, so everything is re-fetched before acting.
func (o *Orchestrator) retryWithFallback(connID string) {
	c, ok := o.hub.Get(connID)
	if !ok {
		return
	}
	p, err := o.reg.Participant(connID)
	if err != nil || p.InRoom() {
		return
	}

	c.setState(MatchSeekingAny)
	if o.tryPeerMatch(c) {
		return
	}

	persona, err := o.reg.FindAgentMatch(connID)
	if err != nil {
		c.setState(MatchIdle)
		o.sendError(c, err)
		return
	}
	if !o.allocate(c, persona.ID) {
		c.setState(MatchIdle)
	}
}

func (o *Orchestrator) tryPeerMatch(c *Client) bool {
	peer, err := o.reg.FindCompatiblePeer(c.ID)
	if err != nil || peer == nil {
		return false
	}
	// The candidate may already be claimed; allocation re-validates and a
	// denial simply means no peer this round
	return o.allocate(c, peer.ID)
}

// allocate binds the client to the counterpart, announces the room, and
// seeds agent timers when the counterpart is a persona
func (o *Orchestrator) allocate(c *Client, counterpartID string) bool {
	room, err := o.reg.AllocateRoom(c.ID, counterpartID)
	if err != nil {
		return false
	}

	c.setState(MatchMatched)
	if pc, ok := o.hub.Get(counterpartID); ok {
		pc.setState(MatchMatched)
	}

	o.announceRoom(room)

	if room.Kind == domain.RoomAgent {
		o.scheduleAgentTimers(room.ID, c.ID, counterpartID)
	}
	return true
}

// announceRoom fans room_joined and room_users out to all bound connections
func (o *Orchestrator) announceRoom(room *domain.Room) {
	users := make([]domain.RoomUser, 0, len(room.Members))
	for _, m := range room.Members {
		switch m.Kind {
		case domain.MemberAgent:
			if persona, ok := o.catalog.ByID(m.ID); ok {
				users = append(users, domain.RoomUser{
					ID:          persona.ID,
					DisplayName: domain.AgentMaskedName,
					AvatarToken: persona.AvatarToken,
				})
			}
		case domain.MemberParticipant:
			if p, err := o.reg.Participant(m.ID); err == nil {
				users = append(users, domain.RoomUser{
					ID:          p.ID,
					DisplayName: p.DisplayName,
					AvatarToken: p.AvatarToken,
				})
			}
		}
	}

	payload := domain.RoomJoinedPayload{RoomID: room.ID, Users: users}
	o.hub.SendToRoom(room.Members, domain.NewEvent(domain.EventTypeRoomJoined, payload))
	o.hub.SendToRoom(room.Members, domain.NewEvent(domain.EventTypeRoomUsers, payload))
}

// scheduleAgentTimers seeds the greeting and session-expiry timers for a
// fresh agent room. Both re-validate the room on fire and no-op once it is
// gone.
func (o *Orchestrator) scheduleAgentTimers(roomID, humanID, personaID string) {
	time.AfterFunc(o.timings.GreetingDelay, func() {
		o.agentRoundTrip(roomID, personaID, humanID, agentGreetingPrompt)
	})

	lifetime := o.timings.SessionMin
	if spread := o.timings.SessionMax - o.timings.SessionMin; spread > 0 {
		lifetime += time.Duration(rand.Int63n(int64(spread)))
	}
	time.AfterFunc(lifetime, func() {
		o.expireAgentRoom(roomID, humanID)
	})
}

// agentRoundTrip runs one generation request with the typing-indicator
// bracket: indicator on at submission, off when the reply (or failure)
// lands. A failed generation clears the indicator with no message.
func (o *Orchestrator) agentRoundTrip(roomID, personaID, humanID, input string) {
	if _, err := o.reg.Room(roomID); err != nil {
		return
	}

	o.hub.SendTo(humanID, domain.NewEvent(domain.EventTypeUserTyping, domain.UserTypingPayload{
		RoomID:   roomID,
		FromID:   personaID,
		IsTyping: true,
	}))

	replyCh := o.broker.GenerateReply(personaID, input)
	go func() {
		reply := <-replyCh
		if reply != nil {
			time.Sleep(reply.Delay)
		}
		if _, err := o.reg.Room(roomID); err != nil {
			return
		}

		o.hub.SendTo(humanID, domain.NewEvent(domain.EventTypeUserTyping, domain.UserTypingPayload{
			RoomID:   roomID,
			FromID:   personaID,
			IsTyping: false,
		}))
		if reply == nil {
			return
		}
		o.hub.SendTo(humanID, domain.NewEvent(domain.EventTypeReceiveMessage, domain.ReceiveMessagePayload{
			RoomID:      roomID,
			FromID:      personaID,
			DisplayName: domain.AgentMaskedName,
			Text:        reply.Text,
			SentAt:      time.Now(),
		}))
	}()
}

// expireAgentRoom force-ends an agent conversation when its session timer
// fires. LeaveIfMember keeps this a no-op when the human already left, so a
// late timer never emits a duplicate chat_ended.
func (o *Orchestrator) expireAgentRoom(roomID, humanID string) {
	res := o.reg.LeaveIfMember(humanID, roomID)
	if res == nil {
		return
	}
	if c, ok := o.hub.Get(humanID); ok {
		c.setState(MatchIdle)
	}
	o.hub.SendTo(humanID, domain.NewEvent(domain.EventTypeChatEnded, domain.ChatEndedPayload{
		RoomID: roomID,
		Reason: "expired",
	}))
}

func (o *Orchestrator) handleRequestChat(c *Client, raw json.RawMessage) {
	var p domain.RequestChatPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.TargetID == "" {
		o.sendError(c, domain.ErrInvalidInput)
		return
	}

	// Agents accept every invite
	if o.catalog.IsAgent(p.TargetID) {
		if !o.allocate(c, p.TargetID) {
			c.SendEvent(domain.NewEvent(domain.EventTypeChatRejected, domain.ChatRejectedPayload{
				TargetID: p.TargetID,
				Reason:   "unavailable",
			}))
		}
		return
	}

	target, err := o.reg.Participant(p.TargetID)
	if err != nil || target.Status != domain.StatusAvailable {
		c.SendEvent(domain.NewEvent(domain.EventTypeChatRejected, domain.ChatRejectedPayload{
			TargetID: p.TargetID,
			Reason:   "unavailable",
		}))
		return
	}

	requester, err := o.reg.Participant(c.ID)
	if err != nil {
		o.sendError(c, err)
		return
	}

	o.hub.SendTo(p.TargetID, domain.NewEvent(domain.EventTypeIncomingRequest, domain.IncomingRequestPayload{
		FromID:      requester.ID,
		DisplayName: requester.DisplayName,
		AvatarToken: requester.AvatarToken,
	}))
}

func (o *Orchestrator) handleRespondChat(c *Client, raw json.RawMessage) {
	var p domain.RespondChatPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.TargetID == "" {
		o.sendError(c, domain.ErrInvalidInput)
		return
	}

	if !p.Accept {
		o.hub.SendTo(p.TargetID, domain.NewEvent(domain.EventTypeChatRejected, domain.ChatRejectedPayload{
			TargetID: c.ID,
			Reason:   "declined",
		}))
		return
	}

	if !o.allocate(c, p.TargetID) {
		// Allocation lost the race; tell both sides
		rejection := domain.ChatRejectedPayload{TargetID: p.TargetID, Reason: "unavailable"}
		c.SendEvent(domain.NewEvent(domain.EventTypeChatRejected, rejection))
		o.hub.SendTo(p.TargetID, domain.NewEvent(domain.EventTypeChatRejected, domain.ChatRejectedPayload{
			TargetID: c.ID,
			Reason:   "unavailable",
		}))
	}
}

func (o *Orchestrator) handleSendMessage(c *Client, raw json.RawMessage) {
	var p domain.ChatMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		o.sendError(c, domain.ErrInvalidInput)
		return
	}
	text := strings.TrimSpace(p.Text)
	if text == "" || len([]rune(text)) > domain.MaxChatTextLength {
		o.sendError(c, domain.ErrInvalidInput)
		return
	}

	sender, err := o.reg.Participant(c.ID)
	if err != nil {
		o.sendError(c, err)
		return
	}
	if !sender.InRoom() {
		o.sendError(c, domain.ErrDenied)
		return
	}

	room, err := o.reg.Room(sender.RoomID)
	if err != nil {
		o.sendError(c, err)
		return
	}

	o.hub.SendToRoom(room.Members, domain.NewEvent(domain.EventTypeReceiveMessage, domain.ReceiveMessagePayload{
		RoomID:      room.ID,
		FromID:      sender.ID,
		DisplayName: sender.DisplayName,
		Text:        text,
		SentAt:      time.Now(),
	}))

	if room.Kind == domain.RoomAgent {
		if other, ok := room.Counterpart(sender.ID); ok && other.Kind == domain.MemberAgent {
			o.agentRoundTrip(room.ID, other.ID, sender.ID, text)
		}
	}
}

func (o *Orchestrator) handleTyping(c *Client, raw json.RawMessage) {
	var p domain.TypingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		o.sendError(c, domain.ErrInvalidInput)
		return
	}

	sender, err := o.reg.Participant(c.ID)
	if err != nil || !sender.InRoom() {
		return
	}
	room, err := o.reg.Room(sender.RoomID)
	if err != nil {
		return
	}

	// Relayed to the room counterpart only, never echoed back
	if other, ok := room.Counterpart(c.ID); ok && other.Kind == domain.MemberParticipant {
		o.hub.SendTo(other.ID, domain.NewEvent(domain.EventTypeUserTyping, domain.UserTypingPayload{
			RoomID:   room.ID,
			FromID:   c.ID,
			IsTyping: p.IsTyping,
		}))
	}
}

func (o *Orchestrator) handleLeaveRoom(c *Client) {
	res, err := o.reg.Leave(c.ID)
	if err != nil {
		o.sendError(c, err)
		return
	}
	if res == nil {
		// Not in a room; leaving twice is a no-op
		return
	}

	c.setState(MatchIdle)
	c.SendEvent(domain.NewEvent(domain.EventTypeChatEnded, domain.ChatEndedPayload{
		RoomID: res.RoomID,
		Reason: "left",
	}))
	o.notifyCounterpart(res)
}

// notifyCounterpart tells a surviving peer their conversation is over
func (o *Orchestrator) notifyCounterpart(res *registry.LeaveResult) {
	if res == nil || res.RemainingPeer == nil {
		return
	}
	peerID := res.RemainingPeer.ID
	if pc, ok := o.hub.Get(peerID); ok {
		pc.setState(MatchIdle)
	}
	o.hub.SendTo(peerID, domain.NewEvent(domain.EventTypeUserLeft, domain.UserLeftPayload{
		RoomID: res.RoomID,
		UserID: res.Departing.ID,
	}))
	o.hub.SendTo(peerID, domain.NewEvent(domain.EventTypeChatEnded, domain.ChatEndedPayload{
		RoomID: res.RoomID,
		Reason: "left",
	}))
}

func (o *Orchestrator) sendError(c *Client, err error) {
	code := "internal"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code = "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		code = "invalid_input"
	case errors.Is(err, domain.ErrDenied):
		code = "denied"
	}
	c.SendEvent(domain.NewEvent(domain.EventTypeError, domain.ErrorPayload{
		Code:    code,
		Message: err.Error(),
	}))
}
