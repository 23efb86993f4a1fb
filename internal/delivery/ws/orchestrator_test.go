package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abhishekverma657/AroundU-backend/internal/agent"
	"github.com/Abhishekverma657/AroundU-backend/internal/domain"
	"github.com/Abhishekverma657/AroundU-backend/internal/logging"
	"github.com/Abhishekverma657/AroundU-backend/internal/registry"
	"github.com/Abhishekverma657/AroundU-backend/internal/usecase"
)

// scriptedGen returns a fixed reply or error for every generation request
type scriptedGen struct {
	text string
	err  error
}

func (g scriptedGen) Generate(ctx context.Context, persona domain.AgentPersona, input string) (string, error) {
	return g.text, g.err
}

func testTimings() Timings {
	return Timings{
		GraceWindow:   40 * time.Millisecond,
		GreetingDelay: 10 * time.Millisecond,
		SessionMin:    60 * time.Millisecond,
		SessionMax:    90 * time.Millisecond,
	}
}

type env struct {
	orch *Orchestrator
	reg  *registry.Registry
	hub  *Hub
}

func newTestEnv(t *testing.T, gen agent.ReplyGenerator, timings Timings, personas ...domain.AgentPersona) *env {
	t.Helper()
	catalog := agent.NewCatalog(personas...)
	log := logging.NoOpLogger{}
	broker := agent.NewBroker(catalog, gen, log)
	t.Cleanup(broker.Close)

	reg := registry.New(catalog, usecase.NewNameGenerator(), log)
	hub := NewHub()
	return &env{
		orch: NewOrchestrator(reg, broker, catalog, hub, log, timings),
		reg:  reg,
		hub:  hub,
	}
}

func (e *env) connect(t *testing.T, connID string) *Client {
	t.Helper()
	c := NewClient(e.orch, nil, connID)
	require.NoError(t, e.orch.HandleConnect(c))
	return c
}

func (e *env) setTags(t *testing.T, connID, gender, interest string) {
	t.Helper()
	_, err := e.reg.UpdateProfile(connID, domain.UpdateProfilePayload{
		GenderTag:   &gender,
		InterestTag: &interest,
	})
	require.NoError(t, err)
}

// recvEvent waits for the next event of the wanted type, skipping others
func recvEvent(t *testing.T, c *Client, want domain.EventType, timeout time.Duration) domain.Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case data, ok := <-c.send:
			require.True(t, ok, "send channel closed while waiting for %s", want)
			var ev domain.Event
			require.NoError(t, json.Unmarshal(data, &ev))
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

// expectNoEvent asserts the unwanted type does not arrive within the window
func expectNoEvent(t *testing.T, c *Client, unwanted domain.EventType, window time.Duration) {
	t.Helper()
	deadline := time.After(window)
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			var ev domain.Event
			require.NoError(t, json.Unmarshal(data, &ev))
			require.NotEqual(t, unwanted, ev.Type)
		case <-deadline:
			return
		}
	}
}

func event(t *testing.T, typ domain.EventType, payload interface{}) domain.Event {
	t.Helper()
	return domain.NewEvent(typ, payload)
}

func TestHandleConnect_EmitsSessionConfig(t *testing.T) {
	e := newTestEnv(t, scriptedGen{}, testTimings())
	c := e.connect(t, "conn-1")

	ev := recvEvent(t, c, domain.EventTypeSessionConfig, time.Second)
	var cfg domain.SessionConfigPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &cfg))
	assert.Equal(t, "conn-1", cfg.ID)
	assert.NotEmpty(t, cfg.DisplayName)
	assert.Equal(t, MatchIdle, c.State())
}

func TestRegisterLocation_EmitsSuccessAndNearby(t *testing.T) {
	e := newTestEnv(t, scriptedGen{}, testTimings())
	c := e.connect(t, "conn-1")

	e.orch.HandleEvent(c, event(t, domain.EventTypeRegisterLocation, map[string]float64{
		"lat": 10, "lon": 10, "radius": 500,
	}))

	recvEvent(t, c, domain.EventTypeRegistrationSuccess, time.Second)
	recvEvent(t, c, domain.EventTypeNearbyUsers, time.Second)
}

func TestRegisterLocation_MissingFieldRejected(t *testing.T) {
	e := newTestEnv(t, scriptedGen{}, testTimings())
	c := e.connect(t, "conn-1")

	e.orch.HandleEvent(c, event(t, domain.EventTypeRegisterLocation, map[string]float64{
		"lat": 10, "lon": 10,
	}))

	ev := recvEvent(t, c, domain.EventTypeError, time.Second)
	var errPayload domain.ErrorPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &errPayload))
	assert.Equal(t, "invalid_input", errPayload.Code)

	p, err := e.reg.Participant("conn-1")
	require.NoError(t, err)
	assert.Nil(t, p.Location, "no state change on invalid input")
}

func TestStartMatching_ImmediatePeerMatch(t *testing.T) {
	e := newTestEnv(t, scriptedGen{}, testTimings())
	a := e.connect(t, "a")
	b := e.connect(t, "b")
	e.setTags(t, "a", "male", domain.InterestAny)
	e.setTags(t, "b", "female", domain.InterestAny)

	e.orch.HandleEvent(a, event(t, domain.EventTypeStartMatching, nil))

	evA := recvEvent(t, a, domain.EventTypeRoomJoined, time.Second)
	evB := recvEvent(t, b, domain.EventTypeRoomJoined, time.Second)

	var joinedA, joinedB domain.RoomJoinedPayload
	require.NoError(t, json.Unmarshal(evA.Payload, &joinedA))
	require.NoError(t, json.Unmarshal(evB.Payload, &joinedB))
	assert.Equal(t, joinedA.RoomID, joinedB.RoomID)
	assert.Len(t, joinedA.Users, 2)

	assert.Equal(t, MatchMatched, a.State())
	assert.Equal(t, MatchMatched, b.State())

	room, err := e.reg.Room(joinedA.RoomID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomPeer, room.Kind)
}

func TestStartMatching_FallsBackToAgent(t *testing.T) {
	e := newTestEnv(t, scriptedGen{text: "hi"}, testTimings(),
		domain.AgentPersona{ID: "agent-x", DisplayName: "Xena", AvatarToken: 1, GenderTag: "female"})
	a := e.connect(t, "a")

	e.orch.HandleEvent(a, event(t, domain.EventTypeStartMatching, nil))

	ev := recvEvent(t, a, domain.EventTypeRoomJoined, time.Second)
	var joined domain.RoomJoinedPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &joined))

	room, err := e.reg.Room(joined.RoomID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomAgent, room.Kind)

	// Agent names are masked in client payloads
	for _, u := range joined.Users {
		if u.ID == "agent-x" {
			assert.Equal(t, domain.AgentMaskedName, u.DisplayName)
		}
	}
}

func TestStartMatching_GraceWindowFindsLateArrival(t *testing.T) {
	e := newTestEnv(t, scriptedGen{}, testTimings(),
		domain.AgentPersona{ID: "agent-x", GenderTag: "female", AvatarToken: 1})
	a := e.connect(t, "a")
	e.setTags(t, "a", "male", domain.InterestAny)

	e.orch.HandleEvent(a, event(t, domain.EventTypeStartMatching, nil))

	// b arrives during the grace window
	b := e.connect(t, "b")
	e.setTags(t, "b", "female", domain.InterestAny)

	ev := recvEvent(t, a, domain.EventTypeRoomJoined, time.Second)
	var joined domain.RoomJoinedPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &joined))

	room, err := e.reg.Room(joined.RoomID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomPeer, room.Kind, "late real peer beats the agent fallback")
	recvEvent(t, b, domain.EventTypeRoomJoined, time.Second)
}

func TestStartMatching_GraceTimerNoOpsWhenAlreadyMatched(t *testing.T) {
	e := newTestEnv(t, scriptedGen{}, testTimings(),
		domain.AgentPersona{ID: "agent-x", GenderTag: "female", AvatarToken: 1})
	a := e.connect(t, "a")

	e.orch.HandleEvent(a, event(t, domain.EventTypeStartMatching, nil))

	// a matches directly with the agent before the grace window expires
	e.orch.HandleEvent(a, event(t, domain.EventTypeRequestChat, domain.RequestChatPayload{TargetID: "agent-x"}))
	recvEvent(t, a, domain.EventTypeRoomJoined, time.Second)

	// When the stale timer fires it must not allocate a second room
	time.Sleep(testTimings().GraceWindow + 30*time.Millisecond)
	_, rooms := e.reg.Counts()
	assert.Equal(t, 1, rooms)
}

func TestAgentSessionExpiry_ForceEndsConversation(t *testing.T) {
	e := newTestEnv(t, scriptedGen{err: errors.New("down")}, testTimings(),
		domain.AgentPersona{ID: "agent-x", GenderTag: "female", AvatarToken: 1})
	a := e.connect(t, "a")

	e.orch.HandleEvent(a, event(t, domain.EventTypeRequestChat, domain.RequestChatPayload{TargetID: "agent-x"}))
	ev := recvEvent(t, a, domain.EventTypeRoomJoined, time.Second)
	var joined domain.RoomJoinedPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &joined))

	ended := recvEvent(t, a, domain.EventTypeChatEnded, time.Second)
	var payload domain.ChatEndedPayload
	require.NoError(t, json.Unmarshal(ended.Payload, &payload))
	assert.Equal(t, "expired", payload.Reason)

	_, err := e.reg.Room(joined.RoomID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	p, err := e.reg.Participant("a")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAvailable, p.Status)
	assert.Equal(t, MatchIdle, a.State())
}

func TestAgentSessionExpiry_NoOpAfterLeave(t *testing.T) {
	e := newTestEnv(t, scriptedGen{err: errors.New("down")}, testTimings(),
		domain.AgentPersona{ID: "agent-x", GenderTag: "female", AvatarToken: 1})
	a := e.connect(t, "a")

	e.orch.HandleEvent(a, event(t, domain.EventTypeRequestChat, domain.RequestChatPayload{TargetID: "agent-x"}))
	recvEvent(t, a, domain.EventTypeRoomJoined, time.Second)

	// Leave before the session timer fires
	e.orch.HandleEvent(a, event(t, domain.EventTypeLeaveRoom, nil))
	ended := recvEvent(t, a, domain.EventTypeChatEnded, time.Second)
	var payload domain.ChatEndedPayload
	require.NoError(t, json.Unmarshal(ended.Payload, &payload))
	assert.Equal(t, "left", payload.Reason)

	// The late timer must not emit a second chat_ended
	expectNoEvent(t, a, domain.EventTypeChatEnded, testTimings().SessionMax+50*time.Millisecond)
}

func TestSendMessage_BroadcastToPeerRoom(t *testing.T) {
	e := newTestEnv(t, scriptedGen{}, testTimings())
	a := e.connect(t, "a")
	b := e.connect(t, "b")
	_, err := e.reg.AllocateRoom("a", "b")
	require.NoError(t, err)

	e.orch.HandleEvent(a, event(t, domain.EventTypeSendMessage, domain.ChatMessagePayload{Text: "hello"}))

	for _, c := range []*Client{a, b} {
		ev := recvEvent(t, c, domain.EventTypeReceiveMessage, time.Second)
		var msg domain.ReceiveMessagePayload
		require.NoError(t, json.Unmarshal(ev.Payload, &msg))
		assert.Equal(t, "hello", msg.Text)
		assert.Equal(t, "a", msg.FromID)
	}
}

func TestSendMessage_NotInRoomRejected(t *testing.T) {
	e := newTestEnv(t, scriptedGen{}, testTimings())
	a := e.connect(t, "a")

	e.orch.HandleEvent(a, event(t, domain.EventTypeSendMessage, domain.ChatMessagePayload{Text: "hello"}))

	ev := recvEvent(t, a, domain.EventTypeError, time.Second)
	var errPayload domain.ErrorPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &errPayload))
	assert.Equal(t, "denied", errPayload.Code)
}

func TestSendMessage_AgentFailureClearsTypingWithoutMessage(t *testing.T) {
	e := newTestEnv(t, scriptedGen{err: errors.New("generator down")}, Timings{
		GraceWindow:   40 * time.Millisecond,
		GreetingDelay: time.Hour, // keep the greeting out of this test
		SessionMin:    time.Hour,
		SessionMax:    2 * time.Hour,
	}, domain.AgentPersona{ID: "agent-x", GenderTag: "female", AvatarToken: 1})
	a := e.connect(t, "a")

	e.orch.HandleEvent(a, event(t, domain.EventTypeRequestChat, domain.RequestChatPayload{TargetID: "agent-x"}))
	recvEvent(t, a, domain.EventTypeRoomJoined, time.Second)

	e.orch.HandleEvent(a, event(t, domain.EventTypeSendMessage, domain.ChatMessagePayload{Text: "hi?"}))

	// Own message echoes back
	recvEvent(t, a, domain.EventTypeReceiveMessage, time.Second)

	// Typing indicator turns on, then clears with no agent message
	on := recvEvent(t, a, domain.EventTypeUserTyping, time.Second)
	var typing domain.UserTypingPayload
	require.NoError(t, json.Unmarshal(on.Payload, &typing))
	assert.True(t, typing.IsTyping)

	off := recvEvent(t, a, domain.EventTypeUserTyping, time.Second)
	require.NoError(t, json.Unmarshal(off.Payload, &typing))
	assert.False(t, typing.IsTyping)

	expectNoEvent(t, a, domain.EventTypeReceiveMessage, 100*time.Millisecond)
}

func TestTyping_RelayedToCounterpartOnly(t *testing.T) {
	e := newTestEnv(t, scriptedGen{}, testTimings())
	a := e.connect(t, "a")
	b := e.connect(t, "b")
	_, err := e.reg.AllocateRoom("a", "b")
	require.NoError(t, err)

	e.orch.HandleEvent(a, event(t, domain.EventTypeTyping, domain.TypingPayload{IsTyping: true}))

	ev := recvEvent(t, b, domain.EventTypeUserTyping, time.Second)
	var typing domain.UserTypingPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &typing))
	assert.Equal(t, "a", typing.FromID)
	assert.True(t, typing.IsTyping)

	expectNoEvent(t, a, domain.EventTypeUserTyping, 50*time.Millisecond)
}

func TestRequestChat_InviteAcceptFlow(t *testing.T) {
	e := newTestEnv(t, scriptedGen{}, testTimings())
	a := e.connect(t, "a")
	b := e.connect(t, "b")

	e.orch.HandleEvent(a, event(t, domain.EventTypeRequestChat, domain.RequestChatPayload{TargetID: "b"}))

	ev := recvEvent(t, b, domain.EventTypeIncomingRequest, time.Second)
	var req domain.IncomingRequestPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &req))
	assert.Equal(t, "a", req.FromID)

	e.orch.HandleEvent(b, event(t, domain.EventTypeRespondChat, domain.RespondChatPayload{TargetID: "a", Accept: true}))

	recvEvent(t, a, domain.EventTypeRoomJoined, time.Second)
	recvEvent(t, b, domain.EventTypeRoomJoined, time.Second)
}

func TestRequestChat_DeclineNotifiesRequester(t *testing.T) {
	e := newTestEnv(t, scriptedGen{}, testTimings())
	a := e.connect(t, "a")
	b := e.connect(t, "b")

	e.orch.HandleEvent(a, event(t, domain.EventTypeRequestChat, domain.RequestChatPayload{TargetID: "b"}))
	recvEvent(t, b, domain.EventTypeIncomingRequest, time.Second)

	e.orch.HandleEvent(b, event(t, domain.EventTypeRespondChat, domain.RespondChatPayload{TargetID: "a", Accept: false}))

	ev := recvEvent(t, a, domain.EventTypeChatRejected, time.Second)
	var rej domain.ChatRejectedPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &rej))
	assert.Equal(t, "declined", rej.Reason)
}

func TestRequestChat_BusyTargetRejected(t *testing.T) {
	e := newTestEnv(t, scriptedGen{}, testTimings())
	a := e.connect(t, "a")
	b := e.connect(t, "b")
	c := e.connect(t, "c")
	_, err := e.reg.AllocateRoom("b", "c")
	require.NoError(t, err)
	_ = b
	_ = c

	e.orch.HandleEvent(a, event(t, domain.EventTypeRequestChat, domain.RequestChatPayload{TargetID: "b"}))

	ev := recvEvent(t, a, domain.EventTypeChatRejected, time.Second)
	var rej domain.ChatRejectedPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &rej))
	assert.Equal(t, "unavailable", rej.Reason)
}

func TestLeaveRoom_NotifiesCounterpart(t *testing.T) {
	e := newTestEnv(t, scriptedGen{}, testTimings())
	a := e.connect(t, "a")
	b := e.connect(t, "b")
	_, err := e.reg.AllocateRoom("a", "b")
	require.NoError(t, err)

	e.orch.HandleEvent(a, event(t, domain.EventTypeLeaveRoom, nil))

	recvEvent(t, a, domain.EventTypeChatEnded, time.Second)
	recvEvent(t, b, domain.EventTypeUserLeft, time.Second)
	recvEvent(t, b, domain.EventTypeChatEnded, time.Second)

	for _, id := range []string{"a", "b"} {
		p, err := e.reg.Participant(id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAvailable, p.Status)
	}
	assert.Equal(t, MatchIdle, b.State())
}

func TestDisconnect_NotifiesCounterpartAndRemoves(t *testing.T) {
	e := newTestEnv(t, scriptedGen{}, testTimings())
	a := e.connect(t, "a")
	b := e.connect(t, "b")
	_, err := e.reg.AllocateRoom("a", "b")
	require.NoError(t, err)

	e.orch.HandleDisconnect(a)

	recvEvent(t, b, domain.EventTypeUserLeft, time.Second)
	_, err = e.reg.Participant("a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, e.hub.ClientCount())
}

func TestAgentGreeting_DeliveredWithTypingBracket(t *testing.T) {
	e := newTestEnv(t, scriptedGen{text: "hey, you come here often?"}, Timings{
		GraceWindow:   40 * time.Millisecond,
		GreetingDelay: 10 * time.Millisecond,
		SessionMin:    time.Hour,
		SessionMax:    2 * time.Hour,
	}, domain.AgentPersona{ID: "agent-x", GenderTag: "female", AvatarToken: 1})
	a := e.connect(t, "a")

	e.orch.HandleEvent(a, event(t, domain.EventTypeRequestChat, domain.RequestChatPayload{TargetID: "agent-x"}))
	recvEvent(t, a, domain.EventTypeRoomJoined, time.Second)

	on := recvEvent(t, a, domain.EventTypeUserTyping, time.Second)
	var typing domain.UserTypingPayload
	require.NoError(t, json.Unmarshal(on.Payload, &typing))
	assert.True(t, typing.IsTyping)

	// The greeting lands after the simulated typing delay (floor of 1s)
	ev := recvEvent(t, a, domain.EventTypeReceiveMessage, 3*time.Second)
	var msg domain.ReceiveMessagePayload
	require.NoError(t, json.Unmarshal(ev.Payload, &msg))
	assert.Equal(t, "hey, you come here often?", msg.Text)
	assert.Equal(t, domain.AgentMaskedName, msg.DisplayName)
	assert.Equal(t, "agent-x", msg.FromID)
}
