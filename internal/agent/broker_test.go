package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abhishekverma657/AroundU-backend/internal/domain"
	"github.com/Abhishekverma657/AroundU-backend/internal/logging"
)

// fakeGenerator scripts responses and tracks concurrent admissions
type fakeGenerator struct {
	mu        sync.Mutex
	replies   map[string]string
	err       error
	delay     time.Duration
	inFlight  int32
	maxSeen   int32
	callCount int32
}

func (f *fakeGenerator) Generate(ctx context.Context, persona domain.AgentPersona, input string) (string, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		max := atomic.LoadInt32(&f.maxSeen)
		if cur <= max || atomic.CompareAndSwapInt32(&f.maxSeen, max, cur) {
			break
		}
	}
	atomic.AddInt32(&f.callCount, 1)

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replies != nil {
		if text, ok := f.replies[input]; ok {
			return text, nil
		}
	}
	return "hey there", nil
}

func newTestBroker(gen ReplyGenerator) *Broker {
	return NewBroker(DefaultCatalog(), gen, logging.NoOpLogger{})
}

func TestBroker_GenerateReply(t *testing.T) {
	gen := &fakeGenerator{replies: map[string]string{"hello": "hi!"}}
	b := newTestBroker(gen)
	defer b.Close()

	reply := <-b.GenerateReply("agent-mia", "hello")
	require.NotNil(t, reply)
	assert.Equal(t, "hi!", reply.Text)
	assert.Equal(t, domain.TypingDelayFloor, reply.Delay, "short input hits the floor")
}

func TestBroker_UnknownPersona(t *testing.T) {
	b := newTestBroker(&fakeGenerator{})
	defer b.Close()

	reply := <-b.GenerateReply("nope", "hello")
	assert.Nil(t, reply)
}

func TestBroker_FailureResolvesNilAndQueueContinues(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("upstream down")}
	b := newTestBroker(gen)
	defer b.Close()

	reply := <-b.GenerateReply("agent-mia", "hello")
	assert.Nil(t, reply, "failure surfaces as no reply")

	// A failure never poisons the queue: the next request still runs
	gen.err = nil
	reply = <-b.GenerateReply("agent-mia", "hello again")
	require.NotNil(t, reply)
	assert.Equal(t, "hey there", reply.Text)
}

func TestBroker_EmptyOutputResolvesNil(t *testing.T) {
	gen := &fakeGenerator{replies: map[string]string{"hello": "   "}}
	b := newTestBroker(gen)
	defer b.Close()

	reply := <-b.GenerateReply("agent-mia", "hello")
	assert.Nil(t, reply)
}

func TestBroker_StrictlySequential(t *testing.T) {
	gen := &fakeGenerator{delay: 20 * time.Millisecond}
	b := newTestBroker(gen)
	defer b.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-b.GenerateReply("agent-leo", "concurrent hello")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(8), atomic.LoadInt32(&gen.callCount))
	assert.Equal(t, int32(1), atomic.LoadInt32(&gen.maxSeen), "at most one in-flight generation")
}

func TestTypingDelay(t *testing.T) {
	assert.Equal(t, domain.TypingDelayFloor, TypingDelay(""))
	assert.Equal(t, domain.TypingDelayFloor, TypingDelay("short"))

	long := strings.Repeat("x", 100)
	assert.Equal(t, 2*time.Second, TypingDelay(long), "100 chars at 20ms each")
}
