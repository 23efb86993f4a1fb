package agent

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Abhishekverma657/AroundU-backend/internal/domain"
	"github.com/Abhishekverma657/AroundU-backend/internal/logging"
)

const (
	// generateTimeout caps a single external generation call
	generateTimeout = 30 * time.Second

	// queueCapacity bounds pending generation requests; submissions beyond
	// it resolve to no-reply instead of blocking the caller
	queueCapacity = 64
)

// ReplyGenerator produces reply text for a persona given input text. The
// production implementation calls an external model; tests plug in fakes.
type ReplyGenerator interface {
	Generate(ctx context.Context, persona domain.AgentPersona, input string) (string, error)
}

// Reply is a generated message plus the simulated typing latency the caller
// should wait before delivering it
type Reply struct {
	Text  string
	Delay time.Duration
}

type genRequest struct {
	persona domain.AgentPersona
	input   string
	result  chan<- *Reply
}

// Broker serializes generation requests into a strictly sequential queue.
// At most one generation is in flight at any time regardless of how many
// rooms submit concurrently; this bounds load on the external generator.
type Broker struct {
	catalog *Catalog
	gen     ReplyGenerator
	queue   chan genRequest
	log     logging.Logger
}

// NewBroker creates a broker and starts its single worker
func NewBroker(catalog *Catalog, gen ReplyGenerator, log logging.Logger) *Broker {
	b := &Broker{
		catalog: catalog,
		gen:     gen,
		queue:   make(chan genRequest, queueCapacity),
		log:     log,
	}
	go b.run()
	return b
}

// GenerateReply enqueues a generation request for the given persona. The
// returned channel resolves exactly once: to a Reply, or to nil when the
// persona is unknown, the queue is saturated, or the generator fails.
func (b *Broker) GenerateReply(personaID, input string) <-chan *Reply {
	result := make(chan *Reply, 1)

	persona, ok := b.catalog.ByID(personaID)
	if !ok {
		b.log.Warn("generate requested for unknown persona", "persona_id", personaID)
		result <- nil
		return result
	}

	select {
	case b.queue <- genRequest{persona: persona, input: input, result: result}:
	default:
		b.log.Warn("generation queue saturated, dropping request", "persona_id", personaID)
		result <- nil
	}
	return result
}

// Close stops the worker after draining queued requests
func (b *Broker) Close() {
	close(b.queue)
}

// run drains the queue one request at a time. A failed generation resolves
// that request to nil and never blocks the next one.
func (b *Broker) run() {
	for req := range b.queue {
		req.result <- b.serve(req)
	}
}

func (b *Broker) serve(req genRequest) *Reply {
	ctx, cancel := context.WithTimeout(context.Background(), generateTimeout)
	defer cancel()

	text, err := b.gen.Generate(ctx, req.persona, req.input)
	if err != nil {
		b.log.Warn("reply generation failed", "persona_id", req.persona.ID, "error", err.Error())
		return nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		b.log.Warn("reply generation returned empty output", "persona_id", req.persona.ID)
		return nil
	}

	return &Reply{Text: text, Delay: TypingDelay(req.input)}
}

// TypingDelay simulates human typing latency for a reply to the given input,
// independent of actual generator latency.
func TypingDelay(input string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(input)) * domain.TypingDelayPerChar
	if d < domain.TypingDelayFloor {
		d = domain.TypingDelayFloor
	}
	return d
}
