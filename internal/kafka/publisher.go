package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ariefcatur/go-storefront/internal/events"
)

// Publisher fans envelopes out to one Producer per topic. It satisfies
// events.Publisher.
type Publisher struct {
	producers map[string]*Producer
}

func NewPublisher(brokers []string, topics []string, buf int, logger *slog.Logger) *Publisher {
	p := &Publisher{producers: make(map[string]*Producer, len(topics))}
	for _, t := range topics {
		p.producers[t] = NewProducer(brokers, t, buf, logger)
	}
	return p
}

func (p *Publisher) Start(ctx context.Context) {
	for _, prod := range p.producers {
		prod.Start(ctx)
	}
}

func (p *Publisher) Publish(ctx context.Context, topic string, env events.Envelope) error {
	prod, ok := p.producers[topic]
	if !ok {
		return fmt.Errorf("kafka: no producer for topic %q", topic)
	}
	m, err := EncodeEnvelope(env)
	if err != nil {
		return err
	}
	return prod.Publish(ctx, m.Key, m.Value, m.Headers...)
}

// Close flushes every producer and waits for them to finish.
func (p *Publisher) Close() {
	for _, prod := range p.producers {
		prod.Close()
	}
	for _, prod := range p.producers {
		prod.WaitClosed()
	}
}
