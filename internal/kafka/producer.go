package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

var ErrProducerClosed = errors.New("kafka: producer closed")

// messageWriter is the part of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer buffers messages for one topic and writes them from a single
// goroutine. Close (or cancelling the Start context) flushes what is queued.
type Producer struct {
	topic string
	w     messageWriter
	inbox chan kafka.Message
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
	log   *slog.Logger
}

func NewProducer(brokers []string, topic string, buf int, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "kafka-producer", "topic", topic)
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Error("kafka write failed", "messages", len(msgs), "err", err)
			}
		},
	}
	return newProducer(topic, w, buf, log)
}

func newProducer(topic string, w messageWriter, buf int, log *slog.Logger) *Producer {
	return &Producer{
		topic: topic,
		w:     w,
		inbox: make(chan kafka.Message, buf),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		log:   log,
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		defer func() {
			if err := p.w.Close(); err != nil {
				p.log.Warn("kafka writer close", "err", err)
			}
		}()
		for {
			select {
			case m := <-p.inbox:
				p.write(m)
			case <-ctx.Done():
				p.drain()
				return
			case <-p.stop:
				p.drain()
				return
			}
		}
	}()
}

func (p *Producer) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.Error("kafka write failed", "key", string(m.Key), "err", err)
	}
}

// Publish queues one message. It blocks while the buffer is full, until ctx
// is done.
func (p *Producer) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	select {
	case <-p.stop:
		return ErrProducerClosed
	default:
	}
	m := kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}
	select {
	case p.inbox <- m:
		return nil
	case <-p.stop:
		return ErrProducerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages; the write loop flushes and exits.
func (p *Producer) Close() { p.once.Do(func() { close(p.stop) }) }

// WaitClosed blocks until the write loop has exited.
func (p *Producer) WaitClosed() { <-p.done }
