// Package bus consumes message-bus topics as ingestion input and tracks
// consumer-group lag.
package bus

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"github.com/tinytelemetry/pulse/internal/model"
)

const (
	// DefaultConsumerBuffer is the envelope channel size of a Consumer.
	DefaultConsumerBuffer = 10_000

	defaultCommitInterval = time.Second
	fetchRetryDelay       = time.Second
)

// ConsumerConfig selects the brokers, group and topics to consume.
type ConsumerConfig struct {
	Brokers    []string
	Group      string
	Topics     []string
	BufferSize int
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads every configured topic under one consumer group and emits
// one bus-message envelope per record.
type Consumer struct {
	reader   messageReader
	ch       chan model.IngestEnvelope
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewConsumer starts consuming in the background.
func NewConsumer(ctx context.Context, cfg ConsumerConfig) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("bus: no brokers configured")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("bus: no topics configured")
	}
	if cfg.Group == "" {
		return nil, errors.New("bus: consumer group is required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.Group,
		GroupTopics:    cfg.Topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: defaultCommitInterval,
	})
	return newConsumerWithReader(ctx, reader, cfg.BufferSize), nil
}

func newConsumerWithReader(ctx context.Context, reader messageReader, bufferSize int) *Consumer {
	if bufferSize <= 0 {
		bufferSize = DefaultConsumerBuffer
	}
	ctx, cancel := context.WithCancel(ctx)
	c := &Consumer{
		reader: reader,
		ch:     make(chan model.IngestEnvelope, bufferSize),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.run(ctx)
	return c
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)
	defer close(c.ch)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, io.EOF) {
				log.Warnf("bus: reader closed: %v", err)
				return
			}
			log.Errorf("bus: error while reading kafka message: %v", err)
			select {
			case <-time.After(fetchRetryDelay):
				continue
			case <-ctx.Done():
				return
			}
		}

		select {
		case c.ch <- Envelope(msg):
		case <-ctx.Done():
			return
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Errorf("bus: unable to commit offset %d of %s/%d: %v", msg.Offset, msg.Topic, msg.Partition, err)
		}
	}
}

// Envelope converts a Kafka record into an ingest envelope keyed by topic.
func Envelope(msg kafka.Message) model.IngestEnvelope {
	return model.IngestEnvelope{
		Source:    "kafka",
		Kind:      model.SourceBusMessage,
		Key:       msg.Topic,
		Line:      string(msg.Value),
		Timestamp: msg.Time,
	}
}

func (c *Consumer) Lines() <-chan model.IngestEnvelope { return c.ch }

func (c *Consumer) Name() string { return "kafka" }

// Stop cancels consumption, waits for the loop to exit and closes the reader.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		c.cancel()
		<-c.done
		if err := c.reader.Close(); err != nil {
			log.Warnf("bus: closing reader: %v", err)
		}
	})
}
