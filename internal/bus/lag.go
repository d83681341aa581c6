package bus

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"github.com/tinytelemetry/pulse/internal/model"
)

// DefaultLagInterval is how often the LagMonitor polls offsets.
const DefaultLagInterval = 15 * time.Second

type offsetClient interface {
	Metadata(ctx context.Context, req *kafka.MetadataRequest) (*kafka.MetadataResponse, error)
	OffsetFetch(ctx context.Context, req *kafka.OffsetFetchRequest) (*kafka.OffsetFetchResponse, error)
	ListOffsets(ctx context.Context, req *kafka.ListOffsetsRequest) (*kafka.ListOffsetsResponse, error)
}

// LagMonitor periodically computes per-partition lag of one consumer group
// and publishes it to a BacklogWriter.
type LagMonitor struct {
	client   offsetClient
	group    string
	topics   []string
	interval time.Duration
	sink     model.BacklogWriter
}

// NewLagMonitor builds a monitor backed by a kafka.Client.
func NewLagMonitor(brokers []string, group string, topics []string, interval time.Duration, sink model.BacklogWriter) *LagMonitor {
	client := &kafka.Client{
		Addr:    kafka.TCP(brokers...),
		Timeout: 10 * time.Second,
	}
	return newLagMonitor(client, group, topics, interval, sink)
}

func newLagMonitor(client offsetClient, group string, topics []string, interval time.Duration, sink model.BacklogWriter) *LagMonitor {
	if interval <= 0 {
		interval = DefaultLagInterval
	}
	return &LagMonitor{client: client, group: group, topics: topics, interval: interval, sink: sink}
}

// Run polls until ctx is done. Poll failures are logged and retried on the
// next tick.
func (m *LagMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.refresh(ctx)
		}
	}
}

func (m *LagMonitor) refresh(ctx context.Context) {
	entries, err := m.Poll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Errorf("bus: lag poll for group %s failed: %v", m.group, err)
		}
		return
	}
	m.sink.RefreshGroupBacklog(m.group, entries)
}

// Poll returns the current lag of every partition of the monitored topics.
// A partition without a committed offset reports its full retained size.
func (m *LagMonitor) Poll(ctx context.Context) ([]model.BacklogEntry, error) {
	meta, err := m.client.Metadata(ctx, &kafka.MetadataRequest{Topics: m.topics})
	if err != nil {
		return nil, fmt.Errorf("bus: metadata: %w", err)
	}

	partitions := make(map[string][]int)
	offsetReqs := make(map[string][]kafka.OffsetRequest)
	for _, t := range meta.Topics {
		if t.Error != nil {
			log.WithField("topic", t.Name).Warnf("bus: metadata error: %v", t.Error)
			continue
		}
		for _, p := range t.Partitions {
			partitions[t.Name] = append(partitions[t.Name], p.ID)
			offsetReqs[t.Name] = append(offsetReqs[t.Name], kafka.FirstOffsetOf(p.ID), kafka.LastOffsetOf(p.ID))
		}
	}
	if len(partitions) == 0 {
		return nil, nil
	}

	committed, err := m.client.OffsetFetch(ctx, &kafka.OffsetFetchRequest{GroupID: m.group, Topics: partitions})
	if err != nil {
		return nil, fmt.Errorf("bus: offset fetch: %w", err)
	}
	if committed.Error != nil {
		return nil, fmt.Errorf("bus: offset fetch: %w", committed.Error)
	}

	listed, err := m.client.ListOffsets(ctx, &kafka.ListOffsetsRequest{Topics: offsetReqs})
	if err != nil {
		return nil, fmt.Errorf("bus: list offsets: %w", err)
	}

	type span struct{ first, last int64 }
	spans := make(map[string]map[int]span)
	for topic, parts := range listed.Topics {
		spans[topic] = make(map[int]span, len(parts))
		for _, p := range parts {
			if p.Error != nil {
				continue
			}
			spans[topic][p.Partition] = span{first: p.FirstOffset, last: p.LastOffset}
		}
	}

	var entries []model.BacklogEntry
	for topic, parts := range committed.Topics {
		for _, p := range parts {
			if p.Error != nil {
				continue
			}
			s, ok := spans[topic][p.Partition]
			if !ok {
				continue
			}
			entries = append(entries, model.BacklogEntry{
				Group:     m.group,
				Topic:     topic,
				Partition: p.Partition,
				Lag:       Lag(p.CommittedOffset, s.first, s.last),
			})
		}
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].Topic != entries[b].Topic {
			return entries[a].Topic < entries[b].Topic
		}
		return entries[a].Partition < entries[b].Partition
	})
	return entries, nil
}

// Lag is last−committed, or last−first when the group has not committed.
// It never goes below zero.
func Lag(committed, first, last int64) int64 {
	var lag int64
	if committed < 0 {
		lag = last - first
	} else {
		lag = last - committed
	}
	return max(lag, 0)
}

