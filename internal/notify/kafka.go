// Package notify publishes post-merge events to Kafka so downstream
// consumers (pattern extraction, cache warmers) learn about new merged
// files without polling the file list. Delivery is best effort: a
// publish failure never affects the merge pipeline.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/tessera-io/tessera/internal/compactor"
	"github.com/tessera-io/tessera/internal/logging"
)

// Config configures the Kafka publisher.
type Config struct {
	Brokers []string
	Topic   string
}

// Publisher sends MergedFileEvents to a Kafka topic, keyed by partition
// so events for one partition stay ordered.
type Publisher struct {
	client *kgo.Client
	topic  string
	log    *logging.Logger
}

// message is the wire form of a merged-file event.
type message struct {
	Account    string `json:"account"`
	Key        string `json:"key"`
	Org        string `json:"org"`
	StreamType string `json:"stream_type"`
	Stream     string `json:"stream"`
	MinTs      int64  `json:"min_ts"`
	MaxTs      int64  `json:"max_ts"`
	Records    int64  `json:"records"`
	Size       int64  `json:"size"`
}

// NewPublisher connects to Kafka and ensures the topic exists.
func NewPublisher(ctx context.Context, cfg Config, log *logging.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("notify: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("notify: no topic configured")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProduceRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: connect: %w", err)
	}

	if err := ensureTopic(ctx, client, cfg.Topic); err != nil {
		client.Close()
		return nil, err
	}

	return &Publisher{
		client: client,
		topic:  cfg.Topic,
		log:    log.WithComponent("notify"),
	}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("notify: create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("notify: create topic %s: %w", topic, resp.Err)
	}
	return nil
}

// FileMerged publishes one event synchronously.
func (p *Publisher) FileMerged(ctx context.Context, event compactor.MergedFileEvent) error {
	payload, err := json.Marshal(message{
		Account:    event.Account,
		Key:        event.Key,
		Org:        event.Partition.Org,
		StreamType: event.Partition.StreamType,
		Stream:     event.Partition.Stream,
		MinTs:      event.Meta.MinTs,
		MaxTs:      event.Meta.MaxTs,
		Records:    event.Meta.Records,
		Size:       event.Meta.CompressedSize,
	})
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Partition.String()),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("notify: publish %s: %w", event.Key, err)
	}
	return nil
}

// Close flushes and closes the underlying client.
func (p *Publisher) Close() {
	p.client.Close()
}

var _ compactor.Observer = (*Publisher)(nil)
