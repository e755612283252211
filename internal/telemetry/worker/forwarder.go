// Package worker forwards auth events from Kafka to a log sink.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// pushTimeout bounds a single sink call.
const pushTimeout = 10 * time.Second

// MessageReader is the subset of *kafka.Reader the forwarder consumes.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Sink receives one raw event.
type Sink func(ctx context.Context, raw []byte) error

// NewReader returns a consumer-group reader for topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
}

// Forward reads messages until ctx is cancelled and hands each to sink.
// Read and sink failures are logged and skipped; the loop only exits on cancellation.
// Returns the number of messages the sink accepted.
func Forward(ctx context.Context, reader MessageReader, sink Sink, log zerolog.Logger) int {
	forwarded := 0
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return forwarded
			}
			log.Warn().Err(err).Msg("kafka read failed")
			continue
		}
		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := sink(pushCtx, msg.Value); err != nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Msg("sink push failed")
		} else {
			forwarded++
		}
		cancel()
	}
}
