package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landadmin/internal/platform/kafka"
	"landadmin/pkg/platform/events"
)

type recordingProducer struct {
	msgs  []kafka.Message
	err   error
	calls int
}

func (p *recordingProducer) Publish(_ context.Context, msg kafka.Message) error {
	p.calls++
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestKafkaSink_KeysByAggregate(t *testing.T) {
	prod := &recordingProducer{}
	sink := NewKafkaSink(prod, "land-admin.events", DefaultBreakerSettings(), discard())
	evt := events.New(context.Background(), events.TransferInitiated, "transfer-42", map[string]any{"transferNumber": "TR-1"})

	require.NoError(t, sink.Write(context.Background(), evt))

	require.Len(t, prod.msgs, 1)
	msg := prod.msgs[0]
	assert.Equal(t, "land-admin.events", msg.Topic)
	assert.Equal(t, []byte("transfer-42"), msg.Key)
	assert.Equal(t, "transfer.initiated", msg.Headers["event_type"])

	var decoded events.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, evt.ID, decoded.ID)
	assert.Equal(t, "TR-1", decoded.Payload["transferNumber"])
}

func TestKafkaSink_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	prod := &recordingProducer{err: errors.New("no brokers")}
	sink := NewKafkaSink(prod, "t", BreakerSettings{ConsecutiveFailures: 3, OpenTimeout: time.Minute, HalfOpenRequests: 1}, discard())
	evt := events.New(context.Background(), events.TransferCancelled, "a", nil)

	for range 3 {
		require.Error(t, sink.Write(context.Background(), evt))
	}
	assert.Equal(t, gobreaker.StateOpen, sink.State())

	err := sink.Write(context.Background(), evt)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, prod.calls, "open breaker must not reach the producer")
}

type failingSink struct{ err error }

func (f failingSink) Write(context.Context, events.Event) error { return f.err }

func TestMulti_WritesAllAndJoinsErrors(t *testing.T) {
	prod := &recordingProducer{}
	boom := errors.New("boom")
	m := Multi{failingSink{err: boom}, NewKafkaSink(prod, "t", DefaultBreakerSettings(), discard())}

	err := m.Write(context.Background(), events.New(context.Background(), events.TransferApproved, "a", nil))

	assert.ErrorIs(t, err, boom)
	assert.Len(t, prod.msgs, 1)
}
