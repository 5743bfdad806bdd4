package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// fakeReader serves queued messages, then blocks until ctx is cancelled.
type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	offsets := make([]int64, 0, len(r.committed))
	for _, m := range r.committed {
		offsets = append(offsets, m.Offset)
	}
	return offsets
}

func eventMessage(t *testing.T, offset int64, event Event) kafka.Message {
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Key: []byte(event.Key()), Value: value}
}

func TestConsumer_Start(t *testing.T) {
	defer goleak.VerifyNone(t)

	company := testCompany()
	reader := &fakeReader{messages: []kafka.Message{
		eventMessage(t, 1, NewEvent(CompanyCreated, 1, company)),
		{Offset: 2, Value: []byte("not json")},
		eventMessage(t, 3, NewEvent(EmployeeAdded, 2, company)),
		eventMessage(t, 4, NewEvent(PaymentProcessed, 3, company)),
	}}

	core, recorded := observer.New(zap.ErrorLevel)
	consumer := newConsumer(reader, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu   sync.Mutex
		seen []EventType
	)
	handled := make(chan struct{}, 3)
	consumer.RegisterHandler(func(_ context.Context, event Event) error {
		defer func() { handled <- struct{}{} }()
		if event.Type == EmployeeAdded {
			return errors.New("audit sink unavailable")
		}
		mu.Lock()
		seen = append(seen, event.Type)
		mu.Unlock()
		return nil
	})
	consumer.Start(ctx)

	for i := 0; i < 3; i++ {
		<-handled
	}
	cancel()
	consumer.Wait()
	consumer.Close()

	assert.Equal(t, []EventType{CompanyCreated, PaymentProcessed}, seen)
	// The rejected event stays uncommitted; the malformed one is skipped.
	assert.Equal(t, []int64{1, 2, 4}, reader.committedOffsets())
	assert.Equal(t, 1, recorded.FilterMessage("Failed to parse event").Len())
	assert.Equal(t, 1, recorded.FilterMessage("Failed to handle event").Len())
	assert.True(t, reader.closed)
}

func TestConsumer_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	consumer := newConsumer(&fakeReader{}, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	consumer.Start(ctx)
	cancel()
	consumer.Wait()
}
