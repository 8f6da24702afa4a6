package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
)

type fakeSQS struct {
	mu     sync.Mutex
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) sent() []*sqs.SendMessageInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*sqs.SendMessageInput(nil), f.inputs...)
}

var at = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func statusChanged() domain.OrderStatusChanged {
	return domain.OrderStatusChanged{
		BaseEvent:  domain.BaseEvent{OrderID: "ord-1", Timestamp: at},
		FromStatus: domain.StatusPending,
		ToStatus:   domain.StatusCancelled,
	}
}

func TestSQSSink_PublishesEnvelope(t *testing.T) {
	client := &fakeSQS{}
	sink := NewSQSSink(client, "https://sqs.us-east-1.amazonaws.com/123/orders")
	sink.newID = func() string { return "evt-1" }

	sink.Emit(context.Background(), statusChanged())
	require.NoError(t, sink.Flush(context.Background()))

	sent := client.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123/orders", *sent[0].QueueUrl)
	assert.Nil(t, sent[0].MessageGroupId)
	assert.Equal(t, "orders.order.status_changed", *sent[0].MessageAttributes["event_name"].StringValue)
	assert.Equal(t, "ord-1", *sent[0].MessageAttributes["order_id"].StringValue)

	var body struct {
		ID         string          `json:"id"`
		Name       string          `json:"name"`
		OrderID    string          `json:"orderId"`
		OccurredAt time.Time       `json:"occurredAt"`
		Payload    json.RawMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(*sent[0].MessageBody), &body))
	assert.Equal(t, "evt-1", body.ID)
	assert.Equal(t, "orders.order.status_changed", body.Name)
	assert.True(t, at.Equal(body.OccurredAt))
	assert.JSONEq(t,
		`{"orderId":"ord-1","timestamp":"2026-06-01T12:00:00Z","fromStatus":"pending","toStatus":"cancelled"}`,
		string(body.Payload))
}

func TestSQSSink_DropsEventsAfterFlush(t *testing.T) {
	var buf bytes.Buffer
	client := &fakeSQS{}
	sink := NewSQSSink(client, "queue", WithSQSLogger(slog.New(slog.NewJSONHandler(&buf, nil))))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Emit(context.Background(), statusChanged())
		}()
	}
	require.NoError(t, sink.Flush(context.Background()))
	wg.Wait()
	sent := len(client.sent())

	sink.Emit(context.Background(), statusChanged())
	require.NoError(t, sink.Flush(context.Background()))

	assert.Equal(t, sent, len(client.sent()))
	assert.Contains(t, buf.String(), "order event dropped, sink flushed")
}

func TestSQSSink_FifoQueueSetsGroupAndDeduplication(t *testing.T) {
	client := &fakeSQS{}
	sink := NewSQSSink(client, "https://sqs.us-east-1.amazonaws.com/123/orders.fifo")
	sink.newID = func() string { return "evt-9" }

	sink.Emit(context.Background(), statusChanged())
	require.NoError(t, sink.Flush(context.Background()))

	sent := client.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ord-1", *sent[0].MessageGroupId)
	assert.Equal(t, "evt-9", *sent[0].MessageDeduplicationId)
}

func TestSQSSink_LogsFailuresWithoutReturningThem(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	client := &fakeSQS{err: errors.New("throttled")}
	sink := NewSQSSink(client, "queue", WithSQSLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	sink.Emit(ctx, statusChanged())
	cancel()
	require.NoError(t, sink.Flush(context.Background()))

	assert.Len(t, client.sent(), 1)
	assert.Contains(t, buf.String(), "failed to publish order event")
	assert.Contains(t, buf.String(), "throttled")
}

type recordingSink struct {
	names []string
}

func (r *recordingSink) Emit(_ context.Context, event domain.Event) {
	r.names = append(r.names, event.EventName())
}

func TestLogSinkAndFanout(t *testing.T) {
	var buf bytes.Buffer
	logSink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))
	recorder := &recordingSink{}

	Fanout{logSink, nil, recorder}.Emit(context.Background(), domain.OrderDeleted{
		BaseEvent:      domain.BaseEvent{OrderID: "ord-2", Timestamp: at},
		PreviousStatus: domain.StatusPending,
	})

	assert.Equal(t, []string{"orders.order.deleted"}, recorder.names)
	assert.Contains(t, buf.String(), `"event.name":"orders.order.deleted"`)
	assert.Contains(t, buf.String(), `"order.id":"ord-2"`)
}
