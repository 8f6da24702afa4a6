package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
	"github.com/Apurer/go-order-admin/internal/domains/orders/ports"
)

var _ ports.EventSink = (*SQSSink)(nil)

const defaultSendTimeout = 5 * time.Second

// SQSAPI is the subset of the SQS client used to publish events.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Envelope is the JSON body published for each event.
type Envelope struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	OrderID    string       `json:"orderId"`
	OccurredAt time.Time    `json:"occurredAt"`
	Payload    domain.Event `json:"payload"`
}

// SQSSink publishes events to an SQS queue in the background.
// Send failures are logged and dropped.
type SQSSink struct {
	client   SQSAPI
	queueURL string
	logger   *slog.Logger
	timeout  time.Duration
	newID    func() string

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// SQSOption customises an SQSSink.
type SQSOption func(*SQSSink)

// WithSQSLogger sets the logger used for publish failures.
func WithSQSLogger(logger *slog.Logger) SQSOption {
	return func(s *SQSSink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSendTimeout bounds each SendMessage call.
func WithSendTimeout(d time.Duration) SQSOption {
	return func(s *SQSSink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewSQSSink(client SQSAPI, queueURL string, opts ...SQSOption) *SQSSink {
	s := &SQSSink{
		client:   client,
		queueURL: queueURL,
		logger:   slog.Default(),
		timeout:  defaultSendTimeout,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Emit encodes the event and sends it without waiting for the result.
func (s *SQSSink) Emit(ctx context.Context, event domain.Event) {
	if event == nil {
		return
	}
	envelope := Envelope{
		ID:         s.newID(),
		Name:       event.EventName(),
		OrderID:    event.AggregateID(),
		OccurredAt: event.OccurredAt(),
		Payload:    event,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "failed to encode order event",
			slog.String("event.name", envelope.Name),
			slog.String("error", err.Error()),
		)
		return
	}
	input := &sqs.SendMessageInput{
		QueueUrl:    sdkaws.String(s.queueURL),
		MessageBody: sdkaws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event_name": {DataType: sdkaws.String("String"), StringValue: sdkaws.String(envelope.Name)},
			"order_id":   {DataType: sdkaws.String("String"), StringValue: sdkaws.String(envelope.OrderID)},
		},
	}
	if strings.HasSuffix(s.queueURL, ".fifo") {
		input.MessageGroupId = sdkaws.String(envelope.OrderID)
		input.MessageDeduplicationId = sdkaws.String(envelope.ID)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.LogAttrs(ctx, slog.LevelWarn, "order event dropped, sink flushed",
			slog.String("event.name", envelope.Name),
			slog.String("order.id", envelope.OrderID),
		)
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		if _, err := s.client.SendMessage(sendCtx, input); err != nil {
			s.logger.LogAttrs(sendCtx, slog.LevelWarn, "failed to publish order event",
				slog.String("event.name", envelope.Name),
				slog.String("event.id", envelope.ID),
				slog.String("order.id", envelope.OrderID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Flush stops accepting events and waits for in-flight sends or until ctx is done.
func (s *SQSSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
