package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"staffsync/internal/apperrors"
	domainEvent "staffsync/internal/domain/event"
	"staffsync/internal/domain/outbox"
)

const (
	HeaderEventType = "X-Event-Type"
	HeaderEventID   = "X-Event-Id"
)

// Subscriber receives every relayed event. Deliver must honour ctx.
type Subscriber interface {
	Name() string
	Deliver(ctx context.Context, e *outbox.Event) error
}

// HTTPSubscriber POSTs the raw payload to a fixed URL. Any non-2xx answer is a failure.
type HTTPSubscriber struct {
	url    string
	client *http.Client
}

func NewHTTPSubscriber(url string, client *http.Client) *HTTPSubscriber {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPSubscriber{url: url, client: client}
}

func (s *HTTPSubscriber) Name() string { return s.url }

func (s *HTTPSubscriber) Deliver(ctx context.Context, e *outbox.Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(e.Payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventType, e.Type)
	req.Header.Set(HeaderEventID, e.ID)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrTransientDelivery, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s answered %d", apperrors.ErrTransientDelivery, s.url, resp.StatusCode)
	}
	return nil
}

// Publisher is the part of the Kafka producer the relay needs.
type Publisher interface {
	SendMessage(ctx context.Context, key, value []byte, headers map[string]string) error
	GetTopic() string
}

// KafkaSubscriber publishes the event envelope to a topic keyed by aggregate id.
type KafkaSubscriber struct {
	publisher Publisher
	producer  string
	now       func() time.Time
}

func NewKafkaSubscriber(publisher Publisher, producer string) *KafkaSubscriber {
	return &KafkaSubscriber{publisher: publisher, producer: producer, now: func() time.Time { return time.Now().UTC() }}
}

func (s *KafkaSubscriber) Name() string { return "kafka:" + s.publisher.GetTopic() }

func (s *KafkaSubscriber) Deliver(ctx context.Context, e *outbox.Event) error {
	key := []byte(e.AggregateID)
	if len(key) == 0 {
		key = []byte(e.ID)
	}

	msg := domainEvent.Message{
		ID:          e.ID,
		Type:        e.Type,
		AggregateID: e.AggregateID,
		Producer:    s.producer,
		OccurredAt:  e.CreatedAt,
	}
	msg.SetPayload(e.Payload)
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = s.now()
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.ID, err)
	}

	headers := map[string]string{HeaderEventType: e.Type, HeaderEventID: e.ID}
	if err := s.publisher.SendMessage(ctx, key, value, headers); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrTransientDelivery, err)
	}
	return nil
}
