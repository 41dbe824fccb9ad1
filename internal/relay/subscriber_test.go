package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffsync/internal/apperrors"
	domainEvent "staffsync/internal/domain/event"
	"staffsync/internal/domain/outbox"
)

func TestHTTPSubscriber_Deliver(t *testing.T) {
	var gotHeaders http.Header
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	e := outbox.NewEvent("evt-1", "employee.created", "7", []byte(`{"id":7}`), t0)
	require.NoError(t, NewHTTPSubscriber(srv.URL, nil).Deliver(context.Background(), e))

	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "employee.created", gotHeaders.Get(HeaderEventType))
	assert.Equal(t, "evt-1", gotHeaders.Get(HeaderEventID))
	assert.JSONEq(t, `{"id":7}`, string(gotBody))
}

func TestHTTPSubscriber_Non2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewHTTPSubscriber(srv.URL, nil).Deliver(context.Background(), outbox.NewEvent("e", "t", "", []byte(`{}`), t0))
	assert.ErrorIs(t, err, apperrors.ErrTransientDelivery)
	assert.ErrorContains(t, err, "answered 500")
}

func TestHTTPSubscriber_TimeoutFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := NewHTTPSubscriber(srv.URL, nil).Deliver(ctx, outbox.NewEvent("e", "t", "", []byte(`{}`), t0))
	assert.ErrorIs(t, err, apperrors.ErrTransientDelivery)
}

type fakePublisher struct {
	key, value []byte
	headers    map[string]string
	err        error
}

func (p *fakePublisher) SendMessage(_ context.Context, key, value []byte, headers map[string]string) error {
	p.key, p.value, p.headers = key, value, headers
	return p.err
}

func (p *fakePublisher) GetTopic() string { return "employee-events" }

func TestKafkaSubscriber_Deliver(t *testing.T) {
	pub := &fakePublisher{}
	sub := NewKafkaSubscriber(pub, "employee-service")
	assert.Equal(t, "kafka:employee-events", sub.Name())

	e := outbox.NewEvent("evt-9", "employee.deleted", "42", []byte(`{"id":42}`), t0)
	require.NoError(t, sub.Deliver(context.Background(), e))

	assert.Equal(t, "42", string(pub.key))
	assert.Equal(t, "evt-9", pub.headers[HeaderEventID])

	var msg domainEvent.Message
	require.NoError(t, json.Unmarshal(pub.value, &msg))
	assert.Equal(t, "employee.deleted", msg.Type)
	assert.Equal(t, "employee-service", msg.Producer)
	assert.Equal(t, t0, msg.OccurredAt)
	assert.JSONEq(t, `{"id":42}`, string(msg.Payload))
	assert.Empty(t, msg.PayloadEncoding)
}

func TestKafkaSubscriber_NonJSONPayloadIsBase64Wrapped(t *testing.T) {
	pub := &fakePublisher{}
	e := outbox.NewEvent("evt-3", "employee.created", "7", []byte("id=7;name=Ada"), t0)
	require.NoError(t, NewKafkaSubscriber(pub, "employee-service").Deliver(context.Background(), e))

	require.True(t, json.Valid(pub.value))
	var msg domainEvent.Message
	require.NoError(t, json.Unmarshal(pub.value, &msg))
	assert.Equal(t, domainEvent.EncodingBase64, msg.PayloadEncoding)

	raw, err := msg.RawPayload()
	require.NoError(t, err)
	assert.Equal(t, "id=7;name=Ada", string(raw))
}

func TestKafkaSubscriber_KeyFallsBackToEventID(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	err := NewKafkaSubscriber(pub, "p").Deliver(context.Background(), outbox.NewEvent("evt-1", "t", "", []byte(`{}`), t0))

	assert.ErrorIs(t, err, apperrors.ErrTransientDelivery)
	assert.Equal(t, "evt-1", string(pub.key))
}
