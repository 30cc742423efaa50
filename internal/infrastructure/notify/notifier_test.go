package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/pkg/circuitbreaker"
)

type published struct {
	routingKey string
	messageID  string
	body       []byte
}

// fakePublisher 记录发布的消息，可注入错误
type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, routingKey, messageID string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}
	p.msgs = append(p.msgs, published{routingKey, messageID, body})
	return nil
}

func sampleNotice() circulation.BookAvailableNotice {
	return circulation.BookAvailableNotice{
		EventID:       "evt-1",
		ReservationID: 3,
		LoanID:        9,
		BookID:        5,
		BookTitle:     "Se questo è un uomo",
		UserID:        11,
		UserEmail:     "lettore@example.it",
		StartDate:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		DueDate:       time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestAMQPNotifier_Publishes(t *testing.T) {
	pub := &fakePublisher{}
	n := NewAMQPNotifier(pub, nil, nil)

	require.NoError(t, n.NotifyBookAvailable(context.Background(), sampleNotice()))

	require.Len(t, pub.msgs, 1)
	msg := pub.msgs[0]
	assert.Equal(t, RoutingKeyBookAvailable, msg.routingKey)
	assert.Equal(t, "evt-1", msg.messageID)

	event, err := DecodeBookAvailableEvent(msg.body)
	require.NoError(t, err)
	assert.Equal(t, uint(3), event.ReservationID)
	assert.Equal(t, "2025-06-01", event.StartDate)
	assert.Equal(t, "2025-06-15", event.DueDate)
	assert.Contains(t, event.Render(), "Se questo è un uomo")
}

func TestAMQPNotifier_BreakerOpens(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection reset")}
	breaker := circuitbreaker.NewCircuitBreaker("notifier-test", circuitbreaker.Config{
		Timeout:     time.Minute,
		ReadyToTrip: func(c circuitbreaker.Counts) bool { return c.ConsecutiveFailures >= 2 },
	})
	n := NewAMQPNotifier(pub, breaker, nil)
	ctx := context.Background()

	assert.Error(t, n.NotifyBookAvailable(ctx, sampleNotice()))
	assert.Error(t, n.NotifyBookAvailable(ctx, sampleNotice()))

	// 熔断后即使下游恢复也快速失败
	pub.err = nil
	err := n.NotifyBookAvailable(ctx, sampleNotice())
	assert.ErrorIs(t, err, circuitbreaker.ErrOpenState)
	assert.Empty(t, pub.msgs)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.NotifyBookAvailable(context.Background(), sampleNotice()))
	entries := logs.FilterMessage("到书通知").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "lettore@example.it", entries[0].ContextMap()["to"])
}

func TestConsumerHandler(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handle := NewConsumerHandler(zap.New(core))

	body, err := json.Marshal(NewBookAvailableEvent(sampleNotice(), time.Now()))
	require.NoError(t, err)
	require.NoError(t, handle(context.Background(), RoutingKeyBookAvailable, body))
	assert.Equal(t, 1, logs.FilterMessage("到书通知").Len())

	// 格式错误的消息被确认丢弃
	require.NoError(t, handle(context.Background(), RoutingKeyBookAvailable, []byte("{")))
	assert.Equal(t, 1, logs.FilterMessage("丢弃无法解析的消息").Len())

	_, err = DecodeBookAvailableEvent([]byte(`{"event_id":"x"}`))
	assert.Error(t, err)
}
