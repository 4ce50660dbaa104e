package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cafe360/local-commerce/backend/services/order-service/events"
	"github.com/cafe360/local-commerce/backend/services/order-service/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePublisher struct {
	published chan events.Event
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, evt events.Event) error {
	f.published <- evt
	return f.err
}

func TestStatusPushMessage(t *testing.T) {
	msg := StatusPushMessage("tok", models.Order{OrderID: 12, Status: models.StatusReady})

	assert.Equal(t, "tok", msg.Token)
	assert.Equal(t, "Order Update", msg.Title)
	assert.Equal(t, "Your order #12 is now ready!", msg.Body)
	assert.Equal(t, map[string]string{
		"orderId":      "12",
		"status":       "ready",
		"click_action": "FLUTTER_NOTIFICATION_CLICK",
	}, msg.Data)
}

func TestNotifier_PushFailureDoesNotSuppressRealtime(t *testing.T) {
	b := &fakeBroadcaster{}
	p := &fakePush{err: errors.New("registration-token-not-registered")}
	n := NewNotifier(NotifierConfig{
		Broadcaster: b,
		Push:        p,
		Tokens:      &mockRepo{pushTokenFn: func(context.Context, int64) (string, error) { return "stale", nil }},
		Registerer:  prometheus.NewRegistry(),
	})

	n.StatusUpdated(models.Order{OrderID: 1, CustomerID: 9, Status: models.StatusCancelled})
	n.Wait()

	assert.Len(t, b.Calls(), 1)
	assert.Equal(t, 1, p.Count())
	assert.Equal(t, float64(1), testutil.ToFloat64(n.deliveries.WithLabelValues(ChannelPush, "failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(n.deliveries.WithLabelValues(ChannelRealtime, "delivered")))
}

func TestNotifier_RealtimeFailureDoesNotSuppressPush(t *testing.T) {
	b := &fakeBroadcaster{err: errors.New("relay unavailable")}
	p := &fakePush{}
	n := NewNotifier(NotifierConfig{
		Broadcaster: b,
		Push:        p,
		Tokens:      &mockRepo{pushTokenFn: func(context.Context, int64) (string, error) { return "tok", nil }},
		Registerer:  prometheus.NewRegistry(),
	})

	n.StatusUpdated(models.Order{OrderID: 1, CustomerID: 9, Status: models.StatusAccepted})
	n.Wait()

	assert.Equal(t, 1, p.Count())
	assert.Equal(t, float64(1), testutil.ToFloat64(n.deliveries.WithLabelValues(ChannelRealtime, "failed")))
}

func TestNotifier_TimeoutIsCounted(t *testing.T) {
	b := &fakeBroadcaster{block: make(chan struct{})}
	n := NewNotifier(NotifierConfig{
		Broadcaster: b,
		Timeout:     20 * time.Millisecond,
		Registerer:  prometheus.NewRegistry(),
		Logger:      zap.NewNop(),
	})

	n.OrderCreated(models.Order{OrderID: 1, ShopID: 1})
	n.Wait()

	assert.Empty(t, b.Calls())
	assert.Equal(t, float64(1), testutil.ToFloat64(n.deliveries.WithLabelValues(ChannelRealtime, "timeout")))
}

func TestNotifier_TokenLookupFailureSkipsSend(t *testing.T) {
	p := &fakePush{}
	n := NewNotifier(NotifierConfig{
		Broadcaster: &fakeBroadcaster{},
		Push:        p,
		Tokens: &mockRepo{pushTokenFn: func(context.Context, int64) (string, error) {
			return "", errors.New("connection refused")
		}},
		Registerer: prometheus.NewRegistry(),
	})

	n.StatusUpdated(models.Order{OrderID: 1, CustomerID: 9, Status: models.StatusReady})
	n.Wait()

	assert.Equal(t, 0, p.Count())
	assert.Equal(t, float64(1), testutil.ToFloat64(n.deliveries.WithLabelValues(ChannelPush, "failed")))
}

func TestNotifier_PublishesOrderEvents(t *testing.T) {
	pub := &fakePublisher{published: make(chan events.Event, 2)}
	n := NewNotifier(NotifierConfig{
		Broadcaster: &fakeBroadcaster{},
		Events:      pub,
		Registerer:  prometheus.NewRegistry(),
	})

	n.OrderCreated(models.Order{OrderID: 4, ShopID: 1, Status: models.StatusPending})
	n.StatusUpdated(models.Order{OrderID: 4, CustomerID: 2, Status: models.StatusAccepted})
	n.Wait()

	require.Len(t, pub.published, 2)
	types := map[string]bool{}
	for i := 0; i < 2; i++ {
		evt := <-pub.published
		assert.Equal(t, int64(4), evt.OrderID)
		types[evt.Type] = true
	}
	assert.True(t, types[events.TypeOrderCreated])
	assert.True(t, types[events.TypeOrderStatusUpdated])
}
