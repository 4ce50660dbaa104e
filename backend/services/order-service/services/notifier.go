package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	awspkg "github.com/cafe360/local-commerce/backend/pkg/aws"
	"github.com/cafe360/local-commerce/backend/services/order-service/events"
	"github.com/cafe360/local-commerce/backend/services/order-service/models"
	"github.com/cafe360/local-commerce/backend/services/order-service/push"
	"github.com/cafe360/local-commerce/backend/services/order-service/realtime"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Fanout channels, used as the "channel" metric label.
const (
	ChannelRealtime = "realtime"
	ChannelPush     = "push"
	ChannelEvents   = "events"
)

const (
	outcomeDelivered = "delivered"
	outcomeFailed    = "failed"
	outcomeTimeout   = "timeout"
	outcomeSkipped   = "skipped"
)

const DefaultFanoutTimeout = 5 * time.Second

// Notifications is what the order service tells about committed changes.
type Notifications interface {
	OrderCreated(order models.Order)
	StatusUpdated(order models.Order)
}

// TokenLookup resolves a customer's push token ("" when none is on file).
type TokenLookup interface {
	PushToken(ctx context.Context, customerID int64) (string, error)
}

type NotifierConfig struct {
	Broadcaster realtime.Broadcaster
	Push        push.Sender      // optional
	Tokens      TokenLookup      // required when Push is set
	Events      events.Publisher // optional
	Timeout     time.Duration
	Registerer  prometheus.Registerer
	CloudWatch  *awspkg.MetricsClient // optional
	Logger      *zap.Logger
}

// Notifier runs every fanout channel on its own goroutine under its own
// deadline. Failures are logged and counted; they never reach the caller
// and one channel failing does not stop the others.
type Notifier struct {
	broadcaster realtime.Broadcaster
	push        push.Sender
	tokens      TokenLookup
	events      events.Publisher
	timeout     time.Duration
	cloudwatch  *awspkg.MetricsClient
	logger      *zap.Logger
	deliveries  *prometheus.CounterVec
	wg          sync.WaitGroup
}

func NewNotifier(cfg NotifierConfig) *Notifier {
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fanout_deliveries_total",
		Help: "Order notification attempts by channel and outcome.",
	}, []string{"channel", "outcome"})
	if cfg.Registerer != nil {
		cfg.Registerer.MustRegister(deliveries)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultFanoutTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Notifier{
		broadcaster: cfg.Broadcaster,
		push:        cfg.Push,
		tokens:      cfg.Tokens,
		events:      cfg.Events,
		timeout:     timeout,
		cloudwatch:  cfg.CloudWatch,
		logger:      logger,
		deliveries:  deliveries,
	}
}

// OrderCreated announces a committed order to its shop.
func (n *Notifier) OrderCreated(order models.Order) {
	n.dispatch(ChannelRealtime, order, func(ctx context.Context) (string, error) {
		return outcomeDelivered, n.broadcaster.Broadcast(ctx, realtime.RoomForShop(order.ShopID), realtime.EventNewOrder, order)
	})
	n.publishEvent(events.TypeOrderCreated, order)
}

// StatusUpdated tells the customer about a committed status change, live
// and by push.
func (n *Notifier) StatusUpdated(order models.Order) {
	n.dispatch(ChannelRealtime, order, func(ctx context.Context) (string, error) {
		return outcomeDelivered, n.broadcaster.Broadcast(ctx, realtime.RoomForCustomer(order.CustomerID), realtime.EventOrderStatusUpdated, order)
	})
	if n.push != nil {
		n.dispatch(ChannelPush, order, func(ctx context.Context) (string, error) {
			return n.sendPush(ctx, order)
		})
	}
	n.publishEvent(events.TypeOrderStatusUpdated, order)
}

// Wait blocks until every fanout started so far has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) publishEvent(eventType string, order models.Order) {
	if n.events == nil {
		return
	}
	n.dispatch(ChannelEvents, order, func(ctx context.Context) (string, error) {
		evt, err := events.New(eventType, order.OrderID, order)
		if err != nil {
			return outcomeFailed, err
		}
		return outcomeDelivered, n.events.Publish(ctx, evt)
	})
}

func (n *Notifier) sendPush(ctx context.Context, order models.Order) (string, error) {
	token, err := n.tokens.PushToken(ctx, order.CustomerID)
	if err != nil {
		return outcomeFailed, fmt.Errorf("lookup push token: %w", err)
	}
	if token == "" {
		return outcomeSkipped, nil
	}

	id, err := n.push.Send(ctx, StatusPushMessage(token, order))
	if err != nil {
		return outcomeFailed, err
	}
	n.logger.Debug("push notification sent",
		zap.Int64("order_id", order.OrderID),
		zap.String("delivery_id", id),
	)
	n.recordCloudWatch(awspkg.MetricPushNotificationSent)
	return outcomeDelivered, nil
}

// StatusPushMessage is the push shown to a customer when their order moves.
func StatusPushMessage(token string, order models.Order) push.Message {
	orderID := strconv.FormatInt(order.OrderID, 10)
	return push.Message{
		Token: token,
		Title: "Order Update",
		Body:  fmt.Sprintf("Your order #%s is now %s!", orderID, order.Status),
		Data: map[string]string{
			"orderId":      orderID,
			"status":       string(order.Status),
			"click_action": "FLUTTER_NOTIFICATION_CLICK",
		},
	}
}

func (n *Notifier) dispatch(channel string, order models.Order, fn func(ctx context.Context) (string, error)) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		outcome, err := fn(ctx)
		if err != nil {
			outcome = outcomeFailed
			if errors.Is(err, context.DeadlineExceeded) {
				outcome = outcomeTimeout
			}
			n.logger.Error("order notification failed",
				zap.String("channel", channel),
				zap.String("outcome", outcome),
				zap.Int64("order_id", order.OrderID),
				zap.String("status", string(order.Status)),
				zap.Error(err),
			)
			n.recordCloudWatch(awspkg.MetricFanoutFailed)
		}
		n.deliveries.WithLabelValues(channel, outcome).Inc()
	}()
}

func (n *Notifier) recordCloudWatch(metric string) {
	if !n.cloudwatch.IsEnabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	_ = n.cloudwatch.RecordCount(ctx, metric, map[string]string{"Service": "order-service"})
}
