package services

import (
	"context"
	"sync"

	"github.com/cafe360/local-commerce/backend/services/order-service/models"
	"github.com/cafe360/local-commerce/backend/services/order-service/push"
)

type mockRepo struct {
	createFn         func(ctx context.Context, order *models.Order) error
	updateStatusFn   func(ctx context.Context, orderID int64, status models.Status) (*models.Order, error)
	findByIDFn       func(ctx context.Context, orderID int64) (*models.Order, error)
	findByCustomerFn func(ctx context.Context, customerID int64) ([]models.Order, error)
	findByShopFn     func(ctx context.Context, shopID int64) ([]models.Order, error)
	shopStatsFn      func(ctx context.Context, shopID int64) (*models.ShopStats, error)
	pushTokenFn      func(ctx context.Context, customerID int64) (string, error)
	savePushTokenFn  func(ctx context.Context, customerID int64, token string) error
}

func (m *mockRepo) Create(ctx context.Context, order *models.Order) error {
	return m.createFn(ctx, order)
}

func (m *mockRepo) UpdateStatus(ctx context.Context, orderID int64, status models.Status) (*models.Order, error) {
	return m.updateStatusFn(ctx, orderID, status)
}

func (m *mockRepo) FindByID(ctx context.Context, orderID int64) (*models.Order, error) {
	return m.findByIDFn(ctx, orderID)
}

func (m *mockRepo) FindByCustomer(ctx context.Context, customerID int64) ([]models.Order, error) {
	return m.findByCustomerFn(ctx, customerID)
}

func (m *mockRepo) FindByShop(ctx context.Context, shopID int64) ([]models.Order, error) {
	return m.findByShopFn(ctx, shopID)
}

func (m *mockRepo) ShopStats(ctx context.Context, shopID int64) (*models.ShopStats, error) {
	return m.shopStatsFn(ctx, shopID)
}

func (m *mockRepo) PushToken(ctx context.Context, customerID int64) (string, error) {
	if m.pushTokenFn == nil {
		return "", nil
	}
	return m.pushTokenFn(ctx, customerID)
}

func (m *mockRepo) SavePushToken(ctx context.Context, customerID int64, token string) error {
	return m.savePushTokenFn(ctx, customerID, token)
}

type broadcast struct {
	Room    string
	Event   string
	Payload interface{}
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls []broadcast
	block chan struct{}
	err   error
}

func (f *fakeBroadcaster) Broadcast(ctx context.Context, room, event string, payload interface{}) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, broadcast{Room: room, Event: event, Payload: payload})
	return f.err
}

func (f *fakeBroadcaster) Calls() []broadcast {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]broadcast(nil), f.calls...)
}

type fakePush struct {
	mu   sync.Mutex
	sent []push.Message
	err  error
}

func (f *fakePush) Send(_ context.Context, msg push.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return "", f.err
	}
	return "projects/test/messages/1", nil
}

func (f *fakePush) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}
