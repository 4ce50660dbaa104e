package services

import (
	"context"
	"errors"
	"fmt"

	awspkg "github.com/cafe360/local-commerce/backend/pkg/aws"
	apperrors "github.com/cafe360/local-commerce/backend/services/common/errors"
	"github.com/cafe360/local-commerce/backend/services/order-service/models"
	"github.com/cafe360/local-commerce/backend/services/order-service/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxStatusLength = 20

type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// serviceError renders an error category with a caller-facing message.
func serviceError(category *apperrors.Error, message string) *ServiceError {
	if message == "" {
		message = category.Message
	}
	return &ServiceError{StatusCode: category.Code, Message: message}
}

type OrderService interface {
	CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, *ServiceError)
	UpdateStatus(ctx context.Context, orderID int64, status models.Status) (*models.Order, *ServiceError)
	GetOrder(ctx context.Context, orderID int64) (*models.Order, *ServiceError)
	GetCustomerOrders(ctx context.Context, customerID int64) ([]models.Order, *ServiceError)
	GetShopOrders(ctx context.Context, shopID int64) ([]models.Order, *ServiceError)
	GetShopStats(ctx context.Context, shopID int64) (*models.ShopStats, *ServiceError)
	RegisterPushToken(ctx context.Context, customerID int64, token string) *ServiceError
}

type orderService struct {
	repo       repository.OrderRepository
	notify     Notifications
	cloudwatch *awspkg.MetricsClient
	logger     *zap.Logger
}

func NewOrderService(repo repository.OrderRepository, notify Notifications, cloudwatch *awspkg.MetricsClient, logger *zap.Logger) OrderService {
	return &orderService{repo: repo, notify: notify, cloudwatch: cloudwatch, logger: logger}
}

// CreateOrder stores the order and its lines atomically, then announces it
// to the shop. The lines in the result are the ones submitted, not re-read.
func (s *orderService) CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, *ServiceError) {
	if err := validateCreate(req); err != nil {
		return nil, serviceError(apperrors.ErrValidation, err.Error())
	}

	order := &models.Order{
		CustomerID:        req.CustomerID,
		ShopID:            req.ShopID,
		DeliveryAddressID: req.DeliveryAddressID,
		TotalAmount:       req.TotalAmount,
		CustomerName:      req.CustomerName,
		CustomerPhone:     req.CustomerPhone,
		DeliveryAddress:   req.DeliveryAddress,
		Status:            models.StatusPending,
		Items:             make([]models.OrderLine, 0, len(req.Items)),
	}
	lineTotal := decimal.Zero
	for _, item := range req.Items {
		order.Items = append(order.Items, models.OrderLine{
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			PricePerItem: item.PricePerItem,
			ProductName:  item.ProductName,
		})
		lineTotal = lineTotal.Add(item.PricePerItem.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if order.TotalAmount.IsZero() {
		order.TotalAmount = lineTotal
	}

	if err := s.repo.Create(ctx, order); err != nil {
		s.logger.Error("failed to create order",
			zap.Int64("customer_id", req.CustomerID),
			zap.Int64("shop_id", req.ShopID),
			zap.Error(err),
		)
		return nil, serviceError(apperrors.ErrPersistence, "")
	}

	s.logger.Info("order created",
		zap.Int64("order_id", order.OrderID),
		zap.Int64("shop_id", order.ShopID),
		zap.Int("items", len(order.Items)),
	)
	s.record(awspkg.MetricOrdersCreated)
	s.notify.OrderCreated(*order)
	return order, nil
}

// UpdateStatus persists the new status and returns without waiting for
// notifications. Unknown orders notify nobody.
func (s *orderService) UpdateStatus(ctx context.Context, orderID int64, status models.Status) (*models.Order, *ServiceError) {
	if status == "" {
		return nil, serviceError(apperrors.ErrValidation, "status is required")
	}
	if len(status) > maxStatusLength {
		return nil, serviceError(apperrors.ErrValidation, fmt.Sprintf("status must be at most %d characters", maxStatusLength))
	}

	order, err := s.repo.UpdateStatus(ctx, orderID, status)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, serviceError(apperrors.ErrNotFound, "Order not found")
		}
		s.logger.Error("failed to update order status",
			zap.Int64("order_id", orderID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return nil, serviceError(apperrors.ErrPersistence, "")
	}

	s.logger.Info("order status updated",
		zap.Int64("order_id", order.OrderID),
		zap.String("status", string(order.Status)),
	)
	s.record(awspkg.MetricOrderStatusUpdated)
	s.notify.StatusUpdated(*order)
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, *ServiceError) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, serviceError(apperrors.ErrNotFound, "Order not found")
		}
		s.logger.Error("failed to fetch order", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, serviceError(apperrors.ErrPersistence, "Failed to fetch order")
	}
	return order, nil
}

func (s *orderService) GetCustomerOrders(ctx context.Context, customerID int64) ([]models.Order, *ServiceError) {
	orders, err := s.repo.FindByCustomer(ctx, customerID)
	if err != nil {
		s.logger.Error("failed to fetch customer orders", zap.Int64("customer_id", customerID), zap.Error(err))
		return nil, serviceError(apperrors.ErrPersistence, "Failed to fetch orders")
	}
	return nonNil(orders), nil
}

func (s *orderService) GetShopOrders(ctx context.Context, shopID int64) ([]models.Order, *ServiceError) {
	orders, err := s.repo.FindByShop(ctx, shopID)
	if err != nil {
		s.logger.Error("failed to fetch shop orders", zap.Int64("shop_id", shopID), zap.Error(err))
		return nil, serviceError(apperrors.ErrPersistence, "Failed to fetch orders")
	}
	return nonNil(orders), nil
}

func (s *orderService) GetShopStats(ctx context.Context, shopID int64) (*models.ShopStats, *ServiceError) {
	stats, err := s.repo.ShopStats(ctx, shopID)
	if err != nil {
		s.logger.Error("failed to compute shop stats", zap.Int64("shop_id", shopID), zap.Error(err))
		return nil, serviceError(apperrors.ErrPersistence, "Failed to fetch analytics")
	}
	return stats, nil
}

func (s *orderService) RegisterPushToken(ctx context.Context, customerID int64, token string) *ServiceError {
	if err := s.repo.SavePushToken(ctx, customerID, token); err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return serviceError(apperrors.ErrNotFound, "Customer not found")
		}
		s.logger.Error("failed to save push token", zap.Int64("customer_id", customerID), zap.Error(err))
		return serviceError(apperrors.ErrPersistence, "")
	}
	return nil
}

func (s *orderService) record(metric string) {
	if !s.cloudwatch.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultFanoutTimeout)
		defer cancel()
		_ = s.cloudwatch.RecordCount(ctx, metric, map[string]string{"Service": "order-service"})
	}()
}

func validateCreate(req *models.CreateOrderRequest) error {
	if req.CustomerID <= 0 {
		return errors.New("customer_id is required")
	}
	if req.ShopID <= 0 {
		return errors.New("shop_id is required")
	}
	if len(req.Items) == 0 {
		return errors.New("at least one item is required")
	}
	if req.TotalAmount.IsNegative() {
		return errors.New("total_amount must not be negative")
	}
	for i, item := range req.Items {
		if item.ProductID <= 0 {
			return fmt.Errorf("items[%d]: product_id is required", i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("items[%d]: quantity must be greater than zero", i)
		}
		if item.PricePerItem.IsNegative() {
			return fmt.Errorf("items[%d]: price must not be negative", i)
		}
	}
	return nil
}

func nonNil(orders []models.Order) []models.Order {
	if orders == nil {
		return []models.Order{}
	}
	return orders
}
