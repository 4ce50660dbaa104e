package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cafe360/local-commerce/backend/services/order-service/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrCustomerNotFound = errors.New("customer not found")
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	UpdateStatus(ctx context.Context, orderID int64, status models.Status) (*models.Order, error)
	FindByID(ctx context.Context, orderID int64) (*models.Order, error)
	FindByCustomer(ctx context.Context, customerID int64) ([]models.Order, error)
	FindByShop(ctx context.Context, shopID int64) ([]models.Order, error)
	ShopStats(ctx context.Context, shopID int64) (*models.ShopStats, error)
	PushToken(ctx context.Context, customerID int64) (string, error)
	SavePushToken(ctx context.Context, customerID int64, token string) error
}

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Create inserts the order and its lines in one transaction. On success the
// generated ids are written back into order and order.Items.
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if len(order.Items) == 0 {
			return nil
		}
		for i := range order.Items {
			order.Items[i].OrderID = order.OrderID
		}
		if err := tx.Create(&order.Items).Error; err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
		return nil
	})
}

func (r *GormOrderRepository) UpdateStatus(ctx context.Context, orderID int64, status models.Status) (*models.Order, error) {
	var order models.Order
	res := r.db.WithContext(ctx).
		Raw(`UPDATE orders SET status = ? WHERE order_id = ? RETURNING *`, status, orderID).
		Scan(&order)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrOrderNotFound
	}
	// lines are not part of the statement
	order.Items = []models.OrderLine{}
	return &order, nil
}

// selectOrders reads orders together with their lines in a single statement.
// Orders without lines carry an empty array.
const selectOrders = `SELECT o.order_id, o.customer_id, o.shop_id, o.delivery_address_id, o.total_amount,
       o.customer_name, o.customer_phone, o.delivery_address, o.status, o.created_at,
       COALESCE(
         json_agg(json_build_object(
           'item_id', oi.item_id,
           'order_id', oi.order_id,
           'product_id', oi.product_id,
           'quantity', oi.quantity,
           'price', oi.price_per_item,
           'name', oi.product_name
         ) ORDER BY oi.item_id) FILTER (WHERE oi.item_id IS NOT NULL),
         '[]'
       ) AS items
FROM orders o
LEFT JOIN order_items oi ON oi.order_id = o.order_id`

func (r *GormOrderRepository) FindByID(ctx context.Context, orderID int64) (*models.Order, error) {
	orders, err := r.queryOrders(ctx, `WHERE o.order_id = ?`, orderID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrOrderNotFound
	}
	return &orders[0], nil
}

func (r *GormOrderRepository) FindByCustomer(ctx context.Context, customerID int64) ([]models.Order, error) {
	return r.queryOrders(ctx, `WHERE o.customer_id = ?`, customerID)
}

func (r *GormOrderRepository) FindByShop(ctx context.Context, shopID int64) ([]models.Order, error) {
	return r.queryOrders(ctx, `WHERE o.shop_id = ?`, shopID)
}

func (r *GormOrderRepository) queryOrders(ctx context.Context, where string, arg int64) ([]models.Order, error) {
	var rows []orderRow
	query := selectOrders + "\n" + where + "\nGROUP BY o.order_id\nORDER BY o.created_at DESC"
	if err := r.db.WithContext(ctx).Raw(query, arg).Scan(&rows).Error; err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, row.toOrder())
	}
	return orders, nil
}

func (r *GormOrderRepository) ShopStats(ctx context.Context, shopID int64) (*models.ShopStats, error) {
	var stats models.ShopStats
	err := r.db.WithContext(ctx).Raw(`SELECT
  COUNT(*) AS total_orders,
  COALESCE(SUM(total_amount) FILTER (WHERE status = ?), 0) AS revenue,
  COUNT(*) FILTER (WHERE status = ?) AS pending_orders,
  COUNT(*) FILTER (WHERE status IN ?) AS active_orders
FROM orders
WHERE shop_id = ?`,
		models.StatusDelivered,
		models.StatusPending,
		[]models.Status{models.StatusAccepted, models.StatusPreparing, models.StatusReady},
		shopID,
	).Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// PushToken returns the customer's registered push token, or "" when the
// customer is unknown or has none.
func (r *GormOrderRepository) PushToken(ctx context.Context, customerID int64) (string, error) {
	var row pushTokenRow
	err := r.db.WithContext(ctx).
		Raw(`SELECT fcm_token FROM customers WHERE customer_id = ?`, customerID).
		Scan(&row).Error
	if err != nil {
		return "", err
	}
	if row.FcmToken == nil {
		return "", nil
	}
	return *row.FcmToken, nil
}

// SavePushToken overwrites the customer's token; an empty token clears it.
func (r *GormOrderRepository) SavePushToken(ctx context.Context, customerID int64, token string) error {
	var value interface{}
	if token != "" {
		value = token
	}
	res := r.db.WithContext(ctx).
		Exec(`UPDATE customers SET fcm_token = ? WHERE customer_id = ?`, value, customerID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

type pushTokenRow struct {
	FcmToken *string
}

type orderRow struct {
	OrderID           int64
	CustomerID        int64
	ShopID            int64
	DeliveryAddressID *int64
	TotalAmount       decimal.Decimal
	CustomerName      string
	CustomerPhone     string
	DeliveryAddress   string
	Status            models.Status
	CreatedAt         time.Time
	Items             lineItems
}

func (row orderRow) toOrder() models.Order {
	items := []models.OrderLine(row.Items)
	if items == nil {
		items = []models.OrderLine{}
	}
	return models.Order{
		OrderID:           row.OrderID,
		CustomerID:        row.CustomerID,
		ShopID:            row.ShopID,
		DeliveryAddressID: row.DeliveryAddressID,
		TotalAmount:       row.TotalAmount,
		CustomerName:      row.CustomerName,
		CustomerPhone:     row.CustomerPhone,
		DeliveryAddress:   row.DeliveryAddress,
		Status:            row.Status,
		CreatedAt:         row.CreatedAt,
		Items:             items,
	}
}

// lineItems decodes the json_agg column.
type lineItems []models.OrderLine

func (l *lineItems) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = lineItems{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported items column type %T", src)
	}
	var out []models.OrderLine
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode items: %w", err)
	}
	*l = out
	return nil
}

func (l lineItems) Value() (driver.Value, error) {
	return json.Marshal([]models.OrderLine(l))
}

func (lineItems) GormDataType() string { return "json" }
