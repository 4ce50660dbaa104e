package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// money renders as a JSON number, as the mobile apps expect
	decimal.MarshalJSONWithoutQuotes = true
}

// Status is an open set; the constants are the values the apps know about.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

type Order struct {
	OrderID           int64           `gorm:"column:order_id;primaryKey;autoIncrement" json:"order_id"`
	CustomerID        int64           `gorm:"not null;index" json:"customer_id"`
	ShopID            int64           `gorm:"not null;index" json:"shop_id"`
	DeliveryAddressID *int64          `json:"delivery_address_id"`
	TotalAmount       decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total_amount"`
	CustomerName      string          `json:"customer_name"`
	CustomerPhone     string          `json:"customer_phone"`
	DeliveryAddress   string          `json:"delivery_address"`
	Status            Status          `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	Items             []OrderLine     `gorm:"foreignKey:OrderID;references:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

func (Order) TableName() string { return "orders" }

type OrderLine struct {
	ItemID       int64           `gorm:"column:item_id;primaryKey;autoIncrement" json:"item_id"`
	OrderID      int64           `gorm:"not null;index" json:"order_id"`
	ProductID    int64           `gorm:"not null" json:"product_id"`
	Quantity     int             `gorm:"not null" json:"quantity"`
	PricePerItem decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	ProductName  string          `json:"name"`
}

func (OrderLine) TableName() string { return "order_items" }

// Customer is the slice of the customers table this service touches.
type Customer struct {
	CustomerID int64   `gorm:"column:customer_id;primaryKey"`
	FcmToken   *string `gorm:"column:fcm_token"`
}

func (Customer) TableName() string { return "customers" }

type CreateOrderItem struct {
	ProductID    int64           `json:"product_id" binding:"required"`
	Quantity     int             `json:"quantity" binding:"required,min=1"`
	PricePerItem decimal.Decimal `json:"price"`
	ProductName  string          `json:"name"`
}

type CreateOrderRequest struct {
	CustomerID        int64             `json:"customer_id" binding:"required"`
	ShopID            int64             `json:"shop_id" binding:"required"`
	DeliveryAddressID *int64            `json:"delivery_address_id"`
	TotalAmount       decimal.Decimal   `json:"total_amount"`
	CustomerName      string            `json:"customer_name"`
	CustomerPhone     string            `json:"customer_phone"`
	DeliveryAddress   string            `json:"delivery_address"`
	Items             []CreateOrderItem `json:"items" binding:"required,min=1,dive"`
}

type UpdateStatusRequest struct {
	Status Status `json:"status" binding:"required"`
}

type PushTokenRequest struct {
	FcmToken string `json:"fcm_token"`
}

// ShopStats is the analytics summary for one shop. Revenue only counts
// delivered orders; active means accepted, preparing or ready.
type ShopStats struct {
	TotalOrders   int64           `json:"totalOrders"`
	Revenue       decimal.Decimal `json:"revenue"`
	PendingOrders int64           `json:"pendingOrders"`
	ActiveOrders  int64           `json:"activeOrders"`
}
