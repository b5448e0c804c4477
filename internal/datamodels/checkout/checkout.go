package checkout

import (
	"context"
	"time"
)

// 结算单状态
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// 配送方式
const (
	ShippingStandard = "standard"
	ShippingExpress  = "express"
)

// Item 结算单条目，价格从购物车快照冻结而来
type Item struct {
	ProductID      int64  `json:"product_id"`
	Name           string `json:"name"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
}

// AddressSnapshot 下单时刻的收货地址快照
type AddressSnapshot struct {
	Recipient   string `json:"recipient"`
	Phone       string `json:"phone"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
	AddressLine string `json:"address_line"`
}

// Checkout 不可变的结算快照。创建之后所有金额字段永久冻结，
// 不会再根据商品最新价格重算
type Checkout struct {
	ID              string          `gorm:"primaryKey;size:36"`
	UserID          int64           `gorm:"index;not null"`
	Items           []Item          `gorm:"serializer:json"`
	Currency        string          `gorm:"size:8;not null;default:CNY"`
	SubtotalCents   int64           `gorm:"not null"`
	AddressSnapshot AddressSnapshot `gorm:"serializer:json"`
	ShippingMethod  string          `gorm:"size:16;not null"`
	ShippingCents   int64           `gorm:"not null"`
	PaymentMethod   string          `gorm:"size:24;not null"`
	GrandTotalCents int64           `gorm:"not null"`
	Status          string          `gorm:"size:16;index;not null;default:pending"`
	CreatedAt       time.Time
}

// Repository 结算单仓储接口
type Repository interface {
	Create(ctx context.Context, c *Checkout) error
	GetByID(ctx context.Context, id string) (*Checkout, error)
	// UpdateStatusIf 乐观锁状态流转：仅当当前状态等于 from 时生效，
	// 返回是否更新到行
	UpdateStatusIf(ctx context.Context, id, from, to string) (bool, error)
}
