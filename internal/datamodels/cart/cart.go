package cart

import (
	"context"
	"time"
)

// MaxQuantity 单行最大购买数量
const MaxQuantity = 999

// Item 购物车条目。单价在锁价窗口内保持不变
type Item struct {
	ProductID       int64     `json:"product_id"`
	Name            string    `json:"name"`
	Quantity        int64     `json:"quantity"`
	UnitPriceCents  int64     `json:"unit_price_cents"`
	TotalCents      int64     `json:"total_cents"`
	PriceLockExpiry time.Time `json:"price_lock_expiry"`
}

// Cart 每个用户唯一的一份可变购物车
type Cart struct {
	ID            int64     `gorm:"primaryKey"`
	UserID        int64     `gorm:"uniqueIndex;not null"`
	Currency      string    `gorm:"size:8;not null;default:CNY"`
	Items         []Item    `gorm:"serializer:json"`
	SubtotalCents int64     `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Recompute 同步重算行小计与整车小计，任何修改后都必须调用
func (c *Cart) Recompute() {
	var subtotal int64
	for i := range c.Items {
		c.Items[i].TotalCents = c.Items[i].Quantity * c.Items[i].UnitPriceCents
		subtotal += c.Items[i].TotalCents
	}
	c.SubtotalCents = subtotal
}

// FindItem 返回指定商品行的下标，不存在返回 -1
func (c *Cart) FindItem(productID int64) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Empty 是否为空车
func (c *Cart) Empty() bool {
	return c == nil || len(c.Items) == 0
}

// Repository 购物车仓储接口
type Repository interface {
	// GetByUser 不存在时返回 (nil, nil)
	GetByUser(ctx context.Context, userID int64) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	// ClearByUser 清空（不删除）用户购物车
	ClearByUser(ctx context.Context, userID int64) error
}
