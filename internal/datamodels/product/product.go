package product

import (
	"context"
	"time"
)

// 商品状态
const (
	StatusDraft    = "draft"
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Product 商品模型。库存只能由库存台账的 reserve/return 修改
type Product struct {
	ID          int64     `gorm:"primaryKey"`
	SKU         string    `gorm:"uniqueIndex;size:64;not null"`
	Name        string    `gorm:"size:128;not null"`
	Description string    `gorm:"size:512"`
	PriceCents  int64     `gorm:"not null"` // 分
	Currency    string    `gorm:"size:8;not null;default:CNY"`
	Stock       int64     `gorm:"not null"`
	WeightKg    float64   `gorm:"not null;default:0"`
	Status      string    `gorm:"size:16;index;not null;default:draft"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Sellable 是否可加入购物车 / 下单
func (p *Product) Sellable() bool {
	return p.Status == StatusActive
}

// StockMovement 库存流水，只追加不修改
type StockMovement struct {
	ID        int64     `gorm:"primaryKey"`
	ProductID int64     `gorm:"index;not null"`
	Delta     int64     `gorm:"not null"` // 负数为预占，正数为回补
	Reason    string    `gorm:"size:16;not null"` // reserve / return
	Ref       string    `gorm:"size:32;index"`    // 关联订单号
	CreatedAt time.Time
}

// Repository 商品仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	ListActive(ctx context.Context) ([]*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error
}

// StockStore 单行库存原子操作，供不支持多行事务的台账降级路径使用
type StockStore interface {
	// ReserveLine 条件扣减：商品必须 active 且库存充足，否则返回
	// PRODUCT_NOT_AVAILABLE / OUT_OF_STOCK，且不产生任何写入
	ReserveLine(ctx context.Context, productID, qty int64, ref string) error
	// ReturnLine 无条件回补库存
	ReturnLine(ctx context.Context, productID, qty int64, ref string) error
}
