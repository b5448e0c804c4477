package address

import (
	"context"
	"time"
)

// Address 收货地址
type Address struct {
	ID          int64  `gorm:"primaryKey"`
	UserID      int64  `gorm:"index;not null"`
	Recipient   string `gorm:"size:64"`
	Phone       string `gorm:"size:32"`
	City        string `gorm:"size:64;not null"`
	PostalCode  string `gorm:"size:16;not null"`
	AddressLine string `gorm:"size:256;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Complete 结算所需字段是否齐全
func (a *Address) Complete() bool {
	return a.City != "" && a.PostalCode != "" && a.AddressLine != ""
}

// Repository 地址簿仓储接口
type Repository interface {
	// GetByID 校验归属：只返回属于 userID 的地址
	GetByID(ctx context.Context, userID, id int64) (*Address, error)
	ListByUser(ctx context.Context, userID int64) ([]*Address, error)
	Create(ctx context.Context, a *Address) error
}
