package payment

import (
	"context"
	"time"
)

// 支付方式
const (
	MethodCard           = "card"
	MethodTransfer       = "transfer"
	MethodCashOnDelivery = "cash_on_delivery"
)

// 支付意向状态
const (
	StatusRequiresConfirmation = "requires_confirmation"
	StatusPending              = "pending"
	StatusSucceeded            = "succeeded"
	StatusFailed               = "failed"
)

// ValidMethod 是否为受支持的支付方式
func ValidMethod(m string) bool {
	return m == MethodCard || m == MethodTransfer || m == MethodCashOnDelivery
}

// Intent 支付意向。(OrderID, UserID) 的唯一索引保证同一订单
// 同一用户至多一条意向，这是数据库约束而不是可绕过的业务规则
type Intent struct {
	ID           string `gorm:"primaryKey;size:36"`
	UserID       int64  `gorm:"uniqueIndex:idx_intent_order_user;not null"`
	OrderID      int64  `gorm:"uniqueIndex:idx_intent_order_user;not null"`
	AmountCents  int64  `gorm:"not null"`
	Currency     string `gorm:"size:8;not null;default:CNY"`
	Method       string `gorm:"size:24;not null"`
	Status       string `gorm:"size:24;index;not null"`
	ClientSecret string `gorm:"size:64"` // 仅卡支付
	ProviderRef  string `gorm:"size:64"` // 转账/货到付款参考号
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StoredMethod 用户保存的支付方式，创建意向时可用其覆盖请求中的 method
type StoredMethod struct {
	ID        int64  `gorm:"primaryKey"`
	UserID    int64  `gorm:"index;not null"`
	Type      string `gorm:"size:24;not null"` // credit_card / debit_card / bank_transfer / cod
	Label     string `gorm:"size:64"`
	CreatedAt time.Time
}

// ResolveMethod 保存的支付方式类型到意向 method 的映射
func (m *StoredMethod) ResolveMethod() string {
	switch m.Type {
	case "credit_card", "debit_card":
		return MethodCard
	case "bank_transfer":
		return MethodTransfer
	case "cod", "cash_on_delivery":
		return MethodCashOnDelivery
	default:
		return ""
	}
}

// Repository 支付意向仓储接口
type Repository interface {
	Create(ctx context.Context, it *Intent) error
	GetByID(ctx context.Context, id string) (*Intent, error)
	// GetByOrderAndUser 不存在时返回 (nil, nil)，供幂等创建探测
	GetByOrderAndUser(ctx context.Context, orderID, userID int64) (*Intent, error)
	// UpdateStatusIf 乐观锁状态流转，返回是否命中
	UpdateStatusIf(ctx context.Context, id, from, to string) (bool, error)
	GetStoredMethod(ctx context.Context, userID, id int64) (*StoredMethod, error)
}
