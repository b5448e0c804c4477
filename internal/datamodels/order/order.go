package order

import (
	"context"
	"time"
)

// 订单主状态
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
)

// 支付状态
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

// 物流子状态，独立于订单主状态演进
const (
	TrackPreparing   = "PREPARING"
	TrackShippingOut = "SHIPPING_OUT"
	TrackInTransit   = "IN_TRANSIT"
	TrackArriving    = "ARRIVING"
	TrackDelivered   = "DELIVERED"
	TrackCancelled   = "CANCELLED"
)

// statusNext 订单主状态允许的流转表，COMPLETED/CANCELLED 为终态
var statusNext = map[string][]string{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// trackingNext 物流子状态流转表，CANCELLED 仅可从前三个状态进入
var trackingNext = map[string][]string{
	TrackPreparing:   {TrackShippingOut, TrackCancelled},
	TrackShippingOut: {TrackInTransit, TrackCancelled},
	TrackInTransit:   {TrackArriving, TrackCancelled},
	TrackArriving:    {TrackDelivered},
	TrackDelivered:   {},
	TrackCancelled:   {},
}

// CanTransition 订单主状态 from -> to 是否合法
func CanTransition(from, to string) bool {
	for _, s := range statusNext[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanAdvanceTracking 物流子状态 from -> to 是否合法
func CanAdvanceTracking(from, to string) bool {
	for _, s := range trackingNext[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Item 订单条目，从结算单复制
type Item struct {
	ProductID      int64  `json:"product_id"`
	Name           string `json:"name"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
}

// TrackingEvent 物流历史记录，只追加不改写
type TrackingEvent struct {
	At     time.Time `json:"at"`
	Status string    `json:"status"`
	By     string    `json:"by"`
}

// Order 订单模型。CheckoutID 的唯一索引即下单幂等键：
// 同一结算单至多生成一个订单
type Order struct {
	ID              int64           `gorm:"primaryKey"`
	OrderNo         string          `gorm:"uniqueIndex;size:32;not null"` // ORD-YYYYMMDD-xxxxxxxx
	CheckoutID      string          `gorm:"uniqueIndex;size:36;not null"`
	UserID          int64           `gorm:"index;not null"`
	Items           []Item          `gorm:"serializer:json"`
	TotalCents      int64           `gorm:"not null"`
	Currency        string          `gorm:"size:8;not null;default:CNY"`
	Status          string          `gorm:"size:16;index;not null"`
	PaymentStatus   string          `gorm:"size:16;not null"`
	TrackingStatus  string          `gorm:"size:16"`
	TrackingHistory []TrackingEvent `gorm:"serializer:json"`
	ConfirmedBy     string          `gorm:"size:32"` // 确认收货人（customer/admin）
	ConfirmedVia    string          `gorm:"size:32"` // 确认渠道（web/app/...）
	ConfirmedAt     *time.Time
	CreatedAt       time.Time `gorm:"index"`
	UpdatedAt       time.Time
}

// AppendTracking 追加一条物流历史并更新当前物流状态
func (o *Order) AppendTracking(status, by string, at time.Time) {
	o.TrackingStatus = status
	o.TrackingHistory = append(o.TrackingHistory, TrackingEvent{At: at, Status: status, By: by})
}

// Repository 订单仓储接口
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetByOrderNo(ctx context.Context, orderNo string) (*Order, error)
	// GetByCheckoutID 不存在时返回 (nil, nil)，供幂等下单探测
	GetByCheckoutID(ctx context.Context, checkoutID string) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]*Order, error)
	ListRecent(ctx context.Context, limit int) ([]*Order, error)
	// ListStalePending 查询创建时间早于 before 且仍为 PENDING 的订单
	ListStalePending(ctx context.Context, before time.Time) ([]*Order, error)
	// UpdateIfStatus 乐观锁整单保存：仅当存储中的状态仍为 expect 时写入
	// 状态/支付/物流相关字段，返回是否命中
	UpdateIfStatus(ctx context.Context, o *Order, expect string) (bool, error)
	// UpdateIfTracking 物流流转专用乐观锁：主状态与物流子状态都必须
	// 与读取时一致才写入，防止并发流转互相覆盖历史
	UpdateIfTracking(ctx context.Context, o *Order, expectStatus, expectTracking string) (bool, error)
}
