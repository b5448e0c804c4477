package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/order"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/errs"
)

// OrderRepo 订单仓储内存实现。UpdateIfStatus 在锁内比对状态，
// 与 MySQL 的条件 UPDATE 行为一致。
type OrderRepo struct {
	mu    sync.Mutex
	seq   int64
	byID  map[int64]*order.Order
	byCkt map[string]int64
	byNo  map[string]int64
}

// NewOrderRepo 创建内存订单仓储
func NewOrderRepo() *OrderRepo {
	return &OrderRepo{
		byID:  make(map[int64]*order.Order),
		byCkt: make(map[string]int64),
		byNo:  make(map[string]int64),
	}
}

func clone(o *order.Order) *order.Order {
	cp := *o
	cp.Items = append([]order.Item(nil), o.Items...)
	cp.TrackingHistory = append([]order.TrackingEvent(nil), o.TrackingHistory...)
	return &cp
}

func (r *OrderRepo) Create(ctx context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byCkt[o.CheckoutID]; dup {
		return errs.Conflict("该结算单已生成订单")
	}
	r.seq++
	o.ID = r.seq
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	o.UpdatedAt = o.CreatedAt
	r.byID[o.ID] = clone(o)
	r.byCkt[o.CheckoutID] = o.ID
	r.byNo[o.OrderNo] = o.ID
	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.byID[id]
	if !ok {
		return nil, errs.New(errs.KindNotFound, errs.CodeOrderNotFound, "订单不存在")
	}
	return clone(o), nil
}

func (r *OrderRepo) GetByOrderNo(ctx context.Context, orderNo string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byNo[orderNo]
	if !ok {
		return nil, errs.New(errs.KindNotFound, errs.CodeOrderNotFound, "订单不存在")
	}
	return clone(r.byID[id]), nil
}

func (r *OrderRepo) GetByCheckoutID(ctx context.Context, checkoutID string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byCkt[checkoutID]
	if !ok {
		return nil, nil
	}
	return clone(r.byID[id]), nil
}

func (r *OrderRepo) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []*order.Order
	for _, o := range r.byID {
		if o.UserID == userID {
			list = append(list, clone(o))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (r *OrderRepo) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	var list []*order.Order
	for _, o := range r.byID {
		list = append(list, clone(o))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (r *OrderRepo) ListStalePending(ctx context.Context, before time.Time) ([]*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []*order.Order
	for _, o := range r.byID {
		if o.Status == order.StatusPending && o.CreatedAt.Before(before) {
			list = append(list, clone(o))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (r *OrderRepo) UpdateIfStatus(ctx context.Context, o *order.Order, expect string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[o.ID]
	if !ok || stored.Status != expect {
		return false, nil
	}
	stored.Status = o.Status
	stored.PaymentStatus = o.PaymentStatus
	stored.TrackingStatus = o.TrackingStatus
	stored.TrackingHistory = append([]order.TrackingEvent(nil), o.TrackingHistory...)
	stored.ConfirmedBy = o.ConfirmedBy
	stored.ConfirmedVia = o.ConfirmedVia
	stored.ConfirmedAt = o.ConfirmedAt
	stored.UpdatedAt = time.Now()
	return true, nil
}

func (r *OrderRepo) UpdateIfTracking(ctx context.Context, o *order.Order, expectStatus, expectTracking string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[o.ID]
	if !ok || stored.Status != expectStatus || stored.TrackingStatus != expectTracking {
		return false, nil
	}
	stored.Status = o.Status
	stored.TrackingStatus = o.TrackingStatus
	stored.TrackingHistory = append([]order.TrackingEvent(nil), o.TrackingHistory...)
	stored.UpdatedAt = time.Now()
	return true, nil
}
