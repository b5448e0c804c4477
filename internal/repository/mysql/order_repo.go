package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/order"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/errs"
)

type orderRepo struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) order.Repository {
	return &orderRepo{db: db}
}

func (r *orderRepo) Create(ctx context.Context, o *order.Order) error {
	if err := r.db.WithContext(ctx).Create(o).Error; err != nil {
		// checkout_id 唯一索引兜底幂等：并发重复下单转成冲突
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.Conflict("该结算单已生成订单")
		}
		return err
	}
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) GetByOrderNo(ctx context.Context, orderNo string) (*order.Order, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) GetByCheckoutID(ctx context.Context, checkoutID string) (*order.Order, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).Where("checkout_id = ?", checkoutID).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	var list []*order.Order
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *orderRepo) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	var list []*order.Order
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *orderRepo) ListStalePending(ctx context.Context, before time.Time) ([]*order.Order, error) {
	var list []*order.Order
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", order.StatusPending, before).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateIfStatus 条件整单保存：WHERE status = expect 的 UPDATE，
// RowsAffected 为 0 即乐观锁失败，由调用方转成 CONFLICT。
func (r *orderRepo) UpdateIfStatus(ctx context.Context, o *order.Order, expect string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&order.Order{}).
		Where("id = ? AND status = ?", o.ID, expect).
		Select("status", "payment_status", "tracking_status", "tracking_history",
			"confirmed_by", "confirmed_via", "confirmed_at", "updated_at").
		Updates(o)
	return res.RowsAffected > 0, res.Error
}

// UpdateIfTracking 物流流转专用条件 UPDATE：主状态和物流子状态同时匹配
// 才命中，并发推进只有一个赢家，历史不会被改写
func (r *orderRepo) UpdateIfTracking(ctx context.Context, o *order.Order, expectStatus, expectTracking string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&order.Order{}).
		Where("id = ? AND status = ? AND tracking_status = ?", o.ID, expectStatus, expectTracking).
		Select("status", "tracking_status", "tracking_history", "updated_at").
		Updates(o)
	return res.RowsAffected > 0, res.Error
}
