package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/payment"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/errs"
)

type paymentRepo struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付意向仓储
func NewPaymentRepository(db *gorm.DB) payment.Repository {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) Create(ctx context.Context, it *payment.Intent) error {
	if err := r.db.WithContext(ctx).Create(it).Error; err != nil {
		// (order_id, user_id) 唯一索引兜底幂等
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.New(errs.KindConflict, errs.CodeIntentAlreadyExists, "该订单已存在支付意向")
		}
		return err
	}
	return nil
}

func (r *paymentRepo) GetByID(ctx context.Context, id string) (*payment.Intent, error) {
	var it payment.Intent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&it).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *paymentRepo) GetByOrderAndUser(ctx context.Context, orderID, userID int64) (*payment.Intent, error) {
	var it payment.Intent
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND user_id = ?", orderID, userID).
		First(&it).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &it, nil
}

func (r *paymentRepo) UpdateStatusIf(ctx context.Context, id, from, to string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&payment.Intent{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected > 0, res.Error
}

func (r *paymentRepo) GetStoredMethod(ctx context.Context, userID, id int64) (*payment.StoredMethod, error) {
	var m payment.StoredMethod
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
