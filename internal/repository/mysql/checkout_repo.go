package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/checkout"
)

type checkoutRepo struct {
	db *gorm.DB
}

// NewCheckoutRepository 创建结算单仓储
func NewCheckoutRepository(db *gorm.DB) checkout.Repository {
	return &checkoutRepo{db: db}
}

func (r *checkoutRepo) Create(ctx context.Context, c *checkout.Checkout) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *checkoutRepo) GetByID(ctx context.Context, id string) (*checkout.Checkout, error) {
	var c checkout.Checkout
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *checkoutRepo) UpdateStatusIf(ctx context.Context, id, from, to string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&checkout.Checkout{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected > 0, res.Error
}
