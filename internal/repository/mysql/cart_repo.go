package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/cart"
)

type cartRepo struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓储
func NewCartRepository(db *gorm.DB) cart.Repository {
	return &cartRepo{db: db}
}

func (r *cartRepo) GetByUser(ctx context.Context, userID int64) (*cart.Cart, error) {
	var c cart.Cart
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *cartRepo) Save(ctx context.Context, c *cart.Cart) error {
	// user_id 唯一，冲突时整行更新，实现按用户 upsert
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(c).Error
}

func (r *cartRepo) ClearByUser(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Model(&cart.Cart{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"items":          "[]",
			"subtotal_cents": 0,
		}).Error
}
