package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/order"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/product"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/errs"
)

// inventoryLedger 库存台账的事务实现：所有行在同一个事务内
// 行锁校验并扣减，任何一行失败则整体回滚，不留下半次预占。
type inventoryLedger struct {
	db *gorm.DB
}

// NewInventoryLedger 创建基于 MySQL 事务的库存台账
func NewInventoryLedger(db *gorm.DB) *inventoryLedger {
	return &inventoryLedger{db: db}
}

// Reserve 预占库存：先整体校验（active 且库存充足），全部通过才提交扣减
func (l *inventoryLedger) Reserve(ctx context.Context, ref string, lines []order.Item) error {
	if len(lines) == 0 {
		return nil
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, line := range lines {
			var p product.Product
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&p, line.ProductID).Error; err != nil {
				return errs.Newf(errs.KindNotFound, errs.CodeProductNotFound, "商品 %d 不存在", line.ProductID)
			}
			if !p.Sellable() {
				return errs.ProductNotAvailable(p.ID)
			}
			if p.Stock < line.Quantity {
				return errs.OutOfStock(p.ID)
			}
			p.Stock -= line.Quantity
			if err := tx.Save(&p).Error; err != nil {
				return err
			}
			if err := tx.Create(&product.StockMovement{
				ProductID: p.ID,
				Delta:     -line.Quantity,
				Reason:    "reserve",
				Ref:       ref,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Return 回补库存：取消订单时无条件增加，不校验上限
func (l *inventoryLedger) Return(ctx context.Context, ref string, lines []order.Item) error {
	if len(lines) == 0 {
		return nil
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, line := range lines {
			res := tx.Model(&product.Product{}).
				Where("id = ?", line.ProductID).
				UpdateColumn("stock", gorm.Expr("stock + ?", line.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if err := tx.Create(&product.StockMovement{
				ProductID: line.ProductID,
				Delta:     line.Quantity,
				Reason:    "return",
				Ref:       ref,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
