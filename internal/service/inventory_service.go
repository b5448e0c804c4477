package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/order"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/product"
)

// Ledger 库存台账：下单确认时预占库存，取消时回补。
// Reserve 必须对所有行 all-or-nothing：任何一行失败时不留下任何扣减。
// ref 为关联的订单号，写入库存流水
type Ledger interface {
	Reserve(ctx context.Context, ref string, lines []order.Item) error
	Return(ctx context.Context, ref string, lines []order.Item) error
}

// CompensatingLedger 台账的降级实现：存储层不支持多行事务时，
// 逐行条件扣减，中途失败则对已扣减的行做补偿回补后再抛出原错误。
// 补偿路径是契约的一部分，不是优化。
type CompensatingLedger struct {
	store product.StockStore
}

// NewCompensatingLedger 创建补偿式库存台账
func NewCompensatingLedger(store product.StockStore) *CompensatingLedger {
	return &CompensatingLedger{store: store}
}

// Reserve 逐行扣减；失败即回滚已扣减的行
func (l *CompensatingLedger) Reserve(ctx context.Context, ref string, lines []order.Item) error {
	applied := make([]order.Item, 0, len(lines))
	for _, line := range lines {
		if err := l.store.ReserveLine(ctx, line.ProductID, line.Quantity, ref); err != nil {
			for _, done := range applied {
				if rbErr := l.store.ReturnLine(ctx, done.ProductID, done.Quantity, ref); rbErr != nil {
					// 补偿失败只能记日志，人工对账兜底
					zap.L().Error("stock compensation failed",
						zap.Int64("product_id", done.ProductID),
						zap.Int64("qty", done.Quantity),
						zap.String("ref", ref),
						zap.Error(rbErr))
					GetMonitor().RecordDBError()
				}
			}
			return err
		}
		applied = append(applied, line)
	}
	return nil
}

// Return 逐行无条件回补；单行失败不阻断其余行
func (l *CompensatingLedger) Return(ctx context.Context, ref string, lines []order.Item) error {
	var firstErr error
	for _, line := range lines {
		if err := l.store.ReturnLine(ctx, line.ProductID, line.Quantity, ref); err != nil {
			zap.L().Error("stock return failed",
				zap.Int64("product_id", line.ProductID),
				zap.String("ref", ref),
				zap.Error(err))
			firstErr = errors.Join(firstErr, err)
		}
	}
	return firstErr
}
