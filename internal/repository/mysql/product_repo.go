package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/product"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/errs"
)

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) product.Repository {
	return &productRepo{db: db}
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	var p product.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) ListActive(ctx context.Context) ([]*product.Product, error) {
	var list []*product.Product
	if err := r.db.WithContext(ctx).
		Where("status = ?", product.StatusActive).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *productRepo) Create(ctx context.Context, p *product.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productRepo) Update(ctx context.Context, p *product.Product) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *productRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&product.Product{}, id).Error
}

// stockStore 单行库存原子操作的 MySQL 实现，
// 扣减走条件 UPDATE，由 RowsAffected 判定是否成功。
type stockStore struct {
	db *gorm.DB
}

// NewStockStore 创建单行库存操作实现（台账降级路径使用）
func NewStockStore(db *gorm.DB) product.StockStore {
	return &stockStore{db: db}
}

func (s *stockStore) ReserveLine(ctx context.Context, productID, qty int64, ref string) error {
	res := s.db.WithContext(ctx).
		Model(&product.Product{}).
		Where("id = ? AND status = ? AND stock >= ?", productID, product.StatusActive, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// 区分不可售与库存不足，给调用方稳定的错误码
		var p product.Product
		if err := s.db.WithContext(ctx).First(&p, productID).Error; err != nil {
			return errs.Newf(errs.KindNotFound, errs.CodeProductNotFound, "商品 %d 不存在", productID)
		}
		if !p.Sellable() {
			return errs.ProductNotAvailable(productID)
		}
		return errs.OutOfStock(productID)
	}
	return s.db.WithContext(ctx).Create(&product.StockMovement{
		ProductID: productID,
		Delta:     -qty,
		Reason:    "reserve",
		Ref:       ref,
	}).Error
}

func (s *stockStore) ReturnLine(ctx context.Context, productID, qty int64, ref string) error {
	res := s.db.WithContext(ctx).
		Model(&product.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	return s.db.WithContext(ctx).Create(&product.StockMovement{
		ProductID: productID,
		Delta:     qty,
		Reason:    "return",
		Ref:       ref,
	}).Error
}
