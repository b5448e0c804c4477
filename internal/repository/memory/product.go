// Package memory 提供各仓储接口的内存实现，
// 供单元测试与本地联调使用，语义与 MySQL 实现保持一致。
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/product"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/errs"
)

// ProductRepo 商品仓储内存实现，同时实现 product.StockStore
type ProductRepo struct {
	mu        sync.Mutex
	seq       int64
	items     map[int64]*product.Product
	Movements []product.StockMovement
}

// NewProductRepo 创建内存商品仓储
func NewProductRepo() *ProductRepo {
	return &ProductRepo{items: make(map[int64]*product.Product)}
}

func (r *ProductRepo) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, errs.Newf(errs.KindNotFound, errs.CodeProductNotFound, "商品 %d 不存在", id)
	}
	cp := *p
	return &cp, nil
}

func (r *ProductRepo) ListActive(ctx context.Context) ([]*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []*product.Product
	for _, p := range r.items {
		if p.Status == product.StatusActive {
			cp := *p
			list = append(list, &cp)
		}
	}
	return list, nil
}

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		r.seq++
		p.ID = r.seq
	} else if p.ID > r.seq {
		r.seq = p.ID
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	r.items[p.ID] = &cp
	return nil
}

func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[p.ID]; !ok {
		return errs.Newf(errs.KindNotFound, errs.CodeProductNotFound, "商品 %d 不存在", p.ID)
	}
	p.UpdatedAt = time.Now()
	cp := *p
	r.items[p.ID] = &cp
	return nil
}

func (r *ProductRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

// ReserveLine 条件扣减，持锁保证原子性
func (r *ProductRepo) ReserveLine(ctx context.Context, productID, qty int64, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[productID]
	if !ok {
		return errs.Newf(errs.KindNotFound, errs.CodeProductNotFound, "商品 %d 不存在", productID)
	}
	if p.Status != product.StatusActive {
		return errs.ProductNotAvailable(productID)
	}
	if p.Stock < qty {
		return errs.OutOfStock(productID)
	}
	p.Stock -= qty
	r.Movements = append(r.Movements, product.StockMovement{
		ProductID: productID, Delta: -qty, Reason: "reserve", Ref: ref, CreatedAt: time.Now(),
	})
	return nil
}

// ReturnLine 无条件回补
func (r *ProductRepo) ReturnLine(ctx context.Context, productID, qty int64, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[productID]
	if !ok {
		return errs.Newf(errs.KindNotFound, errs.CodeProductNotFound, "商品 %d 不存在", productID)
	}
	p.Stock += qty
	r.Movements = append(r.Movements, product.StockMovement{
		ProductID: productID, Delta: qty, Reason: "return", Ref: ref, CreatedAt: time.Now(),
	})
	return nil
}

// Stock 读取当前库存，便于测试断言
func (r *ProductRepo) Stock(id int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.items[id]; ok {
		return p.Stock
	}
	return 0
}
