package memory

import (
	"context"
	"sync"
	"time"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/cart"
)

// CartRepo 购物车仓储内存实现
type CartRepo struct {
	mu    sync.Mutex
	seq   int64
	byUID map[int64]*cart.Cart
}

// NewCartRepo 创建内存购物车仓储
func NewCartRepo() *CartRepo {
	return &CartRepo{byUID: make(map[int64]*cart.Cart)}
}

func (r *CartRepo) GetByUser(ctx context.Context, userID int64) (*cart.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byUID[userID]
	if !ok {
		return nil, nil
	}
	cp := *c
	cp.Items = append([]cart.Item(nil), c.Items...)
	return &cp, nil
}

func (r *CartRepo) Save(ctx context.Context, c *cart.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byUID[c.UserID]; ok {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	} else {
		r.seq++
		c.ID = r.seq
		c.CreatedAt = time.Now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	cp := *c
	cp.Items = append([]cart.Item(nil), c.Items...)
	r.byUID[c.UserID] = &cp
	return nil
}

func (r *CartRepo) ClearByUser(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byUID[userID]; ok {
		c.Items = nil
		c.SubtotalCents = 0
		c.UpdatedAt = time.Now()
	}
	return nil
}
