package memory

import (
	"context"
	"sync"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/checkout"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/errs"
)

// CheckoutRepo 结算单仓储内存实现
type CheckoutRepo struct {
	mu    sync.Mutex
	items map[string]*checkout.Checkout
}

// NewCheckoutRepo 创建内存结算单仓储
func NewCheckoutRepo() *CheckoutRepo {
	return &CheckoutRepo{items: make(map[string]*checkout.Checkout)}
}

func (r *CheckoutRepo) Create(ctx context.Context, c *checkout.Checkout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	cp.Items = append([]checkout.Item(nil), c.Items...)
	r.items[c.ID] = &cp
	return nil
}

func (r *CheckoutRepo) GetByID(ctx context.Context, id string) (*checkout.Checkout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return nil, errs.New(errs.KindNotFound, errs.CodeCheckoutNotFound, "结算单不存在")
	}
	cp := *c
	cp.Items = append([]checkout.Item(nil), c.Items...)
	return &cp, nil
}

func (r *CheckoutRepo) UpdateStatusIf(ctx context.Context, id, from, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}
