package memory

import (
	"context"
	"sync"
	"time"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/address"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/errs"
)

// AddressRepo 地址簿仓储内存实现
type AddressRepo struct {
	mu    sync.Mutex
	seq   int64
	items map[int64]*address.Address
}

// NewAddressRepo 创建内存地址簿仓储
func NewAddressRepo() *AddressRepo {
	return &AddressRepo{items: make(map[int64]*address.Address)}
}

func (r *AddressRepo) GetByID(ctx context.Context, userID, id int64) (*address.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok || a.UserID != userID {
		return nil, errs.New(errs.KindNotFound, errs.CodeAddressNotFound, "地址不存在")
	}
	cp := *a
	return &cp, nil
}

func (r *AddressRepo) ListByUser(ctx context.Context, userID int64) ([]*address.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []*address.Address
	for _, a := range r.items {
		if a.UserID == userID {
			cp := *a
			list = append(list, &cp)
		}
	}
	return list, nil
}

func (r *AddressRepo) Create(ctx context.Context, a *address.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == 0 {
		r.seq++
		a.ID = r.seq
	} else if a.ID > r.seq {
		r.seq = a.ID
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	r.items[a.ID] = &cp
	return nil
}
