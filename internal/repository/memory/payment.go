package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/payment"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/errs"
)

// PaymentRepo 支付意向仓储内存实现
type PaymentRepo struct {
	mu      sync.Mutex
	byID    map[string]*payment.Intent
	byKey   map[string]string // "orderID:userID" -> intentID
	methods map[int64]*payment.StoredMethod
}

// NewPaymentRepo 创建内存支付意向仓储
func NewPaymentRepo() *PaymentRepo {
	return &PaymentRepo{
		byID:    make(map[string]*payment.Intent),
		byKey:   make(map[string]string),
		methods: make(map[int64]*payment.StoredMethod),
	}
}

func key(orderID, userID int64) string {
	return fmt.Sprintf("%d:%d", orderID, userID)
}

func (r *PaymentRepo) Create(ctx context.Context, it *payment.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(it.OrderID, it.UserID)
	if _, dup := r.byKey[k]; dup {
		return errs.New(errs.KindConflict, errs.CodeIntentAlreadyExists, "该订单已存在支付意向")
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now()
	}
	it.UpdatedAt = it.CreatedAt
	cp := *it
	r.byID[it.ID] = &cp
	r.byKey[k] = it.ID
	return nil
}

func (r *PaymentRepo) GetByID(ctx context.Context, id string) (*payment.Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.byID[id]
	if !ok {
		return nil, errs.New(errs.KindNotFound, errs.CodeIntentNotFound, "支付意向不存在")
	}
	cp := *it
	return &cp, nil
}

func (r *PaymentRepo) GetByOrderAndUser(ctx context.Context, orderID, userID int64) (*payment.Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[key(orderID, userID)]
	if !ok {
		return nil, nil
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *PaymentRepo) UpdateStatusIf(ctx context.Context, id, from, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.byID[id]
	if !ok || it.Status != from {
		return false, nil
	}
	it.Status = to
	it.UpdatedAt = time.Now()
	return true, nil
}

func (r *PaymentRepo) GetStoredMethod(ctx context.Context, userID, id int64) (*payment.StoredMethod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.methods[id]
	if !ok || m.UserID != userID {
		return nil, errs.New(errs.KindNotFound, errs.CodePaymentMethodNotFound, "支付方式不存在")
	}
	cp := *m
	return &cp, nil
}

// AddStoredMethod 测试辅助：注入一条已保存支付方式
func (r *PaymentRepo) AddStoredMethod(m *payment.StoredMethod) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[m.ID] = m
}
