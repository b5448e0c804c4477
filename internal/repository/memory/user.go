package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/user"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/errs"
)

// UserRepo 用户仓储内存实现
type UserRepo struct {
	mu     sync.Mutex
	seq    int64
	byID   map[int64]*user.User
	byName map[string]int64
}

// NewUserRepo 创建内存用户仓储
func NewUserRepo() *UserRepo {
	return &UserRepo{byID: make(map[int64]*user.User), byName: make(map[string]int64)}
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "USER_NOT_FOUND", "用户不存在")
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byName[username]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "USER_NOT_FOUND", "用户不存在")
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[u.Username]; dup {
		return errs.Conflict("用户名已存在")
	}
	r.seq++
	u.ID = r.seq
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	r.byID[u.ID] = &cp
	r.byName[u.Username] = u.ID
	return nil
}

func (r *UserRepo) ListAll(ctx context.Context) ([]*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []*user.User
	for _, u := range r.byID {
		cp := *u
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}
