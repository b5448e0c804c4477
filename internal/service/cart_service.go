package service

import (
	"context"
	"time"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/config"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/cart"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/product"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/errs"
)

// CartService 购物车服务：加购、改量、删除、过期清空。
// 所有金额在每次修改后同步重算，绝不落库陈旧小计
type CartService struct {
	carts    cart.Repository
	products product.Repository
	cfg      *config.CartConfig
	now      func() time.Time
}

// NewCartService 创建购物车服务
func NewCartService(carts cart.Repository, products product.Repository, cfg *config.CartConfig) *CartService {
	return &CartService{carts: carts, products: products, cfg: cfg, now: time.Now}
}

func (s *CartService) priceLockWindow() time.Duration {
	return time.Duration(s.cfg.PriceLockHours) * time.Hour
}

func (s *CartService) expiryWindow() time.Duration {
	return time.Duration(s.cfg.ExpiryHours) * time.Hour
}

// load 读取购物车并应用过期规则：超过整车过期窗口则原子清空
func (s *CartService) load(ctx context.Context, userID int64) (*cart.Cart, error) {
	c, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}
	if len(c.Items) > 0 && s.now().Sub(c.UpdatedAt) > s.expiryWindow() {
		c.Items = nil
		c.SubtotalCents = 0
		c.UpdatedAt = s.now()
		if err := s.carts.Save(ctx, c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Get 查询购物车，用户尚无购物车时返回空车
func (s *CartService) Get(ctx context.Context, userID int64) (*cart.Cart, error) {
	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return &cart.Cart{UserID: userID}, nil
	}
	return c, nil
}

// AddItem 加入商品。已有同商品且锁价未过期时保留锁定单价并累加数量，
// 锁价过期则按当前目录价重新锁定
func (s *CartService) AddItem(ctx context.Context, userID, productID, qty int64) (*cart.Cart, error) {
	if qty < 1 || qty > cart.MaxQuantity {
		return nil, errs.Newf(errs.KindValidation, errs.CodeQuantityInvalid, "数量必须在 1~%d 之间", cart.MaxQuantity)
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, errs.Newf(errs.KindNotFound, errs.CodeProductNotFound, "商品 %d 不存在", productID)
	}
	if !p.Sellable() {
		return nil, errs.ProductNotAvailable(productID)
	}

	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		// 首次加购时惰性创建
		c = &cart.Cart{UserID: userID, Currency: p.Currency}
	}

	now := s.now()
	if i := c.FindItem(productID); i >= 0 {
		item := &c.Items[i]
		newQty := item.Quantity + qty
		if newQty > cart.MaxQuantity {
			return nil, errs.Newf(errs.KindValidation, errs.CodeQuantityInvalid, "数量必须在 1~%d 之间", cart.MaxQuantity)
		}
		item.Quantity = newQty
		if now.After(item.PriceLockExpiry) {
			item.UnitPriceCents = p.PriceCents
			item.PriceLockExpiry = now.Add(s.priceLockWindow())
		}
	} else {
		c.Items = append(c.Items, cart.Item{
			ProductID:       productID,
			Name:            p.Name,
			Quantity:        qty,
			UnitPriceCents:  p.PriceCents,
			PriceLockExpiry: now.Add(s.priceLockWindow()),
		})
	}
	c.Recompute()
	c.UpdatedAt = now
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateItemQuantity 修改数量，qty 为 0 等价于删除该行
func (s *CartService) UpdateItemQuantity(ctx context.Context, userID, productID, qty int64) (*cart.Cart, error) {
	if qty < 0 || qty > cart.MaxQuantity {
		return nil, errs.Newf(errs.KindValidation, errs.CodeQuantityInvalid, "数量必须在 0~%d 之间", cart.MaxQuantity)
	}
	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c == nil || c.FindItem(productID) < 0 {
		return nil, errs.New(errs.KindNotFound, errs.CodeCartItemNotFound, "购物车中没有该商品")
	}
	if qty == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	now := s.now()
	i := c.FindItem(productID)
	item := &c.Items[i]
	item.Quantity = qty
	if now.After(item.PriceLockExpiry) {
		p, err := s.products.GetByID(ctx, productID)
		if err != nil {
			return nil, errs.Newf(errs.KindNotFound, errs.CodeProductNotFound, "商品 %d 不存在", productID)
		}
		item.UnitPriceCents = p.PriceCents
		item.PriceLockExpiry = now.Add(s.priceLockWindow())
	}
	c.Recompute()
	c.UpdatedAt = now
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// RemoveItem 删除商品行
func (s *CartService) RemoveItem(ctx context.Context, userID, productID int64) (*cart.Cart, error) {
	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := -1
	if c != nil {
		i = c.FindItem(productID)
	}
	if i < 0 {
		return nil, errs.New(errs.KindNotFound, errs.CodeCartItemNotFound, "购物车中没有该商品")
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.Recompute()
	c.UpdatedAt = s.now()
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Clear 清空购物车（下单成功后调用）
func (s *CartService) Clear(ctx context.Context, userID int64) error {
	return s.carts.ClearByUser(ctx, userID)
}
