package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/config"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/address"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/cart"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/checkout"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/payment"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/product"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/user"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/errs"
)

// CheckoutService 结算服务：把可变购物车固化为不可变的结算快照。
// 此处只做库存前置校验，真正的预占发生在订单确认时
type CheckoutService struct {
	checkouts checkout.Repository
	carts     cart.Repository
	products  product.Repository
	addresses address.Repository
	shipCfg   *config.ShippingConfig
	cartCfg   *config.CartConfig
	distance  DistanceEstimator
	now       func() time.Time
}

// NewCheckoutService 创建结算服务
func NewCheckoutService(
	checkouts checkout.Repository,
	carts cart.Repository,
	products product.Repository,
	addresses address.Repository,
	shipCfg *config.ShippingConfig,
	cartCfg *config.CartConfig,
	distance DistanceEstimator,
) *CheckoutService {
	return &CheckoutService{
		checkouts: checkouts,
		carts:     carts,
		products:  products,
		addresses: addresses,
		shipCfg:   shipCfg,
		cartCfg:   cartCfg,
		distance:  distance,
		now:       time.Now,
	}
}

// CreateCheckout 生成结算单：冻结价格、地址快照并计算运费。
// 对购物车和库存无任何副作用
func (s *CheckoutService) CreateCheckout(ctx context.Context, userID, addressID int64, shippingMethod, paymentMethod string) (*checkout.Checkout, error) {
	if shippingMethod != checkout.ShippingStandard && shippingMethod != checkout.ShippingExpress {
		return nil, errs.Newf(errs.KindValidation, errs.CodeShippingMethodInvalid, "不支持的配送方式: %s", shippingMethod)
	}
	if !payment.ValidMethod(paymentMethod) {
		return nil, errs.Newf(errs.KindValidation, errs.CodePaymentMethodInvalid, "不支持的支付方式: %s", paymentMethod)
	}

	addr, err := s.addresses.GetByID(ctx, userID, addressID)
	if err != nil {
		return nil, errs.New(errs.KindNotFound, errs.CodeAddressNotFound, "地址不存在")
	}
	if !addr.Complete() {
		return nil, errs.New(errs.KindValidation, errs.CodeAddressInvalid, "地址信息不完整")
	}

	c, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	// 结算入口同样执行整车过期规则，避免把陈旧价格固化进快照
	if !c.Empty() && s.now().Sub(c.UpdatedAt) > time.Duration(s.cartCfg.ExpiryHours)*time.Hour {
		c.Items = nil
		c.SubtotalCents = 0
		c.UpdatedAt = s.now()
		if err := s.carts.Save(ctx, c); err != nil {
			return nil, err
		}
	}
	if c.Empty() {
		return nil, errs.New(errs.KindState, errs.CodeCartEmpty, "购物车为空")
	}

	// 逐行校验当前商品状态与库存（前置校验，不预占），
	// 价格一律取购物车快照，不回读目录价
	items := make([]checkout.Item, 0, len(c.Items))
	var subtotal int64
	var weight float64
	for _, line := range c.Items {
		p, err := s.products.GetByID(ctx, line.ProductID)
		if err != nil {
			return nil, errs.Newf(errs.KindNotFound, errs.CodeProductNotFound, "商品 %d 不存在", line.ProductID)
		}
		if !p.Sellable() {
			return nil, errs.ProductNotAvailable(p.ID)
		}
		if p.Stock < line.Quantity {
			return nil, errs.InsufficientStock(p.ID)
		}
		weight += p.WeightKg * float64(line.Quantity)
		items = append(items, checkout.Item{
			ProductID:      line.ProductID,
			Name:           line.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			TotalCents:     line.Quantity * line.UnitPriceCents,
		})
		subtotal += line.Quantity * line.UnitPriceCents
	}

	distanceKm := s.distance.EstimateKm(addr.City, addr.PostalCode)
	shippingCents := ComputeShipping(s.shipCfg, subtotal, weight, distanceKm, shippingMethod)

	currency := c.Currency
	if currency == "" {
		currency = "CNY"
	}
	co := &checkout.Checkout{
		ID:            uuid.NewString(),
		UserID:        userID,
		Items:         items,
		Currency:      currency,
		SubtotalCents: subtotal,
		AddressSnapshot: checkout.AddressSnapshot{
			Recipient:   addr.Recipient,
			Phone:       addr.Phone,
			City:        addr.City,
			PostalCode:  addr.PostalCode,
			AddressLine: addr.AddressLine,
		},
		ShippingMethod:  shippingMethod,
		ShippingCents:   shippingCents,
		PaymentMethod:   paymentMethod,
		GrandTotalCents: subtotal + shippingCents,
		Status:          checkout.StatusPending,
		CreatedAt:       s.now(),
	}
	if err := s.checkouts.Create(ctx, co); err != nil {
		return nil, err
	}
	return co, nil
}

// GetCheckout 查询结算单，customer 只能看自己的
func (s *CheckoutService) GetCheckout(ctx context.Context, actor Actor, id string) (*checkout.Checkout, error) {
	co, err := s.checkouts.GetByID(ctx, id)
	if err != nil {
		return nil, errs.New(errs.KindNotFound, errs.CodeCheckoutNotFound, "结算单不存在")
	}
	if actor.Role != user.RoleAdmin && co.UserID != actor.UserID {
		return nil, errs.Forbidden("无权查看该结算单")
	}
	return co, nil
}
