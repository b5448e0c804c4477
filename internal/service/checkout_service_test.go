package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/config"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/address"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/checkout"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/product"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/user"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/errs"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/repository/memory"
)

type checkoutFixture struct {
	cfg       *config.Config
	products  *memory.ProductRepo
	carts     *memory.CartRepo
	addresses *memory.AddressRepo
	checkouts *memory.CheckoutRepo
	cartSvc   *CartService
	svc       *CheckoutService
	now       time.Time
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	f := &checkoutFixture{
		cfg:       config.DefaultConfig(),
		products:  memory.NewProductRepo(),
		carts:     memory.NewCartRepo(),
		addresses: memory.NewAddressRepo(),
		checkouts: memory.NewCheckoutRepo(),
		now:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.cartSvc = NewCartService(f.carts, f.products, &f.cfg.Cart)
	f.cartSvc.now = clock
	f.svc = NewCheckoutService(f.checkouts, f.carts, f.products, f.addresses,
		&f.cfg.Shipping, &f.cfg.Cart, NewPostalProximityEstimator(&f.cfg.Warehouse))
	f.svc.now = clock
	return f
}

func (f *checkoutFixture) seedAddress(t *testing.T, userID int64) int64 {
	t.Helper()
	a := &address.Address{UserID: userID, Recipient: "李四", City: "Beijing", PostalCode: "100000", AddressLine: "朝阳区2号"}
	require.NoError(t, f.addresses.Create(context.Background(), a))
	return a.ID
}

func (f *checkoutFixture) seedCartLine(t *testing.T, userID, price, stock, qty int64) int64 {
	t.Helper()
	p := &product.Product{Name: "测试商品", PriceCents: price, Currency: "CNY", Stock: stock, WeightKg: 1, Status: product.StatusActive}
	require.NoError(t, f.products.Create(context.Background(), p))
	_, err := f.cartSvc.AddItem(context.Background(), userID, p.ID, qty)
	require.NoError(t, err)
	return p.ID
}

func TestCreateCheckoutSnapshotsCart(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	addrID := f.seedAddress(t, 7)
	pid := f.seedCartLine(t, 7, 1500, 10, 2)

	co, err := f.svc.CreateCheckout(ctx, 7, addrID, checkout.ShippingStandard, "card")
	require.NoError(t, err)
	assert.Equal(t, checkout.StatusPending, co.Status)
	assert.EqualValues(t, 3000, co.SubtotalCents)
	// base 3000 + 500*2kg + 20*50km = 5000（异地）
	assert.EqualValues(t, 5000, co.ShippingCents)
	assert.EqualValues(t, 8000, co.GrandTotalCents)
	assert.Equal(t, "CNY", co.Currency)
	assert.Equal(t, "Beijing", co.AddressSnapshot.City)
	assert.NotEmpty(t, co.ID)

	// 结算价取购物车锁定价，不回读目录价
	p, _ := f.products.GetByID(ctx, pid)
	p.PriceCents = 9999
	require.NoError(t, f.products.Update(ctx, p))
	co2, err := f.svc.CreateCheckout(ctx, 7, addrID, checkout.ShippingStandard, "card")
	require.NoError(t, err)
	assert.EqualValues(t, 3000, co2.SubtotalCents)
	// 两次结算互不影响
	assert.NotEqual(t, co.ID, co2.ID)
}

func TestCreateCheckoutValidation(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	addrID := f.seedAddress(t, 7)

	_, err := f.svc.CreateCheckout(ctx, 7, addrID, "drone", "card")
	assert.Equal(t, errs.CodeShippingMethodInvalid, errs.CodeOf(err))

	_, err = f.svc.CreateCheckout(ctx, 7, addrID, checkout.ShippingStandard, "bitcoin")
	assert.Equal(t, errs.CodePaymentMethodInvalid, errs.CodeOf(err))

	// 空购物车
	_, err = f.svc.CreateCheckout(ctx, 7, addrID, checkout.ShippingStandard, "card")
	assert.Equal(t, errs.CodeCartEmpty, errs.CodeOf(err))

	f.seedCartLine(t, 7, 1500, 10, 1)

	// 别人的地址等同不存在
	otherAddr := f.seedAddress(t, 8)
	_, err = f.svc.CreateCheckout(ctx, 7, otherAddr, checkout.ShippingStandard, "card")
	assert.Equal(t, errs.CodeAddressNotFound, errs.CodeOf(err))

	// 地址缺少必填字段
	bad := &address.Address{UserID: 7, City: "Beijing"}
	require.NoError(t, f.addresses.Create(ctx, bad))
	_, err = f.svc.CreateCheckout(ctx, 7, bad.ID, checkout.ShippingStandard, "card")
	assert.Equal(t, errs.CodeAddressInvalid, errs.CodeOf(err))
}

func TestCreateCheckoutStockPrecheck(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	addrID := f.seedAddress(t, 7)
	pid := f.seedCartLine(t, 7, 1500, 5, 3)

	// 加购后库存被别人买走
	p, _ := f.products.GetByID(ctx, pid)
	p.Stock = 2
	require.NoError(t, f.products.Update(ctx, p))

	_, err := f.svc.CreateCheckout(ctx, 7, addrID, checkout.ShippingStandard, "card")
	assert.Equal(t, errs.CodeInsufficientStock, errs.CodeOf(err))

	// 前置校验不预占：库存原样
	assert.EqualValues(t, 2, f.products.Stock(pid))

	// 商品下架后也拒绝结算
	p.Stock = 10
	p.Status = product.StatusArchived
	require.NoError(t, f.products.Update(ctx, p))
	_, err = f.svc.CreateCheckout(ctx, 7, addrID, checkout.ShippingStandard, "card")
	assert.Equal(t, errs.CodeProductNotAvailable, errs.CodeOf(err))
}

func TestCreateCheckoutRejectsExpiredCart(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	addrID := f.seedAddress(t, 7)
	f.seedCartLine(t, 7, 1500, 10, 2)

	// 超过整车过期窗口后直接结算：不固化陈旧快照，按空车拒绝
	f.now = f.now.Add(30 * time.Hour)
	_, err := f.svc.CreateCheckout(ctx, 7, addrID, checkout.ShippingStandard, "card")
	assert.Equal(t, errs.CodeCartEmpty, errs.CodeOf(err))

	// 过期清空已经落库
	c, err := f.carts.GetByUser(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Empty(t, c.Items)
	assert.EqualValues(t, 0, c.SubtotalCents)
}

func TestCreateCheckoutFreeShipping(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	addrID := f.seedAddress(t, 7)
	f.seedCartLine(t, 7, 30000, 10, 2) // 小计 60000，达到免邮门槛

	co, err := f.svc.CreateCheckout(ctx, 7, addrID, checkout.ShippingExpress, "transfer")
	require.NoError(t, err)
	assert.EqualValues(t, 0, co.ShippingCents)
	assert.EqualValues(t, 60000, co.GrandTotalCents)
}

func TestGetCheckoutVisibility(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	addrID := f.seedAddress(t, 7)
	f.seedCartLine(t, 7, 1500, 10, 1)

	co, err := f.svc.CreateCheckout(ctx, 7, addrID, checkout.ShippingStandard, "card")
	require.NoError(t, err)

	_, err = f.svc.GetCheckout(ctx, Actor{UserID: 8, Role: user.RoleCustomer}, co.ID)
	assert.Equal(t, errs.CodeForbidden, errs.CodeOf(err))

	got, err := f.svc.GetCheckout(ctx, Actor{UserID: 1, Role: user.RoleAdmin}, co.ID)
	require.NoError(t, err)
	assert.Equal(t, co.ID, got.ID)

	_, err = f.svc.GetCheckout(ctx, Actor{UserID: 7, Role: user.RoleCustomer}, "missing")
	assert.Equal(t, errs.CodeCheckoutNotFound, errs.CodeOf(err))
}
