package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/config"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/address"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/checkout"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/order"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/product"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/user"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/errs"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/repository/memory"
)

type orderFixture struct {
	products  *memory.ProductRepo
	orders    *memory.OrderRepo
	checkouts *memory.CheckoutRepo
	carts     *memory.CartRepo
	svc       *OrderService
	now       time.Time
	seq       int
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	f := &orderFixture{
		products:  memory.NewProductRepo(),
		orders:    memory.NewOrderRepo(),
		checkouts: memory.NewCheckoutRepo(),
		carts:     memory.NewCartRepo(),
		now:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewOrderService(f.orders, f.checkouts, f.carts, NewCompensatingLedger(f.products), nil, nil)
	f.svc.now = func() time.Time { return f.now }
	return f
}

// seedCheckout 造一张待确认结算单及其商品
func (f *orderFixture) seedCheckout(t *testing.T, userID, qty, stock int64) (string, int64) {
	t.Helper()
	p := &product.Product{Name: "测试商品", PriceCents: 1500, Currency: "CNY", Stock: stock, WeightKg: 1, Status: product.StatusActive}
	require.NoError(t, f.products.Create(context.Background(), p))

	f.seq++
	co := &checkout.Checkout{
		ID:     fmt.Sprintf("ckt-%d", f.seq),
		UserID: userID,
		Items: []checkout.Item{{
			ProductID:      p.ID,
			Name:           p.Name,
			Quantity:       qty,
			UnitPriceCents: 1500,
			TotalCents:     1500 * qty,
		}},
		Currency:        "CNY",
		SubtotalCents:   1500 * qty,
		ShippingCents:   4000,
		GrandTotalCents: 1500*qty + 4000,
		Status:          checkout.StatusPending,
		CreatedAt:       f.now,
	}
	require.NoError(t, f.checkouts.Create(context.Background(), co))
	return co.ID, p.ID
}

func TestConfirmOrderIdempotent(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	cktID, pid := f.seedCheckout(t, 7, 2, 10)

	o1, err := f.svc.ConfirmOrder(ctx, 7, cktID, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o1.Status)
	assert.Equal(t, order.PaymentPending, o1.PaymentStatus)
	assert.EqualValues(t, 7000, o1.TotalCents)
	// 币种来自结算快照，不在下单处写死
	assert.Equal(t, "CNY", o1.Currency)
	assert.EqualValues(t, 8, f.products.Stock(pid))

	// 重复确认：同一订单，库存不再扣减
	o2, err := f.svc.ConfirmOrder(ctx, 7, cktID, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, o1.OrderNo, o2.OrderNo)
	assert.EqualValues(t, 8, f.products.Stock(pid))

	// 结算单已翻转为 confirmed
	co, err := f.checkouts.GetByID(ctx, cktID)
	require.NoError(t, err)
	assert.Equal(t, checkout.StatusConfirmed, co.Status)
}

func TestConfirmOrderPropagatesCurrency(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	p := &product.Product{Name: "海外商品", PriceCents: 1500, Currency: "USD", Stock: 10, WeightKg: 1, Status: product.StatusActive}
	require.NoError(t, f.products.Create(ctx, p))
	co := &checkout.Checkout{
		ID:     "ckt-usd",
		UserID: 7,
		Items: []checkout.Item{{
			ProductID: p.ID, Name: p.Name, Quantity: 1, UnitPriceCents: 1500, TotalCents: 1500,
		}},
		Currency:        "USD",
		SubtotalCents:   1500,
		ShippingCents:   4000,
		GrandTotalCents: 5500,
		Status:          checkout.StatusPending,
		CreatedAt:       f.now,
	}
	require.NoError(t, f.checkouts.Create(ctx, co))

	o, err := f.svc.ConfirmOrder(ctx, 7, co.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "USD", o.Currency)
}

func TestConfirmOrderOwnerAndStatusChecks(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	cktID, _ := f.seedCheckout(t, 7, 1, 10)

	_, err := f.svc.ConfirmOrder(ctx, 8, cktID, "")
	assert.Equal(t, errs.CodeForbidden, errs.CodeOf(err))

	_, err = f.svc.ConfirmOrder(ctx, 7, "no-such-checkout", "")
	assert.Equal(t, errs.CodeCheckoutNotFound, errs.CodeOf(err))

	// 已取消的结算单不能确认
	ok, err := f.checkouts.UpdateStatusIf(ctx, cktID, checkout.StatusPending, checkout.StatusCancelled)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = f.svc.ConfirmOrder(ctx, 7, cktID, "")
	assert.Equal(t, errs.CodeCheckoutNotPending, errs.CodeOf(err))
}

func TestConfirmOrderOutOfStock(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	cktID, pid := f.seedCheckout(t, 7, 2, 1)

	_, err := f.svc.ConfirmOrder(ctx, 7, cktID, "")
	assert.Equal(t, errs.CodeOutOfStock, errs.CodeOf(err))
	assert.EqualValues(t, 1, f.products.Stock(pid))

	// 未生成任何订单
	existing, err := f.orders.GetByCheckoutID(ctx, cktID)
	require.NoError(t, err)
	assert.Nil(t, existing)
}

func TestAdvanceOrderStatus(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	cktID, _ := f.seedCheckout(t, 7, 1, 10)
	o, err := f.svc.ConfirmOrder(ctx, 7, cktID, "")
	require.NoError(t, err)

	// 取消必须走取消接口
	_, err = f.svc.AdvanceOrderStatus(ctx, o.OrderNo, order.StatusCancelled)
	assert.Equal(t, errs.CodeInvalidTransition, errs.CodeOf(err))

	// PENDING -> PROCESSING 强制初始化物流为 PREPARING
	o2, err := f.svc.AdvanceOrderStatus(ctx, o.OrderNo, order.StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, o2.Status)
	assert.Equal(t, order.TrackPreparing, o2.TrackingStatus)
	require.Len(t, o2.TrackingHistory, 1)

	// PROCESSING -> PENDING 不存在的流转
	_, err = f.svc.AdvanceOrderStatus(ctx, o.OrderNo, order.StatusPending)
	assert.Equal(t, errs.CodeInvalidTransition, errs.CodeOf(err))

	o3, err := f.svc.AdvanceOrderStatus(ctx, o.OrderNo, order.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, o3.Status)

	// 终态后不可再动
	_, err = f.svc.AdvanceOrderStatus(ctx, o.OrderNo, order.StatusProcessing)
	assert.Equal(t, errs.CodeInvalidTransition, errs.CodeOf(err))
}

func TestCancelOrderRestoresStockOnce(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	cktID, pid := f.seedCheckout(t, 7, 2, 10)
	o, err := f.svc.ConfirmOrder(ctx, 7, cktID, "")
	require.NoError(t, err)
	require.EqualValues(t, 8, f.products.Stock(pid))

	actor := Actor{UserID: 7, Role: user.RoleCustomer}
	cancelled, err := f.svc.CancelOrder(ctx, o.OrderNo, actor)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, cancelled.Status)
	assert.Equal(t, order.TrackCancelled, cancelled.TrackingStatus)
	assert.EqualValues(t, 10, f.products.Stock(pid))

	// 再取消：已是终态，库存不会二次回补
	_, err = f.svc.CancelOrder(ctx, o.OrderNo, actor)
	assert.Equal(t, errs.CodeCannotCancel, errs.CodeOf(err))
	assert.EqualValues(t, 10, f.products.Stock(pid))
}

func TestCancelOrderPermissions(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	cktID, _ := f.seedCheckout(t, 7, 1, 10)
	o, err := f.svc.ConfirmOrder(ctx, 7, cktID, "")
	require.NoError(t, err)

	// 其他买家不能取消
	_, err = f.svc.CancelOrder(ctx, o.OrderNo, Actor{UserID: 8, Role: user.RoleCustomer})
	assert.Equal(t, errs.CodeForbidden, errs.CodeOf(err))

	// 管理员可以代客取消
	_, err = f.svc.CancelOrder(ctx, o.OrderNo, Actor{UserID: 1, Username: "ops", Role: user.RoleAdmin})
	require.NoError(t, err)
}

func TestCancelOrderRejectsNonPending(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	cktID, pid := f.seedCheckout(t, 7, 1, 10)
	o, err := f.svc.ConfirmOrder(ctx, 7, cktID, "")
	require.NoError(t, err)
	_, err = f.svc.AdvanceOrderStatus(ctx, o.OrderNo, order.StatusProcessing)
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(ctx, o.OrderNo, Actor{UserID: 7, Role: user.RoleCustomer})
	assert.Equal(t, errs.CodeCannotCancel, errs.CodeOf(err))
	assert.EqualValues(t, 9, f.products.Stock(pid))
}

func TestCancelOrderRevertsOnReturnFailure(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	cktID, pid := f.seedCheckout(t, 7, 1, 10)
	o, err := f.svc.ConfirmOrder(ctx, 7, cktID, "")
	require.NoError(t, err)

	// 商品被删除导致回补失败，取消必须回滚为 PENDING
	require.NoError(t, f.products.Delete(ctx, pid))
	_, err = f.svc.CancelOrder(ctx, o.OrderNo, Actor{UserID: 7, Role: user.RoleCustomer})
	require.Error(t, err)

	got, err := f.orders.GetByOrderNo(ctx, o.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.Status)
}

func TestAutoCancelStalePending(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	base := f.now
	ckt1, pid1 := f.seedCheckout(t, 7, 2, 10)
	o1, err := f.svc.ConfirmOrder(ctx, 7, ckt1, "")
	require.NoError(t, err)

	f.now = base.Add(40 * time.Hour)
	ckt2, pid2 := f.seedCheckout(t, 7, 1, 10)
	o2, err := f.svc.ConfirmOrder(ctx, 7, ckt2, "")
	require.NoError(t, err)

	// 50 小时后：o1 超过 48 小时阈值，o2 未超过
	f.now = base.Add(50 * time.Hour)
	report, err := f.svc.AutoCancelStalePending(ctx, 48)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Cancelled)

	got1, _ := f.orders.GetByOrderNo(ctx, o1.OrderNo)
	got2, _ := f.orders.GetByOrderNo(ctx, o2.OrderNo)
	assert.Equal(t, order.StatusCancelled, got1.Status)
	assert.Equal(t, order.StatusPending, got2.Status)
	assert.EqualValues(t, 10, f.products.Stock(pid1))
	assert.EqualValues(t, 9, f.products.Stock(pid2))
}

func TestAutoCancelStalePendingIsolatesFailures(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	ckt1, pid1 := f.seedCheckout(t, 7, 1, 10)
	_, err := f.svc.ConfirmOrder(ctx, 7, ckt1, "")
	require.NoError(t, err)
	ckt2, pid2 := f.seedCheckout(t, 7, 1, 10)
	_, err = f.svc.ConfirmOrder(ctx, 7, ckt2, "")
	require.NoError(t, err)

	// 第一单的商品已被删除：该单清理失败，但不阻断整轮
	require.NoError(t, f.products.Delete(ctx, pid1))
	f.now = f.now.Add(50 * time.Hour)

	report, err := f.svc.AutoCancelStalePending(ctx, 48)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Cancelled)
	assert.EqualValues(t, 10, f.products.Stock(pid2))
}

func TestUpdateTrackingChain(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	cktID, _ := f.seedCheckout(t, 7, 1, 10)
	o, err := f.svc.ConfirmOrder(ctx, 7, cktID, "")
	require.NoError(t, err)
	_, err = f.svc.AdvanceOrderStatus(ctx, o.OrderNo, order.StatusProcessing)
	require.NoError(t, err)

	// 不允许跳步
	_, err = f.svc.UpdateTracking(ctx, o.OrderNo, order.TrackArriving, "ops")
	assert.Equal(t, errs.CodeInvalidTransition, errs.CodeOf(err))

	chain := []string{order.TrackShippingOut, order.TrackInTransit, order.TrackArriving, order.TrackDelivered}
	for _, target := range chain {
		f.now = f.now.Add(time.Hour)
		got, err := f.svc.UpdateTracking(ctx, o.OrderNo, target, "ops")
		require.NoError(t, err)
		assert.Equal(t, target, got.TrackingStatus)
	}

	// 历史只追加：PREPARING + 4 次推进
	tr, err := f.svc.GetTracking(ctx, Actor{UserID: 7, Role: user.RoleCustomer}, o.OrderNo)
	require.NoError(t, err)
	require.Len(t, tr.History, 5)
	assert.Equal(t, order.TrackPreparing, tr.History[0].Status)
	assert.Equal(t, order.TrackDelivered, tr.History[4].Status)

	// 终态后不可再推进
	_, err = f.svc.UpdateTracking(ctx, o.OrderNo, order.TrackDelivered, "ops")
	assert.Equal(t, errs.CodeInvalidTransition, errs.CodeOf(err))
}

// staleOrderReads 下一次 GetByOrderNo 返回预先捕获的快照，
// 用于复现"读到旧状态后再写"的交错
type staleOrderReads struct {
	order.Repository
	next *order.Order
}

func (r *staleOrderReads) GetByOrderNo(ctx context.Context, orderNo string) (*order.Order, error) {
	if r.next != nil {
		o := r.next
		r.next = nil
		return o, nil
	}
	return r.Repository.GetByOrderNo(ctx, orderNo)
}

func TestUpdateTrackingConcurrentAdvanceSingleWinner(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	cktID, _ := f.seedCheckout(t, 7, 1, 10)
	o, err := f.svc.ConfirmOrder(ctx, 7, cktID, "")
	require.NoError(t, err)
	_, err = f.svc.AdvanceOrderStatus(ctx, o.OrderNo, order.StatusProcessing)
	require.NoError(t, err)

	// 两个操作员都读到 PREPARING，先写者把物流推到 CANCELLED
	stale, err := f.orders.GetByOrderNo(ctx, o.OrderNo)
	require.NoError(t, err)
	require.Equal(t, order.TrackPreparing, stale.TrackingStatus)

	_, err = f.svc.UpdateTracking(ctx, o.OrderNo, order.TrackCancelled, "ops-a")
	require.NoError(t, err)

	// 后写者基于旧快照推进 SHIPPING_OUT：校验虽通过，乐观锁必须判负
	lagged := NewOrderService(
		&staleOrderReads{Repository: f.orders, next: stale},
		f.checkouts, f.carts, NewCompensatingLedger(f.products), nil, nil,
	)
	lagged.now = f.svc.now
	_, err = lagged.UpdateTracking(ctx, o.OrderNo, order.TrackShippingOut, "ops-b")
	assert.Equal(t, errs.CodeConflict, errs.CodeOf(err))

	// 赢家的结果保持不变，历史只追加不改写
	got, err := f.orders.GetByOrderNo(ctx, o.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, order.TrackCancelled, got.TrackingStatus)
	require.Len(t, got.TrackingHistory, 2)
	assert.Equal(t, order.TrackPreparing, got.TrackingHistory[0].Status)
	assert.Equal(t, order.TrackCancelled, got.TrackingHistory[1].Status)
}

func TestConfirmDelivery(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	cktID, _ := f.seedCheckout(t, 7, 1, 10)
	o, err := f.svc.ConfirmOrder(ctx, 7, cktID, "")
	require.NoError(t, err)

	// PENDING 时不能确认收货
	_, err = f.svc.ConfirmDelivery(ctx, 7, o.OrderNo, "web")
	assert.Equal(t, errs.CodeOrderNotReadyToConfirm, errs.CodeOf(err))

	_, err = f.svc.AdvanceOrderStatus(ctx, o.OrderNo, order.StatusProcessing)
	require.NoError(t, err)

	// 他人无权确认
	_, err = f.svc.ConfirmDelivery(ctx, 8, o.OrderNo, "web")
	assert.Equal(t, errs.CodeForbidden, errs.CodeOf(err))

	got, err := f.svc.ConfirmDelivery(ctx, 7, o.OrderNo, "web")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, got.Status)
	assert.Equal(t, order.TrackDelivered, got.TrackingStatus)
	assert.Equal(t, "customer", got.ConfirmedBy)
	assert.Equal(t, "web", got.ConfirmedVia)
	require.NotNil(t, got.ConfirmedAt)
	assert.Equal(t, f.now, *got.ConfirmedAt)

	// 重复确认：幂等返回
	again, err := f.svc.ConfirmDelivery(ctx, 7, o.OrderNo, "app")
	require.NoError(t, err)
	assert.Equal(t, "web", again.ConfirmedVia)
}

func TestGetOrderVisibility(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	cktID, _ := f.seedCheckout(t, 7, 1, 10)
	o, err := f.svc.ConfirmOrder(ctx, 7, cktID, "")
	require.NoError(t, err)

	_, err = f.svc.GetOrder(ctx, Actor{UserID: 8, Role: user.RoleCustomer}, o.OrderNo)
	assert.Equal(t, errs.CodeForbidden, errs.CodeOf(err))

	got, err := f.svc.GetOrder(ctx, Actor{UserID: 1, Role: user.RoleAdmin}, o.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, o.OrderNo, got.OrderNo)

	_, err = f.svc.GetOrder(ctx, Actor{UserID: 7, Role: user.RoleCustomer}, "ORD-00000000-dead")
	assert.Equal(t, errs.CodeOrderNotFound, errs.CodeOf(err))
}

// 从加购到支付成功的完整链路
func TestOrderLifecycleScenario(t *testing.T) {
	cfg := config.DefaultConfig()
	products := memory.NewProductRepo()
	carts := memory.NewCartRepo()
	addresses := memory.NewAddressRepo()
	checkouts := memory.NewCheckoutRepo()
	orders := memory.NewOrderRepo()
	intents := memory.NewPaymentRepo()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	cartSvc := NewCartService(carts, products, &cfg.Cart)
	cartSvc.now = clock
	checkoutSvc := NewCheckoutService(checkouts, carts, products, addresses, &cfg.Shipping, &cfg.Cart, NewPostalProximityEstimator(&cfg.Warehouse))
	checkoutSvc.now = clock
	orderSvc := NewOrderService(orders, checkouts, carts, NewCompensatingLedger(products), nil, nil)
	orderSvc.now = clock
	paySvc := NewPaymentService(intents, orders)
	paySvc.now = clock

	ctx := context.Background()
	p := &product.Product{Name: "帆布鞋", PriceCents: 1500, Currency: "CNY", Stock: 10, WeightKg: 1, Status: product.StatusActive}
	require.NoError(t, products.Create(ctx, p))
	addr := &address.Address{UserID: 7, Recipient: "张三", City: cfg.Warehouse.City, PostalCode: cfg.Warehouse.PostalCode, AddressLine: "南山区1号"}
	require.NoError(t, addresses.Create(ctx, addr))

	_, err := cartSvc.AddItem(ctx, 7, p.ID, 2)
	require.NoError(t, err)

	co, err := checkoutSvc.CreateCheckout(ctx, 7, addr.ID, checkout.ShippingStandard, "card")
	require.NoError(t, err)
	assert.EqualValues(t, 3000, co.SubtotalCents)
	// base 3000 + 500*2kg + 20*5km = 4100
	assert.EqualValues(t, 4100, co.ShippingCents)
	assert.EqualValues(t, 7100, co.GrandTotalCents)

	o, err := orderSvc.ConfirmOrder(ctx, 7, co.ID, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.EqualValues(t, 7100, o.TotalCents)
	assert.EqualValues(t, 8, products.Stock(p.ID))

	// 下单成功后购物车被清空
	c, err := cartSvc.Get(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	it, err := paySvc.CreatePaymentIntent(ctx, 7, o.OrderNo, "card", 0)
	require.NoError(t, err)
	assert.Equal(t, "requires_confirmation", it.Status)

	_, err = paySvc.ConfirmCardPayment(ctx, 7, it.ID, true)
	require.NoError(t, err)

	paid, err := orders.GetByOrderNo(ctx, o.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, paid.Status)
	assert.Equal(t, order.PaymentPaid, paid.PaymentStatus)
	assert.Equal(t, order.TrackPreparing, paid.TrackingStatus)
}
