package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/cart"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/checkout"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/order"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/user"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/errs"
)

// Actor 操作者上下文，由鉴权层提供，核心逻辑不再二次认证
type Actor struct {
	UserID   int64
	Username string
	Role     string // customer / admin / system
}

// SystemActor 系统内部操作（自动取消等）
var SystemActor = Actor{Role: "system"}

// SweepReport 过期订单清理结果
type SweepReport struct {
	Scanned   int `json:"scanned"`
	Cancelled int `json:"cancelled"`
}

// OrderService 订单引擎：确认下单（幂等）、状态机流转、取消回补库存、
// 过期清理与物流子状态机
type OrderService struct {
	orders    order.Repository
	checkouts checkout.Repository
	carts     cart.Repository
	ledger    Ledger
	notifier  Notifier
	push      Publisher
	now       func() time.Time
}

// NewOrderService 创建订单引擎。notifier/push 传 nil 时退化为空实现
func NewOrderService(
	orders order.Repository,
	checkouts checkout.Repository,
	carts cart.Repository,
	ledger Ledger,
	notifier Notifier,
	push Publisher,
) *OrderService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if push == nil {
		push = NopPublisher{}
	}
	return &OrderService{
		orders:    orders,
		checkouts: checkouts,
		carts:     carts,
		ledger:    ledger,
		notifier:  notifier,
		push:      push,
		now:       time.Now,
	}
}

// genOrderNo 人类可读订单号：ORD-YYYYMMDD-8位随机hex
func genOrderNo(now time.Time) string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), hex.EncodeToString(buf))
}

// ConfirmOrder 确认下单。以 checkoutID 为幂等键：已有订单直接返回，
// 不重复预占库存也不重复发信
func (s *OrderService) ConfirmOrder(ctx context.Context, userID int64, checkoutID, email string) (*order.Order, error) {
	if existing, err := s.orders.GetByCheckoutID(ctx, checkoutID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	co, err := s.checkouts.GetByID(ctx, checkoutID)
	if err != nil {
		return nil, errs.New(errs.KindNotFound, errs.CodeCheckoutNotFound, "结算单不存在")
	}
	if co.UserID != userID {
		return nil, errs.Forbidden("无权操作该结算单")
	}
	if co.Status != checkout.StatusPending {
		return nil, errs.Newf(errs.KindState, errs.CodeCheckoutNotPending, "结算单当前状态为 %s，无法确认", co.Status)
	}

	now := s.now()
	orderNo := genOrderNo(now)
	lines := make([]order.Item, 0, len(co.Items))
	for _, it := range co.Items {
		lines = append(lines, order.Item{
			ProductID:      it.ProductID,
			Name:           it.Name,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
			TotalCents:     it.TotalCents,
		})
	}

	if err := s.ledger.Reserve(ctx, orderNo, lines); err != nil {
		GetMonitor().RecordReserveFailed()
		return nil, err
	}

	currency := co.Currency
	if currency == "" {
		currency = "CNY"
	}
	o := &order.Order{
		OrderNo:       orderNo,
		CheckoutID:    checkoutID,
		UserID:        userID,
		Items:         lines,
		TotalCents:    co.GrandTotalCents,
		Currency:      currency,
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
		CreatedAt:     now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		// 并发重复确认：唯一索引兜底，回补刚预占的库存并返回已有订单
		if errs.KindOf(err) == errs.KindConflict {
			if rbErr := s.ledger.Return(ctx, orderNo, lines); rbErr != nil {
				zap.L().Error("rollback reserve after duplicate order failed",
					zap.String("order_no", orderNo), zap.Error(rbErr))
			}
			if existing, gerr := s.orders.GetByCheckoutID(ctx, checkoutID); gerr == nil && existing != nil {
				return existing, nil
			}
		} else if rbErr := s.ledger.Return(ctx, orderNo, lines); rbErr != nil {
			zap.L().Error("rollback reserve after create failure failed",
				zap.String("order_no", orderNo), zap.Error(rbErr))
		}
		return nil, err
	}

	if ok, err := s.checkouts.UpdateStatusIf(ctx, checkoutID, checkout.StatusPending, checkout.StatusConfirmed); err != nil || !ok {
		zap.L().Warn("flip checkout to confirmed failed",
			zap.String("checkout_id", checkoutID), zap.Error(err))
	}
	if err := s.carts.ClearByUser(ctx, userID); err != nil {
		zap.L().Warn("clear cart after confirm failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	// 通知是尽力而为的旁路，失败绝不影响订单创建
	go func(o order.Order, email string) {
		if err := s.notifier.SendOrderConfirmation(context.Background(), MailPayload{
			To:         email,
			Subject:    "订单确认",
			OrderNo:    o.OrderNo,
			TotalCents: o.TotalCents,
		}); err != nil {
			zap.L().Warn("send order confirmation failed", zap.String("order_no", o.OrderNo), zap.Error(err))
			GetMonitor().RecordMQError()
		}
	}(*o, email)

	GetMonitor().RecordOrderCreated()
	return o, nil
}

// GetOrder 查询订单，customer 只能看自己的
func (s *OrderService) GetOrder(ctx context.Context, actor Actor, orderNo string) (*order.Order, error) {
	o, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, errs.New(errs.KindNotFound, errs.CodeOrderNotFound, "订单不存在")
	}
	if actor.Role != user.RoleAdmin && o.UserID != actor.UserID {
		return nil, errs.Forbidden("无权查看该订单")
	}
	return o, nil
}

// ListOrders customer 返回本人订单，admin 返回最近订单
func (s *OrderService) ListOrders(ctx context.Context, actor Actor, limit int) ([]*order.Order, error) {
	if actor.Role == user.RoleAdmin {
		return s.orders.ListRecent(ctx, limit)
	}
	return s.orders.ListByUser(ctx, actor.UserID)
}

// AdvanceOrderStatus 推进订单主状态（运营侧）。进入 PROCESSING 时
// 强制初始化物流子状态为 PREPARING。取消请走 CancelOrder
func (s *OrderService) AdvanceOrderStatus(ctx context.Context, orderNo, target string) (*order.Order, error) {
	if target == order.StatusCancelled {
		return nil, errs.New(errs.KindValidation, errs.CodeInvalidTransition, "取消请使用取消接口")
	}
	o, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, errs.New(errs.KindNotFound, errs.CodeOrderNotFound, "订单不存在")
	}
	if !order.CanTransition(o.Status, target) {
		return nil, errs.Newf(errs.KindState, errs.CodeInvalidTransition, "订单状态 %s 不能流转到 %s", o.Status, target)
	}

	from := o.Status
	o.Status = target
	if target == order.StatusProcessing {
		o.AppendTracking(order.TrackPreparing, "system", s.now())
	}
	ok, err := s.orders.UpdateIfStatus(ctx, o, from)
	if err != nil {
		return nil, err
	}
	if !ok {
		GetMonitor().RecordConflict()
		return nil, errs.Conflict("订单状态已被并发修改")
	}
	if target == order.StatusProcessing {
		s.publishTracking(ctx, o)
	}
	return o, nil
}

// CancelOrder 取消订单并回补库存。仅 PENDING 可取消；
// customer 只能取消自己的订单。先通过乐观锁赢得 CANCELLED 流转，
// 赢家才执行回补，保证库存只回补一次；回补失败时把状态改回
// PENDING 作为应用层回滚
func (s *OrderService) CancelOrder(ctx context.Context, orderNo string, actor Actor) (*order.Order, error) {
	o, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, errs.New(errs.KindNotFound, errs.CodeOrderNotFound, "订单不存在")
	}
	if actor.Role == user.RoleCustomer && o.UserID != actor.UserID {
		return nil, errs.Forbidden("无权取消该订单")
	}
	if o.Status != order.StatusPending {
		return nil, errs.Newf(errs.KindState, errs.CodeCannotCancel, "订单状态为 %s，仅 PENDING 可取消", o.Status)
	}

	by := actor.Role
	if by == "" {
		by = "system"
	}
	o.Status = order.StatusCancelled
	o.AppendTracking(order.TrackCancelled, by, s.now())

	ok, err := s.orders.UpdateIfStatus(ctx, o, order.StatusPending)
	if err != nil {
		return nil, err
	}
	if !ok {
		GetMonitor().RecordConflict()
		return nil, errs.Conflict("订单状态已被并发修改")
	}

	if err := s.ledger.Return(ctx, o.OrderNo, o.Items); err != nil {
		// 回补失败：把取消回滚掉，保持"取消+回补"要么都发生要么都不发生
		revert := *o
		revert.Status = order.StatusPending
		if ok2, rbErr := s.orders.UpdateIfStatus(ctx, &revert, order.StatusCancelled); rbErr != nil || !ok2 {
			zap.L().Error("revert cancel after return failure failed",
				zap.String("order_no", o.OrderNo), zap.Error(rbErr))
		}
		return nil, err
	}

	go func(o order.Order) {
		if err := s.notifier.SendCancellationNotice(context.Background(), MailPayload{
			Subject:    "订单已取消",
			OrderNo:    o.OrderNo,
			TotalCents: o.TotalCents,
		}); err != nil {
			zap.L().Warn("send cancellation notice failed", zap.String("order_no", o.OrderNo), zap.Error(err))
		}
	}(*o)
	s.publishTracking(ctx, o)
	GetMonitor().RecordOrderCancelled()
	return o, nil
}

// AutoCancelStalePending 清理超过 hours 小时仍未支付的 PENDING 订单。
// 每单独立处理，单个失败不会中断整轮清理；与人工取消的竞争由
// 取消路径的乐观锁裁决，输家自然空转
func (s *OrderService) AutoCancelStalePending(ctx context.Context, hours int) (SweepReport, error) {
	report := SweepReport{}
	cutoff := s.now().Add(-time.Duration(hours) * time.Hour)
	stale, err := s.orders.ListStalePending(ctx, cutoff)
	if err != nil {
		return report, err
	}
	report.Scanned = len(stale)
	for _, o := range stale {
		if _, err := s.CancelOrder(ctx, o.OrderNo, SystemActor); err != nil {
			zap.L().Warn("sweep cancel failed",
				zap.String("order_no", o.OrderNo), zap.Error(err))
			continue
		}
		report.Cancelled++
	}
	GetMonitor().RecordSweep(report.Scanned, report.Cancelled)
	return report, nil
}

// Tracking 物流查询结果
type Tracking struct {
	OrderNo string                `json:"order_no"`
	Status  string                `json:"status"`
	History []order.TrackingEvent `json:"history"`
}

// GetTracking 查询物流状态与历史
func (s *OrderService) GetTracking(ctx context.Context, actor Actor, orderNo string) (*Tracking, error) {
	o, err := s.GetOrder(ctx, actor, orderNo)
	if err != nil {
		return nil, err
	}
	return &Tracking{OrderNo: o.OrderNo, Status: o.TrackingStatus, History: o.TrackingHistory}, nil
}

// UpdateTracking 推进物流子状态（履约操作员驱动），
// 历史只追加不改写
func (s *OrderService) UpdateTracking(ctx context.Context, orderNo, target, by string) (*order.Order, error) {
	o, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, errs.New(errs.KindNotFound, errs.CodeOrderNotFound, "订单不存在")
	}
	if !order.CanAdvanceTracking(o.TrackingStatus, target) {
		return nil, errs.Newf(errs.KindState, errs.CodeInvalidTransition, "物流状态 %s 不能流转到 %s", o.TrackingStatus, target)
	}

	// 主状态与物流子状态都作为乐观锁条件：物流推进不改主状态，
	// 只按主状态比对会让并发推进互相覆盖历史
	fromStatus, fromTracking := o.Status, o.TrackingStatus
	o.AppendTracking(target, by, s.now())
	ok, err := s.orders.UpdateIfTracking(ctx, o, fromStatus, fromTracking)
	if err != nil {
		return nil, err
	}
	if !ok {
		GetMonitor().RecordConflict()
		return nil, errs.Conflict("物流状态已被并发修改")
	}
	s.publishTracking(ctx, o)
	return o, nil
}

// ConfirmDelivery 客户确认收货。订单 PROCESSING 时生效；
// 已经 COMPLETED 且物流 DELIVERED 时幂等返回；其余状态拒绝
func (s *OrderService) ConfirmDelivery(ctx context.Context, userID int64, orderNo, via string) (*order.Order, error) {
	o, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, errs.New(errs.KindNotFound, errs.CodeOrderNotFound, "订单不存在")
	}
	if o.UserID != userID {
		return nil, errs.Forbidden("无权操作该订单")
	}
	if o.Status == order.StatusCompleted && o.TrackingStatus == order.TrackDelivered {
		return o, nil
	}
	if o.Status != order.StatusProcessing {
		return nil, errs.Newf(errs.KindState, errs.CodeOrderNotReadyToConfirm, "订单状态 %s 无法确认收货", o.Status)
	}

	now := s.now()
	o.Status = order.StatusCompleted
	o.AppendTracking(order.TrackDelivered, "customer", now)
	o.ConfirmedBy = "customer"
	o.ConfirmedVia = via
	o.ConfirmedAt = &now

	ok, err := s.orders.UpdateIfStatus(ctx, o, order.StatusProcessing)
	if err != nil {
		return nil, err
	}
	if !ok {
		GetMonitor().RecordConflict()
		return nil, errs.Conflict("订单状态已被并发修改")
	}

	if err := s.push.PublishDeliveryConfirmed(ctx, DeliveryConfirmed{
		OrderNo: o.OrderNo,
		UserID:  o.UserID,
		At:      now,
	}); err != nil {
		zap.L().Warn("publish delivery confirmed failed", zap.String("order_no", o.OrderNo), zap.Error(err))
		GetMonitor().RecordRedisError()
	}
	return o, nil
}

// publishTracking 推送物流变更，尽力而为
func (s *OrderService) publishTracking(ctx context.Context, o *order.Order) {
	if err := s.push.PublishTrackingUpdate(ctx, TrackingUpdate{
		OrderNo: o.OrderNo,
		Status:  o.TrackingStatus,
		History: o.TrackingHistory,
	}); err != nil {
		zap.L().Warn("publish tracking update failed", zap.String("order_no", o.OrderNo), zap.Error(err))
		GetMonitor().RecordRedisError()
	}
}
