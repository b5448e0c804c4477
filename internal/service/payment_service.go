package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/order"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/payment"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/errs"
)

// PaymentService 支付意向引擎。意向以 (orderID, userID) 为幂等键，
// 支付成功通过乐观锁把订单推进为 paid/PROCESSING
type PaymentService struct {
	intents payment.Repository
	orders  order.Repository
	now     func() time.Time
}

// NewPaymentService 创建支付服务
func NewPaymentService(intents payment.Repository, orders order.Repository) *PaymentService {
	return &PaymentService{intents: intents, orders: orders, now: time.Now}
}

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// CreatePaymentIntent 创建支付意向（幂等）。订单必须为 PENDING。
// 传入 paymentMethodID 时以保存的支付方式类型覆盖请求的 method
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, userID int64, orderNo, method string, paymentMethodID int64) (*payment.Intent, error) {
	o, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, errs.New(errs.KindNotFound, errs.CodeOrderNotFound, "订单不存在")
	}
	if o.UserID != userID {
		return nil, errs.Forbidden("无权为该订单创建支付")
	}
	if existing, err := s.intents.GetByOrderAndUser(ctx, o.ID, userID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}
	if o.Status != order.StatusPending {
		return nil, errs.Newf(errs.KindState, errs.CodeOrderNotPending, "订单状态为 %s，无法发起支付", o.Status)
	}

	if paymentMethodID > 0 {
		sm, err := s.intents.GetStoredMethod(ctx, userID, paymentMethodID)
		if err != nil {
			return nil, errs.New(errs.KindNotFound, errs.CodePaymentMethodNotFound, "支付方式不存在")
		}
		resolved := sm.ResolveMethod()
		if resolved == "" {
			return nil, errs.Newf(errs.KindValidation, errs.CodePaymentMethodInvalid, "无法识别的支付方式类型: %s", sm.Type)
		}
		method = resolved
	} else if !payment.ValidMethod(method) {
		return nil, errs.Newf(errs.KindValidation, errs.CodePaymentMethodInvalid, "不支持的支付方式: %s", method)
	}

	it := &payment.Intent{
		ID:          uuid.NewString(),
		UserID:      userID,
		OrderID:     o.ID,
		AmountCents: o.TotalCents,
		Currency:    o.Currency,
		Method:      method,
		CreatedAt:   s.now(),
	}
	if method == payment.MethodCard {
		it.Status = payment.StatusRequiresConfirmation
		it.ClientSecret = "pi_secret_" + randomHex(16)
	} else {
		it.Status = payment.StatusPending
		it.ProviderRef = "ref_" + randomHex(8)
	}

	if err := s.intents.Create(ctx, it); err != nil {
		// 唯一索引兜底并发重复创建
		if errs.KindOf(err) == errs.KindConflict {
			if existing, gerr := s.intents.GetByOrderAndUser(ctx, o.ID, userID); gerr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}
	return it, nil
}

// ConfirmCardPayment 确认卡支付结果。仅 requires_confirmation 可确认；
// 成功时订单 paid/PROCESSING（乐观锁守护仍为 PENDING），
// 失败时仅标记支付失败，订单主状态不动
func (s *PaymentService) ConfirmCardPayment(ctx context.Context, userID int64, intentID string, succeed bool) (*payment.Intent, error) {
	it, err := s.intents.GetByID(ctx, intentID)
	if err != nil {
		return nil, errs.New(errs.KindNotFound, errs.CodeIntentNotFound, "支付意向不存在")
	}
	if it.UserID != userID {
		return nil, errs.Forbidden("无权确认该支付")
	}
	if it.Status != payment.StatusRequiresConfirmation {
		return nil, errs.Newf(errs.KindState, errs.CodeIntentNotConfirmable, "支付意向状态为 %s，无法确认", it.Status)
	}

	o, err := s.orders.GetByID(ctx, it.OrderID)
	if err != nil {
		return nil, errs.New(errs.KindNotFound, errs.CodeOrderNotFound, "订单不存在")
	}

	if succeed {
		ok, err := s.intents.UpdateStatusIf(ctx, intentID, payment.StatusRequiresConfirmation, payment.StatusSucceeded)
		if err != nil {
			return nil, err
		}
		if !ok {
			GetMonitor().RecordConflict()
			return nil, errs.Conflict("支付意向已被并发确认")
		}
		it.Status = payment.StatusSucceeded
		if err := s.markOrderPaid(ctx, o); err != nil {
			return nil, err
		}
		return it, nil
	}

	ok, err := s.intents.UpdateStatusIf(ctx, intentID, payment.StatusRequiresConfirmation, payment.StatusFailed)
	if err != nil {
		return nil, err
	}
	if !ok {
		GetMonitor().RecordConflict()
		return nil, errs.Conflict("支付意向已被并发确认")
	}
	it.Status = payment.StatusFailed

	// 仅标记支付失败，订单仍可重试支付
	from := o.Status
	o.PaymentStatus = order.PaymentFailed
	if ok, err := s.orders.UpdateIfStatus(ctx, o, from); err != nil {
		return nil, err
	} else if !ok {
		GetMonitor().RecordConflict()
		return nil, errs.Conflict("订单状态已被并发修改")
	}
	return it, nil
}

// AdminConfirmTransfer 管理员确认转账到账
func (s *PaymentService) AdminConfirmTransfer(ctx context.Context, orderNo string) (*order.Order, error) {
	return s.adminMarkPaid(ctx, orderNo, payment.MethodTransfer)
}

// AdminMarkCodPaid 管理员标记货到付款已收款
func (s *PaymentService) AdminMarkCodPaid(ctx context.Context, orderNo string) (*order.Order, error) {
	return s.adminMarkPaid(ctx, orderNo, payment.MethodCashOnDelivery)
}

func (s *PaymentService) adminMarkPaid(ctx context.Context, orderNo, method string) (*order.Order, error) {
	o, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, errs.New(errs.KindNotFound, errs.CodeOrderNotFound, "订单不存在")
	}
	if o.Status != order.StatusPending {
		return nil, errs.Newf(errs.KindState, errs.CodeOrderNotPending, "订单状态为 %s，无法确认收款", o.Status)
	}

	// 同步推进对应意向（如存在）；已终态的意向保持不动
	if it, err := s.intents.GetByOrderAndUser(ctx, o.ID, o.UserID); err == nil && it != nil && it.Method == method {
		if _, err := s.intents.UpdateStatusIf(ctx, it.ID, payment.StatusPending, payment.StatusSucceeded); err != nil {
			return nil, err
		}
	}
	if err := s.markOrderPaid(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// markOrderPaid 订单 paid/PROCESSING 并初始化物流，乐观锁守护 PENDING
func (s *PaymentService) markOrderPaid(ctx context.Context, o *order.Order) error {
	o.PaymentStatus = order.PaymentPaid
	o.Status = order.StatusProcessing
	o.AppendTracking(order.TrackPreparing, "system", s.now())
	ok, err := s.orders.UpdateIfStatus(ctx, o, order.StatusPending)
	if err != nil {
		return err
	}
	if !ok {
		GetMonitor().RecordConflict()
		return errs.Conflict("订单状态已被并发修改")
	}
	return nil
}
