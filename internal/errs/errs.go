package errs

import (
	"errors"
	"fmt"
)

// Kind 错误分类，对应统一的 HTTP 语义
type Kind int

const (
	KindValidation Kind = iota // 参数不合法
	KindNotFound               // 实体不存在
	KindConflict               // 唯一约束 / 乐观锁冲突
	KindState                  // 当前生命周期状态不允许该操作
	KindCapacity               // 库存不足
	KindForbidden              // 越权访问
	KindInternal               // 其他内部错误
)

// 稳定的机器可读错误码
const (
	CodeConflict               = "CONFLICT"
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeOutOfStock             = "OUT_OF_STOCK"
	CodeInsufficientStock      = "INSUFFICIENT_STOCK"
	CodeProductNotAvailable    = "PRODUCT_NOT_AVAILABLE"
	CodeProductNotFound        = "PRODUCT_NOT_FOUND"
	CodeCartEmpty              = "CART_EMPTY"
	CodeCartItemNotFound       = "CART_ITEM_NOT_FOUND"
	CodeAddressNotFound        = "ADDRESS_NOT_FOUND"
	CodeAddressInvalid         = "ADDRESS_INVALID"
	CodeCheckoutNotFound       = "CHECKOUT_NOT_FOUND"
	CodeCheckoutNotPending     = "CHECKOUT_NOT_PENDING"
	CodeOrderNotFound          = "ORDER_NOT_FOUND"
	CodeOrderNotPending        = "ORDER_NOT_PENDING"
	CodeCannotCancel           = "CANNOT_CANCEL_NON_PENDING"
	CodeOrderNotReadyToConfirm = "ORDER_NOT_READY_TO_CONFIRM"
	CodeIntentNotFound         = "INTENT_NOT_FOUND"
	CodeIntentNotConfirmable   = "INTENT_NOT_CONFIRMABLE"
	CodeIntentAlreadyExists    = "CC_ALREADY_EXISTS"
	CodePaymentMethodNotFound  = "PAYMENT_METHOD_NOT_FOUND"
	CodePaymentMethodInvalid   = "PAYMENT_METHOD_INVALID"
	CodeShippingMethodInvalid  = "SHIPPING_METHOD_INVALID"
	CodeQuantityInvalid        = "QUANTITY_INVALID"
	CodeForbidden              = "FORBIDDEN"
	CodeInternal               = "INTERNAL"
)

// Error 业务错误：分类 + 稳定错误码 + 人类可读信息，
// 库存类错误额外携带出错的商品 ID。
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	ProductID int64
}

func (e *Error) Error() string {
	if e.ProductID > 0 {
		return fmt.Sprintf("%s:%d %s", e.Code, e.ProductID, e.Message)
	}
	if e.Message == "" {
		return e.Code
	}
	return e.Code + " " + e.Message
}

// New 创建业务错误
func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Newf 创建带格式化信息的业务错误
func Newf(kind Kind, code, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// OutOfStock 库存不足（带商品 ID）
func OutOfStock(productID int64) *Error {
	return &Error{Kind: KindCapacity, Code: CodeOutOfStock, Message: "库存不足", ProductID: productID}
}

// InsufficientStock 下单前置校验的库存不足（带商品 ID）
func InsufficientStock(productID int64) *Error {
	return &Error{Kind: KindCapacity, Code: CodeInsufficientStock, Message: "库存不足", ProductID: productID}
}

// ProductNotAvailable 商品不可售（带商品 ID）
func ProductNotAvailable(productID int64) *Error {
	return &Error{Kind: KindState, Code: CodeProductNotAvailable, Message: "商品不可售", ProductID: productID}
}

// Conflict 乐观锁冲突：并发状态变更时失败的一方
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Code: CodeConflict, Message: msg}
}

// Forbidden 越权
func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Code: CodeForbidden, Message: msg}
}

// CodeOf 提取稳定错误码，非业务错误返回 INTERNAL
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// KindOf 提取错误分类
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus 错误分类到 HTTP 状态码的映射（仅作提示，传输层最终决定）
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return 400
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	case KindState:
		return 409
	case KindCapacity:
		return 409
	case KindForbidden:
		return 403
	default:
		return 500
	}
}
