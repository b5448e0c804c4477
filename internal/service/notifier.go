package service

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MailPayload 订单邮件内容
type MailPayload struct {
	To         string `json:"to"`
	Subject    string `json:"subject"`
	OrderNo    string `json:"order_no"`
	TotalCents int64  `json:"total_cents"`
	Kind       string `json:"kind"` // confirmation / cancellation
}

// Notifier 邮件通知发送器。尽力而为：失败由调用方记日志，
// 永不回滚已提交的订单
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, p MailPayload) error
	SendCancellationNotice(ctx context.Context, p MailPayload) error
}

// NopNotifier 空实现
type NopNotifier struct{}

func (NopNotifier) SendOrderConfirmation(ctx context.Context, p MailPayload) error { return nil }
func (NopNotifier) SendCancellationNotice(ctx context.Context, p MailPayload) error {
	return nil
}

// MQNotifier 把邮件任务投递到 RabbitMQ，由 notify-worker 消费
type MQNotifier struct {
	conn  *amqp.Connection
	queue string
}

// NewMQNotifier 创建 MQ 通知发送器
func NewMQNotifier(conn *amqp.Connection, queue string) *MQNotifier {
	return &MQNotifier{conn: conn, queue: queue}
}

func (n *MQNotifier) publish(ctx context.Context, p MailPayload) error {
	ch, err := n.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(n.queue, true, false, false, false, nil); err != nil {
		return err
	}
	body, err := json.Marshal(&p)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(
		ctx,
		"",
		n.queue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

func (n *MQNotifier) SendOrderConfirmation(ctx context.Context, p MailPayload) error {
	p.Kind = "confirmation"
	return n.publish(ctx, p)
}

func (n *MQNotifier) SendCancellationNotice(ctx context.Context, p MailPayload) error {
	p.Kind = "cancellation"
	return n.publish(ctx, p)
}
