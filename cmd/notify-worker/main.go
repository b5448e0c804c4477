package main

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/config"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/infra/mq"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/service"
	applog "github.com/marianaArangoE/ecommerce-tracking-api-sub000/pkg/log"
)

// 邮件通知消费进程：从 MQ 取出订单确认/取消通知并投递。
// 当前实现只做结构化日志输出，对接真实邮件网关时替换 deliver 即可
func main() {
	applog.InitLogger()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	mqConn := mq.Init(&cfg.RabbitMQ)
	defer mq.Close()

	ch, err := mqConn.Channel()
	if err != nil {
		log.Fatalf("failed to open channel: %v", err)
	}
	defer ch.Close()

	queue := cfg.RabbitMQ.MailQueue
	if _, err = ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		log.Fatalf("failed to declare queue: %v", err)
	}

	// 手动确认模式（auto-ack=false），避免投递失败时消息丢失
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("failed to consume: %v", err)
	}

	zap.L().Info("notify worker started", zap.String("queue", queue))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				zap.L().Warn("mq channel closed, exiting")
				return
			}
			var payload service.MailPayload
			if err := json.Unmarshal(d.Body, &payload); err != nil {
				// 消息格式损坏，不再重试
				zap.L().Warn("drop invalid mail payload", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			if err := deliver(&payload); err != nil {
				// 投递失败，放回队列重试
				zap.L().Warn("mail delivery failed, requeue",
					zap.String("order_no", payload.OrderNo), zap.Error(err))
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		case sig := <-sigCh:
			zap.L().Info("notify worker stopping", zap.String("signal", sig.String()))
			return
		}
	}
}

func deliver(p *service.MailPayload) error {
	zap.L().Info("mail sent",
		zap.String("to", p.To),
		zap.String("kind", p.Kind),
		zap.String("subject", p.Subject),
		zap.String("order_no", p.OrderNo),
		zap.Int64("total_cents", p.TotalCents))
	return nil
}
