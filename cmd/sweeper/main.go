package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/config"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/infra/mq"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/infra/redis"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/repository/mysql"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/service"
	applog "github.com/marianaArangoE/ecommerce-tracking-api-sub000/pkg/log"
)

// 过期订单清理进程：周期性取消长时间未支付的 PENDING 订单并回补库存
func main() {
	applog.InitLogger()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	mqConn := mq.Init(&cfg.RabbitMQ)
	defer mq.Close()

	orderRepo := mysql.NewOrderRepository(db)
	checkoutRepo := mysql.NewCheckoutRepository(db)
	cartRepo := mysql.NewCartRepository(db)
	ledger := mysql.NewInventoryLedger(db)
	notifier := service.NewMQNotifier(mqConn, cfg.RabbitMQ.MailQueue)
	push := service.NewRedisPublisher(redisClient)

	orderSvc := service.NewOrderService(orderRepo, checkoutRepo, cartRepo, ledger, notifier, push)

	interval := time.Duration(cfg.Sweep.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	zap.L().Info("sweeper started",
		zap.Int("stale_hours", cfg.Sweep.StaleHours),
		zap.Duration("interval", interval))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 启动时先扫一轮，再进入周期循环
	runOnce(ctx, orderSvc, cfg.Sweep.StaleHours)
	for {
		select {
		case <-ticker.C:
			runOnce(ctx, orderSvc, cfg.Sweep.StaleHours)
		case sig := <-sigCh:
			zap.L().Info("sweeper stopping", zap.String("signal", sig.String()))
			return
		}
	}
}

func runOnce(ctx context.Context, svc *service.OrderService, staleHours int) {
	report, err := svc.AutoCancelStalePending(ctx, staleHours)
	if err != nil {
		zap.L().Error("sweep failed", zap.Error(err))
		return
	}
	zap.L().Info("sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("cancelled", report.Cancelled))
}
