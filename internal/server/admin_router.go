package server

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kataras/iris/v12"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/auth"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/config"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/product"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/user"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/infra/mq"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/infra/redis"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/repository/mysql"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/service"
)

// RegisterAdminRoutes 注册后台管理端的 HTTP 路由。
// 端口通常是 8081，与买家侧服务分离
func RegisterAdminRoutes(app *iris.Application, cfg *config.Config) {
	// 初始化基础设施
	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	mqConn := mq.Init(&cfg.RabbitMQ)

	// 仓储与服务
	productRepo := mysql.NewProductRepository(db)
	cartRepo := mysql.NewCartRepository(db)
	checkoutRepo := mysql.NewCheckoutRepository(db)
	orderRepo := mysql.NewOrderRepository(db)
	paymentRepo := mysql.NewPaymentRepository(db)

	ledger := mysql.NewInventoryLedger(db)
	notifier := service.NewMQNotifier(mqConn, cfg.RabbitMQ.MailQueue)
	push := service.NewRedisPublisher(redisClient)

	productSvc := service.NewProductService(productRepo)
	orderSvc := service.NewOrderService(orderRepo, checkoutRepo, cartRepo, ledger, notifier, push)
	paymentSvc := service.NewPaymentService(paymentRepo, orderRepo)

	ring := auth.NewConsistentHashRing(cfg.Auth.Nodes, cfg.Auth.HashReplicas)
	tokenCache := auth.NewTokenCache(redisClient, ring, time.Duration(cfg.Auth.TokenCacheTTLSeconds)*time.Second)

	api := app.Party("/api", authMiddleware(cfg, tokenCache), func(ctx iris.Context) {
		if ctx.Values().GetStringDefault("role", "") != user.RoleAdmin {
			ctx.StopWithJSON(403, iris.Map{"code": 403, "msg": "需要管理员权限"})
			return
		}
		ctx.Next()
	})

	// ---------- 商品管理 ----------

	api.Get("/products", func(ctx iris.Context) {
		list, err := productSvc.ListActive(ctx.Request().Context())
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Post("/products", func(ctx iris.Context) {
		var req productRequest
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		p := &product.Product{}
		if err := req.applyTo(p); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := productSvc.Create(ctx.Request().Context(), p); err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	api.Put("/products/{id:uint64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		p, err := productSvc.GetByID(ctx.Request().Context(), int64(id))
		if err != nil {
			writeErr(ctx, err)
			return
		}
		var req productRequest
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := req.applyTo(p); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := productSvc.Update(ctx.Request().Context(), p); err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	// ---------- 订单管理 ----------

	// 最近订单列表
	api.Get("/orders", func(ctx iris.Context) {
		limitStr := ctx.URLParamDefault("limit", "20")
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			limit = 20
		}
		list, err := orderSvc.ListOrders(ctx.Request().Context(), actorFrom(ctx), limit)
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Get("/orders/{no:string}", func(ctx iris.Context) {
		o, err := orderSvc.GetOrder(ctx.Request().Context(), actorFrom(ctx), ctx.Params().Get("no"))
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	// 推进订单主状态（PENDING→PROCESSING→COMPLETED）
	api.Post("/orders/{no:string}/advance", func(ctx iris.Context) {
		var req struct {
			Target string `json:"target"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		o, err := orderSvc.AdvanceOrderStatus(ctx.Request().Context(), ctx.Params().Get("no"), req.Target)
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	// 后台取消订单（同样回补库存）
	api.Post("/orders/{no:string}/cancel", func(ctx iris.Context) {
		o, err := orderSvc.CancelOrder(ctx.Request().Context(), ctx.Params().Get("no"), actorFrom(ctx))
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	// 推进物流子状态
	api.Post("/orders/{no:string}/tracking", func(ctx iris.Context) {
		var req struct {
			Status string `json:"status"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		o, err := orderSvc.UpdateTracking(ctx.Request().Context(), ctx.Params().Get("no"), req.Status, actorFrom(ctx).Username)
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	// ---------- 线下支付确认 ----------

	api.Post("/orders/{no:string}/confirm-transfer", func(ctx iris.Context) {
		o, err := paymentSvc.AdminConfirmTransfer(ctx.Request().Context(), ctx.Params().Get("no"))
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	api.Post("/orders/{no:string}/mark-cod-paid", func(ctx iris.Context) {
		o, err := paymentSvc.AdminMarkCodPaid(ctx.Request().Context(), ctx.Params().Get("no"))
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	// ---------- 运维 ----------

	// 手工触发过期订单清理
	api.Post("/sweep", func(ctx iris.Context) {
		var req struct {
			Hours int `json:"hours"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if req.Hours <= 0 {
			req.Hours = cfg.Sweep.StaleHours
		}
		report, err := orderSvc.AutoCancelStalePending(ctx.Request().Context(), req.Hours)
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": report})
	})

	// 运行指标
	api.Get("/stats", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"code": 0, "data": service.GetMonitor().GetStats()})
	})
}

// ---- 辅助结构与函数 ----

type productRequest struct {
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	PriceCents  int64   `json:"price_cents"`
	Currency    string  `json:"currency"`
	Stock       int64   `json:"stock"`
	WeightKg    float64 `json:"weight_kg"`
	Status      string  `json:"status"`
}

func (r *productRequest) applyTo(p *product.Product) error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.PriceCents < 0 || r.Stock < 0 {
		return fmt.Errorf("price and stock must be non-negative")
	}
	if r.SKU != "" {
		p.SKU = r.SKU
	}
	p.Name = r.Name
	p.Description = r.Description
	p.PriceCents = r.PriceCents
	if r.Currency != "" {
		p.Currency = r.Currency
	}
	p.Stock = r.Stock
	p.WeightKg = r.WeightKg
	if r.Status != "" {
		switch r.Status {
		case product.StatusDraft, product.StatusActive, product.StatusArchived:
			p.Status = r.Status
		default:
			return fmt.Errorf("invalid status: %s", r.Status)
		}
	}
	return nil
}
