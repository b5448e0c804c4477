package server

import (
	"time"

	"github.com/kataras/iris/v12"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/auth"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/config"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/address"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/errs"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/infra/mq"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/infra/redis"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/middleware"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/repository/mysql"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/service"
)

// writeErr 按业务错误类型映射 HTTP 状态码，统一响应格式
func writeErr(ctx iris.Context, err error) {
	status := errs.HTTPStatus(err)
	ctx.StopWithJSON(status, iris.Map{
		"code": status,
		"msg":  err.Error(),
		"err":  errs.CodeOf(err),
	})
}

// actorFrom 从鉴权中间件写入的上下文值还原操作者
func actorFrom(ctx iris.Context) service.Actor {
	return service.Actor{
		UserID:   ctx.Values().GetInt64Default("user_id", 0),
		Username: ctx.Values().GetStringDefault("username", ""),
		Role:     ctx.Values().GetStringDefault("role", "customer"),
	}
}

// authMiddleware JWT 鉴权。命中 Redis 缓存则跳过签名校验
func authMiddleware(cfg *config.Config, cache *auth.TokenCache) iris.Handler {
	return func(ctx iris.Context) {
		token := ctx.GetHeader("Authorization")
		if token == "" {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "missing token"})
			return
		}
		var claims *auth.Claims
		if cache != nil {
			if cached, ok, err := cache.Get(ctx.Request().Context(), token); err != nil {
				service.GetMonitor().RecordRedisError()
			} else if ok {
				claims = cached
			}
		}
		if claims == nil {
			parsed, err := auth.ParseToken(&cfg.JWT, token)
			if err != nil {
				ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "invalid token"})
				return
			}
			claims = parsed
			if cache != nil {
				_ = cache.Set(ctx.Request().Context(), token, claims)
			}
		}
		ctx.Values().Set("user_id", claims.UserID)
		ctx.Values().Set("username", claims.Username)
		ctx.Values().Set("role", claims.Role)
		ctx.Next()
	}
}

// RegisterRoutes 注册面向买家的 HTTP 路由
func RegisterRoutes(app *iris.Application, cfg *config.Config) {
	// 初始化基础设施
	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	mqConn := mq.Init(&cfg.RabbitMQ)

	// 仓储与服务
	userRepo := mysql.NewUserRepository(db)
	productRepo := mysql.NewProductRepository(db)
	cartRepo := mysql.NewCartRepository(db)
	addressRepo := mysql.NewAddressRepository(db)
	checkoutRepo := mysql.NewCheckoutRepository(db)
	orderRepo := mysql.NewOrderRepository(db)
	paymentRepo := mysql.NewPaymentRepository(db)

	ledger := mysql.NewInventoryLedger(db)
	notifier := service.NewMQNotifier(mqConn, cfg.RabbitMQ.MailQueue)
	push := service.NewRedisPublisher(redisClient)

	userSvc := service.NewUserService(userRepo, &cfg.JWT)
	productSvc := service.NewProductService(productRepo)
	cartSvc := service.NewCartService(cartRepo, productRepo, &cfg.Cart)
	checkoutSvc := service.NewCheckoutService(
		checkoutRepo, cartRepo, productRepo, addressRepo,
		&cfg.Shipping, &cfg.Cart, service.NewPostalProximityEstimator(&cfg.Warehouse),
	)
	orderSvc := service.NewOrderService(orderRepo, checkoutRepo, cartRepo, ledger, notifier, push)
	paymentSvc := service.NewPaymentService(paymentRepo, orderRepo)

	ring := auth.NewConsistentHashRing(cfg.Auth.Nodes, cfg.Auth.HashReplicas)
	tokenCache := auth.NewTokenCache(redisClient, ring, time.Duration(cfg.Auth.TokenCacheTTLSeconds)*time.Second)

	api := app.Party("/api")

	// 健康检查
	api.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	// 用户注册/登录
	api.Post("/register", func(ctx iris.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Email    string `json:"email"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		u, err := userSvc.Register(ctx.Request().Context(), req.Username, req.Password, req.Email)
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": u})
	})

	api.Post("/login", func(ctx iris.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		token, err := userSvc.Login(ctx.Request().Context(), req.Username, req.Password)
		if err != nil {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"token": token}})
	})

	// 需要登录的接口
	authAPI := api.Party("/", authMiddleware(cfg, tokenCache))

	// 商品
	authAPI.Get("/products", func(ctx iris.Context) {
		list, err := productSvc.ListActive(ctx.Request().Context())
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	authAPI.Get("/products/{id:uint64}", func(ctx iris.Context) {
		pid, _ := ctx.Params().GetUint64("id")
		p, err := productSvc.GetByID(ctx.Request().Context(), int64(pid))
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	// ---------- 购物车 ----------

	authAPI.Get("/cart", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		c, err := cartSvc.Get(ctx.Request().Context(), userID)
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": c})
	})

	authAPI.Post("/cart/items", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		var req struct {
			ProductID int64 `json:"product_id"`
			Quantity  int64 `json:"quantity"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		c, err := cartSvc.AddItem(ctx.Request().Context(), userID, req.ProductID, req.Quantity)
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": c})
	})

	authAPI.Put("/cart/items/{pid:uint64}", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		pid, _ := ctx.Params().GetUint64("pid")
		var req struct {
			Quantity int64 `json:"quantity"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		c, err := cartSvc.UpdateItemQuantity(ctx.Request().Context(), userID, int64(pid), req.Quantity)
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": c})
	})

	authAPI.Delete("/cart/items/{pid:uint64}", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		pid, _ := ctx.Params().GetUint64("pid")
		c, err := cartSvc.RemoveItem(ctx.Request().Context(), userID, int64(pid))
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": c})
	})

	authAPI.Delete("/cart", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		if err := cartSvc.Clear(ctx.Request().Context(), userID); err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "cleared"})
	})

	// ---------- 地址簿 ----------

	authAPI.Get("/addresses", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		list, err := addressRepo.ListByUser(ctx.Request().Context(), userID)
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	authAPI.Post("/addresses", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		var req struct {
			Recipient   string `json:"recipient"`
			Phone       string `json:"phone"`
			City        string `json:"city"`
			PostalCode  string `json:"postal_code"`
			AddressLine string `json:"address_line"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		a := &address.Address{
			UserID:      userID,
			Recipient:   req.Recipient,
			Phone:       req.Phone,
			City:        req.City,
			PostalCode:  req.PostalCode,
			AddressLine: req.AddressLine,
		}
		if !a.Complete() {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": "城市、邮编、详细地址为必填项"})
			return
		}
		if err := addressRepo.Create(ctx.Request().Context(), a); err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": a})
	})

	// ---------- 结算 ----------

	authAPI.Post("/checkouts", middleware.ConfirmRateLimit(), func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		var req struct {
			AddressID      int64  `json:"address_id"`
			ShippingMethod string `json:"shipping_method"`
			PaymentMethod  string `json:"payment_method"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		co, err := checkoutSvc.CreateCheckout(ctx.Request().Context(), userID, req.AddressID, req.ShippingMethod, req.PaymentMethod)
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": co})
	})

	authAPI.Get("/checkouts/{id:string}", func(ctx iris.Context) {
		co, err := checkoutSvc.GetCheckout(ctx.Request().Context(), actorFrom(ctx), ctx.Params().Get("id"))
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": co})
	})

	// ---------- 订单 ----------

	// 确认下单：以 checkout_id 为幂等键，重复提交返回同一订单
	authAPI.Post("/orders", middleware.ConfirmRateLimit(), func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		var req struct {
			CheckoutID string `json:"checkout_id"`
			Email      string `json:"email"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		o, err := orderSvc.ConfirmOrder(ctx.Request().Context(), userID, req.CheckoutID, req.Email)
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	authAPI.Get("/orders", func(ctx iris.Context) {
		list, err := orderSvc.ListOrders(ctx.Request().Context(), actorFrom(ctx), 50)
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	authAPI.Get("/orders/{no:string}", func(ctx iris.Context) {
		o, err := orderSvc.GetOrder(ctx.Request().Context(), actorFrom(ctx), ctx.Params().Get("no"))
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	authAPI.Post("/orders/{no:string}/cancel", func(ctx iris.Context) {
		o, err := orderSvc.CancelOrder(ctx.Request().Context(), ctx.Params().Get("no"), actorFrom(ctx))
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	authAPI.Get("/orders/{no:string}/tracking", func(ctx iris.Context) {
		t, err := orderSvc.GetTracking(ctx.Request().Context(), actorFrom(ctx), ctx.Params().Get("no"))
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": t})
	})

	authAPI.Post("/orders/{no:string}/confirm-delivery", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		o, err := orderSvc.ConfirmDelivery(ctx.Request().Context(), userID, ctx.Params().Get("no"), "web")
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	// ---------- 支付 ----------

	authAPI.Post("/payment-intents", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		var req struct {
			OrderNo         string `json:"order_no"`
			Method          string `json:"method"`
			PaymentMethodID int64  `json:"payment_method_id"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		intent, err := paymentSvc.CreatePaymentIntent(ctx.Request().Context(), userID, req.OrderNo, req.Method, req.PaymentMethodID)
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": intent})
	})

	authAPI.Post("/payment-intents/{id:string}/confirm", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		var req struct {
			Succeed *bool `json:"succeed"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		succeed := true
		if req.Succeed != nil {
			succeed = *req.Succeed
		}
		intent, err := paymentSvc.ConfirmCardPayment(ctx.Request().Context(), userID, ctx.Params().Get("id"), succeed)
		if err != nil {
			writeErr(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": intent})
	})
}
