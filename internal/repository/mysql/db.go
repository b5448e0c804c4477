package mysql

import (
	"log"
	"sync"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/config"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/address"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/cart"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/checkout"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/order"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/payment"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/product"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/user"
)

var (
	db   *gorm.DB
	once sync.Once
)

// Init 初始化全局 GORM 实例并自动迁移表结构。
// TranslateError 打开后唯一键冲突会转成 gorm.ErrDuplicatedKey，
// 幂等下单/建意向依赖这一点。
func Init(cfg *config.MySQLConfig) *gorm.DB {
	once.Do(func() {
		var err error
		db, err = gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{TranslateError: true})
		if err != nil {
			log.Fatalf("failed to connect mysql: %v", err)
		}

		if err = db.AutoMigrate(
			&user.User{},
			&product.Product{},
			&product.StockMovement{},
			&cart.Cart{},
			&checkout.Checkout{},
			&order.Order{},
			&payment.Intent{},
			&payment.StoredMethod{},
			&address.Address{},
		); err != nil {
			log.Fatalf("auto migrate failed: %v", err)
		}
	})
	return db
}

// DB 获取全局 DB
func DB() *gorm.DB {
	return db
}
