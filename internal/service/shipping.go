package service

import (
	"math"
	"strings"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/config"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/checkout"
)

// ComputeShipping 运费计算，纯函数无副作用。
// 小计达到免邮门槛返回 0，否则按
// max(floor, round((base + perKg*max(1,weight) + perKm*max(1,distance)) * 系数)) 计费，
// express 系数取配置（默认 1.4），standard 为 1.0。
func ComputeShipping(cfg *config.ShippingConfig, subtotalCents int64, weightKg float64, distanceKm int64, method string) int64 {
	if subtotalCents >= cfg.FreeThresholdCents {
		return 0
	}
	weight := weightKg
	if weight < 1 {
		weight = 1
	}
	distance := distanceKm
	if distance < 1 {
		distance = 1
	}
	mult := 1.0
	if method == checkout.ShippingExpress {
		mult = cfg.ExpressMultiplier
	}
	raw := float64(cfg.BaseCents) + float64(cfg.PerKgCents)*weight + float64(cfg.PerKmCents)*float64(distance)
	fee := int64(math.Round(raw * mult))
	if fee < cfg.FloorCents {
		fee = cfg.FloorCents
	}
	return fee
}

// DistanceEstimator 配送距离估算器。当前实现基于邮编/城市的粗略
// 就近规则，后续可替换为真实地理服务
type DistanceEstimator interface {
	EstimateKm(city, postalCode string) int64
}

type postalProximityEstimator struct {
	warehouseCity   string
	warehousePostal string
}

// NewPostalProximityEstimator 基于发货仓城市与邮编前缀的距离估算：
// 同城 5km，邮编前两位相同 20km，其余 50km
func NewPostalProximityEstimator(cfg *config.WarehouseConfig) DistanceEstimator {
	return &postalProximityEstimator{
		warehouseCity:   cfg.City,
		warehousePostal: cfg.PostalCode,
	}
}

func (e *postalProximityEstimator) EstimateKm(city, postalCode string) int64 {
	if city != "" && strings.EqualFold(city, e.warehouseCity) {
		return 5
	}
	if len(postalCode) >= 2 && len(e.warehousePostal) >= 2 &&
		postalCode[:2] == e.warehousePostal[:2] {
		return 20
	}
	return 50
}
