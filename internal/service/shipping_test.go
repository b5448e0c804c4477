package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/config"
	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/checkout"
)

func shippingCfg() *config.ShippingConfig {
	cfg := config.DefaultConfig()
	return &cfg.Shipping
}

func TestComputeShippingFreeThreshold(t *testing.T) {
	cfg := shippingCfg()
	assert.EqualValues(t, 0, ComputeShipping(cfg, 50000, 10, 50, checkout.ShippingStandard))
	assert.EqualValues(t, 0, ComputeShipping(cfg, 60000, 1, 5, checkout.ShippingExpress))
	// 差一分也不免邮
	assert.NotEqualValues(t, 0, ComputeShipping(cfg, 49999, 1, 5, checkout.ShippingStandard))
}

func TestComputeShippingFloor(t *testing.T) {
	cfg := shippingCfg()
	// base 3000 + 500*1 + 20*1 = 3520，低于保底 4000
	assert.EqualValues(t, 4000, ComputeShipping(cfg, 1000, 1, 1, checkout.ShippingStandard))
	// 重量和距离不足 1 时按 1 计
	assert.EqualValues(t, 4000, ComputeShipping(cfg, 1000, 0.2, 0, checkout.ShippingStandard))
}

func TestComputeShippingExpressMultiplier(t *testing.T) {
	cfg := shippingCfg()
	// base 3000 + 500*2 + 20*50 = 5000
	std := ComputeShipping(cfg, 1000, 2, 50, checkout.ShippingStandard)
	exp := ComputeShipping(cfg, 1000, 2, 50, checkout.ShippingExpress)
	assert.EqualValues(t, 5000, std)
	assert.EqualValues(t, 7000, exp) // 5000 * 1.4
}

func TestPostalProximityEstimator(t *testing.T) {
	cfg := config.DefaultConfig()
	est := NewPostalProximityEstimator(&cfg.Warehouse)

	tests := []struct {
		name   string
		city   string
		postal string
		want   int64
	}{
		{"同城", cfg.Warehouse.City, "999999", 5},
		{"同城忽略大小写", "shenzhen", "999999", 5},
		{"邮编前缀相同", "Dongguan", cfg.Warehouse.PostalCode[:2] + "3000", 20},
		{"其余地区", "Beijing", "100000", 50},
		{"邮编过短", "Beijing", "1", 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, est.EstimateKm(tt.city, tt.postal))
		})
	}
}
