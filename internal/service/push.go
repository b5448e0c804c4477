package service

import (
	"context"
	"encoding/json"
	"time"

	radix "github.com/mediocregopher/radix/v3"

	"github.com/marianaArangoE/ecommerce-tracking-api-sub000/internal/datamodels/order"
)

// Redis 推送频道
const (
	channelTracking  = "order:tracking"
	channelDelivered = "order:delivered"
)

// TrackingUpdate 物流状态变更事件
type TrackingUpdate struct {
	OrderNo string                `json:"order_no"`
	Status  string                `json:"status"`
	History []order.TrackingEvent `json:"history"`
}

// DeliveryConfirmed 确认收货事件
type DeliveryConfirmed struct {
	OrderNo string    `json:"order_no"`
	UserID  int64     `json:"user_id"`
	At      time.Time `json:"at"`
}

// Publisher 实时推送发布器，fire-and-forget，核心不等待任何确认。
// 以注入接口替代直接访问连接注册表
type Publisher interface {
	PublishTrackingUpdate(ctx context.Context, e TrackingUpdate) error
	PublishDeliveryConfirmed(ctx context.Context, e DeliveryConfirmed) error
}

// NopPublisher 空实现
type NopPublisher struct{}

func (NopPublisher) PublishTrackingUpdate(ctx context.Context, e TrackingUpdate) error { return nil }
func (NopPublisher) PublishDeliveryConfirmed(ctx context.Context, e DeliveryConfirmed) error {
	return nil
}

// RedisPublisher 通过 Redis PUBLISH 广播，推送层自行订阅
type RedisPublisher struct {
	redis radix.Client
}

// NewRedisPublisher 创建 Redis 推送发布器
func NewRedisPublisher(redis radix.Client) *RedisPublisher {
	return &RedisPublisher{redis: redis}
}

func (p *RedisPublisher) PublishTrackingUpdate(ctx context.Context, e TrackingUpdate) error {
	body, err := json.Marshal(&e)
	if err != nil {
		return err
	}
	return p.redis.Do(radix.FlatCmd(nil, "PUBLISH", channelTracking, body))
}

func (p *RedisPublisher) PublishDeliveryConfirmed(ctx context.Context, e DeliveryConfirmed) error {
	body, err := json.Marshal(&e)
	if err != nil {
		return err
	}
	return p.redis.Do(radix.FlatCmd(nil, "PUBLISH", channelDelivered, body))
}
