package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// MessageHandler Pub/Sub 消息处理函数
type MessageHandler func(channel string, payload []byte) error

// Subscription 一组频道的订阅，Close 后后台协程退出
type Subscription struct {
	pubsub *redis.PubSub
	done   chan struct{}
}

// Publish 发布消息到频道（PUBLISH，无持久化，无订阅者时消息直接丢弃）
// 返回收到消息的订阅者数量。
func Publish(ctx context.Context, client *redis.Client, channel string, payload []byte) (int64, error) {
	n, err := client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to publish to channel %s: %w", channel, err)
	}
	return n, nil
}

// Subscribe 订阅频道，等待服务端确认后在后台协程中逐条调用 handler
func Subscribe(ctx context.Context, client *redis.Client, logger *zap.Logger, handler MessageHandler, channels ...string) (*Subscription, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ps := client.Subscribe(ctx, channels...)
	// 第一条回复是订阅确认
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to channels %v: %w", channels, err)
	}

	s := &Subscription{
		pubsub: ps,
		done:   make(chan struct{}),
	}

	ch := ps.Channel()
	go func() {
		defer close(s.done)
		for msg := range ch {
			if err := handler(msg.Channel, []byte(msg.Payload)); err != nil {
				logger.Warn("Error handling Redis message",
					zap.String("channel", msg.Channel),
					zap.Error(err),
				)
			}
		}
	}()

	return s, nil
}

// Unsubscribe 取消部分频道
func (s *Subscription) Unsubscribe(ctx context.Context, channels ...string) error {
	if err := s.pubsub.Unsubscribe(ctx, channels...); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}

// Close 关闭订阅并等待后台协程退出
func (s *Subscription) Close() error {
	err := s.pubsub.Close()
	<-s.done
	return err
}
