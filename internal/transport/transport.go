package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	mqttcommon "github.com/hoangvanthinh/ses-110kv-thermal-mea/common/mqtt"
	rediscommon "github.com/hoangvanthinh/ses-110kv-thermal-mea/common/redis"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/config"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrNotConnected 传输当前未连接（MQTT 自动重连期间）
var ErrNotConnected = errors.New("transport not connected")

// Handler 入站消息回调
type Handler func(topic string, payload []byte) error

// Transport 发布/订阅传输（QoS 0，不保留）
type Transport interface {
	Kind() string
	Subscribe(topic string, handler Handler) error
	Unsubscribe(topics ...string) error
	Publish(topic string, payload []byte) error
	Close() error
}

// Handle 启动探测结果：Transport 非空为在线句柄，否则为回退模式
// 探测只进行一次，结果在进程生命周期内不变。
type Handle struct {
	Transport Transport
	Reason    string // 回退原因
}

// Live 是否拿到了在线传输
func (h Handle) Live() bool {
	return h.Transport != nil
}

func fallback(reason string) Handle {
	return Handle{Reason: reason}
}

// Probe 按配置尝试建立传输连接，失败时返回回退句柄，从不返回错误
func Probe(ctx context.Context, cfg *config.Config, logger *zap.Logger) Handle {
	if !cfg.Transport.Enabled {
		return fallback("transport disabled")
	}

	switch cfg.Transport.Kind {
	case config.TransportMQTT:
		client, err := mqttcommon.NewClient(&cfg.MQTT, logger.Named("mqtt"))
		if err != nil {
			return fallback(err.Error())
		}
		return Handle{Transport: &mqttTransport{client: client}}

	case config.TransportRedis:
		client, err := rediscommon.Connect(ctx, &cfg.Redis)
		if err != nil {
			return fallback(err.Error())
		}
		return Handle{Transport: NewRedisTransport(client, logger)}

	default:
		return fallback(fmt.Sprintf("unknown transport kind %q", cfg.Transport.Kind))
	}
}

// mqttTransport MQTT 实现
type mqttTransport struct {
	client *mqttcommon.Client
}

func (t *mqttTransport) Kind() string { return config.TransportMQTT }

func (t *mqttTransport) Subscribe(topic string, handler Handler) error {
	return t.client.Subscribe(topic, 0, mqttcommon.MessageHandler(handler))
}

func (t *mqttTransport) Unsubscribe(topics ...string) error {
	return t.client.Unsubscribe(topics...)
}

func (t *mqttTransport) Publish(topic string, payload []byte) error {
	if !t.client.IsConnected() {
		return ErrNotConnected
	}
	return t.client.Publish(topic, 0, false, payload)
}

func (t *mqttTransport) Close() error {
	t.client.Disconnect()
	return nil
}

// redisTransport Redis Pub/Sub 实现；主题名直接作为频道名
type redisTransport struct {
	client *redis.Client
	logger *zap.Logger

	mu   sync.Mutex
	subs map[string]*rediscommon.Subscription
}

// NewRedisTransport 基于已连接的 Redis 客户端创建传输
func NewRedisTransport(client *redis.Client, logger *zap.Logger) Transport {
	return &redisTransport{
		client: client,
		logger: logger.Named("redis"),
		subs:   make(map[string]*rediscommon.Subscription),
	}
}

func (t *redisTransport) Kind() string { return config.TransportRedis }

func (t *redisTransport) Subscribe(topic string, handler Handler) error {
	sub, err := rediscommon.Subscribe(context.Background(), t.client, t.logger, rediscommon.MessageHandler(handler), topic)
	if err != nil {
		return err
	}

	t.mu.Lock()
	old := t.subs[topic]
	t.subs[topic] = sub
	t.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (t *redisTransport) Unsubscribe(topics ...string) error {
	t.mu.Lock()
	var closing []*rediscommon.Subscription
	for _, topic := range topics {
		if sub, ok := t.subs[topic]; ok {
			closing = append(closing, sub)
			delete(t.subs, topic)
		}
	}
	t.mu.Unlock()

	var firstErr error
	for _, sub := range closing {
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *redisTransport) Publish(topic string, payload []byte) error {
	_, err := rediscommon.Publish(context.Background(), t.client, topic, payload)
	return err
}

func (t *redisTransport) Close() error {
	t.mu.Lock()
	topics := make([]string, 0, len(t.subs))
	for topic := range t.subs {
		topics = append(topics, topic)
	}
	t.mu.Unlock()

	_ = t.Unsubscribe(topics...)
	return t.client.Close()
}
