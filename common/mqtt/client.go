package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hoangvanthinh/ses-110kv-thermal-mea/common/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// ErrConnectTimeout 在限定时间内未完成与 broker 的连接
var ErrConnectTimeout = errors.New("mqtt connect timed out")

// MessageHandler 消息处理函数类型
type MessageHandler func(topic string, payload []byte) error

// subscription 记录已订阅的主题，重连后据此恢复
type subscription struct {
	qos      byte
	callback mqtt.MessageHandler
}

// Client MQTT客户端封装
type Client struct {
	client mqtt.Client
	config *config.MQTTConfig
	logger *zap.Logger

	mu   sync.Mutex
	subs map[string]subscription
}

// NewClient 创建MQTT客户端并完成首次连接
// 首次连接失败直接返回错误，由调用方决定是否进入回退模式。
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectTimeout(timeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.String("broker", cfg.Broker), zap.Error(err))
	})

	c := &Client{
		config: cfg,
		logger: logger,
		subs:   make(map[string]subscription),
	}

	// clean session 重连后 broker 不保留订阅，需要重新订阅
	opts.SetOnConnectHandler(c.resubscribe)

	client := mqtt.NewClient(opts)
	c.client = client

	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, ErrConnectTimeout)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, token.Error())
	}

	return c, nil
}

// Subscribe 订阅主题，并记录下来供重连时恢复
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	callback := func(_ mqtt.Client, msg mqtt.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			// 记录错误，但不中断处理
			c.logger.Warn("Error handling MQTT message",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	}

	if token := c.client.Subscribe(topic, qos, callback); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}

	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, callback: callback}
	c.mu.Unlock()
	return nil
}

// resubscribe 在（重新）连接后恢复全部订阅；首次连接时列表为空
func (c *Client) resubscribe(client mqtt.Client) {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, sub := range c.subs {
		subs[topic] = sub
	}
	c.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	restored := 0
	for topic, sub := range subs {
		token := client.Subscribe(topic, sub.qos, sub.callback)
		if token.Wait() && token.Error() != nil {
			c.logger.Error("Failed to restore MQTT subscription",
				zap.String("topic", topic),
				zap.Error(token.Error()),
			)
			continue
		}
		restored++
	}

	c.logger.Info("MQTT subscriptions restored",
		zap.Int("restored", restored),
		zap.Int("total", len(subs)),
	)
}

// Publish 发布消息
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}

	return nil
}

// Unsubscribe 取消订阅
func (c *Client) Unsubscribe(topics ...string) error {
	c.mu.Lock()
	for _, topic := range topics {
		delete(c.subs, topic)
	}
	c.mu.Unlock()

	token := c.client.Unsubscribe(topics...)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe: %w", token.Error())
	}

	return nil
}

// Disconnect 断开连接
func (c *Client) Disconnect() {
	c.client.Disconnect(250) // 250ms等待时间
}

// IsConnected 检查连接状态
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}
