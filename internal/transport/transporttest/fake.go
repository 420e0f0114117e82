// Package transporttest 提供内存中的 transport.Transport 实现
package transporttest

import (
	"fmt"
	"sync"

	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/transport"
)

// Published 一次发布记录
type Published struct {
	Topic   string
	Payload []byte
}

// Transport 记录订阅与发布；Deliver 模拟入站消息
type Transport struct {
	mu         sync.Mutex
	handlers   map[string]transport.Handler
	published  []Published
	publishErr error
	closed     bool
}

// New 创建内存传输
func New() *Transport {
	return &Transport{handlers: make(map[string]transport.Handler)}
}

func (t *Transport) Kind() string { return "fake" }

func (t *Transport) Subscribe(topic string, handler transport.Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[topic] = handler
	return nil
}

func (t *Transport) Unsubscribe(topics ...string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, topic := range topics {
		delete(t.handlers, topic)
	}
	return nil
}

func (t *Transport) Publish(topic string, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.publishErr != nil {
		return t.publishErr
	}
	t.published = append(t.published, Published{Topic: topic, Payload: append([]byte(nil), payload...)})
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// FailPublish 之后的 Publish 都返回 err
func (t *Transport) FailPublish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.publishErr = err
}

// Topics 当前订阅的主题
func (t *Transport) Topics() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.handlers))
	for topic := range t.handlers {
		out = append(out, topic)
	}
	return out
}

// Deliver 将消息交给订阅了 topic 的处理器
func (t *Transport) Deliver(topic string, payload []byte) error {
	t.mu.Lock()
	h, ok := t.handlers[topic]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("no subscriber for %s", topic)
	}
	return h(topic, payload)
}

// Published 发布记录副本
func (t *Transport) Published() []Published {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Published, len(t.published))
	copy(out, t.published)
	return out
}

// Closed 是否已关闭
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
