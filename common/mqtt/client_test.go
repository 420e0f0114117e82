package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hoangvanthinh/ses-110kv-thermal-mea/common/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// doneToken 立即完成的 token
type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakeClient 只实现订阅相关方法，其它方法调用会 panic
type fakeClient struct {
	mqtt.Client

	mu           sync.Mutex
	subscribed   map[string]mqtt.MessageHandler
	subscribes   []string
	subscribeErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{subscribed: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeClient) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes = append(f.subscribes, topic)
	if f.subscribeErr != nil {
		return doneToken{err: f.subscribeErr}
	}
	f.subscribed[topic] = callback
	return doneToken{}
}

func (f *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, topic := range topics {
		delete(f.subscribed, topic)
	}
	return doneToken{}
}

// dropSession 模拟 clean session 重连：broker 端订阅全部丢失
func (f *fakeClient) dropSession() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = make(map[string]mqtt.MessageHandler)
}

func (f *fakeClient) deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	callback, ok := f.subscribed[topic]
	f.mu.Unlock()
	if !ok {
		return false
	}
	callback(f, fakeMessage{topic: topic, payload: payload})
	return true
}

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

func newTestClient(fc *fakeClient, logger *zap.Logger) *Client {
	return &Client{
		client: fc,
		config: &config.MQTTConfig{Broker: "tcp://fake:1883"},
		logger: logger,
		subs:   make(map[string]subscription),
	}
}

func TestResubscribe_RestoresAfterReconnect(t *testing.T) {
	fc := newFakeClient()
	c := newTestClient(fc, zap.NewNop())

	var got []string
	require.NoError(t, c.Subscribe("camera/cam1/cmd", 0, func(topic string, payload []byte) error {
		got = append(got, topic+"="+string(payload))
		return nil
	}))

	fc.dropSession()
	assert.False(t, fc.deliver("camera/cam1/cmd", []byte("left")))

	c.resubscribe(fc)

	assert.Equal(t, []string{"camera/cam1/cmd", "camera/cam1/cmd"}, fc.subscribes)
	require.True(t, fc.deliver("camera/cam1/cmd", []byte("left:3")))
	assert.Equal(t, []string{"camera/cam1/cmd=left:3"}, got)
}

func TestResubscribe_SkipsUnsubscribedTopics(t *testing.T) {
	fc := newFakeClient()
	c := newTestClient(fc, zap.NewNop())
	handler := func(string, []byte) error { return nil }

	require.NoError(t, c.Subscribe("camera/cam1/cmd", 0, handler))
	require.NoError(t, c.Subscribe("camera/cam1/get_url", 0, handler))
	require.NoError(t, c.Unsubscribe("camera/cam1/cmd", "camera/cam1/get_url"))

	c.resubscribe(fc)

	assert.Len(t, fc.subscribes, 2)
	assert.Empty(t, fc.subscribed)
}

func TestResubscribe_FirstConnectIsNoop(t *testing.T) {
	fc := newFakeClient()
	c := newTestClient(fc, zap.NewNop())

	c.resubscribe(fc)

	assert.Empty(t, fc.subscribes)
}

func TestResubscribe_LogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	fc := newFakeClient()
	c := newTestClient(fc, zap.New(core))

	require.NoError(t, c.Subscribe("camera/cam1/cmd", 0, func(string, []byte) error { return nil }))
	fc.subscribeErr = errors.New("not authorized")

	c.resubscribe(fc)

	require.Equal(t, 1, logs.FilterMessage("Failed to restore MQTT subscription").Len())
	restored := logs.FilterMessage("MQTT subscriptions restored").All()
	require.Len(t, restored, 1)
	assert.Equal(t, int64(0), restored[0].ContextMap()["restored"])
	assert.Equal(t, int64(1), restored[0].ContextMap()["total"])
}

func TestSubscribe_HandlerErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	fc := newFakeClient()
	c := newTestClient(fc, zap.New(core))

	require.NoError(t, c.Subscribe("camera/cam1/cmd", 0, func(string, []byte) error {
		return errors.New("bad payload")
	}))
	require.True(t, fc.deliver("camera/cam1/cmd", []byte("x")))

	assert.Equal(t, 1, logs.FilterMessage("Error handling MQTT message").Len())
}

func TestSubscribe_FailureNotRecorded(t *testing.T) {
	fc := newFakeClient()
	fc.subscribeErr = errors.New("not connected")
	c := newTestClient(fc, zap.NewNop())

	err := c.Subscribe("camera/cam1/cmd", 0, func(string, []byte) error { return nil })
	require.Error(t, err)

	fc.subscribeErr = nil
	c.resubscribe(fc)
	assert.Len(t, fc.subscribes, 1)
}
