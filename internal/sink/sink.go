// Package sink 将输出队列中的消息发布到传输层，或在回退模式下写入本地日志。
package sink

import (
	"context"
	"encoding/json"

	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/metrics"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/models"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/queue"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/transport"

	"go.uber.org/zap"
)

const (
	ModeTransport = "transport"
	ModeFallback  = "fallback"
)

// Sink 遥测输出
// 模式在创建时由传输探测结果决定，进程生命周期内不变。
type Sink struct {
	transport transport.Transport
	topic     string
	in        *queue.Queue[models.Message]
	fallback  *zap.Logger
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewSink 创建 Sink；handle 不在线时进入回退模式
func NewSink(
	handle transport.Handle,
	topic string,
	in *queue.Queue[models.Message],
	fallback *zap.Logger,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Sink {
	s := &Sink{
		transport: handle.Transport,
		topic:     topic,
		in:        in,
		fallback:  fallback,
		metrics:   m,
		logger:    logger.Named("sink"),
	}

	if handle.Live() {
		s.logger.Info("Telemetry sink in transport mode",
			zap.String("transport", handle.Transport.Kind()),
			zap.String("topic", topic),
		)
	} else {
		s.logger.Warn("Telemetry sink in fallback mode",
			zap.String("reason", handle.Reason),
		)
	}
	return s
}

// Mode transport 或 fallback
func (s *Sink) Mode() string {
	if s.transport != nil {
		return ModeTransport
	}
	return ModeFallback
}

// Run 消费输出队列，队列关闭或 ctx 取消后立即返回，不再处理剩余消息
func (s *Sink) Run(ctx context.Context) {
	for {
		msg, err := s.in.Receive(ctx)
		if err != nil {
			s.logger.Info("Telemetry sink stopped",
				zap.Int("discarded", s.in.Len()),
				zap.Error(err),
			)
			return
		}
		s.Deliver(msg)
	}
}

// Deliver 编码并投递一条消息；失败只记录日志
func (s *Sink) Deliver(msg models.Message) {
	mode := s.Mode()

	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Failed to encode message",
			zap.String("kind", string(msg.Kind())),
			zap.String("camera", msg.CameraName()),
			zap.Error(err),
		)
		s.metrics.IncSink(mode, "encode_error")
		return
	}

	if s.transport == nil {
		s.fallback.Info("telemetry",
			zap.String("kind", string(msg.Kind())),
			zap.String("camera", msg.CameraName()),
			zap.Reflect("message", json.RawMessage(data)),
		)
		s.metrics.IncSink(mode, "logged")
		return
	}

	if err := s.transport.Publish(s.topic, data); err != nil {
		s.logger.Error("Failed to publish message",
			zap.String("topic", s.topic),
			zap.String("kind", string(msg.Kind())),
			zap.String("camera", msg.CameraName()),
			zap.Error(err),
		)
		s.metrics.IncSink(mode, "publish_error")
		return
	}

	s.logger.Debug("Published message",
		zap.String("topic", s.topic),
		zap.String("kind", string(msg.Kind())),
		zap.Int("payload_size", len(data)),
	)
	s.metrics.IncSink(mode, "published")
}
