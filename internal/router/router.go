// Package router 订阅相机命令主题，并把每条入站消息分发到唯一一个
// (camera, capability) 队列。分发从不阻塞，也从不广播。
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/metrics"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/models"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/queue"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/responder"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/transport"

	"go.uber.org/zap"
)

const (
	SuffixCommand    = "cmd"
	SuffixGetURL     = "get_url"
	SuffixGetURLRTSP = "get_url_rtsp"
)

var (
	// ErrUnknownCamera 主题中没有任何段与已配置的相机名相同
	ErrUnknownCamera = errors.New("no configured camera in topic")

	// ErrUnknownSuffix 主题后缀不是 cmd / get_url / get_url_rtsp
	ErrUnknownSuffix = errors.New("unsupported topic suffix")

	// ErrCameraMismatch 旧格式信封中的 camera 与主题不一致
	ErrCameraMismatch = errors.New("envelope camera does not match topic")
)

// 旧系统的 JSON 命令信封
type legacyEnvelope struct {
	Camera  string          `json:"camera"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

var legacyTypes = map[string]models.Capability{
	"ptz_preset": models.CapabilityPresetRecall,
	"ptz_move":   models.CapabilityPTZMove,
	"command":    models.CapabilityGeneric,
}

// Router 命令路由器
type Router struct {
	transport transport.Transport
	cameras   *models.CameraTable
	root      string
	queues    map[models.RouteKey]*queue.Queue[models.Command]
	metrics   *metrics.Metrics
	logger    *zap.Logger

	topics []string
}

// NewRouter 创建路由器；queues 在启动前构建完成，运行期只读
func NewRouter(
	t transport.Transport,
	cameras *models.CameraTable,
	root string,
	queues map[models.RouteKey]*queue.Queue[models.Command],
	m *metrics.Metrics,
	logger *zap.Logger,
) *Router {
	return &Router{
		transport: t,
		cameras:   cameras,
		root:      strings.Trim(root, "/"),
		queues:    queues,
		metrics:   m,
		logger:    logger.Named("router"),
	}
}

// Topics 每台相机的 <root>/<camera>/cmd 与 <root>/<camera>/get_url
func Topics(root string, cameras *models.CameraTable) []string {
	root = strings.Trim(root, "/")
	topics := make([]string, 0, cameras.Len()*2)
	for _, name := range cameras.Names() {
		base := name
		if root != "" {
			base = root + "/" + name
		}
		topics = append(topics, base+"/"+SuffixCommand, base+"/"+SuffixGetURL)
	}
	return topics
}

// Start 订阅所有命令主题（QoS 0）
func (r *Router) Start(ctx context.Context) error {
	topics := Topics(r.root, r.cameras)
	for _, topic := range topics {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.transport.Subscribe(topic, r.HandleMessage); err != nil {
			if len(r.topics) > 0 {
				_ = r.transport.Unsubscribe(r.topics...)
			}
			r.topics = nil
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		r.topics = append(r.topics, topic)
	}

	r.logger.Info("Command router started",
		zap.String("transport", r.transport.Kind()),
		zap.Strings("topics", r.topics),
	)
	return nil
}

// Stop 取消订阅
func (r *Router) Stop(ctx context.Context) error {
	if len(r.topics) == 0 {
		return nil
	}
	if err := r.transport.Unsubscribe(r.topics...); err != nil {
		r.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	r.topics = nil
	r.logger.Info("Command router stopped")
	return nil
}

// HandleMessage 处理一条入站消息
// 所有失败只记录日志；返回 nil，避免传输层重复记录。
func (r *Router) HandleMessage(topic string, payload []byte) error {
	text := strings.ToValidUTF8(string(payload), "�")
	r.logger.Info("Received command message",
		zap.String("topic", topic),
		zap.String("payload", text),
	)

	cmd, err := Classify(topic, text, r.cameras)
	if err != nil {
		r.logger.Warn("Command dropped",
			zap.String("topic", topic),
			zap.Error(err),
		)
		r.metrics.IncCommand("unknown", "rejected")
		return nil
	}

	log := r.logger.With(
		zap.String("camera", cmd.Camera),
		zap.String("capability", string(cmd.Capability)),
	)

	if cmd.Capability == models.CapabilityGeneric {
		log.Info("Generic command logged, not dispatched", zap.String("payload", cmd.Payload))
		r.metrics.IncCommand(string(cmd.Capability), "logged")
		return nil
	}

	q, ok := r.queues[cmd.Key()]
	if !ok {
		log.Warn("No handler for command, dropped", zap.String("topic", topic))
		r.metrics.IncCommand(string(cmd.Capability), "no_route")
		return nil
	}

	if err := q.Offer(cmd); err != nil {
		log.Error("Command queue rejected command",
			zap.String("queue", q.Name()),
			zap.Error(err),
		)
		r.metrics.IncCommand(string(cmd.Capability), "dropped")
		return nil
	}

	r.metrics.IncCommand(string(cmd.Capability), "dispatched")
	return nil
}

// Classify 由主题与负载得出命令
func Classify(topic, payload string, cameras *models.CameraTable) (models.Command, error) {
	segments := strings.Split(strings.Trim(topic, "/"), "/")

	camera := cameraSegment(segments, cameras)
	if camera == "" {
		return models.Command{}, fmt.Errorf("%w: %s", ErrUnknownCamera, topic)
	}

	cmd := models.Command{Camera: camera, SourceTopic: topic}
	payload = strings.TrimSpace(payload)

	switch segments[len(segments)-1] {
	case SuffixGetURL, SuffixGetURLRTSP:
		cmd.Capability = models.CapabilityRTSPRefresh
		cmd.Payload = payload
		return cmd, nil

	case SuffixCommand:
		capability, inner, err := classifyPayload(camera, payload)
		if err != nil {
			return models.Command{}, err
		}
		cmd.Capability = capability
		cmd.Payload = inner
		return cmd, nil

	default:
		return models.Command{}, fmt.Errorf("%w: %s", ErrUnknownSuffix, topic)
	}
}

// cameraSegment 相机名取后缀前的一段（<root>/<camera>/<suffix>）；
// 不匹配时退回从左到右找第一个已配置的相机名
func cameraSegment(segments []string, cameras *models.CameraTable) string {
	if n := len(segments); n >= 2 {
		if _, ok := cameras.Get(segments[n-2]); ok {
			return segments[n-2]
		}
	}
	for _, seg := range segments {
		if _, ok := cameras.Get(seg); ok {
			return seg
		}
	}
	return ""
}

func classifyPayload(camera, payload string) (models.Capability, string, error) {
	if _, err := strconv.Atoi(payload); err == nil {
		return models.CapabilityPresetRecall, payload, nil
	}
	if direction, _, _ := strings.Cut(payload, ":"); responder.IsDirection(direction) {
		return models.CapabilityPTZMove, payload, nil
	}

	if strings.HasPrefix(payload, "{") {
		var env legacyEnvelope
		if err := json.Unmarshal([]byte(payload), &env); err == nil {
			if capability, ok := legacyTypes[env.Type]; ok {
				if env.Camera != "" && env.Camera != camera {
					return "", "", fmt.Errorf("%w: %s != %s", ErrCameraMismatch, env.Camera, camera)
				}
				return capability, envelopePayload(env.Payload), nil
			}
		}
	}

	return models.CapabilityGeneric, payload, nil
}

// envelopePayload 字符串取其值，数字等其它 JSON 取原文
func envelopePayload(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}
