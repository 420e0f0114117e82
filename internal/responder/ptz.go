package responder

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/fetch"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/metrics"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/models"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/queue"

	"go.uber.org/zap"
)

// DefaultSpeed 移动命令未指定速度时使用
const DefaultSpeed = 5

// 方向 -> 相机 action 参数
var moveActions = map[string]string{
	"up":       "moveUp",
	"down":     "moveDown",
	"left":     "moveLeft",
	"right":    "moveRight",
	"zoom_in":  "zoomIn",
	"zoom_out": "zoomOut",
	"stop":     "stop",
}

// IsDirection 是否为支持的云台方向
func IsDirection(direction string) bool {
	_, ok := moveActions[direction]
	return ok
}

// PTZController 单台相机的云台控制器
type PTZController struct {
	camera  *models.CameraDescriptor
	fetcher fetch.Fetcher
	presets *queue.Queue[models.Command]
	moves   *queue.Queue[models.Command]
	out     *queue.Queue[models.Message]
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewPTZController 创建云台控制器
// presets / moves 是该相机私有的 preset-recall 与 ptz-move 队列。
func NewPTZController(
	camera *models.CameraDescriptor,
	fetcher fetch.Fetcher,
	presets, moves *queue.Queue[models.Command],
	out *queue.Queue[models.Message],
	m *metrics.Metrics,
	logger *zap.Logger,
) *PTZController {
	return &PTZController{
		camera:  camera,
		fetcher: fetcher,
		presets: presets,
		moves:   moves,
		out:     out,
		metrics: m,
		logger:  logger.Named("ptz").With(zap.String("camera", camera.Name)),
	}
}

// Run 处理命令直到 ctx 取消或任一输入队列关闭
func (p *PTZController) Run(ctx context.Context) {
	p.logger.Info("PTZ controller started", zap.String("base_url", p.camera.PTZBaseURL))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("PTZ controller stopped")
			return
		case <-p.presets.Done():
			p.logger.Info("PTZ controller stopped")
			return
		case <-p.moves.Done():
			p.logger.Info("PTZ controller stopped")
			return
		case cmd := <-p.presets.Items():
			p.Handle(ctx, cmd)
		case cmd := <-p.moves.Items():
			p.Handle(ctx, cmd)
		}
	}
}

// Handle 按能力分派一条命令
func (p *PTZController) Handle(ctx context.Context, cmd models.Command) {
	switch cmd.Capability {
	case models.CapabilityPresetRecall:
		p.recallPreset(ctx, cmd)
	case models.CapabilityPTZMove:
		p.move(ctx, cmd)
	default:
		p.logger.Warn("Unsupported PTZ capability, dropped",
			zap.String("capability", string(cmd.Capability)),
		)
	}
}

func (p *PTZController) recallPreset(ctx context.Context, cmd models.Command) {
	presetID, err := strconv.Atoi(strings.TrimSpace(cmd.Payload))
	if err != nil {
		p.logger.Error("Invalid preset ID", zap.String("payload", cmd.Payload))
		return
	}

	presetURL := FindPresetURL(p.camera.NodeThermals, presetID)
	if presetURL == "" {
		p.logger.Error("Preset not found", zap.Int("preset_id", presetID))
		return
	}

	result := models.PTZResult{
		Camera:     p.camera.Name,
		Capability: models.CapabilityPresetRecall,
		PresetID:   presetID,
	}
	if !p.invoke(ctx, presetURL, &result) {
		return
	}
	p.logger.Info("PTZ preset executed",
		zap.Int("preset_id", presetID),
		zap.String("status", string(result.Status)),
	)
	emit(p.out, result, p.metrics, p.logger)
}

func (p *PTZController) move(ctx context.Context, cmd models.Command) {
	direction, speed, err := ParseMove(cmd.Payload)
	if err != nil {
		p.logger.Error("Invalid PTZ move command",
			zap.String("payload", cmd.Payload),
			zap.Error(err),
		)
		return
	}
	if p.camera.PTZBaseURL == "" {
		p.logger.Error("No base_url configured for PTZ moves")
		return
	}

	result := models.PTZResult{
		Camera:     p.camera.Name,
		Capability: models.CapabilityPTZMove,
		Direction:  direction,
		Speed:      speed,
	}
	if !p.invoke(ctx, MoveURL(p.camera.PTZBaseURL, direction, speed), &result) {
		return
	}
	p.logger.Info("PTZ move executed",
		zap.String("direction", direction),
		zap.Int("speed", speed),
		zap.String("status", string(result.Status)),
	)
	emit(p.out, result, p.metrics, p.logger)
}

// invoke 访问 url 并填充结果状态；被取消时返回 false
func (p *PTZController) invoke(ctx context.Context, target string, result *models.PTZResult) bool {
	_, err := p.fetcher.Fetch(ctx, target, p.camera.Timeout,
		fetch.Credentials{Username: p.camera.Username, Password: p.camera.Password})
	result.Timestamp = time.Now()
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("PTZ request failed", zap.String("url", target), zap.Error(err))
		result.Status = models.StatusError
		result.Error = err.Error()
		return true
	}
	result.Status = models.StatusOK
	return true
}

// FindPresetURL 返回第一个查询串中含 presetID=<id> 的预置位 URL
// 标记前须为 ? 或 &，后须为 &、# 或字符串结尾：presetID=1 不会匹配
// presetID=12，也不会匹配 xpresetID=1。
func FindPresetURL(nodes []models.NodeThermal, presetID int) string {
	token := "presetID=" + strconv.Itoa(presetID)
	for _, n := range nodes {
		if containsToken(n.PresetURL, token) {
			return n.PresetURL
		}
	}
	return ""
}

func containsToken(s, token string) bool {
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], token)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(token)
		leading := start == 0 || s[start-1] == '?' || s[start-1] == '&'
		if leading && (end == len(s) || s[end] == '&' || s[end] == '#') {
			return true
		}
		from = end
	}
	return false
}

// ParseMove 解析 direction[:speed]
func ParseMove(payload string) (string, int, error) {
	payload = strings.TrimSpace(payload)
	direction, speedText, hasSpeed := strings.Cut(payload, ":")

	speed := DefaultSpeed
	if hasSpeed {
		v, err := strconv.Atoi(strings.TrimSpace(speedText))
		if err != nil {
			return "", 0, fmt.Errorf("invalid speed %q: %w", speedText, err)
		}
		speed = v
	}

	if !IsDirection(direction) {
		return "", 0, fmt.Errorf("invalid direction %q", direction)
	}
	return direction, speed, nil
}

// MoveURL 组合移动请求地址；base 已带查询串时用 & 连接
func MoveURL(base, direction string, speed int) string {
	query := "action=" + moveActions[direction]
	if direction != "stop" {
		query += "&speed=" + strconv.Itoa(speed)
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + query
}
