// Package poller 实现单台相机的温度轮询：
// 对每个测温区域依次执行 预置位 -> 等待稳定 -> 读取温度 -> 解析 -> 发送。
package poller

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/fetch"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/metrics"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/models"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/queue"

	"go.uber.org/zap"
)

// TemperatureLabel 温度接口响应中平均温度所在行的前缀
const TemperatureLabel = "aveTemperature="

// Poller 单台相机的轮询器
type Poller struct {
	camera  *models.CameraDescriptor
	fetcher fetch.Fetcher
	out     *queue.Queue[models.Message]
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewPoller 创建轮询器
func NewPoller(
	camera *models.CameraDescriptor,
	fetcher fetch.Fetcher,
	out *queue.Queue[models.Message],
	m *metrics.Metrics,
	logger *zap.Logger,
) *Poller {
	return &Poller{
		camera:  camera,
		fetcher: fetcher,
		out:     out,
		metrics: m,
		logger:  logger.Named("poller").With(zap.String("camera", camera.Name)),
	}
}

// Run 运行轮询循环，直到 ctx 取消
// 第一个周期立即开始；周期结束后等待 Interval 再开始下一周期。
func (p *Poller) Run(ctx context.Context) {
	if len(p.camera.NodeThermals) == 0 {
		p.logger.Error("No node_thermals configured, poller exits")
		return
	}

	p.logger.Info("Poller started",
		zap.Int("node_thermals", len(p.camera.NodeThermals)),
		zap.Duration("interval", p.camera.Interval),
		zap.Duration("settle", p.camera.Settle),
	)

	for {
		if !p.PollOnce(ctx) {
			break
		}
		if !sleep(ctx, p.camera.Interval) {
			break
		}
	}

	p.logger.Info("Poller stopped")
}

// PollOnce 执行一个完整周期；被取消时返回 false
// 单个区域的失败不会影响后续区域。
func (p *Poller) PollOnce(ctx context.Context) bool {
	for _, node := range p.camera.NodeThermals {
		if ctx.Err() != nil {
			return false
		}
		if !p.pollNode(ctx, node) {
			return false
		}
	}
	return ctx.Err() == nil
}

// pollNode 处理一个测温区域；仅在被取消时返回 false
func (p *Poller) pollNode(ctx context.Context, node models.NodeThermal) bool {
	log := p.logger.With(zap.String("node_thermal", node.Name))

	if node.AreaTemperatureURL == "" {
		log.Error("Missing url_areaTemperature, node skipped")
		return true
	}

	creds := fetch.Credentials{Username: p.camera.Username, Password: p.camera.Password}

	if node.PresetURL != "" {
		if _, err := p.fetcher.Fetch(ctx, node.PresetURL, p.camera.Timeout, creds); err != nil {
			if ctx.Err() != nil {
				return false
			}
			logFetchError(log, "Preset invocation failed, node skipped", node.PresetURL, err)
			return true
		}
		log.Info("Invoked preset", zap.String("url", node.PresetURL))

		if !sleep(ctx, p.camera.Settle) {
			return false
		}
	}

	body, err := p.fetcher.Fetch(ctx, node.AreaTemperatureURL, p.camera.Timeout, creds)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		logFetchError(log, "Temperature read failed", node.AreaTemperatureURL, err)
		return true
	}

	value, ok := ParseTemperature(body)
	if !ok {
		log.Warn("Temperature label missing or not numeric, reading dropped",
			zap.String("url", node.AreaTemperatureURL),
			zap.String("label", TemperatureLabel),
			zap.Int("body_size", len(body)),
		)
		return true
	}

	reading := models.Reading{
		Camera:      p.camera.Name,
		NodeThermal: node.Name,
		URL:         node.AreaTemperatureURL,
		Timestamp:   time.Now(),
		Temperature: value,
	}
	if err := p.out.Offer(reading); err != nil {
		log.Warn("Output queue rejected reading",
			zap.String("queue", p.out.Name()),
			zap.Error(err),
		)
		return true
	}

	p.metrics.IncReading(p.camera.Name)
	log.Debug("Reading emitted", zap.String("data_t", value))
	return true
}

// ParseTemperature 从响应中取出 aveTemperature= 行的数值
func ParseTemperature(body string) (string, bool) {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, TemperatureLabel) {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(line, TemperatureLabel))
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return "", false
		}
		return value, true
	}
	return "", false
}

// sleep 可被 ctx 中断的等待；被中断返回 false
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func logFetchError(log *zap.Logger, msg, url string, err error) {
	var perr *fetch.ProtocolError
	if errors.As(err, &perr) {
		log.Error(msg,
			zap.String("url", url),
			zap.String("error_kind", "protocol"),
			zap.Int("status_code", perr.StatusCode),
		)
		return
	}
	log.Error(msg,
		zap.String("url", url),
		zap.String("error_kind", "transport"),
		zap.Error(err),
	)
}
