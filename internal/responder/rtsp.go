// Package responder 消费路由器分发的命令，访问相机接口并把结果写入输出队列。
package responder

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/fetch"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/metrics"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/models"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/queue"

	"go.uber.org/zap"
)

// RTSPResolver 所有相机共享的 RTSP 地址刷新器
type RTSPResolver struct {
	cameras      *models.CameraTable
	fetcher      fetch.Fetcher
	in           *queue.Queue[models.Command]
	out          *queue.Queue[models.Message]
	fetchOnStart bool
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewRTSPResolver 创建 RTSP 刷新器
func NewRTSPResolver(
	cameras *models.CameraTable,
	fetcher fetch.Fetcher,
	in *queue.Queue[models.Command],
	out *queue.Queue[models.Message],
	fetchOnStart bool,
	m *metrics.Metrics,
	logger *zap.Logger,
) *RTSPResolver {
	return &RTSPResolver{
		cameras:      cameras,
		fetcher:      fetcher,
		in:           in,
		out:          out,
		fetchOnStart: fetchOnStart,
		metrics:      m,
		logger:       logger.Named("rtsp"),
	}
}

// Run 处理命令直到 ctx 取消或输入队列关闭
func (r *RTSPResolver) Run(ctx context.Context) {
	r.logger.Info("RTSP resolver started", zap.Bool("fetch_on_start", r.fetchOnStart))

	if r.fetchOnStart {
		r.cameras.Each(func(c *models.CameraDescriptor) {
			if c.RTSPResolverURL == "" || ctx.Err() != nil {
				return
			}
			r.refresh(ctx, c)
		})
	}

	for {
		cmd, err := r.in.Receive(ctx)
		if err != nil {
			break
		}
		r.Handle(ctx, cmd)
	}

	r.logger.Info("RTSP resolver stopped")
}

// Handle 处理一条 rtsp-refresh 命令
func (r *RTSPResolver) Handle(ctx context.Context, cmd models.Command) {
	camera, ok := r.cameras.Get(cmd.Camera)
	if !ok {
		r.logger.Warn("RTSP refresh for unknown camera, dropped",
			zap.String("camera", cmd.Camera),
			zap.String("topic", cmd.SourceTopic),
		)
		return
	}
	if camera.RTSPResolverURL == "" {
		r.logger.Warn("Camera has no url_get_rtsp_url, refresh dropped",
			zap.String("camera", camera.Name),
		)
		return
	}
	r.refresh(ctx, camera)
}

func (r *RTSPResolver) refresh(ctx context.Context, camera *models.CameraDescriptor) {
	log := r.logger.With(zap.String("camera", camera.Name))

	body, err := r.fetcher.Fetch(ctx, camera.RTSPResolverURL, camera.Timeout,
		fetch.Credentials{Username: camera.Username, Password: camera.Password})
	if err != nil && ctx.Err() != nil {
		return
	}

	result := models.RTSPResult{
		Camera:      camera.Name,
		ResolverURL: camera.RTSPResolverURL,
		Timestamp:   time.Now(),
	}
	if err != nil {
		log.Error("RTSP URL fetch failed",
			zap.String("url", camera.RTSPResolverURL),
			zap.Error(err),
		)
		result.Status = models.StatusError
		result.Error = err.Error()
	} else {
		result.Status = models.StatusOK
		result.RTSPURL = RewriteRTSPURL(strings.TrimSpace(body), camera.Username, camera.Password)
		log.Info("Fetched RTSP URL", zap.String("url", camera.RTSPResolverURL))
	}

	emit(r.out, result, r.metrics, log)
}

// RewriteRTSPURL 在主机前嵌入 user:pass@
// 仅当用户名与密码都非空、地址含 "://" 且尚无 userinfo 时改写。
func RewriteRTSPURL(raw, username, password string) string {
	if username == "" || password == "" {
		return raw
	}
	idx := strings.Index(raw, "://")
	if idx < 0 {
		return raw
	}
	scheme, rest := raw[:idx], raw[idx+3:]

	authority := rest
	if slash := strings.IndexAny(rest, "/?#"); slash >= 0 {
		authority = rest[:slash]
	}
	if strings.Contains(authority, "@") {
		return raw
	}

	return scheme + "://" + url.UserPassword(username, password).String() + "@" + rest
}

// emit 非阻塞写入输出队列并计数
func emit(out *queue.Queue[models.Message], msg models.Message, m *metrics.Metrics, log *zap.Logger) {
	capability, status := resultLabels(msg)
	if err := out.Offer(msg); err != nil {
		level := log.Warn
		if errors.Is(err, queue.ErrQueueClosed) {
			level = log.Debug
		}
		level("Output queue rejected result",
			zap.String("kind", string(msg.Kind())),
			zap.Error(err),
		)
		return
	}
	m.IncResult(capability, status)
}

func resultLabels(msg models.Message) (string, string) {
	switch v := msg.(type) {
	case models.RTSPResult:
		return string(models.CapabilityRTSPRefresh), string(v.Status)
	case models.PTZResult:
		return string(v.Capability), string(v.Status)
	default:
		return string(msg.Kind()), ""
	}
}
