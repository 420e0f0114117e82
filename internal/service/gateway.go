package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/config"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/fetch"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/metrics"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/models"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/poller"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/queue"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/responder"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/router"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/sink"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/transport"

	"go.uber.org/zap"
)

// ServiceName 日志与指标使用的服务名
const ServiceName = "thermal-gateway"

// ErrAlreadyStarted Start 只能调用一次
var ErrAlreadyStarted = errors.New("gateway service already started")

type probeFunc func(ctx context.Context, cfg *config.Config, logger *zap.Logger) transport.Handle

type worker struct {
	name string
	done chan struct{}
}

// GatewayService 热成像网关：启动全部 worker，持有共享的取消信号，负责有界等待的关闭
type GatewayService struct {
	config   *config.Config
	cameras  *models.CameraTable
	fetcher  fetch.Fetcher
	metrics  *metrics.Metrics
	logger   *zap.Logger
	fallback *zap.Logger
	probe    probeFunc

	mu       sync.Mutex
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	handle   transport.Handle
	output   *queue.Queue[models.Message]
	commands map[models.RouteKey]*queue.Queue[models.Command]
	rtsp     *queue.Queue[models.Command]
	router   *router.Router
	workers  []worker
}

// NewGatewayService 创建网关服务
// fallback 是传输不可用时遥测消息的去处。
func NewGatewayService(
	cfg *config.Config,
	cameras *models.CameraTable,
	fetcher fetch.Fetcher,
	logger *zap.Logger,
	fallback *zap.Logger,
) *GatewayService {
	return &GatewayService{
		config:   cfg,
		cameras:  cameras,
		fetcher:  fetcher,
		metrics:  metrics.New(ServiceName),
		logger:   logger,
		fallback: fallback,
		probe:    transport.Probe,
	}
}

// Metrics 服务的指标集合
func (s *GatewayService) Metrics() *metrics.Metrics {
	return s.metrics
}

// Start 依次启动 sink、响应者、轮询器，最后启动命令路由
func (s *GatewayService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.logger.Info("Starting gateway service components",
		zap.Int("cameras", s.cameras.Len()),
		zap.Int("output_queue_size", s.config.Queues.OutputSize),
		zap.Int("command_queue_size", s.config.Queues.CommandSize),
	)

	// 1. 队列
	s.output = queue.New[models.Message]("output", s.config.Queues.OutputSize)
	s.metrics.RegisterQueue(s.output.Name(), s.output.Stats)
	s.commands = s.buildCommandQueues()

	// 2. 传输探测（只做一次）
	s.handle = s.probe(runCtx, s.config, s.logger)
	if s.handle.Live() {
		s.logger.Info("Transport connected", zap.String("transport", s.handle.Transport.Kind()))
	} else {
		s.logger.Warn("Transport unavailable, using fallback log", zap.String("reason", s.handle.Reason))
	}

	// 3. Sink
	out := sink.NewSink(s.handle, s.config.Transport.TelemetryTopic, s.output, s.fallback, s.metrics, s.logger)
	s.spawn(runCtx, "sink", out.Run)

	// 4. 响应者
	rtsp := responder.NewRTSPResolver(
		s.cameras, s.fetcher,
		s.rtsp,
		s.output, s.config.Gateway.RTSPFetchOnStart, s.metrics, s.logger,
	)
	s.spawn(runCtx, "rtsp-resolver", rtsp.Run)

	s.cameras.Each(func(c *models.CameraDescriptor) {
		if !c.HasPTZ() {
			return
		}
		ptz := responder.NewPTZController(c, s.fetcher,
			s.commands[models.RouteKey{Camera: c.Name, Capability: models.CapabilityPresetRecall}],
			s.commands[models.RouteKey{Camera: c.Name, Capability: models.CapabilityPTZMove}],
			s.output, s.metrics, s.logger,
		)
		s.spawn(runCtx, "ptz:"+c.Name, ptz.Run)
	})

	// 5. 轮询器
	s.cameras.Each(func(c *models.CameraDescriptor) {
		p := poller.NewPoller(c, s.fetcher, s.output, s.metrics, s.logger)
		s.spawn(runCtx, "poller:"+c.Name, p.Run)
	})

	// 6. 命令路由（仅在线传输）
	if s.handle.Live() {
		s.router = router.NewRouter(s.handle.Transport, s.cameras,
			s.config.Transport.CommandTopicRoot, s.commands, s.metrics, s.logger)
		if err := s.router.Start(runCtx); err != nil {
			// 遥测仍可发布，只是收不到命令
			s.logger.Error("Failed to start command router", zap.Error(err))
			s.router = nil
		}
	} else {
		s.logger.Info("Command router disabled in fallback mode")
	}

	if s.config.Gateway.MetricsAddr != "" {
		s.metrics.Serve(runCtx, s.config.Gateway.MetricsAddr, s.logger)
	}

	s.logger.Info("Gateway service started successfully", zap.Int("workers", len(s.workers)))
	return nil
}

// Stop 关闭服务；重复调用返回 nil
func (s *GatewayService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.logger.Info("Stopping gateway service")

	// 1. 取消共享 context
	s.cancel()

	// 2. 关闭队列（幂等，不阻塞）
	s.output.Close()
	s.rtsp.Close()
	for _, q := range s.commands {
		q.Close()
	}

	// 3/4. 逐个等待，超时只记录
	timeout := s.config.Gateway.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	for _, w := range s.workers {
		s.wait(ctx, w, timeout)
	}

	// 5. 取消订阅、关闭传输
	if s.router != nil {
		if err := s.router.Stop(ctx); err != nil {
			s.logger.Error("Error stopping command router", zap.Error(err))
		}
	}
	if s.handle.Live() {
		if err := s.handle.Transport.Close(); err != nil {
			s.logger.Error("Error closing transport", zap.Error(err))
		}
	}

	stats := s.output.Stats()
	s.logger.Info("Gateway service stopped",
		zap.Uint64("output_accepted", stats.Accepted),
		zap.Uint64("output_dropped", stats.Dropped),
		zap.Int("output_discarded", s.output.Len()),
	)
	return nil
}

func (s *GatewayService) wait(ctx context.Context, w worker, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.done:
	case <-timer.C:
		s.logger.Warn("Worker did not stop within timeout",
			zap.String("worker", w.name),
			zap.Duration("timeout", timeout),
		)
	case <-ctx.Done():
		s.logger.Warn("Shutdown context expired while waiting for worker",
			zap.String("worker", w.name),
			zap.Error(ctx.Err()),
		)
	}
}

func (s *GatewayService) spawn(ctx context.Context, name string, run func(context.Context)) {
	w := worker{name: name, done: make(chan struct{})}
	s.workers = append(s.workers, w)
	go func() {
		defer close(w.done)
		run(ctx)
	}()
}

// buildCommandQueues 每台相机的 (camera, capability) 队列
// rtsp-refresh 的所有键指向同一个共享队列。
func (s *GatewayService) buildCommandQueues() map[models.RouteKey]*queue.Queue[models.Command] {
	size := s.config.Queues.CommandSize
	queues := make(map[models.RouteKey]*queue.Queue[models.Command])

	rtsp := queue.New[models.Command](string(models.CapabilityRTSPRefresh), size)
	s.metrics.RegisterQueue(rtsp.Name(), rtsp.Stats)

	s.cameras.Each(func(c *models.CameraDescriptor) {
		queues[models.RouteKey{Camera: c.Name, Capability: models.CapabilityRTSPRefresh}] = rtsp

		if !c.HasPTZ() {
			return
		}
		for _, capability := range []models.Capability{models.CapabilityPresetRecall, models.CapabilityPTZMove} {
			q := queue.New[models.Command](c.Name+"/"+string(capability), size)
			s.metrics.RegisterQueue(q.Name(), q.Stats)
			queues[models.RouteKey{Camera: c.Name, Capability: capability}] = q
		}
	})

	s.rtsp = rtsp
	return queues
}
