package metrics

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/queue"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics 网关的 Prometheus 指标
// 所有方法对 nil 接收者安全，测试中可以直接传 nil。
type Metrics struct {
	prefix   string
	registry *prometheus.Registry

	readingsTotal *prometheus.CounterVec
	resultsTotal  *prometheus.CounterVec
	commandsTotal *prometheus.CounterVec
	sinkTotal     *prometheus.CounterVec
}

// New 创建指标集合（独立 registry，不污染全局默认 registry）
func New(serviceName string) *Metrics {
	prefix := strings.ReplaceAll(serviceName, "-", "_")
	m := &Metrics{
		prefix:   prefix,
		registry: prometheus.NewRegistry(),
	}

	m.readingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_readings_total",
			Help: "Temperature readings emitted by pollers",
		},
		[]string{"camera"},
	)
	m.resultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_results_total",
			Help: "Command results emitted by responders",
		},
		[]string{"capability", "status"},
	)
	m.commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_commands_total",
			Help: "Inbound commands by routing outcome",
		},
		[]string{"capability", "outcome"},
	)
	m.sinkTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_sink_messages_total",
			Help: "Messages handled by the telemetry sink",
		},
		[]string{"mode", "outcome"},
	)

	m.registry.MustRegister(m.readingsTotal, m.resultsTotal, m.commandsTotal, m.sinkTotal)
	return m
}

// RegisterQueue 以 CounterFunc 形式导出队列的丢弃与接收计数
func (m *Metrics) RegisterQueue(name string, stats func() queue.Stats) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"queue": name}
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        m.prefix + "_queue_dropped_total",
			Help:        "Items dropped because the queue was full or closed",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Dropped) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        m.prefix + "_queue_accepted_total",
			Help:        "Items accepted by the queue",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Accepted) }),
	)
}

func (m *Metrics) IncReading(camera string) {
	if m == nil {
		return
	}
	m.readingsTotal.WithLabelValues(camera).Inc()
}

func (m *Metrics) IncResult(capability, status string) {
	if m == nil {
		return
	}
	m.resultsTotal.WithLabelValues(capability, status).Inc()
}

func (m *Metrics) IncCommand(capability, outcome string) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(capability, outcome).Inc()
}

func (m *Metrics) IncSink(mode, outcome string) {
	if m == nil {
		return
	}
	m.sinkTotal.WithLabelValues(mode, outcome).Inc()
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve 在 addr 上提供 /metrics，ctx 取消后关闭
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("Metrics endpoint listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics endpoint failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
}
