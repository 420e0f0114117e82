package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/config"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/fetch/fetchtest"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/models"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/transport"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/transport/transporttest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Transport.Enabled = true
	cfg.Transport.TelemetryTopic = "camera/areaTemperature"
	cfg.Transport.CommandTopicRoot = "camera"
	cfg.Queues.OutputSize = 100
	cfg.Queues.CommandSize = 10
	cfg.Gateway.ShutdownTimeout = time.Second
	return cfg
}

func testTable(t *testing.T) *models.CameraTable {
	t.Helper()
	table, dups := models.NewCameraTable([]models.CameraDescriptor{{
		Name:            "cam1",
		Interval:        time.Hour,
		Timeout:         time.Second,
		RTSPResolverURL: "http://cam1/rtsp",
		PTZBaseURL:      "http://cam1/ptz",
		NodeThermals: []models.NodeThermal{
			{Name: "zoneA", PresetURL: "http://cam1/preset?presetID=3", AreaTemperatureURL: "http://cam1/area?id=1"},
		},
	}})
	require.Empty(t, dups)
	return table
}

func testFetcher() *fetchtest.Fetcher {
	f := fetchtest.New()
	f.Set("http://cam1/preset?presetID=3", fetchtest.Response{Body: "OK"})
	f.Set("http://cam1/area?id=1", fetchtest.Response{Body: "aveTemperature=41.2"})
	f.Set("http://cam1/rtsp", fetchtest.Response{Body: "rtsp://10.0.0.9/live"})
	f.Set("http://cam1/ptz?action=moveLeft&speed=3", fetchtest.Response{Body: "OK"})
	return f
}

func publishedTypes(tr *transporttest.Transport) []string {
	var types []string
	for _, p := range tr.Published() {
		var m map[string]any
		if json.Unmarshal(p.Payload, &m) == nil {
			types = append(types, m["type"].(string))
		}
	}
	return types
}

func TestGatewayService_EndToEnd(t *testing.T) {
	tr := transporttest.New()
	cfg := testConfig()
	cfg.Gateway.RTSPFetchOnStart = true

	s := NewGatewayService(cfg, testTable(t), testFetcher(), zap.NewNop(), zap.NewNop())
	s.probe = func(context.Context, *config.Config, *zap.Logger) transport.Handle {
		return transport.Handle{Transport: tr}
	}

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)

	require.Eventually(t, func() bool { return len(publishedTypes(tr)) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"temperature", "rtsp_url"}, publishedTypes(tr))
	assert.ElementsMatch(t, []string{"camera/cam1/cmd", "camera/cam1/get_url"}, tr.Topics())

	require.NoError(t, tr.Deliver("camera/cam1/cmd", []byte("left:3")))
	require.Eventually(t, func() bool { return len(tr.Published()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "ptz_move_result", publishedTypes(tr)[2])

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, tr.Closed())
	assert.Empty(t, tr.Topics())

	count := len(tr.Published())
	require.NoError(t, s.Stop(context.Background()))
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, tr.Published(), count)
}

func TestGatewayService_FallbackWhenTransportUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.Transport.Enabled = false

	core, logs := observer.New(zapcore.InfoLevel)
	s := NewGatewayService(cfg, testTable(t), testFetcher(), zap.NewNop(), zap.New(core))

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		return logs.FilterMessage("telemetry").Len() >= 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))

	entry := logs.FilterMessage("telemetry").All()[0]
	assert.Equal(t, "temperature", entry.ContextMap()["kind"])
	assert.Nil(t, s.router)
}

func TestGatewayService_StopBeforeStart(t *testing.T) {
	s := NewGatewayService(testConfig(), testTable(t), fetchtest.New(), zap.NewNop(), zap.NewNop())
	assert.NoError(t, s.Stop(context.Background()))
}

func TestGatewayService_CommandQueues(t *testing.T) {
	table, _ := models.NewCameraTable([]models.CameraDescriptor{
		{Name: "cam1", PTZBaseURL: "http://cam1/ptz"},
		{Name: "cam2"},
	})
	s := NewGatewayService(testConfig(), table, fetchtest.New(), zap.NewNop(), zap.NewNop())

	queues := s.buildCommandQueues()

	assert.Len(t, queues, 4)
	assert.Same(t,
		queues[models.RouteKey{Camera: "cam1", Capability: models.CapabilityRTSPRefresh}],
		queues[models.RouteKey{Camera: "cam2", Capability: models.CapabilityRTSPRefresh}],
	)
	assert.NotSame(t,
		queues[models.RouteKey{Camera: "cam1", Capability: models.CapabilityPresetRecall}],
		queues[models.RouteKey{Camera: "cam1", Capability: models.CapabilityPTZMove}],
	)
	_, ok := queues[models.RouteKey{Camera: "cam2", Capability: models.CapabilityPTZMove}]
	assert.False(t, ok)
}

func TestLoadCameras_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cameras.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cameras:
  - name: cam1
    node_thermals:
      - name: zoneA
        url_areaTemperature: http://cam1/area
  - name: cam1
  - name: bad/name
  - {}
`), 0o644))

	cfg := testConfig()
	cfg.Cameras.Source = config.CameraSourceFile
	cfg.Cameras.File = path

	core, logs := observer.New(zapcore.InfoLevel)
	table, err := LoadCameras(context.Background(), cfg, zap.New(core))
	require.NoError(t, err)

	assert.Equal(t, []string{"cam1", "camera_4"}, table.Names())
	assert.Equal(t, 1, logs.FilterMessage("Duplicate camera name, later entry skipped").Len())
	assert.Equal(t, 1, logs.FilterMessage("Camera skipped").Len())
}

func TestLoadCameras_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.Cameras.Source = config.CameraSourceFile
	cfg.Cameras.File = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := LoadCameras(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)

	cfg.Cameras.Source = "etcd"
	_, err = LoadCameras(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "unknown camera source")
}
