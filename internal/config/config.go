package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hoangvanthinh/ses-110kv-thermal-mea/common/config"

	"github.com/google/uuid"
)

// 传输类型
const (
	TransportMQTT  = "mqtt"
	TransportRedis = "redis"
)

// 相机表来源
const (
	CameraSourceFile     = "file"
	CameraSourcePostgres = "postgres"
)

// Config 热成像网关配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	// 出站/入站传输（启动时探测一次，失败则整个进程使用本地回退日志）
	Transport struct {
		Enabled          bool
		Kind             string // "mqtt" 或 "redis"
		TelemetryTopic   string // 遥测发布主题，如 "camera/areaTemperature"
		CommandTopicRoot string // 命令订阅根，<root>/<camera>/cmd
	}

	Cameras struct {
		Source string // "file" 或 "postgres"
		File   string
	}

	Queues struct {
		OutputSize  int
		CommandSize int
	}

	Gateway struct {
		ShutdownTimeout  time.Duration
		RTSPFetchOnStart bool
		FallbackLogPath  string
		MetricsAddr      string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database = config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "thermal",
		SSLMode:  "disable",
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis = config.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT = config.MQTTConfig{
		Broker:         "tcp://localhost:1883",
		ConnectTimeout: 10 * time.Second,
	}
	cfg.MQTT.LoadFromEnv("MQTT")
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "thermal-gateway-" + uuid.NewString()[:8]
	}

	cfg.Transport.Enabled = getEnvBool("TRANSPORT_ENABLED", false)
	cfg.Transport.Kind = strings.ToLower(getEnv("TRANSPORT_KIND", TransportMQTT))
	cfg.Transport.TelemetryTopic = getEnv("TELEMETRY_TOPIC", "camera/areaTemperature")
	// 未配置时取遥测主题的第一段作为命令订阅根
	cfg.Transport.CommandTopicRoot = getEnv("COMMAND_TOPIC_ROOT", firstSegment(cfg.Transport.TelemetryTopic, "camera"))

	cfg.Cameras.Source = strings.ToLower(getEnv("CAMERA_SOURCE", CameraSourceFile))
	cfg.Cameras.File = getEnv("CAMERAS_FILE", "config/cameras.yaml")

	cfg.Queues.OutputSize = getEnvInt("OUTPUT_QUEUE_SIZE", 100)
	cfg.Queues.CommandSize = getEnvInt("COMMAND_QUEUE_SIZE", 50)

	cfg.Gateway.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 5*time.Second)
	cfg.Gateway.RTSPFetchOnStart = getEnvBool("RTSP_FETCH_ON_START", true)
	cfg.Gateway.FallbackLogPath = getEnv("FALLBACK_LOG_PATH", "")
	cfg.Gateway.MetricsAddr = getEnv("METRICS_ADDR", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func firstSegment(topic, fallback string) string {
	if topic == "" {
		return fallback
	}
	seg := strings.Split(topic, "/")[0]
	if seg == "" {
		return fallback
	}
	return seg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil && v > 0 {
			return v
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return defaultValue
}

// getEnvDuration 接受 "5s" 这类时长，也接受纯数字（秒）
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}
