package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/models"

	"gopkg.in/yaml.v3"
)

// 相机默认参数
const (
	DefaultIntervalSeconds = 30
	DefaultTimeoutSeconds  = 10.0
	DefaultSettleSeconds   = 2.0
)

// ErrInvalidCamera 相机条目无法使用（跳过该相机，不影响其他相机）
var ErrInvalidCamera = errors.New("invalid camera entry")

// NodeThermalEntry 配置文件中的测温区域
type NodeThermalEntry struct {
	Name               string `yaml:"name" json:"name"`
	URLPresetID        string `yaml:"url_presetID" json:"url_presetID"`
	URLAreaTemperature string `yaml:"url_areaTemperature" json:"url_areaTemperature"`
}

// CameraEntry 配置文件中的相机
// 时间字段用指针区分"未配置"与 0。
type CameraEntry struct {
	Name            string             `yaml:"name" json:"name"`
	Username        string             `yaml:"username" json:"username"`
	Password        string             `yaml:"password" json:"password"`
	IntervalSeconds *int               `yaml:"interval_seconds" json:"interval_seconds"`
	TimeoutSeconds  *float64           `yaml:"timeout_seconds" json:"timeout_seconds"`
	SettleSeconds   *float64           `yaml:"settle_seconds" json:"settle_seconds"`
	NodeThermals    []NodeThermalEntry `yaml:"node_thermals" json:"node_thermals"`
	URLGetRTSPURL   string             `yaml:"url_get_rtsp_url" json:"url_get_rtsp_url"`
	BaseURL         string             `yaml:"base_url" json:"base_url"`
}

// CameraFile 相机配置文件（YAML；JSON 作为 YAML 子集同样可读）
type CameraFile struct {
	Cameras []CameraEntry `yaml:"cameras" json:"cameras"`
}

// LoadCameraFile 读取并解析相机配置文件
func LoadCameraFile(path string) ([]CameraEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read camera file %s: %w", path, err)
	}
	return ParseCameraFile(data)
}

// ParseCameraFile 解析相机配置内容
func ParseCameraFile(data []byte) ([]CameraEntry, error) {
	var file CameraFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse camera file: %w", err)
	}
	return file.Cameras, nil
}

// BuildDescriptors 将配置条目转换为相机描述
// 缺省名称为 camera_<序号>（从 1 开始）；名称含 MQTT 主题保留字符的条目被跳过，
// 对应错误在第二个返回值中给出。
func BuildDescriptors(entries []CameraEntry) ([]models.CameraDescriptor, []error) {
	out := make([]models.CameraDescriptor, 0, len(entries))
	var errs []error

	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			name = fmt.Sprintf("camera_%d", i+1)
		}
		if strings.ContainsAny(name, "/+#") {
			errs = append(errs, fmt.Errorf("%w: camera %q contains a topic separator or wildcard", ErrInvalidCamera, name))
			continue
		}

		interval := DefaultIntervalSeconds
		if e.IntervalSeconds != nil && *e.IntervalSeconds > 0 {
			interval = *e.IntervalSeconds
		}
		timeout := DefaultTimeoutSeconds
		if e.TimeoutSeconds != nil && *e.TimeoutSeconds > 0 {
			timeout = *e.TimeoutSeconds
		}
		settle := DefaultSettleSeconds
		if e.SettleSeconds != nil && *e.SettleSeconds >= 0 {
			settle = *e.SettleSeconds
		}

		nodes := make([]models.NodeThermal, 0, len(e.NodeThermals))
		for _, n := range e.NodeThermals {
			nodeName := strings.TrimSpace(n.Name)
			if nodeName == "" {
				nodeName = "unknown"
			}
			nodes = append(nodes, models.NodeThermal{
				Name:               nodeName,
				PresetURL:          strings.TrimSpace(n.URLPresetID),
				AreaTemperatureURL: strings.TrimSpace(n.URLAreaTemperature),
			})
		}

		out = append(out, models.CameraDescriptor{
			Name:            name,
			Username:        e.Username,
			Password:        e.Password,
			Interval:        time.Duration(interval) * time.Second,
			Timeout:         seconds(timeout),
			Settle:          seconds(settle),
			NodeThermals:    nodes,
			RTSPResolverURL: strings.TrimSpace(e.URLGetRTSPURL),
			PTZBaseURL:      strings.TrimSpace(e.BaseURL),
		})
	}

	return out, errs
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
