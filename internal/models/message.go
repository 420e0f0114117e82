package models

import (
	"encoding/json"
	"time"
)

// TimestampLayout 下游消息使用的时间格式（本地时间，精确到秒）
const TimestampLayout = "2006-01-02T15:04:05"

// MessageKind 出站消息类别
type MessageKind string

const (
	KindReading    MessageKind = "temperature"
	KindRTSPResult MessageKind = "rtsp_url"
	KindPTZPreset  MessageKind = "ptz_preset_result"
	KindPTZMove    MessageKind = "ptz_move_result"
)

// Status 响应结果状态
type Status string

// 线上编码保持旧系统下游使用的 "success" / "error"
const (
	StatusOK    Status = "success"
	StatusError Status = "error"
)

// Message 出站消息（Reading | RTSPResult | PTZResult）
type Message interface {
	Kind() MessageKind
	CameraName() string
}

// Reading 一次温度读数
type Reading struct {
	Camera      string
	NodeThermal string
	URL         string
	Timestamp   time.Time
	Temperature string // 原样保留相机返回的数值字符串
}

func (r Reading) Kind() MessageKind  { return KindReading }
func (r Reading) CameraName() string { return r.Camera }

// MarshalJSON {camera, type, node_thermal, url, timestamp, data_t}
func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Camera      string `json:"camera"`
		Type        string `json:"type"`
		NodeThermal string `json:"node_thermal"`
		URL         string `json:"url"`
		Timestamp   string `json:"timestamp"`
		DataT       string `json:"data_t"`
	}{
		Camera:      r.Camera,
		Type:        string(KindReading),
		NodeThermal: r.NodeThermal,
		URL:         r.URL,
		Timestamp:   r.Timestamp.Format(TimestampLayout),
		DataT:       r.Temperature,
	})
}

// RTSPResult RTSP 地址刷新结果
type RTSPResult struct {
	Camera      string
	ResolverURL string
	RTSPURL     string
	Status      Status
	Error       string
	Timestamp   time.Time
}

func (r RTSPResult) Kind() MessageKind  { return KindRTSPResult }
func (r RTSPResult) CameraName() string { return r.Camera }

// MarshalJSON {sid, type, timestamp, url, rtsp_url, status, error?}
func (r RTSPResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SID       string `json:"sid"`
		Type      string `json:"type"`
		Timestamp string `json:"timestamp"`
		URL       string `json:"url"`
		RTSPURL   string `json:"rtsp_url"`
		Status    Status `json:"status"`
		Error     string `json:"error,omitempty"`
	}{
		SID:       r.Camera,
		Type:      string(KindRTSPResult),
		Timestamp: r.Timestamp.Format(TimestampLayout),
		URL:       r.ResolverURL,
		RTSPURL:   r.RTSPURL,
		Status:    r.Status,
		Error:     r.Error,
	})
}

// PTZResult 预置位调用或云台移动的结果
type PTZResult struct {
	Camera     string
	Capability Capability // CapabilityPresetRecall 或 CapabilityPTZMove
	PresetID   int
	Direction  string
	Speed      int
	Status     Status
	Error      string
	Timestamp  time.Time
}

func (r PTZResult) Kind() MessageKind {
	if r.Capability == CapabilityPresetRecall {
		return KindPTZPreset
	}
	return KindPTZMove
}

func (r PTZResult) CameraName() string { return r.Camera }

type ptzPresetWire struct {
	Camera    string `json:"camera"`
	Type      string `json:"type"`
	PresetID  int    `json:"preset_id"`
	Status    Status `json:"status"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

type ptzMoveWire struct {
	Camera    string `json:"camera"`
	Type      string `json:"type"`
	Direction string `json:"direction"`
	Speed     int    `json:"speed"`
	Status    Status `json:"status"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// MarshalJSON 预置位: {camera, type, preset_id, status, error?, timestamp}
// 移动: {camera, type, direction, speed, status, error?, timestamp}
func (r PTZResult) MarshalJSON() ([]byte, error) {
	ts := r.Timestamp.Format(TimestampLayout)
	if r.Kind() == KindPTZPreset {
		return json.Marshal(ptzPresetWire{
			Camera:    r.Camera,
			Type:      string(KindPTZPreset),
			PresetID:  r.PresetID,
			Status:    r.Status,
			Error:     r.Error,
			Timestamp: ts,
		})
	}
	return json.Marshal(ptzMoveWire{
		Camera:    r.Camera,
		Type:      string(KindPTZMove),
		Direction: r.Direction,
		Speed:     r.Speed,
		Status:    r.Status,
		Error:     r.Error,
		Timestamp: ts,
	})
}
