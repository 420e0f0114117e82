package models

// Capability 入站命令类别，用于路由
type Capability string

const (
	CapabilityPresetRecall Capability = "preset-recall"
	CapabilityPTZMove      Capability = "ptz-move"
	CapabilityRTSPRefresh  Capability = "rtsp-refresh"
	CapabilityGeneric      Capability = "generic"
)

// Command 路由器生成、由唯一一个响应者消费的命令
type Command struct {
	Camera      string
	Capability  Capability
	Payload     string
	SourceTopic string
}

// RouteKey (camera, capability) 路由键
type RouteKey struct {
	Camera     string
	Capability Capability
}

// Key 命令对应的路由键
func (c Command) Key() RouteKey {
	return RouteKey{Camera: c.Camera, Capability: c.Capability}
}
