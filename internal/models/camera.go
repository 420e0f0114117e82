package models

import "time"

// NodeThermal 相机上的一个测温区域
type NodeThermal struct {
	Name               string
	PresetURL          string // 可选：调用预置位的 URL
	AreaTemperatureURL string // 读取区域温度的 URL
}

// CameraDescriptor 相机描述（启动时构建，运行期只读）
type CameraDescriptor struct {
	Name            string
	Username        string
	Password        string
	Interval        time.Duration
	Timeout         time.Duration
	Settle          time.Duration
	NodeThermals    []NodeThermal
	RTSPResolverURL string
	PTZBaseURL      string
}

// HasCredentials 用户名与密码均已配置
func (c *CameraDescriptor) HasCredentials() bool {
	return c.Username != "" && c.Password != ""
}

// HasPTZ 相机是否具备 PTZ 能力（配置了 base_url 或任一预置位 URL）
func (c *CameraDescriptor) HasPTZ() bool {
	if c.PTZBaseURL != "" {
		return true
	}
	for _, n := range c.NodeThermals {
		if n.PresetURL != "" {
			return true
		}
	}
	return false
}

// CameraTable 相机名 -> 描述；构建后不再修改，可被所有 worker 并发读取
type CameraTable struct {
	byName map[string]*CameraDescriptor
	names  []string
}

// NewCameraTable 构建相机表；重名相机只保留第一个，返回被跳过的名称
func NewCameraTable(cameras []CameraDescriptor) (*CameraTable, []string) {
	t := &CameraTable{byName: make(map[string]*CameraDescriptor, len(cameras))}
	var duplicates []string
	for i := range cameras {
		c := cameras[i]
		if _, exists := t.byName[c.Name]; exists {
			duplicates = append(duplicates, c.Name)
			continue
		}
		t.byName[c.Name] = &c
		t.names = append(t.names, c.Name)
	}
	return t, duplicates
}

// Get 按名称查找相机
func (t *CameraTable) Get(name string) (*CameraDescriptor, bool) {
	c, ok := t.byName[name]
	return c, ok
}

// Names 按配置顺序返回相机名（返回副本）
func (t *CameraTable) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Len 相机数量
func (t *CameraTable) Len() int {
	return len(t.names)
}

// Each 按配置顺序遍历
func (t *CameraTable) Each(fn func(*CameraDescriptor)) {
	for _, name := range t.names {
		fn(t.byName[name])
	}
}
