package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)

func decode(t *testing.T, m Message) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestReading_WireShape(t *testing.T) {
	got := decode(t, Reading{
		Camera:      "cam1",
		NodeThermal: "zoneA",
		URL:         "http://cam1/area?id=1",
		Timestamp:   fixedTime,
		Temperature: "36.5",
	})

	assert.Equal(t, map[string]interface{}{
		"camera":       "cam1",
		"type":         "temperature",
		"node_thermal": "zoneA",
		"url":          "http://cam1/area?id=1",
		"timestamp":    "2025-03-14T09:26:53",
		"data_t":       "36.5",
	}, got)
}

func TestRTSPResult_WireShape(t *testing.T) {
	got := decode(t, RTSPResult{
		Camera:      "cam1",
		ResolverURL: "http://cam1/rtsp",
		RTSPURL:     "rtsp://u:p@cam1/live",
		Status:      StatusOK,
		Timestamp:   fixedTime,
	})

	assert.Equal(t, "cam1", got["sid"])
	assert.Equal(t, "rtsp_url", got["type"])
	assert.Equal(t, "rtsp://u:p@cam1/live", got["rtsp_url"])
	assert.Equal(t, "success", got["status"])
	assert.NotContains(t, got, "error")
}

func TestPTZResult_PresetAndMoveShapes(t *testing.T) {
	preset := decode(t, PTZResult{
		Camera:     "cam1",
		Capability: CapabilityPresetRecall,
		PresetID:   3,
		Status:     StatusError,
		Error:      "timeout",
		Timestamp:  fixedTime,
	})
	assert.Equal(t, "ptz_preset_result", preset["type"])
	assert.Equal(t, float64(3), preset["preset_id"])
	assert.Equal(t, "timeout", preset["error"])
	assert.NotContains(t, preset, "direction")

	move := decode(t, PTZResult{
		Camera:     "cam1",
		Capability: CapabilityPTZMove,
		Direction:  "left",
		Speed:      3,
		Status:     StatusOK,
		Timestamp:  fixedTime,
	})
	assert.Equal(t, "ptz_move_result", move["type"])
	assert.Equal(t, "left", move["direction"])
	assert.Equal(t, float64(3), move["speed"])
	assert.NotContains(t, move, "preset_id")
	assert.NotContains(t, move, "error")
}

func TestCameraTable_DuplicatesSkipped(t *testing.T) {
	table, dups := NewCameraTable([]CameraDescriptor{
		{Name: "cam1", Username: "a"},
		{Name: "cam2"},
		{Name: "cam1", Username: "b"},
	})

	assert.Equal(t, []string{"cam1"}, dups)
	assert.Equal(t, []string{"cam1", "cam2"}, table.Names())

	c, ok := table.Get("cam1")
	require.True(t, ok)
	assert.Equal(t, "a", c.Username)

	_, ok = table.Get("camX")
	assert.False(t, ok)
}

func TestCameraDescriptor_HasPTZ(t *testing.T) {
	assert.False(t, (&CameraDescriptor{}).HasPTZ())
	assert.True(t, (&CameraDescriptor{PTZBaseURL: "http://cam/ptz"}).HasPTZ())
	assert.True(t, (&CameraDescriptor{NodeThermals: []NodeThermal{{PresetURL: "http://cam?presetID=1"}}}).HasPTZ())
}
