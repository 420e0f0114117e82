package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/config"

	"go.uber.org/zap"
)

// CameraRepository 相机表仓库（只在启动时读取一次）
type CameraRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCameraRepository 创建相机仓库
func NewCameraRepository(db *sql.DB, logger *zap.Logger) *CameraRepository {
	return &CameraRepository{
		db:     db,
		logger: logger,
	}
}

// LoadCameraEntries 读取已启用的相机及其测温区域
// 返回与配置文件相同的条目结构，默认值与校验统一由 config.BuildDescriptors 处理。
func (r *CameraRepository) LoadCameraEntries(ctx context.Context) ([]config.CameraEntry, error) {
	query := `
		SELECT
			c.camera_name,
			c.username,
			c.password,
			c.interval_seconds,
			c.timeout_seconds,
			c.settle_seconds,
			c.url_get_rtsp_url,
			c.base_url
		FROM thermal_cameras c
		WHERE c.enabled = TRUE
		ORDER BY c.camera_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cameras: %w", err)
	}
	defer rows.Close()

	var entries []config.CameraEntry
	index := make(map[string]int)

	for rows.Next() {
		var (
			name                string
			username, password  sql.NullString
			interval            sql.NullInt64
			timeout, settle     sql.NullFloat64
			rtspURL, ptzBaseURL sql.NullString
		)
		if err := rows.Scan(&name, &username, &password, &interval, &timeout, &settle, &rtspURL, &ptzBaseURL); err != nil {
			return nil, fmt.Errorf("failed to scan camera: %w", err)
		}

		entry := config.CameraEntry{
			Name:          name,
			Username:      username.String,
			Password:      password.String,
			URLGetRTSPURL: rtspURL.String,
			BaseURL:       ptzBaseURL.String,
		}
		if interval.Valid {
			v := int(interval.Int64)
			entry.IntervalSeconds = &v
		}
		if timeout.Valid {
			v := timeout.Float64
			entry.TimeoutSeconds = &v
		}
		if settle.Valid {
			v := settle.Float64
			entry.SettleSeconds = &v
		}

		index[name] = len(entries)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cameras: %w", err)
	}

	if err := r.attachNodeThermals(ctx, entries, index); err != nil {
		return nil, err
	}

	r.logger.Info("Loaded cameras from database", zap.Int("count", len(entries)))
	return entries, nil
}

// attachNodeThermals 按 position 顺序附加测温区域
func (r *CameraRepository) attachNodeThermals(ctx context.Context, entries []config.CameraEntry, index map[string]int) error {
	query := `
		SELECT
			n.camera_name,
			n.node_name,
			n.url_preset_id,
			n.url_area_temperature
		FROM thermal_node_thermals n
		ORDER BY n.camera_name, n.position
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query node thermals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cameraName, nodeName string
			presetURL, areaURL   sql.NullString
		)
		if err := rows.Scan(&cameraName, &nodeName, &presetURL, &areaURL); err != nil {
			return fmt.Errorf("failed to scan node thermal: %w", err)
		}

		i, ok := index[cameraName]
		if !ok {
			// 相机未启用或不存在
			r.logger.Debug("Skipping node thermal of unknown camera",
				zap.String("camera", cameraName),
				zap.String("node_thermal", nodeName),
			)
			continue
		}
		entries[i].NodeThermals = append(entries[i].NodeThermals, config.NodeThermalEntry{
			Name:               nodeName,
			URLPresetID:        presetURL.String,
			URLAreaTemperature: areaURL.String,
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate node thermals: %w", err)
	}
	return nil
}
