package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hoangvanthinh/ses-110kv-thermal-mea/common/database"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/config"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/models"
	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/repository"

	"go.uber.org/zap"
)

// LoadCameras 按 CAMERA_SOURCE 读取相机表
// Postgres 连接只用于这一次读取，读取完成即关闭。
func LoadCameras(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*models.CameraTable, error) {
	var (
		entries []config.CameraEntry
		err     error
	)

	switch cfg.Cameras.Source {
	case config.CameraSourceFile, "":
		entries, err = config.LoadCameraFile(cfg.Cameras.File)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded camera file",
			zap.String("path", cfg.Cameras.File),
			zap.Int("entries", len(entries)),
		)

	case config.CameraSourcePostgres:
		db, err := database.NewPostgresDB(ctx, &cfg.Database, 5*time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close(db)

		entries, err = repository.NewCameraRepository(db, logger).LoadCameraEntries(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded cameras from database",
			zap.String("host", cfg.Database.Host),
			zap.Int("entries", len(entries)),
		)

	default:
		return nil, fmt.Errorf("unknown camera source %q", cfg.Cameras.Source)
	}

	return BuildCameraTable(entries, logger), nil
}

// BuildCameraTable 转换并校验条目；无效或重名的相机被跳过并记录日志
func BuildCameraTable(entries []config.CameraEntry, logger *zap.Logger) *models.CameraTable {
	descriptors, errs := config.BuildDescriptors(entries)
	for _, err := range errs {
		logger.Error("Camera skipped", zap.Error(err))
	}

	table, duplicates := models.NewCameraTable(descriptors)
	for _, name := range duplicates {
		logger.Error("Duplicate camera name, later entry skipped", zap.String("camera", name))
	}

	table.Each(func(c *models.CameraDescriptor) {
		if len(c.NodeThermals) == 0 {
			logger.Warn("Camera has no node_thermals", zap.String("camera", c.Name))
		}
	})

	if table.Len() == 0 {
		logger.Warn("No cameras configured")
	}
	return table
}
