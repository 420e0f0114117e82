package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hoangvanthinh/ses-110kv-thermal-mea/common/config"

	_ "github.com/lib/pq"
)

// NewPostgresDB 创建PostgreSQL数据库连接，并在 timeout 内完成一次 Ping
func NewPostgresDB(ctx context.Context, cfg *config.DatabaseConfig, timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 相机表只在启动时读取一次，连接池保持很小
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 2
	}
	db.SetMaxOpenConns(maxConns)
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return db, nil
}

// Close 关闭数据库连接
func Close(db *sql.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}
