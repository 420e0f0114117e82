package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/hoangvanthinh/ses-110kv-thermal-mea/common/config"

	"github.com/go-redis/redis/v8"
)

// DefaultConnectTimeout 未配置 ConnectTimeout 时使用
const DefaultConnectTimeout = 5 * time.Second

// Client Redis客户端类型别名
type Client = redis.Client

// Connect 创建客户端并在超时内完成一次 PING
// 拨号超时与连接确认共用 cfg.ConnectTimeout；失败时客户端已关闭。
func Connect(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: timeout,
		MaxRetries:  -1,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}
