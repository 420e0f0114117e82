package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultTimeout 未配置超时时的单次请求超时
const DefaultTimeout = 5 * time.Second

// Credentials 相机 HTTP Basic 认证信息
type Credentials struct {
	Username string
	Password string
}

// Fetcher 带认证、带超时的文本抓取
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration, creds Credentials) (string, error)
}

// TransportError 网络层失败（连接失败、超时、DNS 等）
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error fetching %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError 服务端返回了 4xx/5xx
type ProtocolError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("http error fetching %s: %s", e.URL, e.Status)
}

// Client 基于 resty 的 Fetcher 实现，所有相机共享一个实例
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建抓取客户端
// 不做重试：失败由调用方等待下一个周期或下一条命令。
func NewClient(logger *zap.Logger) *Client {
	client := resty.New().
		SetRetryCount(0).
		SetHeader("User-Agent", "Mozilla/5.0")

	return &Client{
		httpClient: client,
		logger:     logger.Named("fetch"),
	}
}

// Fetch GET url，返回响应文本
// 仅当用户名与密码都非空时才附带 Basic 认证。
func (c *Client) Fetch(ctx context.Context, url string, timeout time.Duration, creds Credentials) (string, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := c.httpClient.R().SetContext(reqCtx)
	if creds.Username != "" && creds.Password != "" {
		req.SetBasicAuth(creds.Username, creds.Password)
	}

	start := time.Now()
	resp, err := req.Get(url)
	if err != nil {
		return "", &TransportError{URL: url, Err: err}
	}

	c.logger.Debug("Fetched camera endpoint",
		zap.String("url", url),
		zap.Int("status_code", resp.StatusCode()),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.IsError() {
		return "", &ProtocolError{
			URL:        url,
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
		}
	}

	return strings.ToValidUTF8(string(resp.Body()), "�"), nil
}
