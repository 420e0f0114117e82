// Package fetchtest 提供测试用的 fetch.Fetcher 实现
package fetchtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hoangvanthinh/ses-110kv-thermal-mea/internal/fetch"
)

// Response 某个 URL 的预设响应
type Response struct {
	Body  string
	Err   error
	Delay time.Duration
}

// Call 一次调用记录
type Call struct {
	URL   string
	Creds fetch.Credentials
	At    time.Time
}

// Fetcher 按 URL 返回预设响应并记录调用；未登记的 URL 返回 404 ProtocolError
type Fetcher struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []Call
}

// New 创建空的 Fetcher
func New() *Fetcher {
	return &Fetcher{responses: make(map[string]Response)}
}

// Set 登记 url 的响应
func (f *Fetcher) Set(url string, resp Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = resp
}

// Fetch 实现 fetch.Fetcher
func (f *Fetcher) Fetch(ctx context.Context, url string, _ time.Duration, creds fetch.Credentials) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{URL: url, Creds: creds, At: time.Now()})
	resp, ok := f.responses[url]
	f.mu.Unlock()

	if !ok {
		return "", &fetch.ProtocolError{URL: url, StatusCode: 404, Status: "404 Not Found"}
	}
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-ctx.Done():
			return "", &fetch.TransportError{URL: url, Err: ctx.Err()}
		}
	}
	return resp.Body, resp.Err
}

// Calls 调用记录副本
func (f *Fetcher) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// URLs 按调用顺序返回 URL
func (f *Fetcher) URLs() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.URL
	}
	return out
}

// TransportFailure 构造一个网络层错误
func TransportFailure(url string) error {
	return &fetch.TransportError{URL: url, Err: fmt.Errorf("connection refused")}
}
