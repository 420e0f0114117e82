// Package queue 提供有界、非阻塞发送的 FIFO 队列。
//
// 发送方从不阻塞：队列满或已关闭时立即返回错误，由调用方记录日志后丢弃。
// 接收方阻塞等待，直到有数据、队列关闭或 context 取消。
// Close 是独立的关闭操作，不会关闭底层数据 channel，因此并发发送不会 panic。
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrQueueFull 队列已满，元素被丢弃
	ErrQueueFull = errors.New("queue is full")

	// ErrQueueClosed 队列已关闭
	ErrQueueClosed = errors.New("queue is closed")
)

// Stats 队列计数快照
type Stats struct {
	Offered  uint64
	Accepted uint64
	Dropped  uint64
}

// Queue 有界队列
type Queue[T any] struct {
	name      string
	ch        chan T
	closed    chan struct{}
	closeOnce sync.Once

	offered  atomic.Uint64
	accepted atomic.Uint64
	dropped  atomic.Uint64
}

// New 创建容量为 capacity 的队列；capacity <= 0 时按 1 处理
func New[T any](name string, capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{
		name:   name,
		ch:     make(chan T, capacity),
		closed: make(chan struct{}),
	}
}

// Name 队列名称（用于日志与指标）
func (q *Queue[T]) Name() string { return q.name }

// Cap 队列容量
func (q *Queue[T]) Cap() int { return cap(q.ch) }

// Len 当前排队元素数
func (q *Queue[T]) Len() int { return len(q.ch) }

// Offer 非阻塞入队
func (q *Queue[T]) Offer(v T) error {
	q.offered.Add(1)

	select {
	case <-q.closed:
		q.dropped.Add(1)
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- v:
		q.accepted.Add(1)
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

// Receive 阻塞出队
// 队列关闭后立即返回 ErrQueueClosed，不再交付剩余元素；
// ctx 取消时返回 ctx.Err()。
func (q *Queue[T]) Receive(ctx context.Context) (T, error) {
	var zero T

	select {
	case <-q.closed:
		return zero, ErrQueueClosed
	default:
	}

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-q.closed:
		return zero, ErrQueueClosed
	case v := <-q.ch:
		// select 在多个分支就绪时随机选择，关闭优先
		select {
		case <-q.closed:
			return zero, ErrQueueClosed
		default:
		}
		return v, nil
	}
}

// Items 数据 channel，供需要在 select 中同时等待多个队列的消费者使用
// 调用方需自行检查 Done()，关闭后仍可能读到剩余元素。
func (q *Queue[T]) Items() <-chan T {
	return q.ch
}

// Close 关闭队列，可重复调用，从不阻塞
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
}

// Done 队列关闭时被关闭的 channel
func (q *Queue[T]) Done() <-chan struct{} {
	return q.closed
}

// Stats 计数快照
func (q *Queue[T]) Stats() Stats {
	return Stats{
		Offered:  q.offered.Load(),
		Accepted: q.accepted.Load(),
		Dropped:  q.dropped.Load(),
	}
}
