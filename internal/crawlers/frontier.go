package crawlers

import (
	"context"
	"sync"

	"github.com/RecoveryAshes/docmirror/internal/models"
)

// Frontier 发现阶段的工作列表
// 职责: 管理待访问和已访问URL,支持多个worker并发取用
//
// 不变式: 一个URL只会从待访问移入已访问一次,移入后不再入队
type Frontier struct {
	// 待访问URL(先进先出)
	pending []models.FrontierItem

	// 已入队但未取出的URL,防止重复入队
	queued map[string]bool

	// 已访问URL集合
	visited map[string]bool

	// 已取出但尚未完成的URL数量
	inFlight int

	closed bool

	mu   sync.Mutex
	cond *sync.Cond
}

// NewFrontier 创建工作列表
func NewFrontier() *Frontier {
	f := &Frontier{
		queued:  make(map[string]bool),
		visited: make(map[string]bool),
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Push 添加URL到待访问列表
// 已访问或已在队列中的URL返回false
func (f *Frontier) Push(urlStr string, sourceURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || f.visited[urlStr] || f.queued[urlStr] {
		return false
	}

	f.queued[urlStr] = true
	f.pending = append(f.pending, models.FrontierItem{URL: urlStr, SourceURL: sourceURL})
	f.cond.Signal()
	return true
}

// Next 取出下一个待访问URL并标记为已访问
// 队列为空且没有进行中的URL时返回false(遍历结束); 队列关闭或ctx取消时同样返回false
// 每次成功取出后必须调用Done
func (f *Frontier) Next(ctx context.Context) (models.FrontierItem, bool) {
	stop := context.AfterFunc(ctx, f.Close)
	defer stop()

	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.pending) == 0 && f.inFlight > 0 && !f.closed {
		f.cond.Wait()
	}
	if f.closed || len(f.pending) == 0 || ctx.Err() != nil {
		return models.FrontierItem{}, false
	}

	item := f.pending[0]
	f.pending[0] = models.FrontierItem{}
	f.pending = f.pending[1:]
	delete(f.queued, item.URL)
	f.visited[item.URL] = true
	f.inFlight++
	return item, true
}

// Done 标记一个取出的URL处理完毕
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inFlight > 0 {
		f.inFlight--
	}
	// 唤醒所有等待者: 可能有新URL,也可能遍历已结束
	f.cond.Broadcast()
}

// Close 关闭工作列表,唤醒所有等待的worker
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.closed {
		f.closed = true
		f.cond.Broadcast()
	}
}
