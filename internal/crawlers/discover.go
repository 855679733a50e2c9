package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/RecoveryAshes/docmirror/internal/models"
	"github.com/RecoveryAshes/docmirror/internal/utils"
	"golang.org/x/sync/errgroup"
)

// LinkSource 抓取页面并返回其超链接
type LinkSource interface {
	FetchPage(ctx context.Context, pageURL string) (*models.PageRecord, []string, error)
}

// DiscoveryResult 发现结果
type DiscoveryResult struct {
	// URLs 排序后的作用域内URL集合
	URLs []string
	// Visited 实际抓取过的页面数
	Visited int
	// Failed 抓取失败的页面
	Failed []models.FailedPageInfo
	// Duration 耗时(秒)
	Duration float64
}

// LinkCrawler 链接图遍历器
// 从种子出发做工作列表遍历,每个规范化URL恰好访问一次
type LinkCrawler struct {
	source  LinkSource
	scope   Scope
	workers int

	// OnVisit 每访问完一个页面回调一次(可为nil),用于进度显示
	OnVisit func(visited int, discovered int)

	recorder PageRecorder
}

// PageRecorder 记录抓取结果的指标接口
type PageRecorder interface {
	PageFetched(stage string, ok bool)
}

// NewLinkCrawler 创建链接遍历器
func NewLinkCrawler(source LinkSource, scope Scope, workers int, recorder PageRecorder) *LinkCrawler {
	if workers < 1 {
		workers = 1
	}
	return &LinkCrawler{
		source:   source,
		scope:    scope,
		workers:  workers,
		recorder: recorder,
	}
}

// Discover 从seed开始遍历作用域内的页面图
// 抓取失败的页面只记录日志,其出链不再展开; ctx取消时返回已发现的部分结果和ctx错误
func (lc *LinkCrawler) Discover(ctx context.Context, seed string) (*DiscoveryResult, error) {
	startTime := time.Now()

	seedURL, err := NormalizeURL(seed, "")
	if err != nil {
		return nil, fmt.Errorf("种子URL无效: %w", err)
	}
	if !lc.scope(seedURL) {
		return nil, fmt.Errorf("种子URL不在镜像范围内: %s", seedURL)
	}

	frontier := NewFrontier()
	defer frontier.Close()

	var (
		mu         sync.Mutex
		discovered = map[string]bool{seedURL: true}
		failed     []models.FailedPageInfo
		visited    int
	)

	frontier.Push(seedURL, "")
	utils.Infof("🔍 开始发现页面: %s (并发=%d)", seedURL, lc.workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < lc.workers; i++ {
		g.Go(func() error {
			for {
				item, ok := frontier.Next(gctx)
				if !ok {
					return nil
				}

				links, err := lc.visit(gctx, item)

				mu.Lock()
				visited++
				if err != nil {
					failed = append(failed, models.FailedPageInfo{
						URL:       item.URL,
						Stage:     "discover",
						ErrorType: classifyFetchError(err),
						ErrorMsg:  err.Error(),
					})
				}
				for _, link := range links {
					discovered[link] = true
				}
				v, d := visited, len(discovered)
				mu.Unlock()

				for _, link := range links {
					frontier.Push(link, item.URL)
				}
				frontier.Done()

				if lc.OnVisit != nil {
					lc.OnVisit(v, d)
				}
			}
		})
	}
	_ = g.Wait()

	mu.Lock()
	defer mu.Unlock()

	urls := make([]string, 0, len(discovered))
	for u := range discovered {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	sort.Slice(failed, func(i, j int) bool { return failed[i].URL < failed[j].URL })

	result := &DiscoveryResult{
		URLs:     urls,
		Visited:  visited,
		Failed:   failed,
		Duration: time.Since(startTime).Seconds(),
	}

	if err := ctx.Err(); err != nil {
		utils.Warnf("页面发现被中断: 已访问 %d, 已发现 %d", visited, len(urls))
		return result, err
	}

	utils.Infof("✅ 发现完成: 已访问 %d 个页面, 发现 %d 个URL, 失败 %d 个", visited, len(urls), len(failed))
	return result, nil
}

// visit 抓取一个页面,返回规范化后的作用域内出链
func (lc *LinkCrawler) visit(ctx context.Context, item models.FrontierItem) ([]string, error) {
	_, rawLinks, err := lc.source.FetchPage(ctx, item.URL)
	if lc.recorder != nil {
		lc.recorder.PageFetched("discover", err == nil)
	}
	if err != nil {
		if ctx.Err() == nil {
			utils.Warnf("无法发现页面链接 [%s]: %v", item.URL, err)
		}
		return nil, err
	}

	seen := make(map[string]bool, len(rawLinks))
	links := make([]string, 0, len(rawLinks))
	for _, raw := range rawLinks {
		link, err := NormalizeURL(raw, item.URL)
		if err != nil {
			continue
		}
		if seen[link] || !lc.scope(link) {
			continue
		}
		seen[link] = true
		links = append(links, link)
	}

	utils.Debugf("页面 %s: %d 个作用域内链接", item.URL, len(links))
	return links, nil
}

// classifyFetchError 粗分类抓取错误,用于报告
func classifyFetchError(err error) string {
	var (
		fe *models.FetchError
		ne net.Error
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.As(err, &fe) && fe.StatusCode > 0:
		return "http_status"
	default:
		return "network_error"
	}
}
