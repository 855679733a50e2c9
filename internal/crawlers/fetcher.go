package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/docmirror/internal/models"
	"github.com/RecoveryAshes/docmirror/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
)

const (
	ctxKeyBody   = "docmirror.body"
	ctxKeyLinks  = "docmirror.links"
	ctxKeyStatus = "docmirror.status"
	ctxKeyType   = "docmirror.content_type"

	// requestIDHeader 关联colly请求与调用方ctx,发送前由cancelTransport移除
	requestIDHeader = "X-Docmirror-Request-Id"
)

// FetcherConfig 抓取器配置
type FetcherConfig struct {
	RequestTimeout time.Duration
	MaxBodySize    int
}

// PageFetcher 页面抓取器(使用Colly)
// 同步模式: 每次Fetch在调用方goroutine内完成,结果通过请求上下文传回,可被多个worker并发调用
type PageFetcher struct {
	collector *colly.Collector
	config    FetcherConfig

	// HTTP头部提供者
	headerProvider models.HeaderProvider

	// 礼貌性限速
	limiter *Limiter

	transport *cancelTransport
}

// NewPageFetcher 创建页面抓取器
func NewPageFetcher(config FetcherConfig, headerProvider models.HeaderProvider, limiter *Limiter) *PageFetcher {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}

	// 同一URL在发现和比对阶段各抓取一次,去重由Frontier负责
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	if config.MaxBodySize > 0 {
		c.MaxBodySize = config.MaxBodySize
	}

	transport := newCancelTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.RequestTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   config.RequestTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	})
	c.WithTransport(transport)
	c.SetRequestTimeout(config.RequestTimeout)

	pf := &PageFetcher{
		collector:      c,
		config:         config,
		headerProvider: headerProvider,
		limiter:        limiter,
		transport:      transport,
	}
	pf.setupCallbacks()

	utils.Debugf("页面抓取器: 超时=%v, 请求间隔=%v", config.RequestTimeout, limiter.Delay())
	return pf
}

// setupCallbacks 设置Colly回调
func (pf *PageFetcher) setupCallbacks() {
	pf.collector.OnRequest(func(r *colly.Request) {
		if pf.headerProvider == nil {
			return
		}
		headers, err := pf.headerProvider.GetHeaders()
		if err != nil {
			utils.Warnf("获取HTTP头部失败: %v", err)
			return
		}
		for name, values := range headers {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
	})

	// OnResponse先于OnHTML执行,解压后的body会被OnHTML使用
	pf.collector.OnResponse(func(r *colly.Response) {
		body := r.Body
		if encoding := r.Headers.Get("Content-Encoding"); encoding != "" {
			decompressed, err := decompressBody(encoding, r.Body)
			if err != nil {
				utils.Warnf("解压响应失败 [%s] (编码=%s): %v", r.Request.URL, encoding, err)
			} else {
				body = decompressed
			}
		}
		r.Body = body
		r.Ctx.Put(ctxKeyBody, body)
		r.Ctx.Put(ctxKeyStatus, r.StatusCode)
		r.Ctx.Put(ctxKeyType, r.Headers.Get("Content-Type"))
	})

	pf.collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.Ctx != nil && r.StatusCode > 0 {
			r.Ctx.Put(ctxKeyStatus, r.StatusCode)
		}
	})

	pf.collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		if links, ok := e.Request.Ctx.GetAny(ctxKeyLinks).(*[]string); ok {
			*links = append(*links, link)
		}
	})
}

// Fetch 抓取页面内容
func (pf *PageFetcher) Fetch(ctx context.Context, pageURL string) (*models.PageRecord, error) {
	record, _, err := pf.fetch(ctx, pageURL)
	return record, err
}

// FetchPage 抓取页面并提取所有超链接(绝对URL,未规范化)
func (pf *PageFetcher) FetchPage(ctx context.Context, pageURL string) (*models.PageRecord, []string, error) {
	return pf.fetch(ctx, pageURL)
}

func (pf *PageFetcher) fetch(ctx context.Context, pageURL string) (*models.PageRecord, []string, error) {
	if err := pf.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	links := make([]string, 0)
	reqCtx := colly.NewContext()
	reqCtx.Put(ctxKeyLinks, &links)

	id, release := pf.transport.register(ctx)
	defer release()
	hdr := http.Header{}
	hdr.Set(requestIDHeader, id)

	utils.Debugf("抓取: %s", pageURL)
	if err := pf.collector.Request(http.MethodGet, pageURL, nil, reqCtx, hdr); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		status, _ := reqCtx.GetAny(ctxKeyStatus).(int)
		return nil, nil, &models.FetchError{URL: pageURL, StatusCode: status, Cause: err}
	}

	body, ok := reqCtx.GetAny(ctxKeyBody).([]byte)
	if !ok {
		return nil, nil, &models.FetchError{URL: pageURL, Cause: fmt.Errorf("响应为空")}
	}
	status, _ := reqCtx.GetAny(ctxKeyStatus).(int)

	record := &models.PageRecord{
		URL:         pageURL,
		Content:     body,
		Digest:      Fingerprint(body),
		ContentType: reqCtx.Get(ctxKeyType),
		StatusCode:  status,
		FetchedAt:   time.Now(),
	}
	return record, links, nil
}

// cancelTransport 把调用方的ctx绑定到colly发出的http请求上
// colly的Request不接受ctx,这里按请求头中的ID查找对应的ctx;
// 请求自身的ctx(含客户端超时)保留,调用方ctx取消时一并取消
type cancelTransport struct {
	base http.RoundTripper

	mu      sync.Mutex
	nextID  uint64
	entries map[string]*cancelEntry
}

type cancelEntry struct {
	ctx     context.Context
	stops   []func() bool
	cancels []context.CancelFunc
}

func newCancelTransport(base http.RoundTripper) *cancelTransport {
	return &cancelTransport{base: base, entries: make(map[string]*cancelEntry)}
}

// register 登记ctx,返回请求ID和注销函数
// 注销在响应体读完之后调用,此时取消请求ctx不影响结果
func (t *cancelTransport) register(ctx context.Context) (string, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := strconv.FormatUint(t.nextID, 10)
	entry := &cancelEntry{ctx: ctx}
	t.entries[id] = entry
	return id, func() {
		t.mu.Lock()
		delete(t.entries, id)
		stops, cancels := entry.stops, entry.cancels
		t.mu.Unlock()
		for _, stop := range stops {
			stop()
		}
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// RoundTrip 实现http.RoundTripper
func (t *cancelTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	id := req.Header.Get(requestIDHeader)
	if id == "" {
		return t.base.RoundTrip(req)
	}

	t.mu.Lock()
	entry, ok := t.entries[id]
	t.mu.Unlock()

	out := req.Clone(req.Context())
	if ok {
		reqCtx, cancel := context.WithCancel(req.Context())
		stop := context.AfterFunc(entry.ctx, cancel)
		t.mu.Lock()
		entry.stops = append(entry.stops, stop)
		entry.cancels = append(entry.cancels, cancel)
		t.mu.Unlock()
		out = req.Clone(reqCtx)
	}
	out.Header.Del(requestIDHeader)
	return t.base.RoundTrip(out)
}

// decompressBody 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli); 未压缩的内容原样返回
func decompressBody(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		// Colly可能已经解压过gzip,检查魔数
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()
		return io.ReadAll(reader)

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "", "identity":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
