package core

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RecoveryAshes/docmirror/internal/metrics"
	"github.com/RecoveryAshes/docmirror/internal/models"
	"github.com/RecoveryAshes/docmirror/internal/store"
	"github.com/RecoveryAshes/docmirror/internal/utils"
)

// testSite 可修改内容的文档站点
type testSite struct {
	mu     sync.Mutex
	pages  map[string]string
	hits   atomic.Int64
	server *httptest.Server
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()
	s := &testSite{pages: map[string]string{
		"/docs/":           `<html><body><a href="intro.html">Intro</a> <a href="api/">API</a> <a href="/blog/">Blog</a></body></html>`,
		"/docs/intro.html": `<html><head><title>Intro</title></head><body><p>Getting started</p></body></html>`,
		"/docs/api/":       `<html><head><title>API</title></head><body><p>Functions</p><a href="../intro.html">back</a></body></html>`,
		"/blog/":           `<html><body>out of scope</body></html>`,
	}}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.mu.Lock()
		body, ok := s.pages[r.URL.Path]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *testSite) setPage(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = body
}

func (s *testSite) url(path string) string {
	return s.server.URL + path
}

type syncFixture struct {
	site       *testSite
	sourceDir  string
	changedLog string
	hashFile   string
	reportDir  string
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	root := t.TempDir()
	return &syncFixture{
		site:       newTestSite(t),
		sourceDir:  filepath.Join(root, "source_html"),
		changedLog: filepath.Join(root, "changed_urls.txt"),
		hashFile:   filepath.Join(root, "hashes.json"),
		reportDir:  filepath.Join(root, "reports"),
	}
}

func (f *syncFixture) syncConfig() models.SyncConfig {
	return models.SyncConfig{
		BaseURL:               f.site.url("/docs/"),
		SourceDir:             f.sourceDir,
		MaxWorkers:            2,
		RequestTimeout:        5 * time.Second,
		CarryForwardOnFailure: true,
	}
}

func (f *syncFixture) newRunner(t *testing.T, recorder *metrics.Recorder) *SyncRunner {
	t.Helper()
	hm, err := NewHeaderManager(models.HeaderConfig{}, nil)
	if err != nil {
		t.Fatalf("NewHeaderManager失败: %v", err)
	}
	runner, err := NewSyncRunner(f.syncConfig(), f.changedLog, store.NewFileFingerprintStore(f.hashFile), hm, utils.NewReporter(f.reportDir), recorder)
	if err != nil {
		t.Fatalf("NewSyncRunner失败: %v", err)
	}
	return runner
}

func (f *syncFixture) changedURLs(t *testing.T) []string {
	t.Helper()
	file, err := os.Open(f.changedLog)
	if err != nil {
		t.Fatalf("打开变更清单失败: %v", err)
	}
	defer file.Close()
	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func TestSyncRunner_Run(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	// 第一次运行: 全部为新页面
	report, err := f.newRunner(t, nil).Run(ctx)
	if err != nil {
		t.Fatalf("Run失败: %v", err)
	}
	if report.Status != models.RunStatusCompleted {
		t.Errorf("Status = %s", report.Status)
	}
	if report.Stats.DiscoveredURLs != 3 || report.Stats.NewPages != 3 || report.Stats.UnchangedPages != 0 {
		t.Errorf("Stats = %+v", report.Stats)
	}
	if got := f.changedURLs(t); len(got) != 3 {
		t.Errorf("变更清单 = %v", got)
	}
	for _, rel := range []string{"docs/index.html", "docs/intro.html", "docs/api/index.html"} {
		if _, err := os.Stat(filepath.Join(f.sourceDir, filepath.FromSlash(rel))); err != nil {
			t.Errorf("镜像文件缺失 %s: %v", rel, err)
		}
	}

	hashes, _ := store.NewFileFingerprintStore(f.hashFile).Load(ctx)
	if len(hashes) != 3 {
		t.Errorf("指纹表应有3条, 得到 %d", len(hashes))
	}

	// 第二次运行: 无变更,清单被截断
	report, err = f.newRunner(t, nil).Run(ctx)
	if err != nil {
		t.Fatalf("Run失败: %v", err)
	}
	if report.Stats.UnchangedPages != 3 || len(report.Changed) != 0 {
		t.Errorf("第二次运行不应有变更: %+v", report.Stats)
	}
	if got := f.changedURLs(t); len(got) != 0 {
		t.Errorf("变更清单应为空: %v", got)
	}

	// 第三次运行: 修改一个页面
	f.site.setPage("/docs/intro.html", `<html><head><title>Intro</title></head><body><p>Getting started, revised</p></body></html>`)
	report, err = f.newRunner(t, nil).Run(ctx)
	if err != nil {
		t.Fatalf("Run失败: %v", err)
	}
	if report.Stats.ChangedPages != 1 || report.Stats.UnchangedPages != 2 {
		t.Errorf("Stats = %+v", report.Stats)
	}
	got := f.changedURLs(t)
	if len(got) != 1 || got[0] != f.site.url("/docs/intro.html") {
		t.Errorf("变更清单 = %v", got)
	}
	content, _ := os.ReadFile(filepath.Join(f.sourceDir, "docs", "intro.html"))
	if !strings.Contains(string(content), "revised") {
		t.Error("变更页面应覆盖镜像文件")
	}

	// 报告
	data, err := os.ReadFile(filepath.Join(f.reportDir, utils.SyncReportFile))
	if err != nil {
		t.Fatalf("报告未生成: %v", err)
	}
	var saved models.SyncReport
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("报告不是合法JSON: %v", err)
	}
	if saved.RunID != report.RunID || saved.Stats.ChangedPages != 1 {
		t.Errorf("报告内容 = %+v", saved)
	}
}

func TestSyncRunner_RemovedPageDropsFingerprint(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	if _, err := f.newRunner(t, nil).Run(ctx); err != nil {
		t.Fatalf("Run失败: %v", err)
	}

	// 首页不再链接api页面
	f.site.setPage("/docs/", `<html><body><a href="intro.html">Intro</a></body></html>`)
	report, err := f.newRunner(t, nil).Run(ctx)
	if err != nil {
		t.Fatalf("Run失败: %v", err)
	}
	if report.Stats.DiscoveredURLs != 2 {
		t.Errorf("DiscoveredURLs = %d", report.Stats.DiscoveredURLs)
	}

	hashes, _ := store.NewFileFingerprintStore(f.hashFile).Load(ctx)
	if _, ok := hashes[f.site.url("/docs/api/")]; ok || len(hashes) != 2 {
		t.Errorf("未发现的页面应从指纹表中移除: %v", hashes)
	}
	// 镜像文件保留
	if _, err := os.Stat(filepath.Join(f.sourceDir, "docs", "api", "index.html")); err != nil {
		t.Error("不应删除已镜像的文件")
	}
}

func TestSyncRunner_Metrics(t *testing.T) {
	f := newSyncFixture(t)
	recorder := metrics.NewRecorder()

	if _, err := f.newRunner(t, recorder).Run(context.Background()); err != nil {
		t.Fatalf("Run失败: %v", err)
	}

	textfile := filepath.Join(t.TempDir(), "docmirror.prom")
	if err := recorder.WriteTextfile(textfile); err != nil {
		t.Fatalf("WriteTextfile失败: %v", err)
	}
	data, _ := os.ReadFile(textfile)
	for _, want := range []string{
		`docmirror_pages_classified_total{status="new"} 3`,
		`docmirror_run_duration_seconds{command="sync"}`,
		`docmirror_last_success_timestamp_seconds{command="sync"}`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("指标缺少 %s:\n%s", want, data)
		}
	}
}

func TestSyncRunner_CancelKeepsFingerprints(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	if _, err := f.newRunner(t, nil).Run(ctx); err != nil {
		t.Fatalf("Run失败: %v", err)
	}
	before, _ := os.ReadFile(f.hashFile)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	f.site.setPage("/docs/intro.html", "<p>changed</p>")
	report, err := f.newRunner(t, nil).Run(cancelled)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望context.Canceled, 得到 %v", err)
	}
	if report.Status != models.RunStatusCancelled {
		t.Errorf("Status = %s", report.Status)
	}

	after, _ := os.ReadFile(f.hashFile)
	if string(before) != string(after) {
		t.Error("取消的运行不应重写指纹表")
	}
}

func TestNewSyncRunner_InvalidConfig(t *testing.T) {
	hm, _ := NewHeaderManager(models.HeaderConfig{}, nil)
	_, err := NewSyncRunner(models.SyncConfig{BaseURL: "ftp://x/"}, "changed.txt", store.NewFileFingerprintStore("h.json"), hm, nil, nil)
	var ce *models.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("期望ConfigError, 得到 %v", err)
	}
}
