package crawlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/RecoveryAshes/docmirror/internal/models"
)

// fakeSource 内存中的页面内容, fail中的URL返回抓取错误
type fakeSource struct {
	mu    sync.Mutex
	pages map[string]string
	fail  map[string]bool
}

func (s *fakeSource) Fetch(ctx context.Context, pageURL string) (*models.PageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[pageURL] {
		return nil, &models.FetchError{URL: pageURL, StatusCode: 503, Cause: errors.New("unavailable")}
	}
	content := []byte(s.pages[pageURL])
	return &models.PageRecord{URL: pageURL, Content: content, Digest: Fingerprint(content)}, nil
}

type detectRecorder struct {
	countingRecorder
	classified map[models.PageStatus]int
}

func (r *detectRecorder) PageClassified(status models.PageStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.classified == nil {
		r.classified = make(map[models.PageStatus]int)
	}
	r.classified[status]++
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取 %s 失败: %v", path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func TestChangeDetector_Diff(t *testing.T) {
	const (
		home  = "https://docs.example/en/"
		intro = "https://docs.example/en/intro"
		api   = "https://docs.example/en/api/"
	)

	dir := t.TempDir()
	sourceDir := filepath.Join(dir, "source")
	source := &fakeSource{pages: map[string]string{
		home:  "<html>home</html>",
		intro: "<html>intro v2</html>",
		api:   "<html>api</html>",
	}}

	previous := models.FingerprintMap{
		home:  Fingerprint([]byte("<html>home</html>")),
		intro: Fingerprint([]byte("<html>intro v1</html>")),
		"https://docs.example/en/removed": "old",
	}

	logPath := filepath.Join(dir, "changed_urls.txt")
	changeLog, err := OpenChangeLog(logPath)
	if err != nil {
		t.Fatalf("OpenChangeLog失败: %v", err)
	}

	recorder := &detectRecorder{}
	detector := NewChangeDetector(source, NewMirror(sourceDir), changeLog, true, recorder)

	// 输入顺序无关,结果按URL排序
	cs, err := detector.Diff(context.Background(), []string{intro, api, home}, previous)
	if err != nil {
		t.Fatalf("Diff失败: %v", err)
	}
	changeLog.Close()

	if got := cs.ChangedURLs(); strings.Join(got, ",") != api+","+intro {
		t.Errorf("ChangedURLs = %v", got)
	}
	if cs.Changed[0].Status != models.PageNew || cs.Changed[1].Status != models.PageChanged {
		t.Errorf("状态错误: %+v", cs.Changed)
	}
	if cs.Unchanged != 1 {
		t.Errorf("Unchanged = %d, want 1", cs.Unchanged)
	}

	if len(cs.Current) != 3 {
		t.Errorf("Current应只包含本次发现的URL: %v", cs.Current)
	}
	if _, ok := cs.Current["https://docs.example/en/removed"]; ok {
		t.Error("未被发现的URL不应出现在Current中")
	}

	data, err := os.ReadFile(filepath.Join(sourceDir, "en", "intro.html"))
	if err != nil || string(data) != "<html>intro v2</html>" {
		t.Errorf("变更页面未正确保存: %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(sourceDir, "en", "api", "index.html")); err != nil {
		t.Errorf("新页面未保存: %v", err)
	}
	if _, err := os.Stat(filepath.Join(sourceDir, "en", "index.html")); !os.IsNotExist(err) {
		t.Error("未变更页面不应写入镜像")
	}

	if lines := readLines(t, logPath); strings.Join(lines, ",") != api+","+intro {
		t.Errorf("变更清单 = %v", lines)
	}

	if recorder.classified[models.PageNew] != 1 || recorder.classified[models.PageChanged] != 1 ||
		recorder.classified[models.PageUnchanged] != 1 {
		t.Errorf("分类指标错误: %v", recorder.classified)
	}

	t.Run("第二次运行无变更", func(t *testing.T) {
		logPath2 := filepath.Join(dir, "changed_urls_2.txt")
		changeLog2, _ := OpenChangeLog(logPath2)
		detector2 := NewChangeDetector(source, NewMirror(sourceDir), changeLog2, true, nil)

		cs2, err := detector2.Diff(context.Background(), []string{home, intro, api}, cs.Current)
		if err != nil {
			t.Fatalf("Diff失败: %v", err)
		}
		changeLog2.Close()

		if len(cs2.Changed) != 0 {
			t.Errorf("内容不变时不应有变更: %v", cs2.ChangedURLs())
		}
		if cs2.Unchanged != 3 {
			t.Errorf("Unchanged = %d, want 3", cs2.Unchanged)
		}
		if len(readLines(t, logPath2)) != 0 {
			t.Error("变更清单应为空")
		}
		if changeLog2.Count() != 0 {
			t.Errorf("Count = %d", changeLog2.Count())
		}
	})
}

func TestChangeDetector_FetchFailure(t *testing.T) {
	const (
		page    = "https://docs.example/en/page"
		newPage = "https://docs.example/en/new"
	)
	previous := models.FingerprintMap{page: "digest-from-last-run"}

	tests := []struct {
		name         string
		carryForward bool
		wantCarried  bool
	}{
		{"沿用旧摘要", true, true},
		{"丢弃旧摘要", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSource{
				pages: map[string]string{},
				fail:  map[string]bool{page: true, newPage: true},
			}
			detector := NewChangeDetector(source, NewMirror(t.TempDir()), nil, tt.carryForward, nil)

			cs, err := detector.Diff(context.Background(), []string{page, newPage}, previous)
			if err != nil {
				t.Fatalf("Diff失败: %v", err)
			}

			if len(cs.Changed) != 0 {
				t.Error("抓取失败不算变更")
			}
			if len(cs.Failed) != 2 {
				t.Errorf("Failed = %v", cs.Failed)
			}
			digest, ok := cs.Current[page]
			if ok != tt.wantCarried {
				t.Errorf("Current中是否存在 = %v, want %v", ok, tt.wantCarried)
			}
			if ok && digest != "digest-from-last-run" {
				t.Errorf("沿用的摘要 = %q", digest)
			}
			if _, ok := cs.Current[newPage]; ok {
				t.Error("没有旧摘要的失败页面不应出现在Current中")
			}
		})
	}
}

func TestChangeDetector_Cancel(t *testing.T) {
	source := &fakeSource{pages: map[string]string{}}
	detector := NewChangeDetector(source, NewMirror(t.TempDir()), nil, true, nil)

	ctx, cancel := context.WithCancel(context.Background())
	detector.OnCheck = func(string, models.PageStatus) { cancel() }

	cs, err := detector.Diff(ctx, []string{"https://x/a", "https://x/b", "https://x/c"}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望context.Canceled, 得到 %v", err)
	}
	if len(cs.Changed) != 1 {
		t.Errorf("取消前应只处理一个URL: %v", cs.ChangedURLs())
	}
}
