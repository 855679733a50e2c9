package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/docmirror/internal/models"
)

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.PageFetched("discover", true)
	r.PageFetched("detect", false)
	r.PageClassified(models.PageChanged)
	r.BatchCompleted(false, 120)
	r.BatchCompleted(true, 0)
	r.FileProcessed(models.OutcomeDone)
	r.RunFinished("translate", 3*time.Second, true)

	path := filepath.Join(t.TempDir(), "textfile", "docmirror.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile失败: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("指标文件未写出: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		`docmirror_pages_fetched_total{result="ok",stage="discover"} 1`,
		`docmirror_pages_fetched_total{result="error",stage="detect"} 1`,
		`docmirror_pages_classified_total{status="changed"} 1`,
		`docmirror_translate_batches_total{result="degraded"} 1`,
		`docmirror_translate_characters_total 120`,
		`docmirror_translate_files_total{outcome="done"} 1`,
		`docmirror_run_duration_seconds{command="translate"} 3`,
		`docmirror_last_success_timestamp_seconds{command="translate"}`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("指标缺少 %s", want)
		}
	}
}

func TestRecorder_FailedRunKeepsLastSuccess(t *testing.T) {
	r := NewRecorder()
	r.RunFinished("sync", time.Second, false)

	path := filepath.Join(t.TempDir(), "docmirror.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile失败: %v", err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "docmirror_last_success_timestamp_seconds{") {
		t.Error("失败的运行不应更新最后成功时间")
	}
	if !strings.Contains(string(data), `docmirror_run_duration_seconds{command="sync"} 1`) {
		t.Errorf("应记录耗时:\n%s", data)
	}
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	r.PageFetched("discover", true)
	r.PageClassified(models.PageNew)
	r.BatchCompleted(false, 10)
	r.FileProcessed(models.OutcomeFailed)
	r.RunFinished("sync", time.Second, true)

	if r.Registry() != nil {
		t.Error("nil Recorder的Registry应为nil")
	}
	path := filepath.Join(t.TempDir(), "m.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Errorf("nil Recorder写出应为空操作: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("nil Recorder不应写出文件")
	}

	if err := NewRecorder().WriteTextfile(""); err != nil {
		t.Errorf("未配置路径应为空操作: %v", err)
	}
}
