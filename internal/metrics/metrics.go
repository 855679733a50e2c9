// Package metrics 收集运行指标并导出为 node_exporter textfile
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/docmirror/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "docmirror"

// Recorder 一次运行的指标集合
// 使用独立的Registry,零值指针上的所有方法都是空操作
type Recorder struct {
	registry *prometheus.Registry

	pagesFetched    *prometheus.CounterVec
	pagesClassified *prometheus.CounterVec
	batches         *prometheus.CounterVec
	charsTranslated prometheus.Counter
	files           *prometheus.CounterVec
	runDuration     *prometheus.GaugeVec
	lastSuccess     *prometheus.GaugeVec
}

// NewRecorder 创建指标集合
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		pagesFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_fetched_total",
				Help:      "Pages fetched, by stage (discover, detect) and result.",
			},
			[]string{"stage", "result"},
		),
		pagesClassified: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_classified_total",
				Help:      "Pages compared against the previous fingerprints, by status.",
			},
			[]string{"status"},
		),
		batches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "translate_batches_total",
				Help:      "Translation batches submitted, by result (ok, degraded).",
			},
			[]string{"result"},
		),
		charsTranslated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "translate_characters_total",
				Help:      "Characters billed by the translation provider.",
			},
		),
		files: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "translate_files_total",
				Help:      "HTML files handled by the translator, by outcome.",
			},
			[]string{"outcome"},
		),
		runDuration: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of the last run, by command.",
			},
			[]string{"command"},
		),
		lastSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful run, by command.",
			},
			[]string{"command"},
		),
	}
}

// PageFetched 记录一次页面抓取
func (r *Recorder) PageFetched(stage string, ok bool) {
	if r == nil {
		return
	}
	r.pagesFetched.WithLabelValues(stage, result(ok)).Inc()
}

// PageClassified 记录一次变更分类
func (r *Recorder) PageClassified(status models.PageStatus) {
	if r == nil {
		return
	}
	r.pagesClassified.WithLabelValues(string(status)).Inc()
}

// BatchCompleted 记录一个翻译批次
func (r *Recorder) BatchCompleted(degraded bool, chars int64) {
	if r == nil {
		return
	}
	label := "ok"
	if degraded {
		label = "degraded"
	}
	r.batches.WithLabelValues(label).Inc()
	if chars > 0 {
		r.charsTranslated.Add(float64(chars))
	}
}

// FileProcessed 记录一个文件的处理结果
func (r *Recorder) FileProcessed(outcome models.FileOutcome) {
	if r == nil {
		return
	}
	r.files.WithLabelValues(string(outcome)).Inc()
}

// RunFinished 记录命令耗时; 成功时更新最后成功时间
func (r *Recorder) RunFinished(command string, duration time.Duration, ok bool) {
	if r == nil {
		return
	}
	r.runDuration.WithLabelValues(command).Set(duration.Seconds())
	if ok {
		r.lastSuccess.WithLabelValues(command).SetToCurrentTime()
	}
}

// Registry 返回底层Registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// WriteTextfile 以文本格式写出所有指标
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建指标目录失败: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("写入指标文件失败 [%s]: %w", path, err)
	}
	return nil
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
