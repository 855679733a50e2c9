package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/docmirror/internal/models"
	"github.com/schollz/progressbar/v3"
)

const (
	SyncReportFile      = "sync_report.json"
	TranslateReportFile = "translate_report.json"
)

// Reporter 报告生成器
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

// Dir 返回报告目录
func (r *Reporter) Dir() string {
	return r.outputDir
}

// WriteSyncReport 保存同步报告
func (r *Reporter) WriteSyncReport(report *models.SyncReport) (string, error) {
	return r.saveJSONReport(SyncReportFile, report)
}

// WriteTranslateReport 保存翻译报告
func (r *Reporter) WriteTranslateReport(report *models.TranslateReport) (string, error) {
	return r.saveJSONReport(TranslateReportFile, report)
}

// jsonReport 可序列化的报告
type jsonReport interface {
	ToJSON() ([]byte, error)
}

// saveJSONReport 保存JSON报告
func (r *Reporter) saveJSONReport(filename string, report jsonReport) (string, error) {
	path := filepath.Join(r.outputDir, filename)

	jsonData, err := report.ToJSON()
	if err != nil {
		return "", fmt.Errorf("序列化JSON失败: %w", err)
	}
	if err := WriteFileAtomic(path, jsonData); err != nil {
		return "", fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return path, nil
}

// NewProgressBar 创建进度条
// max为-1时显示不确定进度(发现阶段总数未知)
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return newProgressBar(os.Stderr, max, description)
}

func newProgressBar(w io.Writer, max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
