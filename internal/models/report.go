package models

import (
	"encoding/json"
	"time"
)

// SyncReport 同步报告
type SyncReport struct {
	// 运行信息
	RunID   string    `json:"run_id"`
	BaseURL string    `json:"base_url"`
	SeedURL string    `json:"seed_url"`
	Status  RunStatus `json:"status"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// 统计信息
	Stats SyncStats `json:"stats"`

	// 页面列表
	Changed     []PageChange     `json:"changed"`      // 新增/变更页面
	FailedPages []FailedPageInfo `json:"failed_pages"` // 抓取失败页面

	// 输出路径
	SourceDir       string `json:"source_dir"`
	ChangedLog      string `json:"changed_log"`
	FingerprintFile string `json:"fingerprint_file,omitempty"`
}

// FailedPageInfo 失败页面信息
type FailedPageInfo struct {
	URL       string `json:"url"`
	Stage     string `json:"stage"`      // discover, detect
	ErrorType string `json:"error_type"` // timeout, http_status, network_error
	ErrorMsg  string `json:"error_msg"`
}

// TranslateReport 翻译报告
type TranslateReport struct {
	RunID      string    `json:"run_id"`
	SourceLang string    `json:"source_lang"`
	TargetLang string    `json:"target_lang"`
	Status     RunStatus `json:"status"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	Stats TranslateStats `json:"stats"`

	// 文件列表
	Files []TranslatedFile `json:"files"`

	// 额度信息
	CharLimit       int64 `json:"char_limit"`
	BudgetExhausted bool  `json:"budget_exhausted"`

	SourceDir string `json:"source_dir"`
	OutputDir string `json:"output_dir"`
}

// ToJSON 序列化为JSON
func (r *SyncReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ToJSON 序列化为JSON
func (r *TranslateReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
