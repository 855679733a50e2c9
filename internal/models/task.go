package models

import (
	"fmt"
	"time"
)

// RunStatus 运行状态
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"   // 执行中
	RunStatusCompleted RunStatus = "completed" // 已完成
	RunStatusFailed    RunStatus = "failed"    // 失败
	RunStatusCancelled RunStatus = "cancelled" // 已取消
)

// SyncStats 同步阶段统计
type SyncStats struct {
	DiscoveredURLs int     `json:"discovered_urls"` // 发现的URL数
	VisitedURLs    int     `json:"visited_urls"`    // 已访问(抓取链接)的URL数
	DiscoverErrors int     `json:"discover_errors"` // 发现阶段抓取失败数
	CheckedPages   int     `json:"checked_pages"`   // 成功比对的页面数
	NewPages       int     `json:"new_pages"`       // 新页面数
	ChangedPages   int     `json:"changed_pages"`   // 已变更页面数
	UnchangedPages int     `json:"unchanged_pages"` // 未变更页面数
	FailedPages    int     `json:"failed_pages"`    // 比对阶段抓取失败数
	SavedBytes     int64   `json:"saved_bytes"`     // 写入镜像目录的字节数
	Duration       float64 `json:"duration"`        // 总耗时(秒)
}

// TranslateStats 翻译阶段统计
type TranslateStats struct {
	TotalFiles      int     `json:"total_files"`      // 源目录HTML文件总数
	ProcessedFiles  int     `json:"processed_files"`  // 本次完成的文件数
	SkippedFiles    int     `json:"skipped_files"`    // 之前已完成而跳过的文件数
	DeferredFiles   int     `json:"deferred_files"`   // 字符额度耗尽而推迟的文件数
	FailedFiles     int     `json:"failed_files"`     // 处理失败的文件数
	Spans           int     `json:"spans"`            // 翻译的文本片段数
	Batches         int     `json:"batches"`          // 提交的批次数
	DegradedBatches int     `json:"degraded_batches"` // 重试耗尽、保留原文的批次数
	Characters      int64   `json:"characters"`       // 消耗的字符数
	Duration        float64 `json:"duration"`         // 总耗时(秒)
}

// Add 合并另一份统计(不含耗时)
func (s *TranslateStats) Add(o TranslateStats) {
	s.ProcessedFiles += o.ProcessedFiles
	s.SkippedFiles += o.SkippedFiles
	s.DeferredFiles += o.DeferredFiles
	s.FailedFiles += o.FailedFiles
	s.Spans += o.Spans
	s.Batches += o.Batches
	s.DegradedBatches += o.DegradedBatches
	s.Characters += o.Characters
}

// SyncConfig 同步(发现+变更检测)配置
type SyncConfig struct {
	BaseURL               string        `mapstructure:"base_url" json:"base_url"`                                 // 作用域前缀
	SeedURL               string        `mapstructure:"seed_url" json:"seed_url"`                                 // 起始URL,为空时使用BaseURL
	SourceDir             string        `mapstructure:"source_dir" json:"source_dir"`                             // 原始页面镜像目录
	MaxWorkers            int           `mapstructure:"max_workers" json:"max_workers"`                           // 发现阶段并发数 (默认:1)
	RequestTimeout        time.Duration `mapstructure:"request_timeout" json:"request_timeout"`                   // 单次HTTP请求超时
	PolitenessDelay       time.Duration `mapstructure:"politeness_delay" json:"politeness_delay"`                 // 相邻请求的最小间隔
	CarryForwardOnFailure bool          `mapstructure:"carry_forward_on_failure" json:"carry_forward_on_failure"` // 抓取失败时沿用上次的指纹
}

// Seed 返回实际使用的起始URL
func (c *SyncConfig) Seed() string {
	if c.SeedURL != "" {
		return c.SeedURL
	}
	return c.BaseURL
}

// Validate 验证配置
func (c *SyncConfig) Validate() error {
	if err := ValidateURL(c.BaseURL); err != nil {
		return fmt.Errorf("base_url无效: %w", err)
	}
	if c.SeedURL != "" {
		if err := ValidateURL(c.SeedURL); err != nil {
			return fmt.Errorf("seed_url无效: %w", err)
		}
	}
	if c.SourceDir == "" {
		return fmt.Errorf("source_dir不能为空")
	}
	if c.MaxWorkers < 1 || c.MaxWorkers > 64 {
		return fmt.Errorf("并发数必须在1-64之间")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("请求超时必须大于0")
	}
	if c.PolitenessDelay < 0 {
		return fmt.Errorf("请求间隔不能为负数")
	}
	return nil
}

// TranslateConfig 翻译配置
type TranslateConfig struct {
	SourceDir      string        `mapstructure:"source_dir" json:"source_dir"`             // 输入目录(原始页面镜像)
	OutputDir      string        `mapstructure:"output_dir" json:"output_dir"`             // 输出目录(译文镜像)
	SourceLang     string        `mapstructure:"source_lang" json:"source_lang"`           // 源语言 (默认:en)
	TargetLang     string        `mapstructure:"target_lang" json:"target_lang"`           // 目标语言 (默认:ka)
	BatchSize      int           `mapstructure:"batch_size" json:"batch_size"`             // 每次调用的片段数 (默认:128)
	MaxRetries     int           `mapstructure:"max_retries" json:"max_retries"`           // 每批最大尝试次数 (默认:3)
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" json:"retry_base_delay"` // 线性退避基数 (默认:5s)
	CharLimit      int64         `mapstructure:"char_limit" json:"char_limit"`             // 软性字符额度, 0表示不限制
	Workers        int           `mapstructure:"workers" json:"workers"`                   // 并发处理的文件数 (默认:1)
	AllowTags      []string      `mapstructure:"allow_tags" json:"allow_tags"`             // 可翻译标签
	DenyTags       []string      `mapstructure:"deny_tags" json:"deny_tags"`               // 禁止翻译的祖先标签
}

// Validate 验证配置
func (c *TranslateConfig) Validate() error {
	if c.SourceDir == "" || c.OutputDir == "" {
		return fmt.Errorf("source_dir和output_dir不能为空")
	}
	if c.SourceDir == c.OutputDir {
		return fmt.Errorf("输出目录不能与输入目录相同: %s", c.SourceDir)
	}
	if c.TargetLang == "" {
		return fmt.Errorf("target_lang不能为空")
	}
	if c.SourceLang == c.TargetLang {
		return fmt.Errorf("源语言与目标语言相同: %s", c.SourceLang)
	}
	if c.BatchSize < 1 || c.BatchSize > 1024 {
		return fmt.Errorf("批大小必须在1-1024之间")
	}
	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return fmt.Errorf("重试次数必须在1-10之间")
	}
	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("退避基数不能为负数")
	}
	if c.CharLimit < 0 {
		return fmt.Errorf("字符额度不能为负数")
	}
	if c.Workers < 1 || c.Workers > 32 {
		return fmt.Errorf("并发文件数必须在1-32之间")
	}
	return nil
}
