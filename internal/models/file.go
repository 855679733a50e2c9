package models

import "time"

// FileOutcome 单个文件的处理结果
type FileOutcome string

const (
	OutcomeDone     FileOutcome = "done"     // 已翻译并写出,已记入状态
	OutcomeSkipped  FileOutcome = "skipped"  // 之前已完成
	OutcomeDeferred FileOutcome = "deferred" // 额度耗尽,已写出部分译文但未记入状态
	OutcomeFailed   FileOutcome = "failed"   // 解析/写入失败,下次重试
)

// HTMLFileExtensions 需要翻译的文件扩展名
var HTMLFileExtensions = []string{".html", ".htm"}

// TranslatedFile 翻译文件记录
type TranslatedFile struct {
	// 标识信息
	SourcePath string `json:"source_path"` // 相对源目录的路径(斜杠分隔)
	OutputPath string `json:"output_path"` // 输出文件路径

	// 处理结果
	Outcome         FileOutcome `json:"outcome"`
	Spans           int         `json:"spans"`            // 可翻译片段数
	Batches         int         `json:"batches"`          // 提交批次数
	DegradedBatches int         `json:"degraded_batches"` // 保留原文的批次数
	Characters      int64       `json:"characters"`       // 消耗字符数
	Error           string      `json:"error,omitempty"`

	// 时间戳
	ProcessedAt time.Time `json:"processed_at"`
	Duration    float64   `json:"duration"` // 秒
}
