package core

import (
	"context"
	"errors"
	"time"

	"github.com/RecoveryAshes/docmirror/internal/models"
	"github.com/RecoveryAshes/docmirror/internal/utils"
)

// Pipeline 完整流程: 先同步镜像,再翻译
type Pipeline struct {
	sync      *SyncRunner
	translate *TranslateRunner
}

// PipelineSummary 完整流程摘要
type PipelineSummary struct {
	Sync      *models.SyncReport
	Translate *models.TranslateReport
	Duration  float64
}

// NewPipeline 创建完整流程
func NewPipeline(syncRunner *SyncRunner, translateRunner *TranslateRunner) *Pipeline {
	return &Pipeline{sync: syncRunner, translate: translateRunner}
}

// Run 依次执行同步和翻译
// 翻译服务先于同步检查; 没有变更时仍然执行翻译,以便续传上次未完成的文件;
// 同步阶段的非致命错误只记录日志, 取消或配置错误会中止后续阶段
func (p *Pipeline) Run(ctx context.Context) (*PipelineSummary, error) {
	startTime := time.Now()
	summary := &PipelineSummary{}

	// 翻译服务不可用属于致命错误,在同步开始前检查
	if err := p.translate.Preflight(ctx); err != nil {
		return summary, err
	}

	utils.Info("==================== [1/2] 同步 ====================")
	syncReport, err := p.sync.Run(ctx)
	summary.Sync = syncReport
	if err != nil {
		var cfgErr *models.ConfigError
		if ctx.Err() != nil || errors.As(err, &cfgErr) {
			summary.Duration = time.Since(startTime).Seconds()
			return summary, err
		}
		utils.Errorf("❌ 同步失败,继续翻译已有镜像: %v", err)
	} else if len(syncReport.Changed) == 0 {
		utils.Info("没有页面变更,检查未完成的翻译")
	}

	utils.Info("==================== [2/2] 翻译 ====================")
	translateReport, err := p.translate.Run(ctx)
	summary.Translate = translateReport
	summary.Duration = time.Since(startTime).Seconds()
	if err != nil {
		return summary, err
	}

	utils.Infof("✨ 全部完成, 总耗时 %.2f秒", summary.Duration)
	return summary, nil
}
