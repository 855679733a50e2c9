package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/docmirror/internal/config"
	"github.com/RecoveryAshes/docmirror/internal/metrics"
	"github.com/RecoveryAshes/docmirror/internal/models"
	"github.com/RecoveryAshes/docmirror/internal/store"
	"github.com/RecoveryAshes/docmirror/internal/translator"
	"github.com/RecoveryAshes/docmirror/internal/utils"
)

// TranslateFiles 翻译阶段使用的状态与术语文件
type TranslateFiles struct {
	TerminologyFile string
	TerminologyKey  string
	StateFile       string
}

// TranslateRunner 翻译协调器
type TranslateRunner struct {
	config   models.TranslateConfig
	files    TranslateFiles
	provider translator.Provider
	reporter *utils.Reporter
	recorder *metrics.Recorder

	// ShowProgress 是否显示进度条
	ShowProgress bool
	// Rebuild 运行前清空已完成文件集合,重新翻译全部文件
	Rebuild bool

	checked bool
}

// NewProvider 按配置创建翻译服务客户端
// 凭据缺失属于致命配置错误
func NewProvider(cfg TranslateConfig) (translator.Provider, error) {
	switch cfg.Provider {
	case "google", "":
		return translator.NewGoogleProvider(translator.ProviderConfig{
			Endpoint: cfg.APIEndpoint,
			APIKey:   cfg.APIKey,
			Timeout:  cfg.RequestTimeout,
		})
	default:
		return nil, &models.ConfigError{
			FilePath: "translate.provider",
			Cause:    fmt.Errorf("未知的翻译服务: %s (有效值: google)", cfg.Provider),
		}
	}
}

// NewTranslateRunner 创建翻译协调器
func NewTranslateRunner(cfg models.TranslateConfig, files TranslateFiles, provider translator.Provider, reporter *utils.Reporter, recorder *metrics.Recorder) (*TranslateRunner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &models.ConfigError{FilePath: "translate", Cause: err}
	}
	if provider == nil {
		return nil, &models.ConfigError{FilePath: "translate.provider", Cause: models.ErrMissingCredentials}
	}
	return &TranslateRunner{
		config:   cfg,
		files:    files,
		provider: provider,
		reporter: reporter,
		recorder: recorder,
	}, nil
}

// Run 执行一次翻译
// 执行流程:
//  1. 检查翻译服务(失败即中止,此时尚未处理任何文件)
//  2. 加载术语表和已完成文件集合
//  3. 逐个翻译未完成的HTML文件,每完成一个立即持久化状态
//  4. 生成翻译报告
func (t *TranslateRunner) Run(ctx context.Context) (*models.TranslateReport, error) {
	startTime := time.Now()

	report := &models.TranslateReport{
		RunID:      models.NewRunID(),
		SourceLang: t.config.SourceLang,
		TargetLang: t.config.TargetLang,
		Status:     models.RunStatusRunning,
		StartTime:  startTime,
		CharLimit:  t.config.CharLimit,
		SourceDir:  t.config.SourceDir,
		OutputDir:  t.config.OutputDir,
		Files:      []models.TranslatedFile{},
	}

	utils.Infof("🚀 开始翻译 [%s]: %s → %s", report.RunID, t.config.SourceLang, t.config.TargetLang)
	utils.Infof("输入目录: %s", t.config.SourceDir)
	utils.Infof("输出目录: %s", t.config.OutputDir)

	if err := t.Preflight(ctx); err != nil {
		return t.finish(report, err)
	}

	terminology := config.LoadTerminology(t.files.TerminologyFile, t.files.TerminologyKey)
	processed := store.LoadProcessedFileSet(t.files.StateFile)
	if t.Rebuild {
		if err := processed.Reset(); err != nil {
			return t.finish(report, fmt.Errorf("清空翻译状态失败: %w", err))
		}
		utils.Info("♻️  全量重建: 已清空翻译状态")
	}
	utils.Infof("已完成文件: %d (%s)", processed.Len(), t.files.StateFile)

	budget := translator.NewCharBudget(t.config.CharLimit)
	batcher := translator.NewBatchTranslator(
		t.provider,
		translator.NewProtectionCodec(terminology),
		translator.BatchConfig{
			SourceLang:     t.config.SourceLang,
			TargetLang:     t.config.TargetLang,
			BatchSize:      t.config.BatchSize,
			MaxRetries:     t.config.MaxRetries,
			RetryBaseDelay: t.config.RetryBaseDelay,
		},
		t.recorder,
	)
	processor := translator.NewFileProcessor(
		translator.ProcessorConfig{
			SourceDir: t.config.SourceDir,
			OutputDir: t.config.OutputDir,
			Workers:   t.config.Workers,
		},
		translator.NewSpanClassifier(t.config.AllowTags, t.config.DenyTags),
		batcher,
		processed,
		budget,
		t.recorder,
	)

	if t.ShowProgress {
		bar := utils.NewProgressBar(-1, "翻译文件")
		defer bar.Finish()
		processor.OnFile = func(file models.TranslatedFile) {
			bar.Describe(fmt.Sprintf("翻译文件 (%s)", file.SourcePath))
			bar.Add(1)
		}
	}

	result, err := processor.Run(ctx)
	if result != nil {
		report.Files = append(report.Files, result.Files...)
		report.Stats = result.Stats
		report.BudgetExhausted = result.Exhausted
	}
	return t.finish(report, err)
}

// Preflight 检查翻译服务凭据与连通性,只检查一次
func (t *TranslateRunner) Preflight(ctx context.Context) error {
	if t.checked {
		return nil
	}
	if err := t.provider.Check(ctx); err != nil {
		return err
	}
	t.checked = true
	return nil
}

// InvalidateTranslations 把新增/变更页面从翻译状态中移除,返回移除数量
// 页面以镜像文件相对源目录的斜杠路径标识,与翻译阶段一致
func InvalidateTranslations(stateFile, sourceDir string, changes []models.PageChange) (int, error) {
	if stateFile == "" || len(changes) == 0 {
		return 0, nil
	}
	root, err := filepath.Abs(sourceDir)
	if err != nil {
		return 0, fmt.Errorf("解析源目录失败: %w", err)
	}

	files := make([]string, 0, len(changes))
	for _, c := range changes {
		if c.LocalPath == "" {
			continue
		}
		abs, err := filepath.Abs(c.LocalPath)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			utils.Warnf("镜像文件不在源目录内,跳过: %s", c.LocalPath)
			continue
		}
		files = append(files, filepath.ToSlash(rel))
	}
	return store.LoadProcessedFileSet(stateFile).Forget(files...)
}

// finish 补全报告、保存并输出摘要
func (t *TranslateRunner) finish(report *models.TranslateReport, runErr error) (*models.TranslateReport, error) {
	report.EndTime = time.Now()
	report.Stats.Duration = report.EndTime.Sub(report.StartTime).Seconds()

	switch {
	case runErr == nil:
		report.Status = models.RunStatusCompleted
	case errors.Is(runErr, context.Canceled):
		report.Status = models.RunStatusCancelled
		utils.Warn("翻译已取消,正在处理的文件未记入状态")
	default:
		report.Status = models.RunStatusFailed
	}

	t.recorder.RunFinished("translate", time.Since(report.StartTime), runErr == nil)

	if t.reporter != nil {
		if path, err := t.reporter.WriteTranslateReport(report); err != nil {
			utils.Warnf("生成报告失败: %v", err)
		} else {
			utils.Infof("📄 报告已生成: %s", path)
		}
	}

	printTranslateSummary(report)
	return report, runErr
}

// printTranslateSummary 打印翻译摘要
func printTranslateSummary(report *models.TranslateReport) {
	stats := report.Stats
	utils.Info("==================================================")
	utils.Info("📊 翻译统计")
	utils.Info("==================================================")
	utils.Infof("📄 HTML文件: %d", stats.TotalFiles)
	utils.Infof("✅ 本次完成: %d", stats.ProcessedFiles)
	utils.Infof("⏭️  之前已完成: %d", stats.SkippedFiles)
	utils.Infof("⏸️  额度推迟: %d", stats.DeferredFiles)
	utils.Infof("❌ 失败: %d", stats.FailedFiles)
	utils.Infof("🧩 片段/批次: %d/%d (降级 %d)", stats.Spans, stats.Batches, stats.DegradedBatches)
	if report.CharLimit > 0 {
		utils.Infof("🔤 字符数: %d / %d", stats.Characters, report.CharLimit)
	} else {
		utils.Infof("🔤 字符数: %d", stats.Characters)
	}
	utils.Infof("⏱️  总耗时: %.2f秒", stats.Duration)
	utils.Info("==================================================")

	if stats.FailedFiles > 0 {
		utils.Warn("失败的文件:")
		for _, f := range report.Files {
			if f.Outcome == models.OutcomeFailed {
				utils.Warnf("  - %s: %s", f.SourcePath, f.Error)
			}
		}
	}
}
