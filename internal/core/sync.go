package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RecoveryAshes/docmirror/internal/crawlers"
	"github.com/RecoveryAshes/docmirror/internal/metrics"
	"github.com/RecoveryAshes/docmirror/internal/models"
	"github.com/RecoveryAshes/docmirror/internal/store"
	"github.com/RecoveryAshes/docmirror/internal/utils"
)

// SyncRunner 同步协调器: 发现页面 → 比对指纹 → 保存变更 → 重写指纹表
type SyncRunner struct {
	config     models.SyncConfig
	changedLog string

	store    store.FingerprintStore
	fetcher  *crawlers.PageFetcher
	scope    crawlers.Scope
	reporter *utils.Reporter
	recorder *metrics.Recorder

	// ShowProgress 是否显示进度条
	ShowProgress bool
	// TranslationState 翻译状态文件; 非空时变更页面在重写指纹表之前从中移除
	TranslationState string
}

// NewSyncRunner 创建同步协调器
func NewSyncRunner(config models.SyncConfig, changedLog string, fpStore store.FingerprintStore, headerProvider models.HeaderProvider, reporter *utils.Reporter, recorder *metrics.Recorder) (*SyncRunner, error) {
	if err := config.Validate(); err != nil {
		return nil, &models.ConfigError{FilePath: "site", Cause: err}
	}

	scope, err := crawlers.PrefixScope(config.BaseURL)
	if err != nil {
		return nil, &models.ConfigError{FilePath: "site.base_url", Cause: err}
	}

	fetcher := crawlers.NewPageFetcher(
		crawlers.FetcherConfig{RequestTimeout: config.RequestTimeout},
		headerProvider,
		crawlers.NewLimiter(config.PolitenessDelay),
	)

	return &SyncRunner{
		config:     config,
		changedLog: changedLog,
		store:      fpStore,
		fetcher:    fetcher,
		scope:      scope,
		reporter:   reporter,
		recorder:   recorder,
	}, nil
}

// Run 执行一次同步
// 执行流程:
//  1. 读取上次的指纹表(损坏或不存在时为空)
//  2. 从种子开始发现作用域内的全部页面
//  3. 按URL排序逐个比对,新增/变更页面写入镜像目录和变更清单
//  4. 变更页面的译文状态失效
//  5. 整体重写指纹表
//  6. 生成同步报告
//
// ctx取消时不重写指纹表,已保存的页面保留
func (s *SyncRunner) Run(ctx context.Context) (*models.SyncReport, error) {
	startTime := time.Now()

	report := &models.SyncReport{
		RunID:           models.NewRunID(),
		BaseURL:         s.config.BaseURL,
		SeedURL:         s.config.Seed(),
		Status:          models.RunStatusRunning,
		StartTime:       startTime,
		SourceDir:       s.config.SourceDir,
		ChangedLog:      s.changedLog,
		FingerprintFile: s.store.Describe(),
		Changed:         []models.PageChange{},
		FailedPages:     []models.FailedPageInfo{},
	}

	utils.Infof("🚀 开始同步 [%s]", report.RunID)
	utils.Infof("镜像范围: %s", s.config.BaseURL)
	utils.Infof("镜像目录: %s", s.config.SourceDir)

	previous, err := s.store.Load(ctx)
	if err != nil {
		return s.finish(report, err)
	}
	utils.Infof("已加载 %d 条历史指纹 (%s)", len(previous), s.store.Describe())

	// 1. 发现
	discovery, err := s.discover(ctx)
	if discovery != nil {
		report.Stats.DiscoveredURLs = len(discovery.URLs)
		report.Stats.VisitedURLs = discovery.Visited
		report.Stats.DiscoverErrors = len(discovery.Failed)
		report.FailedPages = append(report.FailedPages, discovery.Failed...)
	}
	if err != nil {
		return s.finish(report, err)
	}

	// 2. 比对
	changeLog, err := crawlers.OpenChangeLog(s.changedLog)
	if err != nil {
		return s.finish(report, err)
	}
	defer changeLog.Close()

	cs, err := s.diff(ctx, discovery.URLs, previous, changeLog)
	if cs != nil {
		s.applyChangeSet(report, cs)
	}
	if err != nil {
		return s.finish(report, err)
	}

	// 3. 译文失效; 失败时不重写指纹表,下次运行会再次检测到这些页面
	if s.TranslationState != "" && len(cs.Changed) > 0 {
		n, err := InvalidateTranslations(s.TranslationState, s.config.SourceDir, cs.Changed)
		if err != nil {
			return s.finish(report, fmt.Errorf("更新翻译状态失败: %w", err))
		}
		if n > 0 {
			utils.Infof("♻️  %d 个已翻译页面有更新,将重新翻译", n)
		}
	}

	// 4. 重写指纹表
	if err := s.store.Save(ctx, cs.Current); err != nil {
		return s.finish(report, fmt.Errorf("保存指纹表失败: %w", err))
	}
	utils.Infof("💾 指纹表已更新: %d 条 (%s)", len(cs.Current), s.store.Describe())

	return s.finish(report, nil)
}

func (s *SyncRunner) discover(ctx context.Context) (*crawlers.DiscoveryResult, error) {
	lc := crawlers.NewLinkCrawler(s.fetcher, s.scope, s.config.MaxWorkers, s.recorder)
	if s.ShowProgress {
		bar := utils.NewProgressBar(-1, "发现页面")
		defer bar.Finish()
		lc.OnVisit = func(visited, discovered int) {
			bar.Describe(fmt.Sprintf("发现页面 (已发现 %d)", discovered))
			bar.Add(1)
		}
	}
	return lc.Discover(ctx, s.config.Seed())
}

func (s *SyncRunner) diff(ctx context.Context, urls []string, previous models.FingerprintMap, changeLog *crawlers.ChangeLog) (*models.ChangeSet, error) {
	detector := crawlers.NewChangeDetector(
		s.fetcher,
		crawlers.NewMirror(s.config.SourceDir),
		changeLog,
		s.config.CarryForwardOnFailure,
		s.recorder,
	)
	if s.ShowProgress {
		bar := utils.NewProgressBar(len(urls), "检查更新")
		defer bar.Finish()
		detector.OnCheck = func(string, models.PageStatus) {
			bar.Add(1)
		}
	}
	return detector.Diff(ctx, urls, previous)
}

func (s *SyncRunner) applyChangeSet(report *models.SyncReport, cs *models.ChangeSet) {
	report.Changed = append(report.Changed, cs.Changed...)
	report.Stats.NewPages = cs.CountByStatus(models.PageNew)
	report.Stats.ChangedPages = cs.CountByStatus(models.PageChanged)
	report.Stats.UnchangedPages = cs.Unchanged
	report.Stats.FailedPages = len(cs.Failed)
	report.Stats.CheckedPages = len(cs.Changed) + cs.Unchanged
	for _, c := range cs.Changed {
		report.Stats.SavedBytes += c.Size
	}
	for _, u := range cs.Failed {
		report.FailedPages = append(report.FailedPages, models.FailedPageInfo{
			URL:       u,
			Stage:     "detect",
			ErrorType: "fetch_failed",
			ErrorMsg:  "比对阶段抓取失败,本次跳过",
		})
	}
}

// finish 补全报告、保存并输出摘要
func (s *SyncRunner) finish(report *models.SyncReport, runErr error) (*models.SyncReport, error) {
	report.EndTime = time.Now()
	report.Stats.Duration = report.EndTime.Sub(report.StartTime).Seconds()

	switch {
	case runErr == nil:
		report.Status = models.RunStatusCompleted
	case errors.Is(runErr, context.Canceled):
		report.Status = models.RunStatusCancelled
		utils.Warn("同步已取消,指纹表未更新")
	default:
		report.Status = models.RunStatusFailed
	}

	s.recorder.RunFinished("sync", time.Since(report.StartTime), runErr == nil)

	if s.reporter != nil {
		if path, err := s.reporter.WriteSyncReport(report); err != nil {
			utils.Warnf("生成报告失败: %v", err)
		} else {
			utils.Infof("📄 报告已生成: %s", path)
		}
	}

	printSyncSummary(report)
	return report, runErr
}

// printSyncSummary 打印同步摘要
func printSyncSummary(report *models.SyncReport) {
	stats := report.Stats
	utils.Info("==================================================")
	utils.Info("📊 同步统计")
	utils.Info("==================================================")
	utils.Infof("🔗 发现URL: %d (访问 %d, 失败 %d)", stats.DiscoveredURLs, stats.VisitedURLs, stats.DiscoverErrors)
	utils.Infof("🆕 新页面: %d", stats.NewPages)
	utils.Infof("✏️  已变更: %d", stats.ChangedPages)
	utils.Infof("✅ 未变更: %d", stats.UnchangedPages)
	utils.Infof("❌ 抓取失败: %d", stats.FailedPages)
	utils.Infof("📦 写入大小: %s", utils.FormatBytes(stats.SavedBytes))
	utils.Infof("⏱️  总耗时: %.2f秒", stats.Duration)
	utils.Info("==================================================")
}
