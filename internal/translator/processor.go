package translator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/docmirror/internal/models"
	"github.com/RecoveryAshes/docmirror/internal/store"
	"github.com/RecoveryAshes/docmirror/internal/utils"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// ProcessorConfig 文件处理配置
type ProcessorConfig struct {
	SourceDir string
	OutputDir string
	Workers   int
}

// FileRecorder 记录文件处理结果的指标接口
type FileRecorder interface {
	FileProcessed(outcome models.FileOutcome)
}

// RunResult 一次翻译运行的结果
type RunResult struct {
	Files     []models.TranslatedFile
	Stats     models.TranslateStats
	Exhausted bool
}

// FileProcessor 可断点续传的文件处理器
// 每完成一个文件立即持久化状态,中断最多丢失正在处理的文件
type FileProcessor struct {
	config     ProcessorConfig
	classifier *SpanClassifier
	translator *BatchTranslator
	processed  *store.ProcessedFileSet
	budget     *CharBudget
	recorder   FileRecorder

	// OnFile 每个文件得到结果时回调一次,调用是串行的(可为nil)
	OnFile func(file models.TranslatedFile)
}

// NewFileProcessor 创建文件处理器
func NewFileProcessor(config ProcessorConfig, classifier *SpanClassifier, translator *BatchTranslator, processed *store.ProcessedFileSet, budget *CharBudget, recorder FileRecorder) *FileProcessor {
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &FileProcessor{
		config:     config,
		classifier: classifier,
		translator: translator,
		processed:  processed,
		budget:     budget,
		recorder:   recorder,
	}
}

// RelPath 返回文件相对源目录的斜杠路径(状态集合中的文件标识)
func (fp *FileProcessor) RelPath(path string) (string, error) {
	rel, err := filepath.Rel(fp.config.SourceDir, path)
	if err != nil {
		return "", fmt.Errorf("计算相对路径失败 [%s]: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("文件不在源目录内: %s", path)
	}
	return filepath.ToSlash(rel), nil
}

// OutputPath 返回译文输出路径
func (fp *FileProcessor) OutputPath(rel string) string {
	return filepath.Join(fp.config.OutputDir, filepath.FromSlash(rel))
}

// ProcessFile 翻译单个文件
// 已在状态集合中的文件直接跳过(不读取); 额度中途用尽时写出部分译文但不记入状态
func (fp *FileProcessor) ProcessFile(ctx context.Context, path string) (models.TranslatedFile, error) {
	startTime := time.Now()
	file := models.TranslatedFile{SourcePath: path}

	finish := func(outcome models.FileOutcome, err error) (models.TranslatedFile, error) {
		file.Outcome = outcome
		file.ProcessedAt = time.Now()
		file.Duration = time.Since(startTime).Seconds()
		if err != nil {
			file.Error = err.Error()
		}
		if fp.recorder != nil {
			fp.recorder.FileProcessed(outcome)
		}
		return file, err
	}

	rel, err := fp.RelPath(path)
	if err != nil {
		return finish(models.OutcomeFailed, err)
	}
	file.SourcePath = rel
	file.OutputPath = fp.OutputPath(rel)

	if fp.processed.Contains(rel) {
		return finish(models.OutcomeSkipped, nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return finish(models.OutcomeFailed, fmt.Errorf("读取文件失败: %w", err))
	}
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return finish(models.OutcomeFailed, fmt.Errorf("解析HTML失败: %w", err))
	}

	spans := fp.classifier.Classify(doc)
	texts := make([]string, len(spans))
	for i, span := range spans {
		texts[i] = span.Text
	}

	result, err := fp.translator.TranslateAll(ctx, texts, fp.budget)
	if err != nil {
		return finish(models.OutcomeFailed, err)
	}
	file.Spans = result.Stats.Spans
	file.Batches = result.Stats.Batches
	file.DegradedBatches = result.Stats.DegradedBatches
	file.Characters = result.Stats.Characters

	// 按原顺序写回
	for i, span := range spans {
		span.Node.Data = result.Texts[i]
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return finish(models.OutcomeFailed, fmt.Errorf("生成HTML失败: %w", err))
	}
	if err := utils.WriteFileAtomic(file.OutputPath, buf.Bytes()); err != nil {
		return finish(models.OutcomeFailed, err)
	}

	if result.Exhausted {
		return finish(models.OutcomeDeferred, nil)
	}

	if file.DegradedBatches > 0 {
		utils.Warnf("⚠️  %s: %d 个批次保留了原文", rel, file.DegradedBatches)
	}
	if err := fp.processed.MarkDone(rel); err != nil {
		return finish(models.OutcomeFailed, fmt.Errorf("保存处理状态失败: %w", err))
	}
	return finish(models.OutcomeDone, nil)
}

// deferred 已领取但因额度用尽未处理的文件
func (fp *FileProcessor) deferred(path string) models.TranslatedFile {
	file := models.TranslatedFile{SourcePath: path, Outcome: models.OutcomeDeferred, ProcessedAt: time.Now()}
	if rel, err := fp.RelPath(path); err == nil {
		file.SourcePath = rel
		file.OutputPath = fp.OutputPath(rel)
	}
	if fp.recorder != nil {
		fp.recorder.FileProcessed(models.OutcomeDeferred)
	}
	return file
}

// Run 翻译源目录下所有未完成的HTML文件
// 单个文件的错误只记录日志; 致命的翻译服务错误中止运行;
// 额度用尽后不再领取新文件; ctx取消时返回已完成部分
func (fp *FileProcessor) Run(ctx context.Context) (*RunResult, error) {
	startTime := time.Now()

	paths, err := utils.ListFiles(fp.config.SourceDir, models.HTMLFileExtensions, fp.config.OutputDir)
	if err != nil {
		return nil, err
	}

	result := &RunResult{}
	result.Stats.TotalFiles = len(paths)

	pending := make([]string, 0, len(paths))
	for _, path := range paths {
		rel, err := fp.RelPath(path)
		if err == nil && fp.processed.Contains(rel) {
			result.Stats.SkippedFiles++
			continue
		}
		pending = append(pending, path)
	}

	utils.Infof("📄 共 %d 个HTML文件, 已完成 %d 个, 待处理 %d 个",
		len(paths), result.Stats.SkippedFiles, len(pending))
	if len(pending) == 0 {
		utils.Info("所有文件均已翻译,无需处理")
		result.Stats.Duration = time.Since(startTime).Seconds()
		return result, nil
	}

	var mu sync.Mutex
	collect := func(file models.TranslatedFile) {
		mu.Lock()
		defer mu.Unlock()
		result.Files = append(result.Files, file)
		var stats models.TranslateStats
		switch file.Outcome {
		case models.OutcomeDone:
			stats.ProcessedFiles = 1
		case models.OutcomeSkipped:
			stats.SkippedFiles = 1
		case models.OutcomeDeferred:
			stats.DeferredFiles = 1
		case models.OutcomeFailed:
			stats.FailedFiles = 1
		}
		stats.Spans = file.Spans
		stats.Batches = file.Batches
		stats.DegradedBatches = file.DegradedBatches
		stats.Characters = file.Characters
		result.Stats.Add(stats)
		if fp.OnFile != nil {
			fp.OnFile(file)
		}
	}

	jobs := make(chan string)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i, path := range pending {
			// 额度用尽: 剩余文件全部推迟到下次运行
			if fp.budget.Exhausted() {
				utils.Warnf("⚠️  字符额度已用完 (%d/%d),停止翻译", fp.budget.Used(), fp.budget.Limit())
				for _, rest := range pending[i:] {
					collect(fp.deferred(rest))
				}
				return nil
			}
			select {
			case jobs <- path:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for i := 0; i < fp.config.Workers; i++ {
		g.Go(func() error {
			for path := range jobs {
				// 已领取但额度已在其他文件中用完
				if fp.budget.Exhausted() {
					collect(fp.deferred(path))
					continue
				}
				utils.Debugf("[开始] %s", path)
				file, err := fp.ProcessFile(gctx, path)
				if err != nil {
					if models.IsFatal(err) {
						collect(file)
						return err
					}
					if gctx.Err() != nil {
						return gctx.Err()
					}
					utils.Logger.Error().Err(err).Str("file", path).Msg("处理文件失败")
				} else {
					utils.Debugf("[完成] %s (%s, %d 字符)", file.SourcePath, file.Outcome, file.Characters)
				}
				collect(file)
			}
			return nil
		})
	}

	err = g.Wait()

	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].SourcePath < result.Files[j].SourcePath
	})
	result.Exhausted = fp.budget.Exhausted()
	result.Stats.Duration = time.Since(startTime).Seconds()

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return result, err
	}
	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, nil
}
