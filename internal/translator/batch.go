package translator

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/RecoveryAshes/docmirror/internal/models"
	"github.com/RecoveryAshes/docmirror/internal/utils"
)

const (
	DefaultBatchSize      = 128
	DefaultMaxRetries     = 3
	DefaultRetryBaseDelay = 5 * time.Second

	// errorPrefixLen 降级日志中记录的首条原文长度
	errorPrefixLen = 100
)

// BatchConfig 批量翻译配置
type BatchConfig struct {
	SourceLang     string
	TargetLang     string
	BatchSize      int
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// BatchRecorder 记录批次结果的指标接口
type BatchRecorder interface {
	BatchCompleted(degraded bool, chars int64)
}

// BatchOutcome 单批次结果
type BatchOutcome struct {
	// Texts 与输入一一对应; 降级时为原文
	Texts []string
	// Chars 消耗的字符数(受保护文本长度之和), 降级时为0
	Chars int64
	// Attempts 实际调用次数
	Attempts int
	// Degraded 是否保留了原文
	Degraded bool
	// Err 降级原因
	Err error
}

// TranslateResult 多批次翻译结果
type TranslateResult struct {
	Texts []string
	Stats models.TranslateStats
	// Exhausted 额度用尽,部分文本未提交
	Exhausted bool
}

// BatchTranslator 分批翻译器
type BatchTranslator struct {
	provider Provider
	codec    *ProtectionCodec
	config   BatchConfig
	recorder BatchRecorder

	// sleep 重试等待,测试时可替换
	sleep func(ctx context.Context, d time.Duration) error
}

// NewBatchTranslator 创建分批翻译器
func NewBatchTranslator(provider Provider, codec *ProtectionCodec, config BatchConfig, recorder BatchRecorder) *BatchTranslator {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.RetryBaseDelay < 0 {
		config.RetryBaseDelay = 0
	}
	if codec == nil {
		codec = NewProtectionCodec(nil)
	}
	return &BatchTranslator{
		provider: provider,
		codec:    codec,
		config:   config,
		recorder: recorder,
		sleep:    sleepContext,
	}
}

// TranslateAll 按批次大小切分并依次翻译
// 每批提交前检查额度,用尽后剩余文本保持原样;
// 临时错误耗尽重试的批次保留原文,致命的翻译服务错误立即返回
func (bt *BatchTranslator) TranslateAll(ctx context.Context, texts []string, budget *CharBudget) (*TranslateResult, error) {
	result := &TranslateResult{
		Texts: append([]string(nil), texts...),
	}
	result.Stats.Spans = len(texts)

	for start := 0; start < len(texts); start += bt.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if budget.Exhausted() {
			result.Exhausted = true
			utils.Warnf("⚠️  字符额度已用完 (%d/%d),停止提交新批次", budget.Used(), budget.Limit())
			break
		}

		end := start + bt.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		outcome := bt.TranslateBatch(ctx, texts[start:end])
		if errors.Is(outcome.Err, context.Canceled) || errors.Is(outcome.Err, context.DeadlineExceeded) {
			return result, outcome.Err
		}
		if models.IsFatal(outcome.Err) {
			return result, outcome.Err
		}

		copy(result.Texts[start:end], outcome.Texts)
		budget.Add(outcome.Chars)
		result.Stats.Batches++
		result.Stats.Characters += outcome.Chars
		if outcome.Degraded {
			result.Stats.DegradedBatches++
		}
	}

	return result, nil
}

// TranslateBatch 翻译一个批次
// 临时错误按 base*attempt 线性退避重试; 致命错误不重试
// 失败时返回原文且不计字符,由调用方通过Degraded/日志发现
func (bt *BatchTranslator) TranslateBatch(ctx context.Context, texts []string) BatchOutcome {
	if len(texts) == 0 {
		return BatchOutcome{Texts: []string{}}
	}

	protected := make([]string, len(texts))
	placeholders := make([]Placeholders, len(texts))
	var chars int64
	for i, text := range texts {
		protected[i], placeholders[i] = bt.codec.Protect(text)
		chars += int64(utf8.RuneCountInString(protected[i]))
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= bt.config.MaxRetries; attempt++ {
		attempts = attempt
		translated, err := bt.provider.Translate(ctx, protected, bt.config.SourceLang, bt.config.TargetLang)
		if err == nil && len(translated) != len(texts) {
			err = &models.ProviderError{
				Transient: true,
				Message:   fmt.Sprintf("返回结果数量不匹配: 期望%d, 实际%d", len(texts), len(translated)),
			}
		}
		if err == nil {
			out := make([]string, len(texts))
			for i, t := range translated {
				out[i] = bt.codec.Restore(t, placeholders[i])
			}
			bt.record(false, chars)
			return BatchOutcome{Texts: out, Chars: chars, Attempts: attempts}
		}

		lastErr = err
		if ctx.Err() != nil {
			return BatchOutcome{Texts: texts, Attempts: attempts, Degraded: true, Err: ctx.Err()}
		}
		if !models.IsTransient(err) {
			break
		}
		if attempt < bt.config.MaxRetries {
			delay := bt.config.RetryBaseDelay * time.Duration(attempt)
			utils.Warnf("翻译批次失败 (第%d/%d次),%v 后重试: %v", attempt, bt.config.MaxRetries, delay, err)
			if err := bt.sleep(ctx, delay); err != nil {
				return BatchOutcome{Texts: texts, Attempts: attempts, Degraded: true, Err: err}
			}
		}
	}

	if models.IsFatal(lastErr) {
		utils.Logger.Error().
			Err(lastErr).
			Int("texts", len(texts)).
			Msg("翻译服务返回致命错误")
		bt.record(true, 0)
		return BatchOutcome{Texts: texts, Attempts: attempts, Degraded: true, Err: lastErr}
	}

	utils.Logger.Error().
		Err(lastErr).
		Int("attempts", attempts).
		Int("texts", len(texts)).
		Str("first_text", truncate(texts[0], errorPrefixLen)).
		Msg("翻译批次失败,保留原文")
	bt.record(true, 0)

	return BatchOutcome{
		Texts:    texts,
		Attempts: attempts,
		Degraded: true,
		Err:      lastErr,
	}
}

func (bt *BatchTranslator) record(degraded bool, chars int64) {
	if bt.recorder != nil {
		bt.recorder.BatchCompleted(degraded, chars)
	}
}

// truncate 按字符截断
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
