package main

import (
	"fmt"

	"github.com/RecoveryAshes/docmirror/internal/core"
	"github.com/RecoveryAshes/docmirror/internal/models"
)

// ValidateSyncFlags 验证同步相关配置(命令行已合并)
func ValidateSyncFlags(cfg *core.Config) error {
	if cfg.Site.BaseURL == "" {
		return fmt.Errorf("未指定镜像范围: 使用 --base-url 或配置 site.base_url")
	}
	if err := models.ValidateURL(cfg.Site.BaseURL); err != nil {
		return fmt.Errorf("无效的base-url: %w", err)
	}
	if cfg.Site.SeedURL != "" {
		if err := models.ValidateURL(cfg.Site.SeedURL); err != nil {
			return fmt.Errorf("无效的seed-url: %w", err)
		}
	}
	if cfg.Crawl.MaxWorkers < 1 || cfg.Crawl.MaxWorkers > 64 {
		return fmt.Errorf("并发数必须在1-64之间,当前值: %d", cfg.Crawl.MaxWorkers)
	}
	if cfg.Crawl.PolitenessDelay < 0 {
		return fmt.Errorf("请求间隔不能为负数,当前值: %v", cfg.Crawl.PolitenessDelay)
	}
	return cfg.ValidateStore()
}

// ValidateTranslateFlags 验证翻译相关配置(命令行已合并)
func ValidateTranslateFlags(cfg *core.Config) error {
	if cfg.Translate.BatchSize < 1 || cfg.Translate.BatchSize > 1024 {
		return fmt.Errorf("批大小必须在1-1024之间,当前值: %d", cfg.Translate.BatchSize)
	}
	if cfg.Translate.CharLimit < 0 {
		return fmt.Errorf("字符额度不能为负数,当前值: %d", cfg.Translate.CharLimit)
	}
	if cfg.Translate.TargetLang == "" {
		return fmt.Errorf("未指定目标语言: 使用 --target-lang 或配置 translate.target_lang")
	}
	if cfg.Site.SourceDir == cfg.Site.TranslatedDir {
		return fmt.Errorf("输出目录不能与输入目录相同: %s", cfg.Site.SourceDir)
	}
	return nil
}
