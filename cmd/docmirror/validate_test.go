package main

import (
	"testing"
	"time"

	"github.com/RecoveryAshes/docmirror/internal/core"
)

func validConfig() *core.Config {
	cfg := &core.Config{}
	cfg.Site = core.SiteConfig{
		BaseURL:       "https://docs.example/en/latest/",
		SourceDir:     "source_html",
		TranslatedDir: "translated_html",
	}
	cfg.Crawl.MaxWorkers = 1
	cfg.Detect.FingerprintStore = "file"
	cfg.Translate.BatchSize = 128
	cfg.Translate.TargetLang = "ka"
	return cfg
}

func TestValidateSyncFlags(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*core.Config)
		wantErr bool
	}{
		{"有效配置", func(*core.Config) {}, false},
		{"缺少base-url", func(c *core.Config) { c.Site.BaseURL = "" }, true},
		{"base-url协议错误", func(c *core.Config) { c.Site.BaseURL = "ftp://docs.example/" }, true},
		{"seed-url无效", func(c *core.Config) { c.Site.SeedURL = "not a url" }, true},
		{"并发数为0", func(c *core.Config) { c.Crawl.MaxWorkers = 0 }, true},
		{"并发数过大", func(c *core.Config) { c.Crawl.MaxWorkers = 65 }, true},
		{"负的请求间隔", func(c *core.Config) { c.Crawl.PolitenessDelay = -time.Second }, true},
		{"未知存储类型", func(c *core.Config) { c.Detect.FingerprintStore = "s3" }, true},
		{"redis缺少地址", func(c *core.Config) { c.Detect.FingerprintStore = "redis" }, true},
		{"redis", func(c *core.Config) {
			c.Detect.FingerprintStore = "redis"
			c.Redis.Addr = "localhost:6379"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			if err := ValidateSyncFlags(cfg); (err != nil) != tt.wantErr {
				t.Errorf("ValidateSyncFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTranslateFlags(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*core.Config)
		wantErr bool
	}{
		{"有效配置", func(*core.Config) {}, false},
		{"批大小为0", func(c *core.Config) { c.Translate.BatchSize = 0 }, true},
		{"批大小过大", func(c *core.Config) { c.Translate.BatchSize = 1025 }, true},
		{"负的字符额度", func(c *core.Config) { c.Translate.CharLimit = -1 }, true},
		{"缺少目标语言", func(c *core.Config) { c.Translate.TargetLang = "" }, true},
		{"输入输出目录相同", func(c *core.Config) { c.Site.TranslatedDir = c.Site.SourceDir }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			if err := ValidateTranslateFlags(cfg); (err != nil) != tt.wantErr {
				t.Errorf("ValidateTranslateFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
