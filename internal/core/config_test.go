package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RecoveryAshes/docmirror/internal/models"
	"github.com/RecoveryAshes/docmirror/internal/store"
	"github.com/alicebob/miniredis/v2"
)

// isolateConfigSearch 避免读到开发机上 ~/.docmirror 或 ./configs 中的配置
func isolateConfigSearch(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	wd, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolateConfigSearch(t)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig失败: %v", err)
	}

	if cfg.Crawl.MaxWorkers != 1 || cfg.Crawl.RequestTimeout != 10*time.Second {
		t.Errorf("Crawl = %+v", cfg.Crawl)
	}
	if !cfg.Detect.CarryForwardOnFailure || cfg.Detect.FingerprintStore != "file" {
		t.Errorf("Detect = %+v", cfg.Detect)
	}
	tr := cfg.Translate
	if tr.BatchSize != 128 || tr.MaxRetries != 3 || tr.RetryBaseDelay != 5*time.Second {
		t.Errorf("Translate = %+v", tr)
	}
	if tr.SourceLang != "en" || tr.TargetLang != "ka" || tr.CharLimit != 0 {
		t.Errorf("Translate = %+v", tr)
	}
	if len(tr.DenyTags) == 0 || len(tr.AllowTags) == 0 {
		t.Error("标签列表应有默认值")
	}
	if cfg.Redis.Key != store.DefaultRedisKey {
		t.Errorf("Redis.Key = %s", cfg.Redis.Key)
	}
	if cfg.HTTP.Headers == nil {
		t.Error("Headers不应为nil")
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	isolateConfigSearch(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `site:
  base_url: https://docs.example/en/
  source_dir: mirror
crawl:
  max_workers: 4
  politeness_delay: 250ms
  user_agent: crawl-agent
translate:
  batch_size: 64
  char_limit: 500000
http:
  headers:
    X-Team: docs
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCMIRROR_TRANSLATE_TARGET_LANG", "de")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig失败: %v", err)
	}

	if cfg.Site.BaseURL != "https://docs.example/en/" || cfg.Site.SourceDir != "mirror" {
		t.Errorf("Site = %+v", cfg.Site)
	}
	if cfg.Crawl.MaxWorkers != 4 || cfg.Crawl.PolitenessDelay != 250*time.Millisecond {
		t.Errorf("Crawl = %+v", cfg.Crawl)
	}
	if cfg.HTTP.UserAgent != "crawl-agent" {
		t.Errorf("crawl.user_agent应作为默认User-Agent: %q", cfg.HTTP.UserAgent)
	}
	if cfg.HTTP.Headers["x-team"] != "docs" && cfg.HTTP.Headers["X-Team"] != "docs" {
		t.Errorf("Headers = %v", cfg.HTTP.Headers)
	}
	if cfg.Translate.BatchSize != 64 || cfg.Translate.CharLimit != 500000 {
		t.Errorf("Translate = %+v", cfg.Translate)
	}
	if cfg.Translate.TargetLang != "de" {
		t.Errorf("环境变量应覆盖配置: %s", cfg.Translate.TargetLang)
	}
	// 未在文件中出现的项保持默认
	if cfg.Translate.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d", cfg.Translate.MaxRetries)
	}

	sc := cfg.ToSyncConfig()
	if err := sc.Validate(); err != nil {
		t.Errorf("同步配置应有效: %v", err)
	}
}

func TestLoadConfig_Malformed(t *testing.T) {
	isolateConfigSearch(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("site: [unclosed\n"), 0644)

	_, err := LoadConfig(path)
	var ce *models.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("格式错误应返回ConfigError, 得到 %v", err)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("显式指定的文件不存在应返回错误")
	}
}

func TestMergeCLIFlags(t *testing.T) {
	isolateConfigSearch(t)
	cfg, _ := LoadConfig("")

	cfg.MergeCLIFlags(CLIFlags{
		BaseURL:       "https://docs.example/en/",
		TranslatedDir: "out",
		Workers:       8,
		TargetLang:    "fr",
		CharLimit:     1000,
		Store:         "redis",
		NoCarry:       true,
	})

	if cfg.Site.BaseURL != "https://docs.example/en/" || cfg.Site.TranslatedDir != "out" {
		t.Errorf("Site = %+v", cfg.Site)
	}
	if cfg.Crawl.MaxWorkers != 8 || cfg.Translate.TargetLang != "fr" || cfg.Translate.CharLimit != 1000 {
		t.Error("命令行参数应覆盖配置")
	}
	if cfg.Detect.FingerprintStore != "redis" || cfg.Detect.CarryForwardOnFailure {
		t.Errorf("Detect = %+v", cfg.Detect)
	}
	// 零值不覆盖
	if cfg.Translate.BatchSize != 128 || cfg.Site.SourceDir != "source_html" {
		t.Error("未指定的参数不应覆盖配置")
	}

	tc := cfg.ToTranslateConfig()
	if tc.OutputDir != "out" || tc.TargetLang != "fr" {
		t.Errorf("ToTranslateConfig() = %+v", tc)
	}
}

func TestOpenFingerprintStore(t *testing.T) {
	isolateConfigSearch(t)
	ctx := context.Background()

	t.Run("文件存储", func(t *testing.T) {
		cfg, _ := LoadConfig("")
		cfg.Detect.FingerprintFile = filepath.Join(t.TempDir(), "hashes.json")
		s, closeFn, err := cfg.OpenFingerprintStore(ctx)
		defer closeFn()
		if err != nil {
			t.Fatalf("OpenFingerprintStore失败: %v", err)
		}
		if _, ok := s.(*store.FileFingerprintStore); !ok {
			t.Errorf("期望文件存储, 得到 %T", s)
		}
	})

	t.Run("Redis存储", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg, _ := LoadConfig("")
		cfg.Detect.FingerprintStore = "redis"
		cfg.Redis.Addr = mr.Addr()

		s, closeFn, err := cfg.OpenFingerprintStore(ctx)
		defer closeFn()
		if err != nil {
			t.Fatalf("OpenFingerprintStore失败: %v", err)
		}
		if s.Describe() != "redis:"+store.DefaultRedisKey {
			t.Errorf("Describe() = %s", s.Describe())
		}
	})

	t.Run("未知存储类型", func(t *testing.T) {
		cfg, _ := LoadConfig("")
		cfg.Detect.FingerprintStore = "etcd"
		_, closeFn, err := cfg.OpenFingerprintStore(ctx)
		closeFn()
		var ce *models.ConfigError
		if !errors.As(err, &ce) {
			t.Errorf("期望ConfigError, 得到 %v", err)
		}
	})
}
