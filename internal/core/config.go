package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/docmirror/internal/config"
	"github.com/RecoveryAshes/docmirror/internal/models"
	"github.com/RecoveryAshes/docmirror/internal/store"
	"github.com/RecoveryAshes/docmirror/internal/translator"
	"github.com/RecoveryAshes/docmirror/internal/utils"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "DOCMIRROR"

// Config 应用程序配置
type Config struct {
	Site      SiteConfig          `mapstructure:"site"`
	Crawl     CrawlConfig         `mapstructure:"crawl"`
	Detect    DetectConfig        `mapstructure:"detect"`
	Redis     store.RedisConfig   `mapstructure:"redis"`
	Translate TranslateConfig     `mapstructure:"translate"`
	HTTP      models.HeaderConfig `mapstructure:"http"`
	Logging   LoggingConfig       `mapstructure:"logging"`
	Report    ReportConfig        `mapstructure:"report"`
	Metrics   MetricsConfig       `mapstructure:"metrics"`
}

// SiteConfig 镜像站点与目录
type SiteConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	SeedURL       string `mapstructure:"seed_url"`
	SourceDir     string `mapstructure:"source_dir"`
	TranslatedDir string `mapstructure:"translated_dir"`
}

// CrawlConfig 抓取配置
type CrawlConfig struct {
	MaxWorkers      int           `mapstructure:"max_workers"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	PolitenessDelay time.Duration `mapstructure:"politeness_delay"`
	UserAgent       string        `mapstructure:"user_agent"`
}

// DetectConfig 变更检测配置
type DetectConfig struct {
	FingerprintStore      string `mapstructure:"fingerprint_store"`
	FingerprintFile       string `mapstructure:"fingerprint_file"`
	ChangedLog            string `mapstructure:"changed_log"`
	CarryForwardOnFailure bool   `mapstructure:"carry_forward_on_failure"`
}

// TranslateConfig 翻译配置
type TranslateConfig struct {
	Provider        string        `mapstructure:"provider"`
	APIKey          string        `mapstructure:"api_key"`
	APIEndpoint     string        `mapstructure:"api_endpoint"`
	SourceLang      string        `mapstructure:"source_lang"`
	TargetLang      string        `mapstructure:"target_lang"`
	BatchSize       int           `mapstructure:"batch_size"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBaseDelay  time.Duration `mapstructure:"retry_base_delay"`
	CharLimit       int64         `mapstructure:"char_limit"`
	TerminologyFile string        `mapstructure:"terminology_file"`
	TerminologyKey  string        `mapstructure:"terminology_key"`
	StateFile       string        `mapstructure:"state_file"`
	Workers         int           `mapstructure:"workers"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	AllowTags       []string      `mapstructure:"allow_tags"`
	DenyTags        []string      `mapstructure:"deny_tags"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// ReportConfig 报告输出配置
type ReportConfig struct {
	Dir string `mapstructure:"dir"`
}

// MetricsConfig 指标导出配置
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LoadConfig 加载配置文件
// 未指定路径时依次搜索 ./configs, ., ~/.docmirror; 找不到则使用默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		if err := config.ValidateFileSize(configPath, config.MaxConfigFileSize); err != nil {
			return nil, err
		}
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".docmirror"))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &models.ConfigError{FilePath: configPath, Cause: fmt.Errorf("读取配置文件失败: %w", err)}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &models.ConfigError{FilePath: v.ConfigFileUsed(), Cause: fmt.Errorf("解析配置文件失败: %w", err)}
	}
	if cfg.HTTP.Headers == nil {
		cfg.HTTP.Headers = make(map[string]string)
	}
	if cfg.Crawl.UserAgent != "" && cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = cfg.Crawl.UserAgent
	}

	return &cfg, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "")
	v.SetDefault("site.seed_url", "")
	v.SetDefault("site.source_dir", "source_html")
	v.SetDefault("site.translated_dir", "translated_html")

	v.SetDefault("crawl.max_workers", 1)
	v.SetDefault("crawl.request_timeout", 10*time.Second)
	v.SetDefault("crawl.politeness_delay", 100*time.Millisecond)
	v.SetDefault("crawl.user_agent", "")

	v.SetDefault("detect.fingerprint_store", "file")
	v.SetDefault("detect.fingerprint_file", "hashes.json")
	v.SetDefault("detect.changed_log", "changed_urls.txt")
	v.SetDefault("detect.carry_forward_on_failure", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", store.DefaultRedisKey)

	v.SetDefault("translate.provider", "google")
	v.SetDefault("translate.api_key", "")
	v.SetDefault("translate.api_endpoint", translator.DefaultEndpoint)
	v.SetDefault("translate.source_lang", "en")
	v.SetDefault("translate.target_lang", "ka")
	v.SetDefault("translate.batch_size", translator.DefaultBatchSize)
	v.SetDefault("translate.max_retries", translator.DefaultMaxRetries)
	v.SetDefault("translate.retry_base_delay", translator.DefaultRetryBaseDelay)
	v.SetDefault("translate.char_limit", 0)
	v.SetDefault("translate.terminology_file", "terminology.json")
	v.SetDefault("translate.terminology_key", "en_to_ka")
	v.SetDefault("translate.state_file", "translation_state.json")
	v.SetDefault("translate.workers", 1)
	v.SetDefault("translate.request_timeout", 60*time.Second)
	v.SetDefault("translate.allow_tags", translator.DefaultAllowTags)
	v.SetDefault("translate.deny_tags", translator.DefaultDenyTags)

	v.SetDefault("http.headers", map[string]string{})
	v.SetDefault("http.user_agent", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	v.SetDefault("report.dir", "reports")
	v.SetDefault("metrics.textfile", "")
}

// CLIFlags 命令行参数, 零值表示未指定
type CLIFlags struct {
	BaseURL       string
	SeedURL       string
	SourceDir     string
	TranslatedDir string
	Workers       int
	Delay         time.Duration
	TargetLang    string
	BatchSize     int
	CharLimit     int64
	Terminology   string
	Store         string
	NoCarry       bool
}

// MergeCLIFlags 合并命令行参数到配置
// 命令行参数优先于配置文件
func (c *Config) MergeCLIFlags(f CLIFlags) {
	if f.BaseURL != "" {
		c.Site.BaseURL = f.BaseURL
	}
	if f.SeedURL != "" {
		c.Site.SeedURL = f.SeedURL
	}
	if f.SourceDir != "" {
		c.Site.SourceDir = f.SourceDir
	}
	if f.TranslatedDir != "" {
		c.Site.TranslatedDir = f.TranslatedDir
	}
	if f.Workers > 0 {
		c.Crawl.MaxWorkers = f.Workers
	}
	if f.Delay > 0 {
		c.Crawl.PolitenessDelay = f.Delay
	}
	if f.TargetLang != "" {
		c.Translate.TargetLang = f.TargetLang
	}
	if f.BatchSize > 0 {
		c.Translate.BatchSize = f.BatchSize
	}
	if f.CharLimit > 0 {
		c.Translate.CharLimit = f.CharLimit
	}
	if f.Terminology != "" {
		c.Translate.TerminologyFile = f.Terminology
	}
	if f.Store != "" {
		c.Detect.FingerprintStore = f.Store
	}
	if f.NoCarry {
		c.Detect.CarryForwardOnFailure = false
	}
}

// ToSyncConfig 提取同步配置
func (c *Config) ToSyncConfig() models.SyncConfig {
	return models.SyncConfig{
		BaseURL:               c.Site.BaseURL,
		SeedURL:               c.Site.SeedURL,
		SourceDir:             c.Site.SourceDir,
		MaxWorkers:            c.Crawl.MaxWorkers,
		RequestTimeout:        c.Crawl.RequestTimeout,
		PolitenessDelay:       c.Crawl.PolitenessDelay,
		CarryForwardOnFailure: c.Detect.CarryForwardOnFailure,
	}
}

// ToTranslateConfig 提取翻译配置
func (c *Config) ToTranslateConfig() models.TranslateConfig {
	return models.TranslateConfig{
		SourceDir:      c.Site.SourceDir,
		OutputDir:      c.Site.TranslatedDir,
		SourceLang:     c.Translate.SourceLang,
		TargetLang:     c.Translate.TargetLang,
		BatchSize:      c.Translate.BatchSize,
		MaxRetries:     c.Translate.MaxRetries,
		RetryBaseDelay: c.Translate.RetryBaseDelay,
		CharLimit:      c.Translate.CharLimit,
		Workers:        c.Translate.Workers,
		AllowTags:      c.Translate.AllowTags,
		DenyTags:       c.Translate.DenyTags,
	}
}

// LogConfig 提取日志配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}

// ValidateStore 验证指纹表存储类型
func (c *Config) ValidateStore() error {
	switch c.Detect.FingerprintStore {
	case "file", "":
		return nil
	case "redis":
		if c.Redis.Addr == "" {
			return &models.ConfigError{FilePath: "redis.addr", Cause: fmt.Errorf("使用redis存储时必须配置地址")}
		}
		return nil
	default:
		return &models.ConfigError{
			FilePath: "detect.fingerprint_store",
			Cause:    fmt.Errorf("未知的存储类型: %s (有效值: file, redis)", c.Detect.FingerprintStore),
		}
	}
}

// OpenFingerprintStore 按配置打开指纹表存储, 返回的close函数总是非nil
func (c *Config) OpenFingerprintStore(ctx context.Context) (store.FingerprintStore, func(), error) {
	if err := c.ValidateStore(); err != nil {
		return nil, func() {}, err
	}
	if c.Detect.FingerprintStore != "redis" {
		return store.NewFileFingerprintStore(c.Detect.FingerprintFile), func() {}, nil
	}

	client, err := store.DialRedis(ctx, c.Redis)
	if err != nil {
		return nil, func() {}, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			utils.Warnf("关闭Redis连接失败: %v", err)
		}
	}
	return store.NewRedisFingerprintStore(client, c.Redis.Key), closeFn, nil
}
