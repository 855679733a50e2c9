package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/docmirror/internal/config"
	"github.com/RecoveryAshes/docmirror/internal/core"
	"github.com/RecoveryAshes/docmirror/internal/metrics"
	"github.com/RecoveryAshes/docmirror/internal/models"
	"github.com/RecoveryAshes/docmirror/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string
	noProgress bool

	// HTTP头部参数
	headers []string

	// 覆盖配置文件的参数
	flags core.CLIFlags

	// 忽略翻译状态,全量重建
	rebuild bool

	// init-config 参数
	forceInit bool
)

// appConfig 在PersistentPreRunE中加载
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "docmirror",
	Short: "文档站点镜像同步与结构保留翻译工具",
	Long: `docmirror - 文档站点镜像同步与翻译工具

  • 从种子页面出发发现镜像范围内的全部页面(每个页面只访问一次)
  • 用内容指纹检测新增/变更页面,只保存变化的部分
  • 翻译HTML文本片段,保留代码标识符、标签结构和术语表
  • 分批调用翻译服务,临时错误自动重试,失败时保留原文
  • 断点续传: 中断后再次运行只处理未完成的文件

示例:
  # 生成配置文件
  docmirror init-config

  # 同步镜像
  docmirror sync --base-url https://docs.example.com/en/latest/

  # 翻译已同步的页面 (需要 GOOGLE_TRANSLATE_API_KEY)
  docmirror translate --target-lang ka

  # 同步并翻译
  docmirror run -H "Authorization: Bearer token"

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "init-config" {
			return nil
		}

		cfg, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		cfg.MergeCLIFlags(flags)

		logConfig := cfg.LogConfig()
		if logLevel != "" {
			logConfig.Level = logLevel
		}
		if verbose {
			logConfig.Level = "debug"
		}
		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}
		if verbose {
			utils.Info("详细模式已启用")
		}

		appConfig = cfg
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "发现页面并同步新增/变更页面到镜像目录",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ValidateSyncFlags(appConfig); err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		recorder := metrics.NewRecorder()
		defer writeMetrics(recorder)

		runner, closeStore, err := buildSyncRunner(ctx, recorder)
		if err != nil {
			return err
		}
		defer closeStore()

		_, err = runner.Run(ctx)
		return err
	},
}

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "翻译镜像目录中尚未完成的HTML文件",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ValidateTranslateFlags(appConfig); err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		recorder := metrics.NewRecorder()
		defer writeMetrics(recorder)

		runner, err := buildTranslateRunner(recorder)
		if err != nil {
			return err
		}

		_, err = runner.Run(ctx)
		return err
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "同步镜像后翻译(完整流程)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ValidateSyncFlags(appConfig); err != nil {
			return err
		}
		if err := ValidateTranslateFlags(appConfig); err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		recorder := metrics.NewRecorder()
		defer writeMetrics(recorder)

		// 先创建翻译服务,凭据缺失时在任何抓取之前中止
		translateRunner, err := buildTranslateRunner(recorder)
		if err != nil {
			return err
		}
		syncRunner, closeStore, err := buildSyncRunner(ctx, recorder)
		if err != nil {
			return err
		}
		defer closeStore()

		_, err = core.NewPipeline(syncRunner, translateRunner).Run(ctx)
		return err
	},
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "生成默认配置文件",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if path == "" {
			path = config.DefaultConfigFile
		}
		if forceInit {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("删除旧配置失败: %w", err)
			}
		}
		created, err := config.EnsureConfigExists(path)
		if err != nil {
			return err
		}
		if created {
			fmt.Printf("✅ 已生成配置文件: %s\n", path)
		} else {
			fmt.Printf("配置文件已存在: %s (使用 --force 覆盖)\n", path)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("docmirror %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

// signalContext 收到中断信号时取消ctx, 正在处理的文件不会记入状态
func signalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		if errors.Is(ctx.Err(), context.Canceled) {
			utils.Warn("收到中断信号,正在优雅关闭...")
		}
	}()
	return ctx, stop
}

func newHeaderManager() (*core.HeaderManager, error) {
	hm, err := core.NewHeaderManager(appConfig.HTTP, headers)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}
	if err := hm.Validate(); err != nil {
		return nil, fmt.Errorf("HTTP头部验证失败: %w", err)
	}
	return hm, nil
}

func buildSyncRunner(ctx context.Context, recorder *metrics.Recorder) (*core.SyncRunner, func(), error) {
	hm, err := newHeaderManager()
	if err != nil {
		return nil, func() {}, err
	}

	fpStore, closeStore, err := appConfig.OpenFingerprintStore(ctx)
	if err != nil {
		return nil, func() {}, err
	}

	runner, err := core.NewSyncRunner(
		appConfig.ToSyncConfig(),
		appConfig.Detect.ChangedLog,
		fpStore,
		hm,
		utils.NewReporter(appConfig.Report.Dir),
		recorder,
	)
	if err != nil {
		closeStore()
		return nil, func() {}, err
	}
	runner.ShowProgress = !noProgress
	runner.TranslationState = appConfig.Translate.StateFile
	return runner, closeStore, nil
}

func buildTranslateRunner(recorder *metrics.Recorder) (*core.TranslateRunner, error) {
	provider, err := core.NewProvider(appConfig.Translate)
	if err != nil {
		return nil, err
	}

	runner, err := core.NewTranslateRunner(
		appConfig.ToTranslateConfig(),
		core.TranslateFiles{
			TerminologyFile: appConfig.Translate.TerminologyFile,
			TerminologyKey:  appConfig.Translate.TerminologyKey,
			StateFile:       appConfig.Translate.StateFile,
		},
		provider,
		utils.NewReporter(appConfig.Report.Dir),
		recorder,
	)
	if err != nil {
		return nil, err
	}
	runner.ShowProgress = !noProgress
	runner.Rebuild = rebuild
	return runner, nil
}

func writeMetrics(recorder *metrics.Recorder) {
	if appConfig == nil || appConfig.Metrics.Textfile == "" {
		return
	}
	if err := recorder.WriteTextfile(appConfig.Metrics.Textfile); err != nil {
		utils.Warnf("导出指标失败: %v", err)
	}
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "不显示进度条")
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")

	// 目录参数(所有命令共用)
	rootCmd.PersistentFlags().StringVar(&flags.SourceDir, "source-dir", "", "原始页面镜像目录")
	rootCmd.PersistentFlags().StringVar(&flags.TranslatedDir, "translated-dir", "", "译文输出目录")

	// 同步参数
	for _, cmd := range []*cobra.Command{syncCmd, runCmd} {
		cmd.Flags().StringVar(&flags.BaseURL, "base-url", "", "镜像范围前缀URL")
		cmd.Flags().StringVar(&flags.SeedURL, "seed-url", "", "起始URL (默认等于 --base-url)")
		cmd.Flags().IntVar(&flags.Workers, "threads", 0, "发现阶段并发数")
		cmd.Flags().DurationVar(&flags.Delay, "delay", 0, "相邻请求最小间隔 (如 100ms)")
		cmd.Flags().StringVar(&flags.Store, "store", "", "指纹表存储 (file|redis)")
		cmd.Flags().BoolVar(&flags.NoCarry, "no-carry-forward", false, "抓取失败时不沿用上次的指纹")
	}

	// 翻译参数
	for _, cmd := range []*cobra.Command{translateCmd, runCmd} {
		cmd.Flags().StringVar(&flags.TargetLang, "target-lang", "", "目标语言代码")
		cmd.Flags().IntVar(&flags.BatchSize, "batch-size", 0, "每次调用翻译的片段数")
		cmd.Flags().Int64Var(&flags.CharLimit, "char-limit", 0, "软性字符额度 (0表示使用配置)")
		cmd.Flags().StringVar(&flags.Terminology, "terminology", "", "术语表文件 (JSON/YAML)")
		cmd.Flags().BoolVar(&rebuild, "rebuild", false, "忽略翻译状态,重新翻译全部文件")
	}

	initConfigCmd.Flags().BoolVar(&forceInit, "force", false, "覆盖已存在的配置文件")

	rootCmd.AddCommand(syncCmd, translateCmd, runCmd, initConfigCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var cfgErr *models.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(os.Stderr, "配置错误: %v\n", err)
			os.Exit(2)
		}
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
