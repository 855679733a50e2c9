package utils

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogConfig(dir, level string) LogConfig {
	return LogConfig{
		Level:      level,
		LogDir:     dir,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   false,
		Console:    io.Discard,
		NoColor:    true,
	}
}

func TestInitLogger(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "logs")

	if err := InitLogger(testLogConfig(tempDir, "debug")); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Info("测试信息日志")
	Debug("测试调试日志")

	mainLogPath := filepath.Join(tempDir, "docmirror.log")
	content, err := os.ReadFile(mainLogPath)
	if err != nil {
		t.Fatalf("读取主日志失败: %v", err)
	}
	if !strings.Contains(string(content), "测试调试日志") {
		t.Errorf("debug级别下主日志应包含调试日志: %s", content)
	}
}

func TestErrorLogOnlyReceivesErrors(t *testing.T) {
	tempDir := t.TempDir()

	if err := InitLogger(testLogConfig(tempDir, "info")); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Warn("只是警告")
	Error(errors.New("boom"), "真正的错误")
	Debugf("级别是info,不应输出: %v", true)

	errorLog, err := os.ReadFile(filepath.Join(tempDir, "docmirror_error.log"))
	if err != nil {
		t.Fatalf("读取错误日志失败: %v", err)
	}
	if strings.Contains(string(errorLog), "只是警告") {
		t.Error("错误日志不应包含警告")
	}
	if !strings.Contains(string(errorLog), "真正的错误") {
		t.Error("错误日志应包含错误")
	}

	mainLog, err := os.ReadFile(filepath.Join(tempDir, "docmirror.log"))
	if err != nil {
		t.Fatalf("读取主日志失败: %v", err)
	}
	if !strings.Contains(string(mainLog), "只是警告") || !strings.Contains(string(mainLog), "真正的错误") {
		t.Errorf("主日志应包含所有info以上级别: %s", mainLog)
	}
	if strings.Contains(string(mainLog), "不应输出") {
		t.Error("info级别下不应输出调试日志")
	}
}

func TestDefaultLogConfig(t *testing.T) {
	config := DefaultLogConfig()

	if config.Level != "info" {
		t.Errorf("默认日志级别错误: 期望 'info', 得到 '%s'", config.Level)
	}
	if config.LogDir != "logs" {
		t.Errorf("默认日志目录错误: 期望 'logs', 得到 '%s'", config.LogDir)
	}
	if config.MaxSize != 10 || config.MaxBackups != 3 || config.MaxAge != 28 {
		t.Errorf("默认轮转参数错误: %+v", config)
	}
	if !config.Compress {
		t.Error("默认应该启用压缩")
	}
}

func TestChineseLogOutput(t *testing.T) {
	tempDir := t.TempDir()

	if err := InitLogger(testLogConfig(tempDir, "info")); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	chineseMsg := "ვრცელი ქართული და 中文 日志消息"
	Info(chineseMsg)

	content, err := os.ReadFile(filepath.Join(tempDir, "docmirror.log"))
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}
	if !strings.Contains(string(content), chineseMsg) {
		t.Errorf("日志中缺少多字节字符内容: %s", content)
	}
}
