package models

import (
	"fmt"
	"net/http"
	"strings"
)

// HeaderConfig 配置文件中http段的结构
type HeaderConfig struct {
	// Headers 自定义HTTP头部 (键: 头部名称, 值: 头部值)
	Headers map[string]string `mapstructure:"headers" yaml:"headers"`
	// UserAgent 覆盖默认User-Agent
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
}

// CliHeaders 表示命令行传递的头部列表
// 每个字符串格式为 "Name: Value"
type CliHeaders []string

// Parse 将字符串列表解析为 http.Header
func (ch CliHeaders) Parse() (http.Header, error) {
	result := make(http.Header)
	for i, s := range ch {
		name, value, err := parseHeaderString(s)
		if err != nil {
			return nil, fmt.Errorf("参数 --header 第%d项格式错误: %w", i+1, err)
		}
		result.Set(name, value)
	}
	return result, nil
}

// parseHeaderString 解析单个头部字符串 "Name: Value"
func parseHeaderString(s string) (name, value string, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("缺少冒号分隔符,应为 'Name: Value'")
	}

	name = strings.TrimSpace(parts[0])
	value = strings.TrimSpace(parts[1])

	if name == "" {
		return "", "", fmt.Errorf("头部名称不能为空")
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return "", "", fmt.Errorf("头部名称包含空白字符: %q", name)
	}
	if strings.ContainsAny(value, "\r\n") {
		return "", "", fmt.Errorf("头部值包含换行符")
	}

	return name, value, nil
}

// HeaderProvider HTTP头部提供者
// 返回的http.Header已按优先级合并(默认 < 配置 < 命令行)
type HeaderProvider interface {
	GetHeaders() (http.Header, error)
}

// ConfigError 配置错误
// 属于致命错误,在任何工作开始前中止运行
type ConfigError struct {
	// FilePath 配置文件路径或配置项名称
	FilePath string

	// Cause 底层错误
	Cause error
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置错误 [%s]: %v", e.FilePath, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// MaxHeaderValueLength HTTP头部值最大长度 (8KB)
const MaxHeaderValueLength = 8192

// ForbiddenHeaders 由HTTP客户端管理、不允许自定义的头部
var ForbiddenHeaders = []string{"Host", "Content-Length", "Transfer-Encoding", "Connection"}

// ValidateHeaders 校验头部名称与值(RFC 7230字符集)
func ValidateHeaders(headers http.Header) error {
	for name, values := range headers {
		for _, forbidden := range ForbiddenHeaders {
			if strings.EqualFold(name, forbidden) {
				return fmt.Errorf("头部 %q 由HTTP客户端管理,不允许自定义", name)
			}
		}
		if name == "" || strings.IndexFunc(name, invalidNameRune) >= 0 {
			return fmt.Errorf("头部名称 %q 包含非法字符 (仅允许字母、数字和连字符)", name)
		}
		for _, value := range values {
			if len(value) > MaxHeaderValueLength {
				return fmt.Errorf("头部 %q 的值过长: %d 字节 (最大 %d)", name, len(value), MaxHeaderValueLength)
			}
			if strings.IndexFunc(value, invalidValueRune) >= 0 {
				return fmt.Errorf("头部 %q 的值包含非法字符 (仅允许可打印ASCII字符)", name)
			}
		}
	}
	return nil
}

func invalidNameRune(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-')
}

func invalidValueRune(r rune) bool {
	return r != '\t' && (r < 0x20 || r > 0x7e)
}
