package models

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed 网络类临时错误(超时、连接失败、非2xx响应)
	ErrFetchFailed = errors.New("页面抓取失败")

	// ErrStateCorrupt 持久化状态无法解析,调用方按空状态处理
	ErrStateCorrupt = errors.New("状态文件已损坏")

	// ErrMissingCredentials 翻译服务凭据缺失
	ErrMissingCredentials = errors.New("缺少翻译服务凭据")
)

// FetchError 单个URL的抓取错误
type FetchError struct {
	URL        string
	StatusCode int
	Cause      error
}

// Error 实现error接口
func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("抓取失败 [%s]: HTTP %d: %v", e.URL, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("抓取失败 [%s]: %v", e.URL, e.Cause)
}

// Unwrap 支持errors.Is(err, ErrFetchFailed)
func (e *FetchError) Unwrap() []error {
	return []error{ErrFetchFailed, e.Cause}
}

// ProviderError 翻译服务错误
// Transient为true时可以重试(限流、5xx、网络错误)
type ProviderError struct {
	StatusCode int
	Transient  bool
	Message    string
	Cause      error
}

// Error 实现error接口
func (e *ProviderError) Error() string {
	kind := "致命"
	if e.Transient {
		kind = "临时"
	}
	msg := fmt.Sprintf("翻译服务%s错误", kind)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

// Unwrap 支持errors.Unwrap
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// IsFatal 判断错误是否为不可重试的翻译服务错误(凭据无效、配额关闭等)
// 这类错误对后续所有批次都会重复出现,调用方应中止整个运行
func IsFatal(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return !pe.Transient
	}
	return false
}

// IsTransient 判断错误是否为可重试的翻译服务错误
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}
