package crawlers

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ChangeLog 本次运行的变更URL清单,每行一个URL
// 只写不读; 每次运行开始时截断
type ChangeLog struct {
	path   string
	file   *os.File
	writer *bufio.Writer
	count  int
	mu     sync.Mutex
}

// OpenChangeLog 打开(并截断)变更清单
func OpenChangeLog(path string) (*ChangeLog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建变更清单目录失败: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("打开变更清单失败: %w", err)
	}
	return &ChangeLog{path: path, file: f, writer: bufio.NewWriter(f)}, nil
}

// Append 追加一个URL并立即刷盘
func (cl *ChangeLog) Append(pageURL string) error {
	if cl == nil {
		return nil
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, err := cl.writer.WriteString(pageURL + "\n"); err != nil {
		return err
	}
	cl.count++
	return cl.writer.Flush()
}

// Count 返回已写入的URL数
func (cl *ChangeLog) Count() int {
	if cl == nil {
		return 0
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.count
}

// Path 返回文件路径
func (cl *ChangeLog) Path() string {
	if cl == nil {
		return ""
	}
	return cl.path
}

// Close 刷盘并关闭
func (cl *ChangeLog) Close() error {
	if cl == nil {
		return nil
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if err := cl.writer.Flush(); err != nil {
		cl.file.Close()
		return err
	}
	return cl.file.Close()
}
