package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/RecoveryAshes/docmirror/internal/models"
	"github.com/RecoveryAshes/docmirror/internal/utils"
)

// ProcessedFileSet 已翻译完成的文件集合
// 文件标识为相对源目录的斜杠路径; 每完成一个文件立即持久化,
// 源文件被同步更新后通过Forget移除,下次运行重新翻译
type ProcessedFileSet struct {
	path  string
	files map[string]bool
	mu    sync.Mutex
}

// LoadProcessedFileSet 读取已完成文件集合
// 文件不存在或损坏时返回空集合
func LoadProcessedFileSet(path string) *ProcessedFileSet {
	set := &ProcessedFileSet{path: path, files: make(map[string]bool)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			utils.Warnf("读取状态文件失败 [%s],按空状态处理: %v", path, err)
		}
		return set
	}

	var files []string
	if err := json.Unmarshal(data, &files); err != nil {
		utils.Warnf("%v [%s],按空状态处理: %v", models.ErrStateCorrupt, path, err)
		return set
	}
	for _, f := range files {
		set.files[f] = true
	}
	return set
}

// Contains 检查文件是否已完成
func (s *ProcessedFileSet) Contains(file string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[file]
}

// MarkDone 记录文件已完成并立即持久化
// 持久化失败时撤销内存中的记录,保证内存与磁盘一致
func (s *ProcessedFileSet) MarkDone(file string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.files[file] {
		return nil
	}
	s.files[file] = true
	if err := s.saveLocked(); err != nil {
		delete(s.files, file)
		return err
	}
	return nil
}

// Forget 移除指定文件并持久化,返回实际移除的数量
// 持久化失败时恢复被移除的记录
func (s *ProcessedFileSet) Forget(files ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make([]string, 0, len(files))
	for _, f := range files {
		if s.files[f] {
			delete(s.files, f)
			removed = append(removed, f)
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}
	if err := s.saveLocked(); err != nil {
		for _, f := range removed {
			s.files[f] = true
		}
		return 0, err
	}
	return len(removed), nil
}

// Len 返回已完成文件数
func (s *ProcessedFileSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Files 返回排序后的文件列表
func (s *ProcessedFileSet) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

// Reset 清空集合并持久化(全量重建)
func (s *ProcessedFileSet) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = make(map[string]bool)
	return s.saveLocked()
}

func (s *ProcessedFileSet) sortedLocked() []string {
	files := make([]string, 0, len(s.files))
	for f := range s.files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

func (s *ProcessedFileSet) saveLocked() error {
	data, err := json.MarshalIndent(s.sortedLocked(), "", "    ")
	if err != nil {
		return fmt.Errorf("序列化状态失败: %w", err)
	}
	return utils.WriteFileAtomic(s.path, data)
}
