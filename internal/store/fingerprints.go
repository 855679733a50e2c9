// Package store 提供跨运行持久化的状态: 页面指纹表和已翻译文件集合
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/RecoveryAshes/docmirror/internal/models"
	"github.com/RecoveryAshes/docmirror/internal/utils"
)

// FingerprintStore 指纹表存储
// 运行开始时整体读取,结束时整体重写(不做增量追加)
type FingerprintStore interface {
	Load(ctx context.Context) (models.FingerprintMap, error)
	Save(ctx context.Context, m models.FingerprintMap) error
	Describe() string
}

// FileFingerprintStore 基于JSON文件的指纹表
type FileFingerprintStore struct {
	path string
}

// NewFileFingerprintStore 创建文件指纹表
func NewFileFingerprintStore(path string) *FileFingerprintStore {
	return &FileFingerprintStore{path: path}
}

// Load 读取指纹表
// 文件不存在返回空表; 文件损坏记录警告并返回空表(所有页面视为新增)
func (s *FileFingerprintStore) Load(_ context.Context) (models.FingerprintMap, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.FingerprintMap{}, nil
		}
		utils.Warnf("读取指纹文件失败 [%s],按空状态处理: %v", s.path, err)
		return models.FingerprintMap{}, nil
	}

	m := models.FingerprintMap{}
	if err := json.Unmarshal(data, &m); err != nil {
		utils.Warnf("%v [%s],按空状态处理: %v", models.ErrStateCorrupt, s.path, err)
		return models.FingerprintMap{}, nil
	}
	if m == nil {
		m = models.FingerprintMap{}
	}
	return m, nil
}

// Save 整体重写指纹表
func (s *FileFingerprintStore) Save(_ context.Context, m models.FingerprintMap) error {
	if m == nil {
		m = models.FingerprintMap{}
	}
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return fmt.Errorf("序列化指纹表失败: %w", err)
	}
	return utils.WriteFileAtomic(s.path, data)
}

// Describe 返回存储位置描述
func (s *FileFingerprintStore) Describe() string {
	return "file:" + s.path
}
