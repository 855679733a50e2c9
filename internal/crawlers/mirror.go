package crawlers

import (
	"path/filepath"

	"github.com/RecoveryAshes/docmirror/internal/utils"
)

// Mirror 原始页面镜像目录
type Mirror struct {
	root string
}

// NewMirror 创建镜像目录写入器
func NewMirror(root string) *Mirror {
	return &Mirror{root: root}
}

// PathFor 返回URL对应的本地文件路径
func (m *Mirror) PathFor(pageURL string) (string, error) {
	rel, err := MirrorRelPath(pageURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(m.root, filepath.FromSlash(rel)), nil
}

// Save 将页面原始字节写入镜像路径,返回写入的文件路径
func (m *Mirror) Save(pageURL string, content []byte) (string, error) {
	filePath, err := m.PathFor(pageURL)
	if err != nil {
		return "", err
	}

	if err := utils.WriteFileAtomic(filePath, content); err != nil {
		return "", err
	}
	return filePath, nil
}
