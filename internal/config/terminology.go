package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/RecoveryAshes/docmirror/internal/utils"
	"gopkg.in/yaml.v3"
)

// MaxTerminologyFileSize 术语表文件最大大小 (8MB)
const MaxTerminologyFileSize = 8 * 1024 * 1024

// LoadTerminology 加载术语表 (源语言术语 → 目标语言术语)
// 支持YAML和JSON(JSON是YAML的子集); 可以是平铺映射,也可以嵌套在key下(如 en_to_ka)
// 文件不存在返回空表并警告; 文件损坏返回空表并记录错误,都不会中止运行
func LoadTerminology(path, key string) map[string]string {
	if path == "" {
		return map[string]string{}
	}

	terms, err := parseTerminologyFile(path, key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			utils.Warnf("⚠️  未找到术语表 [%s],不使用术语保护", path)
		} else {
			utils.Logger.Error().Err(err).Str("file", path).Msg("术语表解析失败,不使用术语保护")
		}
		return map[string]string{}
	}

	utils.Infof("📚 已加载 %d 条术语", len(terms))
	return terms
}

func parseTerminologyFile(path, key string) (map[string]string, error) {
	if err := ValidateFileSize(path, MaxTerminologyFileSize); err != nil {
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return nil, statErr
		}
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTerminology(data, key)
}

// ParseTerminology 解析术语表内容
// key非空且顶层存在该键时取其下的映射,否则把顶层当作平铺映射
func ParseTerminology(data []byte, key string) (map[string]string, error) {
	var root map[string]interface{}
	// 制表符缩进的JSON不是合法YAML,JSON内容走encoding/json
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &root); err != nil {
			return nil, fmt.Errorf("术语表JSON格式错误: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("术语表格式错误: %w", err)
	}

	section := root
	if key != "" {
		if nested, ok := root[key]; ok {
			m, ok := nested.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("术语表中 %q 不是映射", key)
			}
			section = m
		}
	}

	terms := make(map[string]string, len(section))
	for src, v := range section {
		dst, ok := v.(string)
		if !ok {
			// 平铺模式下其他语言方向的嵌套段落直接忽略
			if _, nested := v.(map[string]interface{}); nested {
				continue
			}
			return nil, fmt.Errorf("术语 %q 的译文不是字符串", src)
		}
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		terms[src] = dst
	}
	return terms, nil
}
