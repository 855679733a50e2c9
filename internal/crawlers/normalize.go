package crawlers

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// IndexFileName 以分隔符结尾或为空的路径映射到的文件名
const IndexFileName = "index.html"

// DefaultPageExtension 无扩展名路径追加的扩展名
const DefaultPageExtension = ".html"

// Scope 判断URL是否属于镜像范围
type Scope func(normalizedURL string) bool

// NormalizeURL 将链接规范化为页面标识
// 相对链接基于所在页面解析,去掉fragment和query
// base为空时rawURL必须是绝对URL
func NormalizeURL(rawURL string, base string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("URL格式无效: %w", err)
	}

	if base != "" {
		baseURL, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("页面URL格式无效: %w", err)
		}
		ref = baseURL.ResolveReference(ref)
	}

	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", fmt.Errorf("不支持的协议: %q", ref.Scheme)
	}
	if ref.Host == "" {
		return "", fmt.Errorf("URL缺少主机名: %s", rawURL)
	}

	ref.Fragment = ""
	ref.RawFragment = ""
	ref.RawQuery = ""
	ref.ForceQuery = false
	ref.User = nil
	ref.Scheme = strings.ToLower(ref.Scheme)
	ref.Host = strings.ToLower(ref.Host)
	if ref.Path == "" {
		ref.Path = "/"
		ref.RawPath = ""
	}

	return ref.String(), nil
}

// PrefixScope 返回以base为前缀的作用域判断
// 同协议、同主机,路径以base路径开头
func PrefixScope(base string) (Scope, error) {
	normalized, err := NormalizeURL(base, "")
	if err != nil {
		return nil, err
	}
	return func(u string) bool {
		return strings.HasPrefix(u, normalized)
	}, nil
}

// MirrorRelPath 根据URL路径计算镜像相对路径(斜杠分隔)
// 目录结构与URL路径段一致; 以分隔符结尾或为空映射到index.html; 无扩展名追加.html
//
//	https://site.example/docs/api/       -> docs/api/index.html
//	https://site.example/docs/api/intro  -> docs/api/intro.html
func MirrorRelPath(pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("URL格式无效: %w", err)
	}

	rel := strings.TrimLeft(parsed.Path, "/")
	if rel == "" || strings.HasSuffix(rel, "/") {
		rel += IndexFileName
	} else if !strings.Contains(path.Base(rel), ".") {
		rel += DefaultPageExtension
	}

	rel = path.Clean(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
		return "", fmt.Errorf("URL路径超出镜像目录: %s", pageURL)
	}
	return rel, nil
}
