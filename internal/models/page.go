package models

import (
	"sort"
	"time"
)

// FingerprintMap URL -> 内容摘要
// 每个URL至多一条记录,写入时覆盖
type FingerprintMap map[string]string

// Clone 复制一份
func (m FingerprintMap) Clone() FingerprintMap {
	out := make(FingerprintMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SortedURLs 返回排序后的URL列表
func (m FingerprintMap) SortedURLs() []string {
	urls := make([]string, 0, len(m))
	for u := range m {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// PageStatus 页面比对结果
type PageStatus string

const (
	PageNew       PageStatus = "new"       // 上次运行中不存在
	PageChanged   PageStatus = "changed"   // 摘要不同
	PageUnchanged PageStatus = "unchanged" // 摘要相同
	PageFailed    PageStatus = "failed"    // 本次抓取失败
)

// PageRecord 单次抓取的页面
// 仅在一次运行内存在,抓取后立即被保存/比对消费
type PageRecord struct {
	URL         string    `json:"url"`
	Content     []byte    `json:"-"`
	Digest      string    `json:"digest"`
	ContentType string    `json:"content_type"`
	StatusCode  int       `json:"status_code"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// PageChange 一个新增或变更的页面
type PageChange struct {
	URL       string     `json:"url"`
	Status    PageStatus `json:"status"`
	Digest    string     `json:"digest"`
	LocalPath string     `json:"local_path"`
	Size      int64      `json:"size"`
}

// ChangeSet 变更检测的输出
type ChangeSet struct {
	// Changed 按URL排序的新增/变更页面
	Changed []PageChange
	// Current 本次运行的完整指纹表
	Current FingerprintMap
	// Failed 本次抓取失败的URL
	Failed []string
	// Unchanged 未变更页面数
	Unchanged int
}

// ChangedURLs 返回变更URL列表
func (cs *ChangeSet) ChangedURLs() []string {
	urls := make([]string, 0, len(cs.Changed))
	for _, c := range cs.Changed {
		urls = append(urls, c.URL)
	}
	return urls
}

// CountByStatus 统计某状态的页面数
func (cs *ChangeSet) CountByStatus(status PageStatus) int {
	n := 0
	for _, c := range cs.Changed {
		if c.Status == status {
			n++
		}
	}
	return n
}
