package models

// FrontierItem 表示工作列表中的一个待访问URL
type FrontierItem struct {
	// URL 规范化后的绝对URL
	URL string

	// SourceURL 发现此URL的页面(种子为空,用于调试)
	SourceURL string
}
