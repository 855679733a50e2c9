// Package translator 实现保留文档结构的HTML翻译:
// 片段分类、标识符与术语保护、分批调用翻译服务、可断点续传的文件处理
package translator

import (
	"strings"

	"golang.org/x/net/html"
)

// DefaultAllowTags 默认可翻译标签(文本节点的直接父元素)
var DefaultAllowTags = []string{
	"p", "h1", "h2", "h3", "h4", "h5", "h6",
	"li", "a", "span", "strong", "em",
	"td", "th", "figcaption", "blockquote", "title",
}

// DefaultDenyTags 默认禁止翻译的标签(任意祖先命中即排除)
var DefaultDenyTags = []string{"code", "pre", "script", "style", "kbd"}

// Span 一个可翻译的文本单元
type Span struct {
	// Node 文本节点,译文直接写回 Node.Data
	Node *html.Node
	// Text 原始文本(未去除首尾空白)
	Text string
	// Ancestors 祖先标签名,从父元素到根
	Ancestors []string
}

// SpanClassifier 文本片段分类器
type SpanClassifier struct {
	allow map[string]bool
	deny  map[string]bool
}

// NewSpanClassifier 创建分类器,列表为空时使用默认值
func NewSpanClassifier(allowTags, denyTags []string) *SpanClassifier {
	if len(allowTags) == 0 {
		allowTags = DefaultAllowTags
	}
	if len(denyTags) == 0 {
		denyTags = DefaultDenyTags
	}
	return &SpanClassifier{
		allow: tagSet(allowTags),
		deny:  tagSet(denyTags),
	}
}

func tagSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			set[tag] = true
		}
	}
	return set
}

// Classify 按文档顺序(深度优先、从左到右)返回可翻译片段
// 条件: 直接父元素在允许列表中, 任何祖先都不在禁止列表中, 去除空白后非空
func (c *SpanClassifier) Classify(doc *html.Node) []Span {
	var spans []Span
	var ancestors []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if c.translatable(n, ancestors) {
				spans = append(spans, Span{
					Node:      n,
					Text:      n.Data,
					Ancestors: reversed(ancestors),
				})
			}
			return
		case html.ElementNode:
			// 被禁止的子树整体跳过
			if c.deny[n.Data] {
				return
			}
			ancestors = append(ancestors, n.Data)
			defer func() { ancestors = ancestors[:len(ancestors)-1] }()
		}

		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return spans
}

func (c *SpanClassifier) translatable(n *html.Node, ancestors []string) bool {
	if n.Parent == nil || n.Parent.Type != html.ElementNode {
		return false
	}
	if !c.allow[n.Parent.Data] {
		return false
	}
	return strings.TrimSpace(n.Data) != ""
}

// reversed 返回从近到远排列的祖先副本
func reversed(stack []string) []string {
	out := make([]string, len(stack))
	for i, tag := range stack {
		out[len(stack)-1-i] = tag
	}
	return out
}
