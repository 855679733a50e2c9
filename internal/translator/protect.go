package translator

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"
)

// markerFormat 受保护内容的标记格式,翻译服务以html格式调用时会原样保留
const markerFormat = `<span class="notranslate">%s</span>`

// identifierPattern 形如 "mcpwm_init (C++ function)" 的代码标识符
var identifierPattern = regexp.MustCompile(`(\b[a-zA-Z_][a-zA-Z0-9_.:]*\b)(\s*\(C(?:\+\+)?\s(?:macro|function|class|member|enumerator|type)\))`)

// Placeholder 一个标记及其还原值
type Placeholder struct {
	Marker string
	Value  string
}

// Placeholders 单个文本在一次翻译调用内的标记表
type Placeholders []Placeholder

// Term 术语对
type Term struct {
	Source string
	Target string
}

// ProtectionCodec 保护/还原代码标识符和术语
// 术语按长度降序排列(同长度按字典序),较长的术语优先替换
type ProtectionCodec struct {
	terms []Term
}

// NewProtectionCodec 创建编解码器
func NewProtectionCodec(terminology map[string]string) *ProtectionCodec {
	terms := make([]Term, 0, len(terminology))
	for src, dst := range terminology {
		if src == "" {
			continue
		}
		terms = append(terms, Term{Source: src, Target: dst})
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i].Source) != len(terms[j].Source) {
			return len(terms[i].Source) > len(terms[j].Source)
		}
		return terms[i].Source < terms[j].Source
	})
	return &ProtectionCodec{terms: terms}
}

// segment 文本片段; marker为true时内容为完整标记,不再参与替换也不转义
type segment struct {
	text   string
	marker bool
}

// Protect 生成发送给翻译服务的文本
//  1. 先保护代码标识符(必须看到原始文本)
//  2. 再把术语替换为 term{N} 占位符,已有标记内部不做替换
//
// 标记以外的普通文本做HTML转义
func (c *ProtectionCodec) Protect(text string) (string, Placeholders) {
	var placeholders Placeholders
	used := make(map[string]bool)

	segments := c.protectIdentifiers(text, &placeholders, used)
	next := 0
	for _, term := range c.terms {
		if !containsPlain(segments, term.Source) {
			continue
		}

		marker := ""
		for {
			marker = fmt.Sprintf(markerFormat, fmt.Sprintf("term%d", next))
			next++
			if !used[marker] {
				break
			}
		}
		used[marker] = true
		placeholders = append(placeholders, Placeholder{Marker: marker, Value: term.Target})
		segments = substitute(segments, term.Source, marker)
	}

	var b strings.Builder
	for _, seg := range segments {
		if seg.marker {
			b.WriteString(seg.text)
		} else {
			b.WriteString(html.EscapeString(seg.text))
		}
	}
	return b.String(), placeholders
}

// Restore 把标记替换为还原值,再做HTML反转义
func (c *ProtectionCodec) Restore(text string, placeholders Placeholders) string {
	if len(placeholders) > 0 {
		pairs := make([]string, 0, len(placeholders)*2)
		for _, p := range placeholders {
			pairs = append(pairs, p.Marker, html.EscapeString(p.Value))
		}
		text = strings.NewReplacer(pairs...).Replace(text)
	}
	return html.UnescapeString(text)
}

func (c *ProtectionCodec) protectIdentifiers(text string, placeholders *Placeholders, used map[string]bool) []segment {
	matches := identifierPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []segment{{text: text}}
	}

	segments := make([]segment, 0, len(matches)*2+1)
	last := 0
	for _, m := range matches {
		identStart, identEnd := m[2], m[3]
		if identStart > last {
			segments = append(segments, segment{text: text[last:identStart]})
		}
		ident := text[identStart:identEnd]
		marker := fmt.Sprintf(markerFormat, ident)
		if !used[marker] {
			used[marker] = true
			*placeholders = append(*placeholders, Placeholder{Marker: marker, Value: ident})
		}
		segments = append(segments, segment{text: marker, marker: true})
		last = identEnd
	}
	if last < len(text) {
		segments = append(segments, segment{text: text[last:]})
	}
	return segments
}

func containsPlain(segments []segment, needle string) bool {
	for _, seg := range segments {
		if !seg.marker && strings.Contains(seg.text, needle) {
			return true
		}
	}
	return false
}

// substitute 替换普通片段中所有出现的needle
func substitute(segments []segment, needle, marker string) []segment {
	out := make([]segment, 0, len(segments))
	for _, seg := range segments {
		if seg.marker || !strings.Contains(seg.text, needle) {
			out = append(out, seg)
			continue
		}
		parts := strings.Split(seg.text, needle)
		for i, part := range parts {
			if i > 0 {
				out = append(out, segment{text: marker, marker: true})
			}
			if part != "" {
				out = append(out, segment{text: part})
			}
		}
	}
	return out
}
