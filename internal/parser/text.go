package parser

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	cdataRe     = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	stripPolicy = newStripPolicy()

	// 解码后仍是 HTML 的文本 (转义的正文, Atom type="html"), 只认常见元素
	// 且开始标签必须无属性或带 name=value 属性, "a<b and b>c" 与 "Vec<T>" 不算
	markupTagRe = regexp.MustCompile(`(?i)</?(?:a|p|br|hr|img|div|span|b|i|u|em|strong|small|sup|sub|ul|ol|li|h[1-6]|blockquote|pre|code|figure|figcaption|table|tr|td|th|script|style|iframe)(?:\s+[^<>]*=[^<>]*)?\s*/?>`)
)

func newStripPolicy() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	// <p>a</p><p>b</p> 不应变成 "ab"
	p.AddSpaceWhenStrippingTag(true)
	return p
}

// NormalizeText 处理仍带实体编码的原文: 展开 CDATA, 去除标签, 解码一次 HTML 实体并合并空白
// 解码结果本身是 HTML 时再去一次标签
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	s = stripTags(cdataRe.ReplaceAllString(s, "$1"))
	if markupTagRe.MatchString(s) {
		s = stripTags(s)
	}
	return strings.Join(strings.Fields(s), " ")
}

// normalizeDecoded 处理 gofeed 已解码过实体的字段
// 先把 < > & 转回实体, 避免 "Vec<T>" 被当作标签去掉
func normalizeDecoded(s string) string {
	if s == "" {
		return ""
	}
	return NormalizeText(html.EscapeString(s))
}

// stripTags Sanitize 会重新转义文本, 之后解码 &lt; &gt; &amp; &quot; &#39; &nbsp; 等
func stripTags(s string) string {
	return html.UnescapeString(stripPolicy.Sanitize(s))
}
