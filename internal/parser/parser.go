// Package parser 将 RSS 2.0 / Atom / RDF 订阅源统一解析为 ParsedFeed。
package parser

import (
	"bytes"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Format 订阅源格式
type Format string

const (
	FormatRSS  Format = "rss"
	FormatAtom Format = "atom"
	FormatRDF  Format = "rdf"
)

const (
	atomNamespace = "http://www.w3.org/2005/Atom"
	rdfNamespace  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
)

// ParsedFeed 与源格式无关的解析结果
type ParsedFeed struct {
	Format      Format
	Title       string
	Description string
	Link        string
	Items       []ParsedItem
}

// ParsedItem 规范化后的条目, 文本字段已去除标签并解码实体
type ParsedItem struct {
	GUID        string
	Title       string
	Link        string
	Content     string
	PublishedAt time.Time
	Author      *string
	ImageURL    *string
}

// ParseError 订阅源内容无法解析
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "parse feed: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parser 无 I/O; Now 仅用于缺失或无法解析的发布时间
type Parser struct {
	Now func() time.Time
}

// New 使用当前时间作为发布时间兜底
func New() *Parser {
	return &Parser{Now: time.Now}
}

// Parse 使用默认 Parser 解析
func Parse(raw []byte) (*ParsedFeed, error) {
	return New().Parse(raw)
}

// DetectFormat 按 Atom -> RDF -> RSS 2.0 的顺序判断格式
// 只看根元素上的默认命名空间, RSS 中常见的 xmlns:atom 不算 Atom
func DetectFormat(raw []byte) Format {
	root, ok := scanRoot(raw)
	if ok {
		if root.local == "feed" || root.defaultNS == atomNamespace {
			return FormatAtom
		}
		if root.local == "RDF" {
			return FormatRDF
		}
		if root.local != "rss" && bytes.Contains(raw, []byte(rdfNamespace)) {
			return FormatRDF
		}
	}
	return FormatRSS
}

func (p *Parser) Parse(raw []byte) (*ParsedFeed, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &ParseError{Err: errEmptyDocument}
	}

	format := DetectFormat(raw)

	// gofeed.Parser 不能并发使用, 每次新建
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	rawItems := scanItems(raw, itemElement(format))
	if len(rawItems) != len(feed.Items) {
		// 对不上时放弃原始片段, 只影响 rdf:about 与图片兜底
		rawItems = nil
	}

	out := &ParsedFeed{
		Format:      format,
		Title:       normalizeDecoded(feed.Title),
		Description: normalizeDecoded(feed.Description),
		Link:        strings.TrimSpace(feed.Link),
		Items:       make([]ParsedItem, 0, len(feed.Items)),
	}

	for i, item := range feed.Items {
		if item == nil {
			continue
		}
		var ri rawItem
		if rawItems != nil {
			ri = rawItems[i]
		}
		parsed, ok := p.convertItem(format, item, ri)
		if !ok {
			continue
		}
		out.Items = append(out.Items, parsed)
	}
	return out, nil
}

func itemElement(format Format) string {
	if format == FormatAtom {
		return "entry"
	}
	return "item"
}

func (p *Parser) convertItem(format Format, item *gofeed.Item, ri rawItem) (ParsedItem, bool) {
	title := normalizeDecoded(item.Title)
	link := strings.TrimSpace(item.Link)

	guid := itemGUID(format, item, ri)
	if guid == "" {
		guid = link
	}
	if guid == "" {
		guid = title
	}
	// 既没有标识也没有标题的条目直接丢弃
	if guid == "" {
		return ParsedItem{}, false
	}

	rawContent := item.Content
	if strings.TrimSpace(rawContent) == "" {
		rawContent = item.Description
	}

	return ParsedItem{
		GUID:        guid,
		Title:       title,
		Link:        link,
		Content:     normalizeDecoded(rawContent),
		PublishedAt: p.publishedAt(format, item),
		Author:      itemAuthor(item),
		ImageURL:    ExtractImage(item, rawContent, ri.markup),
	}, true
}

func itemGUID(format Format, item *gofeed.Item, ri rawItem) string {
	if format == FormatRDF {
		return strings.TrimSpace(ri.about)
	}
	return strings.TrimSpace(item.GUID)
}

func itemAuthor(item *gofeed.Item) *string {
	var candidates []string
	if item.DublinCoreExt != nil {
		candidates = append(candidates, item.DublinCoreExt.Creator...)
	}
	if item.Author != nil {
		candidates = append(candidates, item.Author.Name, item.Author.Email)
	}
	for _, a := range item.Authors {
		if a != nil {
			candidates = append(candidates, a.Name)
		}
	}

	for _, c := range candidates {
		if name := normalizeDecoded(c); name != "" {
			return &name
		}
	}
	return nil
}
