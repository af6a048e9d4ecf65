package parser

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
)

// publishedAt 按格式选择日期字段, 都缺失或无法解析时使用当前时间
//
//	RSS:  pubDate (gofeed 在缺失时回退到 dc:date)
//	Atom: published -> updated
//	RDF:  dc:date -> pubDate
func (p *Parser) publishedAt(format Format, item *gofeed.Item) time.Time {
	var candidates []func() *time.Time

	switch format {
	case FormatAtom:
		candidates = []func() *time.Time{
			func() *time.Time { return firstTime(item.PublishedParsed, item.Published) },
			func() *time.Time { return firstTime(item.UpdatedParsed, item.Updated) },
		}
	case FormatRDF:
		candidates = []func() *time.Time{
			func() *time.Time {
				if item.DublinCoreExt == nil || len(item.DublinCoreExt.Date) == 0 {
					return nil
				}
				return parseDate(item.DublinCoreExt.Date[0])
			},
			func() *time.Time { return firstTime(item.PublishedParsed, item.Published) },
		}
	default:
		candidates = []func() *time.Time{
			func() *time.Time { return firstTime(item.PublishedParsed, item.Published) },
		}
	}

	for _, c := range candidates {
		if t := c(); t != nil {
			return *t
		}
	}
	return p.now()
}

func (p *Parser) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func firstTime(parsed *time.Time, raw string) *time.Time {
	if parsed != nil && !parsed.IsZero() {
		return parsed
	}
	return parseDate(raw)
}

// parseDate 解析 RFC 822 / RFC 3339 及常见变体
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	t, err := dateparse.ParseAny(s)
	if err != nil || t.IsZero() {
		return nil
	}
	return &t
}
