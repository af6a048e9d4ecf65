package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

var (
	imgSrcRe   = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"']+)["']`)
	imageURLRe = regexp.MustCompile(`(?i)https?://[^\s<>"']+\.(?:jpg|jpeg|png|gif|webp|bmp|svg|avif)(?:\?[^\s<>"']*)?`)
)

// ExtractImage 按优先级查找条目图片, 命中即返回:
//  1. media:thumbnail
//  2. media:content (图片类型)
//  3. enclosure (图片类型)
//  4. Atom link[rel=enclosure] (图片类型, gofeed 同样归入 Enclosures)
//  5. 正文中第一个 <img src>
//  6. 条目原文中第一个 <img src>
//  7. 正文中第一个图片扩展名结尾的 URL
func ExtractImage(item *gofeed.Item, rawContent, rawMarkup string) *string {
	steps := []func() string{
		func() string { return mediaThumbnail(item.Extensions) },
		func() string { return mediaContentImage(item.Extensions) },
		func() string { return enclosureImage(item.Enclosures) },
		func() string { return firstImgInHTML(rawContent) },
		func() string { return firstSubmatch(imgSrcRe, rawMarkup) },
		func() string { return imageURLRe.FindString(rawContent) },
	}
	for _, step := range steps {
		if u := strings.TrimSpace(step()); u != "" {
			return &u
		}
	}
	return nil
}

// mediaElements 返回 media:<name>, 包含 media:group 内的元素
func mediaElements(exts ext.Extensions, name string) []ext.Extension {
	media, ok := exts["media"]
	if !ok {
		return nil
	}
	out := append([]ext.Extension(nil), media[name]...)
	for _, group := range media["group"] {
		out = append(out, group.Children[name]...)
	}
	return out
}

func mediaThumbnail(exts ext.Extensions) string {
	for _, thumb := range mediaElements(exts, "thumbnail") {
		if u := thumb.Attrs["url"]; u != "" {
			return u
		}
	}
	return ""
}

func mediaContentImage(exts ext.Extensions) string {
	for _, content := range mediaElements(exts, "content") {
		if !isImageType(content.Attrs["type"]) && content.Attrs["medium"] != "image" {
			continue
		}
		if u := content.Attrs["url"]; u != "" {
			return u
		}
	}
	return ""
}

func enclosureImage(enclosures []*gofeed.Enclosure) string {
	for _, enc := range enclosures {
		if enc != nil && enc.URL != "" && isImageType(enc.Type) {
			return enc.URL
		}
	}
	return ""
}

func firstImgInHTML(content string) string {
	if !strings.Contains(strings.ToLower(content), "<img") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return src
}

func firstSubmatch(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return ""
}

func isImageType(mime string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mime)), "image/")
}
