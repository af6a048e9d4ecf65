package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
)

var errEmptyDocument = errors.New("empty document")

type rootElement struct {
	local     string
	defaultNS string
}

// rawItem 单个条目在原文中的片段
type rawItem struct {
	markup string
	about  string // RDF 的 rdf:about
}

func newScanner(raw []byte) *xml.Decoder {
	d := xml.NewDecoder(bytes.NewReader(raw))
	d.Strict = false
	d.AutoClose = xml.HTMLAutoClose
	d.Entity = xml.HTMLEntity
	// 只需要字节偏移, 不做编码转换
	d.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	return d
}

func scanRoot(raw []byte) (rootElement, bool) {
	d := newScanner(raw)
	for {
		tok, err := d.RawToken()
		if err != nil {
			return rootElement{}, false
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		root := rootElement{local: start.Name.Local}
		for _, attr := range start.Attr {
			if attr.Name.Space == "" && attr.Name.Local == "xmlns" {
				root.defaultNS = attr.Value
			}
		}
		return root, true
	}
}

// scanItems 按文档顺序返回每个 name 元素的原始片段, 嵌套的同名元素归入外层
func scanItems(raw []byte, name string) []rawItem {
	d := newScanner(raw)

	var (
		items []rawItem
		start int64
		depth int
		about string
	)
	for {
		offset := d.InputOffset()
		tok, err := d.RawToken()
		if err != nil {
			return items
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != name {
				continue
			}
			if depth == 0 {
				start = offset
				about = ""
				for _, attr := range t.Attr {
					if attr.Name.Local == "about" {
						about = attr.Value
					}
				}
			}
			depth++
		case xml.EndElement:
			if t.Name.Local != name || depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				end := d.InputOffset()
				if start >= 0 && end <= int64(len(raw)) && start <= end {
					items = append(items, rawItem{markup: string(raw[start:end]), about: about})
				}
			}
		}
	}
}
