package docx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	gdocx "github.com/nguyenthenguyen/docx"
)

var (
	textRunPattern  = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	breakPattern    = regexp.MustCompile(`<w:(?:br|cr)(?:\s[^>]*)?/>`)
	paragraphCloser = "</w:p>"
)

// ValidateMarkup 检查部件是否为格式良好的XML
func ValidateMarkup(markup string) error {
	decoder := xml.NewDecoder(strings.NewReader(markup))
	decoder.Strict = true
	for {
		_, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("XML格式错误: %w", err)
		}
	}
}

// ExtractText 提取正文可见文本，段落之间以换行分隔
func ExtractText(markup string) string {
	chunks := strings.Split(markup, paragraphCloser)
	lines := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		chunk = breakPattern.ReplaceAllString(chunk, "<w:t>\n</w:t>")
		var line strings.Builder
		for _, match := range textRunPattern.FindAllStringSubmatch(chunk, -1) {
			line.WriteString(html.UnescapeString(match[1]))
		}
		lines = append(lines, line.String())
	}
	// 最后一段之后的内容不是段落
	if len(lines) > 1 {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// PlainText 使用独立的DOCX读取器提取文档文本
func PlainText(archive []byte) (string, error) {
	reader, err := gdocx.ReadDocxFromMemory(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	defer reader.Close()

	return ExtractText(reader.Editable().GetContent()), nil
}
