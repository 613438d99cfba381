// Package testutil 测试用的DOCX构造工具
package testutil

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const rootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const documentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

// Document 用段落片段拼出完整的 word/document.xml
func Document(paragraphs ...string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		strings.Join(paragraphs, "") +
		`</w:body></w:document>`
}

// Paragraph 构造只含单个文本运行的段落
func Paragraph(text string) string {
	return `<w:p><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p>`
}

// BuildDocx 构造包含给定正文的最小DOCX
func BuildDocx(t testing.TB, document string) []byte {
	t.Helper()
	return BuildArchive(t, []Entry{
		{Name: "[Content_Types].xml", Content: contentTypes},
		{Name: "_rels/.rels", Content: rootRels},
		{Name: "word/_rels/document.xml.rels", Content: documentRels},
		{Name: "word/document.xml", Content: document},
		{Name: "word/media/image1.png", Content: "\x89PNG fake image bytes", Store: true},
	})
}

// Entry 压缩包条目
type Entry struct {
	Name    string
	Content string
	Store   bool
}

// BuildArchive 按顺序写入条目
func BuildArchive(t testing.TB, entries []Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)
	for _, entry := range entries {
		method := zip.Deflate
		if entry.Store {
			method = zip.Store
		}
		writer, err := zipWriter.CreateHeader(&zip.FileHeader{Name: entry.Name, Method: method})
		if err != nil {
			t.Fatalf("创建条目 %s 失败: %v", entry.Name, err)
		}
		if _, err := writer.Write([]byte(entry.Content)); err != nil {
			t.Fatalf("写入条目 %s 失败: %v", entry.Name, err)
		}
	}
	if err := zipWriter.Close(); err != nil {
		t.Fatalf("关闭压缩包失败: %v", err)
	}
	return buf.Bytes()
}

// ReadEntries 读取压缩包全部条目的解压内容与原始压缩数据
func ReadEntries(t testing.TB, archive []byte) (content map[string]string, raw map[string][]byte) {
	t.Helper()

	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		t.Fatalf("读取压缩包失败: %v", err)
	}
	content = make(map[string]string)
	raw = make(map[string][]byte)
	for _, f := range reader.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("打开条目 %s 失败: %v", f.Name, err)
		}
		var b bytes.Buffer
		_, err = b.ReadFrom(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("读取条目 %s 失败: %v", f.Name, err)
		}
		content[f.Name] = b.String()

		rr, err := f.OpenRaw()
		if err != nil {
			t.Fatalf("读取原始条目 %s 失败: %v", f.Name, err)
		}
		var rb bytes.Buffer
		if _, err := rb.ReadFrom(rr); err != nil {
			t.Fatalf("读取原始条目 %s 失败: %v", f.Name, err)
		}
		raw[f.Name] = rb.Bytes()
	}
	return content, raw
}
