package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// MainDocumentPart 正文部件名称
const MainDocumentPart = "word/document.xml"

// ErrCorruptArchive 模板不是可读取的DOCX压缩包
var ErrCorruptArchive = errors.New("损坏的DOCX压缩包")

// Package 内存中的DOCX压缩包
//
// 原始字节在多个克隆之间共享且只读；每个克隆只持有自己修改过的部件。
type Package struct {
	source    []byte
	reader    *zip.Reader
	overrides map[string]string
	order     []string // 新增部件的写入顺序
	mu        sync.RWMutex
}

// Open 从字节打开DOCX压缩包
func Open(data []byte) (*Package, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: 内容为空", ErrCorruptArchive)
	}
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	pkg := &Package{
		source:    data,
		reader:    reader,
		overrides: make(map[string]string),
	}
	if pkg.file(MainDocumentPart) == nil {
		return nil, fmt.Errorf("%w: 缺少 %s", ErrCorruptArchive, MainDocumentPart)
	}
	return pkg, nil
}

// Clone 返回共享原始字节的独立副本
func (p *Package) Clone() *Package {
	p.mu.RLock()
	defer p.mu.RUnlock()

	overrides := make(map[string]string, len(p.overrides))
	for name, text := range p.overrides {
		overrides[name] = text
	}
	return &Package{
		source:    p.source,
		reader:    p.reader,
		overrides: overrides,
		order:     append([]string(nil), p.order...),
	}
}

// PartNames 返回压缩包中所有部件名称（按原始顺序，新增部件在后）
func (p *Package) PartNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.reader.File)+len(p.order))
	for _, f := range p.reader.File {
		names = append(names, f.Name)
	}
	return append(names, p.order...)
}

// HasPart 判断部件是否存在
func (p *Package) HasPart(name string) bool {
	p.mu.RLock()
	_, ok := p.overrides[name]
	p.mu.RUnlock()
	return ok || p.file(name) != nil
}

// Part 读取部件文本
func (p *Package) Part(name string) (string, error) {
	p.mu.RLock()
	text, ok := p.overrides[name]
	p.mu.RUnlock()
	if ok {
		return text, nil
	}

	f := p.file(name)
	if f == nil {
		return "", fmt.Errorf("部件不存在: %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("%w: 打开部件 %s 失败: %v", ErrCorruptArchive, name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("%w: 读取部件 %s 失败: %v", ErrCorruptArchive, name, err)
	}
	return string(content), nil
}

// SetPart 替换部件文本，不存在的部件会被追加
func (p *Package) SetPart(name, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, seen := p.overrides[name]; !seen && p.file(name) == nil {
		p.order = append(p.order, name)
	}
	p.overrides[name] = text
}

// Modified 返回被修改过的部件名称
func (p *Package) Modified() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.overrides))
	for name := range p.overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Serialize 重新打包为DOCX字节
//
// 未修改的条目按原始压缩数据逐字节复制，修改过的条目沿用原条目头重新压缩。
func (p *Package) Serialize() ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)

	for _, file := range p.reader.File {
		if text, ok := p.overrides[file.Name]; ok {
			header := file.FileHeader
			writer, err := zipWriter.CreateHeader(&header)
			if err != nil {
				return nil, fmt.Errorf("创建ZIP文件头失败 %s: %w", file.Name, err)
			}
			if _, err := io.WriteString(writer, text); err != nil {
				return nil, fmt.Errorf("写入文件内容失败 %s: %w", file.Name, err)
			}
			continue
		}

		if err := copyRaw(zipWriter, file); err != nil {
			return nil, err
		}
	}

	for _, name := range p.order {
		writer, err := zipWriter.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("创建ZIP文件头失败 %s: %w", name, err)
		}
		if _, err := io.WriteString(writer, p.overrides[name]); err != nil {
			return nil, fmt.Errorf("写入文件内容失败 %s: %w", name, err)
		}
	}

	if p.reader.Comment != "" {
		if err := zipWriter.SetComment(p.reader.Comment); err != nil {
			return nil, fmt.Errorf("写入压缩包注释失败: %w", err)
		}
	}
	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("关闭ZIP写入器失败: %w", err)
	}
	return buf.Bytes(), nil
}

// copyRaw 原样复制压缩后的条目数据
func copyRaw(zipWriter *zip.Writer, file *zip.File) error {
	header := file.FileHeader
	writer, err := zipWriter.CreateRaw(&header)
	if err != nil {
		return fmt.Errorf("创建ZIP文件头失败 %s: %w", file.Name, err)
	}
	raw, err := file.OpenRaw()
	if err != nil {
		return fmt.Errorf("%w: 读取条目 %s 失败: %v", ErrCorruptArchive, file.Name, err)
	}
	if _, err := io.Copy(writer, raw); err != nil {
		return fmt.Errorf("复制条目 %s 失败: %w", file.Name, err)
	}
	return nil
}

func (p *Package) file(name string) *zip.File {
	for _, f := range p.reader.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}
