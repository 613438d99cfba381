package docx

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
)

// CustomPropertiesPart 自定义文档属性部件
const CustomPropertiesPart = "docProps/custom.xml"

const (
	contentTypesPart = "[Content_Types].xml"
	rootRelsPart     = "_rels/.rels"

	customNamespace   = "http://schemas.openxmlformats.org/officeDocument/2006/custom-properties"
	vtNamespace       = "http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes"
	customFmtID       = "{D5CDD505-2E9C-101B-9397-08002B2CF9AE}"
	customContentType = "application/vnd.openxmlformats-officedocument.custom-properties+xml"
	customRelType     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/custom-properties"
	customRelID       = "rIdCustomProperties"
)

// Property 自定义文档属性；Type 为空时按字符串（vt:lpwstr）写入
type Property struct {
	Name  string
	Value string
	Type  string
}

// customProperties docProps/custom.xml 的结构
type customProperties struct {
	XMLName     xml.Name         `xml:"Properties"`
	Namespace   string           `xml:"xmlns,attr"`
	VTNamespace string           `xml:"xmlns:vt,attr"`
	Properties  []customProperty `xml:"property"`
}

type customProperty struct {
	FmtID string     `xml:"fmtid,attr"`
	PID   int        `xml:"pid,attr"`
	Name  string     `xml:"name,attr"`
	Value typedValue `xml:",any"`
}

// typedValue vt:lpwstr、vt:i4、vt:bool 等带类型的值
type typedValue struct {
	XMLName xml.Name
	Text    string `xml:",chardata"`
}

// ParseProperties 解析自定义属性，空内容返回空列表
func ParseProperties(markup string) ([]Property, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, nil
	}
	var doc customProperties
	if err := xml.Unmarshal([]byte(markup), &doc); err != nil {
		return nil, fmt.Errorf("解析自定义属性XML失败: %w", err)
	}
	sort.SliceStable(doc.Properties, func(i, j int) bool {
		return doc.Properties[i].PID < doc.Properties[j].PID
	})
	props := make([]Property, 0, len(doc.Properties))
	for _, p := range doc.Properties {
		props = append(props, Property{Name: p.Name, Value: p.Value.Text, Type: p.Value.XMLName.Local})
	}
	return props, nil
}

// Properties 读取文档的自定义属性，没有属性部件时返回空列表
func (p *Package) Properties() ([]Property, error) {
	if !p.HasPart(CustomPropertiesPart) {
		return nil, nil
	}
	markup, err := p.Part(CustomPropertiesPart)
	if err != nil {
		return nil, err
	}
	return ParseProperties(markup)
}

// SetProperties 按名称合并自定义属性，同名属性被覆盖
//
// 文档原来没有属性部件时会同时登记内容类型和根关系。
func (p *Package) SetProperties(props []Property) error {
	existing, err := p.Properties()
	if err != nil {
		return err
	}
	index := make(map[string]int, len(existing))
	for i, prop := range existing {
		index[prop.Name] = i
	}
	for _, prop := range props {
		if prop.Name == "" {
			return fmt.Errorf("自定义属性名称不能为空")
		}
		if i, ok := index[prop.Name]; ok {
			existing[i] = prop
			continue
		}
		index[prop.Name] = len(existing)
		existing = append(existing, prop)
	}

	markup, err := marshalProperties(existing)
	if err != nil {
		return err
	}
	if err := p.registerCustomProperties(); err != nil {
		return err
	}
	p.SetPart(CustomPropertiesPart, markup)
	return nil
}

func marshalProperties(props []Property) (string, error) {
	doc := customProperties{
		Namespace:   customNamespace,
		VTNamespace: vtNamespace,
		Properties:  make([]customProperty, 0, len(props)),
	}
	for i, prop := range props {
		typ := prop.Type
		if typ == "" {
			typ = "lpwstr"
		}
		doc.Properties = append(doc.Properties, customProperty{
			FmtID: customFmtID,
			// pid 从 2 开始
			PID:   i + 2,
			Name:  prop.Name,
			Value: typedValue{XMLName: xml.Name{Local: "vt:" + typ}, Text: prop.Value},
		})
	}
	data, err := xml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("生成自定义属性XML失败: %w", err)
	}
	return xml.Header[:len(xml.Header)-1] + string(data), nil
}

// registerCustomProperties 确保内容类型和根关系中登记了属性部件
func (p *Package) registerCustomProperties() error {
	types, err := p.Part(contentTypesPart)
	if err != nil {
		return err
	}
	if !strings.Contains(types, `PartName="/`+CustomPropertiesPart+`"`) {
		override := `<Override PartName="/` + CustomPropertiesPart + `" ContentType="` + customContentType + `"/>`
		updated, ok := insertBefore(types, "</Types>", override)
		if !ok {
			return fmt.Errorf("%w: %s 缺少 Types 元素", ErrCorruptArchive, contentTypesPart)
		}
		p.SetPart(contentTypesPart, updated)
	}

	rels, err := p.Part(rootRelsPart)
	if err != nil {
		return err
	}
	if !strings.Contains(rels, `Target="`+CustomPropertiesPart+`"`) && !strings.Contains(rels, `Target="/`+CustomPropertiesPart+`"`) {
		rel := `<Relationship Id="` + customRelID + `" Type="` + customRelType + `" Target="` + CustomPropertiesPart + `"/>`
		updated, ok := insertBefore(rels, "</Relationships>", rel)
		if !ok {
			return fmt.Errorf("%w: %s 缺少 Relationships 元素", ErrCorruptArchive, rootRelsPart)
		}
		p.SetPart(rootRelsPart, updated)
	}
	return nil
}

func insertBefore(s, closing, fragment string) (string, bool) {
	i := strings.LastIndex(s, closing)
	if i < 0 {
		return s, false
	}
	return s[:i] + fragment + s[i:], true
}
