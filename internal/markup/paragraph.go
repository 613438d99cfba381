package markup

import (
	"sort"
	"strings"
)

// Paragraph 一个 <w:p> 元素在原始标记中的位置
type Paragraph struct {
	Start   int // <w:p 的起始偏移
	OpenEnd int // 开始标签之后的偏移
	Close   int // </w:p> 的起始偏移
	End     int // </w:p> 之后的偏移
	Text    string
}

// Paragraphs 按文档顺序返回所有段落（包括文本框中的嵌套段落）
func Paragraphs(s string) []Paragraph {
	type open struct {
		para Paragraph
		text strings.Builder
	}

	var (
		stack   []*open
		result  []Paragraph
		inText  int
		tokens  = Tokenize(s)
		appendT = func(str string) {
			for _, o := range stack {
				o.text.WriteString(str)
			}
		}
	)

	for _, tok := range tokens {
		switch {
		case tok.Kind == Text:
			if inText > 0 {
				appendT(DecodeEntities(s[tok.Start:tok.End]))
			}
		case tok.IsOpen("w:p"):
			stack = append(stack, &open{para: Paragraph{Start: tok.Start, OpenEnd: tok.End}})
		case tok.IsClose("w:p"):
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			top.para.Close = tok.Start
			top.para.End = tok.End
			top.para.Text = top.text.String()
			result = append(result, top.para)
		case tok.IsOpen("w:t"):
			inText++
		case tok.IsClose("w:t"):
			if inText > 0 {
				inText--
			}
		case tok.Kind == Tag && tok.SelfClosing && tok.Name == "w:tab":
			appendT("\t")
		case tok.Kind == Tag && tok.SelfClosing && (tok.Name == "w:br" || tok.Name == "w:cr"):
			appendT("\n")
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Start < result[j].Start
	})
	return result
}

// emptyRunTags 空运行中允许出现的标签
var emptyRunTags = map[string]bool{
	"w:t":                     true,
	"w:lastRenderedPageBreak": true,
	"w:proofErr":              true,
}

// RemoveEmptyRuns 删除不含可见内容的 <w:r> 运行
//
// 只有属性（w:rPr）和空的 w:t 的运行才会被删除，含换行、制表符、图形等的运行保持不变。
func RemoveEmptyRuns(s string) string {
	tokens := Tokenize(s)

	var b strings.Builder
	last := 0
	for i := 0; i < len(tokens); i++ {
		if !tokens[i].IsOpen("w:r") {
			continue
		}
		end, ok := emptyRunEnd(s, tokens, i)
		if !ok {
			continue
		}
		b.WriteString(s[last:tokens[i].Start])
		last = tokens[end].End
		i = end
	}
	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

// emptyRunEnd 返回空运行的结束标签下标
func emptyRunEnd(s string, tokens []Token, start int) (int, bool) {
	inProps := 0
	inText := false
	for i := start + 1; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case tok.IsClose("w:r"):
			return i, inProps == 0
		case tok.IsOpen("w:rPr"):
			inProps++
		case tok.IsClose("w:rPr"):
			inProps--
		case inProps > 0:
			// 属性内容不影响是否为空
		case tok.Kind == Text:
			if inText {
				return 0, false
			}
			if strings.TrimSpace(s[tok.Start:tok.End]) != "" {
				return 0, false
			}
		case tok.IsOpen("w:t"):
			inText = true
		case tok.IsClose("w:t"):
			inText = false
		case tok.Kind == Tag && tok.SelfClosing && tok.Name == "w:rPr":
		case tok.Kind == Tag && emptyRunTags[tok.Name]:
		default:
			return 0, false
		}
	}
	return 0, false
}

// inlineWrappers 可以包住文本运行的行内容器
var inlineWrappers = map[string]bool{
	"w:hyperlink": true,
	"w:ins":       true,
	"w:del":       true,
	"w:moveFrom":  true,
	"w:moveTo":    true,
	"w:smartTag":  true,
	"w:customXml": true,
}

// IsInlineWrapper 判断标签是否为行内容器，如 w:hyperlink、w:ins
func IsInlineWrapper(name string) bool {
	return inlineWrappers[name]
}

// RemoveEmptyWrappers 删除开始标签后紧接结束标签的行内容器，嵌套的空容器一并删除
func RemoveEmptyWrappers(s string) string {
	for {
		tokens := Tokenize(s)
		var b strings.Builder
		last := 0
		for i := 0; i+1 < len(tokens); i++ {
			open := tokens[i]
			if open.Kind != Tag || open.Closing || open.SelfClosing || !inlineWrappers[open.Name] {
				continue
			}
			if !tokens[i+1].IsClose(open.Name) {
				continue
			}
			b.WriteString(s[last:open.Start])
			last = tokens[i+1].End
			i++
		}
		if last == 0 {
			return s
		}
		b.WriteString(s[last:])
		s = b.String()
	}
}
