// Package markup 提供对 WordprocessingML 原始文本的轻量级词法处理
//
// 所有偏移量都是原始字节偏移，调用方可以直接按偏移切片替换。
package markup

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind 词元类型
type Kind int

const (
	// Text 标签之间的文本
	Text Kind = iota
	// Tag 一个完整的 <...> 标签
	Tag
)

// Token 原始标记中的一个词元
type Token struct {
	Kind        Kind
	Start       int
	End         int
	Name        string // 标签名，如 w:t
	Closing     bool   // </w:t>
	SelfClosing bool   // <w:br/>
}

// Tokenize 把原始标记切分为标签和文本词元
func Tokenize(s string) []Token {
	tokens := make([]Token, 0, strings.Count(s, "<")*2)
	i := 0
	for i < len(s) {
		if s[i] != '<' {
			j := strings.IndexByte(s[i:], '<')
			if j < 0 {
				j = len(s) - i
			}
			tokens = append(tokens, Token{Kind: Text, Start: i, End: i + j})
			i += j
			continue
		}

		j := strings.IndexByte(s[i:], '>')
		if j < 0 {
			// 未闭合的标签按文本处理
			tokens = append(tokens, Token{Kind: Text, Start: i, End: len(s)})
			break
		}
		tokens = append(tokens, newTag(s, i, i+j+1))
		i += j + 1
	}
	return tokens
}

func newTag(s string, start, end int) Token {
	body := s[start+1 : end-1]
	tok := Token{Kind: Tag, Start: start, End: end}
	if strings.HasPrefix(body, "/") {
		tok.Closing = true
		body = body[1:]
	}
	if strings.HasSuffix(body, "/") {
		tok.SelfClosing = true
		body = body[:len(body)-1]
	}
	name := body
	if k := strings.IndexFunc(body, unicode.IsSpace); k >= 0 {
		name = body[:k]
	}
	tok.Name = name
	return tok
}

// IsOpen 判断是否为指定名称的开始标签
func (t Token) IsOpen(name string) bool {
	return t.Kind == Tag && t.Name == name && !t.Closing && !t.SelfClosing
}

// IsClose 判断是否为指定名称的结束标签
func (t Token) IsClose(name string) bool {
	return t.Kind == Tag && t.Name == name && t.Closing
}

// IsParagraphBoundary 段落开始或结束标签
func (t Token) IsParagraphBoundary() bool {
	return t.Kind == Tag && t.Name == "w:p" && !t.SelfClosing
}

// StripTags 删除所有标签，保留文本
func StripTags(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, tok := range Tokenize(s) {
		if tok.Kind == Text {
			b.WriteString(s[tok.Start:tok.End])
		}
	}
	return b.String()
}

// TagsOnly 删除所有文本，保留标签
func TagsOnly(s string) string {
	var b strings.Builder
	for _, tok := range Tokenize(s) {
		if tok.Kind == Tag {
			b.WriteString(s[tok.Start:tok.End])
		}
	}
	return b.String()
}

var namedEntities = map[string]rune{
	"amp":  '&',
	"lt":   '<',
	"gt":   '>',
	"quot": '"',
	"apos": '\'',
	"nbsp": '\u00a0',
}

// DecodeRune 解码 s 开头的一个字符，支持XML实体，返回字符和消耗的字节数
func DecodeRune(s string) (rune, int) {
	if s == "" {
		return utf8.RuneError, 0
	}
	if s[0] == '&' {
		if end := strings.IndexByte(s, ';'); end > 1 && end <= 10 {
			if r, ok := decodeEntity(s[1:end]); ok {
				return r, end + 1
			}
		}
	}
	return utf8.DecodeRuneInString(s)
}

func decodeEntity(name string) (rune, bool) {
	if r, ok := namedEntities[name]; ok {
		return r, true
	}
	if strings.HasPrefix(name, "#x") || strings.HasPrefix(name, "#X") {
		v, err := strconv.ParseUint(name[2:], 16, 32)
		return rune(v), err == nil
	}
	if strings.HasPrefix(name, "#") {
		v, err := strconv.ParseUint(name[1:], 10, 32)
		return rune(v), err == nil
	}
	return 0, false
}

// DecodeEntities 解码文本中的XML实体
func DecodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		r, n := DecodeRune(s[i:])
		b.WriteRune(r)
		i += n
	}
	return b.String()
}

// NormalizeSpace 合并连续空白为单个空格并去除首尾空白
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// VisibleText 标记片段的可见文本：去标签、解码实体
func VisibleText(s string) string {
	return DecodeEntities(StripTags(s))
}
