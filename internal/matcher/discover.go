package matcher

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/allanpk716/creditor_letters/internal/markup"
)

// maxPlaceholderRunes 超过此长度的引号内容视为普通引文
const maxPlaceholderRunes = 80

// Placeholder 模板中发现的一个引号短语
type Placeholder struct {
	Name       string `yaml:"name" json:"name"`
	Count      int    `yaml:"count" json:"count"`
	Fragmented bool   `yaml:"fragmented" json:"fragmented"`
}

// Discover 列出模板中所有被引号包围的短语，用于检查模板与配置是否一致
func Discover(s string, delimiters []Delimiter) []Placeholder {
	if len(delimiters) == 0 {
		delimiters = DefaultDelimiters()
	}

	idx := newTextIndex(s)
	found := make(map[string]*Placeholder)
	claimed := make(map[int]bool)

	for _, d := range delimiters {
		for i := 0; i < len(idx.chars); i++ {
			if claimed[i] {
				continue
			}
			afterOpen, ok := idx.matchRaw(i, d.Open)
			if !ok {
				continue
			}
			end, closeStart, ok := findClose(idx, afterOpen, d)
			if !ok {
				continue
			}

			start := idx.chars[i].start
			inner := markup.NormalizeSpace(markup.VisibleText(s[idx.chars[afterOpen-1].end:idx.chars[closeStart].start]))
			if inner == "" || utf8.RuneCountInString(inner) > maxPlaceholderRunes {
				continue
			}
			for k := i; k < end; k++ {
				claimed[k] = true
			}

			p, ok := found[inner]
			if !ok {
				p = &Placeholder{Name: inner}
				found[inner] = p
			}
			p.Count++
			if strings.Contains(s[start:idx.chars[end-1].end], "<") {
				p.Fragmented = true
			}
			i = end - 1
		}
	}

	result := make([]Placeholder, 0, len(found))
	for _, p := range found {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// findClose 在同一段落中查找闭引号，返回闭引号之后的下标和闭引号的下标
func findClose(idx *textIndex, j int, d Delimiter) (int, int, bool) {
	if j >= len(idx.chars) {
		return 0, 0, false
	}
	para := idx.chars[j-1].para
	for k := j; k < len(idx.chars) && idx.chars[k].para == para; k++ {
		if end, ok := idx.matchRaw(k, d.Close); ok {
			if k == j {
				return 0, 0, false
			}
			return end, k, true
		}
	}
	return 0, 0, false
}
