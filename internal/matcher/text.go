package matcher

import (
	"sort"

	"github.com/allanpk716/creditor_letters/internal/markup"
)

// textChar 正文中的一个可见字符
type textChar struct {
	r     rune
	start int
	end   int
	para  int
}

// textIndex w:t 内可见字符的索引，标签和属性中的内容不计入
type textIndex struct {
	src   string
	chars []textChar
}

func newTextIndex(s string) *textIndex {
	idx := &textIndex{src: s}
	para, inText := 0, 0
	for _, tok := range markup.Tokenize(s) {
		switch {
		case tok.IsParagraphBoundary():
			para++
		case tok.IsOpen("w:t"):
			inText++
		case tok.IsClose("w:t"):
			if inText > 0 {
				inText--
			}
		case tok.Kind == markup.Text && inText > 0:
			for pos := tok.Start; pos < tok.End; {
				r, n := markup.DecodeRune(s[pos:tok.End])
				if n == 0 {
					break
				}
				idx.chars = append(idx.chars, textChar{r: r, start: pos, end: pos + n, para: para})
				pos += n
			}
		}
	}
	return idx
}

// at 返回从 pos 开始的字符下标
func (idx *textIndex) at(pos int) (int, bool) {
	i := sort.Search(len(idx.chars), func(i int) bool {
		return idx.chars[i].start >= pos
	})
	if i < len(idx.chars) && idx.chars[i].start == pos {
		return i, true
	}
	return 0, false
}

// matchRaw 判断下标 i 处是否以原始写法 lit 开头（不得跨越标签），返回之后的下标
func (idx *textIndex) matchRaw(i int, lit string) (int, bool) {
	if i >= len(idx.chars) || lit == "" {
		return 0, false
	}
	start := idx.chars[i].start
	if len(idx.src)-start < len(lit) || idx.src[start:start+len(lit)] != lit {
		return 0, false
	}
	limit := start + len(lit)
	j := i
	for j < len(idx.chars) && idx.chars[j].end <= limit {
		if j > i && idx.chars[j].start != idx.chars[j-1].end {
			return 0, false
		}
		j++
	}
	if j == i || idx.chars[j-1].end != limit {
		return 0, false
	}
	return j, true
}

// skipSpace 跳过同一段落内的空白字符
func (idx *textIndex) skipSpace(j, para int) int {
	for j < len(idx.chars) && idx.chars[j].para == para && isSpace(idx.chars[j].r) {
		j++
	}
	return j
}
