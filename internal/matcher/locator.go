package matcher

import (
	"sort"
	"strings"
	"unicode"

	"github.com/allanpk716/creditor_letters/internal/domain"
	"github.com/allanpk716/creditor_letters/internal/logger"
	"github.com/allanpk716/creditor_letters/internal/markup"
)

// locator 占位符定位器实现
type locator struct {
	delimiters []Delimiter
	logger     logger.Logger
}

// NewLocator 创建新的占位符定位器，delimiters 为空时使用默认定界符
func NewLocator(delimiters []Delimiter, log logger.Logger) domain.TokenLocator {
	if len(delimiters) == 0 {
		delimiters = DefaultDelimiters()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &locator{delimiters: delimiters, logger: log}
}

// NormalizeName 变量名的规范形式：合并内部空白
func NormalizeName(name string) string {
	return markup.NormalizeSpace(name)
}

// Locate 查找所有变量名的出现位置
//
// 先按字面形式查找，再在同一段落内查找被拆分到多个文本运行中的形式；
// 重叠的候选按最靠前、最长优先保留，结果按起始偏移升序返回。
func (l *locator) Locate(s string, names []string) []domain.MatchSpan {
	names = uniqueNames(names)
	if len(names) == 0 || s == "" {
		return nil
	}

	idx := newTextIndex(s)
	seen := make(map[[2]int]bool)
	var candidates []domain.MatchSpan
	add := func(span domain.MatchSpan) {
		key := [2]int{span.Start, span.End}
		if seen[key] {
			return
		}
		seen[key] = true
		candidates = append(candidates, span)
	}

	for _, name := range names {
		for _, d := range l.delimiters {
			for _, span := range l.literal(s, idx, name, d) {
				add(span)
			}
		}
	}
	for _, d := range l.delimiters {
		for _, span := range l.fragmented(idx, names, d) {
			add(span)
		}
	}

	return l.resolveOverlaps(candidates)
}

// literal 连续字面匹配
func (l *locator) literal(s string, idx *textIndex, name string, d Delimiter) []domain.MatchSpan {
	needle := d.Open + escapeName(name) + d.Close
	var spans []domain.MatchSpan
	for offset := 0; offset < len(s); {
		i := strings.Index(s[offset:], needle)
		if i < 0 {
			break
		}
		start := offset + i
		offset = start + len(needle)
		// 属性值中的引号不是占位符
		if _, ok := idx.at(start); !ok {
			offset = start + 1
			continue
		}
		spans = append(spans, domain.MatchSpan{
			Name:      name,
			Start:     start,
			End:       start + len(needle),
			Delimiter: d.Name,
		})
	}
	return spans
}

// fragmented 在同一段落中匹配被标记拆开的占位符
func (l *locator) fragmented(idx *textIndex, names []string, d Delimiter) []domain.MatchSpan {
	var spans []domain.MatchSpan
	for i := range idx.chars {
		afterOpen, ok := idx.matchRaw(i, d.Open)
		if !ok {
			continue
		}
		for _, name := range names {
			end, ok := l.matchName(idx, i, afterOpen, name, d)
			if !ok {
				continue
			}
			span := domain.MatchSpan{
				Name:      name,
				Start:     idx.chars[i].start,
				End:       idx.chars[end-1].end,
				Delimiter: d.Name,
			}
			fragment := idx.src[span.Start:span.End]
			span.Fragmented = strings.Contains(fragment, "<")
			if !verify(fragment, name, d) {
				l.logger.Debug("拆分占位符校验失败", map[string]interface{}{
					"name":  name,
					"start": span.Start,
				})
				continue
			}
			spans = append(spans, span)
		}
	}
	return spans
}

// matchName 从开引号之后逐字符匹配变量名和闭引号，返回闭引号之后的下标
func (l *locator) matchName(idx *textIndex, open, j int, name string, d Delimiter) (int, bool) {
	para := idx.chars[open].para
	j = idx.skipSpace(j, para)

	for _, r := range name {
		if r == ' ' {
			k := idx.skipSpace(j, para)
			if k == j {
				return 0, false
			}
			j = k
			continue
		}
		if j >= len(idx.chars) || idx.chars[j].para != para || idx.chars[j].r != r {
			return 0, false
		}
		j++
	}

	j = idx.skipSpace(j, para)
	end, ok := idx.matchRaw(j, d.Close)
	if !ok || idx.chars[end-1].para != para {
		return 0, false
	}
	return end, true
}

// verify 去除标签后的文本必须正好是 引号+变量名+引号
func verify(fragment, name string, d Delimiter) bool {
	text := markup.VisibleText(fragment)
	open := markup.DecodeEntities(d.Open)
	closing := markup.DecodeEntities(d.Close)
	if len(text) < len(open)+len(closing) ||
		!strings.HasPrefix(text, open) || !strings.HasSuffix(text, closing) {
		return false
	}
	return markup.NormalizeSpace(text[len(open):len(text)-len(closing)]) == name
}

// resolveOverlaps 保留最靠前、最长的互不重叠匹配
func (l *locator) resolveOverlaps(candidates []domain.MatchSpan) []domain.MatchSpan {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Len() != b.Len() {
			return a.Len() > b.Len()
		}
		return a.Name < b.Name
	})

	var kept []domain.MatchSpan
	for _, span := range candidates {
		if n := len(kept); n > 0 && kept[n-1].Overlaps(span) {
			l.logger.Warn("占位符位置重叠，已忽略较短的匹配", map[string]interface{}{
				"kept":    kept[n-1].Name,
				"dropped": span.Name,
				"start":   span.Start,
			})
			continue
		}
		kept = append(kept, span)
	}
	return kept
}

// Unlocated 返回未被定位到的变量名
func Unlocated(names []string, spans []domain.MatchSpan) []string {
	found := make(map[string]bool, len(spans))
	for _, span := range spans {
		found[span.Name] = true
	}
	var missing []string
	for _, name := range uniqueNames(names) {
		if !found[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = NormalizeName(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// escapeName 变量名在原始标记中的写法
func escapeName(name string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(name)
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r)
}
