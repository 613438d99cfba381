package processor

import (
	"bytes"
	"encoding/xml"
	"sort"
	"strings"

	"github.com/allanpk716/creditor_letters/internal/domain"
	"github.com/allanpk716/creditor_letters/internal/markup"
)

const (
	preserveAttr = ` xml:space="preserve"`
	lineBreak    = `</w:t><w:br/><w:t xml:space="preserve">`
	runTail      = `</w:t></w:r>`
)

// SubstitutionResult 一次替换的结果
type SubstitutionResult struct {
	Markup     string
	Applied    int
	Resolved   []string
	Unresolved []string
}

// edit 对原始标记的一次区间替换
type edit struct {
	start int
	end   int
	text  string
}

// Apply 把定位到的占位符替换为变量值
//
// 值写入开引号所在的文本运行，沿用该运行的格式；占位符跨越的其余运行被清空并删除。
// 没有值的占位符保持原样并记录在 Unresolved 中。
func Apply(s string, spans []domain.MatchSpan, vars map[string]string) SubstitutionResult {
	ordered := append([]domain.MatchSpan(nil), spans...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Start > ordered[j].Start
	})

	var (
		edits      []edit
		applied    []domain.MatchSpan
		resolved   = make(map[string]bool)
		unresolved = make(map[string]bool)
	)
	for _, span := range ordered {
		value, ok := vars[span.Name]
		if !ok {
			unresolved[span.Name] = true
			continue
		}
		resolved[span.Name] = true
		applied = append(applied, span)
		edits = append(edits, replaceSpan(s, span, value))
	}

	seen := make(map[int]bool)
	for _, span := range applied {
		pos, ok := openingTextTag(s, span.Start)
		if !ok || seen[pos] || insideAny(pos, applied) {
			continue
		}
		seen[pos] = true
		edits = append(edits, edit{start: pos, end: pos, text: preserveAttr})
	}

	sort.Slice(edits, func(i, j int) bool {
		return edits[i].start > edits[j].start
	})
	out := s
	for _, e := range edits {
		out = out[:e.start] + e.text + out[e.end:]
	}

	return SubstitutionResult{
		Markup:     out,
		Applied:    len(applied),
		Resolved:   sortedKeys(resolved),
		Unresolved: sortedKeys(unresolved),
	}
}

// replaceSpan 构造单个占位符的替换
func replaceSpan(s string, span domain.MatchSpan, value string) edit {
	e := edit{start: span.Start, end: span.End}
	gap := markup.TagsOnly(s[span.Start:span.End])
	if gap == "" {
		e.text = EscapeValue(value)
		return e
	}

	gap = preserveTextTags(gap)
	if strings.HasPrefix(s[span.End:], runTail) {
		gap += runTail
		e.end += len(runTail)
	}
	gap = markup.RemoveEmptyWrappers(markup.RemoveEmptyRuns(gap))
	e.text = EscapeValue(value) + closeEmptyWrappers(s, &e, gap)
	return e
}

// closeEmptyWrappers 片段以行内容器的开始标签结尾、原文紧接着它的结束标签时，
// 说明容器里的运行已被清空，把开始和结束标签一起删除
func closeEmptyWrappers(s string, e *edit, gap string) string {
	for {
		tokens := markup.Tokenize(gap)
		if len(tokens) == 0 {
			return gap
		}
		last := tokens[len(tokens)-1]
		if last.Kind != markup.Tag || last.Closing || last.SelfClosing || !markup.IsInlineWrapper(last.Name) {
			return gap
		}
		closing := "</" + last.Name + ">"
		if !strings.HasPrefix(s[e.end:], closing) {
			return gap
		}
		gap = gap[:last.Start]
		e.end += len(closing)
	}
}

// EscapeValue 转义变量值，换行转换为 <w:br/>
func EscapeValue(value string) string {
	value = strings.ReplaceAll(value, "\r\n", "\n")
	lines := strings.Split(value, "\n")

	var buf bytes.Buffer
	for i, line := range lines {
		if i > 0 {
			buf.WriteString(lineBreak)
		}
		_ = xml.EscapeText(&buf, []byte(line))
	}
	return buf.String()
}

// openingTextTag 返回 pos 之前最近的 <w:t> 开始标签中插入属性的位置，已有 xml:space 时返回 false
func openingTextTag(s string, pos int) (int, bool) {
	limit := pos
	for {
		i := strings.LastIndex(s[:limit], "<w:t")
		if i < 0 {
			return 0, false
		}
		rest := s[i+len("<w:t"):]
		if strings.HasPrefix(rest, ">") || strings.HasPrefix(rest, " ") {
			end := strings.IndexByte(rest, '>')
			if end < 0 || strings.Contains(rest[:end], "xml:space") {
				return 0, false
			}
			return i + len("<w:t"), true
		}
		limit = i
	}
}

// preserveTextTags 给片段中的 <w:t> 标签补上 xml:space="preserve"
func preserveTextTags(gap string) string {
	tokens := markup.Tokenize(gap)
	var b strings.Builder
	last := 0
	for _, tok := range tokens {
		if !tok.IsOpen("w:t") || strings.Contains(gap[tok.Start:tok.End], "xml:space") {
			continue
		}
		insert := tok.Start + len("<w:t")
		b.WriteString(gap[last:insert])
		b.WriteString(preserveAttr)
		last = insert
	}
	if last == 0 {
		return gap
	}
	b.WriteString(gap[last:])
	return b.String()
}

func insideAny(pos int, spans []domain.MatchSpan) bool {
	for _, span := range spans {
		if pos >= span.Start && pos < span.End {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
