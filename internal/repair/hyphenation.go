package repair

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/allanpk716/creditor_letters/internal/markup"
)

// Fix 一条断字修复规则：Broken 中的连字符表示断字位置
type Fix struct {
	Broken string `mapstructure:"broken" yaml:"broken"`
	Fixed  string `mapstructure:"fixed" yaml:"fixed"`
}

// DefaultHyphenation 信函模板中已知的错误断字
func DefaultHyphenation() []Fix {
	return []Fix{
		{Broken: "Eini-gungsversuchs", Fixed: "Einigungsversuchs"},
		{Broken: "die-sem", Fixed: "diesem"},
		{Broken: "Da-ten", Fixed: "Daten"},
		{Broken: "gebe-ten", Fixed: "gebeten"},
		{Broken: "Ange-le-genheit", Fixed: "Angelegenheit"},
		{Broken: "Her-ausrechnung", Fixed: "Herausrechnung"},
		{Broken: "Vollstreckungsmaß-nahmen", Fixed: "Vollstreckungsmaßnahmen"},
		{Broken: "Verbraucherinsolvenz-verfahrens", Fixed: "Verbraucherinsolvenzverfahrens"},
		{Broken: "Schuldnerin/Der", Fixed: "Schuldnerin/den"},
		{Broken: "Schuldner/in", Fixed: "Schuldner/die Schuldnerin"},
	}
}

const (
	// 断字点两侧允许的空白和标签
	gapPattern = `(?:\s|&nbsp;|&#160;|<[^>]*>)*`
	// 连字符、软连字符或 Word 的连字符元素
	hyphenPattern = `(?:-|\x{00AD}|&#173;|<w:softHyphen/>|<w:noBreakHyphen/>)`
)

type compiledFix struct {
	Fix
	pattern *regexp.Regexp
}

func compileFix(fix Fix) (compiledFix, error) {
	if strings.TrimSpace(fix.Broken) == "" {
		return compiledFix{}, fmt.Errorf("断字规则不能为空")
	}
	parts := strings.FieldsFunc(fix.Broken, func(r rune) bool {
		return r == '-' || unicode.IsSpace(r)
	})
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = regexp.QuoteMeta(escapeText(part))
	}
	expr := `(?i)` + strings.Join(quoted, gapPattern+hyphenPattern+gapPattern)

	pattern, err := regexp.Compile(expr)
	if err != nil {
		return compiledFix{}, fmt.Errorf("编译断字规则 %q 失败: %w", fix.Broken, err)
	}
	return compiledFix{Fix: fix, pattern: pattern}, nil
}

// fixHyphenation 应用全部断字规则，返回新标记和修复次数
func fixHyphenation(s string, fixes []compiledFix) (string, int) {
	total := 0
	for _, fix := range fixes {
		var n int
		s, n = applyFix(s, fix)
		total += n
	}
	return s, total
}

func applyFix(s string, fix compiledFix) (string, int) {
	locs := fix.pattern.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return s, 0
	}

	var b strings.Builder
	last, count := 0, 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		match := s[start:end]
		if crossesParagraph(match) || !inText(s, start) {
			continue
		}

		gap := markup.TagsOnly(match)
		if gap != "" && strings.HasPrefix(s[end:], "</w:t></w:r>") {
			gap += "</w:t></w:r>"
			end += len("</w:t></w:r>")
		}

		b.WriteString(s[last:start])
		b.WriteString(escapeText(matchCase(markup.DecodeEntities(markup.StripTags(match)), fix.Fixed)))
		b.WriteString(markup.RemoveEmptyRuns(gap))
		last = end
		count++
	}
	if count == 0 {
		return s, 0
	}
	b.WriteString(s[last:])
	return b.String(), count
}

// crossesParagraph 匹配不得跨越段落
func crossesParagraph(match string) bool {
	for _, tok := range markup.Tokenize(match) {
		if tok.IsParagraphBoundary() {
			return true
		}
	}
	return false
}

// inText 判断偏移是否位于文本而非标签内部
func inText(s string, pos int) bool {
	open := strings.LastIndexByte(s[:pos], '<')
	return open < 0 || strings.IndexByte(s[open:pos], '>') >= 0
}

// matchCase 原文首字母大写时修复结果也大写
func matchCase(original, fixed string) string {
	first, _ := utf8.DecodeRuneInString(original)
	if !unicode.IsUpper(first) {
		return fixed
	}
	r, size := utf8.DecodeRuneInString(fixed)
	return string(unicode.ToUpper(r)) + fixed[size:]
}

func escapeText(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
