package repair

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/allanpk716/creditor_letters/internal/markup"
)

var (
	spacingTagPattern = regexp.MustCompile(`<w:spacing(?:\s[^>]*)?/>`)
	afterAttrPattern  = regexp.MustCompile(`\s+w:after(?:Lines)?="(-?\d+)"`)
	beforeAttrPattern = regexp.MustCompile(`(\s+w:before=")(-?\d+)(")`)
	// 含这些内容的空段落不能删除
	keepMarkers = []string{"<w:sectPr", "<w:drawing", "<w:pict", "<w:object", "<w:tbl", `w:type="page"`}
)

type spacingEdit struct {
	start int
	end   int
	text  string
}

// normalizeSpacing 修复称呼段落之后的多余间距，返回新标记和修改次数
func normalizeSpacing(s, salutation string, threshold int) (string, int) {
	salutation = markup.NormalizeSpace(salutation)
	if salutation == "" {
		return s, 0
	}

	paras := markup.Paragraphs(s)
	si := -1
	for i, p := range paras {
		if strings.Contains(markup.NormalizeSpace(p.Text), salutation) {
			si = i
			break
		}
	}
	if si < 0 {
		return s, 0
	}

	var edits []spacingEdit
	sal := paras[si]
	cleared := false
	if e, ok := clearAfter(s, sal); ok {
		edits = append(edits, e)
		cleared = true
	}

	next := si + 1
	for next < len(paras) && paras[next].Start < sal.End {
		next++ // 称呼段落内的嵌套段落
	}
	// 只有本轮清除了段后间距才删除空段落，重复执行不会继续删除空行
	if cleared && next < len(paras) && isRemovableEmpty(s, paras[next]) {
		edits = append(edits, spacingEdit{start: paras[next].Start, end: paras[next].End})
		next++
	}
	for ; next < len(paras); next++ {
		if strings.TrimSpace(paras[next].Text) == "" {
			continue
		}
		if e, ok := clearBefore(s, paras[next], threshold); ok {
			edits = append(edits, e)
		}
		break
	}

	sort.Slice(edits, func(i, j int) bool {
		return edits[i].start > edits[j].start
	})
	for _, e := range edits {
		s = s[:e.start] + e.text + s[e.end:]
	}
	return s, len(edits)
}

// spacingTag 段落属性中的 <w:spacing/> 标签位置
func spacingTag(s string, p markup.Paragraph) (int, int, bool) {
	body := s[p.OpenEnd:p.Close]
	if !strings.HasPrefix(body, "<w:pPr>") {
		return 0, 0, false
	}
	end := strings.Index(body, "</w:pPr>")
	if end < 0 {
		return 0, 0, false
	}
	loc := spacingTagPattern.FindStringIndex(body[:end])
	if loc == nil {
		return 0, 0, false
	}
	return p.OpenEnd + loc[0], p.OpenEnd + loc[1], true
}

// clearAfter 删除称呼段落的段后间距
func clearAfter(s string, p markup.Paragraph) (spacingEdit, bool) {
	start, end, ok := spacingTag(s, p)
	if !ok {
		return spacingEdit{}, false
	}
	tag := s[start:end]
	changed := false
	cleaned := afterAttrPattern.ReplaceAllStringFunc(tag, func(attr string) string {
		value := afterAttrPattern.FindStringSubmatch(attr)[1]
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			changed = true
			return ""
		}
		return attr
	})
	if !changed {
		return spacingEdit{}, false
	}
	if cleaned == "<w:spacing/>" {
		cleaned = ""
	}
	return spacingEdit{start: start, end: end, text: cleaned}, true
}

// clearBefore 正文段落的段前间距超过阈值时置零
func clearBefore(s string, p markup.Paragraph, threshold int) (spacingEdit, bool) {
	start, end, ok := spacingTag(s, p)
	if !ok {
		return spacingEdit{}, false
	}
	tag := s[start:end]
	m := beforeAttrPattern.FindStringSubmatchIndex(tag)
	if m == nil {
		return spacingEdit{}, false
	}
	n, err := strconv.Atoi(tag[m[4]:m[5]])
	if err != nil || n <= threshold {
		return spacingEdit{}, false
	}
	cleaned := tag[:m[4]] + "0" + tag[m[5]:]
	return spacingEdit{start: start, end: end, text: cleaned}, true
}

func isRemovableEmpty(s string, p markup.Paragraph) bool {
	if strings.TrimSpace(p.Text) != "" {
		return false
	}
	body := s[p.Start:p.End]
	for _, marker := range keepMarkers {
		if strings.Contains(body, marker) {
			return false
		}
	}
	return true
}
