package processor

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/allanpk716/creditor_letters/internal/domain"
	"github.com/allanpk716/creditor_letters/internal/markup"
	"github.com/allanpk716/creditor_letters/pkg/docx"
)

// DefaultTableMarker 模板行首个单元格的文本
const DefaultTableMarker = "1"

// cellRange 单元格 <w:tc>...</w:tc> 的位置
type cellRange struct {
	start int
	end   int
}

// tableRow 表格行的位置；cells 只包含直接属于该行的单元格
type tableRow struct {
	table int // 所在 <w:tbl> 的起始偏移
	start int
	end   int
	cells []cellRange
}

// tableRows 按文档顺序返回所有表格行，包括嵌套表格中的行
func tableRows(s string) []tableRow {
	type element struct {
		name  string
		start int
		row   *tableRow
	}

	var (
		stack []*element
		rows  []tableRow
	)
	for _, tok := range markup.Tokenize(s) {
		if tok.Kind != markup.Tag || tok.SelfClosing {
			continue
		}
		switch tok.Name {
		case "w:tbl", "w:tr", "w:tc":
		default:
			continue
		}

		if !tok.Closing {
			el := &element{name: tok.Name, start: tok.Start}
			if tok.Name == "w:tr" {
				el.row = &tableRow{table: -1, start: tok.Start}
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i].name == "w:tbl" {
						el.row.table = stack[i].start
						break
					}
				}
			}
			stack = append(stack, el)
			continue
		}

		if len(stack) == 0 || stack[len(stack)-1].name != tok.Name {
			continue
		}
		el := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch tok.Name {
		case "w:tc":
			if n := len(stack); n > 0 && stack[n-1].name == "w:tr" {
				parent := stack[n-1].row
				parent.cells = append(parent.cells, cellRange{start: el.start, end: tok.End})
			}
		case "w:tr":
			el.row.end = tok.End
			rows = append(rows, *el.row)
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].start < rows[j].start
	})
	return rows
}

// cellText 单元格的可见文本，段落之间以空格分隔
func cellText(s string, c cellRange) string {
	var parts []string
	for _, p := range markup.Paragraphs(s[c.start:c.end]) {
		parts = append(parts, p.Text)
	}
	return markup.NormalizeSpace(strings.Join(parts, " "))
}

// FillTable 按 rows 填充债权人表格
//
// 模板行是首个单元格文本等于 marker 的第一行。模板行按 rows 克隆，每个值写入对应列的单元格，
// 多出的列保持原样。marker 为数字时，紧随模板行、首列为后续序号的占位行一并删除。
// 找不到模板行时返回 false，标记不变。
func FillTable(s, marker string, rows [][]string) (string, int, bool) {
	marker = markup.NormalizeSpace(marker)
	if marker == "" {
		marker = DefaultTableMarker
	}

	all := tableRows(s)
	ti := -1
	for i, r := range all {
		if len(r.cells) > 0 && cellText(s, r.cells[0]) == marker {
			ti = i
			break
		}
	}
	if ti < 0 {
		return s, 0, false
	}
	if len(rows) == 0 {
		return s, 0, true
	}

	tmpl := all[ti]
	end := tmpl.end
	if n, err := strconv.Atoi(marker); err == nil {
		next := n + 1
		for _, r := range all[ti+1:] {
			if r.start < end {
				continue // 嵌套表格中的行
			}
			if r.table != tmpl.table || strings.TrimSpace(s[end:r.start]) != "" {
				break
			}
			if len(r.cells) == 0 || cellText(s, r.cells[0]) != strconv.Itoa(next) {
				break
			}
			end = r.end
			next++
		}
	}

	var b strings.Builder
	b.WriteString(s[:tmpl.start])
	for _, values := range rows {
		b.WriteString(fillRow(s, tmpl, values))
	}
	b.WriteString(s[end:])
	return b.String(), len(rows), true
}

// fillRow 克隆模板行并写入一行的值
func fillRow(s string, tmpl tableRow, values []string) string {
	var b strings.Builder
	last := tmpl.start
	for i, c := range tmpl.cells {
		b.WriteString(s[last:c.start])
		cell := s[c.start:c.end]
		if i < len(values) {
			cell = setCellText(cell, values[i])
		}
		b.WriteString(cell)
		last = c.end
	}
	b.WriteString(s[last:tmpl.end])
	return b.String()
}

// setCellText 把值写入单元格的第一个 <w:t>，其余 <w:t> 清空；单元格没有文本时新建运行
func setCellText(cell, value string) string {
	escaped := EscapeValue(value)
	tokens := markup.Tokenize(cell)

	var (
		b      strings.Builder
		last   int
		filled bool
	)
	for i := 0; i < len(tokens); i++ {
		open := tokens[i]
		if !open.IsOpen("w:t") {
			continue
		}
		j := i + 1
		for j < len(tokens) && !tokens[j].IsClose("w:t") {
			j++
		}
		if j == len(tokens) {
			break
		}
		b.WriteString(cell[last:open.Start])
		if !filled {
			b.WriteString(preserveTextTags(cell[open.Start:open.End]))
			b.WriteString(escaped)
			filled = true
		} else {
			b.WriteString(cell[open.Start:open.End])
		}
		last = tokens[j].Start
		i = j
	}
	if filled {
		b.WriteString(cell[last:])
		return b.String()
	}

	run := `<w:r><w:t xml:space="preserve">` + escaped + `</w:t></w:r>`
	for _, tok := range tokens {
		switch {
		case tok.IsClose("w:p"):
			return cell[:tok.Start] + run + cell[tok.Start:]
		case tok.Kind == markup.Tag && tok.SelfClosing && tok.Name == "w:p":
			return cell[:tok.Start] + "<w:p>" + run + "</w:p>" + cell[tok.End:]
		}
	}
	if i := strings.LastIndex(cell, "</w:tc>"); i >= 0 {
		return cell[:i] + "<w:p>" + run + "</w:p>" + cell[i:]
	}
	return cell
}

// FillTable 在第一个含模板行的部件中填充债权人表格，返回写入的行数；没有模板行时返回 0
func (dp *DocumentProcessor) FillTable(pkg *docx.Package, marker string, rows [][]string) (int, error) {
	parts, err := dp.selectParts(pkg)
	if err != nil {
		return 0, err
	}
	for _, name := range parts {
		original, err := pkg.Part(name)
		if err != nil {
			return 0, domain.NewError(domain.ErrCodeCorruptArchive, "读取部件失败", err)
		}
		text, n, ok := FillTable(original, marker, rows)
		if !ok {
			continue
		}
		if err := docx.ValidateMarkup(text); err != nil {
			return 0, domain.NewError(domain.ErrCodeMalformedMarkup, fmt.Sprintf("部件 %s 填充表格后格式错误", name), err)
		}
		if text != original {
			pkg.SetPart(name, text)
		}
		dp.logger.Debug("债权人表格已填充", map[string]interface{}{
			"part": name,
			"rows": n,
		})
		return n, nil
	}
	dp.logger.Debug("模板中没有债权人表格", map[string]interface{}{"marker": marker})
	return 0, nil
}
