package resolver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/allanpk716/creditor_letters/internal/domain"
)

// 债权人表格的列
const (
	ColumnPosition = "position"
	ColumnName     = "name"
	ColumnClaim    = "claim"
	ColumnQuota    = "quota"
)

// DefaultTableColumns Nr. | Gläubiger | Forderung | Quote
func DefaultTableColumns() []string {
	return []string{ColumnPosition, ColumnName, ColumnClaim, ColumnQuota}
}

// ValidateTableColumns 检查列名
func ValidateTableColumns(columns []string) error {
	for _, c := range columns {
		switch c {
		case ColumnPosition, ColumnName, ColumnClaim, ColumnQuota:
		default:
			return fmt.Errorf("未知的表格列: %s", c)
		}
	}
	return nil
}

// TableRows 每个债权人一行，金额如 "1.500,00 €"，配额如 "25,00 %"
//
// total 为零时配额为 0,00 %。columns 为空时使用默认列。
func TableRows(columns []string, creditors []domain.Creditor, total float64) [][]string {
	if len(columns) == 0 {
		columns = DefaultTableColumns()
	}
	rows := make([][]string, 0, len(creditors))
	for i, c := range creditors {
		row := make([]string, len(columns))
		for j, col := range columns {
			switch col {
			case ColumnPosition:
				row[j] = strconv.Itoa(i + 1)
			case ColumnName:
				row[j] = strings.TrimSpace(c.Name)
				if row[j] == "" {
					row[j] = fmt.Sprintf("Gläubiger %d", i+1)
				}
			case ColumnClaim:
				row[j] = FormatCurrency(c.ClaimAmount) + " €"
			case ColumnQuota:
				q, _ := Quota(c.ClaimAmount, total)
				row[j] = FormatNumber(q) + " %"
			}
		}
		rows = append(rows, row)
	}
	return rows
}
