package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/allanpk716/creditor_letters/internal/domain"
)

func TestTableRows(t *testing.T) {
	creditors := []domain.Creditor{
		{Name: "Alpha Bank", ClaimAmount: 1500},
		{Name: "  ", ClaimAmount: 500},
	}

	tests := []struct {
		name    string
		columns []string
		total   float64
		want    [][]string
	}{
		{
			name:  "default columns",
			total: 2000,
			want: [][]string{
				{"1", "Alpha Bank", "1.500,00 €", "75,00 %"},
				{"2", "Gläubiger 2", "500,00 €", "25,00 %"},
			},
		},
		{
			name:    "custom order",
			columns: []string{ColumnName, ColumnQuota},
			total:   3000,
			want: [][]string{
				{"Alpha Bank", "50,00 %"},
				{"Gläubiger 2", "16,67 %"},
			},
		},
		{
			name:    "zero total",
			columns: []string{ColumnQuota},
			want:    [][]string{{"0,00 %"}, {"0,00 %"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TableRows(tt.columns, creditors, tt.total))
		})
	}
}

func TestValidateTableColumns(t *testing.T) {
	assert.NoError(t, ValidateTableColumns(DefaultTableColumns()))
	assert.Error(t, ValidateTableColumns([]string{"position", "iban"}))
}
