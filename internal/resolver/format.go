package resolver

import (
	"math"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DateLayout 德文日期格式 dd.mm.yyyy
const DateLayout = "02.01.2006"

var germanPrinter = message.NewPrinter(language.German)

// acceptedDateLayouts 输入日期允许的格式
var acceptedDateLayouts = []string{
	DateLayout,
	"2.1.2006",
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// FormatCurrency 德文金额格式，如 1.500,00
func FormatCurrency(v float64) string {
	return germanPrinter.Sprintf("%.2f", round2(v))
}

// FormatPercent 德文百分比，如 25,00%
func FormatPercent(v float64) string {
	return germanPrinter.Sprintf("%.2f", round2(v)) + "%"
}

// FormatNumber 不带百分号的两位小数
func FormatNumber(v float64) string {
	return germanPrinter.Sprintf("%.2f", round2(v))
}

// FormatDate 格式化为 dd.mm.yyyy
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate 解析常见的日期写法
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range acceptedDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AddMonthsFirstOfMonth 加若干个月后取当月一号
func AddMonthsFirstOfMonth(t time.Time, months int) time.Time {
	return time.Date(t.Year(), t.Month()+time.Month(months), 1, 0, 0, 0, 0, t.Location())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
