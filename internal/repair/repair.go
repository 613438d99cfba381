// Package repair 替换完成后的排版修复：错误断字和称呼段落的间距
package repair

import (
	"fmt"

	"github.com/allanpk716/creditor_letters/internal/logger"
)

// DefaultSalutation 默认称呼
const DefaultSalutation = "Sehr geehrte Damen und Herren"

// DefaultSpacingThreshold 段前间距阈值（twips）
const DefaultSpacingThreshold = 100

// Options 修复配置，通常来自模板配置
type Options struct {
	Hyphenation      []Fix
	Salutation       string
	SpacingThreshold int
}

// Report 修复统计
type Report struct {
	Hyphenation int
	Spacing     int
}

// Total 修复总数
func (r Report) Total() int {
	return r.Hyphenation + r.Spacing
}

// Repairer 排版修复器，创建后只读，可并发使用
type Repairer struct {
	fixes      []compiledFix
	salutation string
	threshold  int
	logger     logger.Logger
}

// New 创建修复器
func New(opts Options, log logger.Logger) (*Repairer, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	r := &Repairer{
		salutation: opts.Salutation,
		threshold:  opts.SpacingThreshold,
		logger:     log,
	}
	for _, fix := range opts.Hyphenation {
		compiled, err := compileFix(fix)
		if err != nil {
			return nil, err
		}
		r.fixes = append(r.fixes, compiled)
	}
	return r, nil
}

// Repair 执行修复；任何一步出错都保留该步之前的结果
func (r *Repairer) Repair(s string) (string, Report) {
	var report Report
	s, report.Hyphenation = r.safely("hyphenation", s, func(in string) (string, int) {
		return fixHyphenation(in, r.fixes)
	})
	s, report.Spacing = r.safely("spacing", s, func(in string) (string, int) {
		return normalizeSpacing(in, r.salutation, r.threshold)
	})
	return s, report
}

func (r *Repairer) safely(step, in string, fn func(string) (string, int)) (out string, n int) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("排版修复失败，已跳过", map[string]interface{}{
				"step":  step,
				"panic": fmt.Sprint(rec),
			})
			out, n = in, 0
		}
	}()
	return fn(in)
}
