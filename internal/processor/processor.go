package processor

import (
	"context"
	"fmt"
	"path"

	"github.com/allanpk716/creditor_letters/internal/domain"
	"github.com/allanpk716/creditor_letters/internal/logger"
	"github.com/allanpk716/creditor_letters/internal/matcher"
	"github.com/allanpk716/creditor_letters/internal/repair"
	"github.com/allanpk716/creditor_letters/pkg/docx"
)

// DefaultParts 默认只处理正文
func DefaultParts() []string {
	return []string{docx.MainDocumentPart}
}

// DocumentProcessor 在文档工作副本上执行定位、替换和排版修复，可并发使用
type DocumentProcessor struct {
	locator  domain.TokenLocator
	repairer *repair.Repairer
	parts    []string
	logger   logger.Logger
}

// NewDocumentProcessor 创建文档处理器；parts 支持 path.Match 通配符，如 word/header*.xml
func NewDocumentProcessor(locator domain.TokenLocator, repairer *repair.Repairer, parts []string, log logger.Logger) *DocumentProcessor {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if locator == nil {
		locator = matcher.NewLocator(nil, log)
	}
	if len(parts) == 0 {
		parts = DefaultParts()
	}
	return &DocumentProcessor{
		locator:  locator,
		repairer: repairer,
		parts:    parts,
		logger:   log,
	}
}

// Process 替换 pkg 中的变量；pkg 必须是调用方独占的副本
//
// names 是模板配置中绑定的全部变量名，在任何部件中都找不到的记录为 Unlocatable。
func (dp *DocumentProcessor) Process(ctx context.Context, pkg *docx.Package, names []string, vars map[string]string) (domain.SubstitutionReport, error) {
	var (
		report     domain.SubstitutionReport
		located    []domain.MatchSpan
		resolved   = make(map[string]bool)
		unresolved = make(map[string]bool)
	)

	parts, err := dp.selectParts(pkg)
	if err != nil {
		return report, err
	}
	for _, name := range parts {
		if err := ctx.Err(); err != nil {
			return report, domain.NewError(domain.ErrCodeCancelled, "处理已取消", err)
		}

		original, err := pkg.Part(name)
		if err != nil {
			return report, domain.NewError(domain.ErrCodeCorruptArchive, "读取部件失败", err)
		}

		spans := dp.locator.Locate(original, names)
		located = append(located, spans...)

		res := Apply(original, spans, vars)
		for _, n := range res.Resolved {
			resolved[n] = true
		}
		for _, n := range res.Unresolved {
			unresolved[n] = true
		}

		text, repairs := dp.repair(name, res.Markup)
		if err := docx.ValidateMarkup(text); err != nil {
			return report, domain.NewError(domain.ErrCodeMalformedMarkup, fmt.Sprintf("部件 %s 替换后格式错误", name), err)
		}

		report.Applied += res.Applied
		report.Repairs += repairs
		if text != original {
			pkg.SetPart(name, text)
		}
		dp.logger.Debug("部件处理完成", map[string]interface{}{
			"part":       name,
			"spans":      len(spans),
			"applied":    res.Applied,
			"unresolved": len(res.Unresolved),
			"repairs":    repairs,
		})
	}

	report.Resolved = sortedKeys(resolved)
	report.Unresolved = sortedKeys(unresolved)
	report.Unlocatable = matcher.Unlocated(names, located)
	return report, nil
}

// repair 修复结果不是合法 XML 时退回到修复前的标记
func (dp *DocumentProcessor) repair(part, text string) (string, int) {
	if dp.repairer == nil {
		return text, 0
	}
	repaired, report := dp.repairer.Repair(text)
	if report.Total() == 0 {
		return text, 0
	}
	if err := docx.ValidateMarkup(repaired); err != nil {
		dp.logger.Warn("排版修复产生了无效标记，已丢弃", map[string]interface{}{
			"part":  part,
			"error": err.Error(),
		})
		return text, 0
	}
	return repaired, report.Total()
}

// selectParts 按配置顺序展开通配符，结果去重
func (dp *DocumentProcessor) selectParts(pkg *docx.Package) ([]string, error) {
	all := pkg.PartNames()
	seen := make(map[string]bool)
	var parts []string
	for _, pattern := range dp.parts {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("部件模式 %q 无效: %w", pattern, err)
		}
		for _, name := range all {
			if seen[name] {
				continue
			}
			if ok, _ := path.Match(pattern, name); ok {
				seen[name] = true
				parts = append(parts, name)
			}
		}
	}
	return parts, nil
}
