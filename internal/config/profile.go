package config

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/allanpk716/creditor_letters/internal/matcher"
	"github.com/allanpk716/creditor_letters/internal/processor"
	"github.com/allanpk716/creditor_letters/internal/repair"
	"github.com/allanpk716/creditor_letters/internal/resolver"
)

// DefaultProfileName 内置的模板配置
const DefaultProfileName = "nullplan"

// Binding 模板变量到数据字段的绑定
//
// 变量名区分大小写且可能含点号，所以用列表而不是以变量名为键的映射。
type Binding struct {
	Token    string `mapstructure:"token" yaml:"token"`
	Field    string `mapstructure:"field" yaml:"field"`
	Fallback string `mapstructure:"fallback" yaml:"fallback,omitempty"`
	// Optional 模板中没有该变量时不报告为找不到
	Optional bool `mapstructure:"optional" yaml:"optional,omitempty"`
}

// Profile 一个模板的全部配置：变量绑定、已知排版缺陷和计算参数
type Profile struct {
	Name               string              `mapstructure:"-" yaml:"-"`
	Template           string              `mapstructure:"template" yaml:"template"`
	FilePrefix         string              `mapstructure:"file_prefix" yaml:"file_prefix"`
	Parts              []string            `mapstructure:"parts" yaml:"parts"`
	Delimiters         []matcher.Delimiter `mapstructure:"delimiters" yaml:"delimiters"`
	Bindings           []Binding           `mapstructure:"bindings" yaml:"bindings"`
	Families           []resolver.Family   `mapstructure:"families" yaml:"families"`
	Hyphenation        []repair.Fix        `mapstructure:"hyphenation" yaml:"hyphenation"`
	Salutation         string              `mapstructure:"salutation" yaml:"salutation"`
	SpacingThreshold   int                 `mapstructure:"spacing_threshold" yaml:"spacing_threshold"`
	Exemptions         resolver.Exemptions `mapstructure:"exemptions" yaml:"exemptions"`
	PlanDurationMonths int                 `mapstructure:"plan_duration_months" yaml:"plan_duration_months"`
	DeadlineDays       int                 `mapstructure:"deadline_days" yaml:"deadline_days"`
	PlanStartMonths    int                 `mapstructure:"plan_start_months" yaml:"plan_start_months"`
	StampProperties    bool                `mapstructure:"stamp_properties" yaml:"stamp_properties"`
	Table              TableConfig         `mapstructure:"table" yaml:"table"`
}

// TableConfig 债权人表格；模板行按债权人克隆
type TableConfig struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
	Marker  string   `mapstructure:"marker" yaml:"marker"`
	Columns []string `mapstructure:"columns" yaml:"columns"`
}

// DefaultProfile 内置的 Nullplan 信函配置
func DefaultProfile() Profile {
	p := Profile{Name: DefaultProfileName}
	p.applyDefaults()
	return p
}

// DefaultBindings 默认变量绑定，按变量名排序
func DefaultBindings() []Binding {
	defaults := resolver.DefaultBindings()
	optional := make(map[string]bool)
	for _, token := range resolver.DefaultOptional() {
		optional[token] = true
	}
	bindings := make([]Binding, 0, len(defaults))
	for token, field := range defaults {
		bindings = append(bindings, Binding{Token: token, Field: field, Optional: optional[token]})
	}
	sortBindings(bindings)
	return bindings
}

func sortBindings(bindings []Binding) {
	sort.Slice(bindings, func(i, j int) bool {
		return bindings[i].Token < bindings[j].Token
	})
}

func (p *Profile) applyDefaults() {
	if p.Template == "" {
		p.Template = "Nullplan_Text_Template.docx"
	}
	if p.FilePrefix == "" {
		p.FilePrefix = "Nullplan"
	}
	if len(p.Parts) == 0 {
		p.Parts = processor.DefaultParts()
	}
	if len(p.Delimiters) == 0 {
		p.Delimiters = matcher.DefaultDelimiters()
	}
	if len(p.Bindings) == 0 {
		p.Bindings = DefaultBindings()
	}
	if len(p.Families) == 0 {
		p.Families = resolver.DefaultFamilies()
	}
	if p.Hyphenation == nil {
		p.Hyphenation = repair.DefaultHyphenation()
	}
	if p.Salutation == "" {
		p.Salutation = repair.DefaultSalutation
	}
	if p.SpacingThreshold == 0 {
		p.SpacingThreshold = repair.DefaultSpacingThreshold
	}
	if p.Exemptions.Base == 0 && p.Exemptions.PerDependent == 0 {
		p.Exemptions = resolver.Exemptions{
			Base:         resolver.DefaultBaseExemption,
			PerDependent: resolver.DefaultPerDependentExemption,
		}
	}
	if p.PlanDurationMonths == 0 {
		p.PlanDurationMonths = resolver.DefaultPlanDurationMonths
	}
	if p.DeadlineDays == 0 {
		p.DeadlineDays = resolver.DefaultDeadlineDays
	}
	if p.PlanStartMonths == 0 {
		p.PlanStartMonths = resolver.DefaultPlanStartMonths
	}
	if p.Table.Marker == "" {
		p.Table.Marker = processor.DefaultTableMarker
	}
	if len(p.Table.Columns) == 0 {
		p.Table.Columns = resolver.DefaultTableColumns()
	}
}

// ResolverOptions 取值配置
func (p Profile) ResolverOptions() resolver.Options {
	opts := resolver.Options{
		Bindings:           make(map[string]string, len(p.Bindings)),
		Families:           p.Families,
		Exemptions:         p.Exemptions,
		PlanDurationMonths: p.PlanDurationMonths,
		DeadlineDays:       p.DeadlineDays,
		PlanStartMonths:    p.PlanStartMonths,
		Fallbacks:          make(map[string]string),
	}
	for _, b := range p.Bindings {
		opts.Bindings[b.Token] = b.Field
		if b.Fallback != "" {
			opts.Fallbacks[b.Token] = b.Fallback
		}
		if b.Optional {
			opts.Optional = append(opts.Optional, b.Token)
		}
	}
	return opts
}

// RepairOptions 排版修复配置
func (p Profile) RepairOptions() repair.Options {
	return repair.Options{
		Hyphenation:      p.Hyphenation,
		Salutation:       p.Salutation,
		SpacingThreshold: p.SpacingThreshold,
	}
}

// Validate 检查模板配置；未设置的字段视为使用默认值
func (p Profile) Validate() error {
	p.applyDefaults()

	if strings.ContainsAny(p.Template, `/\`) {
		return fmt.Errorf("模板文件名不能包含路径: %s", p.Template)
	}
	for _, part := range p.Parts {
		if _, err := path.Match(part, ""); err != nil {
			return fmt.Errorf("部件模式 %q 无效: %w", part, err)
		}
	}
	for i, d := range p.Delimiters {
		if d.Open == "" || d.Close == "" {
			return fmt.Errorf("第 %d 个引号配置不完整", i+1)
		}
	}

	seen := make(map[string]bool, len(p.Bindings))
	for i, b := range p.Bindings {
		token := matcher.NormalizeName(b.Token)
		if token == "" {
			return fmt.Errorf("第 %d 个绑定的变量名不能为空", i+1)
		}
		if b.Field == "" {
			return fmt.Errorf("变量 %s 没有绑定字段", b.Token)
		}
		if seen[token] {
			return fmt.Errorf("变量重复绑定: %s", b.Token)
		}
		seen[token] = true
	}

	if _, err := resolver.NewResolver(p.ResolverOptions()); err != nil {
		return err
	}
	if _, err := repair.New(p.RepairOptions(), nil); err != nil {
		return err
	}
	if p.SpacingThreshold < 0 {
		return fmt.Errorf("spacing_threshold 不能为负数")
	}
	if err := resolver.ValidateTableColumns(p.Table.Columns); err != nil {
		return err
	}
	return nil
}
