package resolver

import (
	"fmt"
	"strings"
)

// 默认的选中 / 未选中标记
const (
	DefaultCheckedMark   = "☒"
	DefaultUncheckedMark = "☐"
)

// Option 分类中的一个选项
type Option struct {
	Code    string   `mapstructure:"code" yaml:"code"`
	Label   string   `mapstructure:"label" yaml:"label"`
	Aliases []string `mapstructure:"aliases" yaml:"aliases"`
}

// Family 互斥分类（如婚姻状况），任一时刻恰好一个选项被选中
type Family struct {
	Name      string   `mapstructure:"name" yaml:"name"`
	Source    string   `mapstructure:"source" yaml:"source"`
	Default   string   `mapstructure:"default" yaml:"default"`
	Checked   string   `mapstructure:"checked" yaml:"checked"`
	Unchecked string   `mapstructure:"unchecked" yaml:"unchecked"`
	Options   []Option `mapstructure:"options" yaml:"options"`
}

// Validate 检查默认选项存在且代码不重复
func (f Family) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("分类名称不能为空")
	}
	if len(f.Options) == 0 {
		return fmt.Errorf("分类 %s 没有选项", f.Name)
	}
	seen := make(map[string]bool)
	hasDefault := false
	for _, opt := range f.Options {
		key := normalizeCode(opt.Code)
		if key == "" {
			return fmt.Errorf("分类 %s 存在空的选项代码", f.Name)
		}
		if seen[key] {
			return fmt.Errorf("分类 %s 选项重复: %s", f.Name, opt.Code)
		}
		seen[key] = true
		if key == normalizeCode(f.Default) {
			hasDefault = true
		}
	}
	if !hasDefault {
		return fmt.Errorf("分类 %s 的默认选项 %q 不存在", f.Name, f.Default)
	}
	return nil
}

// Select 把输入代码映射到唯一的选项，未知代码返回默认选项
func (f Family) Select(code string) Option {
	key := normalizeCode(code)
	var fallback Option
	for _, opt := range f.Options {
		if normalizeCode(opt.Code) == key {
			return opt
		}
		for _, alias := range opt.Aliases {
			if normalizeCode(alias) == key {
				return opt
			}
		}
		if normalizeCode(opt.Code) == normalizeCode(f.Default) {
			fallback = opt
		}
	}
	return fallback
}

// Mark 指定选项的标记
func (f Family) Mark(code, option string) string {
	if normalizeCode(f.Select(code).Code) == normalizeCode(option) {
		return orDefault(f.Checked, DefaultCheckedMark)
	}
	return orDefault(f.Unchecked, DefaultUncheckedMark)
}

// HasOption 判断选项代码是否属于该分类
func (f Family) HasOption(option string) bool {
	for _, opt := range f.Options {
		if normalizeCode(opt.Code) == normalizeCode(option) {
			return true
		}
	}
	return false
}

// DefaultFamilies 婚姻状况、就业状况和是否有子女
func DefaultFamilies() []Family {
	return []Family{
		{
			Name:    "marital_status",
			Source:  SourceMaritalStatus,
			Default: "ledig",
			Options: []Option{
				{Code: "ledig", Label: "ledig", Aliases: []string{"single"}},
				{Code: "verheiratet", Label: "verheiratet", Aliases: []string{"married"}},
				{Code: "geschieden", Label: "geschieden", Aliases: []string{"divorced"}},
				{Code: "verwitwet", Label: "verwitwet", Aliases: []string{"widowed"}},
				{Code: "getrennt_lebend", Label: "getrennt lebend", Aliases: []string{"separated", "getrennt lebend"}},
			},
		},
		{
			Name:    "employment_status",
			Source:  SourceEmploymentStatus,
			Default: "unbekannt",
			Options: []Option{
				{Code: "angestellt", Label: "angestellt", Aliases: []string{"employed"}},
				{Code: "selbststaendig", Label: "selbstständig", Aliases: []string{"self_employed", "selbstständig"}},
				{Code: "arbeitslos", Label: "arbeitslos", Aliases: []string{"unemployed"}},
				{Code: "rentner", Label: "Rentner/in", Aliases: []string{"retired"}},
				{Code: "unbekannt", Label: "keine Angabe"},
			},
		},
		{
			Name:    "children",
			Source:  SourceHasChildren,
			Default: "nein",
			Options: []Option{
				{Code: "ja", Label: "ja"},
				{Code: "nein", Label: "nein"},
			},
		},
	}
}

func normalizeCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	return strings.Join(strings.FieldsFunc(code, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
