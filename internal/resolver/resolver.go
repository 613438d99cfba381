// Package resolver 把模板变量名映射为单个收件人的显示值
package resolver

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/allanpk716/creditor_letters/internal/domain"
)

// 分类字段的数据来源
const (
	SourceMaritalStatus    = "client.marital_status"
	SourceEmploymentStatus = "client.employment_status"
	SourceHasChildren      = "client.has_children"
)

// 参数化字段前缀
const (
	categoryPrefix = "category."
	optionPrefix   = "option."
	textPrefix     = "text:"
)

// 默认的期限
const (
	DefaultDeadlineDays    = 14
	DefaultPlanStartMonths = 3
)

// Options 取值配置，通常来自模板配置
type Options struct {
	Bindings           map[string]string // 变量名 -> 字段 ID
	Families           []Family
	Exemptions         Exemptions
	PlanDurationMonths int
	DeadlineDays       int
	PlanStartMonths    int
	Fallbacks          map[string]string // 变量名 -> 没有数据时的替代文本
	Optional           []string          // 模板中可以不出现的变量名
}

// DefaultOptions 默认取值配置
func DefaultOptions() Options {
	return Options{
		Bindings: DefaultBindings(),
		Families: DefaultFamilies(),
		Exemptions: Exemptions{
			Base:         DefaultBaseExemption,
			PerDependent: DefaultPerDependentExemption,
		},
		PlanDurationMonths: DefaultPlanDurationMonths,
		DeadlineDays:       DefaultDeadlineDays,
		PlanStartMonths:    DefaultPlanStartMonths,
		Optional:           DefaultOptional(),
	}
}

// DefaultRequiredFields 默认模板必须包含的字段，其余绑定只是可选的别名目录
var DefaultRequiredFields = []string{"client.name", "creditor.claim_amount"}

// DefaultOptional 默认绑定中可选的变量名
func DefaultOptional() []string {
	required := make(map[string]bool, len(DefaultRequiredFields))
	for _, f := range DefaultRequiredFields {
		required[f] = true
	}
	var names []string
	for token, field := range DefaultBindings() {
		if !required[field] {
			names = append(names, token)
		}
	}
	sort.Strings(names)
	return names
}

// DefaultBindings 信函模板中使用的变量名
func DefaultBindings() map[string]string {
	return map[string]string{
		"Name des Mandanten":         "client.name",
		"Mandant Name":               "client.name",
		"Name Mandant":               "client.name",
		"Aktenzeichen des Mandanten": "client.reference",
		"Aktenzeichen":               "client.reference",
		"Adresse des Mandanten":      "client.address",
		"Geburtstag":                 "client.birth_date",
		"Einkommen":                  "client.income",
		"Familienstand":              "category.marital_status",
		"Anzahl Kinder":              "client.children",

		"Name des Creditors":                             "creditor.name",
		"Name des Gläubigers":                            "creditor.name",
		"Gläubiger Name":                                 "creditor.name",
		"Adresse des Creditors":                          "creditor.address",
		"Adresse des Gläubigers":                         "creditor.address",
		"Aktenzeichen der Forderung":                     "creditor.reference",
		"Forderungssumme":                                "creditor.claim_amount",
		"Quote des Gläubigers":                           "creditor.quota",
		"Tilgungsqoute":                                  "creditor.quota_value",
		"Forderungsnummer in der Forderungsliste":        "creditor.position",
		"Nummer im Schuldenbereinigungsplan":             "creditor.position",
		"Summe für die Tilgung des Gläubigers monatlich": "creditor.monthly_share",
		"Summe für die Tilgung des Gläubigers insgesamt": "creditor.total_share",

		"Gesamtsumme Verschuldung":      "settlement.total_debt",
		"Gessamtsumme Verschuldung":     "settlement.total_debt",
		"Schuldsumme Insgesamt":         "settlement.total_debt",
		"Gläubigeranzahl":               "settlement.creditor_count",
		"Gläuibgeranzahl":               "settlement.creditor_count",
		"pfändbares Einkommen":          "settlement.monthly_payment",
		"monatlicher pfändbarer Betrag": "settlement.monthly_payment",
		"Laufzeit":                      "settlement.plan_duration",
		"Gesamtbetrag der Tilgung":      "settlement.total_payment",

		"Heutiges Datum":     "date.today",
		"Datum in 14 Tagen":  "date.deadline",
		"Datum in 3 Monaten": "date.in_months",
		"Beginn der Zahlung": "date.plan_start",
		"Startdatum":         "date.plan_start",
		"ledig":              "option.marital_status.ledig",
		"verheiratet":        "option.marital_status.verheiratet",
		"geschieden":         "option.marital_status.geschieden",
		"verwitwet":          "option.marital_status.verwitwet",
		"getrennt lebend":    "option.marital_status.getrennt_lebend",
		"Kinder ja":          "option.children.ja",
		"Kinder nein":        "option.children.nein",
	}
}

type fieldFunc func(r *Resolver, rc *domain.RecipientContext) (string, bool)

var fields = map[string]fieldFunc{
	"client.name":       clientName,
	"client.first_name": func(_ *Resolver, rc *domain.RecipientContext) (string, bool) { return nonEmpty(rc.Client.FirstName) },
	"client.last_name":  func(_ *Resolver, rc *domain.RecipientContext) (string, bool) { return nonEmpty(rc.Client.LastName) },
	"client.reference":  func(_ *Resolver, rc *domain.RecipientContext) (string, bool) { return nonEmpty(rc.Client.Reference) },
	"client.address":    clientAddress,
	"client.birth_date": clientBirthDate,
	"client.income":     clientIncome,
	"client.children": func(_ *Resolver, rc *domain.RecipientContext) (string, bool) {
		return strconv.Itoa(rc.Client.NumberOfChildren), true
	},
	"client.employment_status": func(r *Resolver, rc *domain.RecipientContext) (string, bool) {
		return r.categoryLabel("employment_status", rc)
	},

	"creditor.name":           creditorName,
	"creditor.address":        creditorAddress,
	"creditor.reference":      creditorReference,
	"creditor.claim_amount":   creditorClaim,
	"creditor.position":       creditorPosition,
	"creditor.representative": creditorRepresentative,
	"creditor.quota":          creditorQuota,
	"creditor.quota_value":    creditorQuotaValue,
	"creditor.monthly_share":  creditorMonthlyShare,
	"creditor.total_share":    creditorTotalShare,

	"settlement.total_debt": func(_ *Resolver, rc *domain.RecipientContext) (string, bool) {
		return FormatCurrency(rc.Settlement.TotalDebt), true
	},
	"settlement.creditor_count": func(_ *Resolver, rc *domain.RecipientContext) (string, bool) {
		return strconv.Itoa(rc.Settlement.CreditorCount), true
	},
	"settlement.monthly_payment": settlementMonthly,
	"settlement.plan_duration": func(r *Resolver, rc *domain.RecipientContext) (string, bool) {
		return strconv.Itoa(r.duration(rc)), true
	},
	"settlement.total_payment": settlementTotal,

	"date.today": func(_ *Resolver, rc *domain.RecipientContext) (string, bool) { return FormatDate(now(rc)), true },
	"date.deadline": func(r *Resolver, rc *domain.RecipientContext) (string, bool) {
		return FormatDate(now(rc).AddDate(0, 0, r.deadlineDays)), true
	},
	"date.in_months": func(r *Resolver, rc *domain.RecipientContext) (string, bool) {
		return FormatDate(now(rc).AddDate(0, r.planStartMonths, 0)), true
	},
	"date.plan_start": func(r *Resolver, rc *domain.RecipientContext) (string, bool) {
		return FormatDate(AddMonthsFirstOfMonth(now(rc), r.planStartMonths)), true
	},
}

// Resolver 根据绑定表取值，创建后只读，可并发使用
type Resolver struct {
	bindings        map[string]string
	families        map[string]Family
	fallbacks       map[string]string
	optional        map[string]bool
	exemptions      Exemptions
	planDuration    int
	deadlineDays    int
	planStartMonths int
}

var _ domain.ValueResolver = (*Resolver)(nil)

// NewResolver 创建取值器，绑定到未知字段或分类时返回错误
func NewResolver(opts Options) (*Resolver, error) {
	r := &Resolver{
		bindings:        make(map[string]string, len(opts.Bindings)),
		families:        make(map[string]Family, len(opts.Families)),
		fallbacks:       make(map[string]string, len(opts.Fallbacks)),
		optional:        make(map[string]bool, len(opts.Optional)),
		exemptions:      opts.Exemptions,
		planDuration:    opts.PlanDurationMonths,
		deadlineDays:    opts.DeadlineDays,
		planStartMonths: opts.PlanStartMonths,
	}
	if r.planDuration <= 0 {
		r.planDuration = DefaultPlanDurationMonths
	}
	if r.deadlineDays <= 0 {
		r.deadlineDays = DefaultDeadlineDays
	}
	if r.planStartMonths <= 0 {
		r.planStartMonths = DefaultPlanStartMonths
	}

	for _, f := range opts.Families {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if _, ok := r.families[f.Name]; ok {
			return nil, fmt.Errorf("分类重复: %s", f.Name)
		}
		r.families[f.Name] = f
	}
	for name, field := range opts.Bindings {
		key := normalizeName(name)
		if key == "" {
			return nil, fmt.Errorf("变量名不能为空 (字段 %s)", field)
		}
		if err := r.checkField(field); err != nil {
			return nil, fmt.Errorf("变量 %q: %w", name, err)
		}
		r.bindings[key] = field
	}
	for name, value := range opts.Fallbacks {
		r.fallbacks[normalizeName(name)] = value
	}
	for _, name := range opts.Optional {
		r.optional[normalizeName(name)] = true
	}
	return r, nil
}

func (r *Resolver) checkField(field string) error {
	switch {
	case strings.HasPrefix(field, textPrefix):
		return nil
	case strings.HasPrefix(field, categoryPrefix):
		if _, ok := r.families[strings.TrimPrefix(field, categoryPrefix)]; !ok {
			return fmt.Errorf("未知分类: %s", field)
		}
		return nil
	case strings.HasPrefix(field, optionPrefix):
		family, option, ok := strings.Cut(strings.TrimPrefix(field, optionPrefix), ".")
		f, exists := r.families[family]
		if !ok || !exists || !f.HasOption(option) {
			return fmt.Errorf("未知分类选项: %s", field)
		}
		return nil
	}
	if _, ok := fields[field]; !ok {
		return fmt.Errorf("未知字段: %s", field)
	}
	return nil
}

// Names 全部绑定的变量名（已规范化、排序）
func (r *Resolver) Names() []string {
	names := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unlocatable 从模板中找不到的变量名里挑出需要关注的
//
// 绑定到同一字段的变量名互为别名，只要有一个出现在模板中整组即视为已定位；
// 全部为可选变量的组不报告。每组只报告最长的变量名，未绑定的变量名原样保留。
func (r *Resolver) Unlocatable(unlocated []string) []string {
	missing := make(map[string]bool, len(unlocated))
	for _, name := range unlocated {
		missing[normalizeName(name)] = true
	}

	groups := make(map[string][]string)
	for name, field := range r.bindings {
		groups[field] = append(groups[field], name)
	}

	var result []string
	for _, names := range groups {
		report := ""
		located := false
		for _, name := range names {
			if !missing[name] {
				located = true
				break
			}
			if r.optional[name] {
				continue
			}
			if len(name) > len(report) || (len(name) == len(report) && name < report) {
				report = name
			}
		}
		if !located && report != "" {
			result = append(result, report)
		}
	}
	for name := range missing {
		if _, ok := r.bindings[name]; !ok {
			result = append(result, name)
		}
	}
	sort.Strings(result)
	return result
}

// Resolve 返回变量的显示值；未绑定或没有数据时返回 false
func (r *Resolver) Resolve(name string, rc *domain.RecipientContext) (string, bool) {
	if rc == nil {
		return "", false
	}
	key := normalizeName(name)
	field, ok := r.bindings[key]
	if !ok {
		return "", false
	}
	if value, ok := r.resolveField(field, rc); ok {
		return value, true
	}
	if value, ok := r.fallbacks[key]; ok {
		return value, true
	}
	return "", false
}

// Values 为一个收件人解析全部绑定变量，没有数据的变量不出现在结果中
func (r *Resolver) Values(rc *domain.RecipientContext) map[string]string {
	values := make(map[string]string, len(r.bindings))
	for name := range r.bindings {
		if v, ok := r.Resolve(name, rc); ok {
			values[name] = v
		}
	}
	return values
}

func (r *Resolver) resolveField(field string, rc *domain.RecipientContext) (string, bool) {
	switch {
	case strings.HasPrefix(field, textPrefix):
		return strings.TrimPrefix(field, textPrefix), true
	case strings.HasPrefix(field, categoryPrefix):
		return r.categoryLabel(strings.TrimPrefix(field, categoryPrefix), rc)
	case strings.HasPrefix(field, optionPrefix):
		family, option, _ := strings.Cut(strings.TrimPrefix(field, optionPrefix), ".")
		f, ok := r.families[family]
		if !ok {
			return "", false
		}
		return f.Mark(sourceCode(f.Source, rc), option), true
	}
	fn, ok := fields[field]
	if !ok {
		return "", false
	}
	return fn(r, rc)
}

func (r *Resolver) categoryLabel(family string, rc *domain.RecipientContext) (string, bool) {
	f, ok := r.families[family]
	if !ok {
		return "", false
	}
	opt := f.Select(sourceCode(f.Source, rc))
	if opt.Label == "" {
		return opt.Code, opt.Code != ""
	}
	return opt.Label, true
}

func (r *Resolver) duration(rc *domain.RecipientContext) int {
	if rc.Settlement.PlanDurationMonths > 0 {
		return rc.Settlement.PlanDurationMonths
	}
	return r.planDuration
}

func (r *Resolver) monthly(rc *domain.RecipientContext) (float64, bool) {
	return MonthlyPayment(rc.Client, rc.Settlement, r.exemptions)
}

// sourceCode 分类字段的原始代码
func sourceCode(source string, rc *domain.RecipientContext) string {
	switch source {
	case SourceMaritalStatus:
		return rc.Client.MaritalStatus
	case SourceEmploymentStatus:
		return rc.Client.EmploymentStatus
	case SourceHasChildren:
		if rc.Client.NumberOfChildren > 0 {
			return "ja"
		}
		return "nein"
	}
	return ""
}

func clientName(_ *Resolver, rc *domain.RecipientContext) (string, bool) {
	if name := strings.TrimSpace(rc.Client.FullName); name != "" {
		return name, true
	}
	return nonEmpty(strings.TrimSpace(rc.Client.FirstName + " " + rc.Client.LastName))
}

func clientAddress(_ *Resolver, rc *domain.RecipientContext) (string, bool) {
	address := rc.Client.Address
	if strings.TrimSpace(address) == "" {
		address = ComposeAddress(rc.Client.Street, rc.Client.PostalCode, rc.Client.City)
	}
	return nonEmpty(FormatAddress(address))
}

func clientBirthDate(_ *Resolver, rc *domain.RecipientContext) (string, bool) {
	if t, ok := ParseDate(rc.Client.BirthDate); ok {
		return FormatDate(t), true
	}
	return nonEmpty(strings.TrimSpace(rc.Client.BirthDate))
}

func clientIncome(_ *Resolver, rc *domain.RecipientContext) (string, bool) {
	if rc.Client.MonthlyNetIncome == nil {
		return "", false
	}
	return FormatCurrency(*rc.Client.MonthlyNetIncome), true
}

func creditorName(_ *Resolver, rc *domain.RecipientContext) (string, bool) {
	if rc.Creditor == nil {
		return "", false
	}
	return nonEmpty(strings.TrimSpace(rc.Creditor.Name))
}

func creditorAddress(_ *Resolver, rc *domain.RecipientContext) (string, bool) {
	c := rc.Creditor
	if c == nil {
		return "", false
	}
	address := StripName(c.Address, c.Name)
	if address == "" {
		address = ComposeAddress(c.Street, c.PostalCode, c.City)
	}
	return nonEmpty(FormatAddress(address))
}

func creditorReference(_ *Resolver, rc *domain.RecipientContext) (string, bool) {
	if rc.Creditor == nil {
		return "", false
	}
	if ref := strings.TrimSpace(rc.Creditor.Reference); ref != "" {
		return ref, true
	}
	if ref := strings.TrimSpace(rc.Client.Reference); ref != "" && rc.Position > 0 {
		return fmt.Sprintf("%s-%d", ref, rc.Position), true
	}
	return "", false
}

func creditorClaim(_ *Resolver, rc *domain.RecipientContext) (string, bool) {
	if rc.Creditor == nil {
		return "", false
	}
	return FormatCurrency(rc.Creditor.ClaimAmount), true
}

func creditorPosition(_ *Resolver, rc *domain.RecipientContext) (string, bool) {
	if rc.Creditor == nil || rc.Position <= 0 {
		return "", false
	}
	return strconv.Itoa(rc.Position), true
}

func creditorRepresentative(_ *Resolver, rc *domain.RecipientContext) (string, bool) {
	if rc.Creditor == nil {
		return "", false
	}
	return nonEmpty(strings.TrimSpace(rc.Creditor.Representative))
}

func creditorQuota(_ *Resolver, rc *domain.RecipientContext) (string, bool) {
	if rc.Creditor == nil {
		return "", false
	}
	q, _ := Quota(rc.Creditor.ClaimAmount, rc.Settlement.TotalDebt)
	return FormatPercent(q), true
}

func creditorQuotaValue(_ *Resolver, rc *domain.RecipientContext) (string, bool) {
	if rc.Creditor == nil {
		return "", false
	}
	q, _ := Quota(rc.Creditor.ClaimAmount, rc.Settlement.TotalDebt)
	return FormatNumber(q), true
}

// monthlyShare 债权人每月分得的金额 = 月还款额 × 份额
func (r *Resolver) monthlyShare(rc *domain.RecipientContext) (float64, bool) {
	if rc.Creditor == nil {
		return 0, false
	}
	monthly, ok := r.monthly(rc)
	if !ok {
		return 0, false
	}
	q, _ := Quota(rc.Creditor.ClaimAmount, rc.Settlement.TotalDebt)
	return monthly * q / 100, true
}

func creditorMonthlyShare(r *Resolver, rc *domain.RecipientContext) (string, bool) {
	share, ok := r.monthlyShare(rc)
	if !ok {
		return "", false
	}
	return FormatCurrency(share), true
}

func creditorTotalShare(r *Resolver, rc *domain.RecipientContext) (string, bool) {
	share, ok := r.monthlyShare(rc)
	if !ok {
		return "", false
	}
	return FormatCurrency(share * float64(r.duration(rc))), true
}

func settlementMonthly(r *Resolver, rc *domain.RecipientContext) (string, bool) {
	monthly, ok := r.monthly(rc)
	if !ok {
		return "", false
	}
	return FormatCurrency(monthly), true
}

func settlementTotal(r *Resolver, rc *domain.RecipientContext) (string, bool) {
	monthly, ok := r.monthly(rc)
	if !ok {
		return "", false
	}
	return FormatCurrency(monthly * float64(r.duration(rc))), true
}

func now(rc *domain.RecipientContext) time.Time {
	if rc.Now.IsZero() {
		return time.Now()
	}
	return rc.Now
}

func nonEmpty(s string) (string, bool) {
	return s, s != ""
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
