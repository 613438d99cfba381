package resolver

import (
	"math"

	"github.com/allanpk716/creditor_letters/internal/domain"
)

// 默认免扣押额度（欧元/月）
const (
	DefaultBaseExemption         = 1330.0
	DefaultPerDependentExemption = 300.0
	DefaultPlanDurationMonths    = 36
)

// Exemptions 可扣押收入的免扣额度
type Exemptions struct {
	Base         float64 `mapstructure:"base" yaml:"base"`
	PerDependent float64 `mapstructure:"per_dependent" yaml:"per_dependent"`
}

// Garnishable 可扣押的月收入：max(0, 净收入 - 基本免扣 - 每名受抚养人免扣)
func Garnishable(net float64, dependents int, ex Exemptions) float64 {
	if dependents < 0 {
		dependents = 0
	}
	return math.Max(0, net-ex.Base-ex.PerDependent*float64(dependents))
}

// MonthlyPayment 方案中的月还款额：显式给定的优先，否则按收入计算
func MonthlyPayment(client domain.Client, s domain.Settlement, ex Exemptions) (float64, bool) {
	if s.MonthlyPayment != nil {
		return *s.MonthlyPayment, true
	}
	if client.MonthlyNetIncome == nil {
		return 0, false
	}
	return Garnishable(*client.MonthlyNetIncome, client.NumberOfChildren, ex), true
}

// Quota 债权人占总债务的百分比
func Quota(claim, total float64) (float64, bool) {
	if total <= 0 {
		return 0, false
	}
	return claim / total * 100, true
}

// TotalDebt 方案中给定的总额，缺省时为各债权之和
func TotalDebt(s domain.Settlement, creditors []domain.Creditor) float64 {
	if s.TotalDebt > 0 {
		return s.TotalDebt
	}
	sum := 0.0
	for _, c := range creditors {
		sum += c.ClaimAmount
	}
	return sum
}

// CreditorCount 方案中给定的债权人数，缺省时为收件人数量
func CreditorCount(s domain.Settlement, creditors []domain.Creditor) int {
	if s.CreditorCount > 0 {
		return s.CreditorCount
	}
	return len(creditors)
}
