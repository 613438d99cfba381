package domain

import (
	"context"
	"time"
)

// TokenLocator 占位符定位器接口
type TokenLocator interface {
	Locate(markup string, names []string) []MatchSpan
}

// ValueResolver 变量取值接口
type ValueResolver interface {
	// Names 返回模板配置中绑定的全部变量名
	Names() []string
	// Resolve 返回变量的显示值，没有数据时返回 false
	Resolve(name string, rc *RecipientContext) (string, bool)
	// Unlocatable 从模板中找不到的变量名里挑出需要报告的
	Unlocatable(unlocated []string) []string
}

// OutputSink 生成结果的输出位置
type OutputSink interface {
	Write(ctx context.Context, fileName string, data []byte) (string, error)
}

// MatchSpan 一个占位符在原始标记中的位置
type MatchSpan struct {
	Name       string // 规范化后的变量名
	Start      int    // 开始偏移（含开引号）
	End        int    // 结束偏移（含闭引号）
	Delimiter  string // 命中的引号类型
	Fragmented bool   // 是否跨越多个文本运行
}

// Len 匹配长度
func (m MatchSpan) Len() int {
	return m.End - m.Start
}

// Overlaps 判断两个匹配是否重叠
func (m MatchSpan) Overlaps(o MatchSpan) bool {
	return m.Start < o.End && o.Start < m.End
}

// Client 债务人（委托人）资料
type Client struct {
	Reference        string   `json:"reference"`
	FirstName        string   `json:"first_name"`
	LastName         string   `json:"last_name"`
	FullName         string   `json:"full_name"`
	Street           string   `json:"street"`
	PostalCode       string   `json:"postal_code"`
	City             string   `json:"city"`
	Address          string   `json:"address"`
	BirthDate        string   `json:"birth_date"`
	MaritalStatus    string   `json:"marital_status"`
	EmploymentStatus string   `json:"employment_status"`
	NumberOfChildren int      `json:"number_of_children"`
	MonthlyNetIncome *float64 `json:"monthly_net_income"`
}

// Creditor 债权人，一个债权人对应一份输出文档
type Creditor struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Address        string  `json:"address"`
	Street         string  `json:"street"`
	PostalCode     string  `json:"postal_code"`
	City           string  `json:"city"`
	Reference      string  `json:"reference"`
	ClaimAmount    float64 `json:"claim_amount"`
	Representative string  `json:"representative"`
}

// Settlement 整体和解方案数据
type Settlement struct {
	TotalDebt          float64  `json:"total_debt"`
	CreditorCount      int      `json:"creditor_count"`
	MonthlyPayment     *float64 `json:"monthly_payment"`
	PlanDurationMonths int      `json:"plan_duration_months"`
}

// RecipientContext 单个收件人的取值上下文，每个收件人独立构造
type RecipientContext struct {
	Client     Client
	Creditor   *Creditor
	Settlement Settlement
	Position   int // 从 1 开始的序号
	Now        time.Time
	// Creditors 债权人表格中列出的全部债权人
	Creditors []Creditor
}

// SubstitutionReport 单个文档的替换结果
type SubstitutionReport struct {
	Applied     int
	Resolved    []string
	Unresolved  []string // 已定位但没有值
	Unlocatable []string // 模板中找不到
	Repairs     int
}

// GenerationResult 单个收件人的生成结果
type GenerationResult struct {
	Position    int       `yaml:"position" json:"position"`
	Creditor    string    `yaml:"creditor" json:"creditor"`
	FileName    string    `yaml:"file_name,omitempty" json:"file_name,omitempty"`
	Location    string    `yaml:"location,omitempty" json:"location,omitempty"`
	Success     bool      `yaml:"success" json:"success"`
	ErrorCode   ErrorCode `yaml:"error_code,omitempty" json:"error_code,omitempty"`
	Error       string    `yaml:"error,omitempty" json:"error,omitempty"`
	Applied     int       `yaml:"applied" json:"applied"`
	Unresolved  []string  `yaml:"unresolved,omitempty" json:"unresolved,omitempty"`
	Unlocatable []string  `yaml:"unlocatable,omitempty" json:"unlocatable,omitempty"`
	Repairs     int       `yaml:"repairs" json:"repairs"`
	TableRows   int       `yaml:"table_rows,omitempty" json:"table_rows,omitempty"`
	Size        int       `yaml:"size" json:"size"`
	Data        []byte    `yaml:"-" json:"-"`
}

// NeedsAttention 成功但存在未替换的占位符
func (r *GenerationResult) NeedsAttention() bool {
	return r.Success && (len(r.Unresolved) > 0 || len(r.Unlocatable) > 0)
}

// BatchResult 一次批量生成的结果，顺序与输入一致
type BatchResult struct {
	BatchID   string              `yaml:"batch_id" json:"batch_id"`
	Client    string              `yaml:"client" json:"client"`
	StartedAt time.Time           `yaml:"started_at" json:"started_at"`
	Duration  time.Duration       `yaml:"duration" json:"duration"`
	Results   []*GenerationResult `yaml:"results" json:"results"`
}

// Succeeded 成功数量
func (b *BatchResult) Succeeded() int {
	n := 0
	for _, r := range b.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// Failed 失败数量
func (b *BatchResult) Failed() int {
	return len(b.Results) - b.Succeeded()
}
