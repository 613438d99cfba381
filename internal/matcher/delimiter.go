package matcher

// Delimiter 占位符两侧的引号
//
// Open 和 Close 是原始标记中的写法，实体形式（&quot;）与字面引号是不同的定界符。
type Delimiter struct {
	Name  string `mapstructure:"name" yaml:"name"`
	Open  string `mapstructure:"open" yaml:"open"`
	Close string `mapstructure:"close" yaml:"close"`
}

// DefaultDelimiters 默认定界符，按优先级排列
func DefaultDelimiters() []Delimiter {
	return []Delimiter{
		{Name: "plain", Open: `"`, Close: `"`},
		{Name: "curly", Open: "“", Close: "”"},
		{Name: "german", Open: "„", Close: "“"},
		{Name: "entity", Open: "&quot;", Close: "&quot;"},
	}
}
