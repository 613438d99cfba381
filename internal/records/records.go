// Package records 批量生成的输入数据：委托人、和解方案和债权人列表
package records

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/allanpk716/creditor_letters/internal/domain"
)

//go:embed schema.json
var schema []byte

// ErrInvalidInput 输入不符合格式要求
var ErrInvalidInput = errors.New("输入数据无效")

// Batch 一次批量生成的输入
type Batch struct {
	Client     domain.Client     `json:"client"`
	Settlement domain.Settlement `json:"settlement"`
	Creditors  []domain.Creditor `json:"creditors"`
}

// Load 读取并校验输入文件
func Load(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取输入文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 先按 JSON Schema 校验再解码
func Parse(data []byte) (*Batch, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return &batch, nil
}

// Validate 按内置的 JSON Schema 校验输入
func Validate(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(errs, "; "))
	}
	return nil
}
