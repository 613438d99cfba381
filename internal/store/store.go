// Package store 模板的读取和缓存
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrTemplateNotFound 模板不存在
var ErrTemplateNotFound = errors.New("模板不存在")

// TemplateSource 按名称读取模板的原始字节
type TemplateSource interface {
	Load(ctx context.Context, name string) ([]byte, error)
}

// FileSource 从本地目录读取模板
type FileSource struct {
	Dir string
}

// NewFileSource 创建目录模板源
func NewFileSource(dir string) *FileSource {
	return &FileSource{Dir: dir}
}

// Load 读取 Dir 下的模板文件；绝对路径按原样读取
func (s *FileSource) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("读取模板失败: %w", err)
	}
	return data, nil
}

func (s *FileSource) resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("模板名称不能为空")
	}
	if filepath.IsAbs(name) {
		return filepath.Clean(name), nil
	}
	cleaned := filepath.Clean(name)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("模板名称不能跳出模板目录: %s", name)
	}
	return filepath.Join(s.Dir, cleaned), nil
}
