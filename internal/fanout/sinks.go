package fanout

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// DirSink 把结果写入本地目录；先写临时文件再重命名，不会留下半个文件
type DirSink struct {
	Dir string
}

// NewDirSink 创建目录输出，目录不存在时自动创建
func NewDirSink(dir string) (*DirSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("输出目录不能为空")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	return &DirSink{Dir: dir}, nil
}

// Write 写入文件并返回最终路径
func (s *DirSink) Write(ctx context.Context, fileName string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if fileName == "" || filepath.Base(fileName) != fileName {
		return "", fmt.Errorf("非法的文件名: %q", fileName)
	}

	tmp, err := os.CreateTemp(s.Dir, ".tmp-*.docx")
	if err != nil {
		return "", fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("关闭临时文件失败: %w", err)
	}

	target := filepath.Join(s.Dir, fileName)
	if err := os.Rename(tmpName, target); err != nil {
		return "", fmt.Errorf("保存文件失败: %w", err)
	}
	return target, nil
}

// MemorySink 保存在内存中，用于测试和嵌入调用
type MemorySink struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMemorySink 创建内存输出
func NewMemorySink() *MemorySink {
	return &MemorySink{files: make(map[string][]byte)}
}

// Write 保存一份数据副本
func (s *MemorySink) Write(ctx context.Context, fileName string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[fileName] = append([]byte(nil), data...)
	return "memory://" + fileName, nil
}

// Get 读取已保存的文件
func (s *MemorySink) Get(fileName string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[fileName]
	return data, ok
}

// Names 已保存的文件名（排序）
func (s *MemorySink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
