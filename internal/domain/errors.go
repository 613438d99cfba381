package domain

import (
	"errors"
	"fmt"
)

// ErrorCode 生成失败的分类
type ErrorCode string

const (
	ErrCodeCorruptArchive       ErrorCode = "CORRUPT_ARCHIVE"
	ErrCodeSerializationFailure ErrorCode = "SERIALIZATION_FAILURE"
	ErrCodeResolverFailure      ErrorCode = "RESOLVER_FAILURE"
	ErrCodeMalformedMarkup      ErrorCode = "MALFORMED_MARKUP"
	ErrCodeSinkFailure          ErrorCode = "SINK_FAILURE"
	ErrCodeCancelled            ErrorCode = "CANCELLED"
)

// GenerationError 带分类的生成错误
type GenerationError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// NewError 创建生成错误
func NewError(code ErrorCode, message string, err error) *GenerationError {
	return &GenerationError{Code: code, Message: message, Err: err}
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// CodeOf 提取错误分类，未知错误返回空
func CodeOf(err error) ErrorCode {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}
