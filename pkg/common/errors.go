package common

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType 错误类型
type ErrorType uint

const (
	// ErrorTypeNormal 普通错误
	ErrorTypeNormal ErrorType = iota
	// ErrorTypeValidation 验证错误
	ErrorTypeValidation
	// ErrorTypeNotFound 未找到错误
	ErrorTypeNotFound
	// ErrorTypeConflict 冲突错误
	ErrorTypeConflict
	// ErrorTypeInternal 内部错误
	ErrorTypeInternal
	// ErrorTypeExternal 外部服务错误
	ErrorTypeExternal
	// ErrorTypeTimeout 超时错误
	ErrorTypeTimeout
)

// AppError 应用错误
type AppError struct {
	// Type 错误类型
	Type ErrorType
	// Code 错误代码
	Code string
	// Message 错误消息
	Message string
	// Err 原始错误
	Err error
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 实现errors.Unwrap接口
func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode 返回对应的HTTP状态码
func (e *AppError) StatusCode() int {
	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeTimeout:
		return http.StatusRequestTimeout
	case ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewError 创建指定类型的应用错误
func NewError(errType ErrorType, code, message string, err error) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string, err error) *AppError {
	return NewError(ErrorTypeValidation, "VALIDATION_ERROR", message, err)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, err error) *AppError {
	return NewError(ErrorTypeNotFound, "NOT_FOUND", message, err)
}

// NewConflictError 创建冲突错误
func NewConflictError(message string, err error) *AppError {
	return NewError(ErrorTypeConflict, "CONFLICT", message, err)
}

// NewInternalError 创建内部错误
func NewInternalError(message string, err error) *AppError {
	return NewError(ErrorTypeInternal, "INTERNAL_ERROR", message, err)
}

// NewExternalError 创建外部服务错误
func NewExternalError(message string, err error) *AppError {
	return NewError(ErrorTypeExternal, "EXTERNAL_ERROR", message, err)
}

// IsAppError 判断错误是否为应用错误，并返回转换结果
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
