package utils

import (
	"github.com/gofiber/fiber/v2"

	"github.com/xsxdot/clubmon/pkg/common"
)

// 定义常用的状态码
const (
	// 成功状态码，与前端约定为20000
	StatusSuccess = 20000
	// 参数错误状态码
	StatusBadRequest = 40000
	// 资源不存在状态码
	StatusNotFound = 40400
	// 资源冲突状态码
	StatusConflict = 40900
	// 服务器内部错误状态码
	StatusInternalError = 50000
)

// Response 统一返回结构体
type Response struct {
	// 状态码，与前端约定为20000表示成功
	Code int `json:"code"`
	// 消息内容
	Msg string `json:"msg"`
	// 数据内容
	Data interface{} `json:"data,omitempty"`
}

// NewResponse 创建新的响应
func NewResponse(code int, msg string, data interface{}) *Response {
	return &Response{
		Code: code,
		Msg:  msg,
		Data: data,
	}
}

// Success 返回成功响应
func Success(data interface{}) *Response {
	return NewResponse(StatusSuccess, "success", data)
}

// Fail 返回失败响应
func Fail(code int, msg string) *Response {
	return NewResponse(code, msg, nil)
}

// WithResponse 封装响应的辅助函数
func WithResponse(c *fiber.Ctx, resp *Response) error {
	return c.Status(fiber.StatusOK).JSON(resp)
}

// SuccessResponse 返回成功响应的辅助函数
func SuccessResponse(c *fiber.Ctx, data interface{}) error {
	return WithResponse(c, Success(data))
}

// FailResponse 返回失败响应的辅助函数
func FailResponse(c *fiber.Ctx, code int, msg string) error {
	return WithResponse(c, Fail(code, msg))
}

// ErrorResponse 由错误生成的失败响应
func ErrorResponse(c *fiber.Ctx, err error) error {
	code := StatusInternalError
	msg := "服务器内部错误"

	if appErr, ok := common.IsAppError(err); ok {
		switch appErr.Type {
		case common.ErrorTypeValidation:
			code = StatusBadRequest
		case common.ErrorTypeNotFound:
			code = StatusNotFound
		case common.ErrorTypeConflict:
			code = StatusConflict
		}
		msg = appErr.Message
	} else if err != nil {
		msg = err.Error()
	}

	return WithResponse(c, Fail(code, msg))
}
