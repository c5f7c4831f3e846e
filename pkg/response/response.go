// Package response 统一的 JSON 响应外壳与错误码到 HTTP 状态的映射。
package response

import (
	"net/http"

	"SafeCircle/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Response 所有接口的响应外壳，code 为 0 表示成功
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, message string, data interface{}) {
	if message == "" {
		message = "success"
	}
	c.JSON(http.StatusOK, Response{Code: 0, Message: message, Data: data})
}

// Accepted 已受理、结果异步产生（例如分批发出的意图）
func Accepted(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusAccepted, Response{Code: 0, Message: message, Data: data})
}

// Fail 参数错误
func Fail(c *gin.Context, message string, data interface{}) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{Code: errors.CodeInvalidInput, Message: message, Data: data})
}

// Error 按错误码选择状态，非 *errors.Error 一律 500
func Error(c *gin.Context, err error) {
	code := errors.GetCode(err)
	if code == 0 {
		code = errors.CodeInternal
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(Status(code), Response{Code: code, Message: errors.GetMessage(err)})
}

// Status 业务码按百位分段映射：40001 -> 400，50301 -> 503
func Status(code int) int {
	status := code / 100
	if status < 400 || status > 599 || http.StatusText(status) == "" {
		return http.StatusInternalServerError
	}
	return status
}
