// Package dto provides data transfer objects for the REST adapter.
package dto

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/pushgate/pkg/errors"
)

// StatusResponse is the body of a mutation that has nothing else to report.
type StatusResponse struct {
	Status string `json:"status"`
}

// OK is the StatusResponse of a successful mutation.
var OK = StatusResponse{Status: "ok"}

// SendSuccess 写入成功响应
func SendSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// SendError 将错误映射为 HTTP 状态码和错误响应体
func SendError(c *gin.Context, err error) {
	status, resp := errors.ToErrorResponse(err)
	c.JSON(status, resp)
}

// AbortWithError writes the error response and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	status, resp := errors.ToErrorResponse(err)
	c.AbortWithStatusJSON(status, resp)
}
