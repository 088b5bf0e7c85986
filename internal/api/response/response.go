package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

/*
Response 统一 API 响应结构
功能：所有 JSON 接口共用同一信封，前端按 success 字段分流
*/
type Response struct {
	Success bool        `json:"success"`
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

/* GinSuccess 200 成功响应 */
func GinSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Code:    http.StatusOK,
		Data:    data,
	})
}

/* GinSuccessWithMessage 200 成功响应（带提示消息） */
func GinSuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Code:    http.StatusOK,
		Message: message,
		Data:    data,
	})
}

/* GinError 任意状态码的错误响应 */
func GinError(c *gin.Context, status int, message string) {
	c.JSON(status, Response{
		Success: false,
		Code:    status,
		Message: message,
	})
}

/* GinBadRequest 400 请求参数错误 */
func GinBadRequest(c *gin.Context, message string) {
	GinError(c, http.StatusBadRequest, message)
}

/* GinUnauthorized 401 未认证 */
func GinUnauthorized(c *gin.Context, message string) {
	GinError(c, http.StatusUnauthorized, message)
}

/* GinForbidden 403 无权限 */
func GinForbidden(c *gin.Context, message string) {
	GinError(c, http.StatusForbidden, message)
}

/* GinNotFound 404 资源不存在 */
func GinNotFound(c *gin.Context, message string) {
	GinError(c, http.StatusNotFound, message)
}

/*
GinInternalError 500 服务器内部错误
功能：对外返回统一消息不泄漏细节，内部错误记录到日志
*/
func GinInternalError(c *gin.Context, message string, err error) {
	zap.L().Error(message,
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	GinError(c, http.StatusInternalServerError, message)
}

/* InternalError 500 简化版，无内部错误对象 */
func InternalError(c *gin.Context, message string) {
	GinError(c, http.StatusInternalServerError, message)
}
