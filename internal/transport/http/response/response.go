package response

import "github.com/gin-gonic/gin"

// Msg 前端只读 message 字段
type Msg struct {
	Message string `json:"message"`
}

// Message 成功时的提示
func Message(msg string) Msg { return Msg{Message: msg} }

// Error 失败响应（可以传自定义 msg 覆盖默认）
func Error(code int, customMsg string) Msg {
	msg := CodeMsgMap[code]
	if customMsg != "" {
		msg = customMsg
	}
	return Msg{Message: msg}
}

// Abort 终止并写出错误
func Abort(c *gin.Context, code int, customMsg string) {
	c.AbortWithStatusJSON(code, Error(code, customMsg))
}
