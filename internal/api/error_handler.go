package api

import (
	"errors"
	"net/http"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/logger"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/utils"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/workflow"
	"github.com/gin-gonic/gin"
)

// statusFor 流程错误分类对应的 HTTP 状态码
func statusFor(kind workflow.Kind) int {
	switch kind {
	case workflow.KindValidation:
		return http.StatusBadRequest
	case workflow.KindState, workflow.KindConflict:
		return http.StatusConflict
	case workflow.KindAuthorization:
		return http.StatusForbidden
	case workflow.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// RespondError 将错误转换为响应,内部错误不向客户端暴露细节
func RespondError(c *gin.Context, err error) {
	var we *workflow.Error
	if errors.As(err, &we) {
		Error(c, statusFor(we.Kind), we.Message, we.Detail())
		return
	}

	var ve *utils.ValidationError
	if errors.As(err, &ve) {
		Error(c, http.StatusBadRequest, ve.Message, gin.H{"kind": workflow.KindValidation, "code": ve.Code})
		return
	}

	logger.FromContext(c.Request.Context()).WithError(err).Error("request failed")
	Error(c, http.StatusInternalServerError, "internal server error", nil)
}

// ErrorHandlerMiddleware 处理 handler 通过 c.Error 记录且尚未响应的错误
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			RespondError(c, c.Errors.Last().Err)
		}
	}
}

// RecoveryMiddleware 将 panic 转换为 500
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.FromContext(c.Request.Context()).WithField("panic", recovered).Error("panic recovered")
		Error(c, http.StatusInternalServerError, "internal server error", nil)
	})
}
