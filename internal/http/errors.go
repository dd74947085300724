package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pantry-to-plate/internal/domain"
)

var statusByKind = map[domain.ErrorKind]int{
	domain.KindConflict:        http.StatusConflict,
	domain.KindUnauthorized:    http.StatusUnauthorized,
	domain.KindForbidden:       http.StatusForbidden,
	domain.KindNotFound:        http.StatusNotFound,
	domain.KindBadRequest:      http.StatusBadRequest,
	domain.KindTooManyRequests: http.StatusTooManyRequests,
}

// respondError traduce err al status de su ErrorKind. Los errores sin kind
// se registran y salen como 500 sin detalle.
func respondError(c *gin.Context, logger *zap.Logger, op string, err error) {
	kind := domain.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		logger.Error(op+" failed", zap.Error(err), zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": domain.MessageOf(err),
			"code":  string(domain.KindInternal),
		})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": domain.MessageOf(err), "code": string(kind)})
}

func abortWith(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}

func invalidRequest(c *gin.Context, logger *zap.Logger, op string, err error) {
	logger.Warn("invalid "+op+" request", zap.Error(err))
	abortWith(c, http.StatusBadRequest, string(domain.KindBadRequest), "invalid request")
}
