package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/isdmx/codecheck/config"
)

// bodyOverhead allows for JSON escaping and the non-code fields
const bodyOverhead = 64 << 10

// NewRouter builds the gin engine serving the check API
func NewRouter(cfg *config.Config, chk Checker, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	h := &handler{checker: chk, logger: log, now: time.Now}

	r := gin.New()
	r.Use(requestID(), recovery(log), accessLog(log))

	r.GET("/health", h.health)

	secured := r.Group("/", requireAPIKey(cfg.Server.APIKeyHeader))
	limit := limitBody(2*int64(chk.MaxSourceBytes()) + bodyOverhead)

	secured.POST("/check", limit, h.check)
	v1 := secured.Group("/api/v1")
	{
		v1.POST("/check", limit, h.check)
		v1.GET("/languages", h.languages)
	}

	return r
}
