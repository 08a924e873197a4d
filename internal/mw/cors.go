package mw

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS 返回跨域中间件。dev 环境放行任意来源方便本地前端调试，
// 其他环境只放行配置里列出的前端域名。
func CORS(env string, allowedOrigins []string) gin.HandlerFunc {
	allowAll := env == "dev"
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		if _, ok := allowed[origin]; ok || allowAll {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		// 接口只有 GET/POST；Accept-Language 给前端切换阿拉伯语/英语用
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept-Language")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
