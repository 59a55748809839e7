package middleware

import (
	"net/http"
	"strconv"

	"github.com/BrunoGao/release-sub004/internal/model"
	"github.com/gin-gonic/gin"
)

// TenantHeader 租户标识请求头
const TenantHeader = "X-Tenant-ID"

// tenantContextKey gin context 中租户ID的键
const tenantContextKey = "tenant_id"

// TenantMiddleware 租户中间件
// 从 X-Tenant-ID 头解析租户ID并放入 context，缺失或非法直接拒绝
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(TenantHeader)
		if raw == "" {
			raw = c.Query("tenantId")
		}
		if raw == "" {
			c.JSON(http.StatusBadRequest, model.Error(http.StatusBadRequest, "missing "+TenantHeader+" header"))
			c.Abort()
			return
		}

		tenantID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || tenantID == 0 {
			c.JSON(http.StatusBadRequest, model.Error(http.StatusBadRequest, "invalid "+TenantHeader+" header"))
			c.Abort()
			return
		}

		c.Set(tenantContextKey, tenantID)
		c.Next()
	}
}

// GetTenantID 从 gin context 取出租户ID
func GetTenantID(c *gin.Context) uint64 {
	if v, exists := c.Get(tenantContextKey); exists {
		if id, ok := v.(uint64); ok {
			return id
		}
	}
	return 0
}
