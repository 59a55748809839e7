package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func tenantTestRouter() (*gin.Engine, *uint64) {
	gin.SetMode(gin.TestMode)
	var captured uint64

	r := gin.New()
	r.Use(TenantMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		captured = GetTenantID(c)
		c.Status(http.StatusOK)
	})
	return r, &captured
}

// TestTenantMiddleware 测试租户标识解析
func TestTenantMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		header         string
		query          string
		expectedStatus int
		expectedTenant uint64
	}{
		{"头部携带租户ID", "7", "", http.StatusOK, 7},
		{"查询参数兜底", "", "?tenantId=9", http.StatusOK, 9},
		{"头部优先于查询参数", "7", "?tenantId=9", http.StatusOK, 7},
		{"缺失租户ID", "", "", http.StatusBadRequest, 0},
		{"非法租户ID", "abc", "", http.StatusBadRequest, 0},
		{"零租户ID", "0", "", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, captured := tenantTestRouter()

			req := httptest.NewRequest(http.MethodGet, "/ping"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set(TenantHeader, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, expected %d", w.Code, tt.expectedStatus)
			}
			if tt.expectedStatus == http.StatusOK && *captured != tt.expectedTenant {
				t.Errorf("tenant id = %d, expected %d", *captured, tt.expectedTenant)
			}
		})
	}
}
