package public

import (
	"strings"

	handlershared "github.com/parcel-relay/internal/http/handlers/shared"
	"github.com/parcel-relay/internal/http/response"
	"github.com/parcel-relay/internal/repository"
	"github.com/parcel-relay/internal/service"

	"github.com/gin-gonic/gin"
)

// CompensationRequestBody 运输损失赔付申请
type CompensationRequestBody struct {
	PackageID          uint     `json:"package_id" binding:"required"`
	Carrier            string   `json:"carrier"`
	CompensationType   string   `json:"compensation_type" binding:"required"`
	Description        string   `json:"description" binding:"required"`
	Files              []string `json:"files"`
	DamageCertificate  string   `json:"damage_certificate"`
	SelectedPackageIDs []uint   `json:"selected_package_ids"`
}

// CompensationResubmitBody 被驳回后重新提交
type CompensationResubmitBody struct {
	Description       string   `json:"description" binding:"required"`
	Files             []string `json:"files"`
	DamageCertificate string   `json:"damage_certificate"`
}

// FileCompensationRequest 提交赔付申请
func (h *Handler) FileCompensationRequest(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req CompensationRequestBody
	if !bindJSON(c, &req) {
		return
	}
	created, err := h.CompensationService.FileCompensationRequest(c.Request.Context(), uid, service.CompensationInput{
		PackageID:          req.PackageID,
		Carrier:            strings.TrimSpace(req.Carrier),
		CompensationType:   strings.TrimSpace(req.CompensationType),
		Description:        req.Description,
		Files:              req.Files,
		DamageCertificate:  strings.TrimSpace(req.DamageCertificate),
		SelectedPackageIDs: req.SelectedPackageIDs,
	})
	if err != nil {
		respondWithMappedError(c, err, "error.compensation_create_failed")
		return
	}
	response.Success(c, created)
}

// ResubmitCompensationRequest 补充材料后重新提交
func (h *Handler) ResubmitCompensationRequest(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CompensationResubmitBody
	if !bindJSON(c, &req) {
		return
	}
	updated, err := h.CompensationService.ResubmitCompensationRequest(c.Request.Context(), uid, id, service.CompensationResubmitInput{
		Description:       req.Description,
		Files:             req.Files,
		DamageCertificate: strings.TrimSpace(req.DamageCertificate),
	})
	if err != nil {
		respondWithMappedError(c, err, "error.compensation_update_failed")
		return
	}
	response.Success(c, updated)
}

// RequestCompensationRefund 为可退款的赔付申请选择退款方式
func (h *Handler) RequestCompensationRefund(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req RefundRequest
	if !bindJSON(c, &req) {
		return
	}
	updated, err := h.CompensationService.RequestCompensationRefund(c.Request.Context(), uid, id, req.toInput())
	if err != nil {
		respondWithMappedError(c, err, "error.refund_request_failed")
		return
	}
	response.Success(c, updated)
}

// ListMyCompensations 当前用户的赔付申请
func (h *Handler) ListMyCompensations(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePage(c)
	items, total, err := h.CompensationService.ListCompensations(repository.ClaimListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uid,
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.compensation_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, items, response.BuildPagination(page, pageSize, total))
}
