package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/parcel-relay/internal/http/handlers/shared"
	"github.com/parcel-relay/internal/http/response"
	"github.com/parcel-relay/internal/repository"
	"github.com/parcel-relay/internal/service"

	"github.com/gin-gonic/gin"
)

// ClaimReviewRequest 破损申请审核
type ClaimReviewRequest struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes"`
}

// CompensationReviewRequest 赔付申请审核，status 为目标状态
type CompensationReviewRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

func parseClaimListFilter(c *gin.Context) repository.ClaimListFilter {
	page, pageSize := handlershared.ParsePage(c)
	filter := repository.ClaimListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		Keyword:  strings.TrimSpace(c.Query("keyword")),
	}
	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			filter.UserID = uint(id)
		}
	}
	if raw := strings.TrimSpace(c.Query("package_id")); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			filter.PackageID = uint(id)
		}
	}
	return filter
}

// ListDamagedClaims 破损申请列表
func (h *Handler) ListDamagedClaims(c *gin.Context) {
	filter := parseClaimListFilter(c)
	items, total, err := h.DamagedClaimService.ListDamagedClaims(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.claim_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, items, response.BuildPagination(filter.Page, filter.PageSize, total))
}

// ReviewDamagedClaim 审核破损申请
func (h *Handler) ReviewDamagedClaim(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ClaimReviewRequest
	if !bindJSON(c, &req) {
		return
	}
	claim, err := h.DamagedClaimService.ReviewDamagedClaim(c.Request.Context(), id, service.ClaimReviewInput{
		Approve: req.Approve,
		Notes:   strings.TrimSpace(req.Notes),
	})
	if err != nil {
		respondWithMappedError(c, err, "error.claim_update_failed")
		return
	}
	requestLog(c).Infow("admin_damaged_claim_reviewed",
		"operator_admin_id", currentAdminID(c),
		"claim_id", id,
		"approve", req.Approve,
	)
	response.Success(c, claim)
}

// ConfirmDamagedRefund 财务确认破损退款到账
func (h *Handler) ConfirmDamagedRefund(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	claim, err := h.DamagedClaimService.ConfirmDamagedRefund(c.Request.Context(), id)
	if err != nil {
		respondWithMappedError(c, err, "error.claim_update_failed")
		return
	}
	requestLog(c).Infow("admin_damaged_refund_confirmed",
		"operator_admin_id", currentAdminID(c),
		"claim_id", id,
	)
	response.Success(c, claim)
}

// ListCompensations 赔付申请列表
func (h *Handler) ListCompensations(c *gin.Context) {
	filter := parseClaimListFilter(c)
	items, total, err := h.CompensationService.ListCompensations(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.compensation_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, items, response.BuildPagination(filter.Page, filter.PageSize, total))
}

// ReviewCompensation 推进赔付申请审核状态
func (h *Handler) ReviewCompensation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CompensationReviewRequest
	if !bindJSON(c, &req) {
		return
	}
	updated, err := h.CompensationService.ReviewCompensation(c.Request.Context(), id, service.CompensationReviewInput{
		Status: strings.TrimSpace(req.Status),
		Notes:  strings.TrimSpace(req.Notes),
	})
	if err != nil {
		respondWithMappedError(c, err, "error.compensation_update_failed")
		return
	}
	requestLog(c).Infow("admin_compensation_reviewed",
		"operator_admin_id", currentAdminID(c),
		"compensation_id", id,
		"status", updated.Status,
	)
	response.Success(c, updated)
}

// ApproveCompensationForRefund 允许客户选择退款方式
func (h *Handler) ApproveCompensationForRefund(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	updated, err := h.CompensationService.ApproveCompensationForRefund(c.Request.Context(), id)
	if err != nil {
		respondWithMappedError(c, err, "error.compensation_update_failed")
		return
	}
	response.Success(c, updated)
}

// ConfirmCompensationRefund 财务确认赔付到账
func (h *Handler) ConfirmCompensationRefund(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	updated, err := h.CompensationService.ConfirmCompensationRefund(c.Request.Context(), id)
	if err != nil {
		respondWithMappedError(c, err, "error.compensation_update_failed")
		return
	}
	requestLog(c).Infow("admin_compensation_refund_confirmed",
		"operator_admin_id", currentAdminID(c),
		"compensation_id", id,
	)
	response.Success(c, updated)
}
