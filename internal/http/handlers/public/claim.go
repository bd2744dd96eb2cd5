package public

import (
	"strings"

	handlershared "github.com/parcel-relay/internal/http/handlers/shared"
	"github.com/parcel-relay/internal/http/response"
	"github.com/parcel-relay/internal/repository"
	"github.com/parcel-relay/internal/service"

	"github.com/gin-gonic/gin"
)

// DamagedClaimRequest 商品破损申请
type DamagedClaimRequest struct {
	Description string   `json:"description" binding:"required"`
	Photos      []string `json:"photos"`
}

// RefundRequest 退款方式：balance / replace / paypal / card
type RefundRequest struct {
	Method       string `json:"method" binding:"required"`
	PaymentEmail string `json:"payment_email"`
	CardLast4    string `json:"card_last4"`
}

func (r RefundRequest) toInput() service.RefundInput {
	return service.RefundInput{
		Method:       strings.TrimSpace(r.Method),
		PaymentEmail: strings.TrimSpace(r.PaymentEmail),
		CardLast4:    strings.TrimSpace(r.CardLast4),
	}
}

// FileDamagedItemClaim 对已拍照的包裹提交破损申请
func (h *Handler) FileDamagedItemClaim(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req DamagedClaimRequest
	if !bindJSON(c, &req) {
		return
	}
	claim, err := h.DamagedClaimService.FileDamagedItemClaim(c.Request.Context(), uid, id, service.DamagedClaimInput{
		Description: req.Description,
		Photos:      req.Photos,
	})
	if err != nil {
		respondWithMappedError(c, err, "error.claim_create_failed")
		return
	}
	response.Success(c, claim)
}

// RequestDamagedItemRefund 为已通过的破损申请选择退款方式
func (h *Handler) RequestDamagedItemRefund(c *gin.Context) {
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
	claim, err := h.DamagedClaimService.RequestDamagedItemRefund(c.Request.Context(), uid, id, req.toInput())
	if err != nil {
		respondWithMappedError(c, err, "error.refund_request_failed")
		return
	}
	response.Success(c, claim)
}

// ListMyDamagedClaims 当前用户的破损申请
func (h *Handler) ListMyDamagedClaims(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePage(c)
	claims, total, err := h.DamagedClaimService.ListDamagedClaims(repository.ClaimListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uid,
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.claim_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, claims, response.BuildPagination(page, pageSize, total))
}
