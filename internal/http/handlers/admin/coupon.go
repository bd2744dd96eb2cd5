package admin

import (
	"strings"

	"github.com/parcel-relay/internal/http/response"

	"github.com/gin-gonic/gin"
)

// RewardCouponRequest 发放补偿券
type RewardCouponRequest struct {
	UserID      uint   `json:"user_id" binding:"required"`
	Description string `json:"description"`
}

// IssueRewardCoupon 向用户发放补偿券
func (h *Handler) IssueRewardCoupon(c *gin.Context) {
	var req RewardCouponRequest
	if !bindJSON(c, &req) {
		return
	}
	coupon, err := h.CouponService.IssueRewardCoupon(c.Request.Context(), req.UserID, strings.TrimSpace(req.Description))
	if err != nil {
		respondWithMappedError(c, err, "error.coupon_issue_failed")
		return
	}
	requestLog(c).Infow("admin_reward_coupon_issued",
		"operator_admin_id", currentAdminID(c),
		"user_id", req.UserID,
		"coupon_id", coupon.ID,
	)
	response.Success(c, coupon)
}
