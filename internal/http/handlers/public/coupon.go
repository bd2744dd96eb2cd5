package public

import (
	"github.com/parcel-relay/internal/http/response"
	"github.com/parcel-relay/internal/models"

	"github.com/gin-gonic/gin"
)

// ValidateCouponRequest 校验优惠券
type ValidateCouponRequest struct {
	Code     string       `json:"code" binding:"required"`
	Purchase models.Money `json:"purchase"`
}

// ListMyCoupons 当前用户的优惠券
func (h *Handler) ListMyCoupons(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	coupons, err := h.CouponService.ListCoupons(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "error.coupon_fetch_failed", err)
		return
	}
	response.Success(c, coupons)
}

// ValidateCoupon 校验优惠券能否用于指定金额
func (h *Handler) ValidateCoupon(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req ValidateCouponRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.CouponService.ValidateCoupon(c.Request.Context(), uid, req.Code, req.Purchase)
	if err != nil {
		respondWithMappedError(c, err, "error.coupon_fetch_failed")
		return
	}
	response.Success(c, result)
}

// RedeemCouponRequest 核销优惠券
type RedeemCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// RedeemCoupon 下单结算时核销优惠券
func (h *Handler) RedeemCoupon(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req RedeemCouponRequest
	if !bindJSON(c, &req) {
		return
	}
	coupon, err := h.CouponService.MarkUsed(c.Request.Context(), uid, req.Code)
	if err != nil {
		respondWithMappedError(c, err, "error.coupon_redeem_failed")
		return
	}
	response.Success(c, coupon)
}
