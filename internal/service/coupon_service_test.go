package service

import (
	"context"
	"strings"
	"testing"

	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/models"
)

func TestRewardCouponLifecycle(t *testing.T) {
	env := setupFulfillmentTest(t)
	ctx := context.Background()
	env.user(t, 1, 0)

	coupon, err := env.coupons.IssueRewardCoupon(ctx, 1, "")
	if err != nil {
		t.Fatalf("issue coupon failed: %v", err)
	}
	if !strings.HasPrefix(coupon.Code, constants.RewardCouponCodePrefix+"-") || coupon.DiscountAmount.Int64() != 800 {
		t.Fatalf("unexpected coupon: %+v", coupon)
	}
	if !coupon.ExpiresAt.Equal(env.now.AddDate(0, 6, 0)) {
		t.Fatalf("expiry want six months, got %s", coupon.ExpiresAt)
	}

	small, err := env.coupons.ValidateCoupon(ctx, 1, coupon.Code, models.Yen(500))
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !small.Valid || small.Discount.Int64() != 500 {
		t.Fatalf("discount must be capped at the purchase: %+v", small)
	}

	if _, err := env.coupons.MarkUsed(ctx, 1, coupon.Code); err != nil {
		t.Fatalf("mark used failed: %v", err)
	}
	used, err := env.coupons.ValidateCoupon(ctx, 1, coupon.Code, models.Yen(5000))
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if used.Valid || used.Reason != CouponReasonUsed {
		t.Fatalf("used coupon must be rejected: %+v", used)
	}
	if _, err := env.coupons.MarkUsed(ctx, 1, coupon.Code); err == nil {
		t.Fatalf("coupon must not be used twice")
	}
}

func TestCouponExpiresAndBelongsToOwner(t *testing.T) {
	env := setupFulfillmentTest(t)
	ctx := context.Background()
	env.user(t, 1, 0)
	env.user(t, 2, 0)

	coupon, err := env.coupons.IssueRewardCoupon(ctx, 1, "Referral reward")
	if err != nil {
		t.Fatalf("issue coupon failed: %v", err)
	}
	foreign, err := env.coupons.ValidateCoupon(ctx, 2, coupon.Code, models.Yen(5000))
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if foreign.Reason != CouponReasonNotFound {
		t.Fatalf("other customer must not see the coupon: %+v", foreign)
	}

	env.now = env.now.AddDate(0, 7, 0)
	expired, err := env.coupons.ValidateCoupon(ctx, 1, coupon.Code, models.Yen(5000))
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if expired.Valid || expired.Reason != CouponReasonExpired {
		t.Fatalf("coupon must be expired: %+v", expired)
	}
	coupons, err := env.coupons.ListCoupons(1)
	if err != nil {
		t.Fatalf("list coupons failed: %v", err)
	}
	if len(coupons) != 1 || coupons[0].Status != constants.CouponStatusExpired {
		t.Fatalf("expiry must be stored: %+v", coupons)
	}
}
