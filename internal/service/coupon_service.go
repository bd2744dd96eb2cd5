package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/logger"
	"github.com/parcel-relay/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CouponValidation 优惠券校验结果，Reason 为空表示可用
type CouponValidation struct {
	Valid    bool           `json:"valid"`
	Reason   string         `json:"reason,omitempty"`
	Coupon   *models.Coupon `json:"coupon,omitempty"`
	Discount models.Money   `json:"discount"`
}

// 优惠券不可用原因
const (
	CouponReasonNotFound    = "not_found"
	CouponReasonUsed        = "used"
	CouponReasonExpired     = "expired"
	CouponReasonMinPurchase = "min_purchase"
)

// CouponService 奖励优惠券
type CouponService struct {
	fulfillmentCore
}

// NewCouponService 创建优惠券服务
func NewCouponService(deps FulfillmentDeps) *CouponService {
	return &CouponService{fulfillmentCore: newFulfillmentCore(deps)}
}

// IssueRewardCoupon 发放 ¥800 奖励券，6 个月内有效
func (s *CouponService) IssueRewardCoupon(ctx context.Context, userID uint, description string) (*models.Coupon, error) {
	if userID == 0 {
		return nil, invalid("user_id", "required")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = "Reward coupon"
	}
	now := s.now()
	coupon := &models.Coupon{
		UserID:         userID,
		Code:           fmt.Sprintf("%s-%s", constants.RewardCouponCodePrefix, strings.ToUpper(uuid.NewString()[:8])),
		DiscountAmount: models.Yen(constants.RewardCouponDiscount),
		MinPurchase:    models.Yen(0),
		Description:    description,
		Status:         constants.CouponStatusActive,
		ExpiresAt:      now.AddDate(0, constants.RewardCouponValidMonths, 0),
	}
	err := s.run(ctx, nil, func(tx *gorm.DB, changes *ChangeSet) error {
		if err := s.CouponRepo.WithTx(tx).Create(coupon); err != nil {
			return fmt.Errorf("create coupon failed: %w", err)
		}
		body := fmt.Sprintf("You received a ¥%d coupon (%s), valid until %s.",
			constants.RewardCouponDiscount, coupon.Code, coupon.ExpiresAt.Format("2006-01-02"))
		return changes.Notify(tx, userID, constants.NotificationKindWallet, "Reward coupon", body, nil)
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("reward_coupon_issued", "user_id", userID, "coupon_id", coupon.ID)
	return coupon, nil
}

// ValidateCoupon 校验优惠券对给定消费金额是否可用，过期的券同时落库为 expired
func (s *CouponService) ValidateCoupon(ctx context.Context, userID uint, code string, purchase models.Money) (*CouponValidation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, invalid("code", "required")
	}
	var result *CouponValidation
	err := s.run(ctx, nil, func(tx *gorm.DB, _ *ChangeSet) error {
		repo := s.CouponRepo.WithTx(tx)
		coupon, err := repo.GetByCode(userID, code)
		if err != nil {
			return err
		}
		result = &CouponValidation{Coupon: coupon, Discount: models.Yen(0)}
		switch {
		case coupon == nil:
			result.Reason = CouponReasonNotFound
		case coupon.Status == constants.CouponStatusUsed:
			result.Reason = CouponReasonUsed
		case coupon.Status == constants.CouponStatusExpired:
			result.Reason = CouponReasonExpired
		case !s.now().Before(coupon.ExpiresAt):
			coupon.Status = constants.CouponStatusExpired
			if err := repo.Update(coupon); err != nil {
				return fmt.Errorf("expire coupon failed: %w", err)
			}
			result.Reason = CouponReasonExpired
		case purchase.LessThan(coupon.MinPurchase.Decimal):
			result.Reason = CouponReasonMinPurchase
		default:
			result.Valid = true
			result.Discount = coupon.DiscountAmount
			if purchase.LessThan(coupon.DiscountAmount.Decimal) {
				result.Discount = purchase
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkUsed 核销优惠券，只有可用的券能被核销
func (s *CouponService) MarkUsed(ctx context.Context, userID uint, code string) (*models.Coupon, error) {
	var used *models.Coupon
	err := s.run(ctx, nil, func(tx *gorm.DB, _ *ChangeSet) error {
		repo := s.CouponRepo.WithTx(tx)
		coupon, err := repo.GetByCode(userID, strings.TrimSpace(code))
		if err != nil {
			return err
		}
		if coupon == nil {
			return ErrCouponNotFound
		}
		if coupon.Status != constants.CouponStatusActive || !s.now().Before(coupon.ExpiresAt) {
			return invalid("code", "coupon is not active")
		}
		now := s.now()
		coupon.Status = constants.CouponStatusUsed
		coupon.UsedAt = &now
		if err := repo.Update(coupon); err != nil {
			return fmt.Errorf("mark coupon used failed: %w", err)
		}
		used = coupon
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("coupon_used", "user_id", userID, "coupon_id", used.ID)
	return used, nil
}

// ListCoupons 客户全部优惠券
func (s *CouponService) ListCoupons(userID uint) ([]models.Coupon, error) {
	return s.CouponRepo.ListByUser(userID)
}
