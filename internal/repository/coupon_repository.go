package repository

import (
	"errors"
	"strings"

	"github.com/parcel-relay/internal/models"

	"gorm.io/gorm"
)

// CouponRepository 优惠券数据访问接口
type CouponRepository interface {
	Create(coupon *models.Coupon) error
	Update(coupon *models.Coupon) error
	GetByCode(userID uint, code string) (*models.Coupon, error)
	ListByUser(userID uint) ([]models.Coupon, error)
	WithTx(tx *gorm.DB) *GormCouponRepository
}

// GormCouponRepository GORM 优惠券仓储实现
type GormCouponRepository struct {
	db *gorm.DB
}

// NewCouponRepository 创建优惠券仓储
func NewCouponRepository(db *gorm.DB) *GormCouponRepository {
	return &GormCouponRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCouponRepository) WithTx(tx *gorm.DB) *GormCouponRepository {
	if tx == nil {
		return r
	}
	return &GormCouponRepository{db: tx}
}

// Create 创建优惠券
func (r *GormCouponRepository) Create(coupon *models.Coupon) error {
	return r.db.Create(coupon).Error
}

// Update 更新优惠券
func (r *GormCouponRepository) Update(coupon *models.Coupon) error {
	return r.db.Save(coupon).Error
}

// GetByCode 按用户与优惠码查询
func (r *GormCouponRepository) GetByCode(userID uint, code string) (*models.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" || userID == 0 {
		return nil, nil
	}
	var coupon models.Coupon
	if err := r.db.Where("user_id = ? AND code = ?", userID, code).First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

// ListByUser 用户全部优惠券
func (r *GormCouponRepository) ListByUser(userID uint) ([]models.Coupon, error) {
	var coupons []models.Coupon
	if err := r.db.Where("user_id = ?", userID).Order("id desc").Find(&coupons).Error; err != nil {
		return nil, err
	}
	return coupons, nil
}
