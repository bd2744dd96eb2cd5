package models

import (
	"time"

	"gorm.io/gorm"
)

// Coupon 客户奖励优惠券
type Coupon struct {
	ID             uint           `gorm:"primarykey" json:"id"`                                       // 主键
	UserID         uint           `gorm:"index;not null" json:"user_id"`                              // 所属用户
	Code           string         `gorm:"uniqueIndex;not null" json:"code"`                           // 优惠码
	DiscountAmount Money          `gorm:"type:decimal(20,0);not null" json:"discount_amount"`         // 抵扣金额
	MinPurchase    Money          `gorm:"type:decimal(20,0);not null;default:0" json:"min_purchase"`  // 使用门槛
	Description    string         `gorm:"type:varchar(255)" json:"description"`                       // 描述
	Status         string         `gorm:"index;not null" json:"status"`                               // 状态
	ExpiresAt      time.Time      `gorm:"index;not null" json:"expires_at"`                           // 失效时间
	UsedAt         *time.Time     `json:"used_at,omitempty"`                                          // 使用时间
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`                                    // 创建时间
	UpdatedAt      time.Time      `gorm:"index" json:"updated_at"`                                    // 更新时间
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`                                             // 软删除时间
}

// TableName 指定表名
func (Coupon) TableName() string {
	return "coupons"
}
