package models

import (
	"time"

	"gorm.io/gorm"
)

// DamagedItemClaim 仓库内损坏申请表
type DamagedItemClaim struct {
	ID                 uint           `gorm:"primarykey" json:"id"`                                // 主键
	PackageID          uint           `gorm:"index;not null" json:"package_id"`                    // 包裹ID
	UserID             uint           `gorm:"index;not null" json:"user_id"`                       // 用户ID
	Description        string         `gorm:"type:text;not null" json:"description"`               // 问题描述
	Photos             StringArray    `gorm:"type:text" json:"photos"`                             // 证据照片
	Status             string         `gorm:"index;not null" json:"status"`                        // 审核状态
	AdminNotes         string         `gorm:"type:text" json:"admin_notes,omitempty"`              // 审核备注
	RefundRequested    bool           `gorm:"not null;default:false" json:"refund_requested"`      // 是否已选择退款方式
	RefundMethod       string         `gorm:"type:varchar(16)" json:"refund_method,omitempty"`     // 退款方式
	RefundProcessed    bool           `gorm:"not null;default:false" json:"refund_processed"`      // 退款是否完成
	RefundRequestedAt  *time.Time     `json:"refund_requested_at,omitempty"`                       // 选择退款时间
	RefundProcessedAt  *time.Time     `json:"refund_processed_at,omitempty"`                       // 退款完成时间
	PaymentEmail       string         `gorm:"type:varchar(255)" json:"payment_email,omitempty"`    // 收款账号邮箱
	CardLast4          string         `gorm:"type:varchar(4)" json:"card_last4,omitempty"`         // 卡号后四位
	ReplacementOrderID *uint          `gorm:"index" json:"replacement_order_id,omitempty"`         // 补发订单
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`                             // 创建时间
	UpdatedAt          time.Time      `gorm:"index" json:"updated_at"`                             // 更新时间
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`                                      // 软删除时间
}

// TableName 指定表名
func (DamagedItemClaim) TableName() string {
	return "damaged_item_claims"
}

