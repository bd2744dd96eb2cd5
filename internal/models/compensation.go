package models

import (
	"time"

	"gorm.io/gorm"
)

// CompensationRequest 运输途中丢失/损坏理赔申请表
type CompensationRequest struct {
	ID                 uint           `gorm:"primarykey" json:"id"`                                    // 主键
	PackageID          uint           `gorm:"index;not null" json:"package_id"`                        // 包裹ID
	UserID             uint           `gorm:"index;not null" json:"user_id"`                           // 用户ID
	Carrier            string         `gorm:"type:varchar(16);not null" json:"carrier"`                // 承运商
	CompensationType   string         `gorm:"type:varchar(16);not null" json:"compensation_type"`      // 理赔类型
	Description        string         `gorm:"type:text;not null" json:"description"`                   // 问题描述
	Files              StringArray    `gorm:"type:text" json:"files"`                                  // 证据文件
	DamageCertificate  string         `gorm:"type:varchar(500)" json:"damage_certificate,omitempty"`   // 承运商损坏证明
	SelectedPackageIDs IDSet          `gorm:"type:text" json:"selected_package_ids"`                   // 涉及的包裹
	Status             string         `gorm:"index;not null" json:"status"`                            // 审核状态
	ApprovedForRefund  bool           `gorm:"not null;default:false" json:"approved_for_refund"`       // 资金确认后才允许选择退款方式
	RefundRequested    bool           `gorm:"not null;default:false" json:"refund_requested"`          // 是否已选择退款方式
	RefundMethod       string         `gorm:"type:varchar(16)" json:"refund_method,omitempty"`         // 退款方式
	RefundProcessed    bool           `gorm:"not null;default:false" json:"refund_processed"`          // 退款是否完成
	PaymentEmail       string         `gorm:"type:varchar(255)" json:"payment_email,omitempty"`        // 收款账号邮箱
	CardLast4          string         `gorm:"type:varchar(4)" json:"card_last4,omitempty"`             // 卡号后四位
	AdminNotes         string         `gorm:"type:text" json:"admin_notes,omitempty"`                  // 当前审核备注
	AdminNotesHistory  StringArray    `gorm:"type:text" json:"admin_notes_history"`                    // 历史审核备注
	ResubmittedAt      *time.Time     `json:"resubmitted_at,omitempty"`                                // 最近重新提交时间
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`                                 // 创建时间
	UpdatedAt          time.Time      `gorm:"index" json:"updated_at"`                                 // 更新时间
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`                                          // 软删除时间
}

// TableName 指定表名
func (CompensationRequest) TableName() string {
	return "compensation_requests"
}

