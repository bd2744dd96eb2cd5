package models

import (
	"time"

	"gorm.io/gorm"
)

// Order 采购订单表，订单创建流程在外部，此处只承载履约引用与补发订单
type Order struct {
	ID          uint           `gorm:"primarykey" json:"id"`                                       // 主键
	UserID      uint           `gorm:"index;not null" json:"user_id"`                              // 用户ID
	AddressID   *uint          `gorm:"index" json:"address_id,omitempty"`                          // 绑定收货地址
	Status      string         `gorm:"index;not null" json:"status"`                               // 订单状态
	TotalAmount Money          `gorm:"type:decimal(20,0);not null;default:0" json:"total_amount"`  // 订单金额
	Note        string         `gorm:"type:text" json:"note,omitempty"`                            // 备注
	SourceClaim *uint          `gorm:"index" json:"source_claim_id,omitempty"`                     // 补发来源的损坏申请
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                                    // 创建时间
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`                                    // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                             // 软删除时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
