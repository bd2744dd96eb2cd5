package models

import "time"

// OrderItem 订单项表
type OrderItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`                                // 主键
	OrderID   uint      `gorm:"index;not null" json:"order_id"`                      // 订单ID
	Title     string    `gorm:"type:varchar(500);not null" json:"title"`             // 商品标题
	Variant   string    `gorm:"type:varchar(255)" json:"variant,omitempty"`          // 规格
	Price     Money     `gorm:"type:decimal(20,0);not null;default:0" json:"price"`  // 单价
	Quantity  int       `gorm:"not null;default:1" json:"quantity"`                  // 数量
	CreatedAt time.Time `gorm:"index" json:"created_at"`                             // 创建时间
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`                             // 更新时间
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
