package models

import "time"

// Notification 客户站内通知
type Notification struct {
	ID        uint       `gorm:"primarykey" json:"id"`                       // 主键
	UserID    uint       `gorm:"index;not null" json:"user_id"`              // 用户ID
	Kind      string     `gorm:"type:varchar(32);index;not null" json:"kind"` // 通知类型
	Title     string     `gorm:"type:varchar(255);not null" json:"title"`    // 标题
	Body      string     `gorm:"type:text" json:"body"`                      // 内容
	PackageID *uint      `gorm:"index" json:"package_id,omitempty"`          // 关联包裹
	ReadAt    *time.Time `json:"read_at,omitempty"`                          // 已读时间
	CreatedAt time.Time  `gorm:"index" json:"created_at"`                    // 创建时间
}

// TableName 指定表名
func (Notification) TableName() string {
	return "notifications"
}

// ChangeEvent 实体变更事件，消费方按实体类型与 ID 精确刷新
type ChangeEvent struct {
	ID         uint      `gorm:"primarykey" json:"id"`                              // 主键（同时作为游标）
	UserID     uint      `gorm:"index;not null" json:"user_id"`                     // 用户ID
	EntityType string    `gorm:"type:varchar(32);index;not null" json:"entity_type"` // 实体类型
	EntityID   uint      `gorm:"index;not null" json:"entity_id"`                   // 实体ID
	Action     string    `gorm:"type:varchar(64);not null" json:"action"`           // 触发动作
	Version    uint      `gorm:"not null;default:0" json:"version"`                 // 实体版本
	CreatedAt  time.Time `gorm:"index" json:"created_at"`                           // 创建时间
}

// TableName 指定表名
func (ChangeEvent) TableName() string {
	return "change_events"
}
