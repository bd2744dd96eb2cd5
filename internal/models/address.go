package models

import (
	"time"

	"gorm.io/gorm"
)

// Address 收货地址表
type Address struct {
	ID           uint           `gorm:"primarykey" json:"id"`                          // 主键
	UserID       uint           `gorm:"index;not null" json:"user_id"`                 // 用户ID
	Name         string         `gorm:"type:varchar(120);not null" json:"name"`        // 收件人
	Address      string         `gorm:"type:varchar(255);not null" json:"address"`     // 街道地址
	Apartment    string         `gorm:"type:varchar(120)" json:"apartment"`            // 门牌/公寓
	City         string         `gorm:"type:varchar(120);not null" json:"city"`        // 城市
	State        string         `gorm:"type:varchar(120)" json:"state"`                // 州/省
	PostalCode   string         `gorm:"type:varchar(32)" json:"postal_code"`           // 邮编
	Country      string         `gorm:"type:varchar(80);not null" json:"country"`      // 国家
	PhoneNumber  string         `gorm:"type:varchar(40)" json:"phone_number"`          // 电话
	IsCommercial bool           `gorm:"not null;default:false" json:"is_commercial"`   // 是否商业地址
	SSNNumber    string         `gorm:"type:varchar(64)" json:"ssn_number,omitempty"`  // 个人税号/证件号
	TaxIDType    string         `gorm:"type:varchar(32)" json:"tax_id_type,omitempty"` // 税号类型
	TaxIDNumber  string         `gorm:"type:varchar(64)" json:"tax_id_number,omitempty"`
	CompanyName  string         `gorm:"type:varchar(160)" json:"company_name,omitempty"` // 公司名称
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`                         // 创建时间
	UpdatedAt    time.Time      `gorm:"index" json:"updated_at"`                         // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                                  // 软删除时间
}

// TableName 指定表名
func (Address) TableName() string {
	return "addresses"
}
