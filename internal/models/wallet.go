package models

import "time"

// WalletAccount 用户余额账户
type WalletAccount struct {
	ID        uint      `gorm:"primarykey" json:"id"`                                   // 主键
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`                    // 用户ID
	Balance   Money     `gorm:"type:decimal(20,0);not null;default:0" json:"balance"`   // 余额
	CreatedAt time.Time `json:"created_at"`                                             // 创建时间
	UpdatedAt time.Time `json:"updated_at"`                                             // 更新时间
}

// TableName 指定表名
func (WalletAccount) TableName() string {
	return "wallet_accounts"
}

// WalletTransaction 余额流水
type WalletTransaction struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                        // 主键
	UserID        uint      `gorm:"index;not null" json:"user_id"`                               // 用户ID
	PackageID     *uint     `gorm:"index" json:"package_id,omitempty"`                           // 关联包裹
	Type          string    `gorm:"type:varchar(32);index;not null" json:"type"`                 // 交易类型
	Direction     string    `gorm:"type:varchar(8);not null" json:"direction"`                   // 收支方向
	Amount        Money     `gorm:"type:decimal(20,0);not null" json:"amount"`                   // 金额
	BalanceBefore Money     `gorm:"type:decimal(20,0);not null" json:"balance_before"`           // 变动前余额
	BalanceAfter  Money     `gorm:"type:decimal(20,0);not null" json:"balance_after"`            // 变动后余额
	Currency      string    `gorm:"type:varchar(8);not null" json:"currency"`                    // 币种
	Reference     string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"reference"`     // 幂等引用
	Remark        string    `gorm:"type:varchar(255)" json:"remark"`                             // 备注
	CreatedAt     time.Time `gorm:"index" json:"created_at"`                                     // 创建时间
}

// TableName 指定表名
func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
