package repository

import (
	"errors"
	"time"
)

// ErrVersionConflict 乐观锁版本不匹配
var ErrVersionConflict = errors.New("version conflict")

// PackageListFilter 查询包裹列表的过滤条件
type PackageListFilter struct {
	UserID   uint
	Statuses []string
	Page     int
	PageSize int
}

// WalletTransactionListFilter 查询钱包流水列表的过滤条件
type WalletTransactionListFilter struct {
	Page        int
	PageSize    int
	UserID      uint
	PackageID   uint
	Type        string
	Direction   string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// ClaimListFilter 查询损坏/理赔申请列表的过滤条件
type ClaimListFilter struct {
	Page      int
	PageSize  int
	UserID    uint
	PackageID uint
	Status    string
	Keyword   string // 模糊匹配描述与审核备注
}

// ChangeListFilter 查询变更事件的过滤条件
type ChangeListFilter struct {
	UserID     uint
	SinceID    uint
	EntityType string
	Limit      int
}

// NotificationListFilter 查询通知列表的过滤条件
type NotificationListFilter struct {
	Page       int
	PageSize   int
	UserID     uint
	UnreadOnly bool
}
