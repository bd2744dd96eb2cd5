package service

import (
	"time"

	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/models"
)

// 仓储状态
const (
	StorageStatusFree    = "free"
	StorageStatusPaid    = "paid"
	StorageStatusExpired = "expired"
)

const day = 24 * time.Hour

// StorageInfo 仓储计费信息
type StorageInfo struct {
	TotalDays         int          `json:"total_days"`
	FreeDaysRemaining int          `json:"free_days_remaining"`
	UnpaidDays        int          `json:"unpaid_days"`
	DaysUntilDisposal int          `json:"days_until_disposal"`
	CurrentFee        models.Money `json:"current_fee"`
	IsExpired         bool         `json:"is_expired"`
	CanShip           bool         `json:"can_ship"`
	Status            string       `json:"status"`
}

// CalculateStorage 免费 60 天，之后每天 30 円；连续 10 天未付即到期
// 未付天数从最近一次付款起算，从未付款时从入库后第 60 天起算
func CalculateStorage(arrivedAt time.Time, lastPayment *time.Time, now time.Time) StorageInfo {
	info := StorageInfo{
		DaysUntilDisposal: constants.StorageMaxUnpaidDays,
		CurrentFee:        models.Yen(0),
		Status:            StorageStatusFree,
	}
	info.TotalDays = int(now.Sub(arrivedAt) / day)
	if info.TotalDays < 0 {
		info.TotalDays = 0
	}

	if info.TotalDays <= constants.StorageFreeDays {
		info.FreeDaysRemaining = constants.StorageFreeDays - info.TotalDays
	} else {
		info.Status = StorageStatusPaid
		start := arrivedAt.Add(constants.StorageFreeDays * day)
		if lastPayment != nil {
			start = *lastPayment
		}
		unpaid := int(now.Sub(start) / day)
		if unpaid < 0 {
			unpaid = 0
		}
		info.UnpaidDays = unpaid
		info.CurrentFee = models.Yen(int64(unpaid * constants.StorageFeePerDay))
		info.DaysUntilDisposal = constants.StorageMaxUnpaidDays - unpaid
		if info.DaysUntilDisposal < 0 {
			info.DaysUntilDisposal = 0
		}
		if unpaid >= constants.StorageMaxUnpaidDays {
			info.Status = StorageStatusExpired
		}
	}

	info.IsExpired = info.Status == StorageStatusExpired
	info.CanShip = !info.IsExpired && info.UnpaidDays == 0
	return info
}

// StorageOf 包裹当前仓储信息
func StorageOf(pkg *models.Package, now time.Time) StorageInfo {
	return CalculateStorage(pkg.ArrivedAt, pkg.LastStoragePayment, now)
}
