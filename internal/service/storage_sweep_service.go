package service

import (
	"context"
	"fmt"
	"time"

	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/logger"
	"github.com/parcel-relay/internal/models"

	"gorm.io/gorm"
)

const (
	storageWarningWindowDays = 3
	storageWarningInterval   = 48 * time.Hour
)

// StorageSweepResult 一次巡检的处理结果
type StorageSweepResult struct {
	Checked  int    `json:"checked"`
	Warned   []uint `json:"warned"`
	Disposed []uint `json:"disposed"`
	Failed   []uint `json:"failed"`
}

// StorageSweepService 仓储到期巡检：临近到期提醒，到期自动销毁
type StorageSweepService struct {
	fulfillmentCore
}

// NewStorageSweepService 创建仓储巡检服务
func NewStorageSweepService(deps FulfillmentDeps) *StorageSweepService {
	return &StorageSweepService{fulfillmentCore: newFulfillmentCore(deps)}
}

type sweepOutcome int

const (
	sweepNone sweepOutcome = iota
	sweepWarned
	sweepDisposed
)

// Sweep 逐个包裹处理，单个失败不影响其他包裹
func (s *StorageSweepService) Sweep(ctx context.Context) (*StorageSweepResult, error) {
	pkgs, err := s.PackageRepo.ListAwaitingDecision()
	if err != nil {
		return nil, err
	}
	result := &StorageSweepResult{Warned: []uint{}, Disposed: []uint{}, Failed: []uint{}}
	now := s.now()
	for i := range pkgs {
		pkg := &pkgs[i]
		if !sweepCandidate(pkg, StorageOf(pkg, now), now) {
			continue
		}
		result.Checked++
		outcome, err := s.sweepPackage(ctx, pkg.ID)
		if err != nil {
			logger.Warnw("storage_sweep_package_failed", "package_id", pkg.ID, "error", err)
			result.Failed = append(result.Failed, pkg.ID)
			continue
		}
		switch outcome {
		case sweepWarned:
			result.Warned = append(result.Warned, pkg.ID)
		case sweepDisposed:
			result.Disposed = append(result.Disposed, pkg.ID)
		}
	}
	logger.Infow("storage_sweep_completed",
		"checked", result.Checked,
		"warned", len(result.Warned),
		"disposed", len(result.Disposed),
		"failed", len(result.Failed),
	)
	return result, nil
}

// sweepCandidate 事务外预筛，事务内会重新判定
func sweepCandidate(pkg *models.Package, info StorageInfo, now time.Time) bool {
	if pkg.Consolidation().IsMember() || pkg.ShippingRequested || pkg.DisposalRequested {
		return false
	}
	if info.IsExpired {
		return true
	}
	return warningDue(pkg, info, now)
}

func warningDue(pkg *models.Package, info StorageInfo, now time.Time) bool {
	if info.UnpaidDays == 0 || info.DaysUntilDisposal > storageWarningWindowDays {
		return false
	}
	return pkg.StorageWarningSentAt == nil || now.Sub(*pkg.StorageWarningSentAt) >= storageWarningInterval
}

func (s *StorageSweepService) sweepPackage(ctx context.Context, packageID uint) (sweepOutcome, error) {
	outcome := sweepNone
	err := s.run(ctx, []uint{packageID}, func(tx *gorm.DB, changes *ChangeSet) error {
		pkg, err := s.loadOwned(tx, 0, packageID)
		if err != nil {
			return err
		}
		if !pkg.AwaitingDecision() {
			return nil
		}
		now := s.now()
		info := StorageOf(pkg, now)
		if !sweepCandidate(pkg, info, now) {
			return nil
		}
		var title, body string
		if info.IsExpired {
			if pkg.Consolidation().OptedIn() {
				if err := s.clearOptIn(tx, pkg); err != nil {
					return err
				}
			}
			pkg.Status = constants.PackageStatusDisposed
			title = "Package disposed"
			body = fmt.Sprintf("Package #%d was disposed after %d days of unpaid storage.", pkg.ID, info.UnpaidDays)
			outcome = sweepDisposed
		} else {
			pkg.StorageWarningSentAt = &now
			title = "Storage fee due"
			body = fmt.Sprintf("Package #%d has ¥%s in unpaid storage fees and will be disposed in %d day(s) unless paid.",
				pkg.ID, info.CurrentFee.String(), info.DaysUntilDisposal)
			outcome = sweepWarned
		}
		if err := s.save(tx, pkg); err != nil {
			return err
		}
		if err := changes.Package(tx, pkg, ActionStorageSweep); err != nil {
			return err
		}
		return changes.Notify(tx, pkg.UserID, constants.NotificationKindStorage, title, body, uintPtr(pkg.ID))
	})
	if err != nil {
		return sweepNone, err
	}
	return outcome, nil
}
