package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/logger"
	"github.com/parcel-relay/internal/models"

	"gorm.io/gorm"
)

// CancelPurchaseDecision 仓库处理取消采购
type CancelPurchaseDecision struct {
	Approve bool
	// Refund 通过时是否把商品金额退回余额
	Refund bool
	Notes  string
}

// WarehouseDetailsInput 仓库录入的包裹信息，nil 表示不修改
type WarehouseDetailsInput struct {
	WeightKg             *float64
	ShippingCost         *models.Money
	DomesticShippingCost *models.Money
	PackagePhoto         *string
	Notes                *string
}

// AdminFulfillmentService 仓库侧的状态推进
type AdminFulfillmentService struct {
	fulfillmentCore
}

// NewAdminFulfillmentService 创建仓库履约服务
func NewAdminFulfillmentService(deps FulfillmentDeps) *AdminFulfillmentService {
	return &AdminFulfillmentService{fulfillmentCore: newFulfillmentCore(deps)}
}

// packageMutation 校验并修改包裹，返回阻断原因与给客户的通知
type packageMutation func(tx *gorm.DB, changes *ChangeSet, pkg *models.Package) ([]BlockReason, string, error)

func (s *AdminFulfillmentService) update(ctx context.Context, packageID uint, action Action, title string, mutate packageMutation) (*models.Package, error) {
	var updated *models.Package
	err := s.run(ctx, []uint{packageID}, func(tx *gorm.DB, changes *ChangeSet) error {
		pkg, err := s.loadOwned(tx, 0, packageID)
		if err != nil {
			return err
		}
		reasons, message, err := mutate(tx, changes, pkg)
		if err != nil {
			return err
		}
		if len(reasons) > 0 {
			return &IneligibleTransitionError{Action: action, Reasons: reasons}
		}
		if err := s.save(tx, pkg); err != nil {
			return err
		}
		if err := changes.Package(tx, pkg, action); err != nil {
			return err
		}
		updated = pkg
		if message == "" {
			return nil
		}
		return changes.Notify(tx, pkg.UserID, constants.NotificationKindPackage, title, message, uintPtr(pkg.ID))
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("package_admin_update", "action", string(action), "package_id", packageID, "status", updated.Status)
	return updated, nil
}

// MarkShipped 交付承运商
func (s *AdminFulfillmentService) MarkShipped(ctx context.Context, packageID uint, trackingNumber string) (*models.Package, error) {
	tracking := strings.TrimSpace(trackingNumber)
	if tracking == "" {
		return nil, invalid("tracking_number", "required")
	}
	return s.update(ctx, packageID, ActionMarkShipped, "Package shipped", func(_ *gorm.DB, _ *ChangeSet, pkg *models.Package) ([]BlockReason, string, error) {
		if pkg.Status != constants.PackageStatusPendingShipping || !pkg.InFlight() {
			return []BlockReason{ReasonNotInFlight}, "", nil
		}
		now := s.now()
		pkg.Status = constants.PackageStatusShipped
		pkg.TrackingNumber = tracking
		pkg.ShippedAt = &now
		return nil, fmt.Sprintf("Package #%d has shipped. Tracking number: %s.", pkg.ID, tracking), nil
	})
}

// MarkDelivered 确认签收
func (s *AdminFulfillmentService) MarkDelivered(ctx context.Context, packageID uint) (*models.Package, error) {
	return s.update(ctx, packageID, ActionMarkDelivered, "Package delivered", func(tx *gorm.DB, changes *ChangeSet, pkg *models.Package) ([]BlockReason, string, error) {
		if pkg.Status != constants.PackageStatusShipped {
			return []BlockReason{ReasonNotShipped}, "", nil
		}
		now := s.now()
		pkg.Status = constants.PackageStatusDelivered
		pkg.DeliveredAt = &now
		if pkg.ShippingAddressID != nil {
			if err := changes.Record(tx, pkg.UserID, constants.ChangeEntityAddress, *pkg.ShippingAddressID, ActionMarkDelivered, 0); err != nil {
				return nil, "", err
			}
		}
		return nil, fmt.Sprintf("Package #%d has been delivered.", pkg.ID), nil
	})
}

// CompleteDisposal 仓库完成销毁
func (s *AdminFulfillmentService) CompleteDisposal(ctx context.Context, packageID uint) (*models.Package, error) {
	return s.update(ctx, packageID, ActionCompleteDisposal, "Package disposed", func(_ *gorm.DB, _ *ChangeSet, pkg *models.Package) ([]BlockReason, string, error) {
		var reasons reasonSet
		reasons.merge(statusReasons(pkg))
		reasons.add(!pkg.DisposalRequested, ReasonDisposalNotRequested)
		if len(reasons) > 0 {
			return reasons, "", nil
		}
		pkg.Status = constants.PackageStatusDisposed
		return nil, fmt.Sprintf("Package #%d has been disposed.", pkg.ID), nil
	})
}

// DeclineDisposal 拒绝销毁并自动退回销毁费
func (s *AdminFulfillmentService) DeclineDisposal(ctx context.Context, packageID uint, reason string) (*models.Package, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("reason", "required")
	}
	return s.update(ctx, packageID, ActionDeclineDisposal, "Disposal declined", func(tx *gorm.DB, changes *ChangeSet, pkg *models.Package) ([]BlockReason, string, error) {
		var reasons reasonSet
		reasons.merge(statusReasons(pkg))
		reasons.add(!pkg.DisposalRequested, ReasonDisposalNotRequested)
		if len(reasons) > 0 {
			return reasons, "", nil
		}
		refunded := models.Yen(0)
		if pkg.DisposalCost != nil {
			refunded = *pkg.DisposalCost
		}
		reference := fmt.Sprintf("package:%d:disposal_refund:v%d", pkg.ID, pkg.Version)
		if err := s.refund(tx, pkg.UserID, uintPtr(pkg.ID), reference, refunded, "Disposal declined: "+reason); err != nil {
			return nil, "", err
		}
		if refunded.IsPositive() {
			if err := changes.Record(tx, pkg.UserID, constants.ChangeEntityWallet, pkg.UserID, ActionDeclineDisposal, 0); err != nil {
				return nil, "", err
			}
		}
		pkg.DisposalRequested = false
		pkg.DisposalCost = nil
		pkg.DisposalDeclineReason = reason
		return nil, fmt.Sprintf("Disposal of package #%d was declined: %s. ¥%s refunded to your balance.", pkg.ID, reason, refunded.String()), nil
	})
}

// RequestCancelPayment 取消采购确认可行，等待客户支付取消费
func (s *AdminFulfillmentService) RequestCancelPayment(ctx context.Context, packageID uint) (*models.Package, error) {
	return s.update(ctx, packageID, ActionCancelReview, "Cancellation fee due", func(_ *gorm.DB, _ *ChangeSet, pkg *models.Package) ([]BlockReason, string, error) {
		if !pkg.CancelPurchase || pkg.CancelPurchaseStatus != constants.CancelPurchaseStatusPending {
			return []BlockReason{ReasonCancelPurchaseNotActive}, "", nil
		}
		pkg.CancelPurchaseStatus = constants.CancelPurchaseStatusAwaitingPayment
		return nil, fmt.Sprintf("Pay the ¥%d cancellation fee for package #%d to continue.", constants.CancelPurchaseFee, pkg.ID), nil
	})
}

// UpdateCancelPurchase 已付取消费后通过（可选退款）或驳回
// 通过后包裹进入 cancelled 终态，不再出现在列表中，也不能再申请任何服务或退款
func (s *AdminFulfillmentService) UpdateCancelPurchase(ctx context.Context, packageID uint, decision CancelPurchaseDecision) (*models.Package, error) {
	return s.update(ctx, packageID, ActionCancelReview, "Purchase cancellation updated", func(tx *gorm.DB, changes *ChangeSet, pkg *models.Package) ([]BlockReason, string, error) {
		var reasons reasonSet
		reasons.merge(statusReasons(pkg))
		reasons.add(!pkg.CancelPurchase, ReasonCancelPurchaseNotActive)
		reasons.add(pkg.CancelPurchase && pkg.CancelPurchaseStatus != constants.CancelPurchaseStatusPaid, ReasonNotPaidYet)
		if decision.Approve && decision.Refund {
			refunded, err := s.ClaimRepo.WithTx(tx).HasDamagedRefundByPackage(pkg.ID)
			if err != nil {
				return nil, "", err
			}
			reasons.add(refunded, ReasonItemAlreadyRefunded)
		}
		if len(reasons) > 0 {
			return reasons, "", nil
		}
		notes := strings.TrimSpace(decision.Notes)
		if notes != "" {
			pkg.Notes = notes
		}
		if !decision.Approve {
			pkg.CancelPurchaseStatus = constants.CancelPurchaseStatusRejected
			return nil, fmt.Sprintf("The purchase cancellation for package #%d was rejected.", pkg.ID), nil
		}
		if pkg.Consolidation().OptedIn() {
			if err := s.clearOptIn(tx, pkg); err != nil {
				return nil, "", err
			}
		}
		pkg.CancelPurchaseStatus = constants.CancelPurchaseStatusApproved
		pkg.Status = constants.PackageStatusCancelled
		if !decision.Refund {
			return nil, fmt.Sprintf("The purchase cancellation for package #%d was approved.", pkg.ID), nil
		}
		amount, err := s.itemValue(tx, pkg)
		if err != nil {
			return nil, "", err
		}
		reference := fmt.Sprintf("package:%d:cancel_refund", pkg.ID)
		if err := s.refund(tx, pkg.UserID, uintPtr(pkg.ID), reference, amount, "Purchase cancelled"); err != nil {
			return nil, "", err
		}
		if err := changes.Record(tx, pkg.UserID, constants.ChangeEntityWallet, pkg.UserID, ActionCancelReview, 0); err != nil {
			return nil, "", err
		}
		return nil, fmt.Sprintf("The purchase cancellation for package #%d was approved. ¥%s refunded to your balance.", pkg.ID, amount.String()), nil
	})
}

// ChargeAdditional 追加运费，客户另行支付
func (s *AdminFulfillmentService) ChargeAdditional(ctx context.Context, packageID uint, amount models.Money, reason string) (*models.Package, error) {
	reason = strings.TrimSpace(reason)
	if !amount.IsPositive() {
		return nil, invalid("amount", "must be positive")
	}
	if reason == "" {
		return nil, invalid("reason", "required")
	}
	return s.update(ctx, packageID, ActionChargeAdditional, "Additional shipping charge", func(_ *gorm.DB, _ *ChangeSet, pkg *models.Package) ([]BlockReason, string, error) {
		var reasons reasonSet
		reasons.add(pkg.Status == constants.PackageStatusDisposed, ReasonDisposed)
		reasons.add(pkg.Status == constants.PackageStatusCancelled, ReasonPurchaseCancelled)
		reasons.add(pkg.Consolidation().IsMember(), ReasonAbsorbed)
		if len(reasons) > 0 {
			return reasons, "", nil
		}
		pkg.AdditionalShippingCost = amount
		pkg.AdditionalShippingReason = reason
		pkg.AdditionalShippingPaid = false
		return nil, fmt.Sprintf("An additional shipping charge of ¥%s was added to package #%d: %s.", amount.String(), pkg.ID, reason), nil
	})
}

// CompletePhotoService 上传拍照结果
func (s *AdminFulfillmentService) CompletePhotoService(ctx context.Context, packageID uint, photos []string) (*models.Package, error) {
	cleaned := cleanFiles(photos)
	if len(cleaned) == 0 {
		return nil, invalid("photos", "required")
	}
	return s.update(ctx, packageID, ActionPhotoService, "Photos ready", func(_ *gorm.DB, _ *ChangeSet, pkg *models.Package) ([]BlockReason, string, error) {
		if !pkg.PhotoService || pkg.PhotoServiceStatus != constants.ServiceStatusPending {
			return []BlockReason{ReasonServiceNotPending}, "", nil
		}
		pkg.PhotoServiceStatus = constants.ServiceStatusCompleted
		pkg.Photos = cleaned
		return nil, fmt.Sprintf("%d photo(s) of package #%d are ready.", len(cleaned), pkg.ID), nil
	})
}

// CompleteReinforcement 加固完成
func (s *AdminFulfillmentService) CompleteReinforcement(ctx context.Context, packageID uint) (*models.Package, error) {
	return s.update(ctx, packageID, ActionReinforcement, "Reinforcement completed", func(_ *gorm.DB, _ *ChangeSet, pkg *models.Package) ([]BlockReason, string, error) {
		if !pkg.Reinforcement || pkg.ReinforcementStatus != constants.ServiceStatusPending {
			return []BlockReason{ReasonServiceNotPending}, "", nil
		}
		pkg.ReinforcementStatus = constants.ServiceStatusCompleted
		return nil, fmt.Sprintf("Package #%d has been reinforced.", pkg.ID), nil
	})
}

// UpdateWarehouseDetails 录入称重与运费，已发货的包裹不可修改
func (s *AdminFulfillmentService) UpdateWarehouseDetails(ctx context.Context, packageID uint, input WarehouseDetailsInput) (*models.Package, error) {
	if input.WeightKg != nil && *input.WeightKg <= 0 {
		return nil, invalid("weight", "must be positive")
	}
	if input.ShippingCost != nil && input.ShippingCost.IsNegative() {
		return nil, invalid("shipping_cost", "must not be negative")
	}
	if input.DomesticShippingCost != nil && input.DomesticShippingCost.IsNegative() {
		return nil, invalid("domestic_shipping_cost", "must not be negative")
	}
	return s.update(ctx, packageID, ActionSetOptions, "", func(_ *gorm.DB, _ *ChangeSet, pkg *models.Package) ([]BlockReason, string, error) {
		if reasons := statusReasons(pkg); len(reasons) > 0 {
			return reasons, "", nil
		}
		if pkg.ShippingRequested {
			return []BlockReason{ReasonShippingRequested}, "", nil
		}
		if input.WeightKg != nil {
			weight := *input.WeightKg
			pkg.Weight = &weight
		}
		if input.ShippingCost != nil {
			pkg.ShippingCost = *input.ShippingCost
		}
		if input.DomesticShippingCost != nil {
			if pkg.DomesticShippingPaid && !input.DomesticShippingCost.Equal(pkg.DomesticShippingCost.Decimal) {
				return []BlockReason{ReasonAlreadyPaid}, "", nil
			}
			pkg.DomesticShippingCost = *input.DomesticShippingCost
		}
		if input.PackagePhoto != nil {
			pkg.PackagePhoto = strings.TrimSpace(*input.PackagePhoto)
		}
		if input.Notes != nil {
			pkg.Notes = strings.TrimSpace(*input.Notes)
		}
		return nil, "", nil
	})
}
