package service

import (
	"context"
	"fmt"

	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/logger"
	"github.com/parcel-relay/internal/models"

	"gorm.io/gorm"
)

// PaymentResult 单项付款结果
type PaymentResult struct {
	Package *models.Package `json:"package"`
	// Packages 共享国内段账单时一并标记的包裹
	Packages []models.Package `json:"packages,omitempty"`
	Charged  models.Money     `json:"charged"`
}

// PaymentService 包裹相关的单项付款：国内段、追加运费、取消费、仓储费与销毁费
type PaymentService struct {
	fulfillmentCore
}

// NewPaymentService 创建付款服务
func NewPaymentService(deps FulfillmentDeps) *PaymentService {
	return &PaymentService{fulfillmentCore: newFulfillmentCore(deps)}
}

// PayDomesticShipping 支付国内段运费；同一账单分组只扣一次，任一包裹已付则拒绝
func (s *PaymentService) PayDomesticShipping(ctx context.Context, userID, packageID uint) (*PaymentResult, error) {
	result := &PaymentResult{Charged: models.Yen(0)}
	err := s.run(ctx, []uint{packageID}, func(tx *gorm.DB, changes *ChangeSet) error {
		pkg, err := s.loadOwned(tx, userID, packageID)
		if err != nil {
			return err
		}
		var reasons reasonSet
		reasons.merge(statusReasons(pkg))
		reasons.add(pkg.DomesticShippingPaid, ReasonAlreadyPaid)
		reasons.add(!pkg.DomesticShippingPaid && !pkg.DomesticShippingCost.IsPositive(), ReasonNothingToPay)

		group := []models.Package{*pkg}
		if pkg.SharedDomesticGroup != "" {
			group, err = s.PackageRepo.WithTx(tx).ListByDomesticGroupForUpdate(pkg.UserID, pkg.SharedDomesticGroup)
			if err != nil {
				return err
			}
			for i := range group {
				reasons.add(group[i].DomesticShippingPaid, ReasonAlreadyPaid)
			}
		}
		if len(reasons) > 0 {
			return &IneligibleTransitionError{Action: ActionPayDomestic, Reasons: reasons}
		}

		amount := pkg.DomesticShippingCost
		if err := s.requireFunds(tx, pkg.UserID, amount); err != nil {
			return err
		}
		if err := s.charge(tx, pkg, constants.WalletTxnTypeShipping, "domestic", amount, "Domestic shipping"); err != nil {
			return err
		}
		for i := range group {
			member := &group[i]
			if member.ID == pkg.ID {
				member = pkg
			}
			member.DomesticShippingPaid = true
			if err := s.save(tx, member); err != nil {
				return err
			}
			if err := changes.Package(tx, member, ActionPayDomestic); err != nil {
				return err
			}
			result.Packages = append(result.Packages, *member)
		}
		if err := changes.Record(tx, pkg.UserID, constants.ChangeEntityWallet, pkg.UserID, ActionPayDomestic, 0); err != nil {
			return err
		}
		result.Package = pkg
		result.Charged = amount
		return changes.Notify(tx, pkg.UserID, constants.NotificationKindPackage,
			"Domestic shipping paid",
			fmt.Sprintf("Domestic shipping of ¥%s paid for %d package(s).", amount.String(), len(group)),
			uintPtr(pkg.ID))
	})
	if err != nil {
		return nil, err
	}
	logPayment(ActionPayDomestic, userID, packageID, result.Charged)
	return result, nil
}

// PayAdditionalShipping 支付仓库追加的运费
func (s *PaymentService) PayAdditionalShipping(ctx context.Context, userID, packageID uint) (*PaymentResult, error) {
	return s.payOnce(ctx, userID, packageID, ActionPayAdditional, func(_ *gorm.DB, pkg *models.Package) (models.Money, []BlockReason, error) {
		var reasons reasonSet
		reasons.add(pkg.Status == constants.PackageStatusDisposed, ReasonDisposed)
		reasons.add(pkg.Status == constants.PackageStatusCancelled, ReasonPurchaseCancelled)
		reasons.add(pkg.Consolidation().IsMember(), ReasonAbsorbed)
		reasons.add(pkg.AdditionalShippingPaid, ReasonAlreadyPaid)
		reasons.add(!pkg.AdditionalShippingPaid && !pkg.AdditionalShippingCost.IsPositive(), ReasonNothingToPay)
		return pkg.AdditionalShippingCost, reasons, nil
	}, func(_ *gorm.DB, pkg *models.Package, _ models.Money) error {
		pkg.AdditionalShippingPaid = true
		return nil
	}, constants.WalletTxnTypeShipping, "additional", "Additional shipping")
}

// PayCancellationFee 取消采购进入待付款后支付取消费
func (s *PaymentService) PayCancellationFee(ctx context.Context, userID, packageID uint) (*PaymentResult, error) {
	return s.payOnce(ctx, userID, packageID, ActionPayCancellation, func(_ *gorm.DB, pkg *models.Package) (models.Money, []BlockReason, error) {
		var reasons reasonSet
		reasons.merge(statusReasons(pkg))
		reasons.add(!pkg.CancelPurchase, ReasonCancelPurchaseNotActive)
		reasons.add(pkg.CancelPurchasePaid, ReasonAlreadyPaid)
		reasons.add(pkg.CancelPurchase && !pkg.CancelPurchasePaid &&
			pkg.CancelPurchaseStatus != constants.CancelPurchaseStatusAwaitingPayment, ReasonCancelNotAwaitingFee)
		return models.Yen(constants.CancelPurchaseFee), reasons, nil
	}, func(_ *gorm.DB, pkg *models.Package, _ models.Money) error {
		pkg.CancelPurchasePaid = true
		pkg.CancelPurchaseStatus = constants.CancelPurchaseStatusPaid
		return nil
	}, constants.WalletTxnTypeServiceCharge, "cancel_fee", "Purchase cancellation fee")
}

// PayStorage 支付截至当前的仓储费
func (s *PaymentService) PayStorage(ctx context.Context, userID, packageID uint) (*PaymentResult, error) {
	return s.payOnce(ctx, userID, packageID, ActionPayStorage, func(_ *gorm.DB, pkg *models.Package) (models.Money, []BlockReason, error) {
		info := StorageOf(pkg, s.now())
		fee := info.CurrentFee
		var reasons reasonSet
		reasons.merge(statusReasons(pkg))
		reasons.add(pkg.ShippingRequested, ReasonShippingRequested)
		reasons.add(info.IsExpired, ReasonStorageExpired)
		reasons.add(!info.IsExpired && !fee.IsPositive(), ReasonNothingToPay)
		return fee, reasons, nil
	}, func(_ *gorm.DB, pkg *models.Package, fee models.Money) error {
		now := s.now()
		pkg.LastStoragePayment = &now
		pkg.StorageFeesAmount = pkg.StorageFeesAmount.Add(fee)
		pkg.StorageWarningSentAt = nil
		return nil
	}, constants.WalletTxnTypeStorage, "storage", "Storage fee")
}

// RequestDisposal 申请销毁并立即扣除销毁费；系统合并包裹上的客户合箱选择一并取消
func (s *PaymentService) RequestDisposal(ctx context.Context, userID, packageID uint) (*PaymentResult, error) {
	return s.payOnce(ctx, userID, packageID, ActionDispose, func(tx *gorm.DB, pkg *models.Package) (models.Money, []BlockReason, error) {
		facts, err := s.facts(tx, pkg)
		if err != nil {
			return models.Yen(0), nil, err
		}
		return DisposalCost(pkg.WeightKg()), DisposalBlockers(pkg, facts), nil
	}, s.markDisposalRequested, constants.WalletTxnTypeServiceCharge, "disposal", "Package disposal")
}

// chargeRule 返回应付金额与阻断原因
type chargeRule func(tx *gorm.DB, pkg *models.Package) (models.Money, []BlockReason, error)

// chargeApply 扣款成功后更新包裹
type chargeApply func(tx *gorm.DB, pkg *models.Package, amount models.Money) error

// payOnce 单包裹单项付款的公共流程
func (s *PaymentService) payOnce(ctx context.Context, userID, packageID uint, action Action, rule chargeRule, apply chargeApply, txnType, purpose, remark string) (*PaymentResult, error) {
	result := &PaymentResult{Charged: models.Yen(0)}
	err := s.run(ctx, []uint{packageID}, func(tx *gorm.DB, changes *ChangeSet) error {
		pkg, err := s.loadOwned(tx, userID, packageID)
		if err != nil {
			return err
		}
		amount, reasons, err := rule(tx, pkg)
		if err != nil {
			return err
		}
		if len(reasons) > 0 {
			return &IneligibleTransitionError{Action: action, Reasons: reasons}
		}
		if err := s.requireFunds(tx, pkg.UserID, amount); err != nil {
			return err
		}
		if err := s.charge(tx, pkg, txnType, purpose, amount, remark); err != nil {
			return err
		}
		if err := apply(tx, pkg, amount); err != nil {
			return err
		}
		if err := s.save(tx, pkg); err != nil {
			return err
		}
		if err := changes.Package(tx, pkg, action); err != nil {
			return err
		}
		if amount.IsPositive() {
			if err := changes.Record(tx, pkg.UserID, constants.ChangeEntityWallet, pkg.UserID, action, 0); err != nil {
				return err
			}
		}
		result.Package = pkg
		result.Charged = amount
		return changes.Notify(tx, pkg.UserID, constants.NotificationKindPackage,
			remark,
			fmt.Sprintf("%s for package #%d: ¥%s charged.", remark, pkg.ID, amount.String()),
			uintPtr(pkg.ID))
	})
	if err != nil {
		return nil, err
	}
	logPayment(action, userID, packageID, result.Charged)
	return result, nil
}

func (s *PaymentService) markDisposalRequested(tx *gorm.DB, pkg *models.Package, cost models.Money) error {
	if pkg.Consolidation().OptedIn() {
		if err := s.clearOptIn(tx, pkg); err != nil {
			return err
		}
	}
	pkg.DisposalRequested = true
	pkg.DisposalCost = &cost
	pkg.DisposalDeclineReason = ""
	return nil
}

func logPayment(action Action, userID, packageID uint, amount models.Money) {
	logger.Infow("package_payment_committed",
		"action", string(action),
		"package_id", packageID,
		"user_id", userID,
		"amount", amount.String(),
	)
}
