package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/parcel-relay/internal/carrier"
	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/logger"
	"github.com/parcel-relay/internal/models"

	"gorm.io/gorm"
)

// PackageOptionsInput 客户修改包裹选项，nil 表示保持不变
type PackageOptionsInput struct {
	ShippingMethod      *string
	PhotoService        *bool
	Reinforcement       *bool
	CancelPurchase      *bool
	AdditionalInsurance *models.Money
	Consolidation       *bool
	ConsolidateWith     []uint
}

// PackageOptionsResult 修改结果
type PackageOptionsResult struct {
	Package *models.Package
	Charged models.Money
	Changed bool
}

// PackageOptionService 包裹增值服务与合箱选择
type PackageOptionService struct {
	fulfillmentCore
	consolidation *ConsolidationService
}

// NewPackageOptionService 创建包裹选项服务
func NewPackageOptionService(deps FulfillmentDeps, consolidation *ConsolidationService) *PackageOptionService {
	return &PackageOptionService{fulfillmentCore: newFulfillmentCore(deps), consolidation: consolidation}
}

// optionDiff 与当前状态比较后的实际变更
type optionDiff struct {
	photo         *bool
	reinforcement *bool
	cancel        *bool
	insurance     *models.Money
	method        string
	consolidation *bool
	members       models.IDSet
}

func (d optionDiff) optingIn() bool {
	return d.consolidation != nil && *d.consolidation
}

func (d optionDiff) empty() bool {
	return d.photo == nil && d.reinforcement == nil && d.cancel == nil &&
		d.insurance == nil && d.method == "" && d.consolidation == nil
}

func diffOptions(pkg *models.Package, input PackageOptionsInput) optionDiff {
	var d optionDiff
	if input.PhotoService != nil && *input.PhotoService != pkg.PhotoService {
		d.photo = input.PhotoService
	}
	if input.Reinforcement != nil && *input.Reinforcement != pkg.Reinforcement {
		d.reinforcement = input.Reinforcement
	}
	if input.CancelPurchase != nil && *input.CancelPurchase != pkg.CancelPurchase {
		d.cancel = input.CancelPurchase
	}
	if input.AdditionalInsurance != nil && !input.AdditionalInsurance.Equal(pkg.AdditionalInsurance.Decimal) {
		amount := *input.AdditionalInsurance
		d.insurance = &amount
	}

	method := ""
	if input.ShippingMethod != nil {
		method = strings.ToLower(strings.TrimSpace(*input.ShippingMethod))
	}
	state := pkg.Consolidation()
	wantOptIn := state.OptedIn()
	if input.Consolidation != nil {
		wantOptIn = *input.Consolidation
	}
	members := state.Members
	if input.ConsolidateWith != nil {
		members = models.NewIDSet(input.ConsolidateWith...)
	}
	switch {
	case wantOptIn && (!state.OptedIn() || !members.Equal(state.Members) || (method != "" && method != pkg.ShippingMethod)):
		on := true
		d.consolidation = &on
		d.members = members
		d.method = method
		return d
	case !wantOptIn && state.OptedIn():
		off := false
		d.consolidation = &off
	}
	if method != "" && method != pkg.ShippingMethod {
		d.method = method
	}
	return d
}

// SetPackageOptions 修改包裹选项：同一请求的全部扣款与标记在一个事务内完成，重复提交不重复扣费
func (s *PackageOptionService) SetPackageOptions(ctx context.Context, userID, packageID uint, input PackageOptionsInput) (*PackageOptionsResult, error) {
	if input.ShippingMethod != nil && !carrier.ValidMethod(strings.ToLower(strings.TrimSpace(*input.ShippingMethod))) {
		return nil, invalid("shipping_method", "unsupported")
	}
	if input.AdditionalInsurance != nil && input.AdditionalInsurance.IsNegative() {
		return nil, invalid("additional_insurance", "must not be negative")
	}
	if input.Consolidation != nil && !*input.Consolidation && len(input.ConsolidateWith) > 0 {
		return nil, invalid("consolidate_with", "requires consolidation")
	}

	lockIDs := append([]uint{packageID}, input.ConsolidateWith...)
	result := &PackageOptionsResult{Charged: models.Yen(0)}
	err := s.run(ctx, lockIDs, func(tx *gorm.DB, changes *ChangeSet) error {
		pkg, err := s.loadOwned(tx, userID, packageID)
		if err != nil {
			return err
		}
		result.Package = pkg
		diff := diffOptions(pkg, input)
		if diff.empty() && !resubmitsMergeSet(pkg, input) {
			return nil
		}
		facts, err := s.facts(tx, pkg)
		if err != nil {
			return err
		}
		if diff.empty() {
			// 重复提交同一合箱集合不扣费不写入，但成员资格必须重新成立
			_, err := s.consolidation.validateMergeSet(tx, pkg, facts, pkg.Consolidation().Members, pkg.ShippingMethod)
			return err
		}

		reasons, err := s.optionReasons(tx, pkg, facts, diff)
		if err != nil {
			return err
		}
		if len(reasons) > 0 {
			return &IneligibleTransitionError{Action: ActionSetOptions, Reasons: reasons}
		}

		var plan *mergePlan
		if diff.optingIn() {
			plan, err = s.consolidation.validateMergeSet(tx, pkg, facts, diff.members, diff.method)
			if err != nil {
				return err
			}
		}

		photoFee := models.Yen(0)
		if diff.photo != nil && *diff.photo && !pkg.PhotoServicePaid {
			photoFee = models.Yen(constants.PhotoServicePrice)
		}
		reinforcementFee := models.Yen(0)
		if diff.reinforcement != nil && *diff.reinforcement && !pkg.ReinforcementPaid {
			reinforcementFee = models.Yen(constants.ReinforcementPrice)
		}
		insuranceFee := models.Yen(0)
		if diff.insurance != nil {
			insuranceFee = InsuranceDelta(pkg.AdditionalInsurance, *diff.insurance)
		}
		total := photoFee.Add(reinforcementFee).Add(insuranceFee)
		if err := s.requireFunds(tx, pkg.UserID, total); err != nil {
			return err
		}
		if err := s.charge(tx, pkg, constants.WalletTxnTypeServiceCharge, "photo", photoFee, "Photo service"); err != nil {
			return err
		}
		if err := s.charge(tx, pkg, constants.WalletTxnTypeServiceCharge, "reinforcement", reinforcementFee, "Package reinforcement"); err != nil {
			return err
		}
		if diff.insurance != nil {
			coverage := models.Yen(constants.InsuranceBaseline).Add(*diff.insurance)
			remark := fmt.Sprintf("Insurance coverage raised to ¥%s", coverage.String())
			if err := s.charge(tx, pkg, constants.WalletTxnTypeServiceCharge, "insurance", insuranceFee, remark); err != nil {
				return err
			}
		}

		applyServiceToggles(pkg, diff)
		if plan != nil {
			if err := s.consolidation.applyOptIn(pkg, plan); err != nil {
				return err
			}
		} else if diff.consolidation != nil {
			if err := s.consolidation.clearOptIn(tx, pkg); err != nil {
				return err
			}
		}
		if err := s.save(tx, pkg); err != nil {
			return err
		}
		if plan != nil {
			if err := s.PackageRepo.WithTx(tx).ReplaceMemberships(pkg); err != nil {
				return fmt.Errorf("replace memberships failed: %w", err)
			}
		}
		if err := changes.Package(tx, pkg, ActionSetOptions); err != nil {
			return err
		}
		if total.IsPositive() {
			if err := changes.Record(tx, pkg.UserID, constants.ChangeEntityWallet, pkg.UserID, ActionSetOptions, 0); err != nil {
				return err
			}
		}
		result.Charged = total
		result.Changed = true
		return changes.Notify(tx, pkg.UserID, constants.NotificationKindPackage,
			"Package options updated",
			optionSummary(diff, total),
			uintPtr(pkg.ID))
	})
	if err != nil {
		return nil, err
	}
	if result.Changed {
		logger.Infow("package_options_committed",
			"package_id", packageID,
			"user_id", userID,
			"charged", result.Charged.String(),
		)
	}
	return result, nil
}

// optionReasons 逐项收集阻断原因
func (s *PackageOptionService) optionReasons(tx *gorm.DB, pkg *models.Package, facts PackageFacts, d optionDiff) ([]BlockReason, error) {
	var r reasonSet
	enablingOptIn := d.optingIn() && !pkg.Consolidation().OptedIn()

	if d.photo != nil {
		if *d.photo {
			r.merge(ServiceBlockers(ServicePhoto, pkg, facts))
			r.add(enablingOptIn, ReasonConsolidationEnabled)
		} else {
			r.merge(optionBlockers(pkg, facts))
			r.add(pkg.PhotoServicePaid, ReasonServiceAlreadyPaid)
		}
	}
	if d.reinforcement != nil {
		if *d.reinforcement {
			r.merge(ServiceBlockers(ServiceReinforcement, pkg, facts))
			r.add(d.cancel != nil && *d.cancel, ReasonCancelPurchaseActive)
		} else {
			r.merge(optionBlockers(pkg, facts))
			r.add(pkg.ReinforcementPaid, ReasonServiceAlreadyPaid)
		}
	}
	if d.cancel != nil {
		if *d.cancel {
			r.merge(ServiceBlockers(ServiceCancelPurchase, pkg, facts))
			r.add(d.reinforcement != nil && *d.reinforcement, ReasonReinforcementActive)
			r.add(enablingOptIn, ReasonConsolidationEnabled)
		} else {
			r.merge(optionBlockers(pkg, facts))
			r.add(pkg.CancelPurchaseStatus != constants.CancelPurchaseStatusPending, ReasonCancelNotWithdrawable)
		}
	}
	if d.insurance != nil {
		r.merge(ServiceBlockers(ServiceInsurance, pkg, facts))
		r.add(d.insurance.LessThan(pkg.AdditionalInsurance.Decimal), ReasonInsuranceDecrease)
	}
	if d.consolidation != nil && !*d.consolidation {
		r.merge(optionBlockers(pkg, facts))
	}
	if d.method != "" && !d.optingIn() {
		r.merge(optionBlockers(pkg, facts))
		if d.method == carrier.EMS {
			address, err := s.destination(tx, pkg)
			if err != nil {
				return nil, err
			}
			r.add(address != nil && !carrier.EMSAllowed(address.Country), ReasonCarrierNotAllowed)
		}
	}
	return r, nil
}

// resubmitsMergeSet 请求重新提交了当前已保存的合箱集合
func resubmitsMergeSet(pkg *models.Package, input PackageOptionsInput) bool {
	if !pkg.Consolidation().OptedIn() {
		return false
	}
	return input.ConsolidateWith != nil || (input.Consolidation != nil && *input.Consolidation)
}

func applyServiceToggles(pkg *models.Package, d optionDiff) {
	if d.photo != nil {
		pkg.PhotoService = *d.photo
		if *d.photo {
			pkg.PhotoServicePaid = true
			if pkg.PhotoServiceStatus != constants.ServiceStatusCompleted {
				pkg.PhotoServiceStatus = constants.ServiceStatusPending
			}
		} else {
			pkg.PhotoServiceStatus = ""
		}
	}
	if d.reinforcement != nil {
		pkg.Reinforcement = *d.reinforcement
		if *d.reinforcement {
			pkg.ReinforcementPaid = true
			pkg.ReinforcementStatus = constants.ServiceStatusPending
		} else {
			pkg.ReinforcementStatus = ""
		}
	}
	if d.cancel != nil {
		pkg.CancelPurchase = *d.cancel
		pkg.CancelPurchasePaid = false
		if *d.cancel {
			pkg.CancelPurchaseStatus = constants.CancelPurchaseStatusPending
		} else {
			pkg.CancelPurchaseStatus = ""
		}
	}
	if d.insurance != nil {
		pkg.AdditionalInsurance = *d.insurance
	}
	if d.method != "" && !d.optingIn() {
		pkg.ShippingMethod = d.method
	}
}

func optionSummary(d optionDiff, charged models.Money) string {
	parts := make([]string, 0, 6)
	if d.photo != nil {
		parts = append(parts, fmt.Sprintf("photo service %s", onOff(*d.photo)))
	}
	if d.reinforcement != nil {
		parts = append(parts, fmt.Sprintf("reinforcement %s", onOff(*d.reinforcement)))
	}
	if d.cancel != nil {
		parts = append(parts, fmt.Sprintf("purchase cancellation %s", onOff(*d.cancel)))
	}
	if d.insurance != nil {
		parts = append(parts, fmt.Sprintf("additional insurance ¥%s", d.insurance.String()))
	}
	if d.consolidation != nil {
		parts = append(parts, fmt.Sprintf("consolidation %s", onOff(*d.consolidation)))
	}
	if d.method != "" {
		parts = append(parts, fmt.Sprintf("shipping method %s", d.method))
	}
	summary := strings.Join(parts, ", ")
	if charged.IsPositive() {
		summary += fmt.Sprintf(". ¥%s charged", charged.String())
	}
	return summary
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
