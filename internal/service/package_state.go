package service

import (
	"time"

	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/models"
)

// Action 包裹上的客户或仓库动作
type Action string

const (
	ActionSetOptions            Action = "set_options"
	ActionPhotoService          Action = "photo_service"
	ActionReinforcement         Action = "reinforcement"
	ActionCancelPurchase        Action = "cancel_purchase"
	ActionInsurance             Action = "additional_insurance"
	ActionShippingMethod        Action = "shipping_method"
	ActionConsolidate           Action = "consolidate"
	ActionJoinConsolidation     Action = "join_consolidation"
	ActionRequestShipping       Action = "request_shipping"
	ActionDispose               Action = "dispose"
	ActionPayDomestic           Action = "pay_domestic_shipping"
	ActionPayAdditional         Action = "pay_additional_shipping"
	ActionPayCancellation       Action = "pay_cancellation_fee"
	ActionPayStorage            Action = "pay_storage"
	ActionFileDamagedClaim      Action = "file_damaged_claim"
	ActionDamagedRefund         Action = "damaged_refund"
	ActionFileCompensation      Action = "file_compensation"
	ActionResubmitCompensation  Action = "resubmit_compensation"
	ActionCompensationRefund    Action = "compensation_refund"
	ActionMarkShipped           Action = "mark_shipped"
	ActionMarkDelivered         Action = "mark_delivered"
	ActionFinalizeConsolidation Action = "finalize_consolidation"
	ActionCancelConsolidation   Action = "cancel_consolidation"
	ActionDeconsolidate         Action = "deconsolidate"
	ActionCompleteDisposal      Action = "complete_disposal"
	ActionDeclineDisposal       Action = "decline_disposal"
	ActionCancelReview          Action = "cancel_purchase_review"
	ActionChargeAdditional      Action = "charge_additional"
	ActionAddressChange         Action = "address_change"
	ActionAddressDelete         Action = "address_delete"
	ActionReviewClaim           Action = "review_claim"
	ActionApproveForRefund      Action = "approve_for_refund"
	ActionConfirmRefund         Action = "confirm_refund"
	ActionIssueCoupon           Action = "issue_coupon"
	ActionStorageSweep          Action = "storage_sweep"
)

// BlockReason 动作被禁用的具体原因，调用方据此展示提示
type BlockReason string

const (
	ReasonDomesticUnpaid          BlockReason = "domestic_shipping_unpaid"
	ReasonNotAwaitingDecision     BlockReason = "status_not_awaiting_decision"
	ReasonAbsorbed                BlockReason = "consolidated_into_other_package"
	ReasonAlreadyShipped          BlockReason = "already_shipped"
	ReasonAlreadyDelivered        BlockReason = "already_delivered"
	ReasonDisposed                BlockReason = "disposed"
	ReasonOpenClaim               BlockReason = "open_claim"
	ReasonCancelPurchaseActive    BlockReason = "cancel_purchase_active"
	ReasonReinforcementActive     BlockReason = "reinforcement_active"
	ReasonDisposalRequested       BlockReason = "disposal_requested"
	ReasonShippingRequested       BlockReason = "shipping_requested"
	ReasonConsolidationEnabled    BlockReason = "consolidation_enabled"
	ReasonManualConsolidation     BlockReason = "manual_consolidation_product"
	ReasonInOtherConsolidation    BlockReason = "member_of_other_consolidation"
	ReasonCandidateIsAnchor       BlockReason = "candidate_is_anchor"
	ReasonCandidateMidMerge       BlockReason = "candidate_has_own_consolidation"
	ReasonDifferentOwner          BlockReason = "different_owner"
	ReasonConsolidationLimit      BlockReason = "consolidation_limit_exceeded"
	ReasonConsolidationEmpty      BlockReason = "consolidation_members_required"
	ReasonNotOptedIn              BlockReason = "consolidation_not_requested"
	ReasonCarrierChoiceRequired   BlockReason = "carrier_choice_required"
	ReasonCarrierNotAllowed       BlockReason = "carrier_not_allowed"
	ReasonPhotoProcessing         BlockReason = "photo_service_processing"
	ReasonPhotoNotCompleted       BlockReason = "photo_service_not_completed"
	ReasonStorageExpired          BlockReason = "storage_expired"
	ReasonStorageUnpaid           BlockReason = "storage_fee_unpaid"
	ReasonAddressLocked           BlockReason = "address_locked"
	ReasonAddressInUse            BlockReason = "address_in_use"
	ReasonWeightUnknown           BlockReason = "weight_unknown"
	ReasonPostalCodeRequired      BlockReason = "postal_code_required"
	ReasonStateRequired           BlockReason = "state_required"
	ReasonAlreadyPaid             BlockReason = "already_paid"
	ReasonNothingToPay            BlockReason = "nothing_to_pay"
	ReasonServiceAlreadyPaid      BlockReason = "service_already_paid"
	ReasonCancelNotWithdrawable   BlockReason = "cancel_purchase_not_withdrawable"
	ReasonInsuranceDecrease       BlockReason = "insurance_cannot_decrease"
	ReasonCancelNotAwaitingFee    BlockReason = "cancel_purchase_not_awaiting_payment"
	ReasonClaimExists             BlockReason = "claim_already_exists"
	ReasonClaimNotApproved        BlockReason = "claim_not_approved"
	ReasonRefundAlreadyRequested  BlockReason = "refund_already_requested"
	ReasonNotApprovedForRefund    BlockReason = "not_approved_for_refund"
	ReasonNotRejected             BlockReason = "request_not_rejected"
	ReasonNotShippedYet           BlockReason = "not_shipped_yet"
	ReasonNoPhotos                BlockReason = "no_photos"
	ReasonMemberIneligible        BlockReason = "member_ineligible"
	ReasonNotInFlight             BlockReason = "shipping_not_requested"
	ReasonNotShipped              BlockReason = "status_not_shipped"
	ReasonDisposalNotRequested    BlockReason = "disposal_not_requested"
	ReasonCancelPurchaseNotActive BlockReason = "cancel_purchase_not_active"
	ReasonNotPaidYet              BlockReason = "cancel_purchase_fee_unpaid"
	ReasonNoAddress               BlockReason = "no_shipping_address"
	ReasonClaimNotPending         BlockReason = "claim_not_pending"
	ReasonRefundNotRequested      BlockReason = "refund_not_requested"
	ReasonRefundProcessed         BlockReason = "refund_already_processed"
	ReasonServiceNotPending       BlockReason = "service_not_pending"
	ReasonPurchaseCancelled       BlockReason = "purchase_cancelled"
	ReasonItemAlreadyRefunded     BlockReason = "item_already_refunded"
	ReasonNotAutoConsolidated     BlockReason = "not_auto_consolidated"
	ReasonNotAbsorbed             BlockReason = "not_absorbed_by_package"
)

// PackageFacts 判定包裹动作时需要的外部事实，在事务内重新读取
type PackageFacts struct {
	OpenClaim bool
	// PendingAnchorID 包裹作为成员所在的待合箱主包裹，0 表示没有
	PendingAnchorID uint
	Storage         StorageInfo
}

// LoadFacts 读取包裹相关事实
func (s *PackageStateMachine) LoadFacts(pkg *models.Package, now time.Time) (PackageFacts, error) {
	facts := PackageFacts{Storage: StorageOf(pkg, now)}
	open, err := s.claimRepo.OpenClaimPackageIDs([]uint{pkg.ID})
	if err != nil {
		return facts, err
	}
	facts.OpenClaim = open[pkg.ID]
	membership, err := s.packageRepo.MembershipOf(pkg.ID)
	if err != nil {
		return facts, err
	}
	if membership != nil {
		facts.PendingAnchorID = membership.AnchorID
	}
	return facts, nil
}

// reasonSet 保持插入顺序的原因集合
type reasonSet []BlockReason

func (r *reasonSet) add(cond bool, reason BlockReason) {
	if !cond {
		return
	}
	for _, existing := range *r {
		if existing == reason {
			return
		}
	}
	*r = append(*r, reason)
}

func (r *reasonSet) merge(other []BlockReason) {
	for _, reason := range other {
		r.add(true, reason)
	}
}

// statusReasons 非待决定状态对应的具体原因
func statusReasons(pkg *models.Package) []BlockReason {
	switch pkg.Status {
	case constants.PackageStatusReady, constants.PackageStatusPendingShipping:
		if pkg.Consolidation().IsMember() {
			return []BlockReason{ReasonAbsorbed}
		}
		return nil
	case constants.PackageStatusConsolidated:
		return []BlockReason{ReasonAbsorbed}
	case constants.PackageStatusShipped:
		return []BlockReason{ReasonAlreadyShipped}
	case constants.PackageStatusDelivered:
		return []BlockReason{ReasonAlreadyDelivered}
	case constants.PackageStatusDisposed:
		return []BlockReason{ReasonDisposed}
	case constants.PackageStatusCancelled:
		return []BlockReason{ReasonPurchaseCancelled}
	default:
		return []BlockReason{ReasonNotAwaitingDecision}
	}
}

// PackageStateMachine 单个包裹的生命周期与转移校验
type PackageStateMachine struct {
	packageRepo packageFactsReader
	claimRepo   claimFactsReader
}

type packageFactsReader interface {
	MembershipOf(memberID uint) (*models.ConsolidationMembership, error)
}

type claimFactsReader interface {
	OpenClaimPackageIDs(packageIDs []uint) (map[uint]bool, error)
}

// NewPackageStateMachine 创建状态机
func NewPackageStateMachine(packageRepo packageFactsReader, claimRepo claimFactsReader) *PackageStateMachine {
	return &PackageStateMachine{packageRepo: packageRepo, claimRepo: claimRepo}
}

// ConfigurationBlockers 修改包裹选项的通用前置条件
func ConfigurationBlockers(pkg *models.Package, facts PackageFacts) []BlockReason {
	var reasons reasonSet
	reasons.merge(statusReasons(pkg))
	reasons.add(!pkg.DomesticLegSettled(), ReasonDomesticUnpaid)
	reasons.add(facts.OpenClaim, ReasonOpenClaim)
	reasons.add(pkg.DisposalRequested, ReasonDisposalRequested)
	return reasons
}

// JoinConsolidationBlockers 包裹能否作为成员被并入其他主包裹
func JoinConsolidationBlockers(pkg *models.Package, facts PackageFacts) []BlockReason {
	var reasons reasonSet
	state := pkg.Consolidation()
	reasons.merge(statusReasons(pkg))
	reasons.add(state.IsManualProduct(), ReasonManualConsolidation)
	reasons.add(state.OptedIn(), ReasonCandidateMidMerge)
	reasons.add(facts.OpenClaim, ReasonOpenClaim)
	reasons.add(pkg.CancelPurchaseOpen(), ReasonCancelPurchaseActive)
	reasons.add(pkg.ReinforcementActive(), ReasonReinforcementActive)
	reasons.add(pkg.DisposalRequested, ReasonDisposalRequested)
	reasons.add(pkg.ShippingRequested, ReasonShippingRequested)
	reasons.add(!pkg.DomesticLegSettled(), ReasonDomesticUnpaid)
	return reasons
}

// AnchorConsolidationBlockers 包裹能否作为主包裹发起合箱
func AnchorConsolidationBlockers(pkg *models.Package, facts PackageFacts) []BlockReason {
	var reasons reasonSet
	state := pkg.Consolidation()
	reasons.merge(ConfigurationBlockers(pkg, facts))
	reasons.add(state.IsManualProduct(), ReasonManualConsolidation)
	reasons.add(facts.PendingAnchorID != 0 && facts.PendingAnchorID != pkg.ID, ReasonInOtherConsolidation)
	reasons.add(pkg.CancelPurchaseOpen(), ReasonCancelPurchaseActive)
	reasons.add(pkg.ShippingRequested, ReasonShippingRequested)
	return reasons
}

// ShippingBlockers 申请发货的前置条件（地址锁在事务内单独校验）
func ShippingBlockers(pkg *models.Package, facts PackageFacts) []BlockReason {
	var reasons reasonSet
	state := pkg.Consolidation()
	reasons.add(!pkg.DomesticLegSettled(), ReasonDomesticUnpaid)
	reasons.merge(statusReasons(pkg))
	reasons.add(state.OptedIn(), ReasonConsolidationEnabled)
	reasons.add(facts.PendingAnchorID != 0, ReasonInOtherConsolidation)
	reasons.add(pkg.PhotoService && pkg.PhotoServiceStatus == constants.ServiceStatusPending, ReasonPhotoProcessing)
	reasons.add(facts.OpenClaim, ReasonOpenClaim)
	reasons.add(pkg.DisposalRequested, ReasonDisposalRequested)
	reasons.add(pkg.CancelPurchaseOpen(), ReasonCancelPurchaseActive)
	reasons.add(pkg.ShippingRequested, ReasonShippingRequested)
	reasons.add(facts.Storage.IsExpired, ReasonStorageExpired)
	reasons.add(!facts.Storage.IsExpired && facts.Storage.UnpaidDays > 0, ReasonStorageUnpaid)
	return reasons
}

// DisposalBlockers 申请销毁的前置条件
func DisposalBlockers(pkg *models.Package, facts PackageFacts) []BlockReason {
	var reasons reasonSet
	state := pkg.Consolidation()
	reasons.merge(statusReasons(pkg))
	reasons.add(!pkg.DomesticLegSettled(), ReasonDomesticUnpaid)
	reasons.add(state.OptedIn(), ReasonConsolidationEnabled)
	reasons.add(state.IsManualProduct(), ReasonManualConsolidation)
	reasons.add(pkg.DisposalRequested, ReasonDisposalRequested)
	reasons.add(pkg.Weight == nil || pkg.WeightKg() <= 0, ReasonWeightUnknown)
	reasons.add(facts.OpenClaim, ReasonOpenClaim)
	reasons.add(pkg.ShippingRequested, ReasonShippingRequested)
	return reasons
}

// IndependentlyShippable 包裹当前能否单独出现在可发货列表中
func IndependentlyShippable(pkg *models.Package, facts PackageFacts) bool {
	return len(ShippingBlockers(pkg, facts)) == 0
}
