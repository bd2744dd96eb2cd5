package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/parcel-relay/internal/carrier"
	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/logger"
	"github.com/parcel-relay/internal/models"

	"gorm.io/gorm"
)

// ConsolidationService 合箱引擎：候选校验、承运商协调、仓库完成与自动合并
type ConsolidationService struct {
	fulfillmentCore
}

// NewConsolidationService 创建合箱服务
func NewConsolidationService(deps FulfillmentDeps) *ConsolidationService {
	return &ConsolidationService{fulfillmentCore: newFulfillmentCore(deps)}
}

// FinalizeConsolidationInput 仓库完成合箱参数
type FinalizeConsolidationInput struct {
	AnchorID uint
	// WeightKg 实际称重，为空时按成员重量求和
	WeightKg *float64
	Notes    string
}

// mergePlan 校验通过的合箱方案
type mergePlan struct {
	memberIDs models.IDSet
	method    string
}

// validateMergeSet 校验主包裹与候选集合，返回全部阻断原因
func (s *ConsolidationService) validateMergeSet(tx *gorm.DB, anchor *models.Package, anchorFacts PackageFacts, candidateIDs []uint, requestedMethod string) (*mergePlan, error) {
	ids := models.NewIDSet(candidateIDs...)
	var anchorReasons reasonSet
	anchorReasons.merge(AnchorConsolidationBlockers(anchor, anchorFacts))
	anchorReasons.add(len(ids) == 0, ReasonConsolidationEmpty)
	anchorReasons.add(len(ids)+1 > constants.MaxPackagesPerShipment, ReasonConsolidationLimit)
	if len(anchorReasons) > 0 {
		return nil, &IneligibleTransitionError{Action: ActionConsolidate, Reasons: anchorReasons}
	}

	candidates, err := s.PackageRepo.WithTx(tx).GetByIDsForUpdate(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.Package, len(candidates))
	for i := range candidates {
		byID[candidates[i].ID] = &candidates[i]
	}

	perPackage := make(map[uint][]BlockReason)
	methods := map[string]struct{}{anchor.ShippingMethod: {}}
	for _, id := range ids {
		if id == anchor.ID {
			perPackage[id] = []BlockReason{ReasonCandidateIsAnchor}
			continue
		}
		candidate, ok := byID[id]
		if !ok || candidate.UserID != anchor.UserID {
			perPackage[id] = []BlockReason{ReasonDifferentOwner}
			continue
		}
		facts, err := s.facts(tx, candidate)
		if err != nil {
			return nil, err
		}
		var reasons reasonSet
		reasons.merge(JoinConsolidationBlockers(candidate, facts))
		reasons.add(facts.PendingAnchorID != 0 && facts.PendingAnchorID != anchor.ID, ReasonInOtherConsolidation)
		if len(reasons) > 0 {
			perPackage[id] = reasons
			continue
		}
		methods[candidate.ShippingMethod] = struct{}{}
	}
	if len(perPackage) > 0 {
		return nil, &IneligibleTransitionError{
			Action:         ActionConsolidate,
			Reasons:        []BlockReason{ReasonMemberIneligible},
			PackageReasons: perPackage,
		}
	}

	address, err := s.destination(tx, anchor)
	if err != nil {
		return nil, err
	}
	allowed := allowedMethods(methods, address)
	method := strings.ToLower(strings.TrimSpace(requestedMethod))
	if method == "" {
		switch len(allowed) {
		case 0:
			return nil, ineligible(ActionConsolidate, ReasonCarrierNotAllowed)
		case 1:
			method = allowed[0]
		default:
			return nil, &IneligibleTransitionError{
				Action:         ActionConsolidate,
				Reasons:        []BlockReason{ReasonCarrierChoiceRequired},
				CarrierOptions: allowed,
			}
		}
	}
	if !carrier.ValidMethod(method) {
		return nil, invalid("shipping_method", "unsupported")
	}
	if method == carrier.EMS && address != nil && !carrier.EMSAllowed(address.Country) {
		return nil, ineligible(ActionConsolidate, ReasonCarrierNotAllowed)
	}
	return &mergePlan{memberIDs: ids, method: method}, nil
}

// allowedMethods 成员使用的承运商中目的地可用的部分，按固定顺序返回
func allowedMethods(methods map[string]struct{}, address *models.Address) []string {
	allowed := make([]string, 0, len(methods))
	for _, method := range []string{carrier.EMS, carrier.FedEx} {
		if _, ok := methods[method]; !ok {
			continue
		}
		if method == carrier.EMS && address != nil && !carrier.EMSAllowed(address.Country) {
			continue
		}
		allowed = append(allowed, method)
	}
	return allowed
}

// applyOptIn 写入合箱选择，成员在仓库完成前保持不变
func (s *ConsolidationService) applyOptIn(anchor *models.Package, plan *mergePlan) error {
	if err := anchor.ApplyConsolidation(anchor.Consolidation().WithMembers(plan.memberIDs)); err != nil {
		return err
	}
	anchor.ShippingMethod = plan.method
	return nil
}

// Finalize 仓库完成合箱：复核全部成员，任一成员失去资格即整体拒绝
func (s *ConsolidationService) Finalize(ctx context.Context, input FinalizeConsolidationInput) (*models.Package, error) {
	if input.WeightKg != nil && *input.WeightKg <= 0 {
		return nil, invalid("weight", "must be positive")
	}
	current, err := s.PackageRepo.GetByID(input.AnchorID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrPackageNotFound
	}
	lockIDs := append([]uint{current.ID}, current.ConsolidationMembers...)

	var anchor *models.Package
	err = s.run(ctx, lockIDs, func(tx *gorm.DB, changes *ChangeSet) error {
		pkg, err := s.loadOwned(tx, 0, input.AnchorID)
		if err != nil {
			return err
		}
		state := pkg.Consolidation()
		if !state.OptedIn() {
			return ineligible(ActionFinalizeConsolidation, ReasonNotOptedIn)
		}
		anchorFacts, err := s.facts(tx, pkg)
		if err != nil {
			return err
		}
		if reasons := AnchorConsolidationBlockers(pkg, anchorFacts); len(reasons) > 0 {
			return &IneligibleTransitionError{Action: ActionFinalizeConsolidation, Reasons: reasons}
		}

		members, err := s.PackageRepo.WithTx(tx).GetByIDsForUpdate(state.Members)
		if err != nil {
			return err
		}
		perPackage := make(map[uint][]BlockReason)
		found := make(map[uint]bool, len(members))
		for i := range members {
			member := &members[i]
			found[member.ID] = true
			if member.UserID != pkg.UserID {
				perPackage[member.ID] = []BlockReason{ReasonDifferentOwner}
				continue
			}
			facts, err := s.facts(tx, member)
			if err != nil {
				return err
			}
			var reasons reasonSet
			reasons.merge(JoinConsolidationBlockers(member, facts))
			reasons.add(facts.PendingAnchorID != 0 && facts.PendingAnchorID != pkg.ID, ReasonInOtherConsolidation)
			if len(reasons) > 0 {
				perPackage[member.ID] = reasons
			}
		}
		for _, id := range state.Members {
			if !found[id] {
				perPackage[id] = []BlockReason{ReasonDifferentOwner}
			}
		}
		if len(perPackage) > 0 {
			return &IneligibleTransitionError{
				Action:         ActionFinalizeConsolidation,
				Reasons:        []BlockReason{ReasonMemberIneligible},
				PackageReasons: perPackage,
			}
		}

		if err := s.mergeMembers(tx, pkg, members, input.WeightKg); err != nil {
			return err
		}
		if err := pkg.ApplyConsolidation(state.Completed()); err != nil {
			return err
		}
		if notes := strings.TrimSpace(input.Notes); notes != "" {
			pkg.Notes = notes
		}
		if err := s.absorbMembers(tx, changes, pkg, members, ActionFinalizeConsolidation); err != nil {
			return err
		}
		if err := s.PackageRepo.WithTx(tx).DeleteMemberships(pkg.ID); err != nil {
			return err
		}
		if err := s.save(tx, pkg); err != nil {
			return err
		}
		if err := changes.Package(tx, pkg, ActionFinalizeConsolidation); err != nil {
			return err
		}
		anchor = pkg
		return changes.Notify(tx, pkg.UserID, constants.NotificationKindPackage,
			"Consolidation completed",
			fmt.Sprintf("%d packages were consolidated into package #%d.", len(members)+1, pkg.ID),
			uintPtr(pkg.ID))
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("consolidation_finalized", "anchor_id", anchor.ID, "members", len(anchor.ConsolidationMembers))
	return anchor, nil
}

// AutoConsolidate 同一订单中同商品不同规格的包裹自动合并
func (s *ConsolidationService) AutoConsolidate(ctx context.Context, orderID uint) ([]models.Package, error) {
	if orderID == 0 {
		return nil, invalid("order_id", "required")
	}
	pkgs, err := s.PackageRepo.ListByOrderID(orderID)
	if err != nil {
		return nil, err
	}
	groups := groupVariantPackages(pkgs)
	if len(groups) == 0 {
		return []models.Package{}, nil
	}
	lockIDs := make([]uint, 0, len(pkgs))
	for _, group := range groups {
		lockIDs = append(lockIDs, group...)
	}

	var anchors []models.Package
	err = s.run(ctx, lockIDs, func(tx *gorm.DB, changes *ChangeSet) error {
		for _, group := range groups {
			locked, err := s.PackageRepo.WithTx(tx).GetByIDsForUpdate(group)
			if err != nil {
				return err
			}
			eligible := make([]models.Package, 0, len(locked))
			for i := range locked {
				facts, err := s.facts(tx, &locked[i])
				if err != nil {
					return err
				}
				if autoMergeable(&locked[i], facts) {
					eligible = append(eligible, locked[i])
				}
			}
			if len(eligible) < 2 {
				continue
			}
			anchor := eligible[0]
			members := eligible[1:]
			if err := s.mergeMembers(tx, &anchor, members, nil); err != nil {
				return err
			}
			memberIDs := make([]uint, 0, len(members))
			for _, m := range members {
				memberIDs = append(memberIDs, m.ID)
			}
			if err := anchor.ApplyConsolidation(models.AutoAnchorOf(memberIDs...)); err != nil {
				return err
			}
			if err := s.absorbMembers(tx, changes, &anchor, members, ActionFinalizeConsolidation); err != nil {
				return err
			}
			if err := s.save(tx, &anchor); err != nil {
				return err
			}
			if err := changes.Package(tx, &anchor, ActionFinalizeConsolidation); err != nil {
				return err
			}
			anchors = append(anchors, anchor)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("auto_consolidation_done", "order_id", orderID, "merged", len(anchors))
	return anchors, nil
}

// CancelRequest 管理员撤销客户尚未完成的合箱申请，成员保持可单独发货
func (s *ConsolidationService) CancelRequest(ctx context.Context, anchorID uint) (*models.Package, error) {
	current, err := s.PackageRepo.GetByID(anchorID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrPackageNotFound
	}
	lockIDs := append([]uint{current.ID}, current.ConsolidationMembers...)

	var anchor *models.Package
	err = s.run(ctx, lockIDs, func(tx *gorm.DB, changes *ChangeSet) error {
		pkg, err := s.loadOwned(tx, 0, anchorID)
		if err != nil {
			return err
		}
		state := pkg.Consolidation()
		if !state.OptedIn() {
			return ineligible(ActionCancelConsolidation, ReasonNotOptedIn)
		}
		if err := s.clearOptIn(tx, pkg); err != nil {
			return err
		}
		if err := s.save(tx, pkg); err != nil {
			return err
		}
		if err := changes.Package(tx, pkg, ActionCancelConsolidation); err != nil {
			return err
		}
		for _, memberID := range state.Members {
			if err := changes.Record(tx, pkg.UserID, constants.ChangeEntityPackage, memberID, ActionCancelConsolidation, 0); err != nil {
				return err
			}
		}
		anchor = pkg
		return changes.Notify(tx, pkg.UserID, constants.NotificationKindPackage,
			"Consolidation request cancelled",
			fmt.Sprintf("Your consolidation request for package #%d was cancelled. Your packages remain ready for individual shipping.", pkg.ID),
			uintPtr(pkg.ID))
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("consolidation_request_cancelled", "anchor_id", anchor.ID, "members", len(current.ConsolidationMembers))
	return anchor, nil
}

// Deconsolidate 拆开系统自动合并的包裹，被并入的包裹恢复为独立包裹
func (s *ConsolidationService) Deconsolidate(ctx context.Context, anchorID uint) (*models.Package, []models.Package, error) {
	current, err := s.PackageRepo.GetByID(anchorID)
	if err != nil {
		return nil, nil, err
	}
	if current == nil {
		return nil, nil, ErrPackageNotFound
	}
	lockIDs := append([]uint{current.ID}, current.AutoAbsorbed...)

	var anchor *models.Package
	var restored []models.Package
	err = s.run(ctx, lockIDs, func(tx *gorm.DB, changes *ChangeSet) error {
		pkg, err := s.loadOwned(tx, 0, anchorID)
		if err != nil {
			return err
		}
		state := pkg.Consolidation()
		if !state.IsAuto() {
			return ineligible(ActionDeconsolidate, ReasonNotAutoConsolidated)
		}
		facts, err := s.facts(tx, pkg)
		if err != nil {
			return err
		}
		var reasons reasonSet
		reasons.merge(statusReasons(pkg))
		reasons.add(state.OptedIn(), ReasonConsolidationEnabled)
		reasons.add(pkg.ShippingRequested, ReasonShippingRequested)
		reasons.add(pkg.DisposalRequested, ReasonDisposalRequested)
		reasons.add(facts.OpenClaim, ReasonOpenClaim)
		reasons.add(pkg.CancelPurchaseOpen(), ReasonCancelPurchaseActive)
		if len(reasons) > 0 {
			return &IneligibleTransitionError{Action: ActionDeconsolidate, Reasons: reasons}
		}

		members, err := s.PackageRepo.WithTx(tx).GetByIDsForUpdate(state.Absorbed)
		if err != nil {
			return err
		}
		perPackage := make(map[uint][]BlockReason)
		found := make(map[uint]bool, len(members))
		for i := range members {
			m := &members[i]
			found[m.ID] = true
			if m.Consolidation().AnchorID != pkg.ID || m.Status != constants.PackageStatusConsolidated {
				perPackage[m.ID] = []BlockReason{ReasonNotAbsorbed}
			}
		}
		for _, id := range state.Absorbed {
			if !found[id] {
				perPackage[id] = []BlockReason{ReasonNotAbsorbed}
			}
		}
		if len(perPackage) > 0 {
			return &IneligibleTransitionError{
				Action:         ActionDeconsolidate,
				Reasons:        []BlockReason{ReasonMemberIneligible},
				PackageReasons: perPackage,
			}
		}

		weight := pkg.WeightKg()
		for i := range members {
			m := &members[i]
			weight -= m.WeightKg()
			pkg.ShippingCost = floorZero(pkg.ShippingCost.Sub(m.ShippingCost))
			pkg.DomesticShippingCost = floorZero(pkg.DomesticShippingCost.Sub(m.DomesticShippingCost))
			if err := m.ApplyConsolidation(models.Standalone()); err != nil {
				return err
			}
			m.Status = constants.PackageStatusReady
			if err := s.save(tx, m); err != nil {
				return err
			}
			if err := changes.Package(tx, m, ActionDeconsolidate); err != nil {
				return err
			}
		}
		weight = math.Round(weight*1000) / 1000
		if weight > 0 {
			pkg.Weight = &weight
		} else {
			pkg.Weight = nil
		}
		pkg.OriginalItems = nil
		if err := pkg.ApplyConsolidation(models.Standalone()); err != nil {
			return err
		}
		if err := s.save(tx, pkg); err != nil {
			return err
		}
		if err := changes.Package(tx, pkg, ActionDeconsolidate); err != nil {
			return err
		}
		anchor = pkg
		restored = members
		return changes.Notify(tx, pkg.UserID, constants.NotificationKindPackage,
			"Package deconsolidated",
			fmt.Sprintf("Package #%d was separated into %d individual packages.", pkg.ID, len(members)+1),
			uintPtr(pkg.ID))
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Infow("package_deconsolidated", "anchor_id", anchor.ID, "restored", len(restored))
	return anchor, restored, nil
}

func floorZero(m models.Money) models.Money {
	if m.IsPositive() {
		return m
	}
	return models.Yen(0)
}

// mergeMembers 把成员的重量、费用、服务与商品快照并入主包裹
func (s *ConsolidationService) mergeMembers(tx *gorm.DB, anchor *models.Package, members []models.Package, weightOverride *float64) error {
	snapshots, err := s.itemSnapshots(tx, append([]models.Package{*anchor}, members...))
	if err != nil {
		return err
	}
	weight := anchor.WeightKg()
	allSettled := anchor.DomesticLegSettled()
	for i := range members {
		m := &members[i]
		weight += m.WeightKg()
		anchor.ShippingCost = anchor.ShippingCost.Add(m.ShippingCost)
		anchor.DomesticShippingCost = anchor.DomesticShippingCost.Add(m.DomesticShippingCost)
		allSettled = allSettled && m.DomesticLegSettled()
		if m.PhotoService && m.PhotoServiceStatus == constants.ServiceStatusCompleted {
			anchor.PhotoService = true
			anchor.PhotoServicePaid = true
			anchor.PhotoServiceStatus = constants.ServiceStatusCompleted
			anchor.Photos = append(anchor.Photos, m.Photos...)
		}
		if m.AdditionalInsurance.GreaterThan(anchor.AdditionalInsurance.Decimal) {
			anchor.AdditionalInsurance = m.AdditionalInsurance
		}
	}
	if weightOverride != nil {
		weight = *weightOverride
	}
	if weight > 0 {
		anchor.Weight = &weight
	}
	anchor.DomesticShippingPaid = allSettled
	anchor.OriginalItems = snapshots
	return nil
}

// absorbMembers 成员标记为已并入主包裹
func (s *ConsolidationService) absorbMembers(tx *gorm.DB, changes *ChangeSet, anchor *models.Package, members []models.Package, action Action) error {
	for i := range members {
		m := &members[i]
		if err := m.ApplyConsolidation(models.MemberOf(anchor.ID)); err != nil {
			return err
		}
		m.Status = constants.PackageStatusConsolidated
		if err := s.save(tx, m); err != nil {
			return err
		}
		if err := changes.Package(tx, m, action); err != nil {
			return err
		}
	}
	return nil
}

// itemSnapshots 合并前的订单项快照，已合并过的包裹沿用其原快照
func (s *ConsolidationService) itemSnapshots(tx *gorm.DB, pkgs []models.Package) (models.ItemSnapshots, error) {
	itemIDs := make([]uint, 0, len(pkgs))
	for _, p := range pkgs {
		if len(p.OriginalItems) == 0 && p.OrderItemID != nil {
			itemIDs = append(itemIDs, *p.OrderItemID)
		}
	}
	items, err := s.OrderRepo.WithTx(tx).ListItemsByIDs(itemIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.OrderItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	snapshots := make(models.ItemSnapshots, 0, len(pkgs))
	for _, p := range pkgs {
		if len(p.OriginalItems) > 0 {
			snapshots = append(snapshots, p.OriginalItems...)
			continue
		}
		if p.OrderItemID == nil {
			continue
		}
		if item, ok := byID[*p.OrderItemID]; ok {
			snapshots = append(snapshots, models.ItemSnapshot{
				OrderItemID: item.ID,
				Title:       item.Title,
				Variant:     item.Variant,
				Price:       item.Price,
				Quantity:    item.Quantity,
			})
		}
	}
	return snapshots, nil
}

// autoMergeable 自动合并只处理刚入库、没有任何客户操作的包裹
func autoMergeable(pkg *models.Package, facts PackageFacts) bool {
	state := pkg.Consolidation()
	if state.Kind != constants.ConsolidationKindStandalone || facts.PendingAnchorID != 0 {
		return false
	}
	return len(JoinConsolidationBlockers(pkg, facts)) == 0 && !pkg.PhotoService && !pkg.CancelPurchase
}

// groupVariantPackages 按商品标题分组，同组出现不同规格才需要合并
func groupVariantPackages(pkgs []models.Package) [][]uint {
	type group struct {
		ids      []uint
		variants map[string]struct{}
	}
	byTitle := make(map[string]*group)
	titles := make([]string, 0)
	for _, p := range pkgs {
		if p.OrderItem == nil {
			continue
		}
		title := strings.ToLower(strings.TrimSpace(p.OrderItem.Title))
		if title == "" {
			continue
		}
		g, ok := byTitle[title]
		if !ok {
			g = &group{variants: make(map[string]struct{})}
			byTitle[title] = g
			titles = append(titles, title)
		}
		g.ids = append(g.ids, p.ID)
		g.variants[strings.TrimSpace(p.OrderItem.Variant)] = struct{}{}
	}
	sort.Strings(titles)
	result := make([][]uint, 0)
	for _, title := range titles {
		g := byTitle[title]
		if len(g.ids) < 2 || len(g.variants) < 2 {
			continue
		}
		result = append(result, g.ids)
	}
	return result
}
