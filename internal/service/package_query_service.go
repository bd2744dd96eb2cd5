package service

import (
	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/models"
	"github.com/parcel-relay/internal/repository"
)

// ConsolidationView 列表展示的合箱角色
type ConsolidationView struct {
	Kind      string `json:"kind"`
	Members   []uint `json:"members"`
	Absorbed  []uint `json:"absorbed"`
	AnchorID  uint   `json:"anchor_id,omitempty"`
	Finalized bool   `json:"finalized"`
	// PendingAnchorID 作为候选成员所在的待合箱主包裹
	PendingAnchorID uint `json:"pending_anchor_id,omitempty"`
}

// PackageBlockers 各动作当前的阻断原因，空列表表示可操作
type PackageBlockers struct {
	Shipping      []BlockReason `json:"shipping"`
	Consolidation []BlockReason `json:"consolidation"`
	Disposal      []BlockReason `json:"disposal"`
	Options       []BlockReason `json:"options"`
}

// PackageView 包裹列表项
type PackageView struct {
	models.Package
	IsInConsolidation    bool              `json:"is_in_consolidation"`
	Shippable            bool              `json:"shippable"`
	Consolidation        ConsolidationView `json:"consolidation"`
	Blockers             PackageBlockers   `json:"blockers"`
	Services             []ServiceOffer    `json:"services"`
	Storage              StorageInfo       `json:"storage"`
	CoveredValue         models.Money      `json:"covered_value"`
	ConsolidatedPackages []models.Package  `json:"consolidated_packages"`
}

// CandidateView 合箱候选包裹
type CandidateView struct {
	Package  models.Package `json:"package"`
	Eligible bool           `json:"eligible"`
	Reasons  []BlockReason  `json:"reasons"`
}

// PackageQueryService 包裹列表与合箱候选查询
type PackageQueryService struct {
	fulfillmentCore
}

// NewPackageQueryService 创建包裹查询服务
func NewPackageQueryService(deps FulfillmentDeps) *PackageQueryService {
	return &PackageQueryService{fulfillmentCore: newFulfillmentCore(deps)}
}

var listedStatuses = []string{
	constants.PackageStatusReady,
	constants.PackageStatusPendingShipping,
	constants.PackageStatusShipped,
	constants.PackageStatusDelivered,
}

// ListPackages 客户可见的包裹：待决定、已发出与已签收
func (s *PackageQueryService) ListPackages(userID uint) ([]PackageView, error) {
	pkgs, _, err := s.PackageRepo.List(repository.PackageListFilter{UserID: userID, Statuses: listedStatuses})
	if err != nil {
		return nil, err
	}
	facts, err := s.batchFacts(userID, pkgs)
	if err != nil {
		return nil, err
	}
	views := make([]PackageView, 0, len(pkgs))
	for i := range pkgs {
		pkg := &pkgs[i]
		if pkg.Consolidation().IsMember() {
			continue
		}
		view, err := s.view(pkg, facts[pkg.ID])
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// GetPackage 单个包裹视图，变更通知后按实体重新获取时使用
func (s *PackageQueryService) GetPackage(userID, packageID uint) (*PackageView, error) {
	pkg, err := s.PackageRepo.GetByID(packageID)
	if err != nil {
		return nil, err
	}
	if pkg == nil || (userID != 0 && pkg.UserID != userID) {
		return nil, ErrPackageNotFound
	}
	facts, err := s.batchFacts(pkg.UserID, []models.Package{*pkg})
	if err != nil {
		return nil, err
	}
	view, err := s.view(pkg, facts[pkg.ID])
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// ListCandidates 可与主包裹合箱的包裹及其不可选原因
func (s *PackageQueryService) ListCandidates(userID, anchorID uint) ([]CandidateView, error) {
	anchor, err := s.PackageRepo.GetByID(anchorID)
	if err != nil {
		return nil, err
	}
	if anchor == nil || anchor.UserID != userID {
		return nil, ErrPackageNotFound
	}
	pkgs, _, err := s.PackageRepo.List(repository.PackageListFilter{
		UserID:   userID,
		Statuses: []string{constants.PackageStatusReady, constants.PackageStatusPendingShipping},
	})
	if err != nil {
		return nil, err
	}
	facts, err := s.batchFacts(userID, pkgs)
	if err != nil {
		return nil, err
	}
	candidates := make([]CandidateView, 0, len(pkgs))
	for i := range pkgs {
		pkg := pkgs[i]
		if pkg.ID == anchor.ID || pkg.Consolidation().IsMember() {
			continue
		}
		f := facts[pkg.ID]
		var reasons reasonSet
		reasons.merge(JoinConsolidationBlockers(&pkg, f))
		reasons.add(f.PendingAnchorID != 0 && f.PendingAnchorID != anchor.ID, ReasonInOtherConsolidation)
		if reasons == nil {
			reasons = reasonSet{}
		}
		candidates = append(candidates, CandidateView{
			Package:  pkg,
			Eligible: len(reasons) == 0,
			Reasons:  reasons,
		})
	}
	return candidates, nil
}

// batchFacts 批量读取判定事实，避免列表逐个查询
func (s *PackageQueryService) batchFacts(userID uint, pkgs []models.Package) (map[uint]PackageFacts, error) {
	ids := make([]uint, 0, len(pkgs))
	for _, pkg := range pkgs {
		ids = append(ids, pkg.ID)
	}
	open, err := s.ClaimRepo.OpenClaimPackageIDs(ids)
	if err != nil {
		return nil, err
	}
	memberships, err := s.PackageRepo.MembershipsByUser(userID)
	if err != nil {
		return nil, err
	}
	pending := make(map[uint]uint, len(memberships))
	for _, row := range memberships {
		pending[row.MemberID] = row.AnchorID
	}
	now := s.now()
	facts := make(map[uint]PackageFacts, len(pkgs))
	for i := range pkgs {
		pkg := &pkgs[i]
		facts[pkg.ID] = PackageFacts{
			OpenClaim:       open[pkg.ID],
			PendingAnchorID: pending[pkg.ID],
			Storage:         StorageOf(pkg, now),
		}
	}
	return facts, nil
}

func (s *PackageQueryService) view(pkg *models.Package, facts PackageFacts) (PackageView, error) {
	state := pkg.Consolidation()
	members := []uint(state.Members)
	if members == nil {
		members = []uint{}
	}
	absorbed := []uint(state.AbsorbedIDs())
	if absorbed == nil {
		absorbed = []uint{}
	}
	view := PackageView{
		Package:           *pkg,
		IsInConsolidation: state.OptedIn() || facts.PendingAnchorID != 0,
		Shippable:         IndependentlyShippable(pkg, facts),
		Consolidation: ConsolidationView{
			Kind:            state.Kind,
			Members:         members,
			Absorbed:        absorbed,
			AnchorID:        state.AnchorID,
			Finalized:       state.Finalized,
			PendingAnchorID: facts.PendingAnchorID,
		},
		Blockers: PackageBlockers{
			Shipping:      nonNil(ShippingBlockers(pkg, facts)),
			Consolidation: nonNil(AnchorConsolidationBlockers(pkg, facts)),
			Disposal:      nonNil(DisposalBlockers(pkg, facts)),
			Options:       nonNil(optionBlockers(pkg, facts)),
		},
		Services:             EvaluateServices(pkg, facts),
		Storage:              facts.Storage,
		CoveredValue:         CoveredValue(pkg),
		ConsolidatedPackages: []models.Package{},
	}
	if state.IsMerged() {
		merged, err := s.PackageRepo.ListMembers(pkg.ID)
		if err != nil {
			return view, err
		}
		view.ConsolidatedPackages = merged
	}
	return view, nil
}

func nonNil(reasons []BlockReason) []BlockReason {
	if reasons == nil {
		return []BlockReason{}
	}
	return reasons
}
