package service

import (
	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/models"

	"github.com/shopspring/decimal"
)

// ServiceKind 包裹可选增值服务
type ServiceKind string

const (
	ServicePhoto          ServiceKind = "photo_service"
	ServiceReinforcement  ServiceKind = "reinforcement"
	ServiceCancelPurchase ServiceKind = "cancel_purchase"
	ServiceInsurance      ServiceKind = "additional_insurance"
	ServiceConsolidation  ServiceKind = "consolidation"
	ServiceDisposal       ServiceKind = "disposal"
)

// ServiceOffer 列表展示用的服务开关
type ServiceOffer struct {
	Service   ServiceKind   `json:"service"`
	Enabled   bool          `json:"enabled"`
	Available bool          `json:"available"`
	Price     models.Money  `json:"price"`
	Reasons   []BlockReason `json:"reasons"`
}

type serviceRule struct {
	kind     ServiceKind
	action   Action
	enabled  func(pkg *models.Package) bool
	price    func(pkg *models.Package) models.Money
	blockers func(pkg *models.Package, facts PackageFacts) []BlockReason
}

// serviceTable 服务价格与开启条件的唯一来源，列表展示与提交校验共用
var serviceTable = []serviceRule{
	{
		kind:    ServicePhoto,
		action:  ActionPhotoService,
		enabled: func(p *models.Package) bool { return p.PhotoService },
		price: func(p *models.Package) models.Money {
			return models.Yen(constants.PhotoServicePrice)
		},
		blockers: func(p *models.Package, f PackageFacts) []BlockReason {
			var r reasonSet
			r.merge(optionBlockers(p, f))
			r.add(optInExcludes(p), ReasonConsolidationEnabled)
			return r
		},
	},
	{
		kind:    ServiceReinforcement,
		action:  ActionReinforcement,
		enabled: func(p *models.Package) bool { return p.Reinforcement },
		price: func(p *models.Package) models.Money {
			return models.Yen(constants.ReinforcementPrice)
		},
		blockers: func(p *models.Package, f PackageFacts) []BlockReason {
			var r reasonSet
			r.merge(optionBlockers(p, f))
			r.add(p.CancelPurchaseOpen(), ReasonCancelPurchaseActive)
			return r
		},
	},
	{
		kind:    ServiceCancelPurchase,
		action:  ActionCancelPurchase,
		enabled: func(p *models.Package) bool { return p.CancelPurchase },
		price: func(p *models.Package) models.Money {
			return models.Yen(constants.CancelPurchaseFee)
		},
		blockers: func(p *models.Package, f PackageFacts) []BlockReason {
			var r reasonSet
			r.merge(optionBlockers(p, f))
			r.add(p.Reinforcement, ReasonReinforcementActive)
			r.add(optInExcludes(p), ReasonConsolidationEnabled)
			return r
		},
	},
	{
		kind:    ServiceInsurance,
		action:  ActionInsurance,
		enabled: func(p *models.Package) bool { return p.AdditionalInsurance.IsPositive() },
		price: func(p *models.Package) models.Money {
			return models.Yen(constants.InsuranceTierPrice)
		},
		blockers: optionBlockers,
	},
	{
		kind:     ServiceConsolidation,
		action:   ActionConsolidate,
		enabled:  func(p *models.Package) bool { return p.Consolidation().OptedIn() },
		price:    func(p *models.Package) models.Money { return models.Yen(0) },
		blockers: AnchorConsolidationBlockers,
	},
	{
		kind:    ServiceDisposal,
		action:  ActionDispose,
		enabled: func(p *models.Package) bool { return p.DisposalRequested },
		price: func(p *models.Package) models.Money {
			return DisposalCost(p.WeightKg())
		},
		blockers: DisposalBlockers,
	},
}

func ruleFor(kind ServiceKind) serviceRule {
	for _, rule := range serviceTable {
		if rule.kind == kind {
			return rule
		}
	}
	panic("unknown service " + string(kind))
}

// ServiceBlockers 开启指定服务的阻断原因
func ServiceBlockers(kind ServiceKind, pkg *models.Package, facts PackageFacts) []BlockReason {
	return ruleFor(kind).blockers(pkg, facts)
}

// EvaluateServices 计算包裹全部服务开关的可用性与价格
func EvaluateServices(pkg *models.Package, facts PackageFacts) []ServiceOffer {
	offers := make([]ServiceOffer, 0, len(serviceTable))
	for _, rule := range serviceTable {
		reasons := rule.blockers(pkg, facts)
		if reasons == nil {
			reasons = []BlockReason{}
		}
		offers = append(offers, ServiceOffer{
			Service:   rule.kind,
			Enabled:   rule.enabled(pkg),
			Available: len(reasons) == 0,
			Price:     rule.price(pkg),
			Reasons:   reasons,
		})
	}
	return offers
}

// optionBlockers 修改任意选项的前置条件
func optionBlockers(pkg *models.Package, facts PackageFacts) []BlockReason {
	var r reasonSet
	r.merge(ConfigurationBlockers(pkg, facts))
	r.add(pkg.ShippingRequested, ReasonShippingRequested)
	return r
}

// optInExcludes 客户合箱待处理时排斥拍照与取消采购，已完成的自动合并不算
func optInExcludes(pkg *models.Package) bool {
	return pkg.Consolidation().OptedIn()
}

// InsurancePremium 追加保额的保费：每 20000 円一档，每档 50 円
func InsurancePremium(coverage models.Money) models.Money {
	if !coverage.IsPositive() {
		return models.Yen(0)
	}
	tiers := coverage.Decimal.Div(decimal.NewFromInt(constants.InsuranceTierAmount)).Ceil()
	return models.NewMoneyFromDecimal(tiers.Mul(decimal.NewFromInt(constants.InsuranceTierPrice)))
}

// InsuranceDelta 调整保额需要补交的保费，不退不减
func InsuranceDelta(current, next models.Money) models.Money {
	diff := InsurancePremium(next).Sub(InsurancePremium(current))
	if !diff.IsPositive() {
		return models.Yen(0)
	}
	return diff
}

// DisposalCost 销毁费 ceil(重量 × 300)
func DisposalCost(weightKg float64) models.Money {
	if weightKg <= 0 {
		return models.Yen(0)
	}
	cost := decimal.NewFromFloat(weightKg).Mul(decimal.NewFromInt(constants.DisposalPricePerKg)).Ceil()
	return models.NewMoneyFromDecimal(cost)
}

// CoveredValue 包裹总保额（基础保额 + 追加保额）
func CoveredValue(pkg *models.Package) models.Money {
	return models.Yen(constants.InsuranceBaseline).Add(pkg.AdditionalInsurance)
}
