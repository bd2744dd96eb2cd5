package service

import (
	"testing"

	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/models"
)

func offerOf(t *testing.T, offers []ServiceOffer, kind ServiceKind) ServiceOffer {
	t.Helper()
	for _, offer := range offers {
		if offer.Service == kind {
			return offer
		}
	}
	t.Fatalf("service %s not offered", kind)
	return ServiceOffer{}
}

func TestInsurancePremium(t *testing.T) {
	cases := []struct {
		coverage int64
		premium  int64
	}{
		{0, 0},
		{1, 50},
		{20000, 50},
		{20001, 100},
		{60000, 150},
	}
	for _, tc := range cases {
		if got := InsurancePremium(models.Yen(tc.coverage)).Int64(); got != tc.premium {
			t.Fatalf("coverage %d: premium want %d got %d", tc.coverage, tc.premium, got)
		}
	}
	if got := InsuranceDelta(models.Yen(40000), models.Yen(20000)).Int64(); got != 0 {
		t.Fatalf("lowering coverage must cost nothing, got %d", got)
	}
	if got := InsuranceDelta(models.Yen(20000), models.Yen(50000)).Int64(); got != 100 {
		t.Fatalf("delta want 100 got %d", got)
	}
}

func TestDisposalCost(t *testing.T) {
	if got := DisposalCost(1.2).Int64(); got != 360 {
		t.Fatalf("1.2kg want 360 got %d", got)
	}
	if got := DisposalCost(0.01).Int64(); got != 3 {
		t.Fatalf("cost must round up, got %d", got)
	}
	if got := DisposalCost(0).Int64(); got != 0 {
		t.Fatalf("unknown weight costs nothing, got %d", got)
	}
}

func TestEvaluateServicesWithConsolidationOptIn(t *testing.T) {
	p := &models.Package{
		ID:                1,
		Status:            constants.PackageStatusReady,
		ConsolidationKind: constants.ConsolidationKindStandalone,
	}
	if err := p.ApplyConsolidation(models.AnchorOf(2)); err != nil {
		t.Fatalf("apply consolidation failed: %v", err)
	}
	offers := EvaluateServices(p, PackageFacts{})
	if offer := offerOf(t, offers, ServicePhoto); offer.Available || !hasReason(offer.Reasons, ReasonConsolidationEnabled) {
		t.Fatalf("photo must be blocked by a pending merge: %+v", offer)
	}
	if offer := offerOf(t, offers, ServiceCancelPurchase); offer.Available {
		t.Fatalf("cancel purchase must be blocked by a pending merge: %+v", offer)
	}
	if offer := offerOf(t, offers, ServiceReinforcement); !offer.Available || offer.Price.Int64() != constants.ReinforcementPrice {
		t.Fatalf("reinforcement must stay available: %+v", offer)
	}
	if offer := offerOf(t, offers, ServiceConsolidation); !offer.Enabled {
		t.Fatalf("consolidation must be reported enabled: %+v", offer)
	}
}

func TestEvaluateServicesAutoAnchorKeepsPhoto(t *testing.T) {
	p := &models.Package{ID: 1, Status: constants.PackageStatusReady}
	if err := p.ApplyConsolidation(models.AutoAnchorOf(2)); err != nil {
		t.Fatalf("apply consolidation failed: %v", err)
	}
	offer := offerOf(t, EvaluateServices(p, PackageFacts{}), ServicePhoto)
	if !offer.Available {
		t.Fatalf("auto merge must not block photo service: %+v", offer)
	}
}

func TestReinforcementExcludesCancelPurchase(t *testing.T) {
	p := &models.Package{ID: 1, Status: constants.PackageStatusReady, Reinforcement: true}
	offer := offerOf(t, EvaluateServices(p, PackageFacts{}), ServiceCancelPurchase)
	if offer.Available || !hasReason(offer.Reasons, ReasonReinforcementActive) {
		t.Fatalf("cancel purchase must be blocked by reinforcement: %+v", offer)
	}
}

func TestDisposalBlockedByUnpaidDomesticLeg(t *testing.T) {
	weight := 1.5
	p := &models.Package{
		ID:                   1,
		Status:               constants.PackageStatusReady,
		Weight:               &weight,
		DomesticShippingCost: models.Yen(600),
	}
	offer := offerOf(t, EvaluateServices(p, PackageFacts{}), ServiceDisposal)
	if offer.Available || !hasReason(offer.Reasons, ReasonDomesticUnpaid) {
		t.Fatalf("disposal must wait for the domestic leg: %+v", offer)
	}

	p.DomesticShippingPaid = true
	offer = offerOf(t, EvaluateServices(p, PackageFacts{}), ServiceDisposal)
	if !offer.Available {
		t.Fatalf("paid domestic leg must allow disposal: %+v", offer)
	}
}
