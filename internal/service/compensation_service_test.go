package service

import (
	"context"
	"errors"
	"testing"

	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/models"
)

func shippedPackage(t *testing.T, env *fulfillmentEnv, userID uint, price int64) *models.Package {
	t.Helper()
	item := env.orderItem(t, userID, "Ceramic Vase", "", price)
	return env.pkg(t, userID, func(p *models.Package) {
		p.OrderItemID = &item.ID
		p.Status = constants.PackageStatusShipped
		p.ShippingRequested = true
		p.ShippingMethod = constants.ShippingMethodFedEx
	})
}

func TestFileCompensationRequiresShipment(t *testing.T) {
	env := setupFulfillmentTest(t)
	ctx := context.Background()
	env.user(t, 1, 0)
	ready := env.pkg(t, 1, nil)

	_, err := env.compensation.FileCompensationRequest(ctx, 1, CompensationInput{
		PackageID:         ready.ID,
		Description:       "lost",
		Files:             []string{"receipt.pdf"},
		DamageCertificate: "JP-POST-991",
	})
	requireIneligible(t, err, ReasonNotShippedYet)

	emsShipped := env.pkg(t, 1, func(p *models.Package) { p.Status = constants.PackageStatusShipped })
	_, err = env.compensation.FileCompensationRequest(ctx, 1, CompensationInput{
		PackageID:   emsShipped.ID,
		Description: "box crushed",
		Files:       []string{"photo.jpg"},
	})
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "damage_certificate" {
		t.Fatalf("EMS claim needs a damage certificate, got %v", err)
	}
}

func TestFileCompensationCarrierFollowsShipment(t *testing.T) {
	env := setupFulfillmentTest(t)
	ctx := context.Background()
	env.user(t, 1, 0)
	emsShipped := env.pkg(t, 1, func(p *models.Package) { p.Status = constants.PackageStatusShipped })

	_, err := env.compensation.FileCompensationRequest(ctx, 1, CompensationInput{
		PackageID:   emsShipped.ID,
		Carrier:     constants.ShippingMethodFedEx,
		Description: "box crushed",
		Files:       []string{"photo.jpg"},
	})
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "carrier" {
		t.Fatalf("carrier other than the shipment must be rejected, got %v", err)
	}

	req, err := env.compensation.FileCompensationRequest(ctx, 1, CompensationInput{
		PackageID:         emsShipped.ID,
		Carrier:           " EMS ",
		Description:       "box crushed",
		Files:             []string{"photo.jpg"},
		DamageCertificate: "JP-POST-992",
	})
	if err != nil {
		t.Fatalf("matching carrier must be accepted: %v", err)
	}
	if req.Carrier != constants.ShippingMethodEMS || req.DamageCertificate != "JP-POST-992" {
		t.Fatalf("unexpected request: carrier=%s cert=%s", req.Carrier, req.DamageCertificate)
	}
}

func TestCompensationResubmitKeepsNotesHistory(t *testing.T) {
	env := setupFulfillmentTest(t)
	ctx := context.Background()
	env.user(t, 1, 0)
	p := shippedPackage(t, env, 1, 6000)

	req, err := env.compensation.FileCompensationRequest(ctx, 1, CompensationInput{
		PackageID:        p.ID,
		Description:      "vase arrived broken",
		Files:            []string{"vase.jpg"},
		CompensationType: constants.CompensationTypeRefund,
	})
	if err != nil {
		t.Fatalf("file compensation failed: %v", err)
	}
	if req.Carrier != constants.ShippingMethodFedEx || len(req.SelectedPackageIDs) != 1 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if _, err := env.compensation.FileCompensationRequest(ctx, 1, CompensationInput{
		PackageID: p.ID, Description: "again", Files: []string{"vase.jpg"},
	}); err == nil {
		t.Fatalf("second active request must be rejected")
	}

	_, err = env.compensation.ResubmitCompensationRequest(ctx, 1, req.ID, CompensationResubmitInput{})
	requireIneligible(t, err, ReasonNotRejected)

	if _, err := env.compensation.ReviewCompensation(ctx, req.ID, CompensationReviewInput{
		Status: constants.CompensationStatusRejected,
		Notes:  "need packaging photos",
	}); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	resubmitted, err := env.compensation.ResubmitCompensationRequest(ctx, 1, req.ID, CompensationResubmitInput{
		Files: []string{"vase.jpg", "box.jpg"},
	})
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if resubmitted.Status != constants.CompensationStatusPending || resubmitted.AdminNotes != "" {
		t.Fatalf("unexpected resubmitted state: %+v", resubmitted)
	}
	if len(resubmitted.AdminNotesHistory) != 1 || resubmitted.AdminNotesHistory[0] != "need packaging photos" {
		t.Fatalf("notes history: %v", resubmitted.AdminNotesHistory)
	}
	if len(resubmitted.Files) != 2 || resubmitted.ResubmittedAt == nil {
		t.Fatalf("files must be replaced: %+v", resubmitted)
	}
}

func TestCompensationBalanceRefund(t *testing.T) {
	env := setupFulfillmentTest(t)
	ctx := context.Background()
	env.user(t, 1, 0)
	p := shippedPackage(t, env, 1, 6000)

	req, err := env.compensation.FileCompensationRequest(ctx, 1, CompensationInput{
		PackageID:        p.ID,
		Description:      "never arrived",
		Files:            []string{"tracking.png"},
		CompensationType: constants.CompensationTypeRefund,
	})
	if err != nil {
		t.Fatalf("file compensation failed: %v", err)
	}
	_, err = env.compensation.RequestCompensationRefund(ctx, 1, req.ID, RefundInput{Method: constants.RefundMethodBalance})
	requireIneligible(t, err, ReasonNotApprovedForRefund)

	_, err = env.compensation.ApproveCompensationForRefund(ctx, req.ID)
	requireIneligible(t, err, ReasonClaimNotApproved)

	if _, err := env.compensation.ReviewCompensation(ctx, req.ID, CompensationReviewInput{Status: constants.CompensationStatusApproved}); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, err := env.compensation.ApproveCompensationForRefund(ctx, req.ID); err != nil {
		t.Fatalf("approve for refund failed: %v", err)
	}
	_, err = env.compensation.RequestCompensationRefund(ctx, 1, req.ID, RefundInput{Method: constants.RefundMethodReplace})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("replace is not a compensation payout, got %v", err)
	}

	refunded, err := env.compensation.RequestCompensationRefund(ctx, 1, req.ID, RefundInput{Method: constants.RefundMethodBalance})
	if err != nil {
		t.Fatalf("balance refund failed: %v", err)
	}
	if !refunded.RefundProcessed {
		t.Fatalf("balance refund must settle immediately")
	}
	if got := env.balance(t, 1); got != 6000 {
		t.Fatalf("balance want 6000 got %d", got)
	}
	_, err = env.compensation.ReviewCompensation(ctx, req.ID, CompensationReviewInput{Status: constants.CompensationStatusRejected})
	requireIneligible(t, err, ReasonRefundProcessed)
}

func TestCompensationPaypalRefundConfirmed(t *testing.T) {
	env := setupFulfillmentTest(t)
	ctx := context.Background()
	env.user(t, 1, 0)
	p := shippedPackage(t, env, 1, 6000)

	req, err := env.compensation.FileCompensationRequest(ctx, 1, CompensationInput{
		PackageID: p.ID, Description: "lost in transit", Files: []string{"tracking.png"},
	})
	if err != nil {
		t.Fatalf("file compensation failed: %v", err)
	}
	if req.CompensationType != constants.CompensationTypeReplace {
		t.Fatalf("type must default to replace, got %s", req.CompensationType)
	}
	if _, err := env.compensation.ReviewCompensation(ctx, req.ID, CompensationReviewInput{Status: constants.CompensationStatusApproved}); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, err := env.compensation.ApproveCompensationForRefund(ctx, req.ID); err != nil {
		t.Fatalf("approve for refund failed: %v", err)
	}
	pending, err := env.compensation.RequestCompensationRefund(ctx, 1, req.ID, RefundInput{
		Method: constants.RefundMethodPaypal, PaymentEmail: "buyer@example.com", CardLast4: "1234",
	})
	if err != nil {
		t.Fatalf("paypal refund failed: %v", err)
	}
	if pending.RefundProcessed || pending.Status != constants.CompensationStatusProcessing {
		t.Fatalf("paypal refund must be processing: %+v", pending)
	}
	confirmed, err := env.compensation.ConfirmCompensationRefund(ctx, req.ID)
	if err != nil {
		t.Fatalf("confirm refund failed: %v", err)
	}
	if !confirmed.RefundProcessed || confirmed.Status != constants.CompensationStatusApproved {
		t.Fatalf("unexpected confirmed state: %+v", confirmed)
	}
	if got := env.balance(t, 1); got != 0 {
		t.Fatalf("paypal refund must not touch the wallet, balance=%d", got)
	}
}
