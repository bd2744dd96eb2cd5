package service

import (
	"context"
	"errors"
	"testing"

	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/models"
	"github.com/parcel-relay/internal/repository"
)

func TestPayDomesticSharedGroupChargesOnce(t *testing.T) {
	env := setupFulfillmentTest(t)
	ctx := context.Background()
	env.user(t, 1, 5000)
	shared := func(p *models.Package) {
		p.DomesticShippingCost = models.Yen(800)
		p.SharedDomesticGroup = "seller-42"
	}
	a := env.pkg(t, 1, shared)
	b := env.pkg(t, 1, shared)

	result, err := env.payments.PayDomesticShipping(ctx, 1, a.ID)
	if err != nil {
		t.Fatalf("pay domestic failed: %v", err)
	}
	if result.Charged.Int64() != 800 || len(result.Packages) != 2 {
		t.Fatalf("unexpected result: charged=%s packages=%d", result.Charged.String(), len(result.Packages))
	}
	if got := env.balance(t, 1); got != 4200 {
		t.Fatalf("balance want 4200 got %d", got)
	}
	if !env.reload(t, b.ID).DomesticShippingPaid {
		t.Fatalf("group member must be marked paid")
	}

	_, err = env.payments.PayDomesticShipping(ctx, 1, b.ID)
	requireIneligible(t, err, ReasonAlreadyPaid)
	if got := env.balance(t, 1); got != 4200 {
		t.Fatalf("second payment must not debit, balance=%d", got)
	}
}

func TestPayDomesticNothingToPay(t *testing.T) {
	env := setupFulfillmentTest(t)
	env.user(t, 1, 5000)
	p := env.pkg(t, 1, nil)

	_, err := env.payments.PayDomesticShipping(context.Background(), 1, p.ID)
	requireIneligible(t, err, ReasonNothingToPay)
}

func TestPaymentOnOtherCustomersPackage(t *testing.T) {
	env := setupFulfillmentTest(t)
	env.user(t, 1, 5000)
	env.user(t, 2, 5000)
	p := env.pkg(t, 1, func(p *models.Package) { p.DomesticShippingCost = models.Yen(500) })

	if _, err := env.payments.PayDomesticShipping(context.Background(), 2, p.ID); !errors.Is(err, ErrPackageNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPayStorageResetsUnpaidDays(t *testing.T) {
	env := setupFulfillmentTest(t)
	ctx := context.Background()
	env.user(t, 1, 1000)
	p := env.pkg(t, 1, func(p *models.Package) {
		p.ArrivedAt = env.now.AddDate(0, 0, -65)
	})

	_, err := env.shipping.RequestShipping(ctx, 1, p.ID, ShippingRequestInput{})
	requireIneligible(t, err, ReasonStorageUnpaid)

	result, err := env.payments.PayStorage(ctx, 1, p.ID)
	if err != nil {
		t.Fatalf("pay storage failed: %v", err)
	}
	if result.Charged.Int64() != 5*constants.StorageFeePerDay {
		t.Fatalf("storage fee want %d got %s", 5*constants.StorageFeePerDay, result.Charged.String())
	}
	info := StorageOf(env.reload(t, p.ID), env.now)
	if info.UnpaidDays != 0 || !info.CanShip {
		t.Fatalf("storage must be settled: %+v", info)
	}

	_, err = env.payments.PayStorage(ctx, 1, p.ID)
	requireIneligible(t, err, ReasonNothingToPay)
}

func TestPayStorageRejectedWhenExpired(t *testing.T) {
	env := setupFulfillmentTest(t)
	env.user(t, 1, 1000)
	p := env.pkg(t, 1, func(p *models.Package) {
		p.ArrivedAt = env.now.AddDate(0, 0, -75)
	})

	_, err := env.payments.PayStorage(context.Background(), 1, p.ID)
	requireIneligible(t, err, ReasonStorageExpired)
}

func TestCancellationFeeFlow(t *testing.T) {
	env := setupFulfillmentTest(t)
	ctx := context.Background()
	env.user(t, 1, 5000)
	item := env.orderItem(t, 1, "Figure", "", 2500)
	p := env.pkg(t, 1, func(p *models.Package) { p.OrderItemID = &item.ID })

	if _, err := env.options.SetPackageOptions(ctx, 1, p.ID, PackageOptionsInput{CancelPurchase: boolPtr(true)}); err != nil {
		t.Fatalf("request cancel purchase failed: %v", err)
	}
	_, err := env.payments.PayCancellationFee(ctx, 1, p.ID)
	requireIneligible(t, err, ReasonCancelNotAwaitingFee)

	if _, err := env.admin.RequestCancelPayment(ctx, p.ID); err != nil {
		t.Fatalf("request cancel payment failed: %v", err)
	}
	result, err := env.payments.PayCancellationFee(ctx, 1, p.ID)
	if err != nil {
		t.Fatalf("pay cancellation fee failed: %v", err)
	}
	if result.Charged.Int64() != constants.CancelPurchaseFee {
		t.Fatalf("fee want %d got %s", constants.CancelPurchaseFee, result.Charged.String())
	}

	approved, err := env.admin.UpdateCancelPurchase(ctx, p.ID, CancelPurchaseDecision{Approve: true, Refund: true})
	if err != nil {
		t.Fatalf("approve cancel purchase failed: %v", err)
	}
	if approved.CancelPurchaseStatus != constants.CancelPurchaseStatusApproved {
		t.Fatalf("status want approved got %s", approved.CancelPurchaseStatus)
	}
	if got := env.balance(t, 1); got != 5000-constants.CancelPurchaseFee+2500 {
		t.Fatalf("unexpected balance %d", got)
	}
}

func TestDisposalDeclineRefundsCost(t *testing.T) {
	env := setupFulfillmentTest(t)
	ctx := context.Background()
	env.user(t, 1, 1000)
	p := env.pkg(t, 1, nil)

	result, err := env.payments.RequestDisposal(ctx, 1, p.ID)
	if err != nil {
		t.Fatalf("request disposal failed: %v", err)
	}
	if result.Charged.Int64() != 360 {
		t.Fatalf("disposal cost want 360 got %s", result.Charged.String())
	}
	if _, err := env.payments.RequestDisposal(ctx, 1, p.ID); err == nil {
		t.Fatalf("second disposal request must be rejected")
	}

	declined, err := env.admin.DeclineDisposal(ctx, p.ID, "item has resale value")
	if err != nil {
		t.Fatalf("decline disposal failed: %v", err)
	}
	if declined.DisposalRequested || declined.DisposalCost != nil || declined.DisposalDeclineReason == "" {
		t.Fatalf("unexpected disposal state: %+v", declined)
	}
	if got := env.balance(t, 1); got != 1000 {
		t.Fatalf("cost must be refunded, balance=%d", got)
	}

	txns, _, err := env.wallet.ListTransactions(repository.WalletTransactionListFilter{UserID: 1})
	if err != nil {
		t.Fatalf("list transactions failed: %v", err)
	}
	var refunds int
	for _, txn := range txns {
		if txn.Type == constants.WalletTxnTypeRefund {
			refunds++
		}
	}
	if refunds != 1 {
		t.Fatalf("want exactly one refund transaction, got %d", refunds)
	}
}

func TestCompleteDisposal(t *testing.T) {
	env := setupFulfillmentTest(t)
	ctx := context.Background()
	env.user(t, 1, 1000)
	p := env.pkg(t, 1, nil)

	_, err := env.admin.CompleteDisposal(ctx, p.ID)
	requireIneligible(t, err, ReasonDisposalNotRequested)

	if _, err := env.payments.RequestDisposal(ctx, 1, p.ID); err != nil {
		t.Fatalf("request disposal failed: %v", err)
	}
	disposed, err := env.admin.CompleteDisposal(ctx, p.ID)
	if err != nil {
		t.Fatalf("complete disposal failed: %v", err)
	}
	if disposed.Status != constants.PackageStatusDisposed {
		t.Fatalf("status want disposed got %s", disposed.Status)
	}
	_, err = env.options.SetPackageOptions(ctx, 1, p.ID, PackageOptionsInput{PhotoService: boolPtr(true)})
	requireIneligible(t, err, ReasonDisposed)
}

func TestAdditionalShippingCharge(t *testing.T) {
	env := setupFulfillmentTest(t)
	ctx := context.Background()
	env.user(t, 1, 5000)
	p := env.pkg(t, 1, nil)

	if _, err := env.admin.ChargeAdditional(ctx, p.ID, models.Yen(0), "oversize"); err == nil {
		t.Fatalf("zero amount must be rejected")
	}
	if _, err := env.admin.ChargeAdditional(ctx, p.ID, models.Yen(700), "oversize box"); err != nil {
		t.Fatalf("charge additional failed: %v", err)
	}
	result, err := env.payments.PayAdditionalShipping(ctx, 1, p.ID)
	if err != nil {
		t.Fatalf("pay additional failed: %v", err)
	}
	if result.Charged.Int64() != 700 || !result.Package.AdditionalShippingPaid {
		t.Fatalf("unexpected result %+v", result)
	}
	_, err = env.payments.PayAdditionalShipping(ctx, 1, p.ID)
	requireIneligible(t, err, ReasonAlreadyPaid)
	if got := env.balance(t, 1); got != 4300 {
		t.Fatalf("balance want 4300 got %d", got)
	}
}

func TestApprovedCancellationIsTerminal(t *testing.T) {
	env := setupFulfillmentTest(t)
	ctx := context.Background()
	env.user(t, 1, 5000)
	item := env.orderItem(t, 1, "Figure", "", 2500)
	p := env.pkg(t, 1, func(p *models.Package) {
		p.OrderItemID = &item.ID
		p.PhotoService = true
		p.PhotoServicePaid = true
		p.PhotoServiceStatus = constants.ServiceStatusCompleted
		p.Photos = models.StringArray{"figure-1.jpg"}
	})

	if _, err := env.options.SetPackageOptions(ctx, 1, p.ID, PackageOptionsInput{CancelPurchase: boolPtr(true)}); err != nil {
		t.Fatalf("request cancel purchase failed: %v", err)
	}
	if _, err := env.admin.RequestCancelPayment(ctx, p.ID); err != nil {
		t.Fatalf("request cancel payment failed: %v", err)
	}
	if _, err := env.payments.PayCancellationFee(ctx, 1, p.ID); err != nil {
		t.Fatalf("pay cancellation fee failed: %v", err)
	}
	if _, err := env.admin.UpdateCancelPurchase(ctx, p.ID, CancelPurchaseDecision{Approve: true, Refund: true}); err != nil {
		t.Fatalf("approve cancel purchase failed: %v", err)
	}
	want := int64(5000 - constants.CancelPurchaseFee + 2500)
	if got := env.balance(t, 1); got != want {
		t.Fatalf("balance want %d got %d", want, got)
	}
	if got := env.reload(t, p.ID).Status; got != constants.PackageStatusCancelled {
		t.Fatalf("status want cancelled got %s", got)
	}

	_, err := env.admin.UpdateCancelPurchase(ctx, p.ID, CancelPurchaseDecision{Approve: true, Refund: true})
	requireIneligible(t, err, ReasonPurchaseCancelled)
	_, err = env.claims.FileDamagedItemClaim(ctx, 1, p.ID, DamagedClaimInput{Description: "box crushed"})
	requireIneligible(t, err, ReasonPurchaseCancelled)
	_, err = env.payments.RequestDisposal(ctx, 1, p.ID)
	requireIneligible(t, err, ReasonPurchaseCancelled)
	_, err = env.options.SetPackageOptions(ctx, 1, p.ID, PackageOptionsInput{Reinforcement: boolPtr(true)})
	requireIneligible(t, err, ReasonPurchaseCancelled)
	if got := env.balance(t, 1); got != want {
		t.Fatalf("cancelled package must not be refunded again, balance %d", got)
	}

	views, err := env.queries.ListPackages(1)
	if err != nil {
		t.Fatalf("list packages failed: %v", err)
	}
	for _, v := range views {
		if v.ID == p.ID {
			t.Fatalf("cancelled package must not be listed")
		}
	}
}

func TestCancellationRefundSkippedAfterDamagedRefund(t *testing.T) {
	env := setupFulfillmentTest(t)
	ctx := context.Background()
	env.user(t, 1, 0)
	item := env.orderItem(t, 1, "Figure", "", 2500)
	p := env.pkg(t, 1, func(p *models.Package) {
		p.OrderItemID = &item.ID
		p.CancelPurchase = true
		p.CancelPurchaseStatus = constants.CancelPurchaseStatusPaid
	})
	claim := &models.DamagedItemClaim{
		PackageID:       p.ID,
		UserID:          1,
		Description:     "screen cracked",
		Status:          constants.ClaimStatusApproved,
		RefundRequested: true,
		RefundMethod:    constants.RefundMethodBalance,
	}
	if err := env.db.Create(claim).Error; err != nil {
		t.Fatalf("create claim failed: %v", err)
	}

	_, err := env.admin.UpdateCancelPurchase(ctx, p.ID, CancelPurchaseDecision{Approve: true, Refund: true})
	requireIneligible(t, err, ReasonItemAlreadyRefunded)
	if got := env.balance(t, 1); got != 0 {
		t.Fatalf("no refund may be paid, balance %d", got)
	}

	if _, err := env.admin.UpdateCancelPurchase(ctx, p.ID, CancelPurchaseDecision{Approve: true}); err != nil {
		t.Fatalf("approve without refund failed: %v", err)
	}
	if got := env.reload(t, p.ID).Status; got != constants.PackageStatusCancelled {
		t.Fatalf("status want cancelled got %s", got)
	}
}
