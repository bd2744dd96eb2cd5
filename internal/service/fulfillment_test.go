package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/parcel-relay/internal/carrier"
	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/models"
	"github.com/parcel-relay/internal/queue"
	"github.com/parcel-relay/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type stubQuoter struct {
	rates []carrier.Rate
	err   error
	calls int
	last  carrier.QuoteRequest
}

func (q *stubQuoter) Quote(_ context.Context, req carrier.QuoteRequest) ([]carrier.Rate, error) {
	q.calls++
	q.last = req
	if q.err != nil {
		return nil, q.err
	}
	return q.rates, nil
}

type fulfillmentEnv struct {
	db      *gorm.DB
	now     time.Time
	quoter  *stubQuoter
	deps    FulfillmentDeps
	wallet  *WalletService
	notices *NotificationService

	options       *PackageOptionService
	consolidation *ConsolidationService
	payments      *PaymentService
	shipping      *ShippingService
	addresses     *AddressService
	admin         *AdminFulfillmentService
	claims        *DamagedClaimService
	compensation  *CompensationService
	coupons       *CouponService
	queries       *PackageQueryService
	sweep         *StorageSweepService

	seq int
}

func setupFulfillmentTest(t *testing.T) *fulfillmentEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:fulfillment_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("queue client failed: %v", err)
	}
	env := &fulfillmentEnv{
		db:     db,
		now:    time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		quoter: &stubQuoter{},
	}
	env.wallet = NewWalletService(repository.NewWalletRepository(db))
	env.notices = NewNotificationService(repository.NewNotificationRepository(db), queueClient)
	env.deps = FulfillmentDeps{
		DB:            db,
		Locker:        NewLocalPackageLocker(time.Second),
		PackageRepo:   repository.NewPackageRepository(db),
		AddressRepo:   repository.NewAddressRepository(db),
		ClaimRepo:     repository.NewClaimRepository(db),
		OrderRepo:     repository.NewOrderRepository(db),
		CouponRepo:    repository.NewCouponRepository(db),
		Wallet:        env.wallet,
		Notifications: env.notices,
		Carrier:       env.quoter,
		Clock:         func() time.Time { return env.now },
	}
	env.consolidation = NewConsolidationService(env.deps)
	env.options = NewPackageOptionService(env.deps, env.consolidation)
	env.payments = NewPaymentService(env.deps)
	env.shipping = NewShippingService(env.deps)
	env.addresses = NewAddressService(env.deps)
	env.admin = NewAdminFulfillmentService(env.deps)
	env.claims = NewDamagedClaimService(env.deps)
	env.compensation = NewCompensationService(env.deps)
	env.coupons = NewCouponService(env.deps)
	env.queries = NewPackageQueryService(env.deps)
	env.sweep = NewStorageSweepService(env.deps)
	return env
}

// user 创建客户并充值
func (e *fulfillmentEnv) user(t *testing.T, id uint, balance int64) {
	t.Helper()
	user := models.User{ID: id, Email: fmt.Sprintf("customer_%d@example.com", id)}
	if err := e.db.Create(&user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	if balance > 0 {
		e.topUp(t, id, balance)
	}
}

func (e *fulfillmentEnv) topUp(t *testing.T, userID uint, amount int64) {
	t.Helper()
	e.seq++
	input := WalletAdjustInput{UserID: userID, Delta: models.Yen(amount), Remark: "test top up"}
	if _, err := e.wallet.AdminAdjustBalance(input, fmt.Sprintf("test:topup:%d:%d", userID, e.seq)); err != nil {
		t.Fatalf("top up failed: %v", err)
	}
}

func (e *fulfillmentEnv) balance(t *testing.T, userID uint) int64 {
	t.Helper()
	account, err := e.wallet.GetAccount(userID)
	if err != nil {
		t.Fatalf("get wallet failed: %v", err)
	}
	return account.Balance.Int64()
}

// pkg 创建一个刚入库、国内段已结清的 EMS 包裹
func (e *fulfillmentEnv) pkg(t *testing.T, userID uint, mutate func(p *models.Package)) *models.Package {
	t.Helper()
	weight := 1.2
	p := &models.Package{
		UserID:               userID,
		Status:               constants.PackageStatusReady,
		Weight:               &weight,
		ShippingMethod:       constants.ShippingMethodEMS,
		ShippingCost:         models.Yen(3000),
		DomesticShippingCost: models.Yen(0),
		ConsolidationKind:    constants.ConsolidationKindStandalone,
		ArrivedAt:            e.now.AddDate(0, 0, -5),
		Version:              1,
	}
	if mutate != nil {
		mutate(p)
	}
	if err := e.db.Create(p).Error; err != nil {
		t.Fatalf("create package failed: %v", err)
	}
	return p
}

func (e *fulfillmentEnv) orderItem(t *testing.T, userID uint, title, variant string, price int64) *models.OrderItem {
	t.Helper()
	order := &models.Order{UserID: userID, Status: constants.OrderStatusProcessing, TotalAmount: models.Yen(price)}
	if err := e.db.Create(order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	item := &models.OrderItem{OrderID: order.ID, Title: title, Variant: variant, Price: models.Yen(price), Quantity: 1}
	if err := e.db.Create(item).Error; err != nil {
		t.Fatalf("create order item failed: %v", err)
	}
	return item
}

func (e *fulfillmentEnv) address(t *testing.T, userID uint, country string) *models.Address {
	t.Helper()
	address, err := e.addresses.CreateAddress(context.Background(), userID, AddressInput{
		Name:       "Test Customer",
		Address:    "1 Harbour St",
		City:       "Vancouver",
		State:      "BC",
		PostalCode: "V6B 1A1",
		Country:    country,
	})
	if err != nil {
		t.Fatalf("create address failed: %v", err)
	}
	return address
}

func (e *fulfillmentEnv) reload(t *testing.T, id uint) *models.Package {
	t.Helper()
	var p models.Package
	if err := e.db.First(&p, id).Error; err != nil {
		t.Fatalf("reload package %d failed: %v", id, err)
	}
	return &p
}

func requireIneligible(t *testing.T, err error, reason BlockReason) *IneligibleTransitionError {
	t.Helper()
	var ineligibleErr *IneligibleTransitionError
	if !errors.As(err, &ineligibleErr) {
		t.Fatalf("expected ineligible transition, got %v", err)
	}
	if reason != "" && !ineligibleErr.Has(reason) {
		t.Fatalf("expected reason %s, got %v", reason, ineligibleErr.Reasons)
	}
	return ineligibleErr
}

func hasReason(reasons []BlockReason, reason BlockReason) bool {
	for _, r := range reasons {
		if r == reason {
			return true
		}
	}
	return false
}

func boolPtr(v bool) *bool { return &v }

func TestReinforcementRequiresDomesticPayment(t *testing.T) {
	env := setupFulfillmentTest(t)
	ctx := context.Background()
	env.user(t, 1, 5000)
	p := env.pkg(t, 1, func(p *models.Package) {
		p.DomesticShippingCost = models.Yen(1000)
	})

	_, err := env.options.SetPackageOptions(ctx, 1, p.ID, PackageOptionsInput{Reinforcement: boolPtr(true)})
	requireIneligible(t, err, ReasonDomesticUnpaid)
	if got := env.balance(t, 1); got != 5000 {
		t.Fatalf("rejected call must not debit, balance=%d", got)
	}

	paid, err := env.payments.PayDomesticShipping(ctx, 1, p.ID)
	if err != nil {
		t.Fatalf("pay domestic failed: %v", err)
	}
	if paid.Charged.Int64() != 1000 {
		t.Fatalf("domestic charge want 1000 got %s", paid.Charged.String())
	}

	result, err := env.options.SetPackageOptions(ctx, 1, p.ID, PackageOptionsInput{Reinforcement: boolPtr(true)})
	if err != nil {
		t.Fatalf("enable reinforcement failed: %v", err)
	}
	if result.Charged.Int64() != constants.ReinforcementPrice {
		t.Fatalf("reinforcement charge want %d got %s", constants.ReinforcementPrice, result.Charged.String())
	}
	if got := env.balance(t, 1); got != 3000 {
		t.Fatalf("balance want 3000 got %d", got)
	}
	stored := env.reload(t, p.ID)
	if !stored.Reinforcement || !stored.ReinforcementPaid || !stored.DomesticShippingPaid {
		t.Fatalf("unexpected flags: %+v", stored)
	}
}

func TestResubmittedMergeSetFailsWhenMemberDisposed(t *testing.T) {
	env := setupFulfillmentTest(t)
	ctx := context.Background()
	env.user(t, 1, 5000)
	a := env.pkg(t, 1, nil)
	b := env.pkg(t, 1, nil)

	if _, err := env.options.SetPackageOptions(ctx, 1, a.ID, PackageOptionsInput{
		Consolidation:   boolPtr(true),
		ConsolidateWith: []uint{b.ID},
	}); err != nil {
		t.Fatalf("opt in failed: %v", err)
	}
	if _, err := env.payments.RequestDisposal(ctx, 1, b.ID); err != nil {
		t.Fatalf("dispose member failed: %v", err)
	}

	_, err := env.options.SetPackageOptions(ctx, 1, a.ID, PackageOptionsInput{ConsolidateWith: []uint{b.ID}})
	ineligibleErr := requireIneligible(t, err, ReasonMemberIneligible)
	if !hasReason(ineligibleErr.PackageReasons[b.ID], ReasonDisposalRequested) {
		t.Fatalf("expected disposal reason for member, got %v", ineligibleErr.PackageReasons)
	}

	_, err = env.consolidation.Finalize(ctx, FinalizeConsolidationInput{AnchorID: a.ID})
	requireIneligible(t, err, ReasonMemberIneligible)
	stored := env.reload(t, a.ID)
	if !stored.Consolidation().OptedIn() || len(stored.ConsolidationMembers) != 1 {
		t.Fatalf("merge set must be kept, got %+v", stored.Consolidation())
	}
	if member := env.reload(t, b.ID); member.Status == constants.PackageStatusConsolidated {
		t.Fatalf("member must not be absorbed")
	}
}

func TestPhotoServiceInsufficientBalance(t *testing.T) {
	env := setupFulfillmentTest(t)
	env.user(t, 1, 400)
	p := env.pkg(t, 1, nil)

	_, err := env.options.SetPackageOptions(context.Background(), 1, p.ID, PackageOptionsInput{PhotoService: boolPtr(true)})
	var balanceErr *InsufficientBalanceError
	if !errors.As(err, &balanceErr) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if balanceErr.Shortfall().Int64() != 100 {
		t.Fatalf("shortfall want 100 got %s", balanceErr.Shortfall().String())
	}
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("error must match sentinel")
	}
	if stored := env.reload(t, p.ID); stored.PhotoService || stored.PhotoServicePaid {
		t.Fatalf("photo flag must stay unset")
	}
	if got := env.balance(t, 1); got != 400 {
		t.Fatalf("balance must be untouched, got %d", got)
	}
}

func TestAddressLockReleasedOnDelivery(t *testing.T) {
	env := setupFulfillmentTest(t)
	ctx := context.Background()
	env.user(t, 1, 10000)
	x := env.address(t, 1, "Canada")
	p := env.pkg(t, 1, nil)
	q := env.pkg(t, 1, nil)

	if _, err := env.shipping.RequestShipping(ctx, 1, p.ID, ShippingRequestInput{AddressID: &x.ID}); err != nil {
		t.Fatalf("ship P failed: %v", err)
	}
	_, err := env.shipping.RequestShipping(ctx, 1, q.ID, ShippingRequestInput{AddressID: &x.ID})
	requireIneligible(t, err, ReasonAddressLocked)
	if got := env.balance(t, 1); got != 7000 {
		t.Fatalf("only P should be charged, balance=%d", got)
	}

	if _, err := env.admin.MarkShipped(ctx, p.ID, "EJ123456789JP"); err != nil {
		t.Fatalf("mark shipped failed: %v", err)
	}
	if _, err := env.admin.MarkDelivered(ctx, p.ID); err != nil {
		t.Fatalf("mark delivered failed: %v", err)
	}
	result, err := env.shipping.RequestShipping(ctx, 1, q.ID, ShippingRequestInput{AddressID: &x.ID})
	if err != nil {
		t.Fatalf("ship Q after delivery failed: %v", err)
	}
	if result.Package.Status != constants.PackageStatusPendingShipping || !result.Package.ShippingRequested {
		t.Fatalf("unexpected Q state: %+v", result.Package)
	}
}
