package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/parcel-relay/internal/carrier"
	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/models"
	"github.com/parcel-relay/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CarrierQuoter 承运商运费查询
type CarrierQuoter interface {
	Quote(ctx context.Context, req carrier.QuoteRequest) ([]carrier.Rate, error)
}

// FulfillmentDeps 包裹履约服务共享依赖
type FulfillmentDeps struct {
	DB            *gorm.DB
	Locker        PackageLocker
	PackageRepo   repository.PackageRepository
	AddressRepo   repository.AddressRepository
	ClaimRepo     repository.ClaimRepository
	OrderRepo     repository.OrderRepository
	CouponRepo    repository.CouponRepository
	Wallet        *WalletService
	Notifications *NotificationService
	Carrier       CarrierQuoter
	Clock         func() time.Time
}

// fulfillmentCore 每个客户意图按 加锁 → 事务 → 行锁 → 复核 → 版本写入 执行
type fulfillmentCore struct {
	FulfillmentDeps
}

func newFulfillmentCore(deps FulfillmentDeps) fulfillmentCore {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Locker == nil {
		deps.Locker = NewLocalPackageLocker(3 * time.Second)
	}
	return fulfillmentCore{FulfillmentDeps: deps}
}

func (c *fulfillmentCore) now() time.Time {
	return c.Clock()
}

// run 锁定包裹后在单个事务内执行，提交成功才推送变更
func (c *fulfillmentCore) run(ctx context.Context, lockIDs []uint, fn func(tx *gorm.DB, changes *ChangeSet) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	release, err := c.Locker.Lock(ctx, lockIDs...)
	if err != nil {
		return err
	}
	defer release()

	changes := c.Notifications.Begin()
	if err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, changes)
	}); err != nil {
		return err
	}
	changes.Publish()
	return nil
}

// loadOwned 加锁读取客户自己的包裹，他人包裹按不存在处理
func (c *fulfillmentCore) loadOwned(tx *gorm.DB, userID, packageID uint) (*models.Package, error) {
	pkg, err := c.PackageRepo.WithTx(tx).GetByIDForUpdate(packageID)
	if err != nil {
		return nil, err
	}
	if pkg == nil || (userID != 0 && pkg.UserID != userID) {
		return nil, ErrPackageNotFound
	}
	return pkg, nil
}

// save 按版本号写回包裹
func (c *fulfillmentCore) save(tx *gorm.DB, pkg *models.Package) error {
	if err := c.PackageRepo.WithTx(tx).UpdateVersioned(pkg); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return &ConflictError{Entity: "package", ID: pkg.ID}
		}
		return fmt.Errorf("update package failed: %w", err)
	}
	return nil
}

// facts 在事务内读取包裹判定事实
func (c *fulfillmentCore) facts(tx *gorm.DB, pkg *models.Package) (PackageFacts, error) {
	machine := NewPackageStateMachine(c.PackageRepo.WithTx(tx), c.ClaimRepo.WithTx(tx))
	return machine.LoadFacts(pkg, c.now())
}

// destination 包裹的目的地址：已绑定地址优先，否则取客户第一个地址
func (c *fulfillmentCore) destination(tx *gorm.DB, pkg *models.Package) (*models.Address, error) {
	repo := c.AddressRepo.WithTx(tx)
	if pkg.ShippingAddressID != nil {
		address, err := repo.GetByID(*pkg.ShippingAddressID)
		if err != nil {
			return nil, err
		}
		if address != nil && address.UserID == pkg.UserID {
			return address, nil
		}
	}
	return repo.FirstByUser(pkg.UserID)
}

// charge 扣款，参考号绑定包裹版本保证同一次提交只扣一次
func (c *fulfillmentCore) charge(tx *gorm.DB, pkg *models.Package, txnType, purpose string, amount models.Money, remark string) error {
	if !amount.IsPositive() {
		return nil
	}
	id := pkg.ID
	_, err := c.Wallet.DebitTx(tx, WalletChargeInput{
		UserID:    pkg.UserID,
		Amount:    amount,
		TxnType:   txnType,
		Reference: fmt.Sprintf("package:%d:%s:v%d", pkg.ID, purpose, pkg.Version),
		Remark:    remark,
		PackageID: &id,
	})
	return err
}

// refund 退款到余额
func (c *fulfillmentCore) refund(tx *gorm.DB, userID uint, packageID *uint, reference string, amount models.Money, remark string) error {
	if !amount.IsPositive() {
		return nil
	}
	_, err := c.Wallet.CreditTx(tx, WalletChargeInput{
		UserID:    userID,
		Amount:    amount,
		TxnType:   constants.WalletTxnTypeRefund,
		Reference: reference,
		Remark:    remark,
		PackageID: packageID,
	})
	return err
}

// requireFunds 先整体校验余额，避免部分扣款后失败
func (c *fulfillmentCore) requireFunds(tx *gorm.DB, userID uint, required models.Money) error {
	if !required.IsPositive() {
		return nil
	}
	available, err := c.Wallet.BalanceForUpdate(tx, userID)
	if err != nil {
		return err
	}
	if available.LessThan(required.Decimal) {
		return &InsufficientBalanceError{Required: required, Available: available}
	}
	return nil
}

// clearOptIn 取消合箱选择并清除成员视图
func (c *fulfillmentCore) clearOptIn(tx *gorm.DB, anchor *models.Package) error {
	if err := anchor.ApplyConsolidation(anchor.Consolidation().WithoutMembers()); err != nil {
		return err
	}
	return c.PackageRepo.WithTx(tx).DeleteMemberships(anchor.ID)
}

// itemValue 包裹内商品金额，合并包裹按合并前快照累加
func (c *fulfillmentCore) itemValue(tx *gorm.DB, pkg *models.Package) (models.Money, error) {
	total := models.Yen(0)
	if len(pkg.OriginalItems) > 0 {
		for _, item := range pkg.OriginalItems {
			total = total.Add(lineAmount(item.Price, item.Quantity))
		}
		return total, nil
	}
	if pkg.OrderItemID == nil {
		return total, nil
	}
	item, err := c.OrderRepo.WithTx(tx).GetItemByID(*pkg.OrderItemID)
	if err != nil {
		return total, err
	}
	if item == nil {
		return total, ErrOrderItemNotFound
	}
	return lineAmount(item.Price, item.Quantity), nil
}

func lineAmount(price models.Money, quantity int) models.Money {
	if quantity <= 0 {
		quantity = 1
	}
	return models.NewMoneyFromDecimal(price.Mul(decimal.NewFromInt(int64(quantity))))
}

func uintPtr(v uint) *uint {
	return &v
}
