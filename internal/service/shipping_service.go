package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/parcel-relay/internal/carrier"
	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/logger"
	"github.com/parcel-relay/internal/models"

	"gorm.io/gorm"
)

// ShippingRequestInput 客户申请国际发货
type ShippingRequestInput struct {
	AddressID      *uint
	CarrierService string
}

// ShippingRequestResult 申请结果，需要选择承运商服务时不扣款
type ShippingRequestResult struct {
	Package               *models.Package
	NeedsCarrierSelection bool
	Options               []carrier.Rate
	Charged               models.Money
}

// ShippingService 国际发货申请
type ShippingService struct {
	fulfillmentCore
}

// NewShippingService 创建发货服务
func NewShippingService(deps FulfillmentDeps) *ShippingService {
	return &ShippingService{fulfillmentCore: newFulfillmentCore(deps)}
}

// shippingQuote 事务外确定的国际运费
type shippingQuote struct {
	addressID uint
	version   uint
	cost      models.Money
	service   string
}

// RequestShipping 申请发货：承运商询价在事务外完成，扣款、锁地址与状态变更在同一事务内
func (s *ShippingService) RequestShipping(ctx context.Context, userID, packageID uint, input ShippingRequestInput) (*ShippingRequestResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	quote, options, err := s.prepareQuote(ctx, userID, packageID, input)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return &ShippingRequestResult{NeedsCarrierSelection: true, Options: options, Charged: models.Yen(0)}, nil
	}

	result := &ShippingRequestResult{Charged: models.Yen(0)}
	err = s.run(ctx, []uint{packageID}, func(tx *gorm.DB, changes *ChangeSet) error {
		pkg, err := s.loadOwned(tx, userID, packageID)
		if err != nil {
			return err
		}
		if pkg.Version != quote.version {
			return &ConflictError{Entity: "package", ID: pkg.ID}
		}
		facts, err := s.facts(tx, pkg)
		if err != nil {
			return err
		}
		if reasons := ShippingBlockers(pkg, facts); len(reasons) > 0 {
			return &IneligibleTransitionError{Action: ActionRequestShipping, Reasons: reasons}
		}

		address, err := s.AddressRepo.WithTx(tx).GetByIDForUpdate(quote.addressID)
		if err != nil {
			return err
		}
		if address == nil || address.UserID != pkg.UserID {
			return ErrAddressNotFound
		}
		holder, err := s.PackageRepo.WithTx(tx).FindInFlightByAddress(address.ID, pkg.ID)
		if err != nil {
			return err
		}
		if holder != nil {
			return ineligible(ActionRequestShipping, ReasonAddressLocked)
		}

		additional := models.Yen(0)
		if pkg.AdditionalShippingCost.IsPositive() && !pkg.AdditionalShippingPaid {
			additional = pkg.AdditionalShippingCost
		}
		total := quote.cost.Add(additional)
		if err := s.requireFunds(tx, pkg.UserID, total); err != nil {
			return err
		}
		remark := fmt.Sprintf("International shipping (%s)", strings.ToUpper(pkg.ShippingMethod))
		if err := s.charge(tx, pkg, constants.WalletTxnTypeShipping, "shipping", quote.cost, remark); err != nil {
			return err
		}
		if err := s.charge(tx, pkg, constants.WalletTxnTypeShipping, "additional", additional, "Additional shipping"); err != nil {
			return err
		}

		now := s.now()
		addressID := address.ID
		pkg.ShippingRequested = true
		pkg.ShippingRequestedAt = &now
		pkg.ShippingAddressID = &addressID
		pkg.ShippingCost = quote.cost
		pkg.SelectedCarrierService = quote.service
		pkg.Status = constants.PackageStatusPendingShipping
		if additional.IsPositive() {
			pkg.AdditionalShippingPaid = true
		}
		if err := s.save(tx, pkg); err != nil {
			return err
		}

		if err := changes.Package(tx, pkg, ActionRequestShipping); err != nil {
			return err
		}
		if err := changes.Record(tx, pkg.UserID, constants.ChangeEntityAddress, address.ID, ActionRequestShipping, 0); err != nil {
			return err
		}
		if total.IsPositive() {
			if err := changes.Record(tx, pkg.UserID, constants.ChangeEntityWallet, pkg.UserID, ActionRequestShipping, 0); err != nil {
				return err
			}
		}
		result.Package = pkg
		result.Charged = total
		return changes.Notify(tx, pkg.UserID, constants.NotificationKindPackage,
			"Shipping requested",
			fmt.Sprintf("Package #%d will ship to %s, %s. Charged ¥%s.", pkg.ID, address.City, address.Country, total.String()),
			uintPtr(pkg.ID))
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("shipping_request_committed",
		"package_id", packageID,
		"user_id", userID,
		"address_id", quote.addressID,
		"method", result.Package.ShippingMethod,
		"charged", result.Charged.String(),
	)
	return result, nil
}

// prepareQuote 事务外校验并询价；返回 nil 报价表示客户需先选择承运商服务
func (s *ShippingService) prepareQuote(ctx context.Context, userID, packageID uint, input ShippingRequestInput) (*shippingQuote, []carrier.Rate, error) {
	pkg, err := s.PackageRepo.GetByID(packageID)
	if err != nil {
		return nil, nil, err
	}
	if pkg == nil || pkg.UserID != userID {
		return nil, nil, ErrPackageNotFound
	}
	facts, err := s.facts(s.DB, pkg)
	if err != nil {
		return nil, nil, err
	}
	if reasons := ShippingBlockers(pkg, facts); len(reasons) > 0 {
		return nil, nil, &IneligibleTransitionError{Action: ActionRequestShipping, Reasons: reasons}
	}

	address, err := s.resolveAddress(userID, input.AddressID)
	if err != nil {
		return nil, nil, err
	}
	holder, err := s.PackageRepo.FindInFlightByAddress(address.ID, pkg.ID)
	if err != nil {
		return nil, nil, err
	}

	var reasons reasonSet
	reasons.add(holder != nil, ReasonAddressLocked)
	reasons.add(pkg.Weight == nil || pkg.WeightKg() <= 0, ReasonWeightUnknown)
	country := carrier.CanonicalCountry(address.Country)
	postalCode := carrier.NormalizePostalCode(address.PostalCode)
	switch pkg.ShippingMethod {
	case carrier.FedEx:
		reasons.add(postalCode == "", ReasonPostalCodeRequired)
		reasons.add(carrier.RequiresState(country) && strings.TrimSpace(address.State) == "", ReasonStateRequired)
	default:
		reasons.add(!carrier.EMSAllowed(country), ReasonCarrierNotAllowed)
	}
	if len(reasons) > 0 {
		return nil, nil, &IneligibleTransitionError{Action: ActionRequestShipping, Reasons: reasons}
	}

	quote := &shippingQuote{addressID: address.ID, version: pkg.Version}
	if pkg.ShippingMethod != carrier.FedEx {
		quote.cost = pkg.ShippingCost
		return quote, nil, nil
	}

	if s.Carrier == nil {
		return nil, nil, &ExternalDependencyError{Dependency: "carrier", Err: carrier.ErrNotConfigured}
	}
	rates, err := s.Carrier.Quote(ctx, carrier.QuoteRequest{
		Carrier:       carrier.FedEx,
		OriginCountry: "JP",
		Country:       country,
		State:         strings.TrimSpace(address.State),
		City:          strings.TrimSpace(address.City),
		PostalCode:    postalCode,
		Commercial:    address.IsCommercial,
		WeightKg:      pkg.WeightKg(),
		DeclaredValue: CoveredValue(pkg).Int64(),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, nil, err
		}
		return nil, nil, &ExternalDependencyError{Dependency: "carrier", Err: err}
	}
	if len(rates) == 0 {
		return nil, nil, &ExternalDependencyError{Dependency: "carrier", Err: carrier.ErrUnavailable}
	}

	selected := strings.TrimSpace(input.CarrierService)
	if selected == "" {
		if len(rates) > 1 {
			return nil, rates, nil
		}
		selected = rates[0].ServiceCode
	}
	for _, rate := range rates {
		if rate.ServiceCode == selected {
			quote.cost = models.Yen(rate.Amount)
			quote.service = rate.ServiceCode
			return quote, nil, nil
		}
	}
	return nil, nil, invalid("carrier_service", "not offered for this destination")
}

// resolveAddress 未指定地址时使用客户的第一个地址
func (s *ShippingService) resolveAddress(userID uint, addressID *uint) (*models.Address, error) {
	var (
		address *models.Address
		err     error
	)
	if addressID != nil && *addressID != 0 {
		address, err = s.AddressRepo.GetByID(*addressID)
	} else {
		address, err = s.AddressRepo.FirstByUser(userID)
		if err == nil && address == nil {
			return nil, ineligible(ActionRequestShipping, ReasonNoAddress)
		}
	}
	if err != nil {
		return nil, err
	}
	if address == nil || address.UserID != userID {
		return nil, ErrAddressNotFound
	}
	return address, nil
}
