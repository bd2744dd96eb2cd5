package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/parcel-relay/internal/carrier"
	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/logger"
	"github.com/parcel-relay/internal/models"

	"gorm.io/gorm"
)

// AddressInput 地址表单
type AddressInput struct {
	Name         string
	Address      string
	Apartment    string
	City         string
	State        string
	PostalCode   string
	Country      string
	PhoneNumber  string
	IsCommercial bool
	SSNNumber    string
	TaxIDType    string
	TaxIDNumber  string
	CompanyName  string
}

// AddressView 地址及其派生的锁定状态
type AddressView struct {
	models.Address
	Locked bool `json:"locked"`
	InUse  bool `json:"in_use"`
	// LockedBy 正在占用地址的在途包裹
	LockedBy *uint `json:"locked_by,omitempty"`
}

// AddressUsage 地址派生状态
type AddressUsage struct {
	Locked   bool
	InUse    bool
	LockedBy *uint
}

// AddressService 收货地址与地址锁
type AddressService struct {
	fulfillmentCore
}

// NewAddressService 创建地址服务
func NewAddressService(deps FulfillmentDeps) *AddressService {
	return &AddressService{fulfillmentCore: newFulfillmentCore(deps)}
}

// Usage 在给定连接上重新计算地址的锁定与占用
func (s *AddressService) Usage(tx *gorm.DB, addressID uint) (AddressUsage, error) {
	var usage AddressUsage
	holder, err := s.PackageRepo.WithTx(tx).FindInFlightByAddress(addressID, 0)
	if err != nil {
		return usage, err
	}
	if holder != nil {
		usage.Locked = true
		usage.InUse = true
		usage.LockedBy = uintPtr(holder.ID)
		return usage, nil
	}
	bound, err := s.PackageRepo.WithTx(tx).CountBoundAwaitingByAddress(addressID)
	if err != nil {
		return usage, err
	}
	openOrders, err := s.OrderRepo.WithTx(tx).CountOpenByAddress(addressID)
	if err != nil {
		return usage, err
	}
	usage.InUse = bound > 0 || openOrders > 0
	return usage, nil
}

// ListAddresses 客户全部地址及派生状态
func (s *AddressService) ListAddresses(userID uint) ([]AddressView, error) {
	addresses, err := s.AddressRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	views := make([]AddressView, 0, len(addresses))
	for _, address := range addresses {
		usage, err := s.Usage(s.DB, address.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, AddressView{
			Address:  address,
			Locked:   usage.Locked,
			InUse:    usage.InUse,
			LockedBy: usage.LockedBy,
		})
	}
	return views, nil
}

// CreateAddress 新建地址，每个客户最多 3 个
func (s *AddressService) CreateAddress(ctx context.Context, userID uint, input AddressInput) (*models.Address, error) {
	normalized, err := normalizeAddressInput(input)
	if err != nil {
		return nil, err
	}
	address := &models.Address{UserID: userID}
	applyAddressInput(address, normalized)

	err = s.run(ctx, nil, func(tx *gorm.DB, changes *ChangeSet) error {
		repo := s.AddressRepo.WithTx(tx)
		if err := repo.LockOwner(userID); err != nil {
			return err
		}
		count, err := repo.CountByUser(userID)
		if err != nil {
			return err
		}
		if count >= constants.MaxAddressesPerUser {
			return invalid("addresses", fmt.Sprintf("limit of %d reached", constants.MaxAddressesPerUser))
		}
		if err := repo.Create(address); err != nil {
			return fmt.Errorf("create address failed: %w", err)
		}
		return changes.Record(tx, userID, constants.ChangeEntityAddress, address.ID, ActionAddressChange, 0)
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("address_created", "user_id", userID, "address_id", address.ID)
	return address, nil
}

// UpdateAddress 修改地址：锁定地址不可修改，占用中的地址不可改国家
func (s *AddressService) UpdateAddress(ctx context.Context, userID, addressID uint, input AddressInput) (*models.Address, error) {
	normalized, err := normalizeAddressInput(input)
	if err != nil {
		return nil, err
	}
	var address *models.Address
	err = s.run(ctx, nil, func(tx *gorm.DB, changes *ChangeSet) error {
		address, err = s.loadAddress(tx, userID, addressID)
		if err != nil {
			return err
		}
		usage, err := s.Usage(tx, address.ID)
		if err != nil {
			return err
		}
		var reasons reasonSet
		reasons.add(usage.Locked, ReasonAddressLocked)
		countryChanged := carrier.CanonicalCountry(address.Country) != carrier.CanonicalCountry(normalized.Country)
		reasons.add(usage.InUse && countryChanged, ReasonAddressInUse)
		if len(reasons) > 0 {
			return &IneligibleTransitionError{Action: ActionAddressChange, Reasons: reasons}
		}
		applyAddressInput(address, normalized)
		if err := s.AddressRepo.WithTx(tx).Update(address); err != nil {
			return fmt.Errorf("update address failed: %w", err)
		}
		return changes.Record(tx, userID, constants.ChangeEntityAddress, address.ID, ActionAddressChange, 0)
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("address_updated", "user_id", userID, "address_id", addressID)
	return address, nil
}

// DeleteAddress 删除地址：锁定或占用中的地址不可删除
func (s *AddressService) DeleteAddress(ctx context.Context, userID, addressID uint) error {
	err := s.run(ctx, nil, func(tx *gorm.DB, changes *ChangeSet) error {
		address, err := s.loadAddress(tx, userID, addressID)
		if err != nil {
			return err
		}
		usage, err := s.Usage(tx, address.ID)
		if err != nil {
			return err
		}
		if usage.Locked {
			return ineligible(ActionAddressDelete, ReasonAddressLocked)
		}
		if usage.InUse {
			return ineligible(ActionAddressDelete, ReasonAddressInUse)
		}
		if err := s.AddressRepo.WithTx(tx).Delete(address.ID); err != nil {
			return fmt.Errorf("delete address failed: %w", err)
		}
		return changes.Record(tx, userID, constants.ChangeEntityAddress, address.ID, ActionAddressDelete, 0)
	})
	if err != nil {
		return err
	}
	logger.Infow("address_deleted", "user_id", userID, "address_id", addressID)
	return nil
}

// loadAddress 加锁读取客户自己的地址，与发货申请按地址行串行
func (s *AddressService) loadAddress(tx *gorm.DB, userID, addressID uint) (*models.Address, error) {
	address, err := s.AddressRepo.WithTx(tx).GetByIDForUpdate(addressID)
	if err != nil {
		return nil, err
	}
	if address == nil || address.UserID != userID {
		return nil, ErrAddressNotFound
	}
	return address, nil
}

func normalizeAddressInput(input AddressInput) (AddressInput, error) {
	out := AddressInput{
		Name:         strings.TrimSpace(input.Name),
		Address:      strings.TrimSpace(input.Address),
		Apartment:    strings.TrimSpace(input.Apartment),
		City:         strings.TrimSpace(input.City),
		State:        strings.TrimSpace(input.State),
		PostalCode:   strings.TrimSpace(input.PostalCode),
		Country:      strings.Join(strings.Fields(input.Country), " "),
		PhoneNumber:  strings.TrimSpace(input.PhoneNumber),
		IsCommercial: input.IsCommercial,
		SSNNumber:    strings.TrimSpace(input.SSNNumber),
		TaxIDType:    strings.TrimSpace(input.TaxIDType),
		TaxIDNumber:  strings.TrimSpace(input.TaxIDNumber),
		CompanyName:  strings.TrimSpace(input.CompanyName),
	}
	switch {
	case out.Name == "":
		return out, invalid("name", "required")
	case out.Address == "":
		return out, invalid("address", "required")
	case out.City == "":
		return out, invalid("city", "required")
	case out.Country == "":
		return out, invalid("country", "required")
	}
	if carrier.CanonicalCountry(out.Country) == "US" {
		out.State = carrier.NormalizeUSState(out.State)
	}
	if out.IsCommercial && out.CompanyName == "" {
		return out, invalid("company_name", "required for commercial address")
	}
	return out, nil
}

func applyAddressInput(address *models.Address, input AddressInput) {
	address.Name = input.Name
	address.Address = input.Address
	address.Apartment = input.Apartment
	address.City = input.City
	address.State = input.State
	address.PostalCode = input.PostalCode
	address.Country = input.Country
	address.PhoneNumber = input.PhoneNumber
	address.IsCommercial = input.IsCommercial
	address.SSNNumber = input.SSNNumber
	address.TaxIDType = input.TaxIDType
	address.TaxIDNumber = input.TaxIDNumber
	address.CompanyName = input.CompanyName
}
