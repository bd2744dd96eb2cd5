package repository

import (
	"errors"

	"github.com/parcel-relay/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AddressRepository 收货地址数据访问接口
type AddressRepository interface {
	Create(address *models.Address) error
	Update(address *models.Address) error
	Delete(id uint) error
	GetByID(id uint) (*models.Address, error)
	GetByIDForUpdate(id uint) (*models.Address, error)
	FirstByUser(userID uint) (*models.Address, error)
	ListByUser(userID uint) ([]models.Address, error)
	CountByUser(userID uint) (int64, error)
	LockOwner(userID uint) error
	WithTx(tx *gorm.DB) *GormAddressRepository
}

// GormAddressRepository GORM 收货地址仓储实现
type GormAddressRepository struct {
	db *gorm.DB
}

// NewAddressRepository 创建收货地址仓储
func NewAddressRepository(db *gorm.DB) *GormAddressRepository {
	return &GormAddressRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAddressRepository) WithTx(tx *gorm.DB) *GormAddressRepository {
	if tx == nil {
		return r
	}
	return &GormAddressRepository{db: tx}
}

// Create 创建地址
func (r *GormAddressRepository) Create(address *models.Address) error {
	return r.db.Create(address).Error
}

// Update 更新地址
func (r *GormAddressRepository) Update(address *models.Address) error {
	return r.db.Save(address).Error
}

// Delete 删除地址
func (r *GormAddressRepository) Delete(id uint) error {
	return r.db.Delete(&models.Address{}, id).Error
}

// GetByID 按 ID 获取地址
func (r *GormAddressRepository) GetByID(id uint) (*models.Address, error) {
	if id == 0 {
		return nil, nil
	}
	var address models.Address
	if err := r.db.First(&address, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &address, nil
}

// GetByIDForUpdate 加锁获取地址，发货与地址修改以地址行串行
func (r *GormAddressRepository) GetByIDForUpdate(id uint) (*models.Address, error) {
	if id == 0 {
		return nil, nil
	}
	var address models.Address
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&address, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &address, nil
}

// FirstByUser 用户最早创建的地址
func (r *GormAddressRepository) FirstByUser(userID uint) (*models.Address, error) {
	var address models.Address
	if err := r.db.Where("user_id = ?", userID).Order("id asc").First(&address).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &address, nil
}

// ListByUser 用户全部地址
func (r *GormAddressRepository) ListByUser(userID uint) ([]models.Address, error) {
	var addresses []models.Address
	if err := r.db.Where("user_id = ?", userID).Order("id asc").Find(&addresses).Error; err != nil {
		return nil, err
	}
	return addresses, nil
}

// CountByUser 用户地址数量
func (r *GormAddressRepository) CountByUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Address{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// LockOwner 锁定用户行，同一用户的地址新增以此串行
func (r *GormAddressRepository) LockOwner(userID uint) error {
	var user models.User
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&user, userID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}
