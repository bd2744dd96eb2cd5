package repository

import (
	"errors"

	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id uint) (*models.Order, error)
	GetItemByID(id uint) (*models.OrderItem, error)
	ListItemsByIDs(ids []uint) ([]models.OrderItem, error)
	CountOpenByAddress(addressID uint) (int64, error)
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 订单仓储实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单及订单项
func (r *GormOrderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

// GetByID 按 ID 获取订单（含订单项）
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	if id == 0 {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Preload("Items").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetItemByID 按 ID 获取订单项
func (r *GormOrderRepository) GetItemByID(id uint) (*models.OrderItem, error) {
	if id == 0 {
		return nil, nil
	}
	var item models.OrderItem
	if err := r.db.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// ListItemsByIDs 批量获取订单项
func (r *GormOrderRepository) ListItemsByIDs(ids []uint) ([]models.OrderItem, error) {
	if len(ids) == 0 {
		return []models.OrderItem{}, nil
	}
	var items []models.OrderItem
	if err := r.db.Where("id IN ?", ids).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// CountOpenByAddress 绑定该地址且未结束的订单数
func (r *GormOrderRepository) CountOpenByAddress(addressID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Order{}).
		Where("address_id = ?", addressID).
		Where("status NOT IN ?", []string{constants.OrderStatusCompleted, constants.OrderStatusCancelled}).
		Count(&count).Error
	return count, err
}
