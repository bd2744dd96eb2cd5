package repository

import (
	"errors"
	"strings"

	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PackageRepository 包裹数据访问接口
type PackageRepository interface {
	Create(pkg *models.Package) error
	GetByID(id uint) (*models.Package, error)
	GetByIDForUpdate(id uint) (*models.Package, error)
	GetByIDsForUpdate(ids []uint) ([]models.Package, error)
	ListByIDs(ids []uint) ([]models.Package, error)
	List(filter PackageListFilter) ([]models.Package, int64, error)
	ListMembers(anchorID uint) ([]models.Package, error)
	ListByDomesticGroupForUpdate(userID uint, group string) ([]models.Package, error)
	ListByOrderID(orderID uint) ([]models.Package, error)
	ListAwaitingDecision() ([]models.Package, error)
	UpdateVersioned(pkg *models.Package) error

	ReplaceMemberships(anchor *models.Package) error
	DeleteMemberships(anchorID uint) error
	MembershipOf(memberID uint) (*models.ConsolidationMembership, error)
	MembershipsByUser(userID uint) ([]models.ConsolidationMembership, error)

	FindInFlightByAddress(addressID uint, excludePackageID uint) (*models.Package, error)
	CountBoundAwaitingByAddress(addressID uint) (int64, error)

	WithTx(tx *gorm.DB) *GormPackageRepository
}

// GormPackageRepository GORM 包裹仓储实现
type GormPackageRepository struct {
	db *gorm.DB
}

// NewPackageRepository 创建包裹仓储
func NewPackageRepository(db *gorm.DB) *GormPackageRepository {
	return &GormPackageRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPackageRepository) WithTx(tx *gorm.DB) *GormPackageRepository {
	if tx == nil {
		return r
	}
	return &GormPackageRepository{db: tx}
}

// Create 创建包裹
func (r *GormPackageRepository) Create(pkg *models.Package) error {
	if pkg.Version == 0 {
		pkg.Version = 1
	}
	if pkg.ConsolidationKind == "" {
		pkg.ConsolidationKind = constants.ConsolidationKindStandalone
	}
	return r.db.Create(pkg).Error
}

// GetByID 按 ID 获取包裹（含订单项）
func (r *GormPackageRepository) GetByID(id uint) (*models.Package, error) {
	if id == 0 {
		return nil, nil
	}
	var pkg models.Package
	if err := r.db.Preload("OrderItem").First(&pkg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pkg, nil
}

// GetByIDForUpdate 加锁获取包裹
func (r *GormPackageRepository) GetByIDForUpdate(id uint) (*models.Package, error) {
	if id == 0 {
		return nil, nil
	}
	var pkg models.Package
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&pkg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pkg, nil
}

// GetByIDsForUpdate 按 ID 顺序加锁批量获取，避免交叉加锁死锁
func (r *GormPackageRepository) GetByIDsForUpdate(ids []uint) ([]models.Package, error) {
	if len(ids) == 0 {
		return []models.Package{}, nil
	}
	var pkgs []models.Package
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id asc").
		Find(&pkgs).Error; err != nil {
		return nil, err
	}
	return pkgs, nil
}

// ListByIDs 批量获取包裹
func (r *GormPackageRepository) ListByIDs(ids []uint) ([]models.Package, error) {
	if len(ids) == 0 {
		return []models.Package{}, nil
	}
	var pkgs []models.Package
	if err := r.db.Preload("OrderItem").Where("id IN ?", ids).Order("id asc").Find(&pkgs).Error; err != nil {
		return nil, err
	}
	return pkgs, nil
}

// List 分页查询包裹
func (r *GormPackageRepository) List(filter PackageListFilter) ([]models.Package, int64, error) {
	query := r.db.Model(&models.Package{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var pkgs []models.Package
	if err := query.Preload("OrderItem").Order("arrived_at desc, id desc").Find(&pkgs).Error; err != nil {
		return nil, 0, err
	}
	return pkgs, total, nil
}

// ListMembers 已并入指定主包裹的成员
func (r *GormPackageRepository) ListMembers(anchorID uint) ([]models.Package, error) {
	var pkgs []models.Package
	if err := r.db.Preload("OrderItem").
		Where("consolidated_into_id = ?", anchorID).
		Order("id asc").
		Find(&pkgs).Error; err != nil {
		return nil, err
	}
	return pkgs, nil
}

// ListByDomesticGroupForUpdate 加锁获取共享国内段账单的包裹
func (r *GormPackageRepository) ListByDomesticGroupForUpdate(userID uint, group string) ([]models.Package, error) {
	group = strings.TrimSpace(group)
	if group == "" {
		return []models.Package{}, nil
	}
	var pkgs []models.Package
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND shared_domestic_group = ?", userID, group).
		Order("id asc").
		Find(&pkgs).Error; err != nil {
		return nil, err
	}
	return pkgs, nil
}

// ListByOrderID 同一订单下的包裹
func (r *GormPackageRepository) ListByOrderID(orderID uint) ([]models.Package, error) {
	var pkgs []models.Package
	if err := r.db.Preload("OrderItem").
		Joins("JOIN order_items ON order_items.id = packages.order_item_id").
		Where("order_items.order_id = ?", orderID).
		Order("packages.id asc").
		Find(&pkgs).Error; err != nil {
		return nil, err
	}
	return pkgs, nil
}

// ListAwaitingDecision 所有待客户决定的包裹（仓储到期巡检使用）
func (r *GormPackageRepository) ListAwaitingDecision() ([]models.Package, error) {
	var pkgs []models.Package
	if err := r.db.
		Where("status IN ?", []string{constants.PackageStatusReady, constants.PackageStatusPendingShipping}).
		Where("shipping_requested = ?", false).
		Order("id asc").
		Find(&pkgs).Error; err != nil {
		return nil, err
	}
	return pkgs, nil
}

// UpdateVersioned 按版本号更新全部字段，版本不匹配返回 ErrVersionConflict
func (r *GormPackageRepository) UpdateVersioned(pkg *models.Package) error {
	expected := pkg.Version
	pkg.Version = expected + 1
	result := r.db.Model(pkg).
		Where("version = ?", expected).
		Select("*").
		Omit("ID", "CreatedAt", "DeletedAt", "OrderItem").
		Updates(pkg)
	if result.Error != nil {
		pkg.Version = expected
		return result.Error
	}
	if result.RowsAffected == 0 {
		pkg.Version = expected
		return ErrVersionConflict
	}
	return nil
}

// ReplaceMemberships 按主包裹当前合箱集合重建成员视图
func (r *GormPackageRepository) ReplaceMemberships(anchor *models.Package) error {
	if err := r.DeleteMemberships(anchor.ID); err != nil {
		return err
	}
	state := anchor.Consolidation()
	if !state.OptedIn() {
		return nil
	}
	rows := make([]models.ConsolidationMembership, 0, len(state.Members))
	for i, memberID := range state.Members {
		rows = append(rows, models.ConsolidationMembership{
			AnchorID: anchor.ID,
			MemberID: memberID,
			UserID:   anchor.UserID,
			Position: i,
		})
	}
	return r.db.Create(&rows).Error
}

// DeleteMemberships 清除主包裹的成员视图
func (r *GormPackageRepository) DeleteMemberships(anchorID uint) error {
	return r.db.Where("anchor_id = ?", anchorID).Delete(&models.ConsolidationMembership{}).Error
}

// MembershipOf 查询包裹所属的待合箱主包裹
func (r *GormPackageRepository) MembershipOf(memberID uint) (*models.ConsolidationMembership, error) {
	var row models.ConsolidationMembership
	if err := r.db.Where("member_id = ?", memberID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// MembershipsByUser 用户全部待合箱成员关系
func (r *GormPackageRepository) MembershipsByUser(userID uint) ([]models.ConsolidationMembership, error) {
	var rows []models.ConsolidationMembership
	if err := r.db.Where("user_id = ?", userID).Order("anchor_id asc, position asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindInFlightByAddress 查询占用地址的在途发货包裹
func (r *GormPackageRepository) FindInFlightByAddress(addressID uint, excludePackageID uint) (*models.Package, error) {
	if addressID == 0 {
		return nil, nil
	}
	query := r.db.
		Where("shipping_address_id = ? AND shipping_requested = ?", addressID, true).
		Where("status NOT IN ?", []string{constants.PackageStatusShipped, constants.PackageStatusDelivered})
	if excludePackageID != 0 {
		query = query.Where("id <> ?", excludePackageID)
	}
	var pkg models.Package
	if err := query.Order("id asc").First(&pkg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pkg, nil
}

// CountBoundAwaitingByAddress 绑定该地址且仍待决定的包裹数
func (r *GormPackageRepository) CountBoundAwaitingByAddress(addressID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Package{}).
		Where("shipping_address_id = ?", addressID).
		Where("status IN ?", []string{constants.PackageStatusReady, constants.PackageStatusPendingShipping}).
		Count(&count).Error
	return count, err
}
