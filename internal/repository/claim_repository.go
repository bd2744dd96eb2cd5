package repository

import (
	"errors"
	"strings"

	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClaimRepository 损坏申请与理赔申请数据访问接口
type ClaimRepository interface {
	CreateDamaged(claim *models.DamagedItemClaim) error
	UpdateDamaged(claim *models.DamagedItemClaim) error
	GetDamagedByID(id uint) (*models.DamagedItemClaim, error)
	GetDamagedByIDForUpdate(id uint) (*models.DamagedItemClaim, error)
	FindOpenDamagedByPackage(packageID uint) (*models.DamagedItemClaim, error)
	HasDamagedRefundByPackage(packageID uint) (bool, error)
	ListDamaged(filter ClaimListFilter) ([]models.DamagedItemClaim, int64, error)

	CreateCompensation(req *models.CompensationRequest) error
	UpdateCompensation(req *models.CompensationRequest) error
	GetCompensationByID(id uint) (*models.CompensationRequest, error)
	GetCompensationByIDForUpdate(id uint) (*models.CompensationRequest, error)
	FindActiveCompensationByPackage(packageID uint) (*models.CompensationRequest, error)
	ListCompensations(filter ClaimListFilter) ([]models.CompensationRequest, int64, error)

	OpenClaimPackageIDs(packageIDs []uint) (map[uint]bool, error)
	WithTx(tx *gorm.DB) *GormClaimRepository
}

// GormClaimRepository GORM 申请仓储实现
type GormClaimRepository struct {
	db *gorm.DB
}

// NewClaimRepository 创建申请仓储
func NewClaimRepository(db *gorm.DB) *GormClaimRepository {
	return &GormClaimRepository{db: db}
}

// WithTx 绑定事务
func (r *GormClaimRepository) WithTx(tx *gorm.DB) *GormClaimRepository {
	if tx == nil {
		return r
	}
	return &GormClaimRepository{db: tx}
}

// CreateDamaged 创建损坏申请
func (r *GormClaimRepository) CreateDamaged(claim *models.DamagedItemClaim) error {
	return r.db.Create(claim).Error
}

// UpdateDamaged 更新损坏申请
func (r *GormClaimRepository) UpdateDamaged(claim *models.DamagedItemClaim) error {
	return r.db.Save(claim).Error
}

// GetDamagedByID 按 ID 获取损坏申请
func (r *GormClaimRepository) GetDamagedByID(id uint) (*models.DamagedItemClaim, error) {
	return firstOrNil[models.DamagedItemClaim](r.db, id, false)
}

// GetDamagedByIDForUpdate 加锁获取损坏申请
func (r *GormClaimRepository) GetDamagedByIDForUpdate(id uint) (*models.DamagedItemClaim, error) {
	return firstOrNil[models.DamagedItemClaim](r.db, id, true)
}

// FindOpenDamagedByPackage 包裹上未结束的损坏申请
func (r *GormClaimRepository) FindOpenDamagedByPackage(packageID uint) (*models.DamagedItemClaim, error) {
	var claim models.DamagedItemClaim
	err := r.db.Where("package_id = ?", packageID).
		Where("status = ? OR (status = ? AND refund_processed = ?)",
			constants.ClaimStatusPending, constants.ClaimStatusApproved, false).
		Order("id desc").
		First(&claim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &claim, nil
}

// HasDamagedRefundByPackage 包裹是否已有损坏申请进入退款
func (r *GormClaimRepository) HasDamagedRefundByPackage(packageID uint) (bool, error) {
	var count int64
	if err := r.db.Model(&models.DamagedItemClaim{}).
		Where("package_id = ? AND refund_requested = ?", packageID, true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListDamaged 分页查询损坏申请
func (r *GormClaimRepository) ListDamaged(filter ClaimListFilter) ([]models.DamagedItemClaim, int64, error) {
	query := applyClaimFilter(r.db.Model(&models.DamagedItemClaim{}), filter)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var claims []models.DamagedItemClaim
	if err := applyPagination(query, filter.Page, filter.PageSize).Order("id desc").Find(&claims).Error; err != nil {
		return nil, 0, err
	}
	return claims, total, nil
}

// CreateCompensation 创建理赔申请
func (r *GormClaimRepository) CreateCompensation(req *models.CompensationRequest) error {
	return r.db.Create(req).Error
}

// UpdateCompensation 更新理赔申请
func (r *GormClaimRepository) UpdateCompensation(req *models.CompensationRequest) error {
	return r.db.Save(req).Error
}

// GetCompensationByID 按 ID 获取理赔申请
func (r *GormClaimRepository) GetCompensationByID(id uint) (*models.CompensationRequest, error) {
	return firstOrNil[models.CompensationRequest](r.db, id, false)
}

// GetCompensationByIDForUpdate 加锁获取理赔申请
func (r *GormClaimRepository) GetCompensationByIDForUpdate(id uint) (*models.CompensationRequest, error) {
	return firstOrNil[models.CompensationRequest](r.db, id, true)
}

// FindActiveCompensationByPackage 包裹上仍有效的理赔申请
func (r *GormClaimRepository) FindActiveCompensationByPackage(packageID uint) (*models.CompensationRequest, error) {
	var req models.CompensationRequest
	err := r.db.Where("package_id = ?", packageID).
		Where("status <> ?", constants.CompensationStatusRejected).
		Where("refund_processed = ?", false).
		Order("id desc").
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// ListCompensations 分页查询理赔申请
func (r *GormClaimRepository) ListCompensations(filter ClaimListFilter) ([]models.CompensationRequest, int64, error) {
	query := applyClaimFilter(r.db.Model(&models.CompensationRequest{}), filter)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var reqs []models.CompensationRequest
	if err := applyPagination(query, filter.Page, filter.PageSize).Order("id desc").Find(&reqs).Error; err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}

// OpenClaimPackageIDs 批量判断包裹是否存在未结束的损坏或理赔申请
func (r *GormClaimRepository) OpenClaimPackageIDs(packageIDs []uint) (map[uint]bool, error) {
	result := make(map[uint]bool, len(packageIDs))
	if len(packageIDs) == 0 {
		return result, nil
	}
	var damaged []uint
	if err := r.db.Model(&models.DamagedItemClaim{}).
		Where("package_id IN ?", packageIDs).
		Where("status = ? OR (status = ? AND refund_processed = ?)",
			constants.ClaimStatusPending, constants.ClaimStatusApproved, false).
		Pluck("package_id", &damaged).Error; err != nil {
		return nil, err
	}
	var compensations []uint
	if err := r.db.Model(&models.CompensationRequest{}).
		Where("package_id IN ?", packageIDs).
		Where("status <> ? AND refund_processed = ?", constants.CompensationStatusRejected, false).
		Pluck("package_id", &compensations).Error; err != nil {
		return nil, err
	}
	for _, id := range damaged {
		result[id] = true
	}
	for _, id := range compensations {
		result[id] = true
	}
	return result, nil
}

func applyClaimFilter(query *gorm.DB, filter ClaimListFilter) *gorm.DB {
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.PackageID != 0 {
		query = query.Where("package_id = ?", filter.PackageID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		condition, count := buildLikeCondition(query, []string{"description", "admin_notes"})
		like := "%" + escapeLike(keyword) + "%"
		query = query.Where("("+condition+")", repeatLikeArgs(like, count)...)
	}
	return query
}

func firstOrNil[T any](db *gorm.DB, id uint, forUpdate bool) (*T, error) {
	if id == 0 {
		return nil, nil
	}
	var row T
	query := db
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
