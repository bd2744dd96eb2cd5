package repository

import (
	"time"

	"github.com/parcel-relay/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository 通知与变更事件数据访问接口
type NotificationRepository interface {
	CreateNotification(n *models.Notification) error
	ListNotifications(filter NotificationListFilter) ([]models.Notification, int64, error)
	MarkRead(userID uint, ids []uint, at time.Time) error
	CreateChange(event *models.ChangeEvent) error
	ListChanges(filter ChangeListFilter) ([]models.ChangeEvent, error)
	WithTx(tx *gorm.DB) *GormNotificationRepository
}

// GormNotificationRepository GORM 通知仓储实现
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建通知仓储
func NewNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// WithTx 绑定事务
func (r *GormNotificationRepository) WithTx(tx *gorm.DB) *GormNotificationRepository {
	if tx == nil {
		return r
	}
	return &GormNotificationRepository{db: tx}
}

// CreateNotification 创建通知
func (r *GormNotificationRepository) CreateNotification(n *models.Notification) error {
	return r.db.Create(n).Error
}

// ListNotifications 分页查询通知
func (r *GormNotificationRepository) ListNotifications(filter NotificationListFilter) ([]models.Notification, int64, error) {
	query := r.db.Model(&models.Notification{}).Where("user_id = ?", filter.UserID)
	if filter.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Notification
	if err := applyPagination(query, filter.Page, filter.PageSize).Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// MarkRead 标记通知已读
func (r *GormNotificationRepository) MarkRead(userID uint, ids []uint, at time.Time) error {
	query := r.db.Model(&models.Notification{}).Where("user_id = ? AND read_at IS NULL", userID)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	return query.Update("read_at", at).Error
}

// CreateChange 写入变更事件
func (r *GormNotificationRepository) CreateChange(event *models.ChangeEvent) error {
	return r.db.Create(event).Error
}

// ListChanges 按游标查询变更事件
func (r *GormNotificationRepository) ListChanges(filter ChangeListFilter) ([]models.ChangeEvent, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	query := r.db.Where("user_id = ? AND id > ?", filter.UserID, filter.SinceID)
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	var rows []models.ChangeEvent
	if err := query.Order("id asc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
