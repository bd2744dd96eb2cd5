package service

import (
	"context"
	"fmt"
	"time"

	"github.com/parcel-relay/internal/cache"
	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/logger"
	"github.com/parcel-relay/internal/models"
	"github.com/parcel-relay/internal/queue"
	"github.com/parcel-relay/internal/repository"

	"gorm.io/gorm"
)

// NotificationService 客户通知与实体变更事件
type NotificationService struct {
	notificationRepo repository.NotificationRepository
	queueClient      *queue.Client
}

// NewNotificationService 创建通知服务
func NewNotificationService(notificationRepo repository.NotificationRepository, queueClient *queue.Client) *NotificationService {
	return &NotificationService{notificationRepo: notificationRepo, queueClient: queueClient}
}

// ChangeSet 一次操作内产生的变更，事务提交后再推送
type ChangeSet struct {
	svc    *NotificationService
	events []models.ChangeEvent
}

// Begin 开始收集变更
func (s *NotificationService) Begin() *ChangeSet {
	return &ChangeSet{svc: s}
}

// Record 在事务内写入变更事件
func (c *ChangeSet) Record(tx *gorm.DB, userID uint, entityType string, entityID uint, action Action, version uint) error {
	if c == nil || c.svc == nil {
		return nil
	}
	event := models.ChangeEvent{
		UserID:     userID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     string(action),
		Version:    version,
		CreatedAt:  time.Now(),
	}
	if err := c.svc.notificationRepo.WithTx(tx).CreateChange(&event); err != nil {
		return fmt.Errorf("record change event failed: %w", err)
	}
	c.events = append(c.events, event)
	return nil
}

// Package 记录包裹变更
func (c *ChangeSet) Package(tx *gorm.DB, pkg *models.Package, action Action) error {
	return c.Record(tx, pkg.UserID, constants.ChangeEntityPackage, pkg.ID, action, pkg.Version)
}

// Notify 在事务内写入客户通知
func (c *ChangeSet) Notify(tx *gorm.DB, userID uint, kind, title, body string, packageID *uint) error {
	if c == nil || c.svc == nil {
		return nil
	}
	n := models.Notification{
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		PackageID: packageID,
		CreatedAt: time.Now(),
	}
	if err := c.svc.notificationRepo.WithTx(tx).CreateNotification(&n); err != nil {
		return fmt.Errorf("create notification failed: %w", err)
	}
	return nil
}

// Publish 事务提交后推送变更，推送失败不影响已提交的操作
func (c *ChangeSet) Publish() {
	if c == nil || c.svc == nil || len(c.events) == 0 {
		return
	}
	for _, event := range c.events {
		payload := queue.ChangeNotifyPayload{
			ChangeID:   event.ID,
			UserID:     event.UserID,
			EntityType: event.EntityType,
			EntityID:   event.EntityID,
			Action:     event.Action,
			Version:    event.Version,
		}
		if err := c.svc.queueClient.EnqueueChangeNotify(payload); err != nil {
			logger.Warnw("change_notify_enqueue_failed",
				"change_id", event.ID,
				"entity_type", event.EntityType,
				"entity_id", event.EntityID,
				"error", err,
			)
		}
	}
	c.events = nil
}

// DispatchChange 处理变更通知任务：向客户频道广播，同一变更只广播一次
func (s *NotificationService) DispatchChange(ctx context.Context, payload queue.ChangeNotifyPayload) error {
	if payload.UserID == 0 {
		return nil
	}
	if payload.ChangeID != 0 {
		ok, err := cache.SetNX(ctx, fmt.Sprintf("change:dedupe:%d", payload.ChangeID), "1", 10*time.Minute)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	channel := fmt.Sprintf(constants.ChangeChannelFmt, payload.UserID)
	if err := cache.Publish(ctx, channel, payload); err != nil {
		if payload.ChangeID != 0 {
			_ = cache.Del(ctx, fmt.Sprintf("change:dedupe:%d", payload.ChangeID))
		}
		return fmt.Errorf("publish change failed: %w", err)
	}
	return nil
}

// ListChanges 按游标拉取变更（轮询方式的变更通知）
func (s *NotificationService) ListChanges(filter repository.ChangeListFilter) ([]models.ChangeEvent, error) {
	if filter.UserID == 0 {
		return nil, invalid("user_id", "required")
	}
	return s.notificationRepo.ListChanges(filter)
}

// ListNotifications 分页查询通知
func (s *NotificationService) ListNotifications(filter repository.NotificationListFilter) ([]models.Notification, int64, error) {
	return s.notificationRepo.ListNotifications(filter)
}

// MarkRead 标记通知已读，ids 为空时全部标记
func (s *NotificationService) MarkRead(userID uint, ids []uint) error {
	return s.notificationRepo.MarkRead(userID, ids, time.Now())
}
