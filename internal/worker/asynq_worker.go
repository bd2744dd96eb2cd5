package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/parcel-relay/internal/logger"
	"github.com/parcel-relay/internal/provider"
	"github.com/parcel-relay/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskChangeNotify, c.handleChangeNotify)
	mux.HandleFunc(queue.TaskStorageSweep, c.handleStorageSweep)
}

func (c *Consumer) handleChangeNotify(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_change_notify_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.ChangeNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_change_notify_unmarshal_failed", "error", err)
		return err
	}
	if payload.UserID == 0 || payload.EntityID == 0 {
		logger.Debugw("worker_change_notify_skip_invalid_payload",
			"change_id", payload.ChangeID,
			"user_id", payload.UserID,
			"entity_id", payload.EntityID,
		)
		return nil
	}
	if c.NotificationService == nil {
		logger.Warnw("worker_change_notify_skip_service_nil", "change_id", payload.ChangeID)
		return nil
	}
	if err := c.NotificationService.DispatchChange(ctx, payload); err != nil {
		logger.Warnw("worker_change_notify_dispatch_failed",
			"change_id", payload.ChangeID,
			"user_id", payload.UserID,
			"entity_type", payload.EntityType,
			"entity_id", payload.EntityID,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) handleStorageSweep(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_storage_sweep_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.StorageSweepPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			logger.Warnw("worker_storage_sweep_unmarshal_failed", "error", err)
			return err
		}
	}
	return c.runStorageSweep(ctx, payload.TriggeredBy)
}

// runStorageSweep 执行一次仓储巡检，单个包裹失败只记录不重试整批
func (c *Consumer) runStorageSweep(ctx context.Context, triggeredBy string) error {
	if c.StorageSweepService == nil {
		logger.Warnw("worker_storage_sweep_skip_service_nil", "triggered_by", triggeredBy)
		return nil
	}
	result, err := c.StorageSweepService.Sweep(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debugw("worker_storage_sweep_canceled", "triggered_by", triggeredBy)
			return nil
		}
		logger.Warnw("worker_storage_sweep_failed", "triggered_by", triggeredBy, "error", err)
		return err
	}
	logger.Infow("worker_storage_sweep_done",
		"triggered_by", triggeredBy,
		"checked", result.Checked,
		"warned", len(result.Warned),
		"disposed", len(result.Disposed),
		"failed", len(result.Failed),
	)
	if len(result.Failed) > 0 {
		logger.Warnw("worker_storage_sweep_partial_failure", "package_ids", result.Failed)
	}
	return nil
}
