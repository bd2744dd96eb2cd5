package queue

import (
	"encoding/json"

	"github.com/parcel-relay/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskChangeNotify 实体变更通知任务
	TaskChangeNotify = constants.TaskChangeNotify
	// TaskStorageSweep 仓储到期巡检任务
	TaskStorageSweep = constants.TaskStorageSweep
)

// ChangeNotifyPayload 变更通知载荷，消费方按实体类型与 ID 刷新
type ChangeNotifyPayload struct {
	ChangeID   uint   `json:"change_id"`
	UserID     uint   `json:"user_id"`
	EntityType string `json:"entity_type"`
	EntityID   uint   `json:"entity_id"`
	Action     string `json:"action"`
	Version    uint   `json:"version"`
}

// StorageSweepPayload 仓储巡检载荷
type StorageSweepPayload struct {
	TriggeredBy string `json:"triggered_by"`
}

// NewChangeNotifyTask 创建变更通知任务
func NewChangeNotifyTask(payload ChangeNotifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskChangeNotify, body), nil
}

// NewStorageSweepTask 创建仓储巡检任务
func NewStorageSweepTask(payload StorageSweepPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStorageSweep, body), nil
}
