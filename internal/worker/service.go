package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/parcel-relay/internal/config"
	"github.com/parcel-relay/internal/logger"
	"github.com/parcel-relay/internal/queue"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
)

const (
	defaultStorageSweepSpec = "0 0 3 * * *"
	storageSweepUniqueFor   = 30 * time.Minute
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	_ = ctx
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// Scheduler 定时触发仓储巡检。队列可用时投递任务由 worker 消费，否则就地执行
type Scheduler struct {
	cron     *cron.Cron
	consumer *Consumer
	spec     string
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewScheduler 创建巡检调度器，spec 为带秒字段的 cron 表达式
func NewScheduler(spec string, consumer *Consumer) (*Scheduler, error) {
	if consumer == nil || consumer.Container == nil {
		return nil, errors.New("consumer is nil")
	}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = defaultStorageSweepSpec
	}
	s := &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		consumer: consumer,
		spec:     spec,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if _, err := s.cron.AddFunc(spec, s.trigger); err != nil {
		return nil, err
	}
	return s, nil
}

// Name 服务名称
func (s *Scheduler) Name() string {
	return "scheduler"
}

// Start 启动调度并阻塞到 ctx 结束
func (s *Scheduler) Start(ctx context.Context) error {
	if s == nil || s.cron == nil {
		return errors.New("scheduler not initialized")
	}
	logger.Infow("worker_scheduler_started", "storage_sweep_cron", s.spec)
	s.cron.Start()
	<-ctx.Done()
	return nil
}

// Stop 停止调度，等待运行中的巡检结束
func (s *Scheduler) Stop(ctx context.Context) error {
	if s == nil || s.cron == nil {
		return nil
	}
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (s *Scheduler) trigger() {
	payload := queue.StorageSweepPayload{TriggeredBy: "cron"}
	client := s.consumer.QueueClient
	if client.Enabled() {
		if err := client.EnqueueStorageSweep(payload, storageSweepUniqueFor); err != nil {
			if errors.Is(err, asynq.ErrDuplicateTask) {
				logger.Debugw("worker_storage_sweep_enqueue_duplicate")
				return
			}
			logger.Warnw("worker_storage_sweep_enqueue_failed", "error", err)
		} else {
			return
		}
	}
	_ = s.consumer.runStorageSweep(s.ctx, payload.TriggeredBy)
}
