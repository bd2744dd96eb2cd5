package app

import (
	"errors"

	"github.com/parcel-relay/internal/config"
	"github.com/parcel-relay/internal/logger"
	"github.com/parcel-relay/internal/provider"
	"github.com/parcel-relay/internal/router"
	"github.com/parcel-relay/internal/worker"
)

// BuildRunner 构建服务运行器
// api 模式只起 HTTP；worker 模式起巡检调度，队列启用时再起 asynq 消费者。
func BuildRunner(cfg *config.Config, mode string) (*Runner, *provider.Container, error) {
	if cfg == nil {
		return nil, nil, errors.New("config is nil")
	}
	switch mode {
	case ModeAll, ModeAPI, ModeWorker:
	default:
		return nil, nil, errors.New("unknown mode: " + mode)
	}

	container := provider.NewContainer(cfg)

	var services []Service

	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		services = append(services, NewHTTPService(cfg.Server.Addr(), engine))
	}

	if mode == ModeAll || mode == ModeWorker {
		consumer := worker.NewConsumer(container)
		scheduler, err := worker.NewScheduler(cfg.Fulfillment.StorageSweepCron, consumer)
		if err != nil {
			container.Close()
			return nil, nil, err
		}
		services = append(services, scheduler)

		if cfg.Queue.Enabled {
			workerService, err := worker.NewService(&cfg.Queue, consumer)
			if err != nil {
				container.Close()
				return nil, nil, err
			}
			services = append(services, workerService)
		} else {
			logger.Infow("app_queue_disabled", "mode", mode)
		}
	}

	return NewRunner(services...), container, nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, container, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}
	defer container.Close()

	opts.Logger.Infow("app_start", "addr", opts.Config.Server.Addr(), "mode", opts.Mode)
	return RunWithOptions(runner, opts)
}
