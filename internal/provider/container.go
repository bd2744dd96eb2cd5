package provider

import (
	"github.com/parcel-relay/internal/authz"
	"github.com/parcel-relay/internal/cache"
	"github.com/parcel-relay/internal/carrier"
	"github.com/parcel-relay/internal/config"
	"github.com/parcel-relay/internal/logger"
	"github.com/parcel-relay/internal/models"
	"github.com/parcel-relay/internal/queue"
	"github.com/parcel-relay/internal/repository"
	"github.com/parcel-relay/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Carrier     *carrier.Client
	Locker      service.PackageLocker

	// Repositories
	UserRepo         repository.UserRepository
	PackageRepo      repository.PackageRepository
	AddressRepo      repository.AddressRepository
	OrderRepo        repository.OrderRepository
	ClaimRepo        repository.ClaimRepository
	CouponRepo       repository.CouponRepository
	WalletRepo       repository.WalletRepository
	NotificationRepo repository.NotificationRepository

	// Services
	AuthzService            *authz.Service
	WalletService           *service.WalletService
	NotificationService     *service.NotificationService
	AddressService          *service.AddressService
	ConsolidationService    *service.ConsolidationService
	PackageOptionService    *service.PackageOptionService
	PackageQueryService     *service.PackageQueryService
	PaymentService          *service.PaymentService
	ShippingService         *service.ShippingService
	AdminFulfillmentService *service.AdminFulfillmentService
	DamagedClaimService     *service.DamagedClaimService
	CompensationService     *service.CompensationService
	CouponService           *service.CouponService
	StorageSweepService     *service.StorageSweepService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		Carrier:     carrier.NewClient(cfg.Carrier),
		Locker:      service.NewPackageLocker(cfg.Fulfillment.LockTTL(), cfg.Fulfillment.LockWait()),
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.PackageRepo = repository.NewPackageRepository(db)
	c.AddressRepo = repository.NewAddressRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.ClaimRepo = repository.NewClaimRepository(db)
	c.CouponRepo = repository.NewCouponRepository(db)
	c.WalletRepo = repository.NewWalletRepository(db)
	c.NotificationRepo = repository.NewNotificationRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.WalletService = service.NewWalletService(c.WalletRepo)
	c.NotificationService = service.NewNotificationService(c.NotificationRepo, c.QueueClient)

	deps := service.FulfillmentDeps{
		DB:            models.DB,
		Locker:        c.Locker,
		PackageRepo:   c.PackageRepo,
		AddressRepo:   c.AddressRepo,
		ClaimRepo:     c.ClaimRepo,
		OrderRepo:     c.OrderRepo,
		CouponRepo:    c.CouponRepo,
		Wallet:        c.WalletService,
		Notifications: c.NotificationService,
		Carrier:       c.Carrier,
	}
	c.AddressService = service.NewAddressService(deps)
	c.ConsolidationService = service.NewConsolidationService(deps)
	c.PackageOptionService = service.NewPackageOptionService(deps, c.ConsolidationService)
	c.PackageQueryService = service.NewPackageQueryService(deps)
	c.PaymentService = service.NewPaymentService(deps)
	c.ShippingService = service.NewShippingService(deps)
	c.AdminFulfillmentService = service.NewAdminFulfillmentService(deps)
	c.DamagedClaimService = service.NewDamagedClaimService(deps)
	c.CompensationService = service.NewCompensationService(deps)
	c.CouponService = service.NewCouponService(deps)
	c.StorageSweepService = service.NewStorageSweepService(deps)
}

// Close 释放队列与缓存连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if err := c.QueueClient.Close(); err != nil {
		logger.Warnw("provider_close_queue_client_failed", "error", err)
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}
