package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/models"
	"github.com/parcel-relay/internal/provider"
	"github.com/parcel-relay/internal/queue"
	"github.com/parcel-relay/internal/repository"
	"github.com/parcel-relay/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

func setupWorkerTest(t *testing.T) (*Consumer, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("queue client failed: %v", err)
	}
	wallet := service.NewWalletService(repository.NewWalletRepository(db))
	notices := service.NewNotificationService(repository.NewNotificationRepository(db), queueClient)
	deps := service.FulfillmentDeps{
		DB:            db,
		Locker:        service.NewLocalPackageLocker(time.Second),
		PackageRepo:   repository.NewPackageRepository(db),
		AddressRepo:   repository.NewAddressRepository(db),
		ClaimRepo:     repository.NewClaimRepository(db),
		OrderRepo:     repository.NewOrderRepository(db),
		CouponRepo:    repository.NewCouponRepository(db),
		Wallet:        wallet,
		Notifications: notices,
	}
	container := &provider.Container{
		QueueClient:         queueClient,
		WalletService:       wallet,
		NotificationService: notices,
		StorageSweepService: service.NewStorageSweepService(deps),
	}
	return NewConsumer(container), db
}

func createExpiredPackage(t *testing.T, db *gorm.DB) *models.Package {
	t.Helper()
	user := models.User{ID: 1, Email: "customer@example.com"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	weight := 1.0
	pkg := &models.Package{
		UserID:            1,
		Status:            constants.PackageStatusReady,
		Weight:            &weight,
		ShippingMethod:    constants.ShippingMethodEMS,
		ConsolidationKind: constants.ConsolidationKindStandalone,
		ArrivedAt:         time.Now().AddDate(0, 0, -90),
		Version:           1,
	}
	if err := db.Create(pkg).Error; err != nil {
		t.Fatalf("create package failed: %v", err)
	}
	return pkg
}

func TestHandleChangeNotifyPayload(t *testing.T) {
	consumer := NewConsumer(&provider.Container{})

	bad := asynq.NewTask(queue.TaskChangeNotify, []byte("{"))
	if err := consumer.handleChangeNotify(context.Background(), bad); err == nil {
		t.Fatalf("malformed payload must fail")
	}

	empty := asynq.NewTask(queue.TaskChangeNotify, []byte(`{"change_id":3,"entity_type":"package"}`))
	if err := consumer.handleChangeNotify(context.Background(), empty); err != nil {
		t.Fatalf("payload without target must be skipped, got %v", err)
	}

	valid := asynq.NewTask(queue.TaskChangeNotify, []byte(`{"change_id":3,"user_id":1,"entity_type":"package","entity_id":9}`))
	if err := consumer.handleChangeNotify(context.Background(), valid); err != nil {
		t.Fatalf("missing notification service must be skipped, got %v", err)
	}
}

func TestHandleStorageSweepDisposesExpired(t *testing.T) {
	consumer, db := setupWorkerTest(t)
	pkg := createExpiredPackage(t, db)

	task := asynq.NewTask(queue.TaskStorageSweep, []byte(`{"triggered_by":"test"}`))
	if err := consumer.handleStorageSweep(context.Background(), task); err != nil {
		t.Fatalf("storage sweep failed: %v", err)
	}
	var reloaded models.Package
	if err := db.First(&reloaded, pkg.ID).Error; err != nil {
		t.Fatalf("reload package failed: %v", err)
	}
	if reloaded.Status != constants.PackageStatusDisposed {
		t.Fatalf("status want disposed got %s", reloaded.Status)
	}
}

func TestSchedulerRunsSweepWithoutQueue(t *testing.T) {
	consumer, db := setupWorkerTest(t)
	pkg := createExpiredPackage(t, db)

	if _, err := NewScheduler("not a cron", consumer); err == nil {
		t.Fatalf("invalid cron spec must be rejected")
	}
	scheduler, err := NewScheduler("", consumer)
	if err != nil {
		t.Fatalf("new scheduler failed: %v", err)
	}
	if scheduler.spec != defaultStorageSweepSpec {
		t.Fatalf("spec want default got %s", scheduler.spec)
	}

	scheduler.trigger()
	var reloaded models.Package
	if err := db.First(&reloaded, pkg.ID).Error; err != nil {
		t.Fatalf("reload package failed: %v", err)
	}
	if reloaded.Status != constants.PackageStatusDisposed {
		t.Fatalf("sweep must run inline when the queue is disabled, got %s", reloaded.Status)
	}
	if err := scheduler.Stop(context.Background()); err != nil {
		t.Fatalf("stop scheduler failed: %v", err)
	}
}
