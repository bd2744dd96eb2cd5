package service

import (
	"context"
	"testing"
	"time"

	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/models"
	"github.com/parcel-relay/internal/repository"
)

func storageNotices(t *testing.T, env *fulfillmentEnv, userID uint) int {
	t.Helper()
	items, _, err := env.notices.ListNotifications(repository.NotificationListFilter{UserID: userID, PageSize: 100})
	if err != nil {
		t.Fatalf("list notifications failed: %v", err)
	}
	var count int
	for _, item := range items {
		if item.Kind == constants.NotificationKindStorage {
			count++
		}
	}
	return count
}

func TestStorageSweepWarnsOncePerInterval(t *testing.T) {
	env := setupFulfillmentTest(t)
	ctx := context.Background()
	env.user(t, 1, 0)
	due := env.pkg(t, 1, func(p *models.Package) { p.ArrivedAt = env.now.AddDate(0, 0, -68) })
	env.pkg(t, 1, func(p *models.Package) { p.ArrivedAt = env.now.AddDate(0, 0, -62) })

	result, err := env.sweep.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(result.Warned) != 1 || result.Warned[0] != due.ID || len(result.Disposed) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if env.reload(t, due.ID).StorageWarningSentAt == nil {
		t.Fatalf("warning time must be stored")
	}

	env.now = env.now.Add(12 * time.Hour)
	result, err = env.sweep.Sweep(ctx)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if len(result.Warned) != 0 {
		t.Fatalf("warning must not repeat within the interval: %+v", result)
	}
	if got := storageNotices(t, env, 1); got != 1 {
		t.Fatalf("want one storage notice, got %d", got)
	}
}

func TestStorageSweepDisposesExpired(t *testing.T) {
	env := setupFulfillmentTest(t)
	ctx := context.Background()
	env.user(t, 1, 0)
	expired := env.pkg(t, 1, func(p *models.Package) { p.ArrivedAt = env.now.AddDate(0, 0, -71) })
	requested := env.pkg(t, 1, func(p *models.Package) {
		p.ArrivedAt = env.now.AddDate(0, 0, -71)
		p.DisposalRequested = true
	})

	result, err := env.sweep.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(result.Disposed) != 1 || result.Disposed[0] != expired.ID {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := env.reload(t, expired.ID).Status; got != constants.PackageStatusDisposed {
		t.Fatalf("status want disposed got %s", got)
	}
	if got := env.reload(t, requested.ID).Status; got != constants.PackageStatusReady {
		t.Fatalf("requested disposal is left for the warehouse, got %s", got)
	}

	again, err := env.sweep.Sweep(ctx)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if again.Checked != 0 {
		t.Fatalf("disposed package must not be checked again: %+v", again)
	}
}
