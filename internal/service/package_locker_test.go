package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/parcel-relay/internal/constants"
	"github.com/parcel-relay/internal/models"
)

func slotCount(l PackageLocker) int {
	local := l.(*localPackageLocker)
	local.mu.Lock()
	defer local.mu.Unlock()
	return len(local.slots)
}

func TestLocalLockerTimesOut(t *testing.T) {
	locker := NewLocalPackageLocker(20 * time.Millisecond)
	ctx := context.Background()
	release, err := locker.Lock(ctx, 1)
	if err != nil {
		t.Fatalf("first lock failed: %v", err)
	}

	_, err = locker.Lock(ctx, 2, 1)
	var lockedErr *ResourceLockedError
	if !errors.As(err, &lockedErr) || lockedErr.ID != 1 {
		t.Fatalf("expected package 1 locked, got %v", err)
	}

	// 超时后已拿到的 2 号锁必须归还
	again, err := locker.Lock(ctx, 2)
	if err != nil {
		t.Fatalf("package 2 must be free after timeout: %v", err)
	}
	again()
	release()
}

func TestLocalLockerEvictsIdleSlots(t *testing.T) {
	locker := NewLocalPackageLocker(20 * time.Millisecond)
	ctx := context.Background()
	for id := uint(1); id <= 50; id++ {
		release, err := locker.Lock(ctx, id, id+1000)
		if err != nil {
			t.Fatalf("lock %d failed: %v", id, err)
		}
		release()
	}
	if n := slotCount(locker); n != 0 {
		t.Fatalf("idle slots must be evicted, %d left", n)
	}

	release, err := locker.Lock(ctx, 7)
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if _, err := locker.Lock(ctx, 7); err == nil {
		t.Fatalf("held package must stay locked")
	}
	if n := slotCount(locker); n != 1 {
		t.Fatalf("held slot must remain, got %d", n)
	}
	release()
	if n := slotCount(locker); n != 0 {
		t.Fatalf("slot must be evicted after release, %d left", n)
	}
}

func TestLocalLockerSerializes(t *testing.T) {
	locker := NewLocalPackageLocker(time.Second)
	var inside, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(context.Background(), 3)
			if err != nil {
				t.Errorf("lock failed: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	if peak != 1 {
		t.Fatalf("lock holders must not overlap, peak=%d", peak)
	}
	if n := slotCount(locker); n != 0 {
		t.Fatalf("slots left after contention: %d", n)
	}
}

// singleConnection 并发用例串行化 sqlite 写入，行锁语义由单连接保证
func singleConnection(t *testing.T, env *fulfillmentEnv) {
	t.Helper()
	sqlDB, err := env.db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
}

func TestConcurrentOptionChargesOnce(t *testing.T) {
	env := setupFulfillmentTest(t)
	singleConnection(t, env)
	env.user(t, 1, 2000)
	p := env.pkg(t, 1, nil)

	var wg sync.WaitGroup
	var changed int32
	errs := make(chan error, 6)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := env.options.SetPackageOptions(context.Background(), 1, p.ID, PackageOptionsInput{PhotoService: boolPtr(true)})
			if err != nil {
				errs <- err
				return
			}
			if result.Changed {
				atomic.AddInt32(&changed, 1)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent submit failed: %v", err)
	}
	if changed != 1 {
		t.Fatalf("exactly one submit must apply, got %d", changed)
	}
	if got := env.balance(t, 1); got != 2000-constants.PhotoServicePrice {
		t.Fatalf("photo must be charged once, balance %d", got)
	}
}

func TestOptionsWaitTimeoutReportsLocked(t *testing.T) {
	env := setupFulfillmentTest(t)
	env.user(t, 1, 2000)
	p := env.pkg(t, 1, nil)

	deps := env.deps
	deps.Locker = NewLocalPackageLocker(30 * time.Millisecond)
	options := NewPackageOptionService(deps, NewConsolidationService(deps))
	release, err := deps.Locker.Lock(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("hold lock failed: %v", err)
	}
	defer release()

	_, err = options.SetPackageOptions(context.Background(), 1, p.ID, PackageOptionsInput{PhotoService: boolPtr(true)})
	var lockedErr *ResourceLockedError
	if !errors.As(err, &lockedErr) || lockedErr.ID != p.ID {
		t.Fatalf("expected resource locked, got %v", err)
	}
	if got := env.balance(t, 1); got != 2000 {
		t.Fatalf("locked request must not charge, balance %d", got)
	}
}

func TestConcurrentShippingToOneAddress(t *testing.T) {
	env := setupFulfillmentTest(t)
	singleConnection(t, env)
	env.user(t, 1, 20000)
	x := env.address(t, 1, "Canada")
	first := env.pkg(t, 1, nil)
	second := env.pkg(t, 1, nil)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, p := range []*models.Package{first, second} {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			_, results[i] = env.shipping.RequestShipping(context.Background(), 1, id, ShippingRequestInput{AddressID: &x.ID})
		}(i, p.ID)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		requireIneligible(t, err, ReasonAddressLocked)
	}
	if wins != 1 {
		t.Fatalf("exactly one package may claim the address, got %d (%v)", wins, results)
	}
	if got := env.balance(t, 1); got != 17000 {
		t.Fatalf("only the winner may be charged, balance %d", got)
	}
	requested := 0
	for _, p := range []*models.Package{first, second} {
		if env.reload(t, p.ID).ShippingRequested {
			requested++
		}
	}
	if requested != 1 {
		t.Fatalf("one package must be requested, got %d", requested)
	}
}
