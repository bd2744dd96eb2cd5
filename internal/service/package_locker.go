package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/parcel-relay/internal/cache"
	"github.com/parcel-relay/internal/logger"
)

// PackageLocker 同一包裹的操作串行执行
type PackageLocker interface {
	// Lock 按 ID 升序锁定全部包裹，返回释放函数
	Lock(ctx context.Context, packageIDs ...uint) (func(), error)
}

// NewPackageLocker Redis 可用时使用分布式锁，否则使用进程内锁
func NewPackageLocker(ttl, wait time.Duration) PackageLocker {
	if cache.Enabled() {
		return &redisPackageLocker{ttl: ttl, wait: wait}
	}
	return NewLocalPackageLocker(wait)
}

type localPackageLocker struct {
	mu    sync.Mutex
	slots map[uint]*lockSlot
	wait  time.Duration
}

// lockSlot refs 为持有与等待者数量，归零即从 slots 移除
type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalPackageLocker 进程内按包裹 ID 的互斥锁
func NewLocalPackageLocker(wait time.Duration) PackageLocker {
	return &localPackageLocker{slots: make(map[uint]*lockSlot), wait: wait}
}

func (l *localPackageLocker) acquire(id uint) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[id]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[id] = slot
	}
	slot.refs++
	return slot
}

func (l *localPackageLocker) drop(id uint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[id]
	if !ok {
		return
	}
	slot.refs--
	if slot.refs <= 0 {
		delete(l.slots, id)
	}
}

func (l *localPackageLocker) Lock(ctx context.Context, packageIDs ...uint) (func(), error) {
	ids := sortedUniqueIDs(packageIDs)
	held := make([]uint, 0, len(ids))
	slots := make([]*lockSlot, 0, len(ids))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-slots[i].ch
			l.drop(held[i])
		}
	}
	timer := time.NewTimer(l.wait)
	defer timer.Stop()
	for _, id := range ids {
		slot := l.acquire(id)
		select {
		case slot.ch <- struct{}{}:
			held = append(held, id)
			slots = append(slots, slot)
		case <-ctx.Done():
			l.drop(id)
			release()
			return nil, ctx.Err()
		case <-timer.C:
			l.drop(id)
			release()
			return nil, &ResourceLockedError{Resource: "package", ID: id, Reason: "operation_in_progress"}
		}
	}
	return release, nil
}

type redisPackageLocker struct {
	ttl  time.Duration
	wait time.Duration
}

func (l *redisPackageLocker) Lock(ctx context.Context, packageIDs ...uint) (func(), error) {
	ids := sortedUniqueIDs(packageIDs)
	locks := make([]*cache.Lock, 0, len(ids))
	release := func() {
		for i := len(locks) - 1; i >= 0; i-- {
			if err := locks[i].Release(context.Background()); err != nil {
				logger.Warnw("package_lock_release_failed", "error", err)
			}
		}
	}
	for _, id := range ids {
		lock, err := cache.AcquireLock(ctx, fmt.Sprintf("package:%d", id), l.ttl, l.wait)
		if err != nil {
			release()
			if errors.Is(err, cache.ErrLockNotAcquired) {
				return nil, &ResourceLockedError{Resource: "package", ID: id, Reason: "operation_in_progress"}
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("acquire package lock failed: %w", err)
		}
		locks = append(locks, lock)
	}
	return release, nil
}

func sortedUniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
