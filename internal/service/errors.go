package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/parcel-relay/internal/models"
)

// 错误分类哨兵，具体错误类型通过 Is 归入对应分类
var (
	ErrValidation           = errors.New("validation failed")
	ErrIneligibleTransition = errors.New("transition not allowed")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrResourceLocked       = errors.New("resource locked")
	ErrExternalDependency   = errors.New("external dependency failed")
	ErrConflict             = errors.New("concurrent modification")
)

// 资源不存在
var (
	ErrPackageNotFound      = errors.New("package not found")
	ErrAddressNotFound      = errors.New("address not found")
	ErrClaimNotFound        = errors.New("damaged item claim not found")
	ErrCompensationNotFound = errors.New("compensation request not found")
	ErrOrderItemNotFound    = errors.New("order item not found")
	ErrCouponNotFound       = errors.New("coupon not found")
)

// 钱包内部错误
var (
	ErrWalletInvalidAmount           = errors.New("wallet amount must be positive")
	ErrWalletAccountUpdateFailed     = errors.New("wallet account update failed")
	ErrWalletTransactionCreateFailed = errors.New("wallet transaction create failed")
	ErrWalletReferenceRequired       = errors.New("wallet transaction reference required")
)

// ValidationError 输入格式错误
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// Is 归类为 ErrValidation
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IneligibleTransitionError 状态机或资格规则拒绝，携带全部阻断原因
type IneligibleTransitionError struct {
	Action  Action
	Reasons []BlockReason
	// PackageReasons 涉及多个包裹时按包裹列出原因
	PackageReasons map[uint][]BlockReason
	// CarrierOptions 需要客户选择承运商时可选的运输方式
	CarrierOptions []string
}

func (e *IneligibleTransitionError) Error() string {
	parts := make([]string, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		parts = append(parts, string(r))
	}
	msg := fmt.Sprintf("%s not allowed: %s", e.Action, strings.Join(parts, ","))
	if len(e.PackageReasons) > 0 {
		ids := make([]uint, 0, len(e.PackageReasons))
		for id := range e.PackageReasons {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			items := make([]string, 0, len(e.PackageReasons[id]))
			for _, r := range e.PackageReasons[id] {
				items = append(items, string(r))
			}
			msg += fmt.Sprintf("; package %d: %s", id, strings.Join(items, ","))
		}
	}
	return msg
}

// Is 归类为 ErrIneligibleTransition
func (e *IneligibleTransitionError) Is(target error) bool { return target == ErrIneligibleTransition }

// Has 是否包含指定原因
func (e *IneligibleTransitionError) Has(reason BlockReason) bool {
	for _, r := range e.Reasons {
		if r == reason {
			return true
		}
	}
	return false
}

func ineligible(action Action, reasons ...BlockReason) error {
	return &IneligibleTransitionError{Action: action, Reasons: reasons}
}

// InsufficientBalanceError 余额不足
type InsufficientBalanceError struct {
	Required  models.Money
	Available models.Money
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %s, available %s, shortfall %s",
		e.Required.String(), e.Available.String(), e.Shortfall().String())
}

// Is 归类为 ErrInsufficientBalance
func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// Shortfall 差额
func (e *InsufficientBalanceError) Shortfall() models.Money {
	diff := e.Required.Sub(e.Available)
	if !diff.IsPositive() {
		return models.Yen(0)
	}
	return diff
}

// ResourceLockedError 资源被其他在途操作占用，可在释放后重试
type ResourceLockedError struct {
	Resource string
	ID       uint
	Reason   string
}

func (e *ResourceLockedError) Error() string {
	return fmt.Sprintf("%s %d locked: %s", e.Resource, e.ID, e.Reason)
}

// Is 归类为 ErrResourceLocked
func (e *ResourceLockedError) Is(target error) bool { return target == ErrResourceLocked }

// ExternalDependencyError 外部依赖失败，未提交任何变更，可重试
type ExternalDependencyError struct {
	Dependency string
	Err        error
}

func (e *ExternalDependencyError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Dependency, e.Err)
}

// Is 归类为 ErrExternalDependency
func (e *ExternalDependencyError) Is(target error) bool { return target == ErrExternalDependency }

// Unwrap 返回底层错误
func (e *ExternalDependencyError) Unwrap() error { return e.Err }

// ConflictError 乐观锁冲突，调用方应重新获取后重试
type ConflictError struct {
	Entity string
	ID     uint
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %d was modified concurrently", e.Entity, e.ID)
}

// Is 归类为 ErrConflict
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
