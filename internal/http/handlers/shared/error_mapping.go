package shared

import (
	"errors"

	"github.com/parcel-relay/internal/http/response"
	"github.com/parcel-relay/internal/i18n"
	"github.com/parcel-relay/internal/service"

	"github.com/gin-gonic/gin"
)

// MappedError 业务错误到接口错误码与文案 key 的映射
type MappedError struct {
	Target error
	Code   int
	Key    string
}

// NotFoundErrorRules 资源不存在类错误
var NotFoundErrorRules = []MappedError{
	{Target: service.ErrPackageNotFound, Code: response.CodeNotFound, Key: "error.package_not_found"},
	{Target: service.ErrAddressNotFound, Code: response.CodeNotFound, Key: "error.address_not_found"},
	{Target: service.ErrClaimNotFound, Code: response.CodeNotFound, Key: "error.claim_not_found"},
	{Target: service.ErrCompensationNotFound, Code: response.CodeNotFound, Key: "error.compensation_not_found"},
	{Target: service.ErrOrderItemNotFound, Code: response.CodeNotFound, Key: "error.order_item_not_found"},
	{Target: service.ErrCouponNotFound, Code: response.CodeNotFound, Key: "error.coupon_not_found"},
}

// RespondWithMappedError 先匹配显式规则，再按履约错误分类输出，最后回退
func RespondWithMappedError(c *gin.Context, err error, rules []MappedError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.Target) {
			RespondError(c, rule.Code, rule.Key, nil)
			return
		}
	}
	for _, rule := range NotFoundErrorRules {
		if errors.Is(err, rule.Target) {
			RespondError(c, rule.Code, rule.Key, nil)
			return
		}
	}
	if RespondFulfillmentError(c, err) {
		return
	}
	RespondError(c, fallbackCode, fallbackKey, err)
}

// RespondFulfillmentError 输出带结构化数据的履约错误，未识别时返回 false
func RespondFulfillmentError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	locale := i18n.ResolveLocale(c)

	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		response.ErrorWithData(c, response.CodeBadRequest, i18n.T(locale, "error.validation_failed"), gin.H{
			"field":  validationErr.Field,
			"reason": validationErr.Reason,
		})
		return true
	}

	var ineligibleErr *service.IneligibleTransitionError
	if errors.As(err, &ineligibleErr) {
		data := gin.H{
			"action":  ineligibleErr.Action,
			"reasons": ineligibleErr.Reasons,
		}
		if len(ineligibleErr.PackageReasons) > 0 {
			data["package_reasons"] = ineligibleErr.PackageReasons
		}
		if len(ineligibleErr.CarrierOptions) > 0 {
			data["carrier_options"] = ineligibleErr.CarrierOptions
		}
		response.ErrorWithData(c, response.CodeUnprocessable, i18n.T(locale, "error.transition_not_allowed"), data)
		return true
	}

	var balanceErr *service.InsufficientBalanceError
	if errors.As(err, &balanceErr) {
		shortfall := balanceErr.Shortfall()
		response.ErrorWithData(c, response.CodePaymentRequired, i18n.Sprintf(locale, "error.insufficient_balance", shortfall.String()), gin.H{
			"required":  balanceErr.Required,
			"available": balanceErr.Available,
			"shortfall": shortfall,
		})
		return true
	}

	var lockedErr *service.ResourceLockedError
	if errors.As(err, &lockedErr) {
		response.ErrorWithData(c, response.CodeLocked, i18n.T(locale, "error.resource_locked"), gin.H{
			"resource": lockedErr.Resource,
			"id":       lockedErr.ID,
			"reason":   lockedErr.Reason,
		})
		return true
	}

	var conflictErr *service.ConflictError
	if errors.As(err, &conflictErr) {
		response.ErrorWithData(c, response.CodeConflict, i18n.T(locale, "error.conflict"), gin.H{
			"entity": conflictErr.Entity,
			"id":     conflictErr.ID,
		})
		return true
	}

	var externalErr *service.ExternalDependencyError
	if errors.As(err, &externalErr) {
		RequestLog(c).Warnw("external_dependency_failed", "dependency", externalErr.Dependency, "error", externalErr.Err)
		response.ErrorWithData(c, response.CodeUnavailable, i18n.T(locale, "error.dependency_unavailable"), gin.H{
			"dependency": externalErr.Dependency,
			"retryable":  true,
		})
		return true
	}
	return false
}
