package public

import (
	"github.com/parcel-relay/internal/http/response"
	"github.com/parcel-relay/internal/models"
	"github.com/parcel-relay/internal/service"

	"github.com/gin-gonic/gin"
)

// PackageOptionsRequest 包裹选项请求，未出现的字段保持不变
type PackageOptionsRequest struct {
	ShippingMethod      *string       `json:"shipping_method"`
	PhotoService        *bool         `json:"photo_service"`
	Reinforcement       *bool         `json:"reinforcement"`
	CancelPurchase      *bool         `json:"cancel_purchase"`
	AdditionalInsurance *models.Money `json:"additional_insurance"`
	Consolidation       *bool         `json:"consolidation"`
	ConsolidateWith     []uint        `json:"consolidate_with"`
}

// ShippingRequestRequest 发货申请
type ShippingRequestRequest struct {
	AddressID      *uint  `json:"address_id"`
	CarrierService string `json:"carrier_service"`
}

// ListPackages 获取当前用户的包裹列表
func (h *Handler) ListPackages(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	views, err := h.PackageQueryService.ListPackages(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "error.package_fetch_failed", err)
		return
	}
	response.Success(c, views)
}

// GetPackage 获取单个包裹
func (h *Handler) GetPackage(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	view, err := h.PackageQueryService.GetPackage(uid, id)
	if err != nil {
		respondWithMappedError(c, err, "error.package_fetch_failed")
		return
	}
	response.Success(c, view)
}

// ListConsolidationCandidates 列出可并入该包裹的候选包裹
func (h *Handler) ListConsolidationCandidates(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	candidates, err := h.PackageQueryService.ListCandidates(uid, id)
	if err != nil {
		respondWithMappedError(c, err, "error.package_fetch_failed")
		return
	}
	response.Success(c, candidates)
}

// SetPackageOptions 设置包裹增值服务与合箱选项
func (h *Handler) SetPackageOptions(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req PackageOptionsRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.PackageOptionService.SetPackageOptions(c.Request.Context(), uid, id, service.PackageOptionsInput{
		ShippingMethod:      req.ShippingMethod,
		PhotoService:        req.PhotoService,
		Reinforcement:       req.Reinforcement,
		CancelPurchase:      req.CancelPurchase,
		AdditionalInsurance: req.AdditionalInsurance,
		Consolidation:       req.Consolidation,
		ConsolidateWith:     req.ConsolidateWith,
	})
	if err != nil {
		respondWithMappedError(c, err, "error.package_update_failed")
		return
	}
	response.Success(c, gin.H{
		"package": result.Package,
		"charged": result.Charged,
		"changed": result.Changed,
	})
}

// RequestShipping 申请国际发货；未指定承运商服务时返回可选报价而不扣款
func (h *Handler) RequestShipping(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ShippingRequestRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.ShippingService.RequestShipping(c.Request.Context(), uid, id, service.ShippingRequestInput{
		AddressID:      req.AddressID,
		CarrierService: req.CarrierService,
	})
	if err != nil {
		respondWithMappedError(c, err, "error.shipping_request_failed")
		return
	}
	response.Success(c, gin.H{
		"package":                 result.Package,
		"needs_carrier_selection": result.NeedsCarrierSelection,
		"options":                 result.Options,
		"charged":                 result.Charged,
	})
}
