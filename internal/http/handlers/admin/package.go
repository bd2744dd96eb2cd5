package admin

import (
	"strings"

	"github.com/parcel-relay/internal/http/response"
	"github.com/parcel-relay/internal/models"
	"github.com/parcel-relay/internal/service"

	"github.com/gin-gonic/gin"
)

// WarehouseDetailsRequest 仓库录入包裹信息，字段缺省表示不修改
type WarehouseDetailsRequest struct {
	WeightKg             *float64      `json:"weight_kg"`
	ShippingCost         *models.Money `json:"shipping_cost"`
	DomesticShippingCost *models.Money `json:"domestic_shipping_cost"`
	PackagePhoto         *string       `json:"package_photo"`
	Notes                *string       `json:"notes"`
}

// ShipRequest 出库发货
type ShipRequest struct {
	TrackingNumber string `json:"tracking_number" binding:"required"`
}

// ReasonRequest 带原因的操作
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// PhotosRequest 拍照服务完成
type PhotosRequest struct {
	Photos []string `json:"photos" binding:"required"`
}

// AdditionalChargeRequest 追加运费
type AdditionalChargeRequest struct {
	Amount models.Money `json:"amount"`
	Reason string       `json:"reason"`
}

// CancelPurchaseRequest 取消购买审核结果
type CancelPurchaseRequest struct {
	Approve bool   `json:"approve"`
	Refund  bool   `json:"refund"`
	Notes   string `json:"notes"`
}

// FinalizeConsolidationRequest 完成合箱
type FinalizeConsolidationRequest struct {
	AnchorID uint     `json:"anchor_id" binding:"required"`
	WeightKg *float64 `json:"weight_kg"`
	Notes    string   `json:"notes"`
}

type packageAction func(c *gin.Context, id uint) (*models.Package, error)

// handlePackageAction 解析包裹 ID，执行操作并返回最新包裹
func (h *Handler) handlePackageAction(c *gin.Context, fallbackKey string, action packageAction) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	pkg, err := action(c, id)
	if err == nil && pkg == nil {
		// 请求体解析失败，响应已写出
		return
	}
	if err != nil {
		respondWithMappedError(c, err, fallbackKey)
		return
	}
	requestLog(c).Infow("admin_package_action",
		"operator_admin_id", currentAdminID(c),
		"package_id", id,
		"route", c.FullPath(),
		"status", pkg.Status,
	)
	response.Success(c, pkg)
}

// GetPackage 后台查看包裹详情
func (h *Handler) GetPackage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	view, err := h.PackageQueryService.GetPackage(0, id)
	if err != nil {
		respondWithMappedError(c, err, "error.package_fetch_failed")
		return
	}
	response.Success(c, view)
}

// ListUserPackages 后台查看某用户的全部包裹
func (h *Handler) ListUserPackages(c *gin.Context) {
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}
	views, err := h.PackageQueryService.ListPackages(userID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.package_fetch_failed", err)
		return
	}
	response.Success(c, views)
}

// UpdateWarehouseDetails 录入称重、运费与照片
func (h *Handler) UpdateWarehouseDetails(c *gin.Context) {
	h.handlePackageAction(c, "error.package_update_failed", func(c *gin.Context, id uint) (*models.Package, error) {
		var req WarehouseDetailsRequest
		if !bindJSON(c, &req) {
			return nil, nil
		}
		return h.AdminFulfillmentService.UpdateWarehouseDetails(c.Request.Context(), id, service.WarehouseDetailsInput{
			WeightKg:             req.WeightKg,
			ShippingCost:         req.ShippingCost,
			DomesticShippingCost: req.DomesticShippingCost,
			PackagePhoto:         req.PackagePhoto,
			Notes:                req.Notes,
		})
	})
}

// CompletePhotoService 上传拍照结果
func (h *Handler) CompletePhotoService(c *gin.Context) {
	h.handlePackageAction(c, "error.package_update_failed", func(c *gin.Context, id uint) (*models.Package, error) {
		var req PhotosRequest
		if !bindJSON(c, &req) {
			return nil, nil
		}
		return h.AdminFulfillmentService.CompletePhotoService(c.Request.Context(), id, req.Photos)
	})
}

// CompleteReinforcement 完成加固
func (h *Handler) CompleteReinforcement(c *gin.Context) {
	h.handlePackageAction(c, "error.package_update_failed", func(c *gin.Context, id uint) (*models.Package, error) {
		return h.AdminFulfillmentService.CompleteReinforcement(c.Request.Context(), id)
	})
}

// MarkShipped 出库并登记运单号
func (h *Handler) MarkShipped(c *gin.Context) {
	h.handlePackageAction(c, "error.package_update_failed", func(c *gin.Context, id uint) (*models.Package, error) {
		var req ShipRequest
		if !bindJSON(c, &req) {
			return nil, nil
		}
		return h.AdminFulfillmentService.MarkShipped(c.Request.Context(), id, strings.TrimSpace(req.TrackingNumber))
	})
}

// MarkDelivered 确认签收
func (h *Handler) MarkDelivered(c *gin.Context) {
	h.handlePackageAction(c, "error.package_update_failed", func(c *gin.Context, id uint) (*models.Package, error) {
		return h.AdminFulfillmentService.MarkDelivered(c.Request.Context(), id)
	})
}

// CompleteDisposal 完成销毁
func (h *Handler) CompleteDisposal(c *gin.Context) {
	h.handlePackageAction(c, "error.package_update_failed", func(c *gin.Context, id uint) (*models.Package, error) {
		return h.AdminFulfillmentService.CompleteDisposal(c.Request.Context(), id)
	})
}

// DeclineDisposal 拒绝销毁申请
func (h *Handler) DeclineDisposal(c *gin.Context) {
	h.handlePackageAction(c, "error.package_update_failed", func(c *gin.Context, id uint) (*models.Package, error) {
		var req ReasonRequest
		if !bindJSON(c, &req) {
			return nil, nil
		}
		return h.AdminFulfillmentService.DeclineDisposal(c.Request.Context(), id, strings.TrimSpace(req.Reason))
	})
}

// ChargeAdditional 追加运费
func (h *Handler) ChargeAdditional(c *gin.Context) {
	h.handlePackageAction(c, "error.package_update_failed", func(c *gin.Context, id uint) (*models.Package, error) {
		var req AdditionalChargeRequest
		if !bindJSON(c, &req) {
			return nil, nil
		}
		return h.AdminFulfillmentService.ChargeAdditional(c.Request.Context(), id, req.Amount, strings.TrimSpace(req.Reason))
	})
}

// RequestCancelPayment 要求客户支付取消费用
func (h *Handler) RequestCancelPayment(c *gin.Context) {
	h.handlePackageAction(c, "error.package_update_failed", func(c *gin.Context, id uint) (*models.Package, error) {
		return h.AdminFulfillmentService.RequestCancelPayment(c.Request.Context(), id)
	})
}

// UpdateCancelPurchase 审核取消购买
func (h *Handler) UpdateCancelPurchase(c *gin.Context) {
	h.handlePackageAction(c, "error.package_update_failed", func(c *gin.Context, id uint) (*models.Package, error) {
		var req CancelPurchaseRequest
		if !bindJSON(c, &req) {
			return nil, nil
		}
		return h.AdminFulfillmentService.UpdateCancelPurchase(c.Request.Context(), id, service.CancelPurchaseDecision{
			Approve: req.Approve,
			Refund:  req.Refund,
			Notes:   strings.TrimSpace(req.Notes),
		})
	})
}

// FinalizeConsolidation 仓库完成合箱，任一成员不满足条件则整体拒绝
func (h *Handler) FinalizeConsolidation(c *gin.Context) {
	var req FinalizeConsolidationRequest
	if !bindJSON(c, &req) {
		return
	}
	anchor, err := h.ConsolidationService.Finalize(c.Request.Context(), service.FinalizeConsolidationInput{
		AnchorID: req.AnchorID,
		WeightKg: req.WeightKg,
		Notes:    strings.TrimSpace(req.Notes),
	})
	if err != nil {
		respondWithMappedError(c, err, "error.consolidation_failed")
		return
	}
	requestLog(c).Infow("admin_consolidation_finalized",
		"operator_admin_id", currentAdminID(c),
		"anchor_id", anchor.ID,
	)
	response.Success(c, anchor)
}

// CancelConsolidationRequest 撤销客户的合箱申请
func (h *Handler) CancelConsolidationRequest(c *gin.Context) {
	h.handlePackageAction(c, "error.consolidation_failed", func(c *gin.Context, id uint) (*models.Package, error) {
		return h.ConsolidationService.CancelRequest(c.Request.Context(), id)
	})
}

// DeconsolidatePackage 拆开自动合并的包裹
func (h *Handler) DeconsolidatePackage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	anchor, restored, err := h.ConsolidationService.Deconsolidate(c.Request.Context(), id)
	if err != nil {
		respondWithMappedError(c, err, "error.consolidation_failed")
		return
	}
	requestLog(c).Infow("admin_package_deconsolidated",
		"operator_admin_id", currentAdminID(c),
		"package_id", anchor.ID,
		"restored", len(restored),
	)
	response.Success(c, gin.H{
		"package":  anchor,
		"restored": restored,
	})
}

// AutoConsolidateOrder 按订单自动合箱
func (h *Handler) AutoConsolidateOrder(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	pkgs, err := h.ConsolidationService.AutoConsolidate(c.Request.Context(), orderID)
	if err != nil {
		respondWithMappedError(c, err, "error.consolidation_failed")
		return
	}
	response.Success(c, pkgs)
}

// RunStorageSweep 手动触发一次仓储期限巡检
func (h *Handler) RunStorageSweep(c *gin.Context) {
	result, err := h.StorageSweepService.Sweep(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "error.storage_sweep_failed", err)
		return
	}
	requestLog(c).Infow("admin_storage_sweep_triggered",
		"operator_admin_id", currentAdminID(c),
		"checked", result.Checked,
		"disposed", len(result.Disposed),
	)
	response.Success(c, result)
}
