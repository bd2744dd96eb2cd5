package router

import (
	"sort"
	"strings"

	"github.com/parcel-relay/internal/authz"
	"github.com/parcel-relay/internal/cache"
	"github.com/parcel-relay/internal/config"
	adminhandlers "github.com/parcel-relay/internal/http/handlers/admin"
	publichandlers "github.com/parcel-relay/internal/http/handlers/public"
	"github.com/parcel-relay/internal/http/response"
	"github.com/parcel-relay/internal/logger"
	"github.com/parcel-relay/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	r := gin.New()

	// 初始化 Handler（按客户/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "pr"
	}
	apiRule := NewAPIRateLimitRule(redisPrefix, cfg.RateLimit)
	apiLimiter := RateLimitMiddleware(cache.Client(), apiRule, KeyByUserOrIP)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(logger.L()))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 客户接口（需鉴权）
		user := apiV1.Group("")
		user.Use(UserJWTAuthMiddleware(cfg.UserJWT, c.UserRepo), apiLimiter)
		{
			// 包裹与增值服务
			user.GET("/packages", publicHandler.ListPackages)
			user.GET("/packages/:id", publicHandler.GetPackage)
			user.GET("/packages/:id/consolidation-candidates", publicHandler.ListConsolidationCandidates)
			user.PUT("/packages/:id/options", publicHandler.SetPackageOptions)
			user.POST("/packages/:id/shipping", publicHandler.RequestShipping)
			user.POST("/packages/:id/payments/domestic-shipping", publicHandler.PayDomesticShipping)
			user.POST("/packages/:id/payments/additional-shipping", publicHandler.PayAdditionalShipping)
			user.POST("/packages/:id/payments/cancellation-fee", publicHandler.PayCancellationFee)
			user.POST("/packages/:id/payments/storage", publicHandler.PayStorage)
			user.POST("/packages/:id/disposal", publicHandler.RequestDisposal)

			// 破损与赔付
			user.POST("/packages/:id/damaged-claims", publicHandler.FileDamagedItemClaim)
			user.GET("/damaged-claims", publicHandler.ListMyDamagedClaims)
			user.POST("/damaged-claims/:id/refund", publicHandler.RequestDamagedItemRefund)
			user.POST("/compensations", publicHandler.FileCompensationRequest)
			user.GET("/compensations", publicHandler.ListMyCompensations)
			user.PUT("/compensations/:id", publicHandler.ResubmitCompensationRequest)
			user.POST("/compensations/:id/refund", publicHandler.RequestCompensationRefund)

			// 地址
			user.GET("/addresses", publicHandler.ListAddresses)
			user.POST("/addresses", publicHandler.CreateAddress)
			user.PUT("/addresses/:id", publicHandler.UpdateAddress)
			user.DELETE("/addresses/:id", publicHandler.DeleteAddress)

			// 钱包与优惠券
			user.GET("/wallet", publicHandler.GetMyWallet)
			user.GET("/wallet/transactions", publicHandler.GetMyWalletTransactions)
			user.GET("/coupons", publicHandler.ListMyCoupons)
			user.POST("/coupons/validate", publicHandler.ValidateCoupon)
			user.POST("/coupons/redeem", publicHandler.RedeemCoupon)

			// 变更与通知
			user.GET("/changes", publicHandler.ListChanges)
			user.GET("/notifications", publicHandler.ListNotifications)
			user.POST("/notifications/read", publicHandler.MarkNotificationsRead)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		authorized := admin.Use(AdminJWTAuthMiddleware(cfg.AdminJWT), apiLimiter, AdminRBACMiddleware(c.AuthzService))
		{
			// 包裹履约
			authorized.GET("/packages/:id", adminHandler.GetPackage)
			authorized.PATCH("/packages/:id", adminHandler.UpdateWarehouseDetails)
			authorized.POST("/packages/:id/photos", adminHandler.CompletePhotoService)
			authorized.POST("/packages/:id/reinforcement", adminHandler.CompleteReinforcement)
			authorized.POST("/packages/:id/ship", adminHandler.MarkShipped)
			authorized.POST("/packages/:id/deliver", adminHandler.MarkDelivered)
			authorized.POST("/packages/:id/disposal/complete", adminHandler.CompleteDisposal)
			authorized.POST("/packages/:id/disposal/decline", adminHandler.DeclineDisposal)
			authorized.POST("/packages/:id/additional-charge", adminHandler.ChargeAdditional)
			authorized.POST("/packages/:id/cancel-purchase/request-payment", adminHandler.RequestCancelPayment)
			authorized.PUT("/packages/:id/cancel-purchase", adminHandler.UpdateCancelPurchase)
			authorized.POST("/consolidations", adminHandler.FinalizeConsolidation)
			authorized.POST("/packages/:id/consolidation/cancel", adminHandler.CancelConsolidationRequest)
			authorized.POST("/packages/:id/deconsolidate", adminHandler.DeconsolidatePackage)
			authorized.POST("/orders/:id/auto-consolidate", adminHandler.AutoConsolidateOrder)
			authorized.POST("/storage/sweep", adminHandler.RunStorageSweep)

			// 破损与赔付审核
			authorized.GET("/damaged-claims", adminHandler.ListDamagedClaims)
			authorized.POST("/damaged-claims/:id/review", adminHandler.ReviewDamagedClaim)
			authorized.POST("/damaged-claims/:id/confirm-refund", adminHandler.ConfirmDamagedRefund)
			authorized.GET("/compensations", adminHandler.ListCompensations)
			authorized.POST("/compensations/:id/review", adminHandler.ReviewCompensation)
			authorized.POST("/compensations/:id/approve-refund", adminHandler.ApproveCompensationForRefund)
			authorized.POST("/compensations/:id/confirm-refund", adminHandler.ConfirmCompensationRefund)
			authorized.POST("/coupons/reward", adminHandler.IssueRewardCoupon)

			// 用户包裹与钱包
			authorized.GET("/users/:id/packages", adminHandler.ListUserPackages)
			authorized.GET("/users/:id/wallet", adminHandler.GetUserWallet)
			authorized.GET("/users/:id/wallet/transactions", adminHandler.ListUserWalletTransactions)
			authorized.POST("/users/:id/wallet/adjust", adminHandler.AdjustUserWallet)

			// 权限管理
			authorized.GET("/authz/me", adminHandler.GetAuthzMe)
			authorized.GET("/authz/roles", adminHandler.ListAuthzRoles)
			authorized.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
				response.Success(ctx, buildAdminPermissionCatalog(r))
			})
			authorized.GET("/authz/roles/:role/policies", adminHandler.GetAuthzRolePolicies)
			authorized.POST("/authz/policies/reload", adminHandler.ReloadAuthzPolicy)
			authorized.GET("/authz/admins/:id/roles", adminHandler.GetAuthzAdminRoles)
			authorized.PUT("/authz/admins/:id/roles", adminHandler.SetAuthzAdminRoles)
		}
	}

	// 健康检查
	r.GET("/health", func(ctx *gin.Context) {
		status := gin.H{"status": "ok"}
		if cache.Enabled() {
			if err := cache.Ping(ctx.Request.Context()); err != nil {
				status["redis"] = "unavailable"
			} else {
				status["redis"] = "ok"
			}
		}
		ctx.JSON(200, status)
	})

	return r
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] != "admin" {
		return segments[0]
	}
	if segments[1] == "authz" {
		return "authz"
	}
	return segments[1]
}
