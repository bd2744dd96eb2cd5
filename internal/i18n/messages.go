package i18n

var catalog = map[string]map[string]string{
	LocaleZhCN: {
		"error.bad_request":                "请求参数错误",
		"error.unauthorized":               "未登录或登录已过期",
		"error.forbidden":                  "无权执行该操作",
		"error.invalid_id":                 "ID 格式错误",
		"error.validation_failed":          "参数校验失败",
		"error.transition_not_allowed":     "当前状态不允许该操作",
		"error.insufficient_balance":       "余额不足，还需 %s 日元",
		"error.resource_locked":            "资源已锁定，无法修改",
		"error.conflict":                   "数据已被其他操作修改，请刷新后重试",
		"error.dependency_unavailable":     "外部服务暂不可用，请稍后重试",
		"error.package_not_found":          "包裹不存在",
		"error.address_not_found":          "地址不存在",
		"error.claim_not_found":            "破损申请不存在",
		"error.compensation_not_found":     "赔付申请不存在",
		"error.order_item_not_found":       "订单商品不存在",
		"error.coupon_not_found":           "优惠券不存在",
		"error.package_fetch_failed":       "获取包裹失败",
		"error.package_update_failed":      "更新包裹失败",
		"error.shipping_request_failed":    "申请发货失败",
		"error.payment_failed":             "支付失败",
		"error.consolidation_failed":       "合箱失败",
		"error.storage_sweep_failed":       "仓储巡检失败",
		"error.claim_create_failed":        "提交破损申请失败",
		"error.claim_fetch_failed":         "获取破损申请失败",
		"error.claim_update_failed":        "更新破损申请失败",
		"error.refund_request_failed":      "申请退款失败",
		"error.compensation_create_failed": "提交赔付申请失败",
		"error.compensation_fetch_failed":  "获取赔付申请失败",
		"error.compensation_update_failed": "更新赔付申请失败",
		"error.address_fetch_failed":       "获取地址失败",
		"error.address_save_failed":        "保存地址失败",
		"error.address_delete_failed":      "删除地址失败",
		"error.wallet_fetch_failed":        "获取钱包信息失败",
		"error.wallet_adjust_failed":       "调整余额失败",
		"error.wallet_amount_invalid":      "金额不能为 0",
		"error.coupon_fetch_failed":        "获取优惠券失败",
		"error.coupon_issue_failed":        "发放优惠券失败",
		"error.coupon_redeem_failed":       "核销优惠券失败",
		"error.change_fetch_failed":        "获取变更记录失败",
		"error.notification_fetch_failed":  "获取通知失败",
		"error.notification_update_failed": "更新通知失败",
		"error.authz_fetch_failed":         "获取权限配置失败",
		"error.authz_role_not_found":       "角色不存在",
		"error.auth_header_missing":        "缺少认证信息",
		"error.auth_header_invalid":        "认证信息格式错误",
		"error.token_invalid":              "令牌无效",
		"error.jwt_secret_missing":         "服务端未配置令牌密钥",
		"error.user_disabled":              "账号已被停用",
		"error.user_id_invalid":            "用户 ID 无效",
		"error.user_id_type_invalid":       "用户 ID 类型错误",
		"error.admin_id_invalid":           "管理员 ID 无效",
		"error.admin_id_type_invalid":      "管理员 ID 类型错误",
		"error.rate_limited":               "请求过于频繁，请 %d 秒后重试",
		"error.rate_limit_unavailable":     "限流服务暂不可用",
	},
	LocaleEnUS: {
		"error.bad_request":                "Invalid request parameters",
		"error.unauthorized":               "Not signed in or session expired",
		"error.forbidden":                  "You are not allowed to perform this action",
		"error.invalid_id":                 "Invalid ID",
		"error.validation_failed":          "Validation failed",
		"error.transition_not_allowed":     "This action is not allowed in the current state",
		"error.insufficient_balance":       "Insufficient balance, %s JPY short",
		"error.resource_locked":            "The resource is locked",
		"error.conflict":                   "The record was changed by another request, please refresh and retry",
		"error.dependency_unavailable":     "An external service is unavailable, please retry later",
		"error.package_not_found":          "Package not found",
		"error.address_not_found":          "Address not found",
		"error.claim_not_found":            "Damaged item claim not found",
		"error.compensation_not_found":     "Compensation request not found",
		"error.order_item_not_found":       "Order item not found",
		"error.coupon_not_found":           "Coupon not found",
		"error.package_fetch_failed":       "Failed to load packages",
		"error.package_update_failed":      "Failed to update package",
		"error.shipping_request_failed":    "Failed to request shipping",
		"error.payment_failed":             "Payment failed",
		"error.consolidation_failed":       "Consolidation failed",
		"error.storage_sweep_failed":       "Storage sweep failed",
		"error.claim_create_failed":        "Failed to file damaged item claim",
		"error.claim_fetch_failed":         "Failed to load damaged item claims",
		"error.claim_update_failed":        "Failed to update damaged item claim",
		"error.refund_request_failed":      "Failed to request refund",
		"error.compensation_create_failed": "Failed to file compensation request",
		"error.compensation_fetch_failed":  "Failed to load compensation requests",
		"error.compensation_update_failed": "Failed to update compensation request",
		"error.address_fetch_failed":       "Failed to load addresses",
		"error.address_save_failed":        "Failed to save address",
		"error.address_delete_failed":      "Failed to delete address",
		"error.wallet_fetch_failed":        "Failed to load wallet",
		"error.wallet_adjust_failed":       "Failed to adjust balance",
		"error.wallet_amount_invalid":      "Amount must not be zero",
		"error.coupon_fetch_failed":        "Failed to load coupons",
		"error.coupon_issue_failed":        "Failed to issue coupon",
		"error.coupon_redeem_failed":       "Failed to redeem coupon",
		"error.change_fetch_failed":        "Failed to load changes",
		"error.notification_fetch_failed":  "Failed to load notifications",
		"error.notification_update_failed": "Failed to update notifications",
		"error.authz_fetch_failed":         "Failed to load permissions",
		"error.authz_role_not_found":       "Role not found",
		"error.auth_header_missing":        "Missing authorization header",
		"error.auth_header_invalid":        "Malformed authorization header",
		"error.token_invalid":              "Invalid token",
		"error.jwt_secret_missing":         "Token secret is not configured",
		"error.user_disabled":              "Account is disabled",
		"error.user_id_invalid":            "Invalid user ID",
		"error.user_id_type_invalid":       "Invalid user ID type",
		"error.admin_id_invalid":           "Invalid admin ID",
		"error.admin_id_type_invalid":      "Invalid admin ID type",
		"error.rate_limited":               "Too many requests, retry in %d seconds",
		"error.rate_limit_unavailable":     "Rate limiter unavailable",
	},
}
