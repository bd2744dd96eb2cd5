package constants

// 包裹状态常量
const (
	PackageStatusReady           = "ready"
	PackageStatusPendingShipping = "pending_shipping"
	PackageStatusConsolidated    = "consolidated"
	PackageStatusShipped         = "shipped"
	PackageStatusDelivered       = "delivered"
	PackageStatusDisposed        = "disposed"
	PackageStatusCancelled       = "cancelled"
)

// 国际运输方式常量
const (
	ShippingMethodEMS   = "ems"
	ShippingMethodFedEx = "fedex"
)

// 增值服务处理状态常量
const (
	ServiceStatusPending   = "pending"
	ServiceStatusCompleted = "completed"
)

// 取消采购状态常量
const (
	CancelPurchaseStatusPending         = "pending"
	CancelPurchaseStatusAwaitingPayment = "awaiting_payment"
	CancelPurchaseStatusPaid            = "paid"
	CancelPurchaseStatusApproved        = "approved"
	CancelPurchaseStatusRejected        = "rejected"
)

// 合箱角色常量
const (
	ConsolidationKindStandalone = "standalone"
	ConsolidationKindAnchor     = "anchor"
	ConsolidationKindMember     = "member"
	ConsolidationKindAutoAnchor = "auto_anchor"
)

// 损坏申请状态常量
const (
	ClaimStatusPending  = "pending"
	ClaimStatusApproved = "approved"
	ClaimStatusRejected = "rejected"
)

// 理赔申请状态常量
const (
	CompensationStatusPending    = "pending"
	CompensationStatusApproved   = "approved"
	CompensationStatusRejected   = "rejected"
	CompensationStatusProcessing = "processing"
)

// 理赔类型常量
const (
	CompensationTypeReplace = "replace"
	CompensationTypeRefund  = "refund"
)

// 退款方式常量
const (
	RefundMethodBalance = "balance"
	RefundMethodStripe  = "stripe"
	RefundMethodPaypal  = "paypal"
	RefundMethodReplace = "replace"
)

// 订单状态常量
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

// 优惠券状态常量
const (
	CouponStatusActive  = "active"
	CouponStatusUsed    = "used"
	CouponStatusExpired = "expired"
)

// 钱包交易类型常量
const (
	WalletTxnTypeServiceCharge = "service_charge"
	WalletTxnTypeShipping      = "shipping"
	WalletTxnTypeStorage       = "storage"
	WalletTxnTypeRefund        = "refund"
	WalletTxnTypeAdminAdjust   = "admin_adjust"
	WalletTxnTypeTopUp         = "top_up"
)

// 钱包交易方向常量
const (
	WalletTxnDirectionIn  = "in"
	WalletTxnDirectionOut = "out"
)

// 变更通知实体类型常量
const (
	ChangeEntityPackage      = "package"
	ChangeEntityAddress      = "address"
	ChangeEntityClaim        = "damaged_claim"
	ChangeEntityCompensation = "compensation"
	ChangeEntityWallet       = "wallet"
)

// 通知类型常量
const (
	NotificationKindPackage      = "package"
	NotificationKindStorage      = "storage"
	NotificationKindClaim        = "claim"
	NotificationKindCompensation = "compensation"
	NotificationKindWallet       = "wallet"
)

// 计费常量（日元）
const (
	PhotoServicePrice        = 500
	ReinforcementPrice       = 1000
	CancelPurchaseFee        = 900
	DisposalPricePerKg       = 300
	InsuranceBaseline        = 20000 // 基础保额
	InsuranceTierAmount      = 20000 // 每档保额
	InsuranceTierPrice       = 50    // 每档保费
	StorageFreeDays          = 60
	StorageFeePerDay         = 30
	StorageMaxUnpaidDays     = 10
	MaxAddressesPerUser      = 3
	MaxPackagesPerShipment   = 5
	RewardCouponDiscount     = 800
	RewardCouponValidMonths  = 6
	ReplacementTitlePrefix   = "[REPLACEMENT] "
	RewardCouponCodePrefix   = "REWARD800"
	WalletCurrency           = "JPY"
	CardLast4Length          = 4
	SettlementWindowBusiness = "5-10"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 上下文键
const (
	CtxKeyUserID    = "user_id"
	CtxKeyAdminID   = "admin_id"
	CtxKeyRequestID = "request_id"
)

// 异步任务常量
const (
	QueueDefault     = "default"
	TaskChangeNotify = "fulfillment:change_notify"
	TaskStorageSweep = "fulfillment:storage_sweep"
	ChangeChannelFmt = "changes:%d"
)
