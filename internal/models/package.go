package models

import (
	"time"

	"github.com/parcel-relay/internal/constants"

	"gorm.io/gorm"
)

// Package 仓库包裹表
type Package struct {
	ID          uint   `gorm:"primarykey" json:"id"`                 // 主键
	UserID      uint   `gorm:"index;not null" json:"user_id"`        // 所属用户
	OrderItemID *uint  `gorm:"index" json:"order_item_id,omitempty"` // 来源订单项
	Status      string `gorm:"index;not null" json:"status"`         // 包裹状态

	Weight       *float64 `gorm:"type:decimal(10,3)" json:"weight"`              // 重量（kg）
	PackagePhoto string   `gorm:"type:varchar(500)" json:"package_photo"`        // 入库照片
	Notes        string   `gorm:"type:text" json:"notes"`                        // 备注

	ShippingMethod           string     `gorm:"type:varchar(16);not null;default:'ems'" json:"shipping_method"`        // 国际运输方式
	ShippingCost             Money      `gorm:"type:decimal(20,0);not null;default:0" json:"shipping_cost"`            // 国际运费
	DomesticShippingCost     Money      `gorm:"type:decimal(20,0);not null;default:0" json:"domestic_shipping_cost"`   // 国内段运费
	DomesticShippingPaid     bool       `gorm:"not null;default:false" json:"domestic_shipping_paid"`                  // 国内段是否已付
	SharedDomesticGroup      string     `gorm:"type:varchar(64);index" json:"shared_domestic_shipping_group,omitempty"` // 共享国内段账单分组
	AdditionalShippingCost   Money      `gorm:"type:decimal(20,0);not null;default:0" json:"additional_shipping_cost"` // 追加运费
	AdditionalShippingReason string     `gorm:"type:varchar(500)" json:"additional_shipping_reason,omitempty"`        // 追加原因
	AdditionalShippingPaid   bool       `gorm:"not null;default:false" json:"additional_shipping_paid"`                // 追加运费是否已付
	ShippingRequested        bool       `gorm:"index;not null;default:false" json:"shipping_requested"`                // 是否已申请发货
	ShippingRequestedAt      *time.Time `json:"shipping_requested_at,omitempty"`                                       // 申请发货时间
	ShippingAddressID        *uint      `gorm:"index" json:"shipping_address_id,omitempty"`                            // 发货地址
	SelectedCarrierService   string     `gorm:"type:varchar(64)" json:"selected_carrier_service,omitempty"`            // 选定的承运商服务
	TrackingNumber           string     `gorm:"type:varchar(120)" json:"tracking_number,omitempty"`                    // 运单号
	ShippedAt                *time.Time `json:"shipped_at,omitempty"`                                                  // 发出时间
	DeliveredAt              *time.Time `json:"delivered_at,omitempty"`                                                // 签收时间

	ConsolidationKind      string        `gorm:"type:varchar(16);not null;default:'standalone'" json:"-"` // 合箱角色
	ConsolidationMembers   IDSet         `gorm:"type:text" json:"-"`                                      // 合箱成员（有序）
	AutoAbsorbed           IDSet         `gorm:"type:text" json:"-"`                                      // 自动合并已并入的包裹
	ConsolidatedIntoID     *uint         `gorm:"index" json:"-"`                                          // 被并入的包裹
	ConsolidationFinalized bool          `gorm:"not null;default:false" json:"-"`                         // 合箱是否已由仓库完成
	OriginalItems          ItemSnapshots `gorm:"type:text" json:"original_items,omitempty"`               // 合并前订单项快照

	PhotoService       bool        `gorm:"not null;default:false" json:"photo_service"`           // 拍照服务
	PhotoServicePaid   bool        `gorm:"not null;default:false" json:"photo_service_paid"`      // 拍照是否已付
	PhotoServiceStatus string      `gorm:"type:varchar(16)" json:"photo_service_status,omitempty"` // 拍照处理状态
	Photos             StringArray `gorm:"type:text" json:"photos"`                               // 拍照结果

	Reinforcement       bool   `gorm:"not null;default:false" json:"reinforcement"`           // 加固服务
	ReinforcementPaid   bool   `gorm:"not null;default:false" json:"reinforcement_paid"`      // 加固是否已付
	ReinforcementStatus string `gorm:"type:varchar(16)" json:"reinforcement_status,omitempty"` // 加固处理状态

	AdditionalInsurance Money `gorm:"type:decimal(20,0);not null;default:0" json:"additional_insurance"` // 基础保额之上的追加保额

	CancelPurchase       bool   `gorm:"not null;default:false" json:"cancel_purchase"`            // 取消采购
	CancelPurchaseStatus string `gorm:"type:varchar(24)" json:"cancel_purchase_status,omitempty"` // 取消采购状态
	CancelPurchasePaid   bool   `gorm:"not null;default:false" json:"cancel_purchase_paid"`       // 取消费是否已付

	DisposalRequested     bool   `gorm:"not null;default:false" json:"disposal_requested"`          // 已申请销毁
	DisposalCost          *Money `gorm:"type:decimal(20,0)" json:"disposal_cost,omitempty"`         // 销毁费用
	DisposalDeclineReason string `gorm:"type:varchar(500)" json:"disposal_decline_reason,omitempty"` // 拒绝销毁原因

	ArrivedAt            time.Time  `gorm:"index;not null" json:"arrived_at"`                          // 入库时间
	LastStoragePayment   *time.Time `json:"last_storage_payment,omitempty"`                            // 最近一次仓储费支付时间
	StorageFeesAmount    Money      `gorm:"type:decimal(20,0);not null;default:0" json:"storage_fees_amount"` // 累计仓储费
	StorageWarningSentAt *time.Time `json:"-"`                                                         // 最近一次仓储到期提醒

	Version   uint           `gorm:"not null;default:1" json:"version"` // 乐观锁版本
	CreatedAt time.Time      `gorm:"index" json:"created_at"`           // 创建时间
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"`           // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                    // 软删除时间

	OrderItem *OrderItem `gorm:"foreignKey:OrderItemID" json:"order_item,omitempty"` // 来源订单项
}

// TableName 指定表名
func (Package) TableName() string {
	return "packages"
}

// AwaitingDecision ready 与 pending_shipping 共享全部可操作规则
func (p *Package) AwaitingDecision() bool {
	return p.Status == constants.PackageStatusReady || p.Status == constants.PackageStatusPendingShipping
}

// DomesticLegSettled 国内段免费或已付
func (p *Package) DomesticLegSettled() bool {
	return !p.DomesticShippingCost.IsPositive() || p.DomesticShippingPaid
}

// CancelPurchaseOpen 取消采购进行中（未被驳回）
func (p *Package) CancelPurchaseOpen() bool {
	return p.CancelPurchase && p.CancelPurchaseStatus != constants.CancelPurchaseStatusRejected
}

// ReinforcementActive 已付费或已完成加固
func (p *Package) ReinforcementActive() bool {
	return p.Reinforcement && (p.ReinforcementPaid || p.ReinforcementStatus == constants.ServiceStatusCompleted)
}

// InFlight 已申请发货且尚未发出
func (p *Package) InFlight() bool {
	return p.ShippingRequested &&
		p.Status != constants.PackageStatusShipped &&
		p.Status != constants.PackageStatusDelivered
}

// WeightKg 重量，未称重返回 0
func (p *Package) WeightKg() float64 {
	if p.Weight == nil {
		return 0
	}
	return *p.Weight
}

// Consolidation 读取合箱角色
func (p *Package) Consolidation() ConsolidationState {
	return ConsolidationState{
		Kind:      p.ConsolidationKind,
		Members:   p.ConsolidationMembers,
		Absorbed:  p.AutoAbsorbed,
		AnchorID:  derefUint(p.ConsolidatedIntoID),
		Finalized: p.ConsolidationFinalized,
	}
}

// ApplyConsolidation 写入合箱角色，非法组合直接拒绝
func (p *Package) ApplyConsolidation(state ConsolidationState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	p.ConsolidationKind = state.Kind
	p.ConsolidationMembers = NewIDSet(state.Members...)
	p.AutoAbsorbed = NewIDSet(state.Absorbed...)
	p.ConsolidationFinalized = state.Finalized
	if state.Kind == constants.ConsolidationKindMember {
		id := state.AnchorID
		p.ConsolidatedIntoID = &id
	} else {
		p.ConsolidatedIntoID = nil
	}
	return nil
}

func derefUint(v *uint) uint {
	if v == nil {
		return 0
	}
	return *v
}
