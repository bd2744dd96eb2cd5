package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/parcel-relay/internal/constants"
)

// ErrInvalidConsolidationState 合箱角色组合非法
var ErrInvalidConsolidationState = errors.New("invalid consolidation state")

// ConsolidationState 包裹合箱角色
//
//	standalone   无合箱关系
//	anchor       客户发起的合箱主包裹，Members 为待合并包裹；Finalized 后即为合箱产物
//	member       已并入 AnchorID
//	auto_anchor  系统按同商品不同规格自动合并的包裹，Absorbed 为已并入的包裹，
//	             Members 为客户在此基础上再次发起的待合并包裹
type ConsolidationState struct {
	Kind      string
	Members   IDSet
	Absorbed  IDSet
	AnchorID  uint
	Finalized bool
}

// Standalone 无合箱关系
func Standalone() ConsolidationState {
	return ConsolidationState{Kind: constants.ConsolidationKindStandalone}
}

// AnchorOf 客户合箱主包裹
func AnchorOf(members ...uint) ConsolidationState {
	return ConsolidationState{Kind: constants.ConsolidationKindAnchor, Members: NewIDSet(members...)}
}

// MemberOf 并入指定主包裹
func MemberOf(anchorID uint) ConsolidationState {
	return ConsolidationState{Kind: constants.ConsolidationKindMember, AnchorID: anchorID}
}

// AutoAnchorOf 系统自动合并的包裹
func AutoAnchorOf(absorbed ...uint) ConsolidationState {
	return ConsolidationState{Kind: constants.ConsolidationKindAutoAnchor, Absorbed: NewIDSet(absorbed...)}
}

// Validate 校验角色与字段组合
func (s ConsolidationState) Validate() error {
	switch s.Kind {
	case constants.ConsolidationKindStandalone, "":
		if len(s.Members) > 0 || len(s.Absorbed) > 0 || s.AnchorID != 0 || s.Finalized {
			return fmt.Errorf("%w: standalone carries consolidation data", ErrInvalidConsolidationState)
		}
	case constants.ConsolidationKindAnchor:
		if len(s.Members) == 0 {
			return fmt.Errorf("%w: anchor without members", ErrInvalidConsolidationState)
		}
		if s.AnchorID != 0 || len(s.Absorbed) > 0 {
			return fmt.Errorf("%w: anchor cannot be a member", ErrInvalidConsolidationState)
		}
	case constants.ConsolidationKindMember:
		if s.AnchorID == 0 || len(s.Members) > 0 || len(s.Absorbed) > 0 || s.Finalized {
			return fmt.Errorf("%w: member must reference only its anchor", ErrInvalidConsolidationState)
		}
	case constants.ConsolidationKindAutoAnchor:
		if s.AnchorID != 0 {
			return fmt.Errorf("%w: auto anchor cannot be a member", ErrInvalidConsolidationState)
		}
		if len(s.Absorbed) == 0 {
			return fmt.Errorf("%w: auto anchor without absorbed packages", ErrInvalidConsolidationState)
		}
		if s.Finalized {
			return fmt.Errorf("%w: auto anchor is finalized by kind", ErrInvalidConsolidationState)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidConsolidationState, s.Kind)
	}
	return nil
}

// OptedIn 客户合箱已选择但仓库尚未完成
func (s ConsolidationState) OptedIn() bool {
	if len(s.Members) == 0 {
		return false
	}
	switch s.Kind {
	case constants.ConsolidationKindAnchor:
		return !s.Finalized
	case constants.ConsolidationKindAutoAnchor:
		return true
	}
	return false
}

// IsManualProduct 客户合箱完成后的产物
func (s ConsolidationState) IsManualProduct() bool {
	return s.Kind == constants.ConsolidationKindAnchor && s.Finalized
}

// IsMerged 已是合箱产物（手动或自动完成）
func (s ConsolidationState) IsMerged() bool {
	return s.IsManualProduct() || s.IsAuto()
}

// IsMember 已并入其他包裹
func (s ConsolidationState) IsMember() bool {
	return s.Kind == constants.ConsolidationKindMember
}

// IsAuto 系统自动合并
func (s ConsolidationState) IsAuto() bool {
	return s.Kind == constants.ConsolidationKindAutoAnchor
}

// AbsorbedIDs 已并入本包裹的包裹
func (s ConsolidationState) AbsorbedIDs() IDSet {
	switch {
	case s.IsAuto():
		return s.Absorbed
	case s.IsManualProduct():
		return s.Members
	}
	return nil
}

// WithMembers 写入客户待合并集合，自动合并结果保持不变
func (s ConsolidationState) WithMembers(members IDSet) ConsolidationState {
	if s.IsAuto() {
		return ConsolidationState{Kind: constants.ConsolidationKindAutoAnchor, Absorbed: s.Absorbed, Members: members}
	}
	return AnchorOf(members...)
}

// WithoutMembers 取消客户合箱后的角色
func (s ConsolidationState) WithoutMembers() ConsolidationState {
	if s.IsAuto() {
		return AutoAnchorOf(s.Absorbed...)
	}
	return Standalone()
}

// Completed 仓库完成客户合箱后的角色，自动合并的包裹一并计入
func (s ConsolidationState) Completed() ConsolidationState {
	members := make([]uint, 0, len(s.Absorbed)+len(s.Members))
	members = append(members, s.Absorbed...)
	members = append(members, s.Members...)
	return ConsolidationState{Kind: constants.ConsolidationKindAnchor, Members: NewIDSet(members...), Finalized: true}
}

// ConsolidationMembership 合箱成员派生视图，每次写入主包裹合箱集合时重算
// member_id 唯一索引保证一个包裹只属于一个主包裹
type ConsolidationMembership struct {
	ID        uint      `gorm:"primarykey" json:"id"`                 // 主键
	AnchorID  uint      `gorm:"index;not null" json:"anchor_id"`      // 主包裹
	MemberID  uint      `gorm:"uniqueIndex;not null" json:"member_id"` // 成员包裹
	UserID    uint      `gorm:"index;not null" json:"user_id"`        // 所属用户
	Position  int       `gorm:"not null;default:0" json:"position"`   // 成员顺序
	CreatedAt time.Time `json:"created_at"`                           // 创建时间
}

// TableName 指定表名
func (ConsolidationMembership) TableName() string {
	return "consolidation_memberships"
}

type packageJSON Package

// MarshalJSON 输出包裹并附加合箱角色投影
func (p Package) MarshalJSON() ([]byte, error) {
	state := p.Consolidation()
	var into *uint
	if state.IsMember() {
		id := state.AnchorID
		into = &id
	}
	members := state.Members
	if members == nil {
		members = IDSet{}
	}
	absorbed := state.AbsorbedIDs()
	if absorbed == nil {
		absorbed = IDSet{}
	}
	return json.Marshal(struct {
		packageJSON
		Consolidation    bool  `json:"consolidation"`
		ConsolidateWith  IDSet `json:"consolidate_with"`
		Absorbed         IDSet `json:"absorbed"`
		Consolidated     bool  `json:"consolidated"`
		ConsolidatedInto *uint `json:"consolidated_into"`
		AutoConsolidated bool  `json:"auto_consolidated"`
		Disposed         bool  `json:"disposed"`
	}{
		packageJSON:      packageJSON(p),
		Consolidation:    state.OptedIn(),
		ConsolidateWith:  members,
		Absorbed:         absorbed,
		Consolidated:     state.IsMerged(),
		ConsolidatedInto: into,
		AutoConsolidated: state.IsAuto(),
		Disposed:         p.Status == constants.PackageStatusDisposed,
	})
}
