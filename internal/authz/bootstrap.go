package authz

import (
	"fmt"
	"strings"
)

// RoleSeed 预置角色定义，Role 不带 role: 前缀
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 系统预置角色矩阵
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: "readonly_auditor",
			Policies: []Policy{
				{Object: "/admin/*", Action: "GET"},
			},
		},
		{
			// 仓库作业：入库信息、增值服务完成、发货签收、合箱与销毁
			Role:     "warehouse",
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{
				{Object: "/admin/packages/:id", Action: "PATCH"},
				{Object: "/admin/packages/:id/photos", Action: "POST"},
				{Object: "/admin/packages/:id/reinforcement", Action: "POST"},
				{Object: "/admin/packages/:id/ship", Action: "POST"},
				{Object: "/admin/packages/:id/deliver", Action: "POST"},
				{Object: "/admin/packages/:id/disposal/complete", Action: "POST"},
				{Object: "/admin/packages/:id/disposal/decline", Action: "POST"},
				{Object: "/admin/packages/:id/additional-charge", Action: "POST"},
				{Object: "/admin/consolidations", Action: "POST"},
				{Object: "/admin/packages/:id/consolidation/cancel", Action: "POST"},
				{Object: "/admin/packages/:id/deconsolidate", Action: "POST"},
				{Object: "/admin/orders/:id/auto-consolidate", Action: "POST"},
				{Object: "/admin/storage/sweep", Action: "POST"},
			},
		},
		{
			// 客服理赔：破损理赔、运输赔付、取消购买与奖励券
			Role:     "claims",
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{
				{Object: "/admin/damaged-claims/:id/review", Action: "POST"},
				{Object: "/admin/damaged-claims/:id/confirm-refund", Action: "POST"},
				{Object: "/admin/compensations/:id/review", Action: "POST"},
				{Object: "/admin/compensations/:id/approve-refund", Action: "POST"},
				{Object: "/admin/compensations/:id/confirm-refund", Action: "POST"},
				{Object: "/admin/packages/:id/cancel-purchase/request-payment", Action: "POST"},
				{Object: "/admin/packages/:id/cancel-purchase", Action: "PUT"},
				{Object: "/admin/coupons/reward", Action: "POST"},
			},
		},
		{
			Role:     "finance",
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{
				{Object: "/admin/users/:id/wallet/adjust", Action: "POST"},
				{Object: "/admin/damaged-claims/:id/confirm-refund", Action: "POST"},
				{Object: "/admin/compensations/:id/confirm-refund", Action: "POST"},
			},
		},
	}
}

// lookupSeed 按名称查找预置角色，兼容 role: 前缀与大小写
func lookupSeed(raw string) (RoleSeed, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = strings.TrimPrefix(name, rolePrefix)
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" {
		return RoleSeed{}, false
	}
	for _, seed := range BuiltinRoleSeeds() {
		if seed.Role == name {
			return seed, true
		}
	}
	return RoleSeed{}, false
}

// BootstrapBuiltinRoles 按角色矩阵写入策略与继承关系，矩阵外的旧规则一并清除
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}
	changed := false
	for _, seed := range BuiltinRoleSeeds() {
		role := rolePrefix + seed.Role
		for _, parent := range seed.Inherits {
			added, err := s.enforcer.AddNamedGroupingPolicy("g", role, rolePrefix+parent)
			if err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
			changed = changed || added
		}

		want := make(map[string]bool, len(seed.Policies))
		for _, policy := range seed.Policies {
			object, action := NormalizeObject(policy.Object), NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("builtin policy action is required")
			}
			want[object+"|"+action] = true
			added, err := s.enforcer.AddPolicy(role, object, action)
			if err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
			changed = changed || added
		}

		existing, err := s.enforcer.GetFilteredPolicy(0, role)
		if err != nil {
			return fmt.Errorf("list builtin policies failed: %w", err)
		}
		for _, p := range convertPolicies(existing) {
			if want[p.Object+"|"+p.Action] {
				continue
			}
			removed, err := s.enforcer.RemovePolicy(role, p.Object, p.Action)
			if err != nil {
				return fmt.Errorf("prune builtin policy failed: %w", err)
			}
			changed = changed || removed
		}
	}
	if changed {
		return s.ReloadPolicy()
	}
	return nil
}
