package authz

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/util"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const (
	apiV1Prefix     = "/api/v1"
	casbinTableName = "casbin_rule"
	adminSubjectFmt = "admin:%d"
	rolePrefix      = "role:"
)

// ErrUnknownRole 只能分配预置角色
var ErrUnknownRole = errors.New("unknown role")

var errUnavailable = errors.New("authz service unavailable")

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (g(r.sub, p.sub) || r.sub == p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// Policy 后台接口权限
type Policy struct {
	Subject string `json:"subject"`
	Object  string `json:"object"`
	Action  string `json:"action"`
}

// RoleView 预置角色及其生效权限
type RoleView struct {
	Role     string   `json:"role"`
	Inherits []string `json:"inherits"`
	Policies []Policy `json:"policies"`
}

// Service 后台授权：仓库、客服、财务、审计角色矩阵与管理员角色分配
type Service struct {
	enforcer *casbin.SyncedEnforcer
}

// NewService 创建授权服务，策略存放在 casbin_rule 表
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("authz db is nil")
	}
	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", casbinTableName)
	if err != nil {
		return nil, fmt.Errorf("create authz adapter failed: %w", err)
	}
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model failed: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("init authz enforcer failed: %w", err)
	}
	enforcer.AddFunction("keyMatch2", util.KeyMatch2Func)
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load authz policy failed: %w", err)
	}
	return &Service{enforcer: enforcer}, nil
}

func (s *Service) ready() error {
	if s == nil || s.enforcer == nil {
		return errUnavailable
	}
	return nil
}

// EnforceAdmin 按管理员 ID 判定授权，令牌携带的角色与本地分配的角色取并集
func (s *Service) EnforceAdmin(adminID uint, tokenRoles []string, obj, act string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	obj, act = NormalizeObject(obj), NormalizeAction(act)
	allowed, err := s.enforcer.Enforce(SubjectForAdmin(adminID), obj, act)
	if err != nil || allowed {
		return allowed, err
	}
	for _, raw := range tokenRoles {
		seed, ok := lookupSeed(raw)
		if !ok {
			continue
		}
		allowed, err := s.enforcer.Enforce(rolePrefix+seed.Role, obj, act)
		if err != nil {
			return false, err
		}
		if allowed {
			return true, nil
		}
	}
	return false, nil
}

// ReloadPolicy 重新加载策略，多实例部署时同步其他实例的角色分配
func (s *Service) ReloadPolicy() error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.enforcer.LoadPolicy()
}

// ListRoles 预置角色矩阵，权限含继承
func (s *Service) ListRoles() ([]RoleView, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	seeds := BuiltinRoleSeeds()
	views := make([]RoleView, 0, len(seeds))
	for _, seed := range seeds {
		policies, err := s.RolePolicies(seed.Role)
		if err != nil {
			return nil, err
		}
		inherits := make([]string, 0, len(seed.Inherits))
		for _, parent := range seed.Inherits {
			inherits = append(inherits, rolePrefix+parent)
		}
		views = append(views, RoleView{Role: rolePrefix + seed.Role, Inherits: inherits, Policies: policies})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Role < views[j].Role })
	return views, nil
}

// RolePolicies 角色生效权限，沿继承链展开
func (s *Service) RolePolicies(role string) ([]Policy, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	seed, ok := lookupSeed(role)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	collected := map[string]Policy{}
	visited := map[string]bool{}
	var walk func(seed RoleSeed) error
	walk = func(seed RoleSeed) error {
		if visited[seed.Role] {
			return nil
		}
		visited[seed.Role] = true
		rules, err := s.enforcer.GetFilteredPolicy(0, rolePrefix+seed.Role)
		if err != nil {
			return fmt.Errorf("get role policies failed: %w", err)
		}
		for _, p := range convertPolicies(rules) {
			collected[p.Object+"|"+p.Action] = p
		}
		for _, parent := range seed.Inherits {
			if next, ok := lookupSeed(parent); ok {
				if err := walk(next); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(seed); err != nil {
		return nil, err
	}
	return sortedPolicies(collected), nil
}

// SetAdminRoles 覆盖管理员持久化角色，只接受预置角色
func (s *Service) SetAdminRoles(adminID uint, roles []string) error {
	if adminID == 0 {
		return fmt.Errorf("admin id is required")
	}
	if err := s.ready(); err != nil {
		return err
	}
	normalized := make([]string, 0, len(roles))
	for _, raw := range roles {
		seed, ok := lookupSeed(raw)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownRole, strings.TrimSpace(raw))
		}
		normalized = append(normalized, rolePrefix+seed.Role)
	}

	subject := SubjectForAdmin(adminID)
	if _, err := s.enforcer.RemoveFilteredNamedGroupingPolicy("g", 0, subject); err != nil {
		return fmt.Errorf("clear admin roles failed: %w", err)
	}
	for _, role := range normalized {
		if _, err := s.enforcer.AddNamedGroupingPolicy("g", subject, role); err != nil {
			return fmt.Errorf("assign admin role failed: %w", err)
		}
	}
	return s.ReloadPolicy()
}

// GetAdminRoles 管理员持久化角色
func (s *Service) GetAdminRoles(adminID uint) ([]string, error) {
	if adminID == 0 {
		return nil, fmt.Errorf("admin id is required")
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	roles, err := s.enforcer.GetRolesForUser(SubjectForAdmin(adminID))
	if err != nil {
		return nil, fmt.Errorf("get admin roles failed: %w", err)
	}
	filtered := make([]string, 0, len(roles))
	for _, role := range roles {
		if strings.HasPrefix(role, rolePrefix) {
			filtered = append(filtered, role)
		}
	}
	sort.Strings(filtered)
	return filtered, nil
}

// GetAdminPolicies 管理员全部角色权限的并集
func (s *Service) GetAdminPolicies(adminID uint) ([]Policy, error) {
	roles, err := s.GetAdminRoles(adminID)
	if err != nil {
		return nil, err
	}
	collected := map[string]Policy{}
	for _, role := range roles {
		policies, err := s.RolePolicies(role)
		if err != nil {
			if errors.Is(err, ErrUnknownRole) {
				continue
			}
			return nil, err
		}
		for _, p := range policies {
			collected[p.Subject+"|"+p.Object+"|"+p.Action] = p
		}
	}
	return sortedPolicies(collected), nil
}

func convertPolicies(rules [][]string) []Policy {
	policies := make([]Policy, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		policies = append(policies, Policy{
			Subject: strings.TrimSpace(rule[0]),
			Object:  NormalizeObject(rule[1]),
			Action:  NormalizeAction(rule[2]),
		})
	}
	return policies
}

func sortedPolicies(set map[string]Policy) []Policy {
	out := make([]Policy, 0, len(set))
	for _, p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Object != out[j].Object {
			return out[i].Object < out[j].Object
		}
		if out[i].Action != out[j].Action {
			return out[i].Action < out[j].Action
		}
		return out[i].Subject < out[j].Subject
	})
	return out
}

// SubjectForAdmin 管理员主体标识
func SubjectForAdmin(adminID uint) string {
	return fmt.Sprintf(adminSubjectFmt, adminID)
}

// NormalizeObject 统一授权资源路径，去掉 /api/v1 前缀
func NormalizeObject(object string) string {
	normalized := strings.TrimSpace(object)
	if normalized == "" {
		return "/"
	}
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasPrefix(normalized, apiV1Prefix+"/") {
		return strings.TrimPrefix(normalized, apiV1Prefix)
	}
	if normalized == apiV1Prefix {
		return "/"
	}
	return normalized
}

// NormalizeAction 统一授权动作
func NormalizeAction(action string) string {
	return strings.ToUpper(strings.TrimSpace(action))
}
