package admin

import "github.com/parcel-relay/internal/provider"

// Handler 仓库与客服后台接口处理器入口
// 说明：管理员身份来自外部认证签发的令牌，权限由 casbin 角色控制。
type Handler struct {
	*provider.Container
}

// New 创建后台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
