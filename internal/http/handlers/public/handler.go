package public

import "github.com/parcel-relay/internal/provider"

// Handler 客户侧接口处理器入口
// 说明：所有路由都要求用户令牌，用户 ID 取自上下文。
type Handler struct {
	*provider.Container
}

// New 创建客户侧处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
