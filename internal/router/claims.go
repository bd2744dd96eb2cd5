package router

import "github.com/golang-jwt/jwt/v5"

// UserClaims 外部认证服务签发的客户令牌
type UserClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// AdminClaims 外部认证服务签发的后台令牌，roles 与本地持久化角色取并集
type AdminClaims struct {
	AdminID  uint     `json:"admin_id"`
	Username string   `json:"username"`
	IsSuper  bool     `json:"is_super"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}
