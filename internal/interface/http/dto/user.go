package dto

// RegisterRequest HTTP层注册请求
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email" example:"lettore@biblioteca.it"`
	Password string `json:"password" binding:"required,min=8,max=20" example:"password123"`
	Nickname string `json:"nickname" binding:"required,min=2,max=50" example:"Lettore"`
}

// LoginRequest HTTP层登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"lettore@biblioteca.it"`
	Password string `json:"password" binding:"required" example:"password123"`
}
