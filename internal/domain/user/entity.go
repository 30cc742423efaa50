package user

import (
	"time"
)

// Role 用户角色
type Role string

const (
	RoleMember Role = "member" // 读者
	RoleStaff  Role = "staff"  // 馆员
)

// ParseRole 解析角色，未知值返回false
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleMember, RoleStaff:
		return Role(s), true
	}
	return "", false
}

// User 用户实体（聚合根）
// DDD设计说明：
// 1. User是用户聚合的根实体，包含用户的核心属性
// 2. 密码已加密存储（bcrypt），不应该有GetPassword()等方法暴露明文
// 3. 领域实体不依赖GORM tag（infrastructure层的Repository实现时会处理映射）
type User struct {
	ID        uint
	Email     string
	Password  string // bcrypt哈希值
	Nickname  string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser 创建新用户（工厂方法）
// hashedPassword必须是bcrypt加密后的密码；新用户默认为读者
func NewUser(email, hashedPassword, nickname string) *User {
	now := time.Now()
	return &User{
		Email:     email,
		Password:  hashedPassword,
		Nickname:  nickname,
		Role:      RoleMember,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UpdateNickname 更新昵称（领域行为）
func (u *User) UpdateNickname(nickname string) {
	u.Nickname = nickname
	u.UpdatedAt = time.Now()
}

// Promote 设为馆员，已是馆员返回false
func (u *User) Promote() bool {
	if u.Role == RoleStaff {
		return false
	}
	u.Role = RoleStaff
	u.UpdatedAt = time.Now()
	return true
}

// Actor 发起操作的用户上下文
// 由接口层从JWT解析后显式传入用例，用于权限判断与processed_by归属
type Actor struct {
	UserID uint
	Role   Role
}

// IsStaff 是否馆员
func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff
}

// CanActOn 本人或馆员可操作
func (a Actor) CanActOn(ownerID uint) bool {
	return a.IsStaff() || a.UserID == ownerID
}

// StaffID 馆员返回自身ID（写入processed_by），读者返回nil
func (a Actor) StaffID() *uint {
	if !a.IsStaff() {
		return nil
	}
	id := a.UserID
	return &id
}
