package user

import (
	"context"
)

// Repository 用户仓储，实现在infrastructure/persistence/mysql
type Repository interface {
	// Create 邮箱已存在时返回ErrEmailDuplicate
	Create(ctx context.Context, user *User) error

	// FindByID 不存在时返回ErrUserNotFound
	FindByID(ctx context.Context, id uint) (*User, error)

	// FindByEmail 不存在时返回ErrUserNotFound
	FindByEmail(ctx context.Context, email string) (*User, error)

	Update(ctx context.Context, user *User) error

	// UpdateRole 只改角色列，不覆盖并发修改的其他字段
	UpdateRole(ctx context.Context, id uint, role Role) error
}
