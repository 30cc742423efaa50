package user

import (
	"context"

	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/domain/user"
	"github.com/xiebiao/biblioteca/pkg/logger"
)

// PromoteUseCase 设置馆员（运维命令使用，不经过HTTP）
type PromoteUseCase struct {
	userService user.Service
	logger      *zap.Logger
}

// NewPromoteUseCase 创建设置馆员用例
func NewPromoteUseCase(userService user.Service, log *zap.Logger) *PromoteUseCase {
	return &PromoteUseCase{userService: userService, logger: logger.OrNop(log)}
}

// Execute 按邮箱设为馆员，重复执行无副作用
func (uc *PromoteUseCase) Execute(ctx context.Context, email string) (*UserInfo, error) {
	u, err := uc.userService.Promote(ctx, email)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("用户已设为馆员", zap.Uint("user_id", u.ID), zap.String("email", u.Email))
	return NewUserInfo(u), nil
}
