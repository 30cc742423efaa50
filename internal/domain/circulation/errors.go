package circulation

import (
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
)

// 流通领域错误定义
var (
	// ErrInvalidDateRange 结束日早于开始日
	ErrInvalidDateRange = apperrors.New(apperrors.ErrCodeInvalidDateRange, "结束日期不能早于开始日期")

	// ErrNotAvailable 所选日期不可借（容量耗尽与分配竞态对读者统一为此错误）
	ErrNotAvailable = apperrors.New(apperrors.ErrCodeNotAvailable, "所选日期没有可借副本，请预约或更换日期")

	// ErrAllocationConflict 分配竞态失败，可重试
	ErrAllocationConflict = apperrors.New(apperrors.ErrCodeAllocationRace, "副本分配冲突，请稍后重试")
)
