package reservation

import (
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
)

// 预约领域错误定义
var (
	// ErrReservationNotFound 预约不存在
	ErrReservationNotFound = apperrors.New(apperrors.ErrCodeReservationNotFound, "预约不存在")

	// ErrNotActive 预约已结束
	ErrNotActive = apperrors.New(apperrors.ErrCodeReservationState, "预约已完成或已取消")

	// ErrAlreadyQueued 读者已在该书的队列中
	ErrAlreadyQueued = apperrors.New(apperrors.ErrCodeDuplicateEntry, "您已预约过这本书")

	// ErrNotOwner 无权操作他人预约
	ErrNotOwner = apperrors.New(apperrors.ErrCodeForbidden, "无权操作此预约")
)
