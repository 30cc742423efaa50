package bookcopy

import (
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
)

// 副本领域错误定义
var (
	// ErrCopyNotFound 副本不存在
	ErrCopyNotFound = apperrors.New(apperrors.ErrCodeCopyNotFound, "副本不存在")

	// ErrInvalidStatus 未知的副本状态
	ErrInvalidStatus = apperrors.New(apperrors.ErrCodeInvalidParams, "未知的副本状态")

	// ErrManualStatusForbidden 不允许手动设置为借出/预约保留
	ErrManualStatusForbidden = apperrors.New(apperrors.ErrCodeInvalidCopyStatus, "借出与预约保留状态只能由借阅流程设置")

	// ErrCopyInUse 副本仍有进行中的借阅
	ErrCopyInUse = apperrors.New(apperrors.ErrCodeCopyInUse, "副本仍有进行中的借阅")

	// ErrNotRemovable 只有遗失、损坏、维护中的副本可以删除
	ErrNotRemovable = apperrors.New(apperrors.ErrCodeInvalidCopyStatus, "只有遗失、损坏或维护中的副本可以删除")

	// ErrInventoryDuplicate 财产登记号重复
	ErrInventoryDuplicate = apperrors.New(apperrors.ErrCodeDuplicateEntry, "财产登记号已存在")
)
