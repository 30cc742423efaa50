package loan

import (
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
)

// 借阅领域错误定义
var (
	// ErrLoanNotFound 借阅不存在
	ErrLoanNotFound = apperrors.New(apperrors.ErrCodeLoanNotFound, "借阅记录不存在")

	// ErrInvalidStatus 未知的借阅状态
	ErrInvalidStatus = apperrors.New(apperrors.ErrCodeInvalidParams, "未知的借阅状态")

	// ErrInvalidTransition 非法的状态流转
	ErrInvalidTransition = apperrors.New(apperrors.ErrCodeInvalidLoanStatus, "借阅状态不允许此操作")

	// ErrInvalidOutcome 归还结果只能是归还、遗失或损坏
	ErrInvalidOutcome = apperrors.New(apperrors.ErrCodeInvalidParams, "归还结果只能是restituito、perso或danneggiato")

	// ErrNotRenewable 只有借阅中且未逾期的借阅可以续借
	ErrNotRenewable = apperrors.New(apperrors.ErrCodeInvalidLoanStatus, "只有借阅中且未逾期的借阅可以续借")

	// ErrRenewalLimit 续借次数已达上限
	ErrRenewalLimit = apperrors.New(apperrors.ErrCodeRenewalLimit, "续借次数已达上限")

	// ErrRenewalConflict 续借区间与其他借阅或预约冲突
	ErrRenewalConflict = apperrors.New(apperrors.ErrCodeNotAvailable, "续借期间该书已被他人预约")

	// ErrNotOwner 无权操作他人借阅
	ErrNotOwner = apperrors.New(apperrors.ErrCodeForbidden, "无权操作此借阅")
)
