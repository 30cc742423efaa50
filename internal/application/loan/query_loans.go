package loan

import (
	"context"

	"github.com/xiebiao/biblioteca/internal/domain/loan"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
)

// GetLoanUseCase 借阅详情（本人或馆员）
type GetLoanUseCase struct {
	loans loan.Repository
}

// NewGetLoanUseCase 创建详情用例
func NewGetLoanUseCase(loans loan.Repository) *GetLoanUseCase {
	return &GetLoanUseCase{loans: loans}
}

// Execute 查询借阅
func (uc *GetLoanUseCase) Execute(ctx context.Context, actor user.Actor, loanID uint) (*LoanInfo, error) {
	l, err := uc.loans.FindByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !actor.CanActOn(l.UserID) {
		return nil, loan.ErrNotOwner
	}
	info := NewLoanInfo(l)
	return &info, nil
}

// ListLoansUseCase 读者借阅列表
type ListLoansUseCase struct {
	loans loan.Repository
}

// NewListLoansUseCase 创建列表用例
func NewListLoansUseCase(loans loan.Repository) *ListLoansUseCase {
	return &ListLoansUseCase{loans: loans}
}

// Execute 列出userID的借阅，userID为0表示本人；查看他人需馆员权限
func (uc *ListLoansUseCase) Execute(ctx context.Context, actor user.Actor, userID uint) ([]LoanInfo, error) {
	if userID == 0 {
		userID = actor.UserID
	}
	if !actor.CanActOn(userID) {
		return nil, apperrors.ErrForbidden
	}

	loans, err := uc.loans.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]LoanInfo, 0, len(loans))
	for _, l := range loans {
		out = append(out, NewLoanInfo(l))
	}
	return out, nil
}
