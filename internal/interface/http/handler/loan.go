package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apploan "github.com/xiebiao/biblioteca/internal/application/loan"
	"github.com/xiebiao/biblioteca/internal/interface/http/dto"
	"github.com/xiebiao/biblioteca/internal/interface/http/middleware"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
	"github.com/xiebiao/biblioteca/pkg/response"
)

// LoanUseCases 借阅相关用例
type LoanUseCases struct {
	Request *apploan.RequestLoanUseCase
	Create  *apploan.CreateLoanUseCase
	Approve *apploan.ApproveLoanUseCase
	Pickup  *apploan.PickupLoanUseCase
	Return  *apploan.ReturnLoanUseCase
	Cancel  *apploan.CancelLoanUseCase
	Renew   *apploan.RenewLoanUseCase
	Get     *apploan.GetLoanUseCase
	List    *apploan.ListLoansUseCase
}

// LoanHandler 借阅HTTP处理器
type LoanHandler struct {
	uc LoanUseCases
}

// NewLoanHandler 创建借阅处理器
func NewLoanHandler(uc LoanUseCases) *LoanHandler {
	return &LoanHandler{uc: uc}
}

// RequestLoan 读者申请借阅
// @Summary      申请借阅
// @Description  所选日期可借时创建待审批借阅；不可借时返回40020，queue_if_unavailable=true则自动排队
// @Tags         借阅
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.RequestLoanRequest true "申请信息"
// @Success      200 {object} response.Response{data=apploan.RequestLoanResponse}
// @Failure      400 {object} response.Response "所选日期不可借"
// @Router       /api/v1/loans [post]
func (h *LoanHandler) RequestLoan(c *gin.Context) {
	var req dto.RequestLoanRequest
	if !bindJSON(c, &req) {
		return
	}
	start, end, err := dto.ParseDateRange(req.Start, req.End)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.uc.Request.Execute(c.Request.Context(), apploan.RequestLoanRequest{
		Actor:              middleware.GetActor(c),
		BookID:             req.BookID,
		Start:              start,
		End:                end,
		QueueIfUnavailable: req.QueueIfUnavailable,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// CreateLoan 馆员直借
// @Summary      直接借出
// @Description  馆员为读者借出，起借日为今天时副本立即借出
// @Tags         借阅
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.CreateLoanRequest true "借阅信息"
// @Success      200 {object} response.Response{data=apploan.LoanInfo}
// @Router       /api/v1/loans/direct [post]
func (h *LoanHandler) CreateLoan(c *gin.Context) {
	var req dto.CreateLoanRequest
	if !bindJSON(c, &req) {
		return
	}
	start, end, err := dto.ParseDateRange(req.Start, req.End)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.uc.Create.Execute(c.Request.Context(), apploan.CreateLoanRequest{
		Actor:  middleware.GetActor(c),
		BookID: req.BookID,
		UserID: req.UserID,
		Start:  start,
		End:    end,
		Notes:  req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ListLoans 借阅列表
// @Summary      借阅列表
// @Description  默认本人；馆员可用user_id查看其他读者
// @Tags         借阅
// @Produce      json
// @Security     BearerAuth
// @Param        user_id query int false "读者ID（馆员）"
// @Success      200 {object} response.Response{data=[]apploan.LoanInfo}
// @Router       /api/v1/loans [get]
func (h *LoanHandler) ListLoans(c *gin.Context) {
	var userID uint
	if s := c.Query("user_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: user_id")
			return
		}
		userID = uint(id)
	}

	result, err := h.uc.List.Execute(c.Request.Context(), middleware.GetActor(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// GetLoan 借阅详情
// @Summary      借阅详情
// @Tags         借阅
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "借阅ID"
// @Success      200 {object} response.Response{data=apploan.LoanInfo}
// @Router       /api/v1/loans/{id} [get]
func (h *LoanHandler) GetLoan(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.uc.Get.Execute(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ApproveLoan 审批借阅
// @Summary      审批借阅
// @Tags         借阅
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "借阅ID"
// @Success      200 {object} response.Response{data=apploan.LoanInfo}
// @Router       /api/v1/loans/{id}/approve [post]
func (h *LoanHandler) ApproveLoan(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.uc.Approve.Execute(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// PickupLoan 取书
// @Summary      取书
// @Description  已分配的借阅（prenotato）转为借阅中，副本借出
// @Tags         借阅
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "借阅ID"
// @Success      200 {object} response.Response{data=apploan.LoanInfo}
// @Router       /api/v1/loans/{id}/pickup [post]
func (h *LoanHandler) PickupLoan(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.uc.Pickup.Execute(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ReturnLoan 归还
// @Summary      归还
// @Description  outcome为restituito|perso|danneggiato，归还后处理预约队列
// @Tags         借阅
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path int                   true  "借阅ID"
// @Param        request body dto.ReturnLoanRequest false "归还结果"
// @Success      200 {object} response.Response{data=apploan.ReturnLoanResponse}
// @Router       /api/v1/loans/{id}/return [post]
func (h *LoanHandler) ReturnLoan(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ReturnLoanRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := h.uc.Return.Execute(c.Request.Context(), apploan.ReturnLoanRequest{
		Actor:   middleware.GetActor(c),
		LoanID:  id,
		Outcome: req.Outcome,
		Notes:   req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// CancelLoan 取消借阅
// @Summary      取消借阅
// @Description  待审批或已分配未取书的借阅置为annullato并释放副本；馆员可驳回任意借阅，读者只能撤回自己的
// @Tags         借阅
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path int                   true  "借阅ID"
// @Param        request body dto.CancelLoanRequest false "备注"
// @Success      200 {object} response.Response{data=apploan.CancelLoanResponse}
// @Router       /api/v1/loans/{id}/cancel [post]
func (h *LoanHandler) CancelLoan(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CancelLoanRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := h.uc.Cancel.Execute(c.Request.Context(), apploan.CancelLoanRequest{
		Actor:  middleware.GetActor(c),
		LoanID: id,
		Notes:  req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// RenewLoan 续借
// @Summary      续借
// @Description  到期日顺延一个借期；续借区间内同副本被占用或容量不足以满足排队预约时拒绝
// @Tags         借阅
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "借阅ID"
// @Success      200 {object} response.Response{data=apploan.LoanInfo}
// @Router       /api/v1/loans/{id}/renew [post]
func (h *LoanHandler) RenewLoan(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.uc.Renew.Execute(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
