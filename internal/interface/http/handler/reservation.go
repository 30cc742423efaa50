package handler

import (
	"github.com/gin-gonic/gin"

	appres "github.com/xiebiao/biblioteca/internal/application/reservation"
	"github.com/xiebiao/biblioteca/internal/interface/http/dto"
	"github.com/xiebiao/biblioteca/internal/interface/http/middleware"
	"github.com/xiebiao/biblioteca/pkg/response"
)

// ReservationUseCases 预约相关用例
type ReservationUseCases struct {
	Create       *appres.CreateReservationUseCase
	Cancel       *appres.CancelReservationUseCase
	ListMine     *appres.ListMyReservationsUseCase
	ListQueue    *appres.ListQueueUseCase
	ProcessQueue *appres.ProcessQueueUseCase
}

// ReservationHandler 预约HTTP处理器
type ReservationHandler struct {
	uc ReservationUseCases
}

// NewReservationHandler 创建预约处理器
func NewReservationHandler(uc ReservationUseCases) *ReservationHandler {
	return &ReservationHandler{uc: uc}
}

// CreateReservation 预约
// @Summary      预约
// @Description  加入该书预约队列；有可借副本时立即转为借阅
// @Tags         预约
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.CreateReservationRequest true "预约信息"
// @Success      200 {object} response.Response{data=appres.ReservationInfo}
// @Router       /api/v1/reservations [post]
func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	var req dto.CreateReservationRequest
	if !bindJSON(c, &req) {
		return
	}
	start, end, err := dto.ParseDateRange(req.Start, req.End)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.uc.Create.Execute(c.Request.Context(), appres.CreateReservationRequest{
		Actor:  middleware.GetActor(c),
		BookID: req.BookID,
		UserID: req.UserID,
		Start:  start,
		End:    end,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ListMine 我的预约
// @Summary      我的预约
// @Tags         预约
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.Response{data=[]appres.ReservationInfo}
// @Router       /api/v1/reservations [get]
func (h *ReservationHandler) ListMine(c *gin.Context) {
	result, err := h.uc.ListMine.Execute(c.Request.Context(), middleware.GetActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// CancelReservation 取消预约
// @Summary      取消预约
// @Description  本人或馆员，取消后重排队列
// @Tags         预约
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "预约ID"
// @Success      200 {object} response.Response{data=appres.ReservationInfo}
// @Router       /api/v1/reservations/{id} [delete]
func (h *ReservationHandler) CancelReservation(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.uc.Cancel.Execute(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ListQueue 图书预约队列
// @Summary      预约队列
// @Tags         预约
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "图书ID"
// @Success      200 {object} response.Response{data=[]appres.ReservationInfo}
// @Router       /api/v1/books/{id}/queue [get]
func (h *ReservationHandler) ListQueue(c *gin.Context) {
	bookID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.uc.ListQueue.Execute(c.Request.Context(), middleware.GetActor(c), bookID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ProcessQueue 处理预约队列
// @Summary      处理预约队列
// @Description  依次把队首预约转为借阅，直到不可借或达到limit
// @Tags         预约
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path int                     true  "图书ID"
// @Param        request body dto.ProcessQueueRequest false "处理上限"
// @Success      200 {object} response.Response{data=appres.ProcessQueueResponse}
// @Router       /api/v1/books/{id}/queue/process [post]
func (h *ReservationHandler) ProcessQueue(c *gin.Context) {
	bookID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ProcessQueueRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := h.uc.ProcessQueue.Execute(c.Request.Context(), middleware.GetActor(c), bookID, req.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
