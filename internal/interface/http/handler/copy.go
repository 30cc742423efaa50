package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xiebiao/biblioteca/internal/application/copies"
	"github.com/xiebiao/biblioteca/internal/interface/http/dto"
	"github.com/xiebiao/biblioteca/internal/interface/http/middleware"
	"github.com/xiebiao/biblioteca/pkg/response"
)

// CopyHandler 副本HTTP处理器
type CopyHandler struct {
	copies *copies.Service
}

// NewCopyHandler 创建副本处理器
func NewCopyHandler(copyService *copies.Service) *CopyHandler {
	return &CopyHandler{copies: copyService}
}

// ListCopies 图书的副本
// @Summary      副本列表
// @Tags         副本
// @Produce      json
// @Param        id path int true "图书ID"
// @Success      200 {object} response.Response{data=[]copies.CopyInfo}
// @Router       /api/v1/books/{id}/copies [get]
func (h *CopyHandler) ListCopies(c *gin.Context) {
	bookID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.copies.List(c.Request.Context(), bookID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// AddCopies 登记副本
// @Summary      登记副本
// @Description  新副本在架后会处理该书的预约队列
// @Tags         副本
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path int                  true "图书ID"
// @Param        request body dto.AddCopiesRequest true "副本信息"
// @Success      200 {object} response.Response{data=[]copies.CopyInfo}
// @Router       /api/v1/books/{id}/copies [post]
func (h *CopyHandler) AddCopies(c *gin.Context) {
	bookID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.AddCopiesRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.copies.AddCopies(c.Request.Context(), copies.AddCopiesRequest{
		Actor:            middleware.GetActor(c),
		BookID:           bookID,
		Count:            req.Count,
		InventoryNumbers: req.InventoryNumbers,
		ShelfPosition:    req.ShelfPosition,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// UpdateStatus 手动变更副本状态
// @Summary      变更副本状态
// @Description  disponibile|manutenzione|in_trasferimento|perso|danneggiato，借阅占用中的副本不能变更
// @Tags         副本
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path int                         true "副本ID"
// @Param        request body dto.UpdateCopyStatusRequest true "目标状态"
// @Success      200 {object} response.Response{data=copies.CopyInfo}
// @Router       /api/v1/copies/{id}/status [put]
func (h *CopyHandler) UpdateStatus(c *gin.Context) {
	copyID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateCopyStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.copies.UpdateStatus(c.Request.Context(), copies.UpdateStatusRequest{
		Actor:  middleware.GetActor(c),
		CopyID: copyID,
		Status: req.Status,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// DeleteCopy 删除副本
// @Summary      删除副本
// @Description  只能删除遗失、损坏或维护中且无借阅记录的副本
// @Tags         副本
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "副本ID"
// @Success      200 {object} response.Response
// @Router       /api/v1/copies/{id} [delete]
func (h *CopyHandler) DeleteCopy(c *gin.Context) {
	copyID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.copies.Delete(c.Request.Context(), middleware.GetActor(c), copyID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
