package handler

import (
	"github.com/gin-gonic/gin"

	appbook "github.com/xiebiao/biblioteca/internal/application/book"
	"github.com/xiebiao/biblioteca/internal/interface/http/dto"
	"github.com/xiebiao/biblioteca/internal/interface/http/middleware"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
	"github.com/xiebiao/biblioteca/pkg/response"
)

// BookHandler 图书HTTP处理器
type BookHandler struct {
	registerBookUseCase    *appbook.RegisterBookUseCase
	listBooksUseCase       *appbook.ListBooksUseCase
	getBookUseCase         *appbook.GetBookUseCase
	getAvailabilityUseCase *appbook.GetAvailabilityUseCase
	deleteBookUseCase      *appbook.DeleteBookUseCase
	recalculateUseCase     *appbook.RecalculateUseCase
}

// NewBookHandler 创建图书处理器
func NewBookHandler(
	registerBookUseCase *appbook.RegisterBookUseCase,
	listBooksUseCase *appbook.ListBooksUseCase,
	getBookUseCase *appbook.GetBookUseCase,
	getAvailabilityUseCase *appbook.GetAvailabilityUseCase,
	deleteBookUseCase *appbook.DeleteBookUseCase,
	recalculateUseCase *appbook.RecalculateUseCase,
) *BookHandler {
	return &BookHandler{
		registerBookUseCase:    registerBookUseCase,
		listBooksUseCase:       listBooksUseCase,
		getBookUseCase:         getBookUseCase,
		getAvailabilityUseCase: getAvailabilityUseCase,
		deleteBookUseCase:      deleteBookUseCase,
		recalculateUseCase:     recalculateUseCase,
	}
}

// RegisterBook 登记图书
// @Summary      登记图书
// @Description  馆员登记图书并创建初始副本
// @Tags         图书
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.RegisterBookRequest true "图书信息"
// @Success      200 {object} response.Response{data=appbook.BookDetail}
// @Failure      400 {object} response.Response "参数错误或ISBN已存在"
// @Failure      403 {object} response.Response "非馆员"
// @Router       /api/v1/books [post]
func (h *BookHandler) RegisterBook(c *gin.Context) {
	var req dto.RegisterBookRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.registerBookUseCase.Execute(c.Request.Context(), appbook.RegisterBookRequest{
		Actor:         middleware.GetActor(c),
		ISBN:          req.ISBN,
		Title:         req.Title,
		Author:        req.Author,
		Publisher:     req.Publisher,
		CoverURL:      req.CoverURL,
		Description:   req.Description,
		Copies:        req.Copies,
		ShelfPosition: req.ShelfPosition,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ListBooks 图书列表
// @Summary      图书列表
// @Description  分页查询，支持关键词与只看在架
// @Tags         图书
// @Produce      json
// @Param        page           query int    false "页码"
// @Param        page_size      query int    false "每页数量"
// @Param        keyword        query string false "关键词"
// @Param        only_available query bool   false "只看在架"
// @Param        sort_by        query string false "title_asc|created_at_desc|available_desc"
// @Success      200 {object} response.Response{data=appbook.ListBooksResponse}
// @Router       /api/v1/books [get]
func (h *BookHandler) ListBooks(c *gin.Context) {
	var req dto.ListBooksRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	result, err := h.listBooksUseCase.Execute(c.Request.Context(), appbook.ListBooksRequest{
		Page:          req.Page,
		PageSize:      req.PageSize,
		Keyword:       req.Keyword,
		OnlyAvailable: req.OnlyAvailable,
		SortBy:        req.SortBy,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// GetBook 图书详情
// @Summary      图书详情
// @Tags         图书
// @Produce      json
// @Param        id path int true "图书ID"
// @Success      200 {object} response.Response{data=appbook.BookDetail}
// @Failure      404 {object} response.Response "图书不存在"
// @Router       /api/v1/books/{id} [get]
func (h *BookHandler) GetBook(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.getBookUseCase.Execute(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// GetAvailability 区间可借查询
// @Summary      区间可借查询
// @Description  start为空表示今天，end为空按借期推算
// @Tags         图书
// @Produce      json
// @Param        id    path  int    true  "图书ID"
// @Param        start query string false "YYYY-MM-DD"
// @Param        end   query string false "YYYY-MM-DD"
// @Success      200 {object} response.Response{data=appbook.AvailabilityResponse}
// @Router       /api/v1/books/{id}/availability [get]
func (h *BookHandler) GetAvailability(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var q dto.DateRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}
	start, end, err := dto.ParseDateRange(q.Start, q.End)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.getAvailabilityUseCase.Execute(c.Request.Context(), id, start, end)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// DeleteBook 删除图书
// @Summary      删除图书
// @Description  仍有副本或借阅记录时拒绝
// @Tags         图书
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "图书ID"
// @Success      200 {object} response.Response
// @Router       /api/v1/books/{id} [delete]
func (h *BookHandler) DeleteBook(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.deleteBookUseCase.Execute(c.Request.Context(), middleware.GetActor(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Recalculate 重算图书计数
// @Summary      重算图书计数
// @Tags         图书
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "图书ID"
// @Success      200 {object} response.Response{data=appbook.RecalculateResponse}
// @Router       /api/v1/books/{id}/recalculate [post]
func (h *BookHandler) Recalculate(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.recalculateUseCase.Execute(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
